package config

import (
	"github.com/BurntSushi/toml"
)

type Chain struct {
	Chain     string   `toml:"chain"`
	BlockTime int      `toml:"block_time"`
	Rpcs      []string `toml:"rpcs"`
	RpcSecret string   `toml:"rpc_secret"`
}

type Dewatch struct {
	DbHost     string `toml:"db_host"`
	DbPort     int    `toml:"db_port"`
	DbUsername string `toml:"db_username"`
	DbPassword string `toml:"db_password"`
	DbSchema   string `toml:"db_schema"`
	InMemory   bool   `toml:"in_memory"`

	ServerPort    int    `toml:"server_port"`
	SubscriberUrl string `toml:"subscriber_url"`

	Chain Chain `toml:"chain"`
}

func Load(path string) (Dewatch, error) {
	cfg := Dewatch{}
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, err
	}

	return cfg, nil
}
