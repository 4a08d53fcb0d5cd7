package config

const DewatchConfigTemplate = `db_host = "{{ .DbHost }}"
db_port = {{ .DbPort }}
db_username = "{{ .DbUsername }}"
db_password = "{{ .DbPassword }}"
db_schema = "{{ .DbSchema }}"

server_port = {{ .ServerPort }}
subscriber_url = "{{ .SubscriberUrl }}"

[chain]
chain = "{{ .Chain.Chain }}"
block_time = {{ .Chain.BlockTime }}
rpcs = [{{ range $i, $v := .Chain.Rpcs }}"{{ $v }}",{{ end }}]
rpc_secret = "{{ .Chain.RpcSecret }}"
`
