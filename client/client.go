package client

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sisu-network/dewatch/types"
	"github.com/sisu-network/lib/log"
	"go.uber.org/atomic"
)

const (
	RETRY_TIME = 10 * time.Second
)

// A client that connects to the subscriber host (the process running the
// channel state machines).
type Client interface {
	TryDial()
	GetVersion() (string, error)
	PostWatchTrigger(trigger *types.WatchTrigger) error
}

var (
	ErrSubscriberNotConnected = errors.New("subscriber host is not connected")
)

// connected is read from the caller goroutines while TryDial writes it.
type DefaultClient struct {
	client    *rpc.Client
	url       string
	connected atomic.Bool
}

func NewClient(url string) Client {
	return &DefaultClient{
		url: url,
	}
}

func (c *DefaultClient) TryDial() {
	log.Info("Trying to dial subscriber host")

	for {
		log.Info("Dialing...", c.url)
		var err error
		c.client, err = rpc.DialContext(context.Background(), c.url)
		if err != nil {
			log.Error("Cannot connect to subscriber host err = ", err)
			time.Sleep(RETRY_TIME)
			continue
		}

		_, err = c.GetVersion()
		if err != nil {
			log.Error("Cannot get subscriber host version err = ", err)
			time.Sleep(RETRY_TIME)
			continue
		}

		c.connected.Store(true)
		break
	}

	log.Info("Subscriber host is connected")
}

func (c *DefaultClient) GetVersion() (string, error) {
	var version string
	err := c.client.CallContext(context.Background(), &version, "node_version")
	return version, err
}

func (c *DefaultClient) PostWatchTrigger(trigger *types.WatchTrigger) error {
	if !c.connected.Load() {
		return ErrSubscriberNotConnected
	}

	log.Verbose("Posting watch trigger to subscriber host...")

	var result string
	err := c.client.CallContext(context.Background(), &result, "node_postWatchTrigger", trigger)
	if err != nil {
		log.Error("Cannot post watch trigger, err = ", err)
		return err
	}

	return nil
}
