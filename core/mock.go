package core

import "github.com/sisu-network/dewatch/types"

type MockClient struct {
	TryDialFunc          func()
	GetVersionFunc       func() (string, error)
	PostWatchTriggerFunc func(trigger *types.WatchTrigger) error
}

func (c *MockClient) TryDial() {
	if c.TryDialFunc != nil {
		c.TryDialFunc()
	}
}

func (c *MockClient) GetVersion() (string, error) {
	if c.GetVersionFunc != nil {
		return c.GetVersionFunc()
	}

	return "", nil
}

func (c *MockClient) PostWatchTrigger(trigger *types.WatchTrigger) error {
	if c.PostWatchTriggerFunc != nil {
		return c.PostWatchTriggerFunc(trigger)
	}

	return nil
}

type MockTransmitter struct {
	StartFunc    func()
	TransmitFunc func(request *types.TransmitRequest) *types.TransmitResult
}

func (t *MockTransmitter) Start() {
	if t.StartFunc != nil {
		t.StartFunc()
	}
}

func (t *MockTransmitter) Transmit(request *types.TransmitRequest) *types.TransmitResult {
	if t.TransmitFunc != nil {
		return t.TransmitFunc(request)
	}

	return &types.TransmitResult{
		Success: true,
		TxHash:  request.TxHash,
	}
}
