package database

import "github.com/sisu-network/dewatch/types"

type MockDb struct {
	InitFunc                func() error
	SaveObservationFunc     func(obs *types.TxObservation)
	LoadObservationsFunc    func() ([]*types.TxObservation, error)
	SaveBroadcastResultFunc func(txHash string, success bool, errMsg string)
}

func (mock *MockDb) Init() error {
	if mock.InitFunc != nil {
		return mock.InitFunc()
	}

	return nil
}

func (mock *MockDb) SaveObservation(obs *types.TxObservation) {
	if mock.SaveObservationFunc != nil {
		mock.SaveObservationFunc(obs)
	}
}

func (mock *MockDb) LoadObservations() ([]*types.TxObservation, error) {
	if mock.LoadObservationsFunc != nil {
		return mock.LoadObservationsFunc()
	}

	return nil, nil
}

func (mock *MockDb) SaveBroadcastResult(txHash string, success bool, errMsg string) {
	if mock.SaveBroadcastResultFunc != nil {
		mock.SaveBroadcastResultFunc(txHash, success, errMsg)
	}
}
