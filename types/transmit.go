package types

type TransmitRequest struct {
	TxHash string
	Tx     []byte
}

type TransmitResult struct {
	Success bool
	Err     error
	TxHash  string
}

func NewTransmitError(err error) *TransmitResult {
	return &TransmitResult{
		Success: false,
		Err:     err,
	}
}
