package storage

import "errors"

// Storage errors for indexer stores.
var (
	// ErrDuplicateKey is returned when attempting to insert a trade
	// whose (market, transaction, timestamp) already exists.
	ErrDuplicateKey = errors.New("duplicate key: indexer trades are append-only")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrReadOnly is returned when writing through a store opened for reads only.
	ErrReadOnly = errors.New("indexer store is read-only")
)

// ValidateTrade checks the fields every stored trade must carry.
func ValidateTrade(marketID, txID string, ts int64) error {
	if marketID == "" || txID == "" || ts <= 0 {
		return ErrInvalidInput
	}
	return nil
}
