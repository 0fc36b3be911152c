// Package ledger talks to the chain's JSON-RPC endpoints: bounded log queries,
// block timestamps and push subscriptions for market buy/sell events.
package ledger

import (
	"context"
	"errors"
	"strings"
)

// ErrBlockNotFound is returned when a block number has not been produced yet.
var ErrBlockNotFound = errors.New("block not found")

// RPCClient defines the read-only ledger HTTP interface.
type RPCClient interface {
	// BlockNumber returns the number of the most recent block.
	BlockNumber(ctx context.Context) (uint64, error)

	// GetLogs returns logs matching the filter within [FromBlock, ToBlock].
	GetLogs(ctx context.Context, filter LogFilter) ([]Log, error)

	// BlockTimestamp returns the Unix timestamp (seconds) of a block.
	BlockTimestamp(ctx context.Context, number uint64) (int64, error)
}

// Log represents a raw event log entry.
type Log struct {
	Address     string
	Topics      []string
	Data        string // 0x-prefixed hex
	BlockNumber uint64
	TxHash      string
	LogIndex    uint64
	Removed     bool // true when the log was reverted by a reorg
}

// LogFilter selects logs by emitting contract, topics and block range.
type LogFilter struct {
	// Addresses restricts logs to these contracts.
	Addresses []string
	// Topics holds positional OR-sets; an empty set matches anything.
	Topics [][]string
	// FromBlock and ToBlock bound GetLogs queries (inclusive). Ignored by subscriptions.
	FromBlock uint64
	ToBlock   uint64
}

// BlockSpan returns the number of blocks covered by the filter range.
func (f LogFilter) BlockSpan() uint64 {
	if f.ToBlock < f.FromBlock {
		return 0
	}
	return f.ToBlock - f.FromBlock + 1
}

// Matches reports whether l satisfies the address and topic constraints.
// The block range is not checked.
func (f LogFilter) Matches(l Log) bool {
	if len(f.Addresses) > 0 && !containsFold(f.Addresses, l.Address) {
		return false
	}
	for i, set := range f.Topics {
		if len(set) == 0 {
			continue
		}
		if i >= len(l.Topics) || !containsFold(set, l.Topics[i]) {
			return false
		}
	}
	return true
}

func containsFold(set []string, s string) bool {
	for _, v := range set {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
