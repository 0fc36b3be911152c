// Package stub provides in-memory ledger clients for tests.
package stub

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"market-chart-lab/internal/ledger"
)

// RPCClient implements ledger.RPCClient over in-memory logs and blocks.
type RPCClient struct {
	mu         sync.Mutex
	head       uint64
	logs       []ledger.Log
	timestamps map[uint64]int64
	err        error
	gate       chan struct{}

	filters        []ledger.LogFilter
	timestampCalls map[uint64]int
}

// Compile-time interface check.
var _ ledger.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client with the given head block.
func NewRPCClient(head uint64) *RPCClient {
	return &RPCClient{
		head:           head,
		timestamps:     make(map[uint64]int64),
		timestampCalls: make(map[uint64]int),
	}
}

// SetHead sets the most recent block number.
func (c *RPCClient) SetHead(head uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.head = head
}

// SetError makes every subsequent call fail with err (nil clears it).
func (c *RPCClient) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Hold makes GetLogs wait until Release is called or its context ends.
func (c *RPCClient) Hold() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gate = make(chan struct{})
}

// Release unblocks GetLogs calls waiting on Hold.
func (c *RPCClient) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gate != nil {
		close(c.gate)
		c.gate = nil
	}
}

// AddLog adds a log to the stub store.
func (c *RPCClient) AddLog(l ledger.Log) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, l)
}

// SetBlockTimestamp records a block's timestamp.
func (c *RPCClient) SetBlockTimestamp(number uint64, ts int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timestamps[number] = ts
}

// Filters returns the filters passed to GetLogs so far.
func (c *RPCClient) Filters() []ledger.LogFilter {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ledger.LogFilter, len(c.filters))
	copy(out, c.filters)
	return out
}

// TimestampCalls returns how many times BlockTimestamp was asked for number.
func (c *RPCClient) TimestampCalls(number uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timestampCalls[number]
}

// BlockNumber returns the configured head.
func (c *RPCClient) BlockNumber(_ context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	return c.head, nil
}

// GetLogs returns stored logs matching the filter and range, ordered by block and index.
func (c *RPCClient) GetLogs(ctx context.Context, filter ledger.LogFilter) ([]ledger.Log, error) {
	c.mu.Lock()
	gate := c.gate
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = append(c.filters, filter)
	if c.err != nil {
		return nil, c.err
	}

	var out []ledger.Log
	for _, l := range c.logs {
		if l.BlockNumber < filter.FromBlock || l.BlockNumber > filter.ToBlock {
			continue
		}
		if filter.Matches(l) {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BlockNumber != out[j].BlockNumber {
			return out[i].BlockNumber < out[j].BlockNumber
		}
		return out[i].LogIndex < out[j].LogIndex
	})
	return out, nil
}

// BlockTimestamp returns a stored block timestamp or ledger.ErrBlockNotFound.
func (c *RPCClient) BlockTimestamp(_ context.Context, number uint64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timestampCalls[number]++
	if c.err != nil {
		return 0, c.err
	}
	ts, ok := c.timestamps[number]
	if !ok {
		return 0, fmt.Errorf("block %d: %w", number, ledger.ErrBlockNotFound)
	}
	return ts, nil
}
