package stub

import (
	"context"
	"sync"

	"market-chart-lab/internal/ledger"
)

// WSClient implements ledger.WSClient; tests push logs with Emit.
type WSClient struct {
	mu           sync.Mutex
	subs         []wsSub
	closed       bool
	subscribeErr error
}

type wsSub struct {
	filter ledger.LogFilter
	ch     chan ledger.Log
}

// Compile-time interface check.
var _ ledger.WSClient = (*WSClient)(nil)

// NewWSClient creates a new stub WebSocket client.
func NewWSClient() *WSClient {
	return &WSClient{}
}

// FailSubscribe makes SubscribeLogs return err.
func (c *WSClient) FailSubscribe(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribeErr = err
}

// SubscribeLogs registers a subscription.
func (c *WSClient) SubscribeLogs(_ context.Context, filter ledger.LogFilter) (<-chan ledger.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ledger.ErrClientClosed
	}
	if c.subscribeErr != nil {
		return nil, c.subscribeErr
	}
	ch := make(chan ledger.Log, 64)
	c.subs = append(c.subs, wsSub{filter: filter, ch: ch})
	return ch, nil
}

// Emit delivers l to every matching subscription.
func (c *WSClient) Emit(l ledger.Log) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for _, s := range c.subs {
		if s.filter.Matches(l) {
			s.ch <- l
		}
	}
}

// Subscriptions returns the number of registered subscriptions.
func (c *WSClient) Subscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Close closes all subscription channels.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for _, s := range c.subs {
		close(s.ch)
	}
	c.subs = nil
	return nil
}
