package ledger

import "context"

// WSClient defines the ledger WebSocket subscription interface.
type WSClient interface {
	// SubscribeLogs subscribes to logs matching the filter (block range ignored).
	SubscribeLogs(ctx context.Context, filter LogFilter) (<-chan Log, error)

	// Close closes the WebSocket connection and all subscription channels.
	Close() error
}
