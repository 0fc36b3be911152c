package domain

// Classification describes how a live price notification was produced.
type Classification string

const (
	ClassConfirmedEvent    Classification = "confirmed-event"
	ClassBlockPollFallback Classification = "block-poll-fallback"
	ClassSyncUpdate        Classification = "sync-update"
	ClassOptimistic        Classification = "optimistic"
)

// String returns the string representation of Classification.
func (c Classification) String() string {
	return string(c)
}

// IsConfirmed reports whether updates of this classification may reach the chart.
// Optimistic and unknown classifications are never confirmed.
func (c Classification) IsConfirmed() bool {
	return c == ClassConfirmedEvent || c == ClassBlockPollFallback || c == ClassSyncUpdate
}

// IsValid checks if the classification is a known value.
func (c Classification) IsValid() bool {
	return c.IsConfirmed() || c == ClassOptimistic
}
