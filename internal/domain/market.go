package domain

// MarketRef identifies the market being displayed.
type MarketRef struct {
	MarketID  string // market identifier (bytes32 hex or opaque id)
	CreatedAt int64  // creation Unix timestamp in seconds, 0 if unknown
}

// HasCreationTime reports whether the market's creation time is known.
func (m MarketRef) HasCreationTime() bool {
	return m.CreatedAt > 0
}
