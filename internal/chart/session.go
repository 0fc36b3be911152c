// Package chart reconciles indexer history, recovered ledger logs and live
// confirmations into one strictly ascending probability series per market.
package chart

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"market-chart-lab/internal/domain"
	"market-chart-lab/internal/ledger"
)

// Errors returned by the controller.
var (
	ErrNoSession         = errors.New("no market session open")
	ErrControllerStopped = errors.New("chart controller stopped")
	ErrInvalidMarket     = errors.New("invalid market id")
)

// Session is the state scoped to one displayed market. It is created when a
// market view opens and discarded when the market changes; nothing carries over.
// A Session is owned by a single goroutine and is not safe for concurrent use.
type Session struct {
	ID        uuid.UUID
	Market    domain.MarketRef
	StartedAt int64

	marketTopic string

	scanRequested bool
	scanStarted   bool

	processed      map[string]struct{}
	lastHistorical int64
	lastLive       int64
	liveSeq        uint64

	merger *Merger
}

// NewSession creates a session for market started at now (Unix seconds).
func NewSession(market domain.MarketRef, now int64) *Session {
	return &Session{
		ID:          uuid.New(),
		Market:      market,
		StartedAt:   now,
		marketTopic: ledger.MarketTopic(market.MarketID),
		processed:   make(map[string]struct{}),
		merger:      NewMerger(),
	}
}

// Matches reports whether a notification's market id refers to this session,
// either by id or by its indexed ledger topic.
func (s *Session) Matches(marketID string) bool {
	return strings.EqualFold(marketID, s.Market.MarketID) ||
		strings.EqualFold(marketID, s.marketTopic)
}

// RequestScan sets the one-shot gap recovery request.
func (s *Session) RequestScan() {
	s.scanRequested = true
}

// ClaimScan returns true exactly once per session, and only after RequestScan.
func (s *Session) ClaimScan() bool {
	if !s.scanRequested || s.scanStarted {
		return false
	}
	s.scanStarted = true
	return true
}

// ScanRequested reports whether a scan was requested.
func (s *Session) ScanRequested() bool {
	return s.scanRequested
}

// ScanStarted reports whether the one-shot scan has been claimed.
func (s *Session) ScanStarted() bool {
	return s.scanStarted
}

// Processed reports whether the transaction identity was already seen.
func (s *Session) Processed(txID string) bool {
	_, ok := s.processed[txID]
	return ok
}

// MarkProcessed records a transaction identity.
func (s *Session) MarkProcessed(txID string) {
	if txID != "" {
		s.processed[txID] = struct{}{}
	}
}

// ObserveHistorical advances the last historical timestamp.
func (s *Session) ObserveHistorical(ts int64) {
	if ts > s.lastHistorical {
		s.lastHistorical = ts
	}
}

// LastHistorical returns the latest historical timestamp seen.
func (s *Session) LastHistorical() int64 {
	return s.lastHistorical
}

// LastLive returns the last assigned live timestamp.
func (s *Session) LastLive() int64 {
	return s.lastLive
}

// Merger returns the session's canonical series.
func (s *Session) Merger() *Merger {
	return s.merger
}

// nextLiveTimestamp assigns max(lastLive+1, lastHistorical, now) and records it.
func (s *Session) nextLiveTimestamp(now int64) int64 {
	ts := s.lastLive + 1
	if s.lastHistorical > ts {
		ts = s.lastHistorical
	}
	if now > ts {
		ts = now
	}
	s.lastLive = ts
	return ts
}

// nextLiveProvenance returns a synthetic "live-<n>" tag.
func (s *Session) nextLiveProvenance() string {
	s.liveSeq++
	return domain.ProvenanceLivePrefix + uitoa(s.liveSeq)
}
