package chart

import (
	"market-chart-lab/internal/domain"
	"market-chart-lab/internal/notify"
	"market-chart-lab/internal/price"
)

// DropReason explains why a live update was not merged. The empty reason means accepted.
type DropReason string

const (
	Accepted        DropReason = ""
	DropOtherMarket DropReason = "other-market"
	DropUnconfirmed DropReason = "unconfirmed"
	DropDuplicate   DropReason = "duplicate"
	DropNonFinite   DropReason = "non-finite"
)

// IngestLive applies the live filter chain to msg and, when it passes, returns
// the point to merge with its assigned timestamp.
//
// Filters, in order: the market must match the session; the classification must
// be confirmed (optimistic updates never pass); the provenance must not have
// been processed before. An empty provenance gets a synthetic "live-<n>" tag
// and skips the duplicate check.
func IngestLive(s *Session, msg notify.Message, now int64) (domain.PricePoint, DropReason) {
	if !s.Matches(msg.MarketID) {
		return domain.PricePoint{}, DropOtherMarket
	}
	if !msg.Classification.IsConfirmed() {
		return domain.PricePoint{}, DropUnconfirmed
	}
	if !price.Finite(msg.NewYesProbability) {
		return domain.PricePoint{}, DropNonFinite
	}

	provenance := msg.Provenance
	if provenance == "" {
		provenance = s.nextLiveProvenance()
	} else {
		if s.Processed(provenance) {
			return domain.PricePoint{}, DropDuplicate
		}
		s.MarkProcessed(provenance)
	}

	ts := s.nextLiveTimestamp(now)
	return domain.NewPricePoint(ts, msg.NewYesProbability, provenance), Accepted
}
