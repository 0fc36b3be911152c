package chart

import (
	"math"
	"sort"

	"market-chart-lab/internal/domain"
	"market-chart-lab/internal/price"
)

// DefaultDivergenceThreshold is the minimum difference between an observed
// price and the indexer's state that counts as indexer lag.
const DefaultDivergenceThreshold = 1e-4

// HistoryInput is the input to LoadHistory.
type HistoryInput struct {
	Market domain.MarketRef
	Trades []*domain.TradeRecord
	// ObservedYes is an externally observed current yes price, if any.
	ObservedYes *float64
	Now         int64
	// LastLive is the timestamp of the latest live point already merged, 0 if none.
	LastLive int64
	// Processed reports identities already merged from another source.
	// Trades carrying one are dropped.
	Processed func(txID string) bool
}

// HistoryResult is the output of LoadHistory.
type HistoryResult struct {
	// Points is ascending and starts with the seed.
	Points []domain.PricePoint
	// ScanRequested is set when the observed price diverged from the indexer.
	ScanRequested bool
	// LastHistorical is the latest timestamp among Points.
	LastHistorical int64
	// TxIDs are the transaction identities present in the history.
	TxIDs []string
}

type tradeKey struct {
	txID  string
	ts    int64
	price string
}

// LoadHistory turns indexer trade records into an ascending point list.
//
// Trades are deduplicated by (transaction, timestamp, 6-decimal price) and sorted.
// The seed sits at the creation time when that precedes the first trade,
// otherwise one second before it; with no trades it sits at the creation time,
// or at Now when unknown. If ObservedYes differs from the indexer's latest
// price (the 0.5 baseline when empty) by more than threshold, a scan is
// requested and a "sync" point carrying it is appended, unless a confirmed live
// point already landed: that one is newer than the caller's observation.
func LoadHistory(in HistoryInput, threshold float64) HistoryResult {
	if threshold <= 0 {
		threshold = DefaultDivergenceThreshold
	}

	seen := make(map[tradeKey]struct{}, len(in.Trades))
	trades := make([]*domain.TradeRecord, 0, len(in.Trades))
	for _, t := range in.Trades {
		if t == nil {
			continue
		}
		if t.TransactionID != "" && in.Processed != nil && in.Processed(t.TransactionID) {
			continue
		}
		k := tradeKey{txID: t.TransactionID, ts: t.Timestamp, price: t.ExecutedYesPrice.StringFixed(price.KeyPrecision)}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		trades = append(trades, t)
	}
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].Timestamp < trades[j].Timestamp
	})

	var res HistoryResult
	points := make([]domain.PricePoint, 0, len(trades)+2)

	seedTS := in.Now
	if in.Market.HasCreationTime() {
		seedTS = in.Market.CreatedAt
	}
	if len(trades) > 0 && (!in.Market.HasCreationTime() || in.Market.CreatedAt >= trades[0].Timestamp) {
		seedTS = trades[0].Timestamp - 1
	}
	points = append(points, domain.NewPricePoint(seedTS, price.Baseline, domain.ProvenanceSeed))

	for _, t := range trades {
		points = append(points, domain.NewPricePoint(t.Timestamp, price.Probability(t.ExecutedYesPrice), t.TransactionID))
		if t.TransactionID != "" {
			res.TxIDs = append(res.TxIDs, t.TransactionID)
		}
	}

	last := points[len(points)-1]
	reference := price.Baseline
	if len(trades) > 0 {
		reference = last.YesProbability
	}

	if in.ObservedYes != nil && price.Finite(*in.ObservedYes) &&
		math.Abs(*in.ObservedYes-reference) > threshold {
		res.ScanRequested = true
		if in.LastLive == 0 {
			ts := in.Now
			if ts <= last.Timestamp {
				ts = last.Timestamp + 1
			}
			points = append(points, domain.NewPricePoint(ts, *in.ObservedYes, domain.ProvenanceSync))
		}
	}

	res.Points = points
	res.LastHistorical = points[len(points)-1].Timestamp
	return res
}
