package lookup

import (
	"errors"
	"sort"

	"market-chart-lab/internal/domain"
)

// ErrNoPriceData is returned when the series is empty.
var ErrNoPriceData = errors.New("no price data available")

// PointAt returns the point at or before target (Unix seconds) in an ascending series.
// If no point precedes target, the first point is returned.
// Returns ErrNoPriceData if the series is empty.
func PointAt(target int64, series []domain.PricePoint) (domain.PricePoint, error) {
	if len(series) == 0 {
		return domain.PricePoint{}, ErrNoPriceData
	}

	// First index strictly after target
	i := sort.Search(len(series), func(i int) bool {
		return series[i].Timestamp > target
	})
	if i == 0 {
		return series[0], nil
	}
	return series[i-1], nil
}

// ProbabilityAt returns the yes probability at or before target.
func ProbabilityAt(target int64, series []domain.PricePoint) (float64, error) {
	p, err := PointAt(target, series)
	if err != nil {
		return 0, err
	}
	return p.YesProbability, nil
}

// Range returns the points with from <= timestamp <= to. Zero bounds are open.
// The result shares the series' backing array.
func Range(series []domain.PricePoint, from, to int64) []domain.PricePoint {
	lo := 0
	if from > 0 {
		lo = sort.Search(len(series), func(i int) bool {
			return series[i].Timestamp >= from
		})
	}
	hi := len(series)
	if to > 0 {
		hi = sort.Search(len(series), func(i int) bool {
			return series[i].Timestamp > to
		})
	}
	if lo >= hi {
		return nil
	}
	return series[lo:hi]
}
