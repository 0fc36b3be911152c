package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"market-chart-lab/internal/chart"
	"market-chart-lab/internal/domain"
	"market-chart-lab/internal/lookup"
	"market-chart-lab/internal/notify"
	"market-chart-lab/internal/observability"
)

// OpenBody is the POST /v1/market request.
type OpenBody struct {
	MarketID    string   `json:"marketId"`
	CreatedAt   int64    `json:"createdAt,omitempty"`
	ObservedYes *float64 `json:"observedYes,omitempty"`
	ForceScan   bool     `json:"forceScan,omitempty"`
}

// SeriesPoint is a canonical series point on the wire.
type SeriesPoint struct {
	Timestamp  int64   `json:"t"`
	Yes        float64 `json:"yes"`
	No         float64 `json:"no"`
	Provenance string  `json:"provenance"`
}

func toSeriesPoints(points []domain.PricePoint) []SeriesPoint {
	out := make([]SeriesPoint, len(points))
	for i, p := range points {
		out[i] = SeriesPoint{Timestamp: p.Timestamp, Yes: p.YesProbability, No: p.NoProbability, Provenance: p.Provenance}
	}
	return out
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var body OpenBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap, err := s.chart.Open(r.Context(), chart.OpenRequest{
		MarketID:    body.MarketID,
		CreatedAt:   body.CreatedAt,
		ObservedYes: body.ObservedYes,
		ForceScan:   body.ForceScan,
	})
	if err != nil {
		s.writeChartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := s.chart.Close(r.Context()); err != nil {
		s.writeChartError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	snap, err := s.chart.Snapshot(r.Context())
	if err != nil {
		s.writeChartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleSeries returns the canonical series. With ?at= it returns the
// point in effect at that time; from/to bound the returned range.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	at, err := parseUnix(q.Get("at"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid at")
		return
	}
	from, err := parseUnix(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from")
		return
	}
	to, err := parseUnix(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to")
		return
	}

	series, err := s.chart.Series(r.Context())
	if err != nil {
		s.writeChartError(w, err)
		return
	}

	if q.Has("at") {
		p, err := lookup.PointAt(at, series)
		if errors.Is(err, lookup.ErrNoPriceData) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, toSeriesPoints([]domain.PricePoint{p})[0])
		return
	}

	writeJSON(w, http.StatusOK, toSeriesPoints(lookup.Range(series, from, to)))
}

// handleNotify accepts a trade-confirmation notification.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxNotifyBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}
	msg, err := notify.DecodeMessage(data)
	if err != nil {
		observability.RecordMalformed("http")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.relay != nil {
		if err := s.relay.Forward(r.Context(), msg); err != nil {
			s.logger.Error().Err(err).Str("market", msg.MarketID).Msg("forward notification")
			writeError(w, http.StatusBadGateway, "relay unavailable")
			return
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	delivered := 0
	if s.bus != nil {
		delivered = s.bus.Publish(msg)
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"delivered": delivered})
}

func (s *Server) writeChartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chart.ErrInvalidMarket):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chart.ErrNoSession), errors.Is(err, chart.ErrSessionClosed):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chart.ErrControllerStopped):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error().Err(err).Msg("chart request failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func parseUnix(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
