package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-chart-lab/internal/chart"
	"market-chart-lab/internal/domain"
	"market-chart-lab/internal/notify"
	"market-chart-lab/internal/storage/memory"
)

const testNow = 1700000500

type testEnv struct {
	server *Server
	ctrl   *chart.Controller
	bus    *notify.Bus
	trades *memory.TradeStore
}

func newTestEnv(t *testing.T, relay Forwarder) *testEnv {
	t.Helper()

	nop := zerolog.Nop()
	env := &testEnv{
		bus:    notify.NewBus(&notify.BusOptions{Logger: &nop}),
		trades: memory.NewTradeStore(),
	}
	env.ctrl = chart.NewController(chart.Options{
		Trades: env.trades,
		Bus:    env.bus,
		Clock:  func() time.Time { return time.Unix(testNow, 0) },
		Logger: &nop,
	})
	env.server = NewServer(Options{
		Chart:        env.ctrl,
		Bus:          env.bus,
		Relay:        relay,
		Logger:       &nop,
		PingInterval: time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = env.ctrl.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return env
}

func (e *testEnv) seedTrades(t *testing.T) {
	t.Helper()
	err := e.trades.InsertBulk(context.Background(), []*domain.TradeRecord{
		{MarketID: "0x01", TransactionID: "0xa", Timestamp: 130, ExecutedYesPrice: decimal.RequireFromString("0.6")},
		{MarketID: "0x01", TransactionID: "0xb", Timestamp: 230, ExecutedYesPrice: decimal.RequireFromString("0.4")},
	})
	require.NoError(t, err)
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, r)
	return w
}

func (e *testEnv) open(t *testing.T) chart.Snapshot {
	t.Helper()
	w := e.do(t, http.MethodPost, "/v1/market", `{"marketId":"0x01","createdAt":100}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var snap chart.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	return snap
}

func decodeSeries(t *testing.T, w *httptest.ResponseRecorder) []SeriesPoint {
	t.Helper()
	var points []SeriesPoint
	require.NoError(t, json.NewDecoder(w.Body).Decode(&points))
	return points
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestOpen_Validation(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/v1/market", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/v1/market", `{"marketId":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), chart.ErrInvalidMarket.Error())
}

func TestOpen_ReturnsSnapshot(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedTrades(t)

	snap := env.open(t)
	assert.Equal(t, "0x01", snap.MarketID)
	require.NotEmpty(t, snap.Points)
	last := snap.Points[len(snap.Points)-1]
	require.NotNil(t, last.Yes)
	assert.Equal(t, int64(230), last.Timestamp)
	assert.InDelta(t, 0.4, *last.Yes, 1e-9)
}

func TestSeries_NoSession(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/v1/series", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/v1/chart", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSeries_Queries(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedTrades(t)
	env.open(t)

	w := env.do(t, http.MethodGet, "/v1/series", "")
	require.Equal(t, http.StatusOK, w.Code)
	points := decodeSeries(t, w)
	require.Len(t, points, 3)
	assert.Equal(t, domain.ProvenanceSeed, points[0].Provenance)
	assert.Equal(t, "0xa", points[1].Provenance)
	assert.InDelta(t, 0.4, points[1].No, 1e-9)

	w = env.do(t, http.MethodGet, "/v1/series?at=200", "")
	require.Equal(t, http.StatusOK, w.Code)
	var at SeriesPoint
	require.NoError(t, json.NewDecoder(w.Body).Decode(&at))
	assert.Equal(t, "0xa", at.Provenance)

	w = env.do(t, http.MethodGet, "/v1/series?from=200", "")
	require.Equal(t, http.StatusOK, w.Code)
	points = decodeSeries(t, w)
	require.Len(t, points, 1)
	assert.Equal(t, "0xb", points[0].Provenance)

	w = env.do(t, http.MethodGet, "/v1/series?at=soon", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotify_Malformed(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, body := range []string{
		`{`,
		`{"newYesProbability":0.5}`,
		`{"marketId":"0x01","newYesProbability":"NaN"}`,
	} {
		w := env.do(t, http.MethodPost, "/v1/notify", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestNotify_ReachesChart(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedTrades(t)
	env.open(t)

	w := env.do(t, http.MethodPost, "/v1/notify",
		`{"marketId":"0x01","newYesProbability":"0.55","provenance":"0xc","sourceClassification":"confirmed-event"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"delivered":1}`, w.Body.String())

	require.Eventually(t, func() bool {
		w := env.do(t, http.MethodGet, "/v1/series", "")
		points := decodeSeries(t, w)
		return len(points) == 4 && points[3].Provenance == "0xc" && points[3].Timestamp == testNow
	}, 2*time.Second, 5*time.Millisecond)
}

type recordingForwarder struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (f *recordingForwarder) Forward(_ context.Context, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *recordingForwarder) forwarded() []notify.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Message(nil), f.msgs...)
}

func (f *recordingForwarder) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func TestNotify_UsesRelay(t *testing.T) {
	relay := &recordingForwarder{}
	env := newTestEnv(t, relay)

	w := env.do(t, http.MethodPost, "/v1/notify",
		`{"marketId":"0x01","newYesProbability":0.7,"provenance":"0xd","sourceClassification":"confirmed-event"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	msgs := relay.forwarded()
	require.Len(t, msgs, 1)
	assert.Equal(t, "0xd", msgs[0].Provenance)
	assert.InDelta(t, 0.3, msgs[0].NewNoProbability, 1e-9)

	relay.fail(errors.New("redis down"))
	w = env.do(t, http.MethodPost, "/v1/notify", `{"marketId":"0x01","newYesProbability":0.7}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestClose(t *testing.T) {
	env := newTestEnv(t, nil)
	env.open(t)

	w := env.do(t, http.MethodDelete, "/v1/market", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodDelete, "/v1/market", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, nil)

	r := httptest.NewRequest(http.MethodPut, "/v1/market", bytes.NewReader(nil))
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, r)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
