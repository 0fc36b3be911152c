package api

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialStream(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/stream" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) StreamFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var frame StreamFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestStream_NoSession(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	conn := dialStream(t, srv, "")
	frame := readFrame(t, conn)
	assert.Equal(t, "closed", frame.Type)
	assert.Nil(t, frame.Snapshot)
}

func TestStream_PushesChanges(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedTrades(t)
	opened := env.open(t)

	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	conn := dialStream(t, srv, "")
	first := readFrame(t, conn)
	require.Equal(t, "snapshot", first.Type)
	require.NotNil(t, first.Snapshot)
	assert.Equal(t, opened.SessionID, first.Snapshot.SessionID)
	assert.Equal(t, opened.Version, first.Snapshot.Version)

	resp, err := http.Post(srv.URL+"/v1/notify", "application/json", strings.NewReader(
		`{"marketId":"0x01","newYesProbability":0.55,"provenance":"0xc","sourceClassification":"confirmed-event"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	next := readFrame(t, conn)
	require.Equal(t, "snapshot", next.Type)
	require.NotNil(t, next.Snapshot)
	assert.Greater(t, next.Snapshot.Version, first.Snapshot.Version)
	last := next.Snapshot.Points[len(next.Snapshot.Points)-1]
	assert.Equal(t, int64(testNow), last.Timestamp)
	require.NotNil(t, last.Yes)
	assert.InDelta(t, 0.55, *last.Yes, 1e-9)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/v1/market", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, "closed", readFrame(t, conn).Type)
}

func TestStream_SinceSkipsKnownVersion(t *testing.T) {
	env := newTestEnv(t, nil)
	opened := env.open(t)

	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	conn := dialStream(t, srv, "?since="+strconv.FormatUint(opened.Version, 10))

	resp, err := http.Post(srv.URL+"/v1/notify", "application/json", strings.NewReader(
		`{"marketId":"0x01","newYesProbability":0.3,"provenance":"0xe","sourceClassification":"block-poll-fallback"}`))
	require.NoError(t, err)
	resp.Body.Close()

	frame := readFrame(t, conn)
	require.NotNil(t, frame.Snapshot)
	assert.Equal(t, opened.Version+1, frame.Snapshot.Version)
}

func TestStream_InvalidSince(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/v1/stream?since=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
