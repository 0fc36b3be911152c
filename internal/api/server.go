// Package api exposes the chart controller over HTTP and WebSocket.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"market-chart-lab/internal/chart"
	"market-chart-lab/internal/domain"
	"market-chart-lab/internal/notify"
	"market-chart-lab/internal/observability"
)

// maxNotifyBody caps POST /v1/notify payloads.
const maxNotifyBody = 64 << 10

// Chart is the controller surface the API drives.
type Chart interface {
	Open(ctx context.Context, req chart.OpenRequest) (chart.Snapshot, error)
	Close(ctx context.Context) error
	Snapshot(ctx context.Context) (chart.Snapshot, error)
	Series(ctx context.Context) ([]domain.PricePoint, error)
	WaitChange(ctx context.Context, since uint64) (chart.Snapshot, error)
}

// Forwarder sends a notification to other processes.
type Forwarder interface {
	Forward(ctx context.Context, msg notify.Message) error
}

// Options configures a Server.
type Options struct {
	Chart Chart
	// Bus receives notifications posted to /v1/notify.
	Bus notify.Publisher
	// Relay, when set, receives posted notifications instead of Bus so that
	// every process subscribed to the relay channel sees them.
	Relay  Forwarder
	Logger *zerolog.Logger
	// PingInterval is the stream keepalive period.
	PingInterval time.Duration
}

// Server serves the chart API.
type Server struct {
	chart    Chart
	bus      notify.Publisher
	relay    Forwarder
	logger   zerolog.Logger
	upgrader websocket.Upgrader
	ping     time.Duration
}

// NewServer creates an API server.
func NewServer(opts Options) *Server {
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	ping := opts.PingInterval
	if ping <= 0 {
		ping = 30 * time.Second
	}
	return &Server{
		chart:  opts.Chart,
		bus:    opts.Bus,
		relay:  opts.Relay,
		logger: logger.With().Str("component", "api").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		ping: ping,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/market", s.handleOpen)
	mux.HandleFunc("DELETE /v1/market", s.handleClose)
	mux.HandleFunc("GET /v1/chart", s.handleChart)
	mux.HandleFunc("GET /v1/series", s.handleSeries)
	mux.HandleFunc("GET /v1/stream", s.handleStream)
	mux.HandleFunc("POST /v1/notify", s.handleNotify)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler())

	return s.recoverMiddleware(mux)
}

// recoverMiddleware turns handler panics into 500 responses.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error().
					Str("path", r.URL.Path).
					Str("panic", fmt.Sprint(err)).
					Bytes("stack", debug.Stack()).
					Msg("handler panic recovered")
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// errorResponse is the JSON body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
