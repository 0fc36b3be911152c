package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"market-chart-lab/internal/chart"
	"market-chart-lab/internal/observability"
)

const (
	streamWriteWait = 10 * time.Second
	streamReadLimit = 512
)

// StreamFrame is one message on /v1/stream.
type StreamFrame struct {
	Type     string          `json:"type"` // snapshot | closed
	Snapshot *chart.Snapshot `json:"snapshot,omitempty"`
}

// handleStream pushes a snapshot on connect and after every series change
// until the session closes or the client disconnects. ?since= skips the
// initial snapshot when the client already holds that version.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since")
			return
		}
		since = n
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	observability.StreamClientConnected()
	defer observability.StreamClientDisconnected()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The reader only services control frames and notices disconnects.
	go func() {
		defer cancel()
		conn.SetReadLimit(streamReadLimit)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug().Err(err).Msg("stream client read error")
				}
				return
			}
		}
	}()

	changes := make(chan chart.Snapshot)
	waitErr := make(chan error, 1)
	go func() {
		version := since
		for {
			snap, err := s.chart.WaitChange(ctx, version)
			if err != nil {
				waitErr <- err
				return
			}
			select {
			case changes <- snap:
			case <-ctx.Done():
				return
			}
			version = snap.Version
		}
	}()

	ticker := time.NewTicker(s.ping)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-changes:
			if err := s.writeFrame(conn, StreamFrame{Type: "snapshot", Snapshot: &snap}); err != nil {
				return
			}
		case err := <-waitErr:
			if errors.Is(err, chart.ErrNoSession) || errors.Is(err, chart.ErrControllerStopped) {
				_ = s.writeFrame(conn, StreamFrame{Type: "closed"})
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, err.Error()),
					time.Now().Add(streamWriteWait))
			}
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeFrame(conn *websocket.Conn, frame StreamFrame) error {
	conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteJSON(frame); err != nil {
		s.logger.Debug().Err(err).Msg("stream write failed")
		return err
	}
	return nil
}
