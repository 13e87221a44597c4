package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"stockroom/internal/domain/item"
	"stockroom/internal/shared/middleware"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = (pongTimeout * 9) / 10
)

type streamConfig struct {
	upgrader websocket.Upgrader
}

func newStreamConfig(allowedHosts []string) streamConfig {
	return streamConfig{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowedHosts) == 0 {
					return true
				}
				return middleware.IsOriginAllowed(origin, allowedHosts)
			},
		},
	}
}

// StreamError is the last frame sent when the live query fails.
type StreamError struct {
	Error string `json:"error"`
}

// HandleStream upgrades to a WebSocket and sends every snapshot of the
// collection as one JSON array frame until the client leaves or the live
// query fails.
func (h *ItemHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	conn, err := h.stream.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := h.svc.Subscribe(ctx)
	defer sub.Cancel()

	go h.readUntilClosed(conn, cancel)
	go h.ping(ctx, conn)

	h.logger.Info(ctx, "stream opened", "remote", r.RemoteAddr)

	for snap, err := range sub.All(ctx) {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err != nil {
			conn.WriteJSON(StreamError{Error: err.Error()})
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "live query failed"),
				time.Now().Add(writeTimeout))
			h.logger.Warn(ctx, "stream ended by live query failure", "error", err)
			return
		}
		if err := conn.WriteJSON(toItemResponses(snap)); err != nil {
			h.logger.Debug(ctx, "stream write failed", "error", err)
			return
		}
	}

	h.logger.Info(r.Context(), "stream closed", "remote", r.RemoteAddr)
}

// readUntilClosed consumes client frames so control frames are processed,
// and cancels the stream once the connection is gone.
func (h *ItemHandler) readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				h.logger.Debug(context.Background(), "stream read ended", "error", err)
			}
			return
		}
	}
}

func (h *ItemHandler) ping(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

var _ ItemService = (*item.Service)(nil)
