package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/feed"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/mw"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Auth is by bearer token, never cookies
	CheckOrigin: func(*http.Request) bool { return true },
}

// Feed streams the caller's changes over a websocket. The subscription is
// opened before the upgrade, so a failure can still be reported as HTTP.
func Feed(d deps.Deps) http.HandlerFunc {
	ping := d.WSPingInterval
	if ping <= 0 {
		ping = 30 * time.Second
	}
	writeTimeout := d.WSWriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	return func(w http.ResponseWriter, r *http.Request) {
		owner := mw.UserID(r.Context())
		log := d.Logger.With(logger.String("user_id", owner))

		sub, err := d.Feed.Subscribe(r.Context(), domain.OwnerFilter(owner))
		if err != nil {
			log.Error("failed to open feed subscription", logger.Error(err))
			mw.WriteError(w, http.StatusServiceUnavailable, "change feed unavailable")
			return
		}
		defer sub.Close()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug("websocket upgrade failed", logger.Error(err))
			return
		}
		defer conn.Close()

		// Pongs keep the read side alive; reads also surface client closes
		_ = conn.SetReadDeadline(time.Now().Add(2 * ping))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(2 * ping))
		})
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					sub.Close()
					return
				}
			}
		}()

		ticker := time.NewTicker(ping)
		defer ticker.Stop()

		for {
			select {
			case st := <-sub.Statuses():
				if err := writeFrame(conn, writeTimeout, feed.StatusFrame(st)); err != nil {
					return
				}
				if !st.Connected() {
					closeConn(conn, writeTimeout, string(st))
					return
				}
			case c := <-sub.Changes():
				if err := writeFrame(conn, writeTimeout, feed.ChangeFrame(c)); err != nil {
					log.Debug("websocket write failed", logger.Error(err))
					return
				}
			case <-ticker.C:
				deadline := time.Now().Add(writeTimeout)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			case <-sub.Done():
				// Flush a terminal status if one is queued
				select {
				case st := <-sub.Statuses():
					_ = writeFrame(conn, writeTimeout, feed.StatusFrame(st))
				default:
				}
				closeConn(conn, writeTimeout, string(domain.StatusClosed))
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, timeout time.Duration, f feed.Frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	return conn.WriteJSON(f)
}

func closeConn(conn *websocket.Conn, timeout time.Duration, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(timeout))
}
