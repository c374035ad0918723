package controllers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bluehorizon/skydesk/pkg/logger"
	"github.com/bluehorizon/skydesk/pkg/notify"
)

const (
	eventsWriteWait    = 10 * time.Second
	eventsPongWait     = 60 * time.Second
	eventsPingInterval = (eventsPongWait * 9) / 10
	eventsBuffer       = 64
)

type EventSource interface {
	Subscribe(buffer int) (<-chan notify.Event, func())
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Events streams notifier events to a websocket client as JSON frames until
// either side goes away.
func Events(source EventSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "events upgrade failed")
			return
		}
		defer conn.Close()

		events, cancel := source.Subscribe(eventsBuffer)
		defer cancel()

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			conn.SetReadLimit(512)
			_ = conn.SetReadDeadline(time.Now().Add(eventsPongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(eventsPongWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(eventsPingInterval)
		defer ping.Stop()
		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-closed:
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
				if err := conn.WriteJSON(ev); err != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{"event": string(ev.Name), "error": err.Error()}), "events write failed")
					return
				}
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
