package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// registerWSRoute serves the interview monitor socket. Each client receives
// a connection event and then the hub's live feed until it disconnects.
func registerWSRoute(mux *http.ServeMux, hub *Hub, log logrus.FieldLogger) {
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.WithError(err).Warn("monitor socket upgrade failed")
			return
		}
		defer func() { _ = conn.Close() }()
		log.WithField("remote", r.RemoteAddr).Debug("monitor client connected")

		connectionEvent := ConnectionEvent{
			Event:     newEvent("connection", time.Now().UTC()),
			Connected: true,
		}
		if payload, err := json.Marshal(connectionEvent); err == nil {
			_ = conn.WriteMessage(websocket.TextMessage, payload)
		}

		ch := hub.Subscribe()
		defer hub.Unsubscribe(ch)

		for msg := range ch {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.WithField("remote", r.RemoteAddr).Debug("monitor client disconnected")
				return
			}
		}
	})
}
