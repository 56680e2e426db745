package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"plantdoctor/internal/logger"
	ws "plantdoctor/internal/services/websocket"
)

var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewWebsocketHandler streams session frames to a viewer. A viewer can send
// a single character (e.g. "q") which the session reads as a key press.
func ViewWebsocketHandler(hub *ws.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(512)
		connection.SetReadDeadline(time.Now().Add(60 * time.Second))
		connection.SetPongHandler(func(appData string) error {
			connection.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})

		hub.Register(connection)
		defer hub.Unregister(connection)

		for {
			_, msg, err := connection.ReadMessage()
			if err != nil {
				logger.Debug("Viewer disconnected: %v", err)
				return
			}
			// Każda wiadomość przedłuża połączenie
			connection.SetReadDeadline(time.Now().Add(60 * time.Second))

			if key := strings.TrimSpace(string(msg)); len(key) == 1 {
				hub.PushKey(int(key[0]))
			}
		}
	}
}
