package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"plantdoctor/internal/logger"
)

// frameMessage is what preview viewers receive.
type frameMessage struct {
	State string `json:"state"`
	Frame string `json:"frame,omitempty"`
}

// HubService fans session frames out to preview viewers and collects the
// keys they send back.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	keys       chan int
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 4),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		keys:       make(chan int, 16),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves the hub until ctx is cancelled, then disconnects every viewer.
func (h *HubService) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", count)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", count)

		case message := <-h.broadcast:
			h.send(message)
		}
	}
}

func (h *HubService) send(message []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Error("Error sending frame: %v", err)
			delete(h.clients, client)
			client.Close()
		}
	}
}

func (h *HubService) shutdown() {
	close(h.done)

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
}

func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues a frame for all viewers. It never blocks the caller;
// when viewers fall behind the frame is dropped.
func (h *HubService) Publish(state string, jpeg []byte) {
	msg := frameMessage{State: state}
	if len(jpeg) > 0 {
		msg.Frame = base64.StdEncoding.EncodeToString(jpeg)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode frame message: %v", err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Debug("Preview queue full - dropping frame")
	}
}

// PushKey records a key sent by a viewer. Keys beyond the queue size are dropped.
func (h *HubService) PushKey(key int) {
	select {
	case h.keys <- key:
	default:
	}
}

// PollKey returns the oldest pending viewer key, or -1.
func (h *HubService) PollKey() int {
	select {
	case k := <-h.keys:
		return k
	default:
		return -1
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
