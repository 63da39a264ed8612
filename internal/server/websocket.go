package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/jeongseonghan/iqmodem/internal/logging"
	"github.com/jeongseonghan/iqmodem/internal/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage represents a WebSocket message.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ProgressPayload represents a trial progress update.
type ProgressPayload struct {
	TrialID  string  `json:"trialId"`
	Status   string  `json:"status"`
	Message  string  `json:"message"`
	Progress float64 `json:"progress"` // 0.0 to 1.0
}

// WSHub manages WebSocket connections.
type WSHub struct {
	clients map[*websocket.Conn]*sync.Mutex
	mu      sync.RWMutex
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// AddClient registers a new WebSocket connection.
func (h *WSHub) AddClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = &sync.Mutex{}
	logging.Infof("websocket", "client connected (%d total)", len(h.clients))
}

// RemoveClient removes a WebSocket connection.
func (h *WSHub) RemoveClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; !ok {
		return
	}
	delete(h.clients, conn)
	conn.Close()
	logging.Infof("websocket", "client disconnected (%d remaining)", len(h.clients))
}

// ClientCount returns the number of connected clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a message to all connected clients.
func (h *WSHub) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Errorf("websocket", "marshal error: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn, writeMu := range h.clients {
		// gorilla connections allow one concurrent writer.
		writeMu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		writeMu.Unlock()
		if err != nil {
			logging.Warnf("websocket", "write error: %v", err)
			go h.RemoveClient(conn)
		}
	}
}

// BroadcastProgress sends a trial progress update to all clients.
func (h *WSHub) BroadcastProgress(trialID, status, message string, progress float64) {
	h.Broadcast(WSMessage{
		Type: "progress",
		Payload: ProgressPayload{
			TrialID:  trialID,
			Status:   status,
			Message:  message,
			Progress: progress,
		},
	})
}

// BroadcastStatus sends a status update to all clients.
func (h *WSHub) BroadcastStatus(status, message string) {
	h.Broadcast(WSMessage{
		Type: "status",
		Payload: map[string]string{
			"status":  status,
			"message": message,
		},
	})
}

// BroadcastResult sends a finished trial to all clients.
func (h *WSHub) BroadcastResult(result *protocol.TrialResult) {
	h.Broadcast(WSMessage{
		Type:    "result",
		Payload: result,
	})
}

// BroadcastLog sends a log message to all clients.
func (h *WSHub) BroadcastLog(level, message string) {
	h.Broadcast(WSMessage{
		Type: "log",
		Payload: map[string]string{
			"level":   level,
			"message": message,
		},
	})
}

// ForwardEvents drains the events already queued by a session and relays
// them to clients.
func (h *WSHub) ForwardEvents(events <-chan protocol.SessionEvent) {
	for {
		select {
		case ev := <-events:
			if ev.Result != nil {
				h.BroadcastResult(ev.Result)
				continue
			}
			h.BroadcastProgress(ev.TrialID, ev.Status.String(), ev.Message, ev.Progress)
		default:
			return
		}
	}
}
