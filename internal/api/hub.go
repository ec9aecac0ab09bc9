package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Viewers are kiosks and the PWA on the local network.
		return true
	},
}

// Envelope wraps every message pushed to the viewers.
type Envelope struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp int64          `json:"timestamp"`
}

type viewerSession struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// ViewerHub is the process-wide registry of connected viewer sessions and
// the broadcast sink the relay publishes to. It is created once at startup
// and torn down on shutdown.
type ViewerHub struct {
	mu       sync.RWMutex
	sessions map[string]*viewerSession
}

func NewViewerHub() *ViewerHub {
	return &ViewerHub{sessions: make(map[string]*viewerSession)}
}

// Register upgrades nothing itself; the caller hands it an upgraded
// connection. The returned channel-backed session starts pumping
// immediately.
func (h *ViewerHub) Register(id string, conn *websocket.Conn) *viewerSession {
	session := &viewerSession{
		id:   id,
		conn: conn,
		send: make(chan []byte, 64),
	}

	h.mu.Lock()
	h.sessions[id] = session
	count := len(h.sessions)
	h.mu.Unlock()

	log.Printf("Viewer connected: %s (total %d)", id, count)
	go session.writePump()
	return session
}

func (h *ViewerHub) Unregister(id string) {
	h.mu.Lock()
	session, ok := h.sessions[id]
	if ok {
		delete(h.sessions, id)
		close(session.send)
	}
	count := len(h.sessions)
	h.mu.Unlock()

	if ok {
		log.Printf("Viewer disconnected: %s (total %d)", id, count)
	}
}

// Broadcast fans an event out to every session. Delivery is fire-and-forget:
// a session with a full send buffer is skipped so one slow viewer cannot
// stall the rest.
func (h *ViewerHub) Broadcast(event string, data map[string]any) {
	envelope := Envelope{
		Type:      event,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		log.Printf("Failed to marshal broadcast %q: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, session := range h.sessions {
		select {
		case session.send <- payload:
		default:
			log.Printf("Dropping broadcast to slow viewer %s", session.id)
		}
	}
}

// Shutdown closes every session. New registrations after shutdown are the
// caller's bug.
func (h *ViewerHub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, session := range h.sessions {
		close(session.send)
		delete(h.sessions, id)
	}
}

func (s *viewerSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection so pongs and close frames are processed.
// Viewers talk back over the REST API, not the socket.
func (s *viewerSession) readPump(onClose func()) {
	defer func() {
		onClose()
		s.conn.Close()
	}()

	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Viewer %s read error: %v", s.id, err)
			}
			return
		}
	}
}
