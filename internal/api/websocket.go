package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"hidject/internal/inject"
	"hidject/internal/protocol"
	"hidject/internal/switcher"
	"hidject/internal/task"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins as this is a local network tool
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSManager handles WebSocket connections and broadcasts injection events.
// It implements inject.Observer.
type WSManager struct {
	server     *Server
	clients    map[*WebSocketClient]bool
	clientsMu  sync.RWMutex
	broadcast  chan protocol.Message
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	shutdown   chan struct{}
	once       sync.Once
}

// WebSocketClient represents a connected status watcher
type WebSocketClient struct {
	manager *WSManager
	conn    *websocket.Conn
	send    chan []byte
	ip      string
}

func newWSManager(s *Server) *WSManager {
	return &WSManager{
		server:     s,
		clients:    make(map[*WebSocketClient]bool),
		broadcast:  make(chan protocol.Message, 256),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		shutdown:   make(chan struct{}),
	}
}

func (m *WSManager) start() {
	for {
		select {
		case client := <-m.register:
			m.clientsMu.Lock()
			m.clients[client] = true
			n := len(m.clients)
			m.clientsMu.Unlock()
			log.Infof("WS: New client registered from %s. Total clients: %d", client.ip, n)

		case client := <-m.unregister:
			m.clientsMu.Lock()
			if _, ok := m.clients[client]; ok {
				delete(m.clients, client)
				close(client.send)
				log.Infof("WS: Client unregistered from %s. Total clients: %d", client.ip, len(m.clients))
			}
			m.clientsMu.Unlock()

		case message := <-m.broadcast:
			m.broadcastMessage(message)

		case <-m.shutdown:
			m.clientsMu.Lock()
			for client := range m.clients {
				delete(m.clients, client)
				close(client.send)
			}
			m.clientsMu.Unlock()
			return
		}
	}
}

func (m *WSManager) stop() {
	m.once.Do(func() { close(m.shutdown) })
}

func (m *WSManager) broadcastMessage(message protocol.Message) {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		log.Warnf("WS: Failed to marshal broadcast message: %v", err)
		return
	}

	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()

	for client := range m.clients {
		select {
		case client.send <- jsonMsg:
		default:
			close(client.send)
			delete(m.clients, client)
		}
	}
}

// publish queues a message without blocking the caller.
func (m *WSManager) publish(msg protocol.Message) {
	select {
	case m.broadcast <- msg:
	case <-m.shutdown:
	default:
		log.Warnf("WS: Broadcast queue full, dropping %s message", msg.Type)
	}
}

// ClientCount returns the number of connected watchers.
func (m *WSManager) ClientCount() int {
	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()
	return len(m.clients)
}

func (m *WSManager) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WS: Failed to upgrade connection: %v", err)
		return
	}

	client := &WebSocketClient{
		manager: m,
		conn:    conn,
		send:    make(chan []byte, 256),
		ip:      r.RemoteAddr,
	}

	select {
	case m.register <- client:
	case <-m.shutdown:
		conn.Close()
		return
	}

	// Start pump goroutines
	go client.writePump()
	go client.readPump()
}

// readPump drains the connection so control frames are processed.
func (c *WebSocketClient) readPump() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.shutdown:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warnf("WS: Read error: %v", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(50 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage answers application-level pings. Watchers have nothing
// else to say.
func (c *WebSocketClient) handleMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warnf("WS: Invalid message format: %v", err)
		return
	}

	if msg.Type == protocol.TypePing {
		resp, _ := json.Marshal(protocol.Message{Type: protocol.TypePing})
		// send is closed by the hub under the write lock once unregistered
		c.manager.clientsMu.RLock()
		if c.manager.clients[c] {
			select {
			case c.send <- resp:
			default:
			}
		}
		c.manager.clientsMu.RUnlock()
	}
}

// StateChanged broadcasts a state transition.
func (m *WSManager) StateChanged(from, to inject.State) {
	p := protocol.StatePayload{From: from.String(), To: to.String()}
	if m.server != nil && m.server.ctrl != nil {
		st := m.server.ctrl.Status()
		p.Task = st.Task
		p.RunID = st.RunID
	}
	m.publish(protocol.Message{Type: protocol.TypeState, Payload: p})
}

// FrameSent is not broadcast; frames are too frequent for watchers.
func (m *WSManager) FrameSent(protocol.Frame, bool, error) {}

// TaskFinished broadcasts a task outcome.
func (m *WSManager) TaskFinished(t task.Task, outcome inject.Outcome) {
	p := protocol.TaskPayload{Outcome: string(outcome)}
	if t != nil {
		p.Kind = string(t.Kind())
		p.Task = t.String()
	}
	m.publish(protocol.Message{Type: protocol.TypeTask, Payload: p})
}

// BroadcastMode broadcasts an operating mode change.
func (m *WSManager) BroadcastMode(mode switcher.Mode, addr protocol.Address) {
	p := protocol.ModePayload{Mode: string(mode)}
	if !addr.IsZero() {
		p.Address = addr.String()
	}
	m.publish(protocol.Message{Type: protocol.TypeMode, Payload: p})
}
