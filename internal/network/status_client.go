package network

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"hidject/internal/protocol"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// StatusClient follows the status feed of a running server.
type StatusClient struct {
	hostAddr string
	token    string
	done     chan struct{}
	once     sync.Once

	// Callbacks
	OnState func(p protocol.StatePayload)
	OnTask  func(p protocol.TaskPayload)
	OnMode  func(p protocol.ModePayload)

	// RetryDelay between reconnection attempts (default 5s).
	RetryDelay time.Duration

	mu          sync.Mutex
	isConnected bool
}

// NewStatusClient creates a client for the server at "host:port".
func NewStatusClient(hostAddr, token string) *StatusClient {
	return &StatusClient{
		hostAddr:   hostAddr,
		token:      token,
		done:       make(chan struct{}),
		RetryDelay: 5 * time.Second,
	}
}

// Start begins the client loop (connect & process)
func (c *StatusClient) Start() {
	go c.loop()
}

func (c *StatusClient) loop() {
	for {
		c.connect()

		select {
		case <-c.done:
			return
		case <-time.After(c.RetryDelay):
			log.Info("Status client: Attempting reconnection...")
		}
	}
}

func (c *StatusClient) connect() {
	u := url.URL{Scheme: "ws", Host: c.hostAddr, Path: "/ws"}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		log.Warnf("Status client: Connection failed: %v", err)
		return
	}
	defer conn.Close()

	c.setConnected(true)
	defer c.setConnected(false)
	log.Infof("Status client: Connected to %s", u.String())

	// Unblock the read on Close.
	connDone := make(chan struct{})
	defer close(connDone)
	go func() {
		select {
		case <-c.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		case <-connDone:
		}
	}()

	c.readPump(conn)
}

func (c *StatusClient) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(10*time.Second))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("Status client: Read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var msg struct {
			Type    protocol.MessageType `json:"type"`
			Payload json.RawMessage      `json:"payload"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warnf("Status client: Invalid message: %v", err)
			continue
		}
		c.handleMessage(msg.Type, msg.Payload)
	}
}

func (c *StatusClient) handleMessage(typ protocol.MessageType, raw json.RawMessage) {
	switch typ {
	case protocol.TypeState:
		var p protocol.StatePayload
		if err := json.Unmarshal(raw, &p); err == nil && c.OnState != nil {
			c.OnState(p)
		}
	case protocol.TypeTask:
		var p protocol.TaskPayload
		if err := json.Unmarshal(raw, &p); err == nil && c.OnTask != nil {
			c.OnTask(p)
		}
	case protocol.TypeMode:
		var p protocol.ModePayload
		if err := json.Unmarshal(raw, &p); err == nil && c.OnMode != nil {
			c.OnMode(p)
		}
	}
}

func (c *StatusClient) setConnected(v bool) {
	c.mu.Lock()
	c.isConnected = v
	c.mu.Unlock()
}

// IsConnected returns true if the feed is connected.
func (c *StatusClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}

// Close stops the client
func (c *StatusClient) Close() {
	c.once.Do(func() { close(c.done) })
}
