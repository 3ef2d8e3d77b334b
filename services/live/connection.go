package live

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Message types.
const (
	TypeWatch    = "watch"
	TypeTime     = "time"
	TypeDivision = KindDivision
	TypeTimer    = KindTimer
	TypeError    = "error"
)

// Message is what the server sends to viewers.
type Message struct {
	Type       string          `json:"type"`
	Division   string          `json:"division,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	ServerTime int64           `json:"serverTime"`
	ClientTime int64           `json:"clientTime,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// ClientMessage is what viewers send. A watch switches the division; a time
// request is answered with the server clock and the echoed client time.
type ClientMessage struct {
	Type       string `json:"type"`
	Division   string `json:"division,omitempty"`
	ClientTime int64  `json:"clientTime,omitempty"`
}

// ServerClock is the authoritative clock stamped on every message.
type ServerClock interface {
	NowMillis() int64
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

// ConnectionManager upgrades viewer connections and binds each to one hub
// subscription.
type ConnectionManager struct {
	hub      *Hub
	clock    ServerClock
	upgrader websocket.Upgrader
	config   ConnectionConfig
}

func NewConnectionManager(hub *Hub, clock ServerClock, config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		hub:   hub,
		clock: clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
	}
}

// Connection is one viewer socket.
type Connection struct {
	ID          string
	Conn        *websocket.Conn
	ConnectedAt time.Time

	manager *ConnectionManager
	sub     *Subscription
	send    chan Message
	done    chan struct{}
	once    sync.Once
}

// Upgrade upgrades an HTTP request and starts serving division.
func (cm *ConnectionManager) Upgrade(w http.ResponseWriter, r *http.Request, division string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return err
	}
	sub := cm.hub.Subscribe(division)
	c := &Connection{
		ID:          sub.ID,
		Conn:        conn,
		ConnectedAt: time.Now(),
		manager:     cm,
		sub:         sub,
		send:        make(chan Message, 16),
		done:        make(chan struct{}),
	}

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.ID).
		Str("division", division).
		Msg("WebSocket connection established")
	return nil
}

func (c *Connection) close() {
	c.once.Do(func() {
		close(c.done)
		c.manager.hub.Unsubscribe(c.sub)
		c.Conn.Close()
		log.Info().Str("connection_id", c.ID).Msg("WebSocket connection closed")
	})
}

func (c *Connection) enqueue(m Message) {
	select {
	case c.send <- m:
	default:
		log.Warn().Str("connection_id", c.ID).Str("type", m.Type).Msg("Send buffer full, dropping message")
	}
}

func (c *Connection) write(m Message) error {
	m.ServerTime = c.manager.clock.NowMillis()
	c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
	return c.Conn.WriteJSON(m)
}

// writePump is the only writer of the socket.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case <-c.sub.Ready():
			for _, snap := range c.sub.Drain() {
				if err := c.write(Message{Type: snap.Kind, Division: snap.Division, Data: snap.Data}); err != nil {
					log.Error().Err(err).Str("connection_id", c.ID).Msg("Failed to write snapshot")
					return
				}
			}
		case m := <-c.send:
			if err := c.write(m); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("Failed to write message")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	defer c.close()

	cfg := c.manager.config
	c.Conn.SetReadLimit(cfg.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("Unexpected WebSocket close error")
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		c.handleClientMessage(raw)
	}
}

func (c *Connection) handleClientMessage(raw []byte) {
	var m ClientMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		c.enqueue(Message{Type: TypeError, Error: "invalid message"})
		return
	}
	switch m.Type {
	case TypeWatch:
		c.manager.hub.Switch(c.sub, m.Division)
		log.Debug().Str("connection_id", c.ID).Str("division", m.Division).Msg("Switched division")
	case TypeTime:
		c.enqueue(Message{Type: TypeTime, ClientTime: m.ClientTime})
	default:
		c.enqueue(Message{Type: TypeError, Error: "unknown message type"})
	}
}
