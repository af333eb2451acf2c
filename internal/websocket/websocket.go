package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	OrderStatusUpdateType = "ORDER_STATUS_UPDATE"
	NewOrderType          = "NEW_ORDER"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type client struct {
	id       string
	userID   uint
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	stopOnce sync.Once
}

func (c *client) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// Manager tracks live connections per user. Registration changes go through
// the Start loop; sends only take the read lock.
type Manager struct {
	clientsByUser map[uint]map[*client]bool
	register      chan *client
	unregister    chan *client
	done          chan struct{}
	mutex         sync.RWMutex
	log           logrus.FieldLogger
	upgrader      websocket.Upgrader
}

func NewManager(log logrus.FieldLogger) *Manager {
	return &Manager{
		clientsByUser: make(map[uint]map[*client]bool),
		register:      make(chan *client),
		unregister:    make(chan *client),
		done:          make(chan struct{}),
		log:           log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Start runs the registration loop until ctx is done, then closes every connection.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case c := <-m.register:
				m.mutex.Lock()
				if _, ok := m.clientsByUser[c.userID]; !ok {
					m.clientsByUser[c.userID] = make(map[*client]bool)
				}
				m.clientsByUser[c.userID][c] = true
				m.mutex.Unlock()
				m.log.WithFields(logrus.Fields{"client_id": c.id, "user_id": c.userID}).Debug("websocket client registered")

			case c := <-m.unregister:
				m.remove(c)

			case <-ctx.Done():
				close(m.done)
				m.mutex.Lock()
				for _, conns := range m.clientsByUser {
					for c := range conns {
						c.stop()
					}
				}
				m.clientsByUser = make(map[uint]map[*client]bool)
				m.mutex.Unlock()
				return
			}
		}
	}()
}

func (m *Manager) remove(c *client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	conns, ok := m.clientsByUser[c.userID]
	if !ok || !conns[c] {
		return
	}
	delete(conns, c)
	c.stop()
	if len(conns) == 0 {
		delete(m.clientsByUser, c.userID)
	}
	m.log.WithFields(logrus.Fields{"client_id": c.id, "user_id": c.userID}).Debug("websocket client unregistered")
}

// Connections returns how many sockets userID has open.
func (m *Manager) Connections(userID uint) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clientsByUser[userID])
}

// SendToUser queues msg on every connection of userID. Slow clients whose
// buffer is full miss the message.
func (m *Manager) SendToUser(userID uint, msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		m.log.WithError(err).Error("websocket: encode message")
		return
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for c := range m.clientsByUser[userID] {
		select {
		case c.send <- data:
		default:
			m.log.WithFields(logrus.Fields{"client_id": c.id, "user_id": userID}).Warn("websocket send buffer full, dropping message")
		}
	}
}

func (m *Manager) SendOrderStatus(userID, orderID uint, status string) {
	m.SendToUser(userID, &Message{
		Type: OrderStatusUpdateType,
		Payload: map[string]interface{}{
			"order_id": orderID,
			"status":   status,
		},
	})
}

func (m *Manager) SendNewOrder(userID, orderID uint, total float64) {
	m.SendToUser(userID, &Message{
		Type: NewOrderType,
		Payload: map[string]interface{}{
			"order_id": orderID,
			"total":    total,
		},
	})
}

// Handler upgrades an authenticated request. The auth middleware must have
// set "user_id" on the context.
func (m *Manager) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("user_id")
		if userID == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "No autorizado"})
			return
		}

		conn, err := m.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			m.log.WithError(err).Warn("websocket upgrade failed")
			return
		}

		cl := &client{
			id:     uuid.NewString(),
			userID: userID,
			conn:   conn,
			send:   make(chan []byte, sendBuffer),
			done:   make(chan struct{}),
		}
		select {
		case m.register <- cl:
		case <-m.done:
			conn.Close()
			return
		}

		go m.writePump(cl)
		go m.readPump(cl)
	}
}

func (m *Manager) readPump(c *client) {
	defer func() {
		select {
		case m.unregister <- c:
		case <-m.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var data map[string]interface{}
		if err := json.Unmarshal(raw, &data); err != nil {
			continue
		}
		if t, _ := data["type"].(string); t == "ping" {
			pong, _ := json.Marshal(map[string]interface{}{"type": "pong", "time": time.Now().Unix()})
			select {
			case c.send <- pong:
			default:
			}
		}
	}
}

// writePump is the only goroutine writing to c.conn.
func (m *Manager) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
