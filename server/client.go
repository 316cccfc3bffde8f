package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from the peer.
	maxMessageSize = 64 * 1024
)

// Client is one WebSocket connection. Only WritePump writes to conn.
type Client struct {
	ID     string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	logger *zap.Logger

	closeOnce sync.Once
	closeCode int
	closeText string
	dropped   int
	droppedMu sync.Mutex
}

func NewClient(id string, conn *websocket.Conn, sendBuffer int, logger *zap.Logger) *Client {
	return &Client{
		ID:        id,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
		logger:    logger.With(zap.String("client_id", id)),
		closeCode: websocket.CloseNormalClosure,
	}
}

// Enqueue hands a message to the writer without blocking. It returns false
// when the client is gone or its buffer is full.
func (c *Client) Enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		c.droppedMu.Lock()
		c.dropped++
		c.droppedMu.Unlock()
		c.logger.Warn("send buffer full, dropping message")
		return false
	}
}

// SendJSON marshals v and enqueues it.
func (c *Client) SendJSON(v interface{}) bool {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("failed to marshal message", zap.Error(err))
		return false
	}
	return c.Enqueue(data)
}

// Close asks the writer to flush what is queued, send a close frame and stop.
func (c *Client) Close(code int, text string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeText = text
		close(c.done)
	})
}

// Dropped returns how many outbound messages were discarded.
func (c *Client) Dropped() int {
	c.droppedMu.Lock()
	defer c.droppedMu.Unlock()
	return c.dropped
}

// ReadPump feeds every inbound frame to handle until the connection fails or
// handle returns false.
func (c *Client) ReadPump(handle func(c *Client, messageType int, data []byte) bool) {
	defer c.Close(websocket.CloseNormalClosure, "")

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Info("read error", zap.Error(err))
			}
			return
		}
		if !handle(c, messageType, data) {
			return
		}
	}
}

// WritePump writes queued messages and keepalive pings to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				c.logger.Info("write error", zap.Error(err))
				c.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-c.done:
			c.flush()
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(c.closeCode, c.closeText))
			return
		}
	}
}

// flush writes whatever is still queued, without waiting for more.
func (c *Client) flush() {
	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}
