package wsconn

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var ErrClosed = errors.New("connection closed")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Conn is a websocket connection with a bounded outbound queue drained by a single writer.
type Conn struct {
	id        string
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func New(ws *websocket.Conn, bufferSize int) *Conn {
	if bufferSize < 1 {
		bufferSize = 1
	}

	return &Conn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, bufferSize),
		done: make(chan struct{}),
	}
}

func (c *Conn) Id() string {
	return c.id
}

// Enqueue queues a message without blocking. It reports false when the queue is full or the
// connection is closed, in which case the message is dropped.
func (c *Conn) Enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Outbound exposes queued messages. Only one reader may drain it.
func (c *Conn) Outbound() <-chan []byte {
	return c.send
}

func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// ReadMessage blocks until the next data frame arrives.
func (c *Conn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}

	return data, nil
}

// PrepareRead applies read limits and the pong based read deadline.
func (c *Conn) PrepareRead() {
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// WriteLoop writes queued messages and periodic pings until ctx is done, the connection is
// closed or a write fails.
func (c *Conn) WriteLoop(ctx context.Context) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			return ErrClosed
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return err
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

// Close stops the writer. The underlying socket is closed by whoever owns the read side.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
