package sockets

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ErrClosed = errors.New("closed connection")

type Connection interface {
	Dial(ctx context.Context, url string) error
	Send(msg []byte) error
	// Done is closed once the read loop has stopped.
	Done() <-chan struct{}
	io.Closer
}

type Conn struct {
	ws            *websocket.Conn
	header        http.Header
	sslSkipVerify bool
	pingInterval  time.Duration
	pingMsg       []byte
	onError       func(err error)
	onMessage     func([]byte, Connection)
	onConnected   func(Connection)

	writeMu sync.Mutex
	closed  bool
	done    chan struct{}
	stop    chan struct{}
	once    sync.Once
}

func New(opts ...func(*Conn)) Connection {
	c := &Conn{}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Conn) Dial(ctx context.Context, url string) error {
	dialer := &websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: c.sslSkipVerify,
		},
	}
	conn, res, err := dialer.DialContext(ctx, url, c.header)
	if res != nil && res.Body != nil {
		_ = res.Body.Close()
	}
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	c.ws = conn
	c.closed = false
	c.done = make(chan struct{})
	c.stop = make(chan struct{})
	c.once = sync.Once{}
	c.writeMu.Unlock()

	if c.onConnected != nil {
		c.onConnected(c)
	}
	go c.readLoop(conn, c.done)
	c.setupPing()
	return nil
}

func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) Send(msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed || c.ws == nil {
		return ErrClosed
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
		c.closeLocked()
		if c.onError != nil {
			c.onError(err)
		}
		return err
	}
	return nil
}

// Close sends a close frame and tears the connection down.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed || c.ws == nil {
		return nil
	}
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.closeLocked()
	return nil
}

func (c *Conn) closeLocked() {
	c.closed = true
	c.once.Do(func() { close(c.stop) })
	_ = c.ws.Close()
}

func (c *Conn) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.writeMu.Lock()
			closed := c.closed
			c.writeMu.Unlock()
			if !closed && c.onError != nil {
				c.onError(err)
			}
			return
		}
		if c.onMessage != nil {
			c.onMessage(msg, c)
		}
	}
}

func (c *Conn) setupPing() {
	if c.pingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.pingInterval)
	stop := c.stop
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := c.ping(); err != nil {
					return
				}
			}
		}
	}()
}

func (c *Conn) ping() error {
	if len(c.pingMsg) > 0 {
		return c.Send(c.pingMsg)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}
