package imix

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skillsenselab/harnesskit/connection"
	"github.com/skillsenselab/harnesskit/errors"
	"github.com/skillsenselab/harnesskit/logger"
)

// ErrStaleConnection is reported on the Errors channel when the peer stops
// answering pings.
var ErrStaleConnection = stderrors.New("imix: connection stale, no ping received")

// Message is one inbound simulator message with its local receive time.
type Message struct {
	Data       []byte
	ReceivedAt time.Time
}

// Decode unmarshals the message payload into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Data, v)
}

// Conn is a live WebSocket session with one simulator endpoint.
type Conn struct {
	id   string
	opts options
	log  *logger.Logger

	conn *websocket.Conn

	messages chan Message
	errs     chan error
	done     chan struct{}

	writeMu sync.Mutex

	mu         sync.RWMutex
	connected  bool
	closed     bool
	lastPingAt time.Time
}

type options struct {
	url              string
	token            string
	bufferSize       int
	writeTimeout     time.Duration
	pingInterval     time.Duration
	pingTimeout      time.Duration
	handshakeTimeout time.Duration
}

func newConn(id string, opts options, log *logger.Logger) *Conn {
	return &Conn{
		id:       id,
		opts:     opts,
		log:      log.WithFields(logger.ConnFields(ServiceType, id)),
		messages: make(chan Message, opts.bufferSize),
		errs:     make(chan error, 1),
		done:     make(chan struct{}),
	}
}

func (c *Conn) ID() string          { return c.id }
func (c *Conn) ServiceType() string { return ServiceType }

func (c *Conn) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Healthy reports whether the session is up and the peer answered a ping
// recently.
func (c *Conn) Healthy(ctx context.Context) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return false
	}
	return time.Since(c.lastPingAt) <= c.opts.pingTimeout
}

// connect dials the endpoint and starts the read and heartbeat loops.
func (c *Conn) connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.NotConnected(ServiceType + "/" + c.id)
	}
	c.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: c.opts.handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.opts.url, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.lastPingAt = time.Now()
	c.mu.Unlock()

	conn.SetPingHandler(func(data string) error {
		c.touchPing()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	conn.SetPongHandler(func(string) error {
		c.touchPing()
		return nil
	})

	go c.readLoop()
	go c.heartbeatLoop()

	c.log.Debug("websocket connected", logger.Fields("url", c.opts.url))
	return nil
}

// logon announces the session to the simulator. The endpoint answers with a
// logon acknowledgement on the message channel.
func (c *Conn) logon() error {
	msg := map[string]any{
		"type":       "logon",
		"session_id": c.id,
	}
	if c.opts.token != "" {
		msg["token"] = c.opts.token
	}
	return c.SendJSON(msg)
}

// Close gracefully closes the session. Safe to call more than once.
func (c *Conn) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	close(c.done)

	if conn != nil {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return conn.Close()
	}
	return nil
}

// Send writes raw bytes to the session.
func (c *Conn) Send(data []byte) error {
	c.mu.RLock()
	if !c.connected {
		c.mu.RUnlock()
		return errors.NotConnected(ServiceType + "/" + c.id)
	}
	conn := c.conn
	c.mu.RUnlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(c.opts.writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// SendJSON marshals v and writes it to the session.
func (c *Conn) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.InvalidInput("message", err.Error())
	}
	return c.Send(data)
}

// Messages returns the buffered inbound message channel.
func (c *Conn) Messages() <-chan Message { return c.messages }

// Errors returns the connection error channel.
func (c *Conn) Errors() <-chan error { return c.errs }

func (c *Conn) touchPing() {
	c.mu.Lock()
	c.lastPingAt = time.Now()
	c.mu.Unlock()
}

func (c *Conn) readLoop() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			// Errors after Close are expected teardown noise.
			select {
			case <-c.done:
				return
			default:
				select {
				case c.errs <- err:
				default:
				}
				return
			}
		}

		select {
		case c.messages <- Message{Data: data, ReceivedAt: receivedAt}:
		case <-c.done:
			return
		default:
			c.log.Warn("message buffer full, dropping message")
		}
	}
}

func (c *Conn) heartbeatLoop() {
	ticker := time.NewTicker(c.opts.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			lastPing := c.lastPingAt
			c.mu.RUnlock()

			if conn != nil {
				deadline := time.Now().Add(c.opts.writeTimeout)
				if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
					c.log.Debug("failed to send ping", logger.Fields(logger.FieldError, err.Error()))
				}
			}

			if time.Since(lastPing) > c.opts.pingTimeout {
				c.log.Warn("no ping received, connection stale", logger.Fields(
					"last_ping", lastPing,
					"timeout", c.opts.pingTimeout.String(),
				))
				select {
				case c.errs <- ErrStaleConnection:
				default:
				}
				return
			}
		}
	}
}

var _ connection.Connection = (*Conn)(nil)
var _ connection.HealthChecker = (*Conn)(nil)
