package server

import (
	"errors"
	"sync"
	"time"

	"devconnect/logger"
	"devconnect/models"
	"devconnect/protocol"

	"github.com/gorilla/websocket"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Client is one websocket connection. user is set by register_user and
// guarded by the hub's lock.
type Client struct {
	srv    *Server
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	remote string

	// sessionUserID is the account behind the HTTP session cookie, if any.
	sessionUserID string
	user          *models.User
}

func newClient(srv *Server, conn *websocket.Conn, sessionUserID string) *Client {
	return &Client{
		srv:           srv,
		conn:          conn,
		send:          make(chan []byte, sendBuffer),
		done:          make(chan struct{}),
		remote:        conn.RemoteAddr().String(),
		sessionUserID: sessionUserID,
	}
}

func (c *Client) readPump() {
	defer c.srv.disconnect(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Websocket read error", "remote", c.remote, "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		ev, err := protocol.DecodeOutbound(data)
		if err != nil {
			if errors.Is(err, protocol.ErrUnknownEvent) {
				logger.Debug("Ignoring unknown event", "remote", c.remote, "error", err)
			} else {
				logger.Warn("Bad frame", "remote", c.remote, "error", err)
			}
			continue
		}
		c.srv.handleEvent(c, ev)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.srv.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.srv.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// queue hands frame to the write pump. A client that cannot keep up
// is dropped.
func (c *Client) queue(frame []byte) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- frame:
	case <-c.done:
	default:
		logger.Warn("Send buffer full, dropping client", "remote", c.remote)
		go c.close()
	}
}

func (c *Client) sendEvent(ev protocol.Inbound) {
	frame, err := protocol.Encode(ev)
	if err != nil {
		logger.Error("Failed to encode event", "event", ev.Name(), "error", err)
		return
	}
	c.queue(frame)
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// closeWith sends a close frame with reason before closing.
func (c *Client) closeWith(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.close()
}
