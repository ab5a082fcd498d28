package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"devconnect/logger"
	"devconnect/protocol"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

var ErrClosed = errors.New("websocket closed")

// Conn is one websocket session carrying protocol frames.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to url. Cookies from jar are sent with the handshake so
// the server can tie the socket to the HTTP login.
func Dial(ctx context.Context, url string, jar http.CookieJar) (*Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
		Jar:              jar,
	}

	ws, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Conn{
		ws:   ws,
		done: make(chan struct{}),
	}
	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.pingLoop()
	logger.Debug("Websocket connected", "url", url)
	return c, nil
}

func (c *Conn) Send(ev protocol.Outbound) error {
	frame, err := protocol.Encode(ev)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, frame)
}

// Receive returns the next event. Frames that fail to decode come back
// as errors wrapping protocol.ErrInvalidFrame or protocol.ErrUnknownEvent
// and the connection stays usable.
func (c *Conn) Receive() (protocol.Inbound, error) {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return nil, ErrClosed
			default:
			}
			return nil, err
		}
		if kind != websocket.TextMessage {
			continue
		}
		return protocol.DecodeInbound(data)
	}
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.write(websocket.CloseMessage, msg)
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) write(kind int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(kind, data)
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				logger.Debug("Websocket ping failed", "error", err)
				return
			}
		}
	}
}
