package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"devconnect/logger"
	"devconnect/protocol"
)

var (
	// ErrClosed is returned by Start after Close.
	ErrClosed         = errors.New("connection closed")
	ErrAlreadyStarted = errors.New("connection already started")
)

// ConnState is the lifecycle of the underlying transport.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ReconnectPolicy decides whether to dial again after the connection
// is lost. attempt counts failures since the last successful open,
// starting at 1.
type ReconnectPolicy func(attempt int) (time.Duration, bool)

// NoReconnect leaves the connection down after the first drop.
func NoReconnect(int) (time.Duration, bool) {
	return 0, false
}

// ConstantBackoff waits d between attempts and gives up after max
// consecutive failures. max <= 0 retries forever.
func ConstantBackoff(d time.Duration, max int) ReconnectPolicy {
	return func(attempt int) (time.Duration, bool) {
		if max > 0 && attempt > max {
			return 0, false
		}
		return d, true
	}
}

// ConnHandler receives the connection lifecycle. Callbacks run on the
// connection goroutine and are never called with internal locks held.
type ConnHandler struct {
	OnState func(ConnState)
	// OnOpen runs once per successful (re)open, before any event is read.
	OnOpen  func()
	OnEvent func(protocol.Inbound)
	// OnBadFrame gets frames the read loop skipped because they did not
	// decode. The connection stays up.
	OnBadFrame func(error)
}

// Conn owns the single transport to the messaging server.
type Conn struct {
	dialer  Dialer
	policy  ReconnectPolicy
	handler ConnHandler

	mu     sync.Mutex
	tr     Transport
	state  ConnState
	cancel context.CancelFunc
	closed bool
	done   chan struct{}
}

// NewConn returns an idle connection. A nil policy means NoReconnect.
func NewConn(dialer Dialer, policy ReconnectPolicy, handler ConnHandler) *Conn {
	if policy == nil {
		policy = NoReconnect
	}
	return &Conn{
		dialer:  dialer,
		policy:  policy,
		handler: handler,
		done:    make(chan struct{}),
	}
}

// Start dials in the background. It may be called once.
func (c *Conn) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.cancel != nil {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(ctx)
	return nil
}

// Done is closed when the connection goroutine has exited.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// State reports the transport state. It flips to Connected before
// OnOpen runs.
func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Send writes one event on the current transport.
func (c *Conn) Send(ev protocol.Outbound) error {
	c.mu.Lock()
	tr := c.tr
	c.mu.Unlock()

	if tr == nil {
		return ErrNotConnected
	}
	return tr.Send(ev)
}

// Close stops reconnecting and closes the transport. It does not wait
// for the connection goroutine; use Done for that.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cancel := c.cancel
	tr := c.tr
	c.tr = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	} else {
		close(c.done)
	}
	if tr != nil {
		if err := tr.Close(); err != nil {
			logger.Debug("Error closing chat transport", "error", err)
		}
	}
}

func (c *Conn) run(ctx context.Context) {
	defer close(c.done)

	attempt := 0
	for {
		opened, err := c.connectOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if opened {
			attempt = 0
		}
		attempt++

		if err != nil {
			logger.Warn("Chat connection lost", "error", err, "attempt", attempt)
		}
		delay, ok := c.policy(attempt)
		if !ok {
			logger.Info("Chat connection down, not reconnecting")
			return
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (c *Conn) connectOnce(ctx context.Context) (bool, error) {
	c.setState(Connecting)

	tr, err := c.dialer.Dial(ctx)
	if err != nil {
		c.setState(Disconnected)
		return false, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		tr.Close()
		return false, ErrClosed
	}
	c.tr = tr
	c.mu.Unlock()

	logger.Info("Chat connection established")
	c.setState(Connected)
	if c.handler.OnOpen != nil {
		c.handler.OnOpen()
	}

	err = c.readLoop(tr)

	c.mu.Lock()
	if c.tr == tr {
		c.tr = nil
	}
	c.mu.Unlock()
	tr.Close()

	c.setState(Disconnected)
	return true, err
}

func (c *Conn) readLoop(tr Transport) error {
	for {
		ev, err := tr.Receive()
		if err != nil {
			if errors.Is(err, protocol.ErrUnknownEvent) || errors.Is(err, protocol.ErrInvalidFrame) {
				logger.Warn("Dropping inbound frame", "error", err)
				if c.handler.OnBadFrame != nil {
					c.handler.OnBadFrame(err)
				}
				continue
			}
			return err
		}
		if c.handler.OnEvent != nil {
			c.handler.OnEvent(ev)
		}
	}
}

func (c *Conn) setState(st ConnState) {
	c.mu.Lock()
	c.state = st
	c.mu.Unlock()

	if c.handler.OnState != nil {
		c.handler.OnState(st)
	}
}
