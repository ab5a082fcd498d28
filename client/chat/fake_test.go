package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"devconnect/models"
	"devconnect/protocol"
)

var errFakeClosed = errors.New("fake transport closed")

type inbound struct {
	ev   protocol.Inbound
	err  error
	done chan struct{}
}

// fakeTransport is an in-memory Transport. deliver blocks until the
// session has finished handling the event.
type fakeTransport struct {
	in       chan inbound
	closed   chan struct{}
	reading  chan struct{}
	once     sync.Once
	readOnce sync.Once

	mu      sync.Mutex
	sent    []protocol.Outbound
	sendErr error
	last    chan struct{}
	gate    chan struct{}
	entered chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:      make(chan inbound),
		closed:  make(chan struct{}),
		reading: make(chan struct{}),
	}
}

func (f *fakeTransport) Send(ev protocol.Outbound) error {
	f.mu.Lock()
	gate, entered := f.gate, f.entered
	f.mu.Unlock()
	if gate != nil {
		entered <- struct{}{}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	select {
	case <-f.closed:
		return errFakeClosed
	default:
	}
	f.sent = append(f.sent, ev)
	return nil
}

func (f *fakeTransport) Receive() (protocol.Inbound, error) {
	f.mu.Lock()
	if f.last != nil {
		close(f.last)
		f.last = nil
	}
	f.mu.Unlock()
	f.readOnce.Do(func() { close(f.reading) })

	select {
	case item := <-f.in:
		f.mu.Lock()
		f.last = item.done
		f.mu.Unlock()
		return item.ev, item.err
	case <-f.closed:
		return nil, errFakeClosed
	}
}

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeTransport) Sent() []protocol.Outbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Outbound, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	f.sent = nil
	f.mu.Unlock()
}

func (f *fakeTransport) failSends(err error) {
	f.mu.Lock()
	f.sendErr = err
	f.mu.Unlock()
}

// holdSends parks every following Send until release is called. entered
// fires once per parked Send.
func (f *fakeTransport) holdSends() (entered <-chan struct{}, release func()) {
	gate := make(chan struct{})
	ch := make(chan struct{}, 8)
	f.mu.Lock()
	f.gate, f.entered = gate, ch
	f.mu.Unlock()

	return ch, func() {
		f.mu.Lock()
		f.gate, f.entered = nil, nil
		f.mu.Unlock()
		close(gate)
	}
}

func (f *fakeTransport) deliver(t *testing.T, ev protocol.Inbound) {
	t.Helper()
	f.push(t, inbound{ev: ev})
}

func (f *fakeTransport) deliverErr(t *testing.T, err error) {
	t.Helper()
	f.push(t, inbound{err: err})
}

func (f *fakeTransport) push(t *testing.T, item inbound) {
	t.Helper()
	item.done = make(chan struct{})
	select {
	case f.in <- item:
	case <-time.After(2 * time.Second):
		t.Fatal("transport is not being read")
	}
	select {
	case <-item.done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not handled")
	}
}

// drop ends the transport as if the server went away.
func (f *fakeTransport) drop() {
	f.Close()
}

func (f *fakeTransport) waitReading(t *testing.T) {
	t.Helper()
	select {
	case <-f.reading:
	case <-time.After(2 * time.Second):
		t.Fatal("transport was never read")
	}
}

// fakeDialer hands out transports in order and records every dial.
type fakeDialer struct {
	mu     sync.Mutex
	dialed []*fakeTransport
	fail   error
	ch     chan *fakeTransport
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{ch: make(chan *fakeTransport, 8)}
}

func (d *fakeDialer) Dial(ctx context.Context) (Transport, error) {
	d.mu.Lock()
	if d.fail != nil {
		err := d.fail
		d.mu.Unlock()
		return nil, err
	}
	tr := newFakeTransport()
	d.dialed = append(d.dialed, tr)
	d.mu.Unlock()

	d.ch <- tr
	return tr, nil
}

func (d *fakeDialer) next(t *testing.T) *fakeTransport {
	t.Helper()
	select {
	case tr := <-d.ch:
		tr.waitReading(t)
		return tr
	case <-time.After(2 * time.Second):
		t.Fatal("no dial happened")
		return nil
	}
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dialed)
}

type staticIdentity struct {
	user models.User
	ok   bool
}

func (i *staticIdentity) CurrentUser() (models.User, bool) {
	return i.user, i.ok
}

type fetcherFunc func(ctx context.Context) ([]models.User, error)

func (f fetcherFunc) Users(ctx context.Context) ([]models.User, error) {
	return f(ctx)
}

var (
	alice = models.User{ID: "a1", Username: "alice"}
	bob   = models.User{ID: "b1", Username: "bob"}
	carol = models.User{ID: "c1", Username: "carol"}

	fixedNow = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
)

const fixedStamp = "2024-05-01T12:30:00.000Z"

// startSession opens a session as alice and returns it with its transport,
// with the open handshake already cleared from the sent list.
func startSession(t *testing.T) (*Session, *fakeTransport, *fakeDialer) {
	t.Helper()
	dialer := newFakeDialer()
	s := New(Options{
		Dialer:   dialer,
		Identity: &staticIdentity{user: alice, ok: true},
		Now:      func() time.Time { return fixedNow },
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(s.Close)

	tr := dialer.next(t)
	if !s.Connected() {
		t.Fatal("expected session to be connected")
	}
	tr.reset()
	return s, tr, dialer
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func msg(id int64, text, user string) models.Message {
	return models.Message{ID: models.Int64Ptr(id), Text: text, Username: user, Timestamp: fixedStamp}
}
