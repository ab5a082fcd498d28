package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"devconnect/logger"
	"devconnect/models"
	"devconnect/protocol"
)

// ErrSessionClosed is returned by Start once Close has been called.
var ErrSessionClosed = errors.New("chat session closed")

// Options configures a Session. Only Dialer is required.
type Options struct {
	Dialer    Dialer
	Identity  Identity
	Directory DirectoryFetcher
	Reconnect ReconnectPolicy
	// Now stamps outgoing messages. Defaults to time.Now.
	Now func() time.Time
}

// Session is the chat state for one mounted client: the connection,
// presence, directory and the log of the active conversation.
// All state is guarded by mu. Writes to the server happen under sendMu
// only, so reads and snapshots never wait on the network. sendMu is
// always taken before mu. Change listeners run without either.
type Session struct {
	identity Identity
	fetcher  DirectoryFetcher
	now      func() time.Time
	conn     *Conn

	sendMu sync.Mutex

	mu        sync.Mutex
	state     ConnState
	target    Target
	presence  *Presence
	dir       *Directory
	log       *MessageLog
	unread    map[string]int
	pending   []string // peers of outstanding private history requests
	started   bool
	closed    bool
	listeners []func()
}

// New builds an idle session. Nothing is dialled until Start.
func New(opts Options) *Session {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	s := &Session{
		identity: opts.Identity,
		fetcher:  opts.Directory,
		now:      now,
		presence: NewPresence(),
		dir:      NewDirectory(),
		log:      NewMessageLog(),
		unread:   make(map[string]int),
	}
	s.conn = NewConn(opts.Dialer, opts.Reconnect, ConnHandler{
		OnState:    s.onState,
		OnOpen:     s.onOpen,
		OnEvent:    s.onEvent,
		OnBadFrame: s.onBadFrame,
	})
	return s
}

// Start loads the directory and opens the connection. Only the first
// call does anything.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	if s.fetcher != nil {
		go s.loadDirectory(ctx)
	}
	return s.conn.Start(ctx)
}

// Close detaches listeners and shuts the connection down for good.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.state = Disconnected
	s.pending = nil
	s.listeners = nil
	s.mu.Unlock()

	s.conn.Close()
	logger.Debug("Chat session closed")
}

// Done is closed once the connection goroutine has exited.
func (s *Session) Done() <-chan struct{} {
	return s.conn.Done()
}

// OnChange registers fn to run after every state change.
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.listeners = append(s.listeners, fn)
	}
}

func (s *Session) notify() {
	s.mu.Lock()
	listeners := make([]func(), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

func (s *Session) loadDirectory(ctx context.Context) {
	users, err := s.fetcher.Users(ctx)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.mu.Unlock()
		logger.Error("Failed to load user directory", "error", err)
		return
	}
	s.dir.Fill(users)
	s.mu.Unlock()

	logger.Debug("User directory loaded", "users", len(users))
	s.notify()
}

// onState mirrors the transport state. Connected is published by onOpen
// once registration is on the wire.
func (s *Session) onState(st ConnState) {
	if st == Connected {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state = st
	s.pending = nil
	s.mu.Unlock()

	s.notify()
}

// onOpen registers the identity and asks for the active backlog. Any
// Send or SelectTarget racing with it waits on sendMu, so nothing is
// written ahead of register_user.
func (s *Session) onOpen() {
	s.sendMu.Lock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.sendMu.Unlock()
		return
	}
	s.state = Connected
	s.pending = nil
	me, registered := s.me()
	req := s.historyRequest()
	s.mu.Unlock()

	if registered {
		if err := s.conn.Send(protocol.RegisterUser{Username: me.Username}); err != nil {
			logger.Warn("Failed to register identity", "error", err)
		}
	}
	s.sendHistory(req)
	s.sendMu.Unlock()

	s.notify()
}

func (s *Session) onEvent(ev protocol.Inbound) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.handle(ev)
	s.mu.Unlock()

	s.notify()
}

// onBadFrame keeps the private history queue in step when a reply
// could not be decoded: the request it answered is gone either way.
func (s *Session) onBadFrame(err error) {
	var de *protocol.DecodeError
	if !errors.As(err, &de) || de.Event != protocol.EventPrivateHistory {
		return
	}

	s.mu.Lock()
	var peer string
	if !s.closed && len(s.pending) > 0 {
		peer = s.pending[0]
		s.pending = s.pending[1:]
	}
	s.mu.Unlock()

	if peer != "" {
		logger.Warn("Private history reply lost", "peer", peer)
	}
}

// handle applies one server event. Called with mu held.
func (s *Session) handle(ev protocol.Inbound) {
	switch e := ev.(type) {
	case protocol.OnlineUsers:
		s.presence.Replace(e.UserIDs)
	case protocol.UserConnected:
		s.presence.Add(e.UserID)
	case protocol.UserDisconnected:
		s.presence.Remove(e.UserID)
	case protocol.MessageHistory:
		if s.target.IsPublic() {
			s.log.ReplaceAll(e.Messages)
		}
	case protocol.ReceiveMessage:
		if s.target.IsPublic() {
			s.log.Append(e.Message)
		}
	case protocol.PrivateMessageHistory:
		if len(s.pending) == 0 {
			logger.Debug("Dropping unrequested private history")
			return
		}
		peer := s.pending[0]
		s.pending = s.pending[1:]
		if active, ok := s.target.Peer(); ok && active == peer {
			s.log.ReplaceAll(e.Messages)
		} else {
			logger.Debug("Dropping stale private history", "peer", peer)
		}
	case protocol.PrivateMessage:
		if active, ok := s.target.Peer(); ok && active == e.From {
			s.log.Append(e.Message)
		} else {
			s.unread[e.From]++
		}
	default:
		logger.Warn("Unhandled chat event", "event", ev.Name())
	}
}

// me returns the current identity. Called with mu held.
func (s *Session) me() (models.User, bool) {
	if s.identity == nil {
		return models.User{}, false
	}
	return s.identity.CurrentUser()
}

// View is a point-in-time copy of the session for rendering.
type View struct {
	State    ConnState
	Me       models.User
	LoggedIn bool
	Target   Target
	Messages []models.Message
	Online   []string
	Users    []models.User
	Unread   map[string]int
}

// Snapshot copies everything a renderer needs under one lock.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	me, ok := s.me()
	unread := make(map[string]int, len(s.unread))
	for id, n := range s.unread {
		unread[id] = n
	}
	return View{
		State:    s.state,
		Me:       me,
		LoggedIn: ok,
		Target:   s.target,
		Messages: s.log.Messages(),
		Online:   s.presence.Online(),
		Users:    s.dir.All(),
		Unread:   unread,
	}
}

// Connected reports whether the connection is open and its handshake
// under way. Send only works while it is true and never overtakes the
// handshake writes.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Connected
}

// State is the connection state as seen by the session. It reads
// Connecting until the handshake has gone out.
func (s *Session) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Target is the active conversation.
func (s *Session) Target() Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// IsOnline reports whether id is in the presence set.
func (s *Session) IsOnline(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presence.IsOnline(id)
}

// Messages returns a copy of the active conversation log.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Messages()
}

// NextID is the id the next outgoing message will carry.
func (s *Session) NextID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.NextID()
}

// User looks up a directory entry by id.
func (s *Session) User(id string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir.ByID(id)
}

// UserByName looks up a directory entry by username.
func (s *Session) UserByName(username string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir.ByUsername(username)
}

// Unread counts private messages from peerID received while another
// conversation was active.
func (s *Session) Unread(peerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread[peerID]
}
