package chat

import (
	"strings"

	"devconnect/logger"
	"devconnect/models"
	"devconnect/protocol"
)

// SelectTarget makes t the active conversation. Selecting the active
// target does nothing. Otherwise the log is cleared before the new
// history is requested.
func (s *Session) SelectTarget(t Target) {
	s.sendMu.Lock()
	s.mu.Lock()
	if s.closed || t == s.target {
		s.mu.Unlock()
		s.sendMu.Unlock()
		return
	}
	s.log.Clear()
	s.target = t
	if peer, ok := t.Peer(); ok {
		delete(s.unread, peer)
	}
	req := s.historyRequest()
	s.mu.Unlock()

	s.sendHistory(req)
	s.sendMu.Unlock()

	s.notify()
}

// backlogRequest is a history request built under mu and written
// after it is released.
type backlogRequest struct {
	ev   protocol.Outbound
	peer string // empty for the public channel
}

// historyRequest builds the backlog request for the active target and
// queues the peer of a private one. It returns nil when nothing may be
// sent. Called with sendMu and mu held.
func (s *Session) historyRequest() *backlogRequest {
	if s.state != Connected {
		return nil
	}
	if _, ok := s.me(); !ok {
		return nil
	}

	peer, private := s.target.Peer()
	if !private {
		return &backlogRequest{ev: protocol.RequestMessageHistory{}}
	}
	// queued before the write so the reply can never beat it
	s.pending = append(s.pending, peer)
	return &backlogRequest{ev: protocol.RequestPrivateHistory{ToUserID: peer}, peer: peer}
}

// sendHistory writes req. A private request that did not go out is
// taken off the queue again. Called with sendMu held and mu released.
func (s *Session) sendHistory(req *backlogRequest) {
	if req == nil {
		return
	}
	err := s.conn.Send(req.ev)
	if err == nil {
		return
	}
	if req.peer == "" {
		logger.Warn("Failed to request message history", "error", err)
		return
	}
	logger.Warn("Failed to request private history", "peer", req.peer, "error", err)

	s.mu.Lock()
	if n := len(s.pending); n > 0 && s.pending[n-1] == req.peer {
		s.pending = s.pending[:n-1]
	}
	s.mu.Unlock()
}

// Send dispatches text to the active target. It reports false when the
// text is blank, the session has not finished its open handshake, there
// is no identity, or the write failed. The local id is only used up by
// a write that succeeded.
//
// Public messages show up through the server echo. Private messages are
// appended right away because the server does not echo them back.
func (s *Session) Send(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	s.sendMu.Lock()
	s.mu.Lock()
	if s.closed || s.state != Connected {
		s.mu.Unlock()
		s.sendMu.Unlock()
		return false
	}
	me, ok := s.me()
	if !ok {
		s.mu.Unlock()
		s.sendMu.Unlock()
		return false
	}

	id := s.log.NextID()
	msg := models.Message{
		ID:        models.Int64Ptr(id),
		Text:      text,
		Username:  me.Username,
		Timestamp: formatTimestamp(s.now()),
	}
	peer, private := s.target.Peer()
	s.mu.Unlock()

	var ev protocol.Outbound = protocol.SendMessage{Message: msg}
	if private {
		ev = protocol.SendPrivateMessage{ToUserID: peer, Message: msg}
	}
	if err := s.conn.Send(ev); err != nil {
		s.sendMu.Unlock()
		logger.Warn("Failed to send message", "peer", peer, "error", err)
		return false
	}

	// sendMu keeps the target fixed until here.
	s.mu.Lock()
	s.log.commitID(id)
	if private && !s.closed {
		s.log.Append(msg)
	}
	s.mu.Unlock()
	s.sendMu.Unlock()

	if private {
		s.notify()
	}
	return true
}
