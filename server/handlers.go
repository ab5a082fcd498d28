package server

import (
	"errors"
	"strings"

	"devconnect/db"
	"devconnect/logger"
	"devconnect/models"
	"devconnect/protocol"
)

func (s *Server) handleEvent(c *Client, ev protocol.Outbound) {
	switch e := ev.(type) {
	case protocol.RegisterUser:
		s.handleRegisterUser(c, e)
	case protocol.RequestMessageHistory:
		s.handleHistory(c)
	case protocol.SendMessage:
		s.handleMessage(c, e)
	case protocol.RequestPrivateHistory:
		s.handlePrivateHistory(c, e)
	case protocol.SendPrivateMessage:
		s.handlePrivateMessage(c, e)
	default:
		logger.Warn("Unhandled event", "event", ev.Name(), "remote", c.remote)
	}
}

// handleRegisterUser binds the connection to a directory user.
// When the socket carries a session cookie the names must agree.
func (s *Server) handleRegisterUser(c *Client, ev protocol.RegisterUser) {
	user, err := s.db.GetUserByUsername(ev.Username)
	if err != nil {
		if errors.Is(err, db.ErrNoRows) {
			logger.Warn("Register for unknown user", "username", ev.Username, "remote", c.remote)
		} else {
			logger.Error("User lookup failed", "username", ev.Username, "error", err)
		}
		return
	}
	if c.sessionUserID != "" && c.sessionUserID != user.ID {
		logger.Warn("Register does not match session", "username", ev.Username, "remote", c.remote)
		return
	}
	user.Email = ""

	first, left := s.hub.bind(c, user)
	logger.Info("User registered", "username", user.Username, "remote", c.remote)

	if left != "" {
		s.broadcastEvent(protocol.UserDisconnected{UserID: left}, nil)
	}
	s.broadcastEvent(protocol.OnlineUsers{UserIDs: s.hub.online()}, nil)
	if first {
		s.broadcastEvent(protocol.UserConnected{UserID: user.ID}, c)
	}
}

func (s *Server) handleHistory(c *Client) {
	messages, err := s.db.GetPublicMessages(s.config.HistoryLimit)
	if err != nil {
		logger.Error("Failed to load public history", "error", err)
		return
	}
	c.sendEvent(protocol.MessageHistory{Messages: messages})
}

func (s *Server) handleMessage(c *Client, ev protocol.SendMessage) {
	user, ok := s.hub.userOf(c)
	if !ok {
		logger.Warn("Message from unregistered connection", "remote", c.remote)
		return
	}
	msg, ok := normalize(ev.Message, user)
	if !ok {
		return
	}

	if err := s.db.SaveMessage(user.ID, "", msg); err != nil {
		logger.Error("Failed to save message", "username", user.Username, "error", err)
		return
	}

	frame, err := protocol.Encode(protocol.ReceiveMessage{Message: msg})
	if err != nil {
		logger.Error("Failed to encode message", "error", err)
		return
	}
	s.hub.broadcast(frame, nil, true)
}

// handlePrivateHistory answers every request, with an empty list when
// there is nothing to show, so the requester's queue stays aligned.
func (s *Server) handlePrivateHistory(c *Client, ev protocol.RequestPrivateHistory) {
	var messages []models.Message
	if user, ok := s.hub.userOf(c); !ok {
		logger.Warn("Private history from unregistered connection", "remote", c.remote)
	} else {
		var err error
		messages, err = s.db.GetPrivateMessages(user.ID, ev.ToUserID, s.config.HistoryLimit)
		if err != nil {
			logger.Error("Failed to load private history", "username", user.Username, "peer", ev.ToUserID, "error", err)
			messages = nil
		}
	}
	c.sendEvent(protocol.PrivateMessageHistory{Messages: messages})
}

// handlePrivateMessage stores the message and delivers it to the peer.
// The sender gets no echo.
func (s *Server) handlePrivateMessage(c *Client, ev protocol.SendPrivateMessage) {
	user, ok := s.hub.userOf(c)
	if !ok {
		logger.Warn("Private message from unregistered connection", "remote", c.remote)
		return
	}
	msg, ok := normalize(ev.Message, user)
	if !ok {
		return
	}

	if _, err := s.db.GetUserByID(ev.ToUserID); err != nil {
		logger.Warn("Private message to unknown user", "from", user.Username, "to", ev.ToUserID, "error", err)
		return
	}
	if err := s.db.SaveMessage(user.ID, ev.ToUserID, msg); err != nil {
		logger.Error("Failed to save private message", "from", user.Username, "error", err)
		return
	}

	frame, err := protocol.Encode(protocol.PrivateMessage{From: user.ID, Message: msg})
	if err != nil {
		logger.Error("Failed to encode private message", "error", err)
		return
	}
	if !s.hub.sendToUser(ev.ToUserID, frame) {
		logger.Debug("Private message stored for offline user", "to", ev.ToUserID)
	}
}

// disconnect runs when a read pump exits.
func (s *Server) disconnect(c *Client) {
	c.close()
	user, last := s.hub.remove(c)
	if user.ID == "" {
		logger.Debug("Client disconnected", "remote", c.remote)
		return
	}

	logger.Info("User disconnected", "username", user.Username, "remote", c.remote)
	if last {
		s.broadcastEvent(protocol.UserDisconnected{UserID: user.ID}, nil)
		s.broadcastEvent(protocol.OnlineUsers{UserIDs: s.hub.online()}, nil)
	}
}

func (s *Server) broadcastEvent(ev protocol.Inbound, skip *Client) {
	frame, err := protocol.Encode(ev)
	if err != nil {
		logger.Error("Failed to encode event", "event", ev.Name(), "error", err)
		return
	}
	s.hub.broadcast(frame, skip, false)
}

// normalize rejects blank messages and stamps the registered username.
func normalize(msg models.Message, user models.User) (models.Message, bool) {
	if strings.TrimSpace(msg.Text) == "" {
		return msg, false
	}
	msg.Username = user.Username
	return msg, true
}
