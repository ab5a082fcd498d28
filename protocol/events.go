package protocol

import (
	"encoding/json"
	"fmt"

	"devconnect/models"
)

// Event names
const (
	EventRegisterUser          = "register_user"
	EventRequestHistory        = "request_message_history"
	EventSendMessage           = "send_message"
	EventRequestPrivateHistory = "request_private_message_history"
	EventPrivateMessage        = "private_message"
	EventOnlineUsers           = "online_users"
	EventUserConnected         = "user_connected"
	EventUserDisconnected      = "user_disconnected"
	EventMessageHistory        = "message_history"
	EventReceiveMessage        = "receive_message"
	EventPrivateHistory        = "private_message_history"
)

// Event is implemented only by the types in this file.
type Event interface {
	Name() string
	payload() any
}

// Outbound events travel client -> server.
type Outbound interface {
	Event
	outbound()
}

// Inbound events travel server -> client.
type Inbound interface {
	Event
	inbound()
}

type RegisterUser struct {
	Username string
}

type RequestMessageHistory struct{}

type SendMessage struct {
	Message models.Message
}

type RequestPrivateHistory struct {
	ToUserID string
}

type SendPrivateMessage struct {
	ToUserID string
	Message  models.Message
}

type OnlineUsers struct {
	UserIDs []string
}

type UserConnected struct {
	UserID string
}

type UserDisconnected struct {
	UserID string
}

type MessageHistory struct {
	Messages []models.Message
}

type ReceiveMessage struct {
	Message models.Message
}

type PrivateMessageHistory struct {
	Messages []models.Message
}

// PrivateMessage is a direct message delivered to its recipient.
// From is the sender's user id.
type PrivateMessage struct {
	From    string
	Message models.Message
}

type privateHistoryRequest struct {
	ToUserID string `json:"toUserId"`
}

type privateOut struct {
	ToUserID string         `json:"toUserId"`
	Message  models.Message `json:"message"`
}

type privateIn struct {
	From    string         `json:"from"`
	Message models.Message `json:"message"`
}

func (RegisterUser) Name() string          { return EventRegisterUser }
func (RequestMessageHistory) Name() string { return EventRequestHistory }
func (SendMessage) Name() string           { return EventSendMessage }
func (RequestPrivateHistory) Name() string { return EventRequestPrivateHistory }
func (SendPrivateMessage) Name() string    { return EventPrivateMessage }
func (OnlineUsers) Name() string           { return EventOnlineUsers }
func (UserConnected) Name() string         { return EventUserConnected }
func (UserDisconnected) Name() string      { return EventUserDisconnected }
func (MessageHistory) Name() string        { return EventMessageHistory }
func (ReceiveMessage) Name() string        { return EventReceiveMessage }
func (PrivateMessageHistory) Name() string { return EventPrivateHistory }
func (PrivateMessage) Name() string        { return EventPrivateMessage }

func (e RegisterUser) payload() any        { return e.Username }
func (RequestMessageHistory) payload() any { return nil }
func (e SendMessage) payload() any         { return e.Message }
func (e RequestPrivateHistory) payload() any {
	return privateHistoryRequest{ToUserID: e.ToUserID}
}
func (e SendPrivateMessage) payload() any {
	return privateOut{ToUserID: e.ToUserID, Message: e.Message}
}
func (e OnlineUsers) payload() any           { return nonNil(e.UserIDs) }
func (e UserConnected) payload() any         { return e.UserID }
func (e UserDisconnected) payload() any      { return e.UserID }
func (e MessageHistory) payload() any        { return nonNil(e.Messages) }
func (e ReceiveMessage) payload() any        { return e.Message }
func (e PrivateMessageHistory) payload() any { return nonNil(e.Messages) }
func (e PrivateMessage) payload() any {
	return privateIn{From: e.From, Message: e.Message}
}

func (RegisterUser) outbound()          {}
func (RequestMessageHistory) outbound() {}
func (SendMessage) outbound()           {}
func (RequestPrivateHistory) outbound() {}
func (SendPrivateMessage) outbound()    {}

func (OnlineUsers) inbound()           {}
func (UserConnected) inbound()         {}
func (UserDisconnected) inbound()      {}
func (MessageHistory) inbound()        {}
func (ReceiveMessage) inbound()        {}
func (PrivateMessageHistory) inbound() {}
func (PrivateMessage) inbound()        {}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Encode renders an event as a frame.
func Encode(ev Event) ([]byte, error) {
	return FormatFrame(ev.Name(), ev.payload())
}

var inboundDecoders = map[string]func(json.RawMessage) (Inbound, error){
	EventOnlineUsers: func(data json.RawMessage) (Inbound, error) {
		var ids []string
		err := decodeData(data, &ids)
		return OnlineUsers{UserIDs: ids}, err
	},
	EventUserConnected: func(data json.RawMessage) (Inbound, error) {
		var id string
		err := decodeData(data, &id)
		return UserConnected{UserID: id}, err
	},
	EventUserDisconnected: func(data json.RawMessage) (Inbound, error) {
		var id string
		err := decodeData(data, &id)
		return UserDisconnected{UserID: id}, err
	},
	EventMessageHistory: func(data json.RawMessage) (Inbound, error) {
		var msgs []models.Message
		err := decodeData(data, &msgs)
		return MessageHistory{Messages: msgs}, err
	},
	EventReceiveMessage: func(data json.RawMessage) (Inbound, error) {
		var msg models.Message
		err := decodeData(data, &msg)
		return ReceiveMessage{Message: msg}, err
	},
	EventPrivateHistory: func(data json.RawMessage) (Inbound, error) {
		var msgs []models.Message
		err := decodeData(data, &msgs)
		return PrivateMessageHistory{Messages: msgs}, err
	},
	EventPrivateMessage: func(data json.RawMessage) (Inbound, error) {
		var p privateIn
		err := decodeData(data, &p)
		return PrivateMessage{From: p.From, Message: p.Message}, err
	},
}

var outboundDecoders = map[string]func(json.RawMessage) (Outbound, error){
	EventRegisterUser: func(data json.RawMessage) (Outbound, error) {
		var name string
		err := decodeData(data, &name)
		return RegisterUser{Username: name}, err
	},
	EventRequestHistory: func(json.RawMessage) (Outbound, error) {
		return RequestMessageHistory{}, nil
	},
	EventSendMessage: func(data json.RawMessage) (Outbound, error) {
		var msg models.Message
		err := decodeData(data, &msg)
		return SendMessage{Message: msg}, err
	},
	EventRequestPrivateHistory: func(data json.RawMessage) (Outbound, error) {
		var req privateHistoryRequest
		err := decodeData(data, &req)
		return RequestPrivateHistory{ToUserID: req.ToUserID}, err
	},
	EventPrivateMessage: func(data json.RawMessage) (Outbound, error) {
		var p privateOut
		err := decodeData(data, &p)
		return SendPrivateMessage{ToUserID: p.ToUserID, Message: p.Message}, err
	},
}

// DecodeInbound parses a server -> client frame.
func DecodeInbound(raw []byte) (Inbound, error) {
	f, err := ParseFrame(raw)
	if err != nil {
		return nil, err
	}
	dec, ok := inboundDecoders[f.Event]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, f.Event)
	}
	ev, err := dec(f.Data)
	if err != nil {
		return nil, &DecodeError{Event: f.Event, Err: err}
	}
	return ev, nil
}

// DecodeOutbound parses a client -> server frame.
func DecodeOutbound(raw []byte) (Outbound, error) {
	f, err := ParseFrame(raw)
	if err != nil {
		return nil, err
	}
	dec, ok := outboundDecoders[f.Event]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, f.Event)
	}
	ev, err := dec(f.Data)
	if err != nil {
		return nil, &DecodeError{Event: f.Event, Err: err}
	}
	return ev, nil
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	return nil
}
