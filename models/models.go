package models

import "database/sql"

// User is a directory entry: every registered account, online or not.
type User struct {
	ID       string `json:"id" db:"id"`
	Username string `json:"username" db:"username"`
	Email    string `json:"email,omitempty" db:"email"`
}

// Message is a chat message as carried on the wire.
// ID is the sender's local sequence number and may be absent.
type Message struct {
	ID        *int64 `json:"id,omitempty"`
	Text      string `json:"text"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
}

// StoredMessage is a message row kept by the reference server.
// RecipientID is empty for the public channel.
type StoredMessage struct {
	Seq         int64         `db:"seq"`
	LocalID     sql.NullInt64 `db:"local_id"`
	SenderID    string        `db:"sender_id"`
	Username    string        `db:"username"`
	RecipientID string        `db:"recipient_id"`
	Text        string        `db:"text"`
	Timestamp   string        `db:"timestamp"`
}

// Wire converts a stored row back to its wire form.
func (m StoredMessage) Wire() Message {
	msg := Message{
		Text:      m.Text,
		Username:  m.Username,
		Timestamp: m.Timestamp,
	}
	if m.LocalID.Valid {
		id := m.LocalID.Int64
		msg.ID = &id
	}
	return msg
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}
