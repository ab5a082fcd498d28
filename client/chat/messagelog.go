package chat

import "devconnect/models"

// MessageLog is the ordered message sequence of the active conversation.
// Messages are kept in arrival order and never re-sorted.
type MessageLog struct {
	messages []models.Message
	nextID   int64
}

// NewMessageLog returns an empty log with the counter at 0.
func NewMessageLog() *MessageLog {
	return &MessageLog{}
}

// ReplaceAll installs a history snapshot and moves the local sequence
// counter past the highest id in it (0 for an empty snapshot).
func (l *MessageLog) ReplaceAll(history []models.Message) {
	l.messages = make([]models.Message, len(history))
	copy(l.messages, history)

	l.nextID = 0
	for _, m := range history {
		if m.ID != nil && *m.ID+1 > l.nextID {
			l.nextID = *m.ID + 1
		}
	}
}

func (l *MessageLog) Append(msg models.Message) {
	l.messages = append(l.messages, msg)
}

// Clear drops every message. The sequence counter is left alone.
func (l *MessageLog) Clear() {
	l.messages = nil
}

func (l *MessageLog) Len() int {
	return len(l.messages)
}

// Messages returns a copy of the log.
func (l *MessageLog) Messages() []models.Message {
	out := make([]models.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

func (l *MessageLog) NextID() int64 {
	return l.nextID
}

// commitID moves the counter past an id that went out on the wire.
// A history replay may have moved it further already.
func (l *MessageLog) commitID(id int64) {
	if id+1 > l.nextID {
		l.nextID = id + 1
	}
}
