package chat

import (
	"time"

	"devconnect/models"
)

// TimestampLayout matches JavaScript's Date.toISOString in UTC.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// IsMine reports whether msg was authored by me. It is always derived,
// never stored, so a change of identity reclassifies every message.
func IsMine(msg models.Message, me models.User) bool {
	return me.Username != "" && msg.Username == me.Username
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
