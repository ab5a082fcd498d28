package ui

import (
	"fmt"
	"time"

	"devconnect/client/chat"
	"devconnect/models"
)

// parseTimestamp reads a wire timestamp; ok is false for anything the
// server did not stamp in the usual layout.
func parseTimestamp(ts string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// formatClock renders a wire timestamp as HH:MM in loc.
func formatClock(ts string, loc *time.Location) string {
	t, ok := parseTimestamp(ts)
	if !ok {
		return "--:--"
	}
	return t.In(loc).Format("15:04")
}

// formatDateSeparator formats date for chat separator
func formatDateSeparator(t, now time.Time) string {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())

	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	case t.Year() == now.Year():
		return t.Format("January 2")
	default:
		return t.Format("January 2, 2006")
	}
}

// displayName is how a user shows up in the sidebar and titles.
func displayName(u models.User) string {
	if u.Username != "" {
		return u.Username
	}
	return u.ID
}

// targetTitle names the chat pane for t.
func targetTitle(view chat.View, t chat.Target, users map[string]models.User) string {
	peer, ok := t.Peer()
	if !ok {
		return " # public "
	}
	name := peer
	if u, found := users[peer]; found {
		name = displayName(u)
	}
	for _, id := range view.Online {
		if id == peer {
			return fmt.Sprintf(" @%s (online) ", name)
		}
	}
	return fmt.Sprintf(" @%s ", name)
}
