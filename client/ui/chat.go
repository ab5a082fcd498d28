package ui

import (
	"fmt"
	"strings"
	"time"

	"devconnect/client/chat"
	"devconnect/models"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const emptyChatText = "No messages yet. Start the conversation!"

func (a *App) createChatPane() tview.Primitive {
	a.chatView = tview.NewTextView()
	a.chatView.SetBackgroundColor(ColorBg)
	a.chatView.SetTextColor(ColorFg)
	a.chatView.SetDynamicColors(true)
	a.chatView.SetScrollable(true)
	a.chatView.SetWordWrap(true)
	a.chatView.SetBorder(true)
	a.chatView.SetBorderColor(ColorBorder)
	a.chatView.SetTitleColor(ColorTitle)
	a.chatView.SetTitle(" # public ")

	a.messageInput = tview.NewInputField()
	a.messageInput.SetLabel("> ")
	a.messageInput.SetLabelColor(ColorHighlight)
	a.messageInput.SetFieldBackgroundColor(ColorField)
	a.messageInput.SetFieldTextColor(ColorFg)
	a.messageInput.SetBackgroundColor(ColorBg)
	a.messageInput.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			a.sendMessage()
		}
	})
	a.messageInput.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyPgUp, tcell.KeyPgDn:
			// Scroll chat history without leaving the input.
			handler := a.chatView.InputHandler()
			handler(event, func(p tview.Primitive) {})
			return nil
		}
		return event
	})

	return tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.chatView, 0, 1, false).
		AddItem(a.messageInput, 1, 0, true)
}

// refreshChatView redraws the transcript of the active target.
func (a *App) refreshChatView(view chat.View) {
	if a.chatView == nil {
		return
	}
	a.chatView.SetTitle(targetTitle(view, view.Target, usersByID(view.Users)))
	a.chatView.SetText(renderMessages(view.Messages, view.Me, time.Now()))
	a.chatView.ScrollToEnd()
}

// renderMessages turns the message log into dynamic-colour text with a
// separator each time the local date changes.
func renderMessages(msgs []models.Message, me models.User, now time.Time) string {
	if len(msgs) == 0 {
		return tagStamp + emptyChatText + tagReset
	}

	var sb strings.Builder
	var lastDay string
	for _, msg := range msgs {
		if t, ok := parseTimestamp(msg.Timestamp); ok {
			local := t.In(now.Location())
			if day := local.Format("2006-01-02"); day != lastDay {
				lastDay = day
				fmt.Fprintf(&sb, "%s── %s ──%s\n", tagStamp, formatDateSeparator(local, now), tagReset)
			}
		}

		nameTag := tagOther
		if chat.IsMine(msg, me) {
			nameTag = tagMine
		}
		fmt.Fprintf(&sb, "%s%s%s %s%s:%s %s\n",
			tagStamp, formatClock(msg.Timestamp, now.Location()), tagReset,
			nameTag, tview.Escape(msg.Username), tagReset,
			tview.Escape(msg.Text))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func (a *App) sendMessage() {
	if a.session == nil {
		return
	}
	text := a.messageInput.GetText()
	if a.session.Send(text) {
		a.messageInput.SetText("")
	}
}

func usersByID(users []models.User) map[string]models.User {
	m := make(map[string]models.User, len(users))
	for _, u := range users {
		m[u.ID] = u
	}
	return m
}
