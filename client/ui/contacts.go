package ui

import (
	"fmt"

	"devconnect/client/chat"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const publicItemText = "# public"

func (a *App) createUsersList() *tview.List {
	a.usersList = tview.NewList()
	a.usersList.ShowSecondaryText(false)
	a.usersList.SetBackgroundColor(ColorBg)
	a.usersList.SetMainTextColor(ColorFg)
	a.usersList.SetSelectedTextColor(tcell.ColorBlack)
	a.usersList.SetSelectedBackgroundColor(ColorHighlight)
	a.usersList.SetBorder(true)
	a.usersList.SetBorderColor(ColorBorder)
	a.usersList.SetTitle(" Users ")
	a.usersList.SetTitleColor(ColorTitle)
	a.usersList.SetSelectedFunc(func(index int, _, _ string, _ rune) {
		if index < 0 || index >= len(a.targets) || a.session == nil {
			return
		}
		a.session.SelectTarget(a.targets[index])
		a.app.SetFocus(a.messageInput)
	})
	return a.usersList
}

// sidebarItem is one row of the users list.
type sidebarItem struct {
	target chat.Target
	text   string
}

// sidebarItems lists the public channel followed by every other user,
// with a presence dot and the unread count when there is one.
func sidebarItems(view chat.View) []sidebarItem {
	items := []sidebarItem{{target: chat.Public(), text: publicItemText}}

	online := make(map[string]bool, len(view.Online))
	for _, id := range view.Online {
		online[id] = true
	}

	for _, u := range view.Users {
		if view.LoggedIn && u.ID == view.Me.ID {
			continue
		}
		dot := tagOffline + "○" + tagReset
		if online[u.ID] {
			dot = tagOnline + "●" + tagReset
		}
		text := fmt.Sprintf("%s %s", dot, tview.Escape(displayName(u)))
		if n := view.Unread[u.ID]; n > 0 {
			text += fmt.Sprintf(" %s(%d)%s", tagUnread, n, tagReset)
		}
		items = append(items, sidebarItem{target: chat.Private(u.ID), text: text})
	}
	return items
}

func (a *App) updateUsersList(view chat.View) {
	if a.usersList == nil {
		return
	}

	items := sidebarItems(view)
	current := a.usersList.GetCurrentItem()

	a.usersList.Clear()
	a.targets = a.targets[:0]
	selected := 0
	for i, item := range items {
		a.usersList.AddItem(item.text, "", 0, nil)
		a.targets = append(a.targets, item.target)
		if item.target == view.Target {
			selected = i
		}
	}

	// Keep the cursor where the user left it unless the target moved.
	if current >= 0 && current < len(items) && a.app.GetFocus() == a.usersList {
		selected = current
	}
	a.usersList.SetCurrentItem(selected)
}
