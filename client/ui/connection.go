package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"devconnect/client/api"
	"devconnect/client/chat"
	"devconnect/logger"

	"github.com/rivo/tview"
)

// connectionText is the one-line summary shown in the connection box.
func connectionText(state chat.ConnState, url string) string {
	url = tview.Escape(url)
	switch state {
	case chat.Connected:
		return fmt.Sprintf("[green]● Connected to %s[-]", url)
	case chat.Connecting:
		return fmt.Sprintf("[yellow]◌ Connecting to %s...[-]", url)
	default:
		return fmt.Sprintf("[red]○ Disconnected from %s[-]", url)
	}
}

func (a *App) updateConnectionStatus(view chat.View) {
	if a.connectionView == nil {
		return
	}
	text := connectionText(view.State, a.config.ChatURL)
	if view.LoggedIn {
		text += fmt.Sprintf(" [gray]│ %s[-]", tview.Escape(displayName(view.Me)))
	}
	a.connectionView.SetText(text)
}

func (a *App) setConnectionError(err string) {
	if a.connectionView == nil {
		return
	}
	a.connectionView.SetText(fmt.Sprintf("[red]✗ Error: %s[-]", tview.Escape(err)))
}

func (a *App) updateStatusBarText(view chat.View) {
	if a.statusBar == nil {
		return
	}
	if a.session != nil {
		a.statusBar.SetText(" F1:Help | F2:Public | Tab:Focus | F6:Disconnect | F8:Logout | F10:Quit ")
	} else {
		a.statusBar.SetText(" F1:Help | F6:Connect | F8:Logout | F10:Quit ")
	}
}

// toggleConnection closes the live session, or checks the login cookie
// is still good and opens a new one.
func (a *App) toggleConnection() {
	if a.session != nil {
		a.connectionView.SetText("[yellow]Disconnecting...[-]")
		a.stopSession()
		a.refresh()
		return
	}

	a.connectionView.SetText("[yellow]Checking session...[-]")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_, err := a.api.Me(ctx)
		a.app.QueueUpdateDraw(func() {
			switch {
			case errors.Is(err, api.ErrUnauthorized):
				a.backToAuth()
			case err != nil:
				logger.Warn("Session check failed", "error", err)
				a.setConnectionError(fmt.Sprintf("Session check failed: %v", err))
			default:
				a.startSession()
			}
		})
	}()
}

// backToAuth tears the main screen down and shows the login form again.
func (a *App) backToAuth() {
	a.stopSession()
	a.pages.RemovePage("main")
	a.usersList, a.chatView, a.messageInput = nil, nil, nil
	a.statusBar, a.connectionView = nil, nil
	a.showAuthDialog()
}
