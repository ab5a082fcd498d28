package ui

import (
	"context"
	"time"

	"devconnect/logger"

	"github.com/rivo/tview"
)

func (a *App) showLogoutDialog() {
	modal := tview.NewModal()
	modal.SetText("Log out and close the chat?")
	modal.SetBackgroundColor(ColorBg)
	modal.SetTextColor(ColorFg)
	modal.SetButtonBackgroundColor(ColorBar)
	modal.SetButtonTextColor(ColorTitle)
	modal.AddButtons([]string{"Logout", "Cancel"})
	modal.SetDoneFunc(func(buttonIndex int, buttonLabel string) {
		a.pages.RemovePage("dialog")
		if buttonLabel != "Logout" {
			a.app.SetFocus(a.messageInput)
			return
		}

		a.stopSession()
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := a.api.Logout(ctx); err != nil {
				logger.Warn("Logout failed", "error", err)
			}
		}()
		a.backToAuth()
	})

	a.pages.AddPage("dialog", modal, true, true)
}
