package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

func (a *App) showMainScreen() {
	// Remove auth dialog and background
	a.pages.RemovePage("auth")
	a.pages.RemovePage("background")

	mainPage := a.createMainPage()
	a.pages.AddPage("main", mainPage, true, true)

	a.startSession()
	a.app.SetFocus(a.messageInput)
}

func (a *App) createMainPage() tview.Primitive {
	users := a.createUsersList()
	chatPane := a.createChatPane()

	// Connection status view
	a.connectionView = tview.NewTextView()
	a.connectionView.SetBorder(true)
	a.connectionView.SetBorderColor(ColorBorder)
	a.connectionView.SetBackgroundColor(ColorBg)
	a.connectionView.SetTitle(" Connection ")
	a.connectionView.SetTitleColor(ColorTitle)
	a.connectionView.SetTextColor(ColorFg)
	a.connectionView.SetDynamicColors(true)
	a.connectionView.SetTextAlign(tview.AlignCenter)

	// Status bar at bottom
	a.statusBar = tview.NewTextView()
	a.statusBar.SetBackgroundColor(ColorBar)
	a.statusBar.SetTextColor(ColorTitle)
	a.statusBar.SetTextAlign(tview.AlignCenter)

	body := tview.NewFlex().
		AddItem(users, 28, 0, false).
		AddItem(chatPane, 0, 1, true)

	mainFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(body, 0, 1, true).
		AddItem(a.connectionView, 3, 0, false).
		AddItem(a.statusBar, 1, 0, false)
	mainFlex.SetBackgroundColor(ColorBg)

	// Handle keyboard
	mainFlex.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF1:
			a.showHelp()
			return nil
		case tcell.KeyF2:
			a.selectPublic()
			return nil
		case tcell.KeyTab:
			a.toggleFocus()
			return nil
		case tcell.KeyF6:
			a.toggleConnection()
			return nil
		case tcell.KeyF8:
			a.showLogoutDialog()
			return nil
		case tcell.KeyF10, tcell.KeyEsc:
			a.quit()
			return nil
		}
		return event
	})

	return mainFlex
}

func (a *App) selectPublic() {
	if a.session == nil {
		return
	}
	for _, t := range a.targets {
		if t.IsPublic() {
			a.session.SelectTarget(t)
			break
		}
	}
	a.app.SetFocus(a.messageInput)
}

func (a *App) toggleFocus() {
	if a.app.GetFocus() == a.messageInput {
		a.app.SetFocus(a.usersList)
	} else {
		a.app.SetFocus(a.messageInput)
	}
}
