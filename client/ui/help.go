package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const helpText = `
 [yellow]Keys[-]
 ───────────────────────────────────────────────────────────────
   [white]F1[-]       Show this help
   [white]F2[-]       Switch to the public channel
   [white]Tab[-]      Move between the users list and the input
   [white]Enter[-]    Send message / open chat with user
   [white]PgUp/Dn[-]  Scroll the conversation
   [white]F6[-]       Connect / Disconnect
   [white]F8[-]       Log out
   [white]F10/Esc[-]  Quit application

 [yellow]Users[-]
 ───────────────────────────────────────────────────────────────
   [green]●[-] name      User is online
   [gray]○[-] name      User is offline
   [red](3)[-]       Unread private messages from that user

 [yellow]Conversations[-]
 ───────────────────────────────────────────────────────────────
   Public messages appear once the server has relayed them.
   Private messages appear as soon as they are sent.
   The input is disabled while the chat is disconnected.
`

func (a *App) showHelp() {
	helpView := tview.NewTextView()
	helpView.SetText(helpText)
	helpView.SetBackgroundColor(ColorBg)
	helpView.SetTextColor(ColorFg)
	helpView.SetDynamicColors(true)
	helpView.SetBorder(true)
	helpView.SetBorderColor(ColorBorder)
	helpView.SetTitle(" Help ")
	helpView.SetTitleColor(ColorTitle)
	helpView.SetScrollable(true)

	statusBar := tview.NewTextView()
	statusBar.SetBackgroundColor(ColorBar)
	statusBar.SetTextColor(ColorTitle)
	statusBar.SetTextAlign(tview.AlignCenter)
	statusBar.SetText(" ↑↓/PgUp/PgDn: Scroll | Esc/Enter/F1: Close ")

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(helpView, 0, 1, true).
		AddItem(statusBar, 1, 0, false)
	flex.SetBackgroundColor(ColorBg)

	flex.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc, tcell.KeyEnter, tcell.KeyF1:
			a.pages.RemovePage("help")
			a.app.SetFocus(a.messageInput)
			return nil
		}
		return event
	})

	a.pages.AddPage("help", flex, true, true)
}
