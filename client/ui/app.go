package ui

import (
	"context"

	"devconnect/client/api"
	"devconnect/client/chat"
	"devconnect/client/transport"
	"devconnect/config"
	"devconnect/logger"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// App is the terminal client. Every field is owned by the tview event
// goroutine; session callbacks hop onto it with QueueUpdateDraw.
type App struct {
	app    *tview.Application
	pages  *tview.Pages
	api    *api.Client
	config *config.ClientConfig

	session *chat.Session
	cancel  context.CancelFunc

	usersList      *tview.List
	targets        []chat.Target
	chatView       *tview.TextView
	messageInput   *tview.InputField
	statusBar      *tview.TextView
	connectionView *tview.TextView
}

// NewApp creates a new application instance
func NewApp(cfg *config.ClientConfig, client *api.Client) *App {
	return &App{
		api:    client,
		config: cfg,
	}
}

// Run starts the application
func (a *App) Run() error {
	a.app = tview.NewApplication()
	a.pages = tview.NewPages()

	// Create empty background
	background := tview.NewBox()
	background.SetBackgroundColor(tcell.NewRGBColor(64, 64, 64))
	a.pages.AddPage("background", background, true, true)

	// Show auth dialog on top
	a.showAuthDialog()

	err := a.app.SetRoot(a.pages, true).EnableMouse(false).Run()
	a.stopSession()
	return err
}

// startSession replaces the current chat session with a fresh one.
func (a *App) startSession() {
	a.stopSession()

	var reconnect chat.ReconnectPolicy = chat.NoReconnect
	if a.config.ReconnectAttempts > 0 {
		reconnect = chat.ConstantBackoff(a.config.ReconnectDelay, a.config.ReconnectAttempts)
	}

	s := chat.New(chat.Options{
		Dialer: chat.DialFunc(func(ctx context.Context) (chat.Transport, error) {
			conn, err := transport.Dial(ctx, a.config.ChatURL, a.api.Jar())
			if err != nil {
				return nil, err
			}
			return conn, nil
		}),
		Identity:  a.api,
		Directory: a.api,
		Reconnect: reconnect,
	})
	s.OnChange(func() {
		a.app.QueueUpdateDraw(func() {
			if a.session == s {
				a.refresh()
			}
		})
	})

	ctx, cancel := context.WithCancel(context.Background())
	a.session = s
	a.cancel = cancel
	if err := s.Start(ctx); err != nil {
		logger.Error("Failed to start chat session", "error", err)
	}
	a.refresh()
}

func (a *App) stopSession() {
	if a.session == nil {
		return
	}
	a.session.Close()
	a.cancel()
	a.session = nil
	a.cancel = nil
}

// refresh redraws every widget from one session snapshot.
func (a *App) refresh() {
	var view chat.View
	if a.session != nil {
		view = a.session.Snapshot()
	} else if me, ok := a.api.CurrentUser(); ok {
		view.Me, view.LoggedIn = me, true
	}

	a.updateUsersList(view)
	a.refreshChatView(view)
	a.updateConnectionStatus(view)
	a.updateStatusBarText(view)
	if a.messageInput != nil {
		a.messageInput.SetDisabled(view.State != chat.Connected)
	}
}

// quit exits the application
func (a *App) quit() {
	a.stopSession()
	a.app.Stop()
}
