package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"devconnect/client/api"
	"devconnect/logger"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

func (a *App) showAuthDialog() {
	// Form container
	form := tview.NewForm()
	form.SetBackgroundColor(ColorBg)
	form.SetFieldBackgroundColor(ColorField)
	form.SetFieldTextColor(ColorFg)
	form.SetLabelColor(ColorHighlight)
	form.SetButtonBackgroundColor(ColorBar)
	form.SetButtonTextColor(ColorTitle)
	form.SetBorder(true)
	form.SetBorderColor(ColorBorder)
	form.SetTitle(" DevConnect ")
	form.SetTitleColor(ColorTitle)

	statusText := tview.NewTextView()
	statusText.SetBackgroundColor(ColorBg)
	statusText.SetTextColor(tcell.ColorRed)
	statusText.SetTextAlign(tview.AlignCenter)
	statusText.SetDynamicColors(true)

	emailField := tview.NewInputField().SetLabel("Email: ").SetFieldWidth(30)
	passwordField := tview.NewInputField().SetLabel("Password: ").SetFieldWidth(30).SetMaskCharacter('*')
	usernameField := tview.NewInputField().SetLabel("Username: ").SetFieldWidth(30)
	usernameField.SetPlaceholder("register only")

	form.AddFormItem(emailField)
	form.AddFormItem(passwordField)
	form.AddFormItem(usernameField)

	form.AddButton("Login", func() {
		email, password := emailField.GetText(), passwordField.GetText()
		if email == "" || password == "" {
			statusText.SetText("[red]Please enter email and password[-]")
			return
		}
		a.doAuth(statusText, func(ctx context.Context) error {
			_, err := a.api.Login(ctx, email, password)
			return err
		})
	})

	form.AddButton("Register", func() {
		email, password, username := emailField.GetText(), passwordField.GetText(), usernameField.GetText()
		if email == "" || password == "" || username == "" {
			statusText.SetText("[red]Username, email and password are required[-]")
			return
		}
		a.doAuth(statusText, func(ctx context.Context) error {
			_, err := a.api.Register(ctx, username, email, password)
			return err
		})
	})

	form.AddButton("Quit", func() {
		a.app.Stop()
	})

	formFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(form, 0, 1, true).
		AddItem(statusText, 1, 0, false)

	// Create modal-like container
	width := 56
	height := 14

	modal := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			AddItem(nil, 0, 1, false).
			AddItem(formFlex, width, 0, true).
			AddItem(nil, 0, 1, false), height, 0, true).
		AddItem(nil, 0, 1, false)

	a.pages.AddPage("auth", modal, true, true)
	a.app.SetFocus(form)
}

// doAuth runs an auth call off the UI goroutine and opens the main
// screen when it succeeds.
func (a *App) doAuth(statusText *tview.TextView, call func(ctx context.Context) error) {
	statusText.SetText("[yellow]Authenticating...[-]")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := call(ctx)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				logger.Warn("Authentication failed", "error", err)
				statusText.SetText(authErrorText(err))
				return
			}
			a.showMainScreen()
		})
	}()
}

func authErrorText(err error) string {
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		return "[red]Invalid email or password[-]"
	case errors.Is(err, context.DeadlineExceeded):
		return "[red]Server did not answer in time[-]"
	default:
		return fmt.Sprintf("[red]%s[-]", tview.Escape(err.Error()))
	}
}
