// Package tui implements the terminal chat client: a login form, the
// friends list, and the conversation view, driven by a chat.Session against
// a remote pairchat server.
package tui

import (
	"context"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/pairchat/pairchat/internal/chat"
	"github.com/pairchat/pairchat/internal/domain"
)

var (
	colorOnline  = tcell.ColorGreen
	colorOffline = tcell.ColorGray
	colorAccent  = tcell.ColorAqua
	colorError   = tcell.ColorRed
)

// App is the terminal client application.
type App struct {
	app   *tview.Application
	pages *tview.Pages

	gw      *chat.HTTPGateway
	session *chat.Session
	cancel  context.CancelFunc

	mu      sync.Mutex
	self    chat.Account
	friends []domain.Profile
	partner domain.Profile
	status  chat.Status

	friendsList *tview.List
	chatView    *tview.TextView
	input       *tview.InputField
}

// NewApp creates the client for the given server base URL.
func NewApp(serverURL string) *App {
	return &App{
		app:   tview.NewApplication(),
		pages: tview.NewPages(),
		gw:    chat.NewHTTPGateway(serverURL, ""),
	}
}

// Run starts the UI loop and blocks until the user quits.
func (a *App) Run() error {
	a.pages.AddPage("login", a.loginPage(), true, true)
	a.app.SetRoot(a.pages, true)
	defer a.shutdown()
	return a.app.Run()
}

func (a *App) shutdown() {
	if a.session != nil {
		a.session.Close()
	}
	if a.cancel != nil {
		a.cancel()
	}
}

// startSession wires the chat core to the UI after a successful login.
func (a *App) startSession(account chat.Account) {
	a.mu.Lock()
	a.self = account
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.session = chat.NewSession(a.gw, account.ID, chat.Callbacks{
		OnStatus:   a.onStatus,
		OnMessages: a.onMessages,
	}, chat.Options{})
	a.session.Start(ctx)
}

func (a *App) onStatus(status chat.Status) {
	a.mu.Lock()
	a.status = status
	a.mu.Unlock()

	a.app.QueueUpdateDraw(a.updateChatTitle)
}

func (a *App) onMessages(msgs []domain.Message) {
	a.app.QueueUpdateDraw(func() {
		a.renderMessages(msgs)
	})
}
