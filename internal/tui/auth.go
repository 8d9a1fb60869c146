package tui

import (
	"context"
	"time"

	"github.com/rivo/tview"

	"github.com/pairchat/pairchat/internal/chat"
)

func (a *App) loginPage() tview.Primitive {
	status := tview.NewTextView()
	status.SetTextColor(colorError)

	form := tview.NewForm()
	form.AddInputField("Access code", "", 32, nil, nil)
	form.AddPasswordField("Password", "", 32, '*', nil)
	form.AddButton("Log in", func() {
		code := form.GetFormItemByLabel("Access code").(*tview.InputField).GetText()
		password := form.GetFormItemByLabel("Password").(*tview.InputField).GetText()
		status.SetText("Logging in...")
		go a.login(code, password, status)
	})
	form.AddButton("Quit", func() {
		a.app.Stop()
	})
	form.SetBorder(true)
	form.SetTitle(" pairchat ")
	form.SetTitleColor(colorAccent)

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(tview.NewBox(), 0, 1, false).
		AddItem(form, 11, 0, true).
		AddItem(status, 1, 0, false).
		AddItem(tview.NewBox(), 0, 1, false)
	return flex
}

func (a *App) login(code, password string, status *tview.TextView) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	account, err := a.gw.Login(ctx, code, password)
	if err != nil {
		// Auth failures are user-visible; the form stays up for another try.
		a.app.QueueUpdateDraw(func() {
			status.SetText(err.Error())
		})
		return
	}

	a.app.QueueUpdateDraw(func() {
		a.showMain(account)
	})
}

func (a *App) showMain(account chat.Account) {
	a.startSession(account)
	a.pages.AddPage("main", a.mainPage(), true, true)
	a.pages.SwitchToPage("main")
	go a.refreshFriends()
}
