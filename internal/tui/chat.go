package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/pairchat/pairchat/internal/chat"
	"github.com/pairchat/pairchat/internal/domain"
)

func (a *App) mainPage() tview.Primitive {
	a.friendsList = tview.NewList()
	a.friendsList.ShowSecondaryText(false)
	a.friendsList.SetBorder(true)
	a.friendsList.SetTitle(" Friends ")
	a.friendsList.SetTitleColor(colorAccent)

	a.chatView = tview.NewTextView()
	a.chatView.SetBorder(true)
	a.chatView.SetTitle(" Select a friend ")
	a.chatView.SetDynamicColors(true)
	a.chatView.SetScrollable(true)
	a.chatView.ScrollToEnd()

	a.input = tview.NewInputField()
	a.input.SetLabel("> ")
	a.input.SetFieldWidth(0)
	a.input.SetLabelColor(colorAccent)
	a.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		a.sendCurrent()
	})

	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.chatView, 0, 1, false).
		AddItem(a.input, 1, 0, false)

	flex := tview.NewFlex().
		AddItem(a.friendsList, 28, 0, true).
		AddItem(right, 0, 1, false)

	flex.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyTab:
			if a.friendsList.HasFocus() {
				a.app.SetFocus(a.input)
			} else {
				a.app.SetFocus(a.friendsList)
			}
			return nil
		case tcell.KeyCtrlC:
			a.app.Stop()
			return nil
		}
		return event
	})
	return flex
}

// refreshFriends loads the friend list once and rebuilds the sidebar.
func (a *App) refreshFriends() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	friends, err := a.gw.Friends(ctx)
	if err != nil {
		a.app.QueueUpdateDraw(func() {
			a.chatView.SetText(fmt.Sprintf("[red]failed to load friends: %v", err))
		})
		return
	}

	a.mu.Lock()
	a.friends = friends
	a.mu.Unlock()

	a.app.QueueUpdateDraw(a.updateFriendsList)
}

func (a *App) updateFriendsList() {
	a.mu.Lock()
	friends := append([]domain.Profile(nil), a.friends...)
	a.mu.Unlock()

	a.friendsList.Clear()
	for _, f := range friends {
		friend := f
		a.friendsList.AddItem(friend.Name, "", 0, func() {
			a.openChat(friend)
		})
	}
	if len(friends) == 0 {
		a.friendsList.AddItem("(no friends yet)", "", 0, nil)
	}
}

func (a *App) openChat(friend domain.Profile) {
	a.mu.Lock()
	a.partner = friend
	a.status = chat.StatusUnknown
	a.mu.Unlock()

	a.chatView.SetText("")
	a.updateChatTitle()
	a.app.SetFocus(a.input)

	// SetPartner fetches history and resubscribes; it is too slow for the
	// UI goroutine.
	go a.session.SetPartner(friend.ID)
}

func (a *App) updateChatTitle() {
	a.mu.Lock()
	partner := a.partner
	status := a.status
	a.mu.Unlock()

	if partner.ID == "" {
		return
	}

	marker := "○ offline"
	color := colorOffline
	if status.Online() {
		marker = "● online"
		color = colorOnline
	}
	a.chatView.SetTitle(fmt.Sprintf(" %s ─ %s ", partner.Name, marker))
	a.chatView.SetTitleColor(color)
}

func (a *App) renderMessages(msgs []domain.Message) {
	a.mu.Lock()
	self := a.self
	partner := a.partner
	a.mu.Unlock()

	a.chatView.Clear()
	for _, m := range msgs {
		who := partner.Name
		color := "aqua"
		if m.SenderID == self.ID {
			who = "you"
			color = "yellow"
		}
		body := m.Content
		if m.Kind != domain.KindText && body == "" {
			body = fmt.Sprintf("[%s]", m.Kind)
		}
		fmt.Fprintf(a.chatView, "[%s]%s %s:[-] %s\n",
			color, m.CreatedAt.Local().Format("15:04"), tview.Escape(who), tview.Escape(body))
	}
	a.chatView.ScrollToEnd()
}

func (a *App) sendCurrent() {
	text := a.input.GetText()

	a.mu.Lock()
	partner := a.partner
	a.mu.Unlock()

	if text == "" || partner.ID == "" {
		return
	}
	a.input.SetText("")

	// Send echoes the optimistic entry through OnMessages, which queues a
	// redraw; it must not run on the UI goroutine.
	go a.session.Send(chat.Outbound{
		RecipientID: partner.ID,
		Content:     text,
		Kind:        domain.KindText,
	})
}
