package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pairchat/pairchat/internal/domain"
	"github.com/pairchat/pairchat/internal/realtime"
)

// Options tune the session's timers. Zero values take the defaults.
type Options struct {
	HeartbeatInterval    time.Duration
	PresencePollInterval time.Duration
	MessagePollInterval  time.Duration
	StaleAfter           time.Duration
	Now                  func() time.Time
}

func (o *Options) withDefaults() {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 10 * time.Second
	}
	if o.PresencePollInterval <= 0 {
		o.PresencePollInterval = 8 * time.Second
	}
	if o.MessagePollInterval <= 0 {
		o.MessagePollInterval = 3 * time.Second
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 30 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Callbacks deliver state changes to the UI layer. They are invoked without
// internal locks held and must not block.
type Callbacks struct {
	OnStatus   func(Status)
	OnMessages func([]domain.Message)
}

// Session coordinates one user's chat client: the heartbeat emitter, the
// presence resolver, the message reconciler, and the realtime subscriptions,
// all against a Gateway.
//
// Execution is cooperative and event-driven: timers, poll results, and
// realtime frames interleave under one mutex. Switching partners bumps a
// generation counter; in-flight results from the previous partner are
// ignored when they land.
//
// Start must be called before Send. A partner selected before Start is
// recorded but not fetched or subscribed until the session runs.
type Session struct {
	gw     Gateway
	selfID string
	cb     Callbacks
	opts   Options

	hb     *Heartbeat
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	forcePresence chan struct{}

	mu         sync.Mutex
	gen        int
	partner    string
	visible    bool
	resolver   *Resolver
	recon      *Reconciler
	sub        Subscription
	lastStatus Status
}

// NewSession creates a session for the local user.
func NewSession(gw Gateway, selfID string, cb Callbacks, opts Options) *Session {
	opts.withDefaults()
	return &Session{
		gw:            gw,
		selfID:        selfID,
		cb:            cb,
		opts:          opts,
		hb:            NewHeartbeat(gw.Heartbeat, opts.HeartbeatInterval),
		resolver:      NewResolver(selfID, opts.StaleAfter, opts.Now),
		recon:         NewReconciler(),
		visible:       true,
		lastStatus:    StatusUnknown,
		forcePresence: make(chan struct{}, 1),
	}
}

// Start begins the heartbeat and poll timers. The session is idle until a
// partner is selected with SetPartner.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	partner := s.partner
	s.mu.Unlock()

	s.hb.Start(s.ctx, partner)

	s.wg.Add(2)
	go s.presencePollLoop()
	go s.messagePollLoop()

	if partner != "" {
		s.loadPartner(partner)
	}
}

// SetPartner switches the active conversation. The previous partner's
// realtime subscriptions are torn down, presence resolution resets to
// unknown, history is fetched, and new subscriptions are established.
// Failures are non-fatal: the poll timers backstop both history and
// presence on their next tick.
func (s *Session) SetPartner(partnerID string) {
	s.mu.Lock()
	s.gen++
	s.partner = partnerID
	s.resolver.SetPartner(partnerID)
	s.recon = NewReconciler()
	s.lastStatus = StatusUnknown
	oldSub := s.sub
	s.sub = nil
	started := s.ctx != nil
	s.mu.Unlock()

	if oldSub != nil {
		if err := oldSub.Close(); err != nil {
			slog.Debug("closing previous subscription", "error", err)
		}
	}

	// Propagate the switch promptly rather than waiting out the interval.
	s.hb.SetPartner(partnerID)
	s.notifyMessages()

	// Before Start the selection is only recorded; Start picks it up.
	if partnerID == "" || !started {
		return
	}
	s.loadPartner(partnerID)
}

// loadPartner fetches history and establishes the realtime subscriptions
// for a partner, discarding results if the partner changed meanwhile.
func (s *Session) loadPartner(partnerID string) {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	if history, err := s.gw.History(s.ctx, partnerID); err != nil {
		slog.Debug("history fetch failed, poll will recover", "error", err)
	} else {
		s.mu.Lock()
		if gen == s.gen {
			s.recon.Replace(history)
		}
		s.mu.Unlock()
		s.notifyMessages()
	}

	s.connect(gen, partnerID)
	s.pokePresence()
}

func (s *Session) connect(gen int, partnerID string) {
	sub, err := s.gw.Connect(s.ctx)
	if err != nil {
		slog.Debug("realtime connect failed, polling only", "error", err)
		return
	}

	// One logical subscription per concern: the presence registry, inbound
	// messages where I am the recipient, and messages where I am the sender
	// to catch cross-device echoes.
	setup := []error{
		sub.Subscribe("presence", "", "", ""),
		sub.Subscribe("messages:recipient", "messages", "recipient_id", s.selfID),
		sub.Subscribe("messages:sender", "messages", "sender_id", s.selfID),
		sub.Track(realtime.PresenceMeta{UserID: s.selfID, ActiveChatWith: partnerID}),
	}
	for _, serr := range setup {
		if serr != nil {
			slog.Debug("realtime setup failed, polling only", "error", serr)
			_ = sub.Close()
			return
		}
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		_ = sub.Close()
		return
	}
	s.sub = sub
	s.mu.Unlock()

	s.wg.Add(1)
	go s.pump(sub, gen)
}

// pump drains one subscription's events until it closes.
func (s *Session) pump(sub Subscription, gen int) {
	defer s.wg.Done()
	for frame := range sub.Events() {
		switch frame.Type {
		case realtime.FramePresence:
			s.applyRegistry(gen, frame.State)
		case realtime.FrameInsert:
			var msg domain.Message
			if err := json.Unmarshal(frame.Row, &msg); err != nil {
				slog.Debug("dropping malformed insert row", "error", err)
				continue
			}
			s.applyInsert(gen, msg)
		}
	}
}

func (s *Session) applyRegistry(gen int, state []realtime.PresenceMeta) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.resolver.ApplyRegistry(state)
	s.mu.Unlock()
	s.notifyStatus()
}

func (s *Session) applyInsert(gen int, msg domain.Message) {
	s.mu.Lock()
	if gen != s.gen || s.partner == "" || !msg.Between(s.selfID, s.partner) {
		s.mu.Unlock()
		return
	}
	changed := s.recon.Apply(msg)
	s.mu.Unlock()
	if changed {
		s.notifyMessages()
	}
}

// Send appends an optimistic placeholder and forwards the message. On
// confirmation the placeholder is replaced one-for-one by the server
// message; on failure it stays visible unconfirmed.
func (s *Session) Send(out Outbound) {
	s.mu.Lock()
	gen := s.gen
	pending := domain.Message{
		ID:            uuid.NewString(),
		SenderID:      s.selfID,
		RecipientID:   out.RecipientID,
		Content:       out.Content,
		Kind:          out.Kind,
		AttachmentRef: out.AttachmentRef,
		CreatedAt:     s.opts.Now(),
	}
	s.recon.AppendPending(pending)
	s.mu.Unlock()
	s.notifyMessages()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		msg, err := s.gw.Send(s.ctx, out)
		if err != nil {
			slog.Debug("send failed, placeholder stays unconfirmed", "error", err)
			return
		}
		s.mu.Lock()
		if gen == s.gen {
			s.recon.Confirm(msg)
		}
		s.mu.Unlock()
		s.notifyMessages()
	}()
}

// SetVisible gates the poll timers on viewport visibility. Regaining
// visibility forces an immediate presence check.
func (s *Session) SetVisible(visible bool) {
	s.mu.Lock()
	was := s.visible
	s.visible = visible
	s.mu.Unlock()

	if visible && !was {
		s.pokePresence()
	}
}

// Status returns the current resolved presence of the active partner.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolver.Status()
}

// Messages returns the reconciled message sequence.
func (s *Session) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recon.Messages()
}

// Close tears the session down: timers stopped, presence untracked, the
// subscription closed. Outstanding work never outlives Close.
func (s *Session) Close() {
	s.mu.Lock()
	s.gen++
	sub := s.sub
	s.sub = nil
	s.resolver.SetPartner("")
	s.mu.Unlock()

	if sub != nil {
		if err := sub.Close(); err != nil {
			slog.Debug("closing subscription", "error", err)
		}
	}
	s.hb.Stop()
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Session) pokePresence() {
	select {
	case s.forcePresence <- struct{}{}:
	default:
	}
}

func (s *Session) presencePollLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.PresencePollInterval)
	defer ticker.Stop()

	for {
		forced := false
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		case <-s.forcePresence:
			forced = true
		}
		s.pollPresence(forced)
	}
}

func (s *Session) pollPresence(forced bool) {
	s.mu.Lock()
	gen, partner, visible := s.gen, s.partner, s.visible
	s.mu.Unlock()

	// Polls are suspended while the viewport is hidden, except the one
	// forced on regaining focus.
	if partner == "" || (!visible && !forced) {
		return
	}

	p, err := s.gw.Presence(s.ctx, partner)
	if err != nil {
		slog.Debug("presence poll failed", "error", err)
		return
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.resolver.ApplyPoll(p)
	s.mu.Unlock()
	s.notifyStatus()
}

func (s *Session) messagePollLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.MessagePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		gen, partner, visible := s.gen, s.partner, s.visible
		s.mu.Unlock()

		if partner == "" || !visible {
			continue
		}

		history, err := s.gw.History(s.ctx, partner)
		if err != nil {
			slog.Debug("message poll failed", "error", err)
			continue
		}

		s.mu.Lock()
		added := 0
		if gen == s.gen {
			added = s.recon.Merge(history)
		}
		s.mu.Unlock()
		if added > 0 {
			s.notifyMessages()
		}
	}
}

func (s *Session) notifyStatus() {
	if s.cb.OnStatus == nil {
		return
	}
	s.mu.Lock()
	status := s.resolver.Status()
	changed := status != s.lastStatus
	s.lastStatus = status
	s.mu.Unlock()
	if changed {
		s.cb.OnStatus(status)
	}
}

func (s *Session) notifyMessages() {
	if s.cb.OnMessages == nil {
		return
	}
	s.mu.Lock()
	msgs := s.recon.Messages()
	s.mu.Unlock()
	s.cb.OnMessages(msgs)
}
