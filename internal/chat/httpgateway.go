package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pairchat/pairchat/internal/auth"
	"github.com/pairchat/pairchat/internal/domain"
	"github.com/pairchat/pairchat/internal/realtime"
)

// HTTPGateway talks to the pairchat server over its HTTP API and realtime
// websocket endpoint, authenticated by a session token.
type HTTPGateway struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPGateway creates a gateway for the given server base URL. The token
// may be empty; Login fills it in.
func NewHTTPGateway(baseURL, token string) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Account is the logged-in user as returned by the server.
type Account struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	AccessCode string `json:"access_code"`
	AvatarURL  string `json:"avatar_url,omitempty"`
}

// Login exchanges an access code + password for a session. The session token
// from the response cookie is kept for all subsequent calls.
func (g *HTTPGateway) Login(ctx context.Context, accessCode, password string) (Account, error) {
	payload := map[string]string{"access_code": accessCode, "password": password}
	data, err := json.Marshal(payload)
	if err != nil {
		return Account{}, fmt.Errorf("marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/login", bytes.NewReader(data))
	if err != nil {
		return Account{}, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Account{}, fmt.Errorf("login: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		return Account{}, fmt.Errorf("login: %s", apiErr.Error)
	}

	for _, c := range resp.Cookies() {
		if c.Name == auth.SessionCookieName && c.Value != "" {
			g.token = c.Value
		}
	}
	if g.token == "" {
		return Account{}, fmt.Errorf("login: no session cookie in response")
	}

	var body struct {
		User Account `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Account{}, fmt.Errorf("decode login response: %w", err)
	}
	return body.User, nil
}

// Friends returns the caller's friend list.
func (g *HTTPGateway) Friends(ctx context.Context) ([]domain.Profile, error) {
	var body struct {
		Friends []domain.Profile `json:"friends"`
	}
	if err := g.do(ctx, http.MethodGet, "/api/friends", nil, &body); err != nil {
		return nil, err
	}
	return body.Friends, nil
}

// History returns the full ordered message history with a friend.
func (g *HTTPGateway) History(ctx context.Context, friendID string) ([]domain.Message, error) {
	var body struct {
		Messages []domain.Message `json:"messages"`
	}
	endpoint := "/api/messages?friend_id=" + url.QueryEscape(friendID)
	if err := g.do(ctx, http.MethodGet, endpoint, nil, &body); err != nil {
		return nil, err
	}
	return body.Messages, nil
}

// Send persists a message.
func (g *HTTPGateway) Send(ctx context.Context, out Outbound) (domain.Message, error) {
	var body struct {
		Message domain.Message `json:"message"`
	}
	if err := g.do(ctx, http.MethodPost, "/api/messages", out, &body); err != nil {
		return domain.Message{}, err
	}
	return body.Message, nil
}

// Heartbeat upserts the caller's presence record.
func (g *HTTPGateway) Heartbeat(ctx context.Context, activeChatWith string) error {
	payload := map[string]string{"active_chat_with": activeChatWith}
	return g.do(ctx, http.MethodPost, "/api/presence", payload, nil)
}

// Presence returns a user's presence record. A missing or partial response
// is returned as nil, never an error the caller must branch on.
func (g *HTTPGateway) Presence(ctx context.Context, userID string) (*domain.Presence, error) {
	var body struct {
		Presence *domain.Presence `json:"presence"`
	}
	endpoint := "/api/presence?user_id=" + url.QueryEscape(userID)
	if err := g.do(ctx, http.MethodGet, endpoint, nil, &body); err != nil {
		return nil, err
	}
	if body.Presence == nil || body.Presence.LastSeen.IsZero() {
		return nil, nil
	}
	return body.Presence, nil
}

// Connect opens the realtime websocket channel.
func (g *HTTPGateway) Connect(ctx context.Context) (Subscription, error) {
	wsURL := strings.Replace(g.baseURL, "http", "ws", 1) + "/ws/chat"
	header := http.Header{}
	header.Set("Cookie", auth.SessionCookieName+"="+g.token)
	c, err := realtime.Dial(ctx, wsURL, header)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, payload, out any) error {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: g.token})

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// A malformed body degrades to the zero value rather than failing
		// the caller; every consumer treats it as an empty result.
		return nil
	}
	return nil
}
