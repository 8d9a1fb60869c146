// Package stickers provides the emoji/sticker search catalog backing the
// message composer. With an API key configured it proxies a remote sticker
// search provider; otherwise, and whenever the provider fails, it serves a
// built-in fallback set.
package stickers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pairchat/pairchat/internal/config"
)

// Sticker is one catalog entry: either a remote image or an inline
// character from the fallback set.
type Sticker struct {
	ID        string `json:"id"`
	URL       string `json:"url,omitempty"`
	Character string `json:"character,omitempty"`
	Title     string `json:"title,omitempty"`
}

// Fallback is the built-in sticker set served when no provider is
// configured or the provider is unreachable.
var Fallback = []Sticker{
	{ID: "fb-1", Character: "🎉"},
	{ID: "fb-2", Character: "😂"},
	{ID: "fb-3", Character: "😎"},
	{ID: "fb-4", Character: "🔥"},
	{ID: "fb-5", Character: "😻"},
	{ID: "fb-6", Character: "👍"},
	{ID: "fb-7", Character: "👏"},
	{ID: "fb-8", Character: "💯"},
}

// Service fetches stickers from the configured provider.
type Service struct {
	cfg    config.StickerConfig
	client *http.Client
}

// NewService creates a sticker service.
func NewService(cfg config.StickerConfig) *Service {
	return &Service{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// providerResponse matches the remote search API's response shape. Only the
// fields we use are decoded; anything missing degrades to empty values.
type providerResponse struct {
	Data []struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Images struct {
			FixedWidth struct {
				URL string `json:"url"`
			} `json:"fixed_width"`
		} `json:"images"`
	} `json:"data"`
}

// Search returns stickers matching the query, plus the provider name. A
// missing key or provider failure yields the fallback set, never an error.
func (s *Service) Search(ctx context.Context, query string) ([]Sticker, string) {
	if s.cfg.APIKey == "" {
		return Fallback, "fallback"
	}

	results, err := s.search(ctx, query)
	if err != nil || len(results) == 0 {
		return Fallback, "fallback"
	}
	return results, "remote"
}

func (s *Service) search(ctx context.Context, query string) ([]Sticker, error) {
	if strings.TrimSpace(query) == "" {
		query = "funny"
	}

	endpoint := s.cfg.BaseURL + "?" + url.Values{
		"api_key": {s.cfg.APIKey},
		"q":       {query},
		"limit":   {strconv.Itoa(s.cfg.Limit)},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build sticker request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sticker provider request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sticker provider status %d", resp.StatusCode)
	}

	var body providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode sticker response: %w", err)
	}

	stickers := make([]Sticker, 0, len(body.Data))
	for _, item := range body.Data {
		if item.Images.FixedWidth.URL == "" {
			continue
		}
		stickers = append(stickers, Sticker{
			ID:    item.ID,
			URL:   item.Images.FixedWidth.URL,
			Title: item.Title,
		})
	}
	return stickers, nil
}
