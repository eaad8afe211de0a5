package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/oeg-upm/telegram-dataset-builder/internal/item"
)

// Compile-time interface compliance check.
var _ Client = (*Gateway)(nil)

// Gateway is an HTTP implementation of Client against a feed gateway exposing
// the chat/message endpoints as JSON.
type Gateway struct {
	cfg        *Config
	logger     logrus.FieldLogger
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGateway creates a gateway client.
func NewGateway(cfg *Config, logger logrus.FieldLogger) (*Gateway, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Gateway{
		cfg:        cfg,
		logger:     logger.WithField("component", "feed"),
		httpClient: cfg.HTTPClient(),
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}, nil
}

// messagesResponse is one page of chat messages from the gateway.
type messagesResponse struct {
	Items []item.Item `json:"items"`
}

// chatsResponse is the chat listing for a channel.
type chatsResponse struct {
	ChatIDs []int64 `json:"chat_ids"`
}

// FetchNewItems fetches every item newer than afterID, paging until the
// gateway returns an empty page.
func (g *Gateway) FetchNewItems(ctx context.Context, chatID, afterID int64) ([]item.Item, int64, error) {
	return g.FetchPage(ctx, chatID, afterID, 0)
}

// FetchPage fetches up to limit items newer than afterID (0 = unbounded). The
// gateway serves pages oldest first; the cursor advances to the last id of
// each page, mirroring how the engine resumes after a restart.
func (g *Gateway) FetchPage(ctx context.Context, chatID, afterID int64, limit int) ([]item.Item, int64, error) {
	var (
		all    []item.Item
		cursor = afterID
		pages  = 0
	)

	for {
		pageSize := g.cfg.PageSize
		if limit > 0 && limit-len(all) < pageSize {
			pageSize = limit - len(all)
		}

		if pageSize <= 0 {
			break
		}

		reqURL := fmt.Sprintf(
			"%s/chats/%d/messages?after_id=%d&limit=%d",
			g.cfg.GatewayURL, chatID, cursor, pageSize,
		)

		var page messagesResponse
		if err := g.getJSON(ctx, reqURL, &page); err != nil {
			return nil, 0, err
		}

		if len(page.Items) == 0 {
			break
		}

		all = append(all, page.Items...)
		pages++

		last, ok := page.Items[len(page.Items)-1].ID()
		if !ok {
			return nil, 0, fmt.Errorf("page item missing id (chat %d)", chatID)
		}

		cursor = last
	}

	if len(all) == 0 {
		return nil, 0, nil
	}

	g.logger.WithFields(logrus.Fields{
		"chat_id": chatID,
		"items":   len(all),
		"pages":   pages,
		"cursor":  cursor,
	}).Debug("Fetched new items")

	return all, cursor, nil
}

// FetchItem fetches a single item by id.
func (g *Gateway) FetchItem(ctx context.Context, chatID, itemID int64) (item.Item, error) {
	var it item.Item

	reqURL := fmt.Sprintf("%s/chats/%d/messages/%d", g.cfg.GatewayURL, chatID, itemID)
	if err := g.getJSON(ctx, reqURL, &it); err != nil {
		return nil, err
	}

	return it, nil
}

// FetchLatestItem fetches the newest item in a chat.
func (g *Gateway) FetchLatestItem(ctx context.Context, chatID int64) (item.Item, error) {
	var it item.Item

	reqURL := fmt.Sprintf("%s/chats/%d/messages/latest", g.cfg.GatewayURL, chatID)
	if err := g.getJSON(ctx, reqURL, &it); err != nil {
		return nil, err
	}

	return it, nil
}

// ListChats resolves a channel name to its chat ids.
func (g *Gateway) ListChats(ctx context.Context, channel string) ([]int64, error) {
	var resp chatsResponse

	reqURL := fmt.Sprintf("%s/channels/%s/chats", g.cfg.GatewayURL, url.PathEscape(channel))
	if err := g.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, err
	}

	return resp.ChatIDs, nil
}

// FetchChatInfo fetches a chat's metadata.
func (g *Gateway) FetchChatInfo(ctx context.Context, chatID int64) (item.Item, error) {
	var info item.Item

	reqURL := fmt.Sprintf("%s/chats/%s", g.cfg.GatewayURL, strconv.FormatInt(chatID, 10))
	if err := g.getJSON(ctx, reqURL, &info); err != nil {
		return nil, err
	}

	return info, nil
}

func (g *Gateway) getJSON(ctx context.Context, reqURL string, v any) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)

		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parse JSON: %w", err)
	}

	return nil
}
