// Package feed abstracts the message feed the engine ingests from. The engine
// only depends on the Client interface; the gateway implementation speaks to an
// HTTP bridge in front of the actual transport.
package feed

//go:generate mockgen -package mocks -destination mocks/mock_client.go github.com/oeg-upm/telegram-dataset-builder/internal/feed Client

import (
	"context"
	"errors"

	"github.com/oeg-upm/telegram-dataset-builder/internal/item"
)

// ErrNotFound reports that a requested item no longer exists in its chat. It is
// an expected outcome, not a transport failure: the tracker evicts on it.
var ErrNotFound = errors.New("feed: item not found")

// Client retrieves raw items and chat metadata from the feed.
type Client interface {
	// FetchNewItems returns every item with an id strictly greater than
	// afterID, oldest first, paging internally. The returned cursor is the
	// highest id seen, or 0 when there is nothing new.
	FetchNewItems(ctx context.Context, chatID, afterID int64) ([]item.Item, int64, error)

	// FetchPage is the bounded form of FetchNewItems: at most limit items.
	// A limit of 0 means unbounded.
	FetchPage(ctx context.Context, chatID, afterID int64, limit int) ([]item.Item, int64, error)

	// FetchItem returns a single item by id, or ErrNotFound.
	FetchItem(ctx context.Context, chatID, itemID int64) (item.Item, error)

	// FetchLatestItem returns the newest item in a chat, or ErrNotFound for
	// an empty chat.
	FetchLatestItem(ctx context.Context, chatID int64) (item.Item, error)

	// ListChats resolves a channel name to its chat ids.
	ListChats(ctx context.Context, channel string) ([]int64, error)

	// FetchChatInfo returns a chat's metadata attributes.
	FetchChatInfo(ctx context.Context, chatID int64) (item.Item, error)
}
