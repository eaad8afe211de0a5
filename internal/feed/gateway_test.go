package feed_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oeg-upm/telegram-dataset-builder/internal/feed"
	"github.com/oeg-upm/telegram-dataset-builder/internal/item"
	"github.com/oeg-upm/telegram-dataset-builder/internal/testutil"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *feed.Gateway {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gw, err := feed.NewGateway(&feed.Config{
		GatewayURL:     server.URL,
		RequestTimeout: 5 * time.Second,
		PageSize:       2,
		RateLimit:      1000,
		RateBurst:      1000,
	}, testutil.NewTestLogger())
	require.NoError(t, err)

	return gw
}

// chatItems fabricates a chat of sequentially numbered items.
func chatItems(n int) []item.Item {
	items := make([]item.Item, n)
	for i := range items {
		items[i] = item.Item{
			"id":         float64(i + 1),
			"channel_id": float64(100),
			"date":       "2024-05-01T10:00:00Z",
		}
	}

	return items
}

func serveChat(t *testing.T, items []item.Item) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		afterID, _ := strconv.ParseInt(r.URL.Query().Get("after_id"), 10, 64)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		var page []item.Item

		for _, it := range items {
			id, _ := it.ID()
			if id > afterID && len(page) < limit {
				page = append(page, it)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(feed.MessagesResponse{Items: page}) //nolint:errcheck // test.
	}
}

func TestGateway_FetchNewItems_PagesToEnd(t *testing.T) {
	gw := newTestGateway(t, serveChat(t, chatItems(5)))

	items, cursor, err := gw.FetchNewItems(context.Background(), 100, 0)
	require.NoError(t, err)
	assert.Len(t, items, 5)
	assert.Equal(t, int64(5), cursor)

	// Resume from a stored cursor.
	items, cursor, err = gw.FetchNewItems(context.Background(), 100, 3)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, int64(5), cursor)
}

func TestGateway_FetchNewItems_NothingNew(t *testing.T) {
	gw := newTestGateway(t, serveChat(t, chatItems(3)))

	items, cursor, err := gw.FetchNewItems(context.Background(), 100, 3)
	require.NoError(t, err)
	assert.Nil(t, items)
	assert.Equal(t, int64(0), cursor)
}

func TestGateway_FetchPage_RespectsLimit(t *testing.T) {
	gw := newTestGateway(t, serveChat(t, chatItems(10)))

	items, cursor, err := gw.FetchPage(context.Background(), 100, 0, 3)
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.Equal(t, int64(3), cursor)
}

func TestGateway_FetchItem_NotFound(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := gw.FetchItem(context.Background(), 100, 42)
	assert.True(t, errors.Is(err, feed.ErrNotFound))
}

func TestGateway_FetchItem(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chats/100/messages/42"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": 42, "channel_id": 100, "views": 7}`)
	})

	it, err := gw.FetchItem(context.Background(), 100, 42)
	require.NoError(t, err)

	id, ok := it.ID()
	require.True(t, ok)
	assert.Equal(t, int64(42), id)
}

func TestGateway_FetchLatestItem_EmptyChat(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := gw.FetchLatestItem(context.Background(), 100)
	assert.True(t, errors.Is(err, feed.ErrNotFound))
}

func TestGateway_ListChats(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/channels/some%20channel/chats", r.URL.EscapedPath())
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(feed.ChatsResponse{ChatIDs: []int64{100, 200}}) //nolint:errcheck // test.
	})

	chats, err := gw.ListChats(context.Background(), "some channel")
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 200}, chats)
}

func TestGateway_ServerError(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, _, err := gw.FetchNewItems(context.Background(), 100, 0)
	require.Error(t, err)
	assert.False(t, errors.Is(err, feed.ErrNotFound))
}

func TestGateway_InvalidConfig(t *testing.T) {
	_, err := feed.NewGateway(&feed.Config{}, testutil.NewTestLogger())
	assert.Error(t, err)
}
