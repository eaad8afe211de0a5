// Package tracker maintains the rolling set of recently published items whose
// mutable attributes are re-observed every tick. Entries live until their
// observation window ends or the feed reports them gone; every material change
// is emitted as a historical record for the batch store.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oeg-upm/telegram-dataset-builder/internal/feed"
	"github.com/oeg-upm/telegram-dataset-builder/internal/item"
	"github.com/oeg-upm/telegram-dataset-builder/internal/project"
	"github.com/oeg-upm/telegram-dataset-builder/internal/state"
)

// Entry is one tracked item: the last known snapshot and when tracking began.
type Entry struct {
	Snapshot  item.Item `json:"snapshot"`
	FirstSeen time.Time `json:"first_seen"`
}

// Window owns the durable tracking map.
type Window struct {
	log       logrus.FieldLogger
	state     state.Store
	feed      feed.Client
	window    time.Duration // how long an item stays tracked after publication
	staleness time.Duration // max item age at ingestion to be tracked at all
	bucket    time.Duration // observation interval encoded into historical keys

	mu      sync.Mutex
	entries map[string]*Entry
}

// NewWindow creates a tracking window.
func NewWindow(
	log logrus.FieldLogger,
	st state.Store,
	client feed.Client,
	window, staleness, bucket time.Duration,
) *Window {
	return &Window{
		log:       log.WithField("component", "tracker"),
		state:     st,
		feed:      client,
		window:    window,
		staleness: staleness,
		bucket:    bucket,
		entries:   make(map[string]*Entry),
	}
}

// Load reads the tracking document. The boolean reports whether the document
// existed, which is what distinguishes warm start from cold start.
func (w *Window) Load(ctx context.Context) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	entries := make(map[string]*Entry)

	found, err := w.state.Load(ctx, state.DocTracking, &entries)
	if err != nil {
		return false, fmt.Errorf("load tracking: %w", err)
	}

	w.entries = entries
	trackedItems.Set(float64(len(entries)))

	w.log.WithFields(logrus.Fields{
		"entries": len(entries),
		"found":   found,
	}).Info("Loaded tracking window")

	return found, nil
}

// Reset clears the window and persists the empty document. Cold start runs
// this to create the tracking file before any ingestion happens.
func (w *Window) Reset(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.entries = make(map[string]*Entry)
	trackedItems.Set(0)

	return w.persistLocked(ctx)
}

// Len returns the number of tracked entries.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.entries)
}

// Tracked reports whether an identity key is currently tracked.
func (w *Window) Tracked(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, ok := w.entries[key]

	return ok
}

// Seed adds a freshly ingested item to the window, unless it was already older
// than the staleness limit when observed. Old arrivals still belong in the
// batch store, but their early-life mutations are unobservable, so tracking
// them would only grow the set. The caller persists via Persist once the whole
// page has been seeded.
func (w *Window) Seed(it item.Item, observedAt time.Time) bool {
	published, ok := it.Date()
	if !ok {
		w.log.WithField("item", it[item.FieldID]).Warn("Item has no parseable date, not tracking")

		return false
	}

	if observedAt.Sub(published) > w.staleness {
		return false
	}

	chatID, _ := it.ChatID()
	itemID, _ := it.ID()
	key := item.IdentityKey(chatID, itemID)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.entries[key] = &Entry{Snapshot: it, FirstSeen: observedAt}
	trackedItems.Set(float64(len(w.entries)))

	return true
}

// Persist durably rewrites the tracking document.
func (w *Window) Persist(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.persistLocked(ctx)
}

// Sweep re-observes every tracked entry and returns the changed snapshots as
// historical records grouped by chat, ready for one batch append per chat.
//
// The sweep iterates a stable snapshot of the current keys: entries seeded
// while a sweep is in flight are not visited until the next tick. Per entry
// the order is expiry first (no feed call needed), then deletion, then diff.
// Evictions raise a dirty flag so they reach durable storage even when no
// later mutation persists the map; a failed persist aborts the sweep so
// in-memory state never outruns the document.
func (w *Window) Sweep(ctx context.Context, now time.Time) (map[int64]item.Records, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	keys := make([]string, 0, len(w.entries))
	for key := range w.entries {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	changed := make(map[int64]item.Records)
	dirty := false

	for _, key := range keys {
		entry, ok := w.entries[key]
		if !ok {
			continue
		}

		published, ok := entry.Snapshot.Date()
		if !ok {
			// Without a publish date the entry can never expire. Drop it.
			delete(w.entries, key)

			evictions.WithLabelValues("invalid").Inc()

			dirty = true

			continue
		}

		if now.After(published.Add(w.window)) {
			delete(w.entries, key)

			evictions.WithLabelValues("expired").Inc()

			w.log.WithField("key", key).Debug("Tracking window expired")

			dirty = true

			continue
		}

		chatID, _ := entry.Snapshot.ChatID()
		itemID, _ := entry.Snapshot.ID()

		fresh, err := w.feed.FetchItem(ctx, chatID, itemID)
		if errors.Is(err, feed.ErrNotFound) {
			delete(w.entries, key)

			evictions.WithLabelValues("deleted").Inc()

			w.log.WithField("key", key).Debug("Tracked item deleted upstream")

			dirty = true

			continue
		}

		if err != nil {
			// Transient feed failure: keep the entry, retry next tick.
			w.log.WithFields(logrus.Fields{
				"key":   key,
				"error": err,
			}).Warn("Failed to re-fetch tracked item")

			continue
		}

		_, updated := project.Project(fresh, map[string]any{
			item.FieldTrackerRetrieved: item.FormatTime(now),
		})

		if !item.Different(entry.Snapshot, updated, item.FieldTrackerRetrieved) {
			continue
		}

		entry.Snapshot = updated

		if err := w.persistLocked(ctx); err != nil {
			return nil, err
		}

		dirty = false

		mutations.Inc()

		changed[chatID] = append(changed[chatID], item.Record{
			Key:  item.BucketKey(chatID, itemID, published, now, w.bucket),
			Item: updated,
		})
	}

	if dirty {
		if err := w.persistLocked(ctx); err != nil {
			return nil, err
		}
	}

	trackedItems.Set(float64(len(w.entries)))

	return changed, nil
}

func (w *Window) persistLocked(ctx context.Context) error {
	if err := w.state.Save(ctx, state.DocTracking, w.entries); err != nil {
		return fmt.Errorf("persist tracking: %w", err)
	}

	return nil
}
