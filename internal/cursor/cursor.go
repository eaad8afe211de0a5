// Package cursor tracks the last acknowledged item id per chat. Cursors only
// move forward and every advance is persisted before it is visible.
package cursor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/oeg-upm/telegram-dataset-builder/internal/state"
)

// ErrInvalidCursor reports an attempt to move a cursor backwards or in place.
// It signals a consistency bug in the caller, not a transient condition.
var ErrInvalidCursor = errors.New("cursor: new id not greater than stored id")

// Manager owns the durable per-chat offset map.
type Manager struct {
	log   logrus.FieldLogger
	store state.Store

	mu      sync.Mutex
	offsets map[int64]int64
}

// NewManager creates a cursor manager on the given state store.
func NewManager(log logrus.FieldLogger, store state.Store) *Manager {
	return &Manager{
		log:     log.WithField("component", "cursor"),
		store:   store,
		offsets: make(map[int64]int64),
	}
}

// Load reads the offset document from durable storage. An absent document
// leaves the manager empty.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	offsets := make(map[int64]int64)

	found, err := m.store.Load(ctx, state.DocOffsets, &offsets)
	if err != nil {
		return fmt.Errorf("load offsets: %w", err)
	}

	m.offsets = offsets

	m.log.WithFields(logrus.Fields{
		"chats": len(offsets),
		"found": found,
	}).Info("Loaded cursors")

	return nil
}

// Get returns the cursor for a chat, if one has been recorded.
func (m *Manager) Get(chatID int64) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.offsets[chatID]

	return id, ok
}

// Advance moves a chat's cursor to newID and persists immediately. It fails
// with ErrInvalidCursor unless newID is strictly greater than the stored
// value. On a persistence failure the in-memory cursor is rolled back so
// memory never runs ahead of durable state.
func (m *Manager) Advance(ctx context.Context, chatID, newID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, existed := m.offsets[chatID]
	if existed && newID <= prev {
		return fmt.Errorf("%w: chat %d, stored %d, new %d", ErrInvalidCursor, chatID, prev, newID)
	}

	m.offsets[chatID] = newID

	if err := m.store.Save(ctx, state.DocOffsets, m.offsets); err != nil {
		if existed {
			m.offsets[chatID] = prev
		} else {
			delete(m.offsets, chatID)
		}

		return fmt.Errorf("persist offsets: %w", err)
	}

	m.log.WithFields(logrus.Fields{
		"chat_id": chatID,
		"cursor":  newID,
	}).Debug("Advanced cursor")

	return nil
}

// Replace swaps in a freshly seeded offset map and persists it. Used by cold
// start, where cursors begin at each chat's current latest item.
func (m *Manager) Replace(ctx context.Context, offsets map[int64]int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Save(ctx, state.DocOffsets, offsets); err != nil {
		return fmt.Errorf("persist offsets: %w", err)
	}

	m.offsets = offsets

	return nil
}
