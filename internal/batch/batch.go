// Package batch persists item records into capacity-bounded, sequentially
// numbered segment files per chat. Segments are append-only once the active
// pointer has moved past them; only the active segment ever receives writes.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/oeg-upm/telegram-dataset-builder/internal/item"
	"github.com/oeg-upm/telegram-dataset-builder/internal/state"
)

// Pointer identifies a chat's active segment.
type Pointer struct {
	Channel string `json:"channel"`
	Segment int    `json:"segment"`
}

// Store owns the per-chat segment files and the durable active-segment map.
type Store struct {
	log      logrus.FieldLogger
	state    state.Store
	root     string
	capacity int

	mu     sync.Mutex
	active map[int64]*Pointer
}

// NewStore creates a batch store writing segments of at most capacity records
// under root.
func NewStore(log logrus.FieldLogger, st state.Store, root string, capacity int) (*Store, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("capacity must be positive, got %d", capacity)
	}

	return &Store{
		log:      log.WithField("component", "batch"),
		state:    st,
		root:     root,
		capacity: capacity,
		active:   make(map[int64]*Pointer),
	}, nil
}

// Load reads the active-segment map from durable storage.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make(map[int64]*Pointer)

	if _, err := s.state.Load(ctx, state.DocSavepaths, &active); err != nil {
		return fmt.Errorf("load savepaths: %w", err)
	}

	s.active = active

	s.log.WithField("chats", len(active)).Info("Loaded segment pointers")

	return nil
}

// Register creates the active-segment pointer and output directory for a chat.
// Registering an already-known chat is a no-op, so discovery can re-run it on
// every start.
func (s *Store) Register(ctx context.Context, chatID int64, channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[chatID]; ok {
		return nil
	}

	ptr := &Pointer{Channel: channel, Segment: 1}

	if err := os.MkdirAll(s.chatDir(chatID, channel), 0o755); err != nil {
		return fmt.Errorf("create chat dir: %w", err)
	}

	s.active[chatID] = ptr

	if err := s.persistPointers(ctx); err != nil {
		delete(s.active, chatID)

		return err
	}

	s.log.WithFields(logrus.Fields{
		"chat_id": chatID,
		"channel": channel,
	}).Info("Registered chat")

	return nil
}

// ActiveSegment returns the chat's active segment number.
func (s *Store) ActiveSegment(chatID int64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ptr, ok := s.active[chatID]
	if !ok {
		return 0, false
	}

	return ptr.Segment, true
}

// SegmentPath returns the on-disk path of a chat's numbered segment.
func (s *Store) SegmentPath(chatID int64, segment int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ptr, ok := s.active[chatID]
	if !ok {
		return "", false
	}

	return s.segmentFile(chatID, ptr.Channel, segment), true
}

// Append distributes records across the chat's segments in insertion order.
//
// If everything fits in the active segment, records are merged in (later keys
// overwrite earlier ones) and the pointer rolls forward only when the segment
// lands exactly full. Otherwise the active segment is topped up to capacity,
// each following capacity-sized slice becomes a brand-new full segment, and
// the sub-capacity remainder becomes the new active segment's content with the
// pointer left on it. The pointer map is persisted after every roll so a crash
// mid-append can duplicate at most the last partial write, never lose a
// segment boundary.
func (s *Store) Append(ctx context.Context, chatID int64, records item.Records) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ptr, ok := s.active[chatID]
	if !ok {
		return fmt.Errorf("chat %d not registered", chatID)
	}

	existing, err := s.readSegment(chatID, ptr)
	if err != nil {
		return err
	}

	// Count only keys that would actually grow the active segment, so
	// re-delivering records already present never forces a split.
	incoming := 0
	seen := make(map[string]struct{}, len(records))

	for _, rec := range records {
		if _, dup := seen[rec.Key]; dup {
			continue
		}

		seen[rec.Key] = struct{}{}

		if _, exists := existing.items[rec.Key]; !exists {
			incoming++
		}
	}

	if len(existing.order)+incoming <= s.capacity {
		existing.merge(records)

		if err := s.writeSegment(chatID, ptr, existing); err != nil {
			return err
		}

		if len(existing.order) == s.capacity {
			s.roll(chatID, ptr)
		}

		recordsAppended.WithLabelValues(strconv.FormatInt(chatID, 10)).Add(float64(len(records)))

		return s.persistPointers(ctx)
	}

	fill := s.capacity - len(existing.order)
	if fill < 0 {
		// The active segment holds more than the configured capacity: the
		// process restarted with a smaller batch size. Leave the oversized
		// segment behind and start fresh.
		s.roll(chatID, ptr)

		existing = newSegment()
		fill = s.capacity
	}

	existing.merge(records[:fill])

	if err := s.writeSegment(chatID, ptr, existing); err != nil {
		return err
	}

	s.roll(chatID, ptr)

	if err := s.persistPointers(ctx); err != nil {
		return err
	}

	rest := records[fill:]

	for len(rest) >= s.capacity {
		full := newSegment()
		full.merge(rest[:s.capacity])

		if err := s.writeSegment(chatID, ptr, full); err != nil {
			return err
		}

		s.roll(chatID, ptr)

		if err := s.persistPointers(ctx); err != nil {
			return err
		}

		rest = rest[s.capacity:]
	}

	if len(rest) > 0 {
		remainder := newSegment()
		remainder.merge(rest)

		if err := s.writeSegment(chatID, ptr, remainder); err != nil {
			return err
		}
	}

	recordsAppended.WithLabelValues(strconv.FormatInt(chatID, 10)).Add(float64(len(records)))

	return s.persistPointers(ctx)
}

// roll advances the active pointer past a full (or abandoned) segment.
func (s *Store) roll(chatID int64, ptr *Pointer) {
	ptr.Segment++

	segmentsRolled.WithLabelValues(strconv.FormatInt(chatID, 10)).Inc()

	s.log.WithFields(logrus.Fields{
		"chat_id": chatID,
		"segment": ptr.Segment,
	}).Debug("Rolled active segment")
}

func (s *Store) persistPointers(ctx context.Context) error {
	if err := s.state.Save(ctx, state.DocSavepaths, s.active); err != nil {
		return fmt.Errorf("persist savepaths: %w", err)
	}

	return nil
}

func (s *Store) chatDir(chatID int64, channel string) string {
	return filepath.Join(s.root, channel, strconv.FormatInt(chatID, 10))
}

func (s *Store) segmentFile(chatID int64, channel string, segment int) string {
	return filepath.Join(s.chatDir(chatID, channel), fmt.Sprintf("batch_%d.json", segment))
}

func (s *Store) readSegment(chatID int64, ptr *Pointer) (*segment, error) {
	path := s.segmentFile(chatID, ptr.Channel, ptr.Segment)

	content := make(map[string]item.Item)

	if _, err := state.ReadJSONFile(path, &content); err != nil {
		return nil, fmt.Errorf("read segment: %w", err)
	}

	seg := newSegment()
	for key, it := range content {
		seg.items[key] = it
		seg.order = append(seg.order, key)
	}

	return seg, nil
}

func (s *Store) writeSegment(chatID int64, ptr *Pointer, seg *segment) error {
	path := s.segmentFile(chatID, ptr.Channel, ptr.Segment)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create chat dir: %w", err)
	}

	if err := state.WriteJSONFile(path, seg.items); err != nil {
		return fmt.Errorf("write segment: %w", err)
	}

	return nil
}

// segment is the in-memory content of one segment file. Keys keep insertion
// order so capacity accounting matches the order records arrived in.
type segment struct {
	items map[string]item.Item
	order []string
}

func newSegment() *segment {
	return &segment{items: make(map[string]item.Item)}
}

// merge folds records in, last write winning on key collision.
func (s *segment) merge(records item.Records) {
	for _, rec := range records {
		if _, exists := s.items[rec.Key]; !exists {
			s.order = append(s.order, rec.Key)
		}

		s.items[rec.Key] = rec.Item
	}
}
