// Package scheduler runs the polling loop that drives ingestion. Each cycle
// sweeps the tracking window for mutations, then ingests new items per chat,
// advancing cursors and appending to batch storage.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oeg-upm/telegram-dataset-builder/internal/batch"
	"github.com/oeg-upm/telegram-dataset-builder/internal/cursor"
	"github.com/oeg-upm/telegram-dataset-builder/internal/feed"
	"github.com/oeg-upm/telegram-dataset-builder/internal/item"
	"github.com/oeg-upm/telegram-dataset-builder/internal/project"
	"github.com/oeg-upm/telegram-dataset-builder/internal/state"
	"github.com/oeg-upm/telegram-dataset-builder/internal/tracker"
)

// Gate reports whether this process currently holds the single-writer run
// lock. A nil gate means locking is disabled and the scheduler always runs.
type Gate interface {
	Held() bool
}

// Config carries the scheduler's operating parameters.
type Config struct {
	// Channels lists the channel names to monitor.
	Channels []string

	// Interval is the polling cadence, and also the width of the bucket
	// used when keying re-observed snapshots.
	Interval time.Duration

	// OutputDir is where the channel metadata dump is written.
	OutputDir string

	// ForceColdStart discards durable tracking state on boot even when a
	// tracking document exists.
	ForceColdStart bool
}

// Scheduler owns the ingestion cycle. It is not safe for concurrent use; Run
// is the single driver.
type Scheduler struct {
	log     logrus.FieldLogger
	cfg     Config
	feed    feed.Client
	state   state.Store
	cursors *cursor.Manager
	batches *batch.Store
	window  *tracker.Window
	clock   Clock
	gate    Gate

	// chat id -> channel name, resolved during Bootstrap.
	chats map[int64]string
}

// New creates a scheduler. gate may be nil when run locking is disabled.
func New(
	log logrus.FieldLogger,
	cfg Config,
	client feed.Client,
	st state.Store,
	cursors *cursor.Manager,
	batches *batch.Store,
	window *tracker.Window,
	clock Clock,
	gate Gate,
) *Scheduler {
	return &Scheduler{
		log:     log.WithField("component", "scheduler"),
		cfg:     cfg,
		feed:    client,
		state:   st,
		cursors: cursors,
		batches: batches,
		window:  window,
		clock:   clock,
		gate:    gate,
		chats:   make(map[int64]string),
	}
}

// Chats returns the resolved chat ids in ascending order.
func (s *Scheduler) Chats() []int64 {
	ids := make([]int64, 0, len(s.chats))

	for id := range s.chats {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// Bootstrap discovers the monitored chats, dumps their metadata, and restores
// or seeds durable state. A cold start (no tracking document, or forced)
// resets the window and positions every cursor at the chat's current latest
// item so ingestion begins from now rather than replaying history.
func (s *Scheduler) Bootstrap(ctx context.Context) error {
	if err := s.discover(ctx); err != nil {
		return err
	}

	found, err := s.window.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tracking state: %w", err)
	}

	cold := !found || s.cfg.ForceColdStart

	if cold {
		s.log.WithField("forced", s.cfg.ForceColdStart).Info("Cold start, seeding cursors from latest items")

		if err := s.window.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset tracking state: %w", err)
		}

		if err := s.seedCursors(ctx); err != nil {
			return err
		}
	} else {
		if err := s.cursors.Load(ctx); err != nil {
			return fmt.Errorf("failed to load cursors: %w", err)
		}

		s.log.WithField("tracked", s.window.Len()).Info("Warm start, restored durable state")
	}

	if err := s.batches.Load(ctx); err != nil {
		return fmt.Errorf("failed to load batch pointers: %w", err)
	}

	for _, chatID := range s.Chats() {
		if err := s.batches.Register(ctx, chatID, s.chats[chatID]); err != nil {
			return fmt.Errorf("failed to register chat %d: %w", chatID, err)
		}
	}

	return nil
}

// discover resolves each configured channel to its chats, fetches their
// metadata, and records the mapping both durably and as a readable dump next
// to the dataset.
func (s *Scheduler) discover(ctx context.Context) error {
	info := make(map[string]map[int64]item.Item, len(s.cfg.Channels))

	for _, channel := range s.cfg.Channels {
		ids, err := s.feed.ListChats(ctx, channel)
		if err != nil {
			return fmt.Errorf("failed to list chats for channel %s: %w", channel, err)
		}

		info[channel] = make(map[int64]item.Item, len(ids))

		for _, id := range ids {
			meta, ferr := s.feed.FetchChatInfo(ctx, id)
			if ferr != nil {
				return fmt.Errorf("failed to fetch info for chat %d: %w", id, ferr)
			}

			info[channel][id] = meta
			s.chats[id] = channel
		}

		s.log.WithFields(logrus.Fields{
			"channel": channel,
			"chats":   len(ids),
		}).Info("Resolved channel")
	}

	chats := make(map[int64]string, len(s.chats))
	for id, channel := range s.chats {
		chats[id] = channel
	}

	if err := s.state.Save(ctx, state.DocChats, chats); err != nil {
		return fmt.Errorf("failed to persist chat map: %w", err)
	}

	if err := os.MkdirAll(s.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	dump := filepath.Join(s.cfg.OutputDir, "channels.json")
	if err := state.WriteJSONFile(dump, info); err != nil {
		return fmt.Errorf("failed to write channel dump: %w", err)
	}

	return nil
}

// seedCursors positions every chat's cursor at its current latest item id.
// Empty chats are skipped; their cursor is seeded lazily on first ingestion.
func (s *Scheduler) seedCursors(ctx context.Context) error {
	offsets := make(map[int64]int64, len(s.chats))

	for _, chatID := range s.Chats() {
		latest, err := s.feed.FetchLatestItem(ctx, chatID)
		if err != nil {
			if errors.Is(err, feed.ErrNotFound) {
				s.log.WithField("chat_id", chatID).Info("Chat is empty, deferring cursor seed")

				continue
			}

			return fmt.Errorf("failed to fetch latest item for chat %d: %w", chatID, err)
		}

		id, ok := latest.ID()
		if !ok {
			return fmt.Errorf("latest item for chat %d has no id", chatID)
		}

		offsets[chatID] = id
	}

	if err := s.cursors.Replace(ctx, offsets); err != nil {
		return fmt.Errorf("failed to seed cursors: %w", err)
	}

	return nil
}

// Run drives polling cycles until the context is cancelled. It returns nil on
// cancellation and a non-nil error only when a cycle hit a persistence
// failure, which is fatal.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.WithFields(logrus.Fields{
		"chats":    len(s.chats),
		"interval": s.cfg.Interval,
	}).Info("Starting polling loop")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := s.Tick(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-s.clock.After(s.cfg.Interval):
		}
	}
}

// Tick runs one full cycle: mutation sweep first, then per-chat ingestion.
// When a run lock gate is configured and not held, the cycle is skipped so a
// standby process never writes.
func (s *Scheduler) Tick(ctx context.Context) error {
	if s.gate != nil && !s.gate.Held() {
		s.log.Debug("Not holding run lock, skipping cycle")

		return nil
	}

	changed, err := s.window.Sweep(ctx, s.clock.Now())
	if err != nil {
		return fmt.Errorf("mutation sweep failed: %w", err)
	}

	for _, chatID := range sortedChats(changed) {
		if err := s.batches.Append(ctx, chatID, changed[chatID]); err != nil {
			return fmt.Errorf("failed to append mutations for chat %d: %w", chatID, err)
		}
	}

	for _, chatID := range s.Chats() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := s.ingestChat(ctx, chatID); err != nil {
			return err
		}
	}

	ticksCompleted.Inc()

	return nil
}

// ingestChat fetches items newer than the chat's cursor, advances the cursor,
// and appends the projected items to batch storage. Feed failures are logged
// and isolated to the chat; a nil return does not imply progress.
func (s *Scheduler) ingestChat(ctx context.Context, chatID int64) error {
	chatLabel := fmt.Sprintf("%d", chatID)

	after, ok := s.cursors.Get(chatID)
	if !ok {
		// Cursor was never seeded (the chat was empty at cold start).
		// Seed it now so ingestion begins from the present.
		return s.seedLateCursor(ctx, chatID)
	}

	items, newCursor, err := s.feed.FetchNewItems(ctx, chatID, after)
	if err != nil {
		feedErrors.WithLabelValues(chatLabel).Inc()
		s.log.WithError(err).WithField("chat_id", chatID).Warn("Failed to fetch new items")

		return nil
	}

	if newCursor == 0 {
		return nil
	}

	// Advance before processing: a crash past this point loses the fetched
	// items rather than re-ingesting them.
	if err := s.cursors.Advance(ctx, chatID, newCursor); err != nil {
		if errors.Is(err, cursor.ErrInvalidCursor) {
			s.log.WithError(err).WithField("chat_id", chatID).Warn("Rejected non-monotonic cursor")

			return nil
		}

		return fmt.Errorf("failed to advance cursor for chat %d: %w", chatID, err)
	}

	now := s.clock.Now()
	stamp := item.FormatTime(now)

	var (
		fresh   item.Records
		tracked int
	)

	for _, raw := range items {
		_, proj := project.Project(raw, map[string]any{
			item.FieldTrackerRetrieved: stamp,
		})

		itemID, idOK := proj.ID()
		if !idOK {
			s.log.WithField("chat_id", chatID).Warn("Skipping item without id")

			continue
		}

		published, dateOK := proj.Date()
		if !dateOK {
			published = now
		}

		fresh.Add(item.BucketKey(chatID, itemID, published, now, s.cfg.Interval), proj)

		if s.window.Seed(proj, now) {
			tracked++
		}
	}

	if err := s.batches.Append(ctx, chatID, fresh); err != nil {
		return fmt.Errorf("failed to append items for chat %d: %w", chatID, err)
	}

	if err := s.window.Persist(ctx); err != nil {
		return fmt.Errorf("failed to persist tracking state: %w", err)
	}

	itemsIngested.WithLabelValues(chatLabel).Add(float64(len(fresh)))

	s.log.WithFields(logrus.Fields{
		"chat_id": chatID,
		"items":   len(fresh),
		"tracked": tracked,
	}).Info("Ingested new items")

	return nil
}

// seedLateCursor points an unseeded cursor at the chat's current latest item.
// The items themselves are picked up on the next cycle.
func (s *Scheduler) seedLateCursor(ctx context.Context, chatID int64) error {
	latest, err := s.feed.FetchLatestItem(ctx, chatID)
	if err != nil {
		if errors.Is(err, feed.ErrNotFound) {
			return nil
		}

		feedErrors.WithLabelValues(fmt.Sprintf("%d", chatID)).Inc()
		s.log.WithError(err).WithField("chat_id", chatID).Warn("Failed to fetch latest item for cursor seed")

		return nil
	}

	id, ok := latest.ID()
	if !ok {
		s.log.WithField("chat_id", chatID).Warn("Latest item has no id, deferring cursor seed")

		return nil
	}

	if err := s.cursors.Advance(ctx, chatID, id); err != nil {
		if errors.Is(err, cursor.ErrInvalidCursor) {
			return nil
		}

		return fmt.Errorf("failed to seed cursor for chat %d: %w", chatID, err)
	}

	s.log.WithFields(logrus.Fields{
		"chat_id": chatID,
		"cursor":  id,
	}).Info("Seeded cursor for previously empty chat")

	return nil
}

func sortedChats(m map[int64]item.Records) []int64 {
	ids := make([]int64, 0, len(m))

	for id := range m {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}
