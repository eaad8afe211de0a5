package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/oeg-upm/telegram-dataset-builder/internal/batch"
	"github.com/oeg-upm/telegram-dataset-builder/internal/cursor"
	"github.com/oeg-upm/telegram-dataset-builder/internal/feed"
	"github.com/oeg-upm/telegram-dataset-builder/internal/feed/mocks"
	"github.com/oeg-upm/telegram-dataset-builder/internal/item"
	"github.com/oeg-upm/telegram-dataset-builder/internal/state"
	"github.com/oeg-upm/telegram-dataset-builder/internal/testutil"
	"github.com/oeg-upm/telegram-dataset-builder/internal/tracker"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeClock advances only when a test tells it to.
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	wake chan time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now, wake: make(chan time.Time)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) After(time.Duration) <-chan time.Time {
	return c.wake
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeGate struct {
	held bool
}

func (g *fakeGate) Held() bool {
	return g.held
}

type harness struct {
	sched   *Scheduler
	clock   *fakeClock
	cursors *cursor.Manager
	batches *batch.Store
	window  *tracker.Window
	store   *state.FileStore
	dataDir string
}

func newHarness(t *testing.T, client feed.Client, gate Gate) *harness {
	t.Helper()

	log := testutil.NewTestLogger()
	cfg := testutil.NewTestConfig(t.TempDir())

	store := state.NewFileStore(cfg.RuntimeDir())
	cursors := cursor.NewManager(log, store)

	batches, err := batch.NewStore(log, store, cfg.Output.Dir, cfg.Monitor.BatchSize)
	require.NoError(t, err)

	window := tracker.NewWindow(
		log, store, client,
		cfg.Monitor.TrackerWindow, cfg.Monitor.StalenessLimit, cfg.Monitor.TrackerTimer,
	)

	clock := newFakeClock(t0)

	sched := New(log, Config{
		Channels:  cfg.Monitor.Channels,
		Interval:  cfg.Monitor.TrackerTimer,
		OutputDir: cfg.Output.Dir,
	}, client, store, cursors, batches, window, clock, gate)

	return &harness{
		sched:   sched,
		clock:   clock,
		cursors: cursors,
		batches: batches,
		window:  window,
		store:   store,
		dataDir: cfg.Output.Dir,
	}
}

// registerChat wires a chat into the scheduler without running Bootstrap.
func (h *harness) registerChat(t *testing.T, ctx context.Context, chatID int64) {
	t.Helper()

	h.sched.chats[chatID] = "testchannel"
	require.NoError(t, h.batches.Register(ctx, chatID, "testchannel"))
}

func (h *harness) readActiveSegment(t *testing.T, chatID int64) map[string]item.Item {
	t.Helper()

	seg, ok := h.sched.batches.ActiveSegment(chatID)
	require.True(t, ok)

	path, ok := h.sched.batches.SegmentPath(chatID, seg)
	require.True(t, ok)

	var records map[string]item.Item

	found, err := state.ReadJSONFile(path, &records)
	require.NoError(t, err)

	if !found {
		return map[string]item.Item{}
	}

	return records
}

func rawItem(chatID, itemID int64, date time.Time, message string) item.Item {
	return item.Item{
		"id":         itemID,
		"channel_id": chatID,
		"date":       item.FormatTime(date),
		"message":    message,
	}
}

func TestScheduler_BootstrapColdStart(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	client.EXPECT().ListChats(gomock.Any(), "testchannel").Return([]int64{100, 200}, nil)
	client.EXPECT().FetchChatInfo(gomock.Any(), int64(100)).Return(item.Item{"title": "main"}, nil)
	client.EXPECT().FetchChatInfo(gomock.Any(), int64(200)).Return(item.Item{"title": "side"}, nil)
	client.EXPECT().FetchLatestItem(gomock.Any(), int64(100)).Return(rawItem(100, 41, t0, "latest"), nil)
	client.EXPECT().FetchLatestItem(gomock.Any(), int64(200)).Return(nil, feed.ErrNotFound)

	h := newHarness(t, client, nil)
	require.NoError(t, h.sched.Bootstrap(ctx))

	assert.Equal(t, []int64{100, 200}, h.sched.Chats())

	// Cursor for the populated chat points at its latest item; the empty
	// chat stays unseeded.
	cur, ok := h.cursors.Get(100)
	require.True(t, ok)
	assert.Equal(t, int64(41), cur)

	_, ok = h.cursors.Get(200)
	assert.False(t, ok)

	// Both chats are registered with batch storage.
	_, ok = h.batches.ActiveSegment(100)
	assert.True(t, ok)
	_, ok = h.batches.ActiveSegment(200)
	assert.True(t, ok)

	// The channel metadata dump is written next to the dataset.
	var dump map[string]map[string]item.Item
	found, err := state.ReadJSONFile(filepath.Join(h.dataDir, "channels.json"), &dump)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "main", dump["testchannel"]["100"]["title"])

	// The chat map is durable.
	var chats map[int64]string
	found, err = h.store.Load(ctx, state.DocChats, &chats)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "testchannel", chats[100])
}

func TestScheduler_BootstrapWarmStartRestoresCursors(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	client.EXPECT().ListChats(gomock.Any(), "testchannel").Return([]int64{100}, nil).Times(2)
	client.EXPECT().FetchChatInfo(gomock.Any(), int64(100)).Return(item.Item{}, nil).Times(2)
	// FetchLatestItem only during the first, cold, bootstrap.
	client.EXPECT().FetchLatestItem(gomock.Any(), int64(100)).Return(rawItem(100, 41, t0, "latest"), nil)

	h := newHarness(t, client, nil)
	require.NoError(t, h.sched.Bootstrap(ctx))

	// Same durable state, new process.
	log := testutil.NewTestLogger()
	cursors := cursor.NewManager(log, h.store)

	batches, err := batch.NewStore(log, h.store, h.dataDir, 10)
	require.NoError(t, err)

	window := tracker.NewWindow(log, h.store, client, time.Hour, 10*time.Hour, time.Minute)

	sched := New(log, Config{
		Channels:  []string{"testchannel"},
		Interval:  time.Minute,
		OutputDir: h.dataDir,
	}, client, h.store, cursors, batches, window, newFakeClock(t0), nil)

	require.NoError(t, sched.Bootstrap(ctx))

	cur, ok := cursors.Get(100)
	require.True(t, ok)
	assert.Equal(t, int64(41), cur)
}

func TestScheduler_TickIngestsNewItems(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	h := newHarness(t, client, nil)
	h.registerChat(t, ctx, 100)
	require.NoError(t, h.cursors.Replace(ctx, map[int64]int64{100: 40}))

	client.EXPECT().FetchNewItems(gomock.Any(), int64(100), int64(40)).Return([]item.Item{
		rawItem(100, 41, t0, "first"),
		rawItem(100, 42, t0, "second"),
	}, int64(42), nil)

	require.NoError(t, h.sched.Tick(ctx))

	cur, ok := h.cursors.Get(100)
	require.True(t, ok)
	assert.Equal(t, int64(42), cur)

	records := h.readActiveSegment(t, 100)
	require.Len(t, records, 2)

	// Published at the observation instant puts both in bucket 0.0.
	first, ok := records["100_41_0.0"]
	require.True(t, ok)
	assert.Equal(t, "first", first["message"])
	assert.Equal(t, item.FormatTime(t0), first[item.FieldTrackerRetrieved])

	_, ok = records["100_42_0.0"]
	assert.True(t, ok)

	// Fresh items enter the tracking window.
	assert.True(t, h.window.Tracked("100_41"))
	assert.True(t, h.window.Tracked("100_42"))
	assert.Equal(t, 2, h.window.Len())
}

func TestScheduler_TickStaleItemBatchedNotTracked(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	h := newHarness(t, client, nil)
	h.registerChat(t, ctx, 100)
	require.NoError(t, h.cursors.Replace(ctx, map[int64]int64{100: 40}))

	// Published 11h before observation, past the 10h staleness limit.
	client.EXPECT().FetchNewItems(gomock.Any(), int64(100), int64(40)).Return([]item.Item{
		rawItem(100, 41, t0.Add(-11*time.Hour), "stale"),
	}, int64(41), nil)

	require.NoError(t, h.sched.Tick(ctx))

	records := h.readActiveSegment(t, 100)
	assert.Len(t, records, 1)
	assert.Equal(t, 0, h.window.Len())
}

func TestScheduler_TickFeedErrorIsolatedPerChat(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	h := newHarness(t, client, nil)
	h.registerChat(t, ctx, 100)
	h.registerChat(t, ctx, 200)
	require.NoError(t, h.cursors.Replace(ctx, map[int64]int64{100: 40, 200: 70}))

	client.EXPECT().FetchNewItems(gomock.Any(), int64(100), int64(40)).
		Return(nil, int64(0), errors.New("gateway timeout"))
	client.EXPECT().FetchNewItems(gomock.Any(), int64(200), int64(70)).Return([]item.Item{
		rawItem(200, 71, t0, "fine"),
	}, int64(71), nil)

	require.NoError(t, h.sched.Tick(ctx))

	// The failing chat kept its cursor; the healthy chat progressed.
	cur, _ := h.cursors.Get(100)
	assert.Equal(t, int64(40), cur)

	cur, _ = h.cursors.Get(200)
	assert.Equal(t, int64(71), cur)

	assert.Len(t, h.readActiveSegment(t, 200), 1)
}

func TestScheduler_TickAppendsSweepMutations(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	h := newHarness(t, client, nil)
	h.registerChat(t, ctx, 100)
	require.NoError(t, h.cursors.Replace(ctx, map[int64]int64{100: 40}))

	// An item observed at t0 and edited since.
	require.True(t, h.window.Seed(item.Item{
		item.FieldID:     int64(1),
		item.FieldChatID: int64(100),
		"date":           item.FormatTime(t0),
		"message":        "original",
	}, t0))

	h.clock.advance(5 * time.Minute)

	client.EXPECT().FetchItem(gomock.Any(), int64(100), int64(1)).
		Return(rawItem(100, 1, t0, "edited"), nil)
	client.EXPECT().FetchNewItems(gomock.Any(), int64(100), int64(40)).
		Return(nil, int64(0), nil)

	require.NoError(t, h.sched.Tick(ctx))

	records := h.readActiveSegment(t, 100)
	require.Len(t, records, 1)

	// Five minutes elapsed at a one-minute bucket width.
	snap, ok := records["100_1_5.0"]
	require.True(t, ok)
	assert.Equal(t, "edited", snap["message"])
}

func TestScheduler_TickSkippedWithoutRunLock(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	gate := &fakeGate{held: false}

	h := newHarness(t, client, gate)
	h.registerChat(t, ctx, 100)
	require.NoError(t, h.cursors.Replace(ctx, map[int64]int64{100: 40}))

	// No feed expectations: a standby process must not touch the feed.
	require.NoError(t, h.sched.Tick(ctx))

	gate.held = true
	client.EXPECT().FetchNewItems(gomock.Any(), int64(100), int64(40)).
		Return(nil, int64(0), nil)

	require.NoError(t, h.sched.Tick(ctx))
}

func TestScheduler_TickSeedsLateCursor(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	h := newHarness(t, client, nil)
	h.registerChat(t, ctx, 100)

	// The chat was empty at cold start. Its first item appears later; the
	// cursor is seeded at it and ingestion starts on the next cycle.
	client.EXPECT().FetchLatestItem(gomock.Any(), int64(100)).
		Return(rawItem(100, 55, t0, "first ever"), nil)

	require.NoError(t, h.sched.Tick(ctx))

	cur, ok := h.cursors.Get(100)
	require.True(t, ok)
	assert.Equal(t, int64(55), cur)

	assert.Empty(t, h.readActiveSegment(t, 100))
}

func TestScheduler_TickPersistenceFailureIsFatal(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	h := newHarness(t, client, nil)
	h.registerChat(t, ctx, 100)
	require.NoError(t, h.cursors.Replace(ctx, map[int64]int64{100: 40}))

	client.EXPECT().FetchNewItems(gomock.Any(), int64(100), int64(40)).Return([]item.Item{
		rawItem(100, 41, t0, "doomed"),
	}, int64(41), nil)

	// Plant a directory where the segment file goes so the write fails.
	seg, ok := h.batches.ActiveSegment(100)
	require.True(t, ok)
	path, ok := h.batches.SegmentPath(100, seg)
	require.True(t, ok)
	require.NoError(t, os.MkdirAll(path, 0o755))

	err := h.sched.Tick(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to append items")
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	h := newHarness(t, client, nil)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- h.sched.Run(ctx)
	}()

	// Let the first cycle complete, then cancel while Run waits on the clock.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancellation")
	}
}
