// Package runlock guards shared runtime state with a Redis lock so only one
// monitor process ingests at a time. The engine is single-process by design;
// the lock turns an accidental second deployment into a harmless standby
// instead of an interleaved writer.
package runlock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Config holds run lock settings.
type Config struct {
	LockKey       string
	LockTTL       time.Duration
	RenewInterval time.Duration
	RetryInterval time.Duration
}

// Lock is a single-writer run lock.
type Lock interface {
	Start(ctx context.Context) error
	Stop() error
	Held() bool
}

// Compile-time interface compliance check.
var _ Lock = (*lock)(nil)

type lock struct {
	log    logrus.FieldLogger
	cfg    Config
	client *redis.Client
	id     string // Unique instance ID

	mu            sync.RWMutex
	held          bool
	loggedStandby bool
	done          chan struct{}
	wg            sync.WaitGroup
}

// New creates a run lock on an already-connected Redis client.
func New(log logrus.FieldLogger, cfg Config, client *redis.Client) Lock {
	return &lock{
		log:    log.WithField("component", "runlock"),
		cfg:    cfg,
		client: client,
		id:     uuid.New().String(),
		done:   make(chan struct{}),
	}
}

// Start begins acquiring and renewing the lock in the background.
func (l *lock) Start(ctx context.Context) error {
	l.log.WithField("instance_id", l.id).Info("Starting run lock")

	l.wg.Add(1)

	go l.loop(ctx)

	return nil
}

// Stop stops the background loop and releases the lock if held.
func (l *lock) Stop() error {
	l.log.Info("Stopping run lock")
	close(l.done)
	l.wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = l.client.Del(ctx, l.cfg.LockKey).Err()
		l.held = false
	}

	return nil
}

// Held reports whether this instance currently owns the lock. The scheduler
// skips its tick entirely while the lock is not held.
func (l *lock) Held() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.held
}

func (l *lock) loop(ctx context.Context) {
	defer l.wg.Done()

	// Try immediately so a clean deployment starts ingesting on its first
	// tick rather than after the first retry interval.
	l.tryAcquire(ctx)

	renew := time.NewTicker(l.cfg.RenewInterval)
	defer renew.Stop()

	retry := time.NewTicker(l.cfg.RetryInterval)
	defer retry.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case <-renew.C:
			if l.Held() {
				l.renew(ctx)
			}
		case <-retry.C:
			if !l.Held() {
				l.tryAcquire(ctx)
			}
		}
	}
}

func (l *lock) tryAcquire(ctx context.Context) {
	acquired, err := l.client.SetNX(ctx, l.cfg.LockKey, l.id, l.cfg.LockTTL).Result()
	if err != nil {
		l.log.WithError(err).Warn("Failed to acquire run lock")

		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if acquired {
		l.held = true
		l.loggedStandby = false
		l.log.WithField("instance_id", l.id).Info("Acquired run lock")

		return
	}

	if !l.loggedStandby {
		l.loggedStandby = true

		holder, _ := l.client.Get(ctx, l.cfg.LockKey).Result()
		l.log.WithFields(logrus.Fields{
			"instance_id": l.id,
			"holder_id":   holder,
		}).Info("Run lock held elsewhere, standing by")
	}
}

func (l *lock) renew(ctx context.Context) {
	holder, err := l.client.Get(ctx, l.cfg.LockKey).Result()
	if err != nil || holder != l.id {
		l.mu.Lock()
		l.held = false
		l.mu.Unlock()

		l.log.Warn("Lost run lock")

		return
	}

	if err := l.client.Set(ctx, l.cfg.LockKey, l.id, l.cfg.LockTTL).Err(); err != nil {
		l.mu.Lock()
		l.held = false
		l.mu.Unlock()

		l.log.WithError(err).Warn("Failed to renew run lock")
	}
}
