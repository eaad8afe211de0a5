// Package dataset implements the one-shot full-history exporter. Unlike the
// monitor it does not track mutations or keep cursors: it walks each chat's
// history oldest first and writes numbered segment files, then exits.
package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/oeg-upm/telegram-dataset-builder/internal/feed"
	"github.com/oeg-upm/telegram-dataset-builder/internal/item"
	"github.com/oeg-upm/telegram-dataset-builder/internal/project"
	"github.com/oeg-upm/telegram-dataset-builder/internal/state"
)

// Config carries the exporter's parameters.
type Config struct {
	// Channels lists the channel names to export.
	Channels []string

	// OutputDir is the dataset root.
	OutputDir string

	// BatchSize caps the records per segment file. Each feed page is
	// fetched at this size so a page maps onto a segment.
	BatchSize int
}

// Exporter downloads full channel histories into the batch file layout.
type Exporter struct {
	log  logrus.FieldLogger
	cfg  Config
	feed feed.Client
}

// New creates an exporter.
func New(log logrus.FieldLogger, cfg Config, client feed.Client) *Exporter {
	return &Exporter{
		log:  log.WithField("component", "dataset"),
		cfg:  cfg,
		feed: client,
	}
}

// Run exports every configured channel and writes the channel info dump.
func (e *Exporter) Run(ctx context.Context) error {
	if err := os.MkdirAll(e.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	info := make(map[string]map[int64]item.Item, len(e.cfg.Channels))

	for _, channel := range e.cfg.Channels {
		ids, err := e.feed.ListChats(ctx, channel)
		if err != nil {
			return fmt.Errorf("failed to list chats for channel %s: %w", channel, err)
		}

		info[channel] = make(map[int64]item.Item, len(ids))

		for _, chatID := range ids {
			meta, ferr := e.feed.FetchChatInfo(ctx, chatID)
			if ferr != nil {
				return fmt.Errorf("failed to fetch info for chat %d: %w", chatID, ferr)
			}

			info[channel][chatID] = meta

			total, xerr := e.exportChat(ctx, channel, chatID)
			if xerr != nil {
				return xerr
			}

			e.log.WithFields(logrus.Fields{
				"channel": channel,
				"chat_id": chatID,
				"items":   total,
			}).Info("Exported chat history")
		}
	}

	dump := filepath.Join(e.cfg.OutputDir, "channels.json")
	if err := state.WriteJSONFile(dump, info); err != nil {
		return fmt.Errorf("failed to write channel dump: %w", err)
	}

	return nil
}

// exportChat pages through a chat oldest first, one segment file per page.
func (e *Exporter) exportChat(ctx context.Context, channel string, chatID int64) (int, error) {
	dir := filepath.Join(e.cfg.OutputDir, channel, strconv.FormatInt(chatID, 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create chat directory: %w", err)
	}

	var (
		after   int64
		segment = 1
		total   int
	)

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		items, cursor, err := e.feed.FetchPage(ctx, chatID, after, e.cfg.BatchSize)
		if err != nil {
			return total, fmt.Errorf("failed to fetch page for chat %d after %d: %w", chatID, after, err)
		}

		if cursor == 0 {
			return total, nil
		}

		records := make(map[string]item.Item, len(items))
		for _, raw := range items {
			key, proj := project.Project(raw, nil)
			records[key] = proj
		}

		path := filepath.Join(dir, fmt.Sprintf("batch_%d.json", segment))
		if err := state.WriteJSONFile(path, records); err != nil {
			return total, fmt.Errorf("failed to write segment %d for chat %d: %w", segment, chatID, err)
		}

		total += len(records)
		segment++
		after = cursor
	}
}
