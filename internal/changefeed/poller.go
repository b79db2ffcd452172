// ABOUTME: Polls the store's change log and publishes new message rows
// ABOUTME: Bridges rows written by other processes into the in-memory broadcaster

package changefeed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/coven-chat/internal/store"
)

const (
	// DefaultPollInterval matches a UI-perceptible but cheap refresh rate.
	DefaultPollInterval = 250 * time.Millisecond
	// DefaultBatchSize bounds the rows read per poll.
	DefaultBatchSize = 100
)

// Publisher receives each newly inserted message.
type Publisher interface {
	Publish(msg *store.Message)
}

// Poller watches a ChangeLog for inserts and forwards them to a Publisher.
type Poller struct {
	log       store.ChangeLog
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

// NewPoller creates a poller. Zero interval or batch size selects the defaults.
func NewPoller(changeLog store.ChangeLog, publisher Publisher, interval time.Duration, batchSize int, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		log:       changeLog,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger.With("component", "changefeed"),
	}
}

// Run publishes only rows inserted after Run starts, until ctx is cancelled.
// Poll errors are logged and retried on the next tick.
func (p *Poller) Run(ctx context.Context) error {
	cursor, err := p.log.LatestCursor(ctx)
	if err != nil {
		return fmt.Errorf("reading initial cursor: %w", err)
	}

	p.logger.Debug("change feed started", "cursor", cursor, "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cursor = p.drain(ctx, cursor)
		}
	}
}

// drain publishes every row after cursor and returns the new cursor.
func (p *Poller) drain(ctx context.Context, cursor int64) int64 {
	for {
		msgs, next, err := p.log.ListMessagesAfter(ctx, cursor, p.batchSize)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Warn("change feed poll failed", "error", err, "cursor", cursor)
			}
			return cursor
		}

		for _, msg := range msgs {
			p.publisher.Publish(msg)
		}
		cursor = next

		if len(msgs) < p.batchSize {
			return cursor
		}
	}
}
