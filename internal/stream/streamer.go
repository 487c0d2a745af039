// Package stream serves live event feeds as server-sent events by polling
// the cached read path.
package stream

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/domain"
	"github.com/emitkithq/emitkit/internal/dto"
	"github.com/emitkithq/emitkit/internal/logger"
)

const (
	TypeConnected = "connected"
	TypeEvent     = "event"
	TypeHeartbeat = "heartbeat"

	DefaultInterval = 5 * time.Second
	DefaultLimit    = 100
)

// Poller returns the events created after since, oldest first
type Poller func(ctx context.Context, since time.Time) ([]*domain.Event, error)

type Streamer struct {
	interval time.Duration
	now      func() time.Time
	log      *zap.Logger
}

func NewStreamer(interval time.Duration, log *zap.Logger) *Streamer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Streamer{interval: interval, now: time.Now, log: log}
}

// Run writes a connected frame and then repeats poll, emit, heartbeat and
// wait until ctx is done or a write fails. A failed poll is logged and
// retried after the normal interval. Run returns nil on cancellation and the
// write error otherwise.
func (s *Streamer) Run(ctx context.Context, w FrameWriter, poll Poller) error {
	log := logger.FromContext(ctx, s.log)

	if err := w.WriteFrame(dto.StreamMessage{Type: TypeConnected}); err != nil {
		return fmt.Errorf("failed to write connected frame: %w", err)
	}

	since := s.now()

	for {
		if ctx.Err() != nil {
			return nil
		}

		started := s.now()
		events, err := poll(ctx, since)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil
		case err != nil:
			log.Error("Error polling events", zap.Error(err))
		default:
			for _, event := range events {
				if err := w.WriteFrame(dto.StreamMessage{Type: TypeEvent, Data: event}); err != nil {
					return fmt.Errorf("failed to write event frame: %w", err)
				}
			}
			since = started

			if err := w.WriteFrame(dto.StreamMessage{Type: TypeHeartbeat}); err != nil {
				return fmt.Errorf("failed to write heartbeat frame: %w", err)
			}
		}

		wait := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			wait.Stop()
			return nil
		case <-wait.C:
		}
	}
}
