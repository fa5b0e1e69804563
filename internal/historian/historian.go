// internal/historian/historian.go
package historian

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/partyroom/internal/models"
)

// Source yields queued session records. ok is false when timeout passed
// without a record.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (st models.SessionStats, ok bool, err error)
}

// Sink persists a batch of records.
type Sink interface {
	InsertSessionStats(ctx context.Context, stats []models.SessionStats) error
}

const (
	DefaultBatchSize  = 20
	DefaultFlushDelay = 500 * time.Millisecond
	DefaultPopTimeout = 3 * time.Second

	flushTimeout = 10 * time.Second
	errorBackoff = time.Second
)

// Service drains a Source into a Sink in batches. A batch is written when
// it reaches batchSize, when flushDelay elapses, and on shutdown.
type Service struct {
	src    Source
	sink   Sink
	logger logrus.FieldLogger

	batchSize  int
	flushDelay time.Duration
	// PopTimeout bounds each blocking Pop so the loop can observe ticks
	// and cancellation.
	PopTimeout time.Duration

	batch []models.SessionStats
}

func New(src Source, sink Sink, logger logrus.FieldLogger, batchSize int, flushDelay time.Duration) *Service {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if flushDelay <= 0 {
		flushDelay = DefaultFlushDelay
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		src:        src,
		sink:       sink,
		logger:     logger,
		batchSize:  batchSize,
		flushDelay: flushDelay,
		PopTimeout: DefaultPopTimeout,
		batch:      make([]models.SessionStats, 0, batchSize),
	}
}

// Run blocks until ctx is done, then flushes what is left.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.flushDelay)
	defer ticker.Stop()

	s.logger.WithFields(logrus.Fields{
		"batch_size": s.batchSize,
		"flush":      s.flushDelay,
	}).Info("historian started")

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return

		case <-ticker.C:
			s.flush(ctx)

		default:
			st, ok, err := s.src.Pop(ctx, s.PopTimeout)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				s.logger.WithError(err).Error("pop from stats queue")
				select {
				case <-ctx.Done():
				case <-time.After(errorBackoff):
				}
				continue
			}
			if !ok {
				continue
			}
			s.batch = append(s.batch, st)
			if len(s.batch) >= s.batchSize {
				s.flush(ctx)
			}
		}
	}
}

func (s *Service) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	s.flush(ctx)
	s.logger.Info("historian shutting down")
}

// flush writes the pending batch. A failed batch is logged and dropped.
func (s *Service) flush(ctx context.Context) {
	if len(s.batch) == 0 {
		return
	}
	out := make([]models.SessionStats, len(s.batch))
	copy(out, s.batch)
	s.batch = s.batch[:0]

	if err := s.sink.InsertSessionStats(ctx, out); err != nil {
		s.logger.WithError(err).WithField("records", len(out)).Error("flush session stats")
		return
	}
	s.logger.WithField("records", len(out)).Debug("flushed session stats")
}
