// internal/historian/historian_test.go
package historian

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/partyroom/internal/models"
)

type chanSource struct {
	ch     chan models.SessionStats
	popped atomic.Int32
}

func newChanSource() *chanSource {
	return &chanSource{ch: make(chan models.SessionStats, 16)}
}

func (c *chanSource) Pop(ctx context.Context, timeout time.Duration) (models.SessionStats, bool, error) {
	select {
	case st := <-c.ch:
		c.popped.Add(1)
		return st, true, nil
	case <-time.After(timeout):
		return models.SessionStats{}, false, nil
	case <-ctx.Done():
		return models.SessionStats{}, false, ctx.Err()
	}
}

type fakeSink struct {
	mu      sync.Mutex
	batches [][]models.SessionStats
	err     error
}

func (f *fakeSink) InsertSessionStats(_ context.Context, stats []models.SessionStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, stats)
	return nil
}

func (f *fakeSink) snapshot() [][]models.SessionStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]models.SessionStats(nil), f.batches...)
}

func record(user string) models.SessionStats {
	return models.SessionStats{UserID: user, RoomCode: "ABC123", GameType: "trivia"}
}

func start(t *testing.T, svc *Service) (context.CancelFunc, <-chan struct{}) {
	t.Helper()
	svc.PopTimeout = 5 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel, done
}

func TestFlushOnBatchSize(t *testing.T) {
	logger, _ := test.NewNullLogger()
	src, sink := newChanSource(), &fakeSink{}
	start(t, New(src, sink, logger, 2, time.Hour))

	src.ch <- record("u1")
	src.ch <- record("u2")

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)
	batch := sink.snapshot()[0]
	require.Len(t, batch, 2)
	assert.Equal(t, "u1", batch[0].UserID)
	assert.Equal(t, "u2", batch[1].UserID)
}

func TestFlushOnTick(t *testing.T) {
	logger, _ := test.NewNullLogger()
	src, sink := newChanSource(), &fakeSink{}
	start(t, New(src, sink, logger, 100, 20*time.Millisecond))

	src.ch <- record("u1")

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, sink.snapshot()[0], 1)
}

func TestFlushOnShutdown(t *testing.T) {
	logger, hook := test.NewNullLogger()
	src, sink := newChanSource(), &fakeSink{}
	cancel, done := start(t, New(src, sink, logger, 100, time.Hour))

	src.ch <- record("u1")
	require.Eventually(t, func() bool { return src.popped.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, sink.snapshot())

	cancel()
	<-done

	batches := sink.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, "u1", batches[0][0].UserID)
	assert.Equal(t, "historian shutting down", hook.LastEntry().Message)
}

func TestFailedFlushIsLoggedAndDropped(t *testing.T) {
	logger, hook := test.NewNullLogger()
	src, sink := newChanSource(), &fakeSink{err: errors.New("db down")}
	svc := New(src, sink, logger, 1, time.Hour)
	svc.batch = append(svc.batch, record("u1"))

	svc.flush(context.Background())

	assert.Empty(t, svc.batch)
	require.NotEmpty(t, hook.AllEntries())
	entry := hook.LastEntry()
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, 1, entry.Data["records"])
}

func TestDefaults(t *testing.T) {
	svc := New(newChanSource(), &fakeSink{}, nil, 0, 0)
	assert.Equal(t, DefaultBatchSize, svc.batchSize)
	assert.Equal(t, DefaultFlushDelay, svc.flushDelay)
	assert.Equal(t, DefaultPopTimeout, svc.PopTimeout)
}
