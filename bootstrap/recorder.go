package bootstrap

import (
	"context"
	"sync"
	"time"

	"github.com/glowdesk/aimeter/domain/usage"
	"github.com/glowdesk/aimeter/ports"
	"github.com/rs/zerolog"
)

// BufferedRecorder buffers usage events and writes them in batches to the
// store. Trades a small durability window for write throughput; the
// default sync path should be preferred when spend accuracy matters more
// than insert rate.
type BufferedRecorder struct {
	store         ports.UsageStore
	logger        zerolog.Logger
	buffer        []usage.Event
	mu            sync.Mutex
	batchSize     int
	flushInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
	closeOnce     sync.Once
}

// NewBufferedRecorder creates a buffered usage recorder.
func NewBufferedRecorder(store ports.UsageStore, batchSize int, flushInterval time.Duration, logger zerolog.Logger) *BufferedRecorder {
	if batchSize == 0 {
		batchSize = 100
	}
	if flushInterval == 0 {
		flushInterval = 5 * time.Second
	}

	r := &BufferedRecorder{
		store:         store,
		logger:        logger,
		buffer:        make([]usage.Event, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		stopCh:        make(chan struct{}),
	}

	r.wg.Add(1)
	go r.flushLoop()

	return r
}

// Record queues a usage event for processing.
func (r *BufferedRecorder) Record(e usage.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer = append(r.buffer, e)

	if len(r.buffer) >= r.batchSize {
		r.flushLocked()
	}
}

// Flush forces immediate processing of queued events.
func (r *BufferedRecorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushLocked()
	return nil
}

func (r *BufferedRecorder) flushLocked() {
	if len(r.buffer) == 0 {
		return
	}

	events := make([]usage.Event, len(r.buffer))
	copy(events, r.buffer)
	r.buffer = r.buffer[:0]

	// Write in background to not block event producers.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := r.store.RecordBatch(ctx, events); err != nil {
			r.logger.Error().Err(err).Int("count", len(events)).Msg("batch write failed, events lost")
		}
	}()
}

func (r *BufferedRecorder) flushLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Flush(context.Background())
		case <-r.stopCh:
			return
		}
	}
}

// Close stops the recorder and flushes remaining events.
func (r *BufferedRecorder) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.stopCh)
		r.wg.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r.mu.Lock()
		defer r.mu.Unlock()

		if len(r.buffer) > 0 {
			err = r.store.RecordBatch(ctx, r.buffer)
			r.buffer = r.buffer[:0]
		}
	})
	return err
}

// Ensure interface compliance.
var _ ports.UsageRecorder = (*BufferedRecorder)(nil)
