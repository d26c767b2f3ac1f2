package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"review-auth/internal/bucketing"
	"review-auth/internal/models"
	"review-auth/internal/util"
)

// Sink receives batches of security events. Sink failures are logged and
// dropped; the audit pipeline must never fail a request.
type Sink interface {
	Name() string
	Write(ctx context.Context, events []models.SecurityEvent) error
}

const (
	queueSize     = 1024
	maxBatch      = 64
	flushInterval = 2 * time.Second
	writeTimeout  = 10 * time.Second
)

// Recorder buffers security events off the request path and fans batches
// out to every configured sink concurrently.
type Recorder struct {
	sinks   []Sink
	buckets *bucketing.Manager
	queue   chan models.SecurityEvent
}

func NewRecorder(buckets *bucketing.Manager, sinks ...Sink) *Recorder {
	return &Recorder{
		sinks:   sinks,
		buckets: buckets,
		queue:   make(chan models.SecurityEvent, queueSize),
	}
}

// Record enqueues an event without blocking. A full queue drops the event
// with a warning rather than stalling the caller.
func (r *Recorder) Record(ev models.SecurityEvent) {
	now := time.Now().UTC()
	ev.EventTime = now
	ev.EventDate = r.buckets.DateBucket(now)
	ev.EventBucket = r.buckets.EventBucket(ev.Username + ev.EventType)

	select {
	case r.queue <- ev:
	default:
		util.Warn("Audit queue full, dropping security event",
			zap.String("event_type", ev.EventType),
			zap.String("username", ev.Username))
	}
}

// Run drains the queue in batches until ctx is cancelled, then flushes
// whatever is still buffered.
func (r *Recorder) Run(ctx context.Context) {
	if len(r.sinks) == 0 {
		util.Warn("Audit recorder running without sinks; security events are log-only")
	}

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]models.SecurityEvent, 0, maxBatch)
	for {
		select {
		case <-ctx.Done():
			r.flush(r.drain(batch))
			return
		case ev := <-r.queue:
			batch = append(batch, ev)
			if len(batch) >= maxBatch {
				r.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (r *Recorder) drain(batch []models.SecurityEvent) []models.SecurityEvent {
	for {
		select {
		case ev := <-r.queue:
			batch = append(batch, ev)
		default:
			return batch
		}
	}
}

func (r *Recorder) flush(batch []models.SecurityEvent) {
	if len(batch) == 0 || len(r.sinks) == 0 {
		return
	}

	events := make([]models.SecurityEvent, len(batch))
	copy(events, batch)

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, sink := range r.sinks {
		g.Go(func() error {
			if err := sink.Write(gctx, events); err != nil {
				util.Error("Audit sink write failed",
					zap.String("sink", sink.Name()),
					zap.Int("events", len(events)),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}
