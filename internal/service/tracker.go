package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opsconsole/dispatch/internal/model"
)

// LocationWriter is the slice of ScheduleStore the tracker needs.
type LocationWriter interface {
	UpdateLocation(ctx context.Context, executionID uuid.UUID, sample model.LocationSample) error
}

// Tracker fans one execution's location stream into two sinks: an
// unconditional in-memory "current location" for local consumers, and a
// throttled upstream write so sync volume stays bounded no matter how
// fast the sensor fires. Upstream failures are logged and dropped; the
// stream favors availability over completeness.
type Tracker struct {
	executionID  uuid.UUID
	store        LocationWriter
	syncInterval time.Duration
	log          zerolog.Logger
	now          func() time.Time

	mu           sync.Mutex
	current      *model.LocationSample
	lastSyncedAt time.Time
	stopped      bool
	inflight     sync.WaitGroup
}

func NewTracker(executionID uuid.UUID, store LocationWriter, syncInterval time.Duration, log zerolog.Logger) *Tracker {
	return &Tracker{
		executionID:  executionID,
		store:        store,
		syncInterval: syncInterval,
		log:          log,
		now:          time.Now,
	}
}

// Offer feeds one sensor sample in. The current location always updates;
// an upstream write is issued only if the sync interval has elapsed
// since the last accepted write. The write itself runs outside the lock
// so it never blocks Current or check-in recording. Offers after Stop
// are dropped entirely.
func (t *Tracker) Offer(sample model.LocationSample) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}

	t.current = &sample

	now := t.now()
	if !t.lastSyncedAt.IsZero() && now.Sub(t.lastSyncedAt) < t.syncInterval {
		t.mu.Unlock()
		return
	}
	t.lastSyncedAt = now
	t.inflight.Add(1)
	t.mu.Unlock()

	defer t.inflight.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.store.UpdateLocation(ctx, t.executionID, sample); err != nil {
		t.log.Warn().Err(err).Str("execution_id", t.executionID.String()).Msg("location sync dropped")
	}
}

// Current returns the most recent sample, throttled or not.
func (t *Tracker) Current() *model.LocationSample {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return nil
	}
	sample := *t.current
	return &sample
}

// Stop ends the stream and waits for any in-flight upstream write. Once
// Stop returns, no sample is accepted and none can still be written, so
// a late sample cannot race a trip that has already been finished.
func (t *Tracker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	t.inflight.Wait()
}
