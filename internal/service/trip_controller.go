package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/opsconsole/dispatch/internal/model"
	"github.com/opsconsole/dispatch/internal/notify"
	"github.com/opsconsole/dispatch/internal/offline"
)

// TripControllerConfig bounds the controller's waits.
type TripControllerConfig struct {
	SyncInterval    time.Duration
	StartFixTimeout time.Duration
}

// TripController drives one schedule at a time through
// PENDING → IN_PROGRESS → COMPLETED for a single driver session. It owns
// the tracker and the check-in ledger for the duration of the trip and
// guarantees the trip can always be closed out: a failed remote finish
// falls back to the durable offline queue and the driver moves on.
type TripController struct {
	store     ScheduleStore
	directory EmployeeDirectory
	queue     OfflineQueue
	source    LocationSource
	notifier  notify.Notifier
	cfg       TripControllerConfig
	log       zerolog.Logger
	now       func() time.Time

	mu           sync.Mutex
	driverID     uuid.UUID
	schedule     *model.Schedule
	execution    *model.Execution
	ledger       *Ledger
	tracker      *Tracker
	subscription Subscription

	fixMu    sync.Mutex
	firstFix chan model.LocationSample
	fixFail  chan error
}

func NewTripController(
	store ScheduleStore,
	directory EmployeeDirectory,
	queue OfflineQueue,
	source LocationSource,
	notifier notify.Notifier,
	cfg TripControllerConfig,
	log zerolog.Logger,
	driverID uuid.UUID,
) *TripController {
	if cfg.SyncInterval == 0 {
		cfg.SyncInterval = 10 * time.Second
	}
	if cfg.StartFixTimeout == 0 {
		cfg.StartFixTimeout = 30 * time.Second
	}
	return &TripController{
		store:     store,
		directory: directory,
		queue:     queue,
		source:    source,
		notifier:  notifier,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
		driverID:  driverID,
	}
}

// Start begins execution of a PENDING schedule. Acquiring a current
// location fix is a hard precondition: if the source denies permission
// or no fix arrives within the configured timeout, the start fails with
// ErrLocationUnavailable and the schedule stays PENDING.
func (c *TripController) Start(ctx context.Context, scheduleID uuid.UUID) (*model.Execution, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.schedule != nil && c.schedule.Status == model.ScheduleStatusInProgress {
		return nil, fmt.Errorf("%w: another trip is in progress", ErrInvalidState)
	}

	schedule, err := c.store.GetByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if schedule.Status != model.ScheduleStatusPending {
		return nil, fmt.Errorf("%w: schedule is %s, expected PENDING", ErrInvalidState, schedule.Status)
	}
	if schedule.DriverID == nil || *schedule.DriverID != c.driverID {
		return nil, fmt.Errorf("%w: schedule is not assigned to this driver", ErrPermissionDenied)
	}

	fix, subscription, err := c.acquireFix(ctx)
	if err != nil {
		return nil, err
	}

	now := c.now().UTC()
	execution, err := c.store.StartExecution(ctx, scheduleID, fix, now)
	if err != nil {
		subscription.Cancel()
		return nil, err
	}

	roster, err := c.store.Roster(ctx, scheduleID)
	if err != nil {
		subscription.Cancel()
		return nil, err
	}

	schedule.Status = model.ScheduleStatusInProgress
	c.schedule = schedule
	c.execution = execution
	c.ledger = NewLedger(roster)
	c.tracker = NewTracker(execution.ID, c.store, c.cfg.SyncInterval, c.log)
	c.subscription = subscription

	c.notifier.Publish(ctx, notify.Event{
		Type:       notify.EventTripStarted,
		ScheduleID: scheduleID,
		DriverID:   c.driverID,
		At:         now,
	})
	c.log.Info().Str("schedule_id", scheduleID.String()).Msg("trip started")
	return execution, nil
}

// acquireFix subscribes to the location source and waits a bounded time
// for the first sample. The subscription stays open on success and keeps
// feeding the tracker for the rest of the trip.
func (c *TripController) acquireFix(ctx context.Context) (model.LocationSample, Subscription, error) {
	c.fixMu.Lock()
	c.firstFix = make(chan model.LocationSample, 1)
	c.fixFail = make(chan error, 1)
	c.fixMu.Unlock()

	subscription, err := c.source.Subscribe(c.onSample, c.onSourceError)
	if err != nil {
		return model.LocationSample{}, nil, fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
	}

	timer := time.NewTimer(c.cfg.StartFixTimeout)
	defer timer.Stop()

	select {
	case fix := <-c.firstFix:
		return fix, subscription, nil
	case err := <-c.fixFail:
		subscription.Cancel()
		return model.LocationSample{}, nil, fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
	case <-timer.C:
		subscription.Cancel()
		return model.LocationSample{}, nil, fmt.Errorf("%w: no fix within %s", ErrLocationUnavailable, c.cfg.StartFixTimeout)
	case <-ctx.Done():
		subscription.Cancel()
		return model.LocationSample{}, nil, fmt.Errorf("%w: %v", ErrLocationUnavailable, ctx.Err())
	}
}

// onSample is the source callback. It races nothing: the first fix
// channel is buffered, and the tracker serializes its own state.
func (c *TripController) onSample(sample model.LocationSample) {
	c.fixMu.Lock()
	if c.firstFix != nil {
		select {
		case c.firstFix <- sample:
		default:
		}
	}
	c.fixMu.Unlock()

	c.mu.Lock()
	tracker := c.tracker
	c.mu.Unlock()
	if tracker != nil {
		tracker.Offer(sample)
	}
}

// onSourceError handles terminal sensor failure (permission revoked).
// The trip stays IN_PROGRESS: boarding and finish do not depend on
// tracking.
func (c *TripController) onSourceError(err error) {
	c.fixMu.Lock()
	if c.fixFail != nil {
		select {
		case c.fixFail <- err:
		default:
		}
	}
	c.fixMu.Unlock()

	c.mu.Lock()
	schedule := c.schedule
	if c.tracker != nil {
		c.tracker.Stop()
	}
	if c.subscription != nil {
		c.subscription.Cancel()
		c.subscription = nil
	}
	c.mu.Unlock()

	event := notify.Event{
		Type:     notify.EventTrackingFailed,
		DriverID: c.driverID,
		At:       c.now().UTC(),
		Detail:   map[string]string{"reason": err.Error()},
	}
	if schedule != nil {
		event.ScheduleID = schedule.ID
	}
	c.notifier.Publish(context.Background(), event)
	c.log.Warn().Err(err).Msg("location tracking failed")
}

// CheckIn records a boarding decision for a passenger on the active
// trip. Valid only while IN_PROGRESS; identical repeats are no-ops and a
// changed decision overwrites.
func (c *TripController) CheckIn(ctx context.Context, employeeID uuid.UUID, status model.CheckInStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.schedule == nil || c.schedule.Status != model.ScheduleStatusInProgress {
		return fmt.Errorf("%w: no trip in progress", ErrInvalidState)
	}

	var location *model.LocationSample
	if c.tracker != nil {
		location = c.tracker.Current()
	}
	return c.ledger.Record(employeeID, status, c.now().UTC(), location)
}

// ScanCheckIn resolves a scanned code (a national id) to a roster member
// and boards them. A code that matches no roster entry reports
// ErrNotOnManifest and records nothing.
func (c *TripController) ScanCheckIn(ctx context.Context, code string) (*model.Employee, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.schedule == nil || c.schedule.Status != model.ScheduleStatusInProgress {
		return nil, fmt.Errorf("%w: no trip in progress", ErrInvalidState)
	}

	employee, err := c.ledger.ResolveScan(code)
	if err != nil {
		// The directory may know the code even when the roster row is
		// missing national id data; membership still decides.
		resolved, dirErr := c.directory.FindByNationalID(ctx, code)
		if dirErr != nil || !c.ledgerHas(resolved.ID) {
			c.notifier.Publish(ctx, notify.Event{
				Type:       notify.EventCheckInRejected,
				ScheduleID: c.schedule.ID,
				DriverID:   c.driverID,
				At:         c.now().UTC(),
				Detail:     map[string]string{"code": code},
			})
			return nil, ErrNotOnManifest
		}
		employee = resolved
	}

	var location *model.LocationSample
	if c.tracker != nil {
		location = c.tracker.Current()
	}
	if err := c.ledger.Record(employee.ID, model.CheckInStatusBoarded, c.now().UTC(), location); err != nil {
		return nil, err
	}
	return employee, nil
}

func (c *TripController) ledgerHas(employeeID uuid.UUID) bool {
	return c.ledger != nil && c.ledger.onRoster(employeeID)
}

// FinishResult reports how a finish concluded.
type FinishResult struct {
	Offline          bool `json:"offline"`
	AlreadyCompleted bool `json:"already_completed"`
}

// Finish closes the active trip. The tracker is stopped first, so no
// late sample can race the close-out. The remote write is attempted
// once; on failure the full payload goes to the offline queue and the
// local state still transitions to COMPLETED so the driver is never
// blocked. A second Finish after completion is a no-op.
func (c *TripController) Finish(ctx context.Context) (*FinishResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.schedule == nil {
		return nil, fmt.Errorf("%w: no trip in progress", ErrInvalidState)
	}
	if c.schedule.Status == model.ScheduleStatusCompleted {
		return &FinishResult{AlreadyCompleted: true, Offline: c.schedule.PendingSync}, nil
	}
	if c.schedule.Status != model.ScheduleStatusInProgress {
		return nil, fmt.Errorf("%w: schedule is %s", ErrInvalidState, c.schedule.Status)
	}

	if c.tracker != nil {
		c.tracker.Stop()
	}
	if c.subscription != nil {
		c.subscription.Cancel()
		c.subscription = nil
	}

	endTime := c.now().UTC()
	checkIns := c.ledger.Records()

	result := &FinishResult{}
	if err := c.store.Finish(ctx, c.schedule.ID, endTime, checkIns); err != nil {
		c.log.Warn().Err(err).Str("schedule_id", c.schedule.ID.String()).Msg("remote finish failed, queueing")
		queueErr := c.queue.Put(offline.FinishPayload{
			ScheduleID: c.schedule.ID,
			EndTime:    endTime,
			CheckIns:   checkIns,
		})
		if queueErr != nil {
			// Both the remote store and the local fallback failed; the
			// manifest is still in memory, so refuse to drop it.
			return nil, fmt.Errorf("queue finish payload: %w", queueErr)
		}
		result.Offline = true
		c.schedule.PendingSync = true
		c.notifier.Publish(ctx, notify.Event{
			Type:       notify.EventTripFinishedOffline,
			ScheduleID: c.schedule.ID,
			DriverID:   c.driverID,
			At:         endTime,
		})
	} else {
		c.notifier.Publish(ctx, notify.Event{
			Type:       notify.EventTripFinished,
			ScheduleID: c.schedule.ID,
			DriverID:   c.driverID,
			At:         endTime,
		})
	}

	c.schedule.Status = model.ScheduleStatusCompleted
	now := endTime
	c.execution.EndTime = &now
	c.ledger = nil
	c.tracker = nil

	c.log.Info().
		Str("schedule_id", c.schedule.ID.String()).
		Bool("offline", result.Offline).
		Msg("trip finished")
	return result, nil
}

// Replay pushes every queued finish payload through the normal finish
// path. Entries are removed only on confirmed success; failures keep
// their payload and stay queued.
func (c *TripController) Replay(ctx context.Context) (replayed int, remaining int64, err error) {
	entries, err := c.queue.Entries()
	if err != nil {
		return 0, 0, err
	}

	for _, entry := range entries {
		payload, err := entry.Decode()
		if err != nil {
			// Undecodable entries are kept for inspection, never dropped.
			c.log.Error().Err(err).Str("schedule_id", entry.ScheduleID.String()).Msg("offline entry unreadable")
			continue
		}
		if err := c.store.Finish(ctx, payload.ScheduleID, payload.EndTime, payload.CheckIns); err != nil {
			if markErr := c.queue.MarkAttempt(entry.ScheduleID, err); markErr != nil {
				c.log.Error().Err(markErr).Msg("mark replay attempt")
			}
			continue
		}
		if err := c.queue.Remove(entry.ScheduleID); err != nil {
			return replayed, 0, err
		}
		replayed++
		c.notifier.Publish(ctx, notify.Event{
			Type:       notify.EventTripSyncReplayed,
			ScheduleID: payload.ScheduleID,
			DriverID:   c.driverID,
			At:         c.now().UTC(),
		})
	}

	remaining, err = c.queue.PendingCount()
	if err != nil {
		return replayed, 0, err
	}
	return replayed, remaining, nil
}

// PendingSyncCount is the number of trips waiting for upload, surfaced
// to the driver.
func (c *TripController) PendingSyncCount() (int64, error) {
	return c.queue.PendingCount()
}

// Restore re-enters an interrupted trip after a process restart: if the
// remote store still shows an IN_PROGRESS schedule for this driver, the
// roster is reloaded and the tracker reopened instead of losing the
// session. In-memory check-ins from before the restart are gone; the
// persisted manifest at finish reflects decisions made after resume.
func (c *TripController) Restore(ctx context.Context) (*model.Schedule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.schedule != nil && c.schedule.Status == model.ScheduleStatusInProgress {
		return c.schedule, nil
	}

	schedule, err := c.store.FindInProgressForDriver(ctx, c.driverID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	// A remote IN_PROGRESS schedule with a queued finish was already
	// closed out locally; the remote record just hasn't caught up.
	// Re-entering it would hand the driver a fresh empty ledger whose
	// next offline finish overwrites the queued manifest. It stays
	// visible through the pending-sync count until replay reconciles it.
	entries, err := c.queue.Entries()
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.ScheduleID == schedule.ID {
			c.log.Info().Str("schedule_id", schedule.ID.String()).Msg("finish already queued, not restoring")
			return nil, nil
		}
	}

	execution, err := c.store.GetExecution(ctx, schedule.ID)
	if err != nil {
		return nil, err
	}
	roster, err := c.store.Roster(ctx, schedule.ID)
	if err != nil {
		return nil, err
	}

	subscription, err := c.source.Subscribe(c.onSample, c.onSourceError)
	if err != nil {
		// Resume without tracking rather than strand the trip; boarding
		// and finish still work.
		c.log.Warn().Err(err).Msg("tracking unavailable on resume")
	} else {
		c.subscription = subscription
	}

	c.schedule = schedule
	c.execution = execution
	c.ledger = NewLedger(roster)
	c.tracker = NewTracker(execution.ID, c.store, c.cfg.SyncInterval, c.log)

	c.notifier.Publish(ctx, notify.Event{
		Type:       notify.EventTripRestored,
		ScheduleID: schedule.ID,
		DriverID:   c.driverID,
		At:         c.now().UTC(),
	})
	c.log.Info().Str("schedule_id", schedule.ID.String()).Msg("trip session restored")
	return schedule, nil
}

// Active returns the current schedule and its ledger snapshot, or nil
// when no trip is loaded.
func (c *TripController) Active() (*model.Schedule, []LedgerEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.schedule == nil {
		return nil, nil
	}
	schedule := *c.schedule
	var entries []LedgerEntry
	if c.ledger != nil {
		entries = c.ledger.Snapshot()
	}
	return &schedule, entries
}

// CurrentLocation exposes the tracker's latest sample for local
// consumers.
func (c *TripController) CurrentLocation() *model.LocationSample {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tracker == nil {
		return nil
	}
	return c.tracker.Current()
}
