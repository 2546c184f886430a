package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/opsconsole/dispatch/internal/model"
	"github.com/opsconsole/dispatch/internal/offline"
)

// ScheduleStore is the persistence gateway for schedule and execution
// records. The remote store is authoritative; every write here may fail
// and callers own the fallback behavior.
type ScheduleStore interface {
	Create(ctx context.Context, schedule model.Schedule, manifest []uuid.UUID) (*model.Schedule, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Schedule, error)
	Update(ctx context.Context, id uuid.UUID, upd model.ScheduleUpdate) error
	SetStatus(ctx context.Context, id uuid.UUID, status model.ScheduleStatus) error
	ListForDriver(ctx context.Context, driverID uuid.UUID, date time.Time) ([]model.Schedule, error)
	ListForDateRange(ctx context.Context, stationID uuid.UUID, from, to time.Time) ([]model.Schedule, error)
	FindInProgressForDriver(ctx context.Context, driverID uuid.UUID) (*model.Schedule, error)
	StartExecution(ctx context.Context, scheduleID uuid.UUID, fix model.LocationSample, now time.Time) (*model.Execution, error)
	GetExecution(ctx context.Context, scheduleID uuid.UUID) (*model.Execution, error)
	UpdateLocation(ctx context.Context, executionID uuid.UUID, sample model.LocationSample) error
	Finish(ctx context.Context, scheduleID uuid.UUID, endTime time.Time, checkIns []model.CheckInRecord) error
	SetValidated(ctx context.Context, id uuid.UUID, at time.Time) error
	Roster(ctx context.Context, scheduleID uuid.UUID) ([]model.Employee, error)
}

// EmployeeDirectory resolves passengers, including the scanned-code
// lookup used by the barcode check-in path.
type EmployeeDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Employee, error)
	FindByNationalID(ctx context.Context, nationalID string) (*model.Employee, error)
}

// OfflineQueue is the durable local fallback for finish payloads that
// could not reach the remote store.
type OfflineQueue interface {
	Put(payload offline.FinishPayload) error
	Entries() ([]offline.Entry, error)
	Remove(scheduleID uuid.UUID) error
	MarkAttempt(scheduleID uuid.UUID, attemptErr error) error
	PendingCount() (int64, error)
}

// LocationSource is the device's push-based location stream. Subscribe
// registers the sample callback; the source invokes it at whatever rate
// the underlying sensor decides. A subscribe error (permission denial)
// is terminal for the source.
type LocationSource interface {
	Subscribe(onSample func(model.LocationSample), onError func(error)) (Subscription, error)
}

// Subscription is a cancellable handle on a location stream. After
// Cancel returns no further callbacks are delivered.
type Subscription interface {
	Cancel()
}
