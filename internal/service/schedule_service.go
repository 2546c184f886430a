package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/opsconsole/dispatch/internal/model"
)

// ScheduleService is the dispatcher-facing lifecycle: create a planned
// trip, edit it while it is still PENDING, cancel it, and list it for
// the console and the driver device.
type ScheduleService struct {
	store ScheduleStore
	log   zerolog.Logger
}

func NewScheduleService(store ScheduleStore, log zerolog.Logger) *ScheduleService {
	return &ScheduleService{store: store, log: log}
}

type CreateScheduleInput struct {
	RouteID       uuid.UUID
	ProviderID    uuid.UUID
	StationID     uuid.UUID
	ScheduledDate time.Time
	DepartureTime string
	DriverID      *uuid.UUID
	VehicleID     *uuid.UUID
	Cost          float64
	Passengers    []uuid.UUID
}

func (s *ScheduleService) Create(ctx context.Context, principal model.Principal, input CreateScheduleInput) (*model.Schedule, error) {
	if !principal.IsDispatcher() {
		return nil, ErrPermissionDenied
	}
	if input.RouteID == uuid.Nil || input.ProviderID == uuid.Nil {
		return nil, fmt.Errorf("%w: route_id and provider_id are required", ErrInvalidInput)
	}
	if input.ScheduledDate.IsZero() {
		return nil, fmt.Errorf("%w: scheduled_date is required", ErrInvalidInput)
	}
	if seen := duplicatePassenger(input.Passengers); seen != uuid.Nil {
		return nil, fmt.Errorf("%w: passenger %s listed twice", ErrInvalidInput, seen)
	}

	now := time.Now().UTC()
	schedule := model.Schedule{
		RouteID:       input.RouteID,
		ProviderID:    input.ProviderID,
		StationID:     input.StationID,
		ScheduledDate: dateOnly(input.ScheduledDate),
		DepartureTime: input.DepartureTime,
		DriverID:      input.DriverID,
		VehicleID:     input.VehicleID,
		Cost:          input.Cost,
		Status:        model.ScheduleStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	created, err := s.store.Create(ctx, schedule, input.Passengers)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("schedule_id", created.ID.String()).Msg("schedule created")
	return created, nil
}

// Edit applies a partial update. Only PENDING schedules are editable;
// once a driver owns the trip the plan is frozen.
func (s *ScheduleService) Edit(ctx context.Context, principal model.Principal, id uuid.UUID, upd model.ScheduleUpdate) error {
	if !principal.IsDispatcher() {
		return ErrPermissionDenied
	}

	schedule, err := s.getSchedule(ctx, id)
	if err != nil {
		return err
	}
	if schedule.Status != model.ScheduleStatusPending {
		return fmt.Errorf("%w: schedule is %s, only PENDING schedules are editable", ErrInvalidState, schedule.Status)
	}
	if seen := duplicatePassenger(upd.Passengers); seen != uuid.Nil {
		return fmt.Errorf("%w: passenger %s listed twice", ErrInvalidInput, seen)
	}
	return s.store.Update(ctx, id, upd)
}

// Cancel soft-deletes a planned trip. A trip a driver has started (or
// finished) can no longer be cancelled.
func (s *ScheduleService) Cancel(ctx context.Context, principal model.Principal, id uuid.UUID) error {
	if !principal.IsDispatcher() {
		return ErrPermissionDenied
	}

	schedule, err := s.getSchedule(ctx, id)
	if err != nil {
		return err
	}
	switch schedule.Status {
	case model.ScheduleStatusPending:
		// cancellable
	case model.ScheduleStatusCancelled:
		return nil
	default:
		return fmt.Errorf("%w: schedule is %s", ErrInvalidState, schedule.Status)
	}

	if err := s.store.SetStatus(ctx, id, model.ScheduleStatusCancelled); err != nil {
		return err
	}
	s.log.Info().Str("schedule_id", id.String()).Msg("schedule cancelled")
	return nil
}

func (s *ScheduleService) Get(ctx context.Context, id uuid.UUID) (*model.Schedule, error) {
	return s.getSchedule(ctx, id)
}

// ListForDriver returns the driver's own schedules for a date, departure
// order.
func (s *ScheduleService) ListForDriver(ctx context.Context, principal model.Principal, date time.Time) ([]model.Schedule, error) {
	if !principal.IsDriver() {
		return nil, ErrPermissionDenied
	}
	return s.store.ListForDriver(ctx, principal.UserID, date)
}

func (s *ScheduleService) ListForDateRange(ctx context.Context, stationID uuid.UUID, from, to time.Time) ([]model.Schedule, error) {
	if from.After(to) {
		return nil, fmt.Errorf("%w: from must not be after to", ErrInvalidInput)
	}
	return s.store.ListForDateRange(ctx, stationID, from, to)
}

func (s *ScheduleService) Roster(ctx context.Context, id uuid.UUID) ([]model.Employee, error) {
	if _, err := s.getSchedule(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Roster(ctx, id)
}

func (s *ScheduleService) getSchedule(ctx context.Context, id uuid.UUID) (*model.Schedule, error) {
	schedule, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return schedule, nil
}

func duplicatePassenger(ids []uuid.UUID) uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return id
		}
		seen[id] = struct{}{}
	}
	return uuid.Nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
