package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opsconsole/dispatch/internal/model"
)

var dispatcher = model.Principal{UserID: uuid.New(), Role: model.RoleDispatcher}

func validCreateInput() CreateScheduleInput {
	return CreateScheduleInput{
		RouteID:       uuid.New(),
		ProviderID:    uuid.New(),
		StationID:     uuid.New(),
		ScheduledDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		DepartureTime: "07:30",
		Passengers:    []uuid.UUID{uuid.New(), uuid.New()},
	}
}

func TestCreateSchedule(t *testing.T) {
	store := newFakeStore()
	svc := NewScheduleService(store, zerolog.Nop())

	created, err := svc.Create(context.Background(), dispatcher, validCreateInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != model.ScheduleStatusPending {
		t.Fatalf("new schedules start PENDING, got %s", created.Status)
	}
}

func TestCreateScheduleValidation(t *testing.T) {
	svc := NewScheduleService(newFakeStore(), zerolog.Nop())
	ctx := context.Background()

	if _, err := svc.Create(ctx, model.Principal{Role: model.RoleDriver}, validCreateInput()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("driver create: expected ErrPermissionDenied, got %v", err)
	}

	input := validCreateInput()
	input.RouteID = uuid.Nil
	if _, err := svc.Create(ctx, dispatcher, input); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing route: expected ErrInvalidInput, got %v", err)
	}

	input = validCreateInput()
	duplicate := uuid.New()
	input.Passengers = []uuid.UUID{duplicate, duplicate}
	if _, err := svc.Create(ctx, dispatcher, input); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("duplicate passenger: expected ErrInvalidInput, got %v", err)
	}
}

func TestEditOnlyPending(t *testing.T) {
	store := newFakeStore()
	svc := NewScheduleService(store, zerolog.Nop())
	ctx := context.Background()

	schedule := &model.Schedule{ID: uuid.New(), Status: model.ScheduleStatusInProgress}
	store.schedules[schedule.ID] = schedule

	cost := 120.0
	err := svc.Edit(ctx, dispatcher, schedule.ID, model.ScheduleUpdate{Cost: &cost})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("edit of IN_PROGRESS: expected ErrInvalidState, got %v", err)
	}

	schedule.Status = model.ScheduleStatusPending
	if err := svc.Edit(ctx, dispatcher, schedule.ID, model.ScheduleUpdate{Cost: &cost}); err != nil {
		t.Fatalf("edit of PENDING: %v", err)
	}
}

func TestCancelSchedule(t *testing.T) {
	store := newFakeStore()
	svc := NewScheduleService(store, zerolog.Nop())
	ctx := context.Background()

	schedule := &model.Schedule{ID: uuid.New(), Status: model.ScheduleStatusPending}
	store.schedules[schedule.ID] = schedule

	if err := svc.Cancel(ctx, dispatcher, schedule.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if store.schedules[schedule.ID].Status != model.ScheduleStatusCancelled {
		t.Fatal("cancel must soft-delete via status")
	}

	// Cancelling again is a no-op.
	if err := svc.Cancel(ctx, dispatcher, schedule.ID); err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}

	// A completed trip cannot be cancelled.
	schedule.Status = model.ScheduleStatusCompleted
	if err := svc.Cancel(ctx, dispatcher, schedule.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("cancel of COMPLETED: expected ErrInvalidState, got %v", err)
	}
}

func TestGetUnknownSchedule(t *testing.T) {
	svc := NewScheduleService(newFakeStore(), zerolog.Nop())

	if _, err := svc.Get(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListForDateRangeValidation(t *testing.T) {
	svc := NewScheduleService(newFakeStore(), zerolog.Nop())

	from := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(-24 * time.Hour)
	if _, err := svc.ListForDateRange(context.Background(), uuid.New(), from, to); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("inverted range: expected ErrInvalidInput, got %v", err)
	}
}
