package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opsconsole/dispatch/internal/model"
)

func TestBulkValidateAll(t *testing.T) {
	store := newFakeStore()
	ids := make([]uuid.UUID, 0, 5)
	for i := 0; i < 5; i++ {
		schedule := &model.Schedule{ID: uuid.New(), Status: model.ScheduleStatusCompleted}
		store.schedules[schedule.ID] = schedule
		ids = append(ids, schedule.ID)
	}

	svc := NewValidationService(store, zerolog.Nop())
	result, err := svc.BulkValidate(context.Background(), model.Principal{Role: model.RoleProvider}, ids)
	if err != nil {
		t.Fatalf("bulk validate: %v", err)
	}
	if len(result.Validated) != 5 || len(result.Failed) != 0 {
		t.Fatalf("expected all 5 validated, got %d/%d", len(result.Validated), len(result.Failed))
	}

	for _, id := range ids {
		schedule := store.schedules[id]
		if !schedule.IsProviderValidated || schedule.ProviderValidatedAt == nil {
			t.Fatalf("schedule %s not validated", id)
		}
	}
}

func TestBulkValidatePartialFailure(t *testing.T) {
	store := newFakeStore()
	known := &model.Schedule{ID: uuid.New(), Status: model.ScheduleStatusCompleted}
	store.schedules[known.ID] = known
	unknown := uuid.New()

	svc := NewValidationService(store, zerolog.Nop())
	result, err := svc.BulkValidate(context.Background(), model.Principal{Role: model.RoleProvider}, []uuid.UUID{known.ID, unknown})
	if err != nil {
		t.Fatalf("partial failure must not fail the call: %v", err)
	}
	if len(result.Validated) != 1 || result.Validated[0] != known.ID {
		t.Fatalf("expected the known id validated, got %v", result.Validated)
	}
	if len(result.Failed) != 1 || result.Failed[0].ID != unknown {
		t.Fatalf("expected the unknown id reported failed, got %v", result.Failed)
	}
	if result.Failed[0].Error == "" {
		t.Fatal("failed entry must carry the error")
	}
}

func TestBulkValidateGuards(t *testing.T) {
	svc := NewValidationService(newFakeStore(), zerolog.Nop())

	_, err := svc.BulkValidate(context.Background(), model.Principal{Role: model.RoleDriver}, []uuid.UUID{uuid.New()})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("driver must not validate, got %v", err)
	}

	_, err = svc.BulkValidate(context.Background(), model.Principal{Role: model.RoleProvider}, nil)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty id set: expected ErrInvalidInput, got %v", err)
	}
}
