package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opsconsole/dispatch/internal/model"
)

// ValidationService applies a provider's billing sign-off across a set
// of completed trips. Callers pre-filter the ids to COMPLETED,
// not-yet-validated schedules; the updates are independent rows issued
// concurrently with no ordering between them.
type ValidationService struct {
	store ScheduleStore
	log   zerolog.Logger
}

func NewValidationService(store ScheduleStore, log zerolog.Logger) *ValidationService {
	return &ValidationService{store: store, log: log}
}

// FailedValidation is one id that did not get validated, with why.
type FailedValidation struct {
	ID    uuid.UUID `json:"id"`
	Error string    `json:"error"`
}

// BulkValidationResult reports the outcome per id. A partial failure
// never hides which subset succeeded.
type BulkValidationResult struct {
	Validated []uuid.UUID        `json:"validated"`
	Failed    []FailedValidation `json:"failed"`
}

func (s *ValidationService) BulkValidate(ctx context.Context, principal model.Principal, ids []uuid.UUID) (*BulkValidationResult, error) {
	if !principal.IsProvider() {
		return nil, ErrPermissionDenied
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no schedule ids", ErrInvalidInput)
	}

	now := time.Now().UTC()
	result := &BulkValidationResult{}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			err := s.store.SetValidated(ctx, id, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, FailedValidation{ID: id, Error: err.Error()})
				return
			}
			result.Validated = append(result.Validated, id)
		}(id)
	}
	wg.Wait()

	sort.Slice(result.Validated, func(i, j int) bool {
		return result.Validated[i].String() < result.Validated[j].String()
	})
	sort.Slice(result.Failed, func(i, j int) bool {
		return result.Failed[i].ID.String() < result.Failed[j].ID.String()
	})

	if len(result.Failed) > 0 {
		s.log.Warn().
			Int("validated", len(result.Validated)).
			Int("failed", len(result.Failed)).
			Msg("bulk validation partially failed")
	}
	return result, nil
}
