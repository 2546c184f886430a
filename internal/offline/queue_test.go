package offline

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opsconsole/dispatch/internal/model"
)

func testQueue(t *testing.T) *Queue {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite memory DB: %v", err)
	}
	queue, err := NewQueue(db)
	if err != nil {
		t.Fatalf("init queue: %v", err)
	}
	return queue
}

func testPayload(scheduleID uuid.UUID, checkIns int) FinishPayload {
	payload := FinishPayload{
		ScheduleID: scheduleID,
		EndTime:    time.Date(2026, 4, 2, 18, 30, 0, 0, time.UTC),
	}
	for i := 0; i < checkIns; i++ {
		payload.CheckIns = append(payload.CheckIns, model.CheckInRecord{
			EmployeeID: uuid.New(),
			Status:     model.CheckInStatusBoarded,
			RecordedAt: payload.EndTime.Add(-time.Hour),
		})
	}
	return payload
}

func TestQueueRoundTrip(t *testing.T) {
	queue := testQueue(t)
	payload := testPayload(uuid.New(), 2)

	if err := queue.Put(payload); err != nil {
		t.Fatalf("put: %v", err)
	}

	entries, err := queue.Entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	decoded, err := entries[0].Decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ScheduleID != payload.ScheduleID || len(decoded.CheckIns) != 2 {
		t.Fatalf("payload did not survive the round trip: %+v", decoded)
	}
	if !decoded.EndTime.Equal(payload.EndTime) {
		t.Fatalf("end time mangled: %v", decoded.EndTime)
	}
}

func TestQueueOverwritesPerSchedule(t *testing.T) {
	queue := testQueue(t)
	scheduleID := uuid.New()

	if err := queue.Put(testPayload(scheduleID, 1)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := queue.Put(testPayload(scheduleID, 3)); err != nil {
		t.Fatalf("second put: %v", err)
	}

	count, err := queue.PendingCount()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("a second finish for the same trip must overwrite, got %d entries", count)
	}

	entries, _ := queue.Entries()
	decoded, _ := entries[0].Decode()
	if len(decoded.CheckIns) != 3 {
		t.Fatalf("expected the newer payload, got %d check-ins", len(decoded.CheckIns))
	}
}

func TestQueueRemove(t *testing.T) {
	queue := testQueue(t)
	first := testPayload(uuid.New(), 1)
	second := testPayload(uuid.New(), 1)

	if err := queue.Put(first); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := queue.Put(second); err != nil {
		t.Fatalf("put: %v", err)
	}

	if err := queue.Remove(first.ScheduleID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	count, _ := queue.PendingCount()
	if count != 1 {
		t.Fatalf("expected 1 remaining, got %d", count)
	}
	entries, _ := queue.Entries()
	if entries[0].ScheduleID != second.ScheduleID {
		t.Fatal("wrong entry removed")
	}
}

func TestQueueMarkAttempt(t *testing.T) {
	queue := testQueue(t)
	payload := testPayload(uuid.New(), 1)

	if err := queue.Put(payload); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := queue.MarkAttempt(payload.ScheduleID, fmt.Errorf("connection refused")); err != nil {
		t.Fatalf("mark attempt: %v", err)
	}
	if err := queue.MarkAttempt(payload.ScheduleID, fmt.Errorf("timeout")); err != nil {
		t.Fatalf("mark attempt: %v", err)
	}

	entries, _ := queue.Entries()
	if entries[0].Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", entries[0].Attempts)
	}
	if entries[0].LastError != "timeout" {
		t.Fatalf("expected latest error kept, got %q", entries[0].LastError)
	}
}
