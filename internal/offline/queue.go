package offline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/opsconsole/dispatch/internal/model"
)

// FinishPayload is the full close-out of one trip: everything the remote
// finish call needs, serialized so it survives a restart.
type FinishPayload struct {
	ScheduleID uuid.UUID             `json:"schedule_id"`
	EndTime    time.Time             `json:"end_time"`
	CheckIns   []model.CheckInRecord `json:"check_ins"`
}

// Entry is one queued finish. One row per schedule: a second finish for
// the same trip overwrites, since only one finish can ever be valid.
type Entry struct {
	ScheduleID uuid.UUID `gorm:"column:schedule_id;type:uuid;primaryKey"`
	Payload    []byte    `gorm:"column:payload"`
	QueuedAt   time.Time `gorm:"column:queued_at"`
	Attempts   int       `gorm:"column:attempts"`
	LastError  string    `gorm:"column:last_error"`
}

func (Entry) TableName() string {
	return "offline_finishes"
}

// Decode unmarshals the stored finish payload.
func (e Entry) Decode() (FinishPayload, error) {
	var payload FinishPayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return FinishPayload{}, fmt.Errorf("decode offline entry %s: %w", e.ScheduleID, err)
	}
	return payload, nil
}

// Queue is the durable local fallback store for finish payloads. Entries
// are removed only after a confirmed successful replay.
type Queue struct {
	db *gorm.DB
}

func NewQueue(db *gorm.DB) (*Queue, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate offline queue: %w", err)
	}
	return &Queue{db: db}, nil
}

func (q *Queue) Put(payload FinishPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode finish payload: %w", err)
	}
	entry := Entry{
		ScheduleID: payload.ScheduleID,
		Payload:    raw,
		QueuedAt:   time.Now().UTC(),
	}
	return q.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "schedule_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "queued_at"}),
	}).Create(&entry).Error
}

func (q *Queue) Entries() ([]Entry, error) {
	var entries []Entry
	if err := q.db.Order("queued_at ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (q *Queue) Remove(scheduleID uuid.UUID) error {
	return q.db.Where("schedule_id = ?", scheduleID).Delete(&Entry{}).Error
}

func (q *Queue) MarkAttempt(scheduleID uuid.UUID, attemptErr error) error {
	message := ""
	if attemptErr != nil {
		message = attemptErr.Error()
	}
	return q.db.Model(&Entry{}).
		Where("schedule_id = ?", scheduleID).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": message,
		}).Error
}

func (q *Queue) PendingCount() (int64, error) {
	var count int64
	if err := q.db.Model(&Entry{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
