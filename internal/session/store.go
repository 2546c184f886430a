package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record is the device's persisted driver identity: which driver is
// signed in on this kiosk and since when. One row only.
type Record struct {
	ID       int       `gorm:"column:id;primaryKey"`
	DriverID uuid.UUID `gorm:"column:driver_id;type:uuid"`
	IssuedAt time.Time `gorm:"column:issued_at"`
}

func (Record) TableName() string {
	return "driver_sessions"
}

// Store keeps the kiosk driver identity in the local database so an app
// reload does not lose the active driver. Logout invalidates it
// explicitly.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate driver session: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Save(driverID uuid.UUID, issuedAt time.Time) error {
	record := Record{ID: 1, DriverID: driverID, IssuedAt: issuedAt}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"driver_id", "issued_at"}),
	}).Create(&record).Error
}

// Load returns the stored identity, or (uuid.Nil, zero, nil) when no
// driver is signed in.
func (s *Store) Load() (uuid.UUID, time.Time, error) {
	var record Record
	err := s.db.Where("id = ?", 1).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, time.Time{}, nil
		}
		return uuid.Nil, time.Time{}, err
	}
	return record.DriverID, record.IssuedAt, nil
}

func (s *Store) Clear() error {
	return s.db.Where("id = ?", 1).Delete(&Record{}).Error
}
