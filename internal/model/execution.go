package model

import (
	"time"

	"github.com/google/uuid"
)

type CheckInStatus string

const (
	CheckInStatusBoarded CheckInStatus = "BOARDED"
	CheckInStatusNoShow  CheckInStatus = "NO_SHOW"
)

// Execution is the runtime record of a schedule actually being driven.
// One exists per schedule, created when the driver starts the trip.
type Execution struct {
	ID         uuid.UUID  `json:"id"          gorm:"column:id;type:uuid;primaryKey"`
	ScheduleID uuid.UUID  `json:"schedule_id" gorm:"column:schedule_id;type:uuid;uniqueIndex"`
	StartTime  time.Time  `json:"start_time"  gorm:"column:start_time"`
	EndTime    *time.Time `json:"end_time"    gorm:"column:end_time"`
	StartLat   float64    `json:"start_lat"   gorm:"column:start_lat"`
	StartLng   float64    `json:"start_lng"   gorm:"column:start_lng"`

	CheckIns []CheckInRecord `json:"check_ins,omitempty" gorm:"-"`
}

func (Execution) TableName() string {
	return "executions"
}

// CheckInRecord is one boarding decision for one passenger on one
// execution. At most one row per (execution, employee); a later decision
// overwrites the earlier one.
type CheckInRecord struct {
	ExecutionID uuid.UUID     `json:"execution_id" gorm:"column:execution_id;type:uuid;primaryKey"`
	EmployeeID  uuid.UUID     `json:"employee_id"  gorm:"column:employee_id;type:uuid;primaryKey"`
	Status      CheckInStatus `json:"status"       gorm:"column:status"`
	RecordedAt  time.Time     `json:"recorded_at"  gorm:"column:recorded_at"`
	Lat         *float64      `json:"lat"          gorm:"column:lat"`
	Lng         *float64      `json:"lng"          gorm:"column:lng"`
}

func (CheckInRecord) TableName() string {
	return "check_in_records"
}

// LocationSample is a single fix from the device sensor. Samples are
// ephemeral; only throttle-accepted ones become LocationPoints.
type LocationSample struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	SpeedKmh   *float64  `json:"speed_kmh,omitempty"`
	DeviceTime time.Time `json:"device_time"`
}

// LocationPoint is a persisted entry in an execution's location trail.
type LocationPoint struct {
	ID          int64     `json:"id"           gorm:"column:id;primaryKey;autoIncrement"`
	ExecutionID uuid.UUID `json:"execution_id" gorm:"column:execution_id;type:uuid;index"`
	Lat         float64   `json:"lat"          gorm:"column:lat"`
	Lng         float64   `json:"lng"          gorm:"column:lng"`
	SpeedKmh    *float64  `json:"speed_kmh"    gorm:"column:speed_kmh"`
	DeviceTime  time.Time `json:"device_time"  gorm:"column:device_time"`
	RecordedAt  time.Time `json:"recorded_at"  gorm:"column:recorded_at"`
}

func (LocationPoint) TableName() string {
	return "location_points"
}
