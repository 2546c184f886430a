package model

import (
	"time"

	"github.com/google/uuid"
)

type ScheduleStatus string

const (
	ScheduleStatusPending    ScheduleStatus = "PENDING"
	ScheduleStatusInProgress ScheduleStatus = "IN_PROGRESS"
	ScheduleStatusCompleted  ScheduleStatus = "COMPLETED"
	ScheduleStatusCancelled  ScheduleStatus = "CANCELLED"
)

// Schedule is one planned trip: a route, a departure slot, an assigned
// driver/vehicle and an ordered passenger manifest. Schedules are never
// hard-deleted; cancellation flips the status.
type Schedule struct {
	ID                  uuid.UUID      `json:"id"                    gorm:"column:id;type:uuid;primaryKey"`
	RouteID             uuid.UUID      `json:"route_id"              gorm:"column:route_id;type:uuid"`
	ProviderID          uuid.UUID      `json:"provider_id"           gorm:"column:provider_id;type:uuid"`
	StationID           uuid.UUID      `json:"station_id"            gorm:"column:station_id;type:uuid"`
	ScheduledDate       time.Time      `json:"scheduled_date"        gorm:"column:scheduled_date"`
	DepartureTime       string         `json:"departure_time"        gorm:"column:departure_time"`
	DriverID            *uuid.UUID     `json:"driver_id"             gorm:"column:driver_id;type:uuid"`
	VehicleID           *uuid.UUID     `json:"vehicle_id"            gorm:"column:vehicle_id;type:uuid"`
	Cost                float64        `json:"cost"                  gorm:"column:cost"`
	Status              ScheduleStatus `json:"status"                gorm:"column:status"`
	IsProviderValidated bool           `json:"is_provider_validated" gorm:"column:is_provider_validated"`
	ProviderValidatedAt *time.Time     `json:"provider_validated_at" gorm:"column:provider_validated_at"`
	PendingSync         bool           `json:"pending_sync"          gorm:"column:pending_sync"`
	CreatedAt           time.Time      `json:"created_at"            gorm:"column:created_at"`
	UpdatedAt           time.Time      `json:"updated_at"            gorm:"column:updated_at"`

	Passengers []SchedulePassenger `json:"passengers,omitempty" gorm:"-"`
	Execution  *Execution          `json:"execution,omitempty"  gorm:"-"`
}

func (Schedule) TableName() string {
	return "schedules"
}

// SchedulePassenger is one manifest row; Position is the pickup order.
type SchedulePassenger struct {
	ScheduleID uuid.UUID `json:"schedule_id" gorm:"column:schedule_id;type:uuid;primaryKey"`
	EmployeeID uuid.UUID `json:"employee_id" gorm:"column:employee_id;type:uuid;primaryKey"`
	Position   int       `json:"position"    gorm:"column:position"`
}

func (SchedulePassenger) TableName() string {
	return "schedule_passengers"
}

// ScheduleUpdate carries the dispatcher-editable fields for a partial
// update. Nil fields are left untouched.
type ScheduleUpdate struct {
	RouteID       *uuid.UUID
	ProviderID    *uuid.UUID
	ScheduledDate *time.Time
	DepartureTime *string
	DriverID      *uuid.UUID
	VehicleID     *uuid.UUID
	Cost          *float64
	Passengers    []uuid.UUID
}
