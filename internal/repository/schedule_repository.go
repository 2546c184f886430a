package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/opsconsole/dispatch/internal/model"
)

type ScheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) Create(ctx context.Context, schedule model.Schedule, manifest []uuid.UUID) (*model.Schedule, error) {
	if schedule.ID == uuid.Nil {
		schedule.ID = uuid.New()
	}
	schedule.Status = model.ScheduleStatusPending

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&schedule).Error; err != nil {
			return err
		}
		for i, employeeID := range manifest {
			row := model.SchedulePassenger{
				ScheduleID: schedule.ID,
				EmployeeID: employeeID,
				Position:   i,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *ScheduleRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Schedule, error) {
	var schedule model.Schedule
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&schedule).Error
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

// Update applies the non-nil fields of upd to a schedule. When a new
// manifest is given the old one is replaced wholesale.
func (r *ScheduleRepository) Update(ctx context.Context, id uuid.UUID, upd model.ScheduleUpdate) error {
	fields := map[string]interface{}{}
	if upd.RouteID != nil {
		fields["route_id"] = *upd.RouteID
	}
	if upd.ProviderID != nil {
		fields["provider_id"] = *upd.ProviderID
	}
	if upd.ScheduledDate != nil {
		fields["scheduled_date"] = *upd.ScheduledDate
	}
	if upd.DepartureTime != nil {
		fields["departure_time"] = *upd.DepartureTime
	}
	if upd.DriverID != nil {
		fields["driver_id"] = *upd.DriverID
	}
	if upd.VehicleID != nil {
		fields["vehicle_id"] = *upd.VehicleID
	}
	if upd.Cost != nil {
		fields["cost"] = *upd.Cost
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(fields) > 0 {
			fields["updated_at"] = time.Now().UTC()
			if err := tx.Model(&model.Schedule{}).Where("id = ?", id).Updates(fields).Error; err != nil {
				return err
			}
		}
		if upd.Passengers != nil {
			if err := tx.Where("schedule_id = ?", id).Delete(&model.SchedulePassenger{}).Error; err != nil {
				return err
			}
			for i, employeeID := range upd.Passengers {
				row := model.SchedulePassenger{ScheduleID: id, EmployeeID: employeeID, Position: i}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (r *ScheduleRepository) SetStatus(ctx context.Context, id uuid.UUID, status model.ScheduleStatus) error {
	return r.db.WithContext(ctx).Model(&model.Schedule{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now().UTC()}).Error
}

func (r *ScheduleRepository) ListForDriver(ctx context.Context, driverID uuid.UUID, date time.Time) ([]model.Schedule, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	var schedules []model.Schedule
	err := r.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		Where("scheduled_date >= ? AND scheduled_date < ?", dayStart, dayEnd).
		Where("status <> ?", model.ScheduleStatusCancelled).
		Order("departure_time ASC").
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}
	return schedules, nil
}

func (r *ScheduleRepository) ListForDateRange(ctx context.Context, stationID uuid.UUID, from, to time.Time) ([]model.Schedule, error) {
	var schedules []model.Schedule
	err := r.db.WithContext(ctx).
		Where("station_id = ?", stationID).
		Where("scheduled_date >= ? AND scheduled_date < ?", from, to).
		Order("scheduled_date ASC, departure_time ASC").
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}
	return schedules, nil
}

// FindInProgressForDriver returns the driver's IN_PROGRESS schedule, if
// any. Used by session restoration after an app restart.
func (r *ScheduleRepository) FindInProgressForDriver(ctx context.Context, driverID uuid.UUID) (*model.Schedule, error) {
	var schedule model.Schedule
	err := r.db.WithContext(ctx).
		Where("driver_id = ? AND status = ?", driverID, model.ScheduleStatusInProgress).
		First(&schedule).Error
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

// StartExecution atomically creates the execution record and flips the
// schedule to IN_PROGRESS. A schedule gets exactly one execution; a
// second start fails on the unique index.
func (r *ScheduleRepository) StartExecution(ctx context.Context, scheduleID uuid.UUID, fix model.LocationSample, now time.Time) (*model.Execution, error) {
	execution := model.Execution{
		ID:         uuid.New(),
		ScheduleID: scheduleID,
		StartTime:  now,
		StartLat:   fix.Lat,
		StartLng:   fix.Lng,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&execution).Error; err != nil {
			return err
		}
		return tx.Model(&model.Schedule{}).
			Where("id = ?", scheduleID).
			Updates(map[string]interface{}{
				"status":     model.ScheduleStatusInProgress,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("start execution: %w", err)
	}
	return &execution, nil
}

func (r *ScheduleRepository) GetExecution(ctx context.Context, scheduleID uuid.UUID) (*model.Execution, error) {
	var execution model.Execution
	err := r.db.WithContext(ctx).Where("schedule_id = ?", scheduleID).First(&execution).Error
	if err != nil {
		return nil, err
	}
	return &execution, nil
}

// UpdateLocation appends one throttle-accepted sample to the execution's
// location trail. Best-effort: callers treat failures as droppable.
func (r *ScheduleRepository) UpdateLocation(ctx context.Context, executionID uuid.UUID, sample model.LocationSample) error {
	point := model.LocationPoint{
		ExecutionID: executionID,
		Lat:         sample.Lat,
		Lng:         sample.Lng,
		SpeedKmh:    sample.SpeedKmh,
		DeviceTime:  sample.DeviceTime,
		RecordedAt:  time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&point).Error
}

func (r *ScheduleRepository) ListLocationTrail(ctx context.Context, executionID uuid.UUID) ([]model.LocationPoint, error) {
	var points []model.LocationPoint
	err := r.db.WithContext(ctx).
		Where("execution_id = ?", executionID).
		Order("recorded_at ASC").
		Find(&points).Error
	if err != nil {
		return nil, err
	}
	return points, nil
}

// Finish atomically closes the execution and writes the final check-in
// manifest. Replaying the same finish rewrites the same rows, so an
// offline replay after a partial earlier success never duplicates a
// record.
func (r *ScheduleRepository) Finish(ctx context.Context, scheduleID uuid.UUID, endTime time.Time, checkIns []model.CheckInRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var execution model.Execution
		if err := tx.Where("schedule_id = ?", scheduleID).First(&execution).Error; err != nil {
			return err
		}

		err := tx.Model(&model.Execution{}).
			Where("id = ?", execution.ID).
			Update("end_time", endTime).Error
		if err != nil {
			return err
		}

		err = tx.Model(&model.Schedule{}).
			Where("id = ?", scheduleID).
			Updates(map[string]interface{}{
				"status":       model.ScheduleStatusCompleted,
				"pending_sync": false,
				"updated_at":   endTime,
			}).Error
		if err != nil {
			return err
		}

		for i := range checkIns {
			checkIns[i].ExecutionID = execution.ID
			row := checkIns[i]
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "execution_id"}, {Name: "employee_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"status", "recorded_at", "lat", "lng"}),
			}).Create(&row).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ScheduleRepository) ListCheckIns(ctx context.Context, executionID uuid.UUID) ([]model.CheckInRecord, error) {
	var records []model.CheckInRecord
	err := r.db.WithContext(ctx).
		Where("execution_id = ?", executionID).
		Order("recorded_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// SetValidated applies the provider's billing sign-off to one schedule.
func (r *ScheduleRepository) SetValidated(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&model.Schedule{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_provider_validated": true,
			"provider_validated_at": at,
			"updated_at":            at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Roster returns the ordered passenger manifest for a schedule, joined
// with the employee directory.
func (r *ScheduleRepository) Roster(ctx context.Context, scheduleID uuid.UUID) ([]model.Employee, error) {
	var employees []model.Employee
	err := r.db.WithContext(ctx).
		Model(&model.Employee{}).
		Joins("JOIN schedule_passengers ON schedule_passengers.employee_id = employees.id").
		Where("schedule_passengers.schedule_id = ?", scheduleID).
		Order("schedule_passengers.position ASC").
		Find(&employees).Error
	if err != nil {
		return nil, err
	}
	return employees, nil
}
