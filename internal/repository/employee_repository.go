package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opsconsole/dispatch/internal/model"
)

type EmployeeRepository struct {
	db *gorm.DB
}

func NewEmployeeRepository(db *gorm.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

func (r *EmployeeRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Employee, error) {
	var employee model.Employee
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&employee).Error; err != nil {
		return nil, err
	}
	return &employee, nil
}

func (r *EmployeeRepository) FindByNationalID(ctx context.Context, nationalID string) (*model.Employee, error) {
	var employee model.Employee
	if err := r.db.WithContext(ctx).Where("national_id = ?", nationalID).First(&employee).Error; err != nil {
		return nil, err
	}
	return &employee, nil
}
