package model

import "github.com/google/uuid"

type Employee struct {
	ID         uuid.UUID `json:"id"          gorm:"column:id;type:uuid;primaryKey"`
	FullName   string    `json:"full_name"   gorm:"column:full_name"`
	NationalID string    `json:"national_id" gorm:"column:national_id;uniqueIndex"`
	StationID  uuid.UUID `json:"station_id"  gorm:"column:station_id;type:uuid"`
}

func (Employee) TableName() string {
	return "employees"
}
