package domain

import "time"

// ManagerRecord places one person in the reporting hierarchy.
type ManagerRecord struct {
	Email        string    `json:"email" gorm:"column:email;type:varchar(320);primaryKey"`
	ManagerEmail *string   `json:"manager_email,omitempty" gorm:"column:manager_email;type:varchar(320)"`
	ManagerName  string    `json:"manager_name" gorm:"column:manager_name;type:varchar(255);not null;default:''"`
	Director     string    `json:"director" gorm:"column:director;type:varchar(255);not null;default:''"`
	Department   string    `json:"department" gorm:"column:department;type:varchar(255);not null;default:'';index:ix_manager_data_department"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"column:updated_at;not null"`
}

func (ManagerRecord) TableName() string { return "manager_data" }
