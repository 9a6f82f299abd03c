package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationFailure records a job that exhausted its retries.
type NotificationFailure struct {
	gorm.Model
	Queue        string         `gorm:"column:queue;not null;index"`
	JobID        string         `gorm:"column:job_id;not null;uniqueIndex"`
	JobName      string         `gorm:"column:job_name;not null"`
	AttemptsMade int            `gorm:"column:attempts_made;not null"`
	LastError    string         `gorm:"column:last_error;type:text"`
	Payload      datatypes.JSON `gorm:"column:payload"`
}
