package models

import (
	"time"

	"gorm.io/datatypes"
)

// AbandonmentRecord is the audit trail row written every time a grader
// releases a task. The task itself is recycled in place; these rows keep the
// history queryable independently of the reset.
type AbandonmentRecord struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	TaskID    string         `gorm:"size:36;not null;index" json:"task_id"`
	ExamID    string         `gorm:"size:36;not null;index" json:"exam_id"`
	GraderID  string         `gorm:"size:64;not null" json:"grader_id"`
	Reason    string         `gorm:"type:text" json:"reason"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
