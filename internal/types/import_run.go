package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ImportRunStatusRunning = "running"
	ImportRunStatusDone    = "done"
)

// ImportRun is one batch execution of the reconciliation pipeline. The row is
// written before any item is processed, so a crash mid-batch leaves a partial
// but inspectable record with status running.
type ImportRun struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TriggerSource string         `gorm:"column:trigger_source;not null" json:"trigger_source"`
	Adapters      datatypes.JSON `gorm:"column:adapters;type:jsonb" json:"adapters"`
	Overwrite     bool           `gorm:"column:overwrite;not null;default:false" json:"overwrite"`
	DryRun        bool           `gorm:"column:dry_run;not null;default:false" json:"dry_run"`
	Status        string         `gorm:"column:status;not null;default:'running'" json:"status"`
	TotalItems    int            `gorm:"column:total_items;not null;default:0" json:"total_items"`
	Inserted      int            `gorm:"column:inserted;not null;default:0" json:"inserted"`
	Updated       int            `gorm:"column:updated;not null;default:0" json:"updated"`
	Skipped       int            `gorm:"column:skipped;not null;default:0" json:"skipped"`
	Failed        int            `gorm:"column:failed;not null;default:0" json:"failed"`
	StartedAt     time.Time      `gorm:"column:started_at;not null;default:now()" json:"started_at"`
	FinishedAt    *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
}

func (ImportRun) TableName() string { return "import_run" }
