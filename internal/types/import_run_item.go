package types

import (
	"time"

	"github.com/google/uuid"
)

// Outcomes recorded per candidate in an import run.
const (
	ActionInserted = "inserted"
	ActionUpdated  = "updated"
	ActionSkipped  = "skipped"
	ActionFailed   = "failed"
)

// ImportRunItem is the append-only outcome row for one candidate. Rows are
// written as each item finishes, never buffered to the end of the batch.
type ImportRunItem struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ImportRunID     uuid.UUID `gorm:"type:uuid;not null;index" json:"import_run_id"`
	Position        int       `gorm:"column:position;not null" json:"position"`
	Name            string    `gorm:"column:name;not null" json:"name"`
	Slug            string    `gorm:"column:slug" json:"slug"`
	Action          string    `gorm:"column:action;not null" json:"action"`
	ConfidenceScore int       `gorm:"column:confidence_score;not null;default:0" json:"confidence_score"`
	ErrorMessage    *string   `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	CreatedAt       time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ImportRunItem) TableName() string { return "import_run_item" }
