package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Verification tiers, derived from independent source agreement.
const (
	VerificationUnverified = "unverified"
	VerificationPartial    = "partial"
	VerificationVerified   = "verified"
)

// Lifecycle states of a catalog entry.
const (
	StatusDraft     = "draft"
	StatusReview    = "review"
	StatusPublished = "published"
)

// Substance is the persisted catalog entry. Slug is the identity key and is
// unique at the store level, not pre-checked-then-trusted.
type Substance struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Slug            string         `gorm:"column:slug;uniqueIndex;not null" json:"slug"`
	Name            string         `gorm:"column:name;not null" json:"name"`
	CanonicalID     string         `gorm:"column:canonical_id;index" json:"canonical_id"`
	Summary         string         `gorm:"column:summary" json:"summary"`
	Class           string         `gorm:"column:class" json:"class"`
	Aliases         datatypes.JSON `gorm:"column:aliases;type:jsonb" json:"aliases"`
	Tags            datatypes.JSON `gorm:"column:tags;type:jsonb" json:"tags"`
	Sources         datatypes.JSON `gorm:"column:sources;type:jsonb" json:"sources"`
	ConfidenceScore int            `gorm:"column:confidence_score;not null;default:0" json:"confidence_score"`
	Verification    string         `gorm:"column:verification;not null;default:'unverified'" json:"verification"`
	Status          string         `gorm:"column:status;not null;default:'draft'" json:"status"`
	LastImportedAt  *time.Time     `gorm:"column:last_imported_at" json:"last_imported_at,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Substance) TableName() string { return "substance" }
