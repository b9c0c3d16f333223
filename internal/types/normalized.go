package types

import "time"

// Normalized is the fused per-candidate record produced by the field merger.
// Ephemeral: it is recomputed on every request and only its projection onto
// Substance is ever persisted.
type Normalized struct {
	Name            string     `json:"name"`
	Slug            string     `json:"slug"`
	CanonicalID     string     `json:"canonical_id,omitempty"`
	Summary         string     `json:"summary,omitempty"`
	Class           string     `json:"class,omitempty"`
	Aliases         []string   `json:"aliases"`
	Tags            []string   `json:"tags"`
	Sources         []string   `json:"sources"`
	ConfidenceScore int        `json:"confidence_score"`
	Verification    string     `json:"verification"`
	LastImportedAt  *time.Time `json:"last_imported_at,omitempty"`
}
