package services

import (
	"fmt"
	"net/http"

	"github.com/entheodex/entheodex-backend/internal/normalization"
	"github.com/entheodex/entheodex-backend/internal/pkg/apierr"
	"github.com/entheodex/entheodex-backend/internal/types"
)

// MaxBatchSize caps candidates per call. The cap keeps worst-case batch
// latency inside the request deadline; splitting a larger import into
// multiple calls is the caller's responsibility.
const MaxBatchSize = 50

// Planned reconciliation decisions.
const (
	PlanInsert = "insert"
	PlanUpdate = "update"
	PlanSkip   = "skip"
)

type PlannedAction struct {
	Position int    `json:"position"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Action   string `json:"action"`
}

// ValidateBatchSize rejects empty and oversized batches wholesale before any
// item is touched.
func ValidateBatchSize(n int) error {
	if n == 0 {
		return apierr.New(http.StatusBadRequest, "BAD_REQUEST", fmt.Errorf("empty item list"))
	}
	if n > MaxBatchSize {
		return apierr.New(http.StatusBadRequest, "BATCH_TOO_LARGE",
			fmt.Errorf("batch of %d exceeds the limit of %d items per call", n, MaxBatchSize))
	}
	return nil
}

// DecideAction is the per-candidate decision table:
//
//	existing?  overwrite?  action
//	no         -           insert
//	yes        false       skip
//	yes        true        update
func DecideAction(exists, overwrite bool) string {
	if !exists {
		return PlanInsert
	}
	if overwrite {
		return PlanUpdate
	}
	return PlanSkip
}

// PlanActions classifies every candidate against the existing slug set
// without mutating anything. Candidates whose name slugs to empty plan as
// insert-with-empty-slug and are rejected later at commit time.
func PlanActions(candidates []types.Candidate, existing map[string]struct{}, overwrite bool) ([]PlannedAction, error) {
	if err := ValidateBatchSize(len(candidates)); err != nil {
		return nil, err
	}
	out := make([]PlannedAction, len(candidates))
	for i, cand := range candidates {
		slug := normalization.Slug(cand.Name)
		_, exists := existing[slug]
		if slug == "" {
			exists = false
		}
		out[i] = PlannedAction{
			Position: i,
			Name:     cand.Name,
			Slug:     slug,
			Action:   DecideAction(exists, overwrite),
		}
	}
	return out, nil
}
