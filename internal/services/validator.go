package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/entheodex/entheodex-backend/internal/normalization"
	"github.com/entheodex/entheodex-backend/internal/pkg/logger"
	"github.com/entheodex/entheodex-backend/internal/repos"
	"github.com/entheodex/entheodex-backend/internal/types"
)

// Violation is one catalog-invariant breach found by the pre-publish gate.
type Violation struct {
	Slug    string `json:"slug"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s: %s", v.Slug, v.Field, v.Message)
}

type ValidatorService interface {
	Validate(ctx context.Context) ([]Violation, error)
}

type validatorService struct {
	log     *logger.Logger
	catalog repos.CatalogRepo
}

func NewValidatorService(baseLog *logger.Logger, catalog repos.CatalogRepo) ValidatorService {
	return &validatorService{
		log:     baseLog.With("service", "ValidatorService"),
		catalog: catalog,
	}
}

var validVerification = map[string]struct{}{
	types.VerificationUnverified: {},
	types.VerificationPartial:    {},
	types.VerificationVerified:   {},
}

var validStatus = map[string]struct{}{
	types.StatusDraft:     {},
	types.StatusReview:    {},
	types.StatusPublished: {},
}

// Validate loads every catalog entry and collects every violation found,
// rather than stopping at the first.
func (s *validatorService) Validate(ctx context.Context) ([]Violation, error) {
	entries, err := s.catalog.ListAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	var out []Violation
	slugSeen := map[string]string{}
	canonicalSeen := map[string]string{}

	for _, e := range entries {
		if e.Name == "" {
			out = append(out, Violation{Slug: e.Slug, Field: "name", Message: "must not be empty"})
		}
		if e.Slug == "" {
			out = append(out, Violation{Slug: e.ID.String(), Field: "slug", Message: "must not be empty"})
		} else {
			if normalized := normalization.Slug(e.Slug); normalized != e.Slug {
				out = append(out, Violation{Slug: e.Slug, Field: "slug", Message: fmt.Sprintf("not in normalized form, expected %q", normalized)})
			}
			if prev, dup := slugSeen[e.Slug]; dup {
				out = append(out, Violation{Slug: e.Slug, Field: "slug", Message: fmt.Sprintf("duplicate of entry %s", prev)})
			}
			slugSeen[e.Slug] = e.ID.String()
		}

		if e.CanonicalID != "" {
			if prev, dup := canonicalSeen[e.CanonicalID]; dup {
				out = append(out, Violation{Slug: e.Slug, Field: "canonical_id", Message: fmt.Sprintf("duplicate of entry %s", prev)})
			}
			canonicalSeen[e.CanonicalID] = e.ID.String()
		}

		if _, ok := validVerification[e.Verification]; !ok {
			out = append(out, Violation{Slug: e.Slug, Field: "verification", Message: fmt.Sprintf("invalid value %q", e.Verification)})
		}
		if _, ok := validStatus[e.Status]; !ok {
			out = append(out, Violation{Slug: e.Slug, Field: "status", Message: fmt.Sprintf("invalid value %q", e.Status)})
		}
		if e.ConfidenceScore < 0 || e.ConfidenceScore > 100 {
			out = append(out, Violation{Slug: e.Slug, Field: "confidence_score", Message: fmt.Sprintf("out of range: %d", e.ConfidenceScore)})
		}

		out = append(out, checkStringArray(e.Slug, "aliases", []byte(e.Aliases))...)
		out = append(out, checkStringArray(e.Slug, "tags", []byte(e.Tags))...)
		out = append(out, checkStringArray(e.Slug, "sources", []byte(e.Sources))...)
	}
	return out, nil
}

func checkStringArray(slug, field string, raw []byte) []Violation {
	if len(raw) == 0 {
		return []Violation{{Slug: slug, Field: field, Message: "must be a JSON array, found empty column"}}
	}
	var arr []string
	if err := json.Unmarshal(raw, &arr); err != nil {
		return []Violation{{Slug: slug, Field: field, Message: fmt.Sprintf("not a string array: %v", err)}}
	}
	return nil
}
