package services

import (
	"strings"

	"github.com/entheodex/entheodex-backend/internal/normalization"
	"github.com/entheodex/entheodex-backend/internal/types"
)

// Confidence weighting. These are tunables: the only contract is that more
// independently agreeing sources never lowers the score.
const (
	scorePerSource      = 30
	scoreAgreementBonus = 25
	scoreClassPenalty   = 15
)

// MergeFacts fuses the per-source raw records for one candidate into a single
// normalized record. It is pure and never fails: a candidate with zero
// resolved sources comes back with confidence 0 and status unverified so it
// still surfaces in results for manual follow-up.
func MergeFacts(cand types.Candidate, primary *types.PrimaryFact, enrich *types.EnrichmentFact) types.Normalized {
	out := types.Normalized{
		Aliases: []string{},
		Tags:    []string{},
		Sources: []string{},
	}

	// Canonical name: first non-empty label in fixed source-priority order,
	// the raw candidate name as last resort.
	switch {
	case primary != nil && primary.Name != "":
		out.Name = primary.Name
	case enrich != nil && enrich.Label != "":
		out.Name = enrich.Label
	default:
		out.Name = strings.TrimSpace(cand.Name)
	}
	out.Slug = normalization.Slug(out.Name)

	resolved := 0
	if primary != nil {
		resolved++
		out.Sources = append(out.Sources, types.SourcePsywiki)
		out.CanonicalID = primary.Slug
		out.Summary = primary.Summary
		out.Class = primary.Class
	}
	if enrich != nil {
		resolved++
		out.Sources = append(out.Sources, types.SourceWikidata)
		if out.CanonicalID == "" {
			out.CanonicalID = enrich.QID
		}
		if out.Summary == "" {
			out.Summary = enrich.Description
		}
		if out.Class == "" {
			out.Class = enrich.ClassLabel
		}
	}

	out.Aliases = mergeAliases(out.Name, primary, enrich)
	out.Tags = mergeTags(cand, primary, enrich)

	agree := sourcesAgree(cand, primary, enrich)
	classConflict := classesDisagree(primary, enrich)

	score := resolved * scorePerSource
	if resolved >= 2 && agree {
		score += scoreAgreementBonus
	}
	if resolved >= 2 && classConflict {
		score -= scoreClassPenalty
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	if resolved == 0 {
		score = 0
	}
	out.ConfidenceScore = score

	switch {
	case resolved == 0:
		out.Verification = types.VerificationUnverified
	case resolved >= 2 && agree:
		out.Verification = types.VerificationVerified
	default:
		out.Verification = types.VerificationPartial
	}

	return out
}

// mergeAliases unions all alternate labels across sources, dropping the
// canonical name and case-insensitive duplicates. The first-seen casing wins.
func mergeAliases(canonical string, primary *types.PrimaryFact, enrich *types.EnrichmentFact) []string {
	var raw []string
	if primary != nil {
		raw = append(raw, primary.CommonNames...)
	}
	if enrich != nil {
		if enrich.Label != "" {
			raw = append(raw, enrich.Label)
		}
		raw = append(raw, enrich.Aliases...)
	}

	canonicalKey := strings.ToLower(strings.TrimSpace(canonical))
	seen := map[string]struct{}{}
	out := []string{}
	for _, a := range raw {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		key := strings.ToLower(a)
		if key == canonicalKey {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}

// mergeTags unions tags inferred from source category labels with the
// caller-supplied hints, lowercased and deduplicated.
func mergeTags(cand types.Candidate, primary *types.PrimaryFact, enrich *types.EnrichmentFact) []string {
	var raw []string
	if primary != nil && primary.Class != "" {
		raw = append(raw, primary.Class)
	}
	if enrich != nil && enrich.ClassLabel != "" {
		raw = append(raw, enrich.ClassLabel)
	}
	if cand.Class != "" {
		raw = append(raw, cand.Class)
	}
	raw = append(raw, cand.Tags...)

	seen := map[string]struct{}{}
	out := []string{}
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// sourcesAgree reports whether the two resolved sources describe the same
// identity: matching external id, matching slugs, or either label appearing
// among the other source's alternate labels.
func sourcesAgree(cand types.Candidate, primary *types.PrimaryFact, enrich *types.EnrichmentFact) bool {
	if primary == nil || enrich == nil {
		return false
	}
	if cand.WikidataID != "" && cand.WikidataID == enrich.QID {
		return true
	}
	if normalization.Slug(primary.Name) != "" && normalization.Slug(primary.Name) == normalization.Slug(enrich.Label) {
		return true
	}
	for _, a := range enrich.Aliases {
		if strings.EqualFold(strings.TrimSpace(a), primary.Name) {
			return true
		}
	}
	for _, a := range primary.CommonNames {
		if strings.EqualFold(strings.TrimSpace(a), enrich.Label) {
			return true
		}
	}
	return false
}

func classesDisagree(primary *types.PrimaryFact, enrich *types.EnrichmentFact) bool {
	if primary == nil || enrich == nil {
		return false
	}
	p := strings.ToLower(strings.TrimSpace(primary.Class))
	e := strings.ToLower(strings.TrimSpace(enrich.ClassLabel))
	return p != "" && e != "" && p != e
}
