package services

import (
	"testing"

	"github.com/entheodex/entheodex-backend/internal/types"
)

func TestMergeFactsZeroSources(t *testing.T) {
	cand := types.Candidate{Name: "Unobtainium", Tags: []string{"Research"}}

	norm := MergeFacts(cand, nil, nil)

	if norm.ConfidenceScore != 0 {
		t.Fatalf("confidence: want=0 got=%d", norm.ConfidenceScore)
	}
	if norm.Verification != types.VerificationUnverified {
		t.Fatalf("verification: want=%q got=%q", types.VerificationUnverified, norm.Verification)
	}
	if norm.Name != "Unobtainium" {
		t.Fatalf("name: want=Unobtainium got=%q", norm.Name)
	}
	if norm.Slug != "unobtainium" {
		t.Fatalf("slug: want=unobtainium got=%q", norm.Slug)
	}
	if len(norm.Sources) != 0 {
		t.Fatalf("sources: want empty got=%v", norm.Sources)
	}
	if len(norm.Tags) != 1 || norm.Tags[0] != "research" {
		t.Fatalf("tags: want=[research] got=%v", norm.Tags)
	}
}

func TestMergeFactsSingleSourceIsPartial(t *testing.T) {
	cand := types.Candidate{Name: "psilocybin"}
	primary := &types.PrimaryFact{
		Slug:        "psilocybin",
		Name:        "Psilocybin",
		CommonNames: []string{"Magic mushrooms", "Shrooms"},
		Class:       "Psychedelic",
		Summary:     "A naturally occurring tryptamine.",
	}

	norm := MergeFacts(cand, primary, nil)

	if norm.Verification != types.VerificationPartial {
		t.Fatalf("verification: want=partial got=%q", norm.Verification)
	}
	if norm.ConfidenceScore <= 0 {
		t.Fatalf("confidence: want>0 got=%d", norm.ConfidenceScore)
	}
	if norm.Name != "Psilocybin" {
		t.Fatalf("canonical name: want=Psilocybin got=%q", norm.Name)
	}
	if len(norm.Aliases) != 2 {
		t.Fatalf("aliases: want 2 got=%v", norm.Aliases)
	}
	if len(norm.Sources) != 1 || norm.Sources[0] != types.SourcePsywiki {
		t.Fatalf("sources: want=[psywiki] got=%v", norm.Sources)
	}
}

func TestMergeFactsAgreementIsVerifiedAndBoosted(t *testing.T) {
	cand := types.Candidate{Name: "MDMA"}
	primary := &types.PrimaryFact{
		Slug:        "mdma",
		Name:        "MDMA",
		CommonNames: []string{"Ecstasy", "Molly"},
		Class:       "Entactogen",
	}
	enrich := &types.EnrichmentFact{
		QID:        "Q69488",
		Label:      "MDMA",
		Aliases:    []string{"ecstasy", "3,4-MDMA"},
		ClassLabel: "Entactogen",
	}

	single := MergeFacts(cand, primary, nil)
	both := MergeFacts(cand, primary, enrich)

	if both.Verification != types.VerificationVerified {
		t.Fatalf("verification: want=verified got=%q", both.Verification)
	}
	if both.ConfidenceScore <= single.ConfidenceScore {
		t.Fatalf("corroboration must raise confidence: single=%d both=%d", single.ConfidenceScore, both.ConfidenceScore)
	}
	if both.CanonicalID != "mdma" {
		t.Fatalf("canonical id: want=mdma got=%q", both.CanonicalID)
	}
}

func TestMergeFactsClassDisagreementPenalized(t *testing.T) {
	cand := types.Candidate{Name: "Ketamine"}
	primary := &types.PrimaryFact{Slug: "ketamine", Name: "Ketamine", Class: "Dissociative"}
	agreeing := &types.EnrichmentFact{QID: "Q243547", Label: "Ketamine", ClassLabel: "Dissociative"}
	disagreeing := &types.EnrichmentFact{QID: "Q243547", Label: "Ketamine", ClassLabel: "Stimulant"}

	clean := MergeFacts(cand, primary, agreeing)
	conflicted := MergeFacts(cand, primary, disagreeing)

	if conflicted.ConfidenceScore >= clean.ConfidenceScore {
		t.Fatalf("class disagreement must lower confidence: clean=%d conflicted=%d", clean.ConfidenceScore, conflicted.ConfidenceScore)
	}
	// disagreement on class does not break identity agreement
	if conflicted.Verification != types.VerificationVerified {
		t.Fatalf("verification: want=verified got=%q", conflicted.Verification)
	}
}

func TestMergeFactsNonAgreeingSourcesStayPartial(t *testing.T) {
	cand := types.Candidate{Name: "2C-B"}
	primary := &types.PrimaryFact{Slug: "2c-b", Name: "2C-B"}
	enrich := &types.EnrichmentFact{QID: "Q118953", Label: "bromophenethylamine derivative"}

	norm := MergeFacts(cand, primary, enrich)

	if norm.Verification != types.VerificationPartial {
		t.Fatalf("verification: want=partial got=%q", norm.Verification)
	}
	single := MergeFacts(cand, primary, nil)
	if norm.ConfidenceScore < single.ConfidenceScore {
		t.Fatalf("an extra resolved source must never lower confidence: single=%d both=%d", single.ConfidenceScore, norm.ConfidenceScore)
	}
}

func TestMergeFactsAliasDedupExcludesCanonical(t *testing.T) {
	cand := types.Candidate{Name: "LSD"}
	primary := &types.PrimaryFact{
		Slug:        "lsd",
		Name:        "LSD",
		CommonNames: []string{"Acid", "acid", "LSD", "Lucy"},
	}
	enrich := &types.EnrichmentFact{
		QID:     "Q23118",
		Label:   "LSD",
		Aliases: []string{"Acid", "lysergide"},
	}

	norm := MergeFacts(cand, primary, enrich)

	want := map[string]bool{"Acid": true, "Lucy": true, "lysergide": true}
	if len(norm.Aliases) != len(want) {
		t.Fatalf("aliases: want %d unique got=%v", len(want), norm.Aliases)
	}
	for _, a := range norm.Aliases {
		if !want[a] {
			t.Fatalf("unexpected alias %q in %v", a, norm.Aliases)
		}
	}
}

func TestMergeFactsTagUnionLowercased(t *testing.T) {
	cand := types.Candidate{Name: "Mescaline", Class: "Psychedelic", Tags: []string{"Natural", "psychedelic"}}
	primary := &types.PrimaryFact{Slug: "mescaline", Name: "Mescaline", Class: "Psychedelic"}

	norm := MergeFacts(cand, primary, nil)

	want := map[string]bool{"psychedelic": true, "natural": true}
	if len(norm.Tags) != len(want) {
		t.Fatalf("tags: want %d got=%v", len(want), norm.Tags)
	}
	for _, tag := range norm.Tags {
		if !want[tag] {
			t.Fatalf("unexpected tag %q in %v", tag, norm.Tags)
		}
	}
}

func TestMergeFactsConfidenceBounds(t *testing.T) {
	cand := types.Candidate{Name: "DMT", WikidataID: "Q407217"}
	primary := &types.PrimaryFact{Slug: "dmt", Name: "DMT", Class: "Psychedelic"}
	enrich := &types.EnrichmentFact{QID: "Q407217", Label: "DMT", ClassLabel: "Psychedelic"}

	norm := MergeFacts(cand, primary, enrich)

	if norm.ConfidenceScore < 0 || norm.ConfidenceScore > 100 {
		t.Fatalf("confidence out of range: %d", norm.ConfidenceScore)
	}
}
