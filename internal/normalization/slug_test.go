package normalization

import "testing"

func TestSlugBasic(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Psilocybin", "psilocybin"},
		{"  MDMA  ", "mdma"},
		{"2C-B", "2c-b"},
		{"5-MeO-DMT", "5-meo-dmt"},
		{"Lysergic acid diethylamide", "lysergic-acid-diethylamide"},
		{"N,N-Dimethyltryptamine", "nn-dimethyltryptamine"},
		{"alpha_PVP", "alpha-pvp"},
		{"GHB   (sodium salt)", "ghb-sodium-salt"},
		{"Δ9-THC", "delta9-thc"},
		{"α-Methyltryptamine", "alpha-methyltryptamine"},
		{"β-Carboline", "beta-carboline"},
		{"Müller's mix", "muellers-mix"},
		{"Mescaline—hydrochloride", "mescalinehydrochloride"},
		{"already-a-slug", "already-a-slug"},
	}
	for _, tc := range cases {
		if got := Slug(tc.in); got != tc.want {
			t.Fatalf("Slug(%q): want=%q got=%q", tc.in, tc.want, got)
		}
	}
}

func TestSlugIdempotent(t *testing.T) {
	inputs := []string{
		"Psilocybin", "Δ9-THC", "  spaced   out  ", "5-MeO-DMT", "Müller",
		"a__b__c", "---", "N,N-DMT", "ω-3", "MiXeD CaSe",
	}
	for _, in := range inputs {
		once := Slug(in)
		twice := Slug(once)
		if once != twice {
			t.Fatalf("Slug not idempotent for %q: first=%q second=%q", in, once, twice)
		}
	}
}

func TestSlugSymbolOnlyIsEmpty(t *testing.T) {
	inputs := []string{"", "   ", "!!!", "???", "__", "--", "†‡•", "。。。", "\t\n"}
	for _, in := range inputs {
		if got := Slug(in); got != "" {
			t.Fatalf("Slug(%q): want empty got=%q", in, got)
		}
	}
}

func TestSlugCollapsesRuns(t *testing.T) {
	if got := Slug("a   b___c--d"); got != "a-b-c-d" {
		t.Fatalf("want=a-b-c-d got=%q", got)
	}
	if got := Slug("-lead and trail-"); got != "lead-and-trail" {
		t.Fatalf("want=lead-and-trail got=%q", got)
	}
}
