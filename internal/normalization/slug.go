package normalization

import "strings"

// translit maps letter variants that show up in substance names to fixed
// ASCII digraphs. Anything not covered here and outside [a-z0-9-] is dropped.
var translit = map[rune]string{
	'ä': "ae", 'ö': "oe", 'ü': "ue", 'å': "aa", 'ß': "ss",
	'à': "a", 'á': "a", 'â': "a", 'ã': "a",
	'è': "e", 'é': "e", 'ê': "e", 'ë': "e",
	'ì': "i", 'í': "i", 'î': "i", 'ï': "i",
	'ò': "o", 'ó': "o", 'ô': "o", 'õ': "o",
	'ù': "u", 'ú': "u", 'û': "u",
	'ñ': "n", 'ç': "c",
	'α': "alpha", 'β': "beta", 'γ': "gamma", 'δ': "delta",
	'Δ': "delta", 'ε': "epsilon", 'κ': "kappa", 'σ': "sigma",
	'µ': "mu", 'μ': "mu", 'ω': "omega",
}

// Slug turns a free-text display name into a stable URL-safe identifier.
// It is idempotent: Slug(Slug(x)) == Slug(x). Symbol-only or empty input
// yields "", which callers must reject before using the result as a key.
func Slug(title string) string {
	lowered := strings.ToLower(strings.TrimSpace(title))

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n' || r == '_' || r == '-':
			b.WriteByte('-')
		default:
			if repl, ok := translit[r]; ok {
				b.WriteString(repl)
			}
			// every other rune is dropped
		}
	}

	out := b.String()
	for strings.Contains(out, "--") {
		out = strings.ReplaceAll(out, "--", "-")
	}
	return strings.Trim(out, "-")
}
