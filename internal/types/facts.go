package types

// Source names in fixed priority order for canonical-field selection.
const (
	SourcePsywiki  = "psywiki"
	SourceWikidata = "wikidata"
)

// PrimaryFact is the raw record fetched from the primary substance source.
// Ephemeral, recomputed on every request.
type PrimaryFact struct {
	Slug        string
	Name        string
	CommonNames []string
	Class       string
	Summary     string
	URL         string
}

// EnrichmentFact is the raw record fetched from the knowledge-graph
// enrichment source. Ephemeral, recomputed on every request.
type EnrichmentFact struct {
	QID         string
	Label       string
	Aliases     []string
	Description string
	ClassLabel  string
}
