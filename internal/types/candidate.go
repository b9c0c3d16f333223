package types

// Candidate is an unreconciled proposed record awaiting merge and commit
// decision. It is supplied per request (or from a seed file) and never
// persisted.
type Candidate struct {
	Name        string   `json:"name" yaml:"name"`
	PsywikiSlug string   `json:"psywikiSlug,omitempty" yaml:"psywiki_slug,omitempty"`
	WikidataID  string   `json:"wikidataId,omitempty" yaml:"wikidata_id,omitempty"`
	Class       string   `json:"class,omitempty" yaml:"class,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}
