package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/entheodex/entheodex-backend/internal/clients/cache"
	"github.com/entheodex/entheodex-backend/internal/pkg/httpx"
	"github.com/entheodex/entheodex-backend/internal/pkg/logger"
	"github.com/entheodex/entheodex-backend/internal/types"
	"github.com/entheodex/entheodex-backend/internal/utils"
)

const (
	maxAttempts    = 3
	baseRetryDelay = 500 * time.Millisecond
	cacheTTL       = 24 * time.Hour
)

// Client is the enrichment and bulk-discovery source backed by the Wikidata
// entity API and SPARQL endpoint. Entity lookups return (nil, nil) when no
// entity matches.
type Client interface {
	FetchByID(ctx context.Context, qid string) (*types.EnrichmentFact, error)
	SearchEntities(ctx context.Context, name string) ([]types.EnrichmentFact, error)
	QueryPage(ctx context.Context, offset, limit int) ([]types.Candidate, error)
}

type client struct {
	log        *logger.Logger
	httpClient *http.Client
	apiURL     string
	sparqlURL  string
	cache      cache.LookupCache
}

func NewClient(log *logger.Logger, lookupCache cache.LookupCache) Client {
	return &client{
		log:        log.With("client", "WikidataClient"),
		httpClient: &http.Client{Timeout: 20 * time.Second},
		apiURL:     utils.GetEnv("WIKIDATA_API_URL", "https://www.wikidata.org/w/api.php", log),
		sparqlURL:  utils.GetEnv("WIKIDATA_SPARQL_URL", "https://query.wikidata.org/sparql", log),
		cache:      lookupCache,
	}
}

type entityResponse struct {
	Entities map[string]struct {
		Labels map[string]struct {
			Value string `json:"value"`
		} `json:"labels"`
		Descriptions map[string]struct {
			Value string `json:"value"`
		} `json:"descriptions"`
		Aliases map[string][]struct {
			Value string `json:"value"`
		} `json:"aliases"`
		Missing *string `json:"missing"`
	} `json:"entities"`
}

func (c *client) FetchByID(ctx context.Context, qid string) (*types.EnrichmentFact, error) {
	qid = strings.TrimSpace(qid)
	if qid == "" {
		return nil, nil
	}

	cacheKey := "wikidata:qid:" + qid
	if c.cache != nil {
		var cached types.EnrichmentFact
		if hit, err := c.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	params := url.Values{}
	params.Set("action", "wbgetentities")
	params.Set("ids", qid)
	params.Set("props", "labels|descriptions|aliases")
	params.Set("languages", "en")
	params.Set("format", "json")

	var parsed entityResponse
	if err := c.getJSON(ctx, c.apiURL+"?"+params.Encode(), nil, &parsed); err != nil {
		return nil, err
	}

	ent, ok := parsed.Entities[qid]
	if !ok || ent.Missing != nil {
		return nil, nil
	}
	fact := &types.EnrichmentFact{QID: qid}
	if l, ok := ent.Labels["en"]; ok {
		fact.Label = l.Value
	}
	if d, ok := ent.Descriptions["en"]; ok {
		fact.Description = d.Value
	}
	for _, a := range ent.Aliases["en"] {
		fact.Aliases = append(fact.Aliases, a.Value)
	}
	if fact.Label == "" && len(fact.Aliases) == 0 {
		return nil, nil
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey, fact, cacheTTL); err != nil {
			c.log.Warn("lookup cache write failed", "key", cacheKey, "error", err)
		}
	}
	return fact, nil
}

type searchResponse struct {
	Search []struct {
		ID          string   `json:"id"`
		Label       string   `json:"label"`
		Description string   `json:"description"`
		Aliases     []string `json:"aliases"`
	} `json:"search"`
}

func (c *client) SearchEntities(ctx context.Context, name string) ([]types.EnrichmentFact, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("action", "wbsearchentities")
	params.Set("search", name)
	params.Set("language", "en")
	params.Set("type", "item")
	params.Set("format", "json")

	var parsed searchResponse
	if err := c.getJSON(ctx, c.apiURL+"?"+params.Encode(), nil, &parsed); err != nil {
		return nil, err
	}

	out := make([]types.EnrichmentFact, 0, len(parsed.Search))
	for _, hit := range parsed.Search {
		out = append(out, types.EnrichmentFact{
			QID:         hit.ID,
			Label:       hit.Label,
			Description: hit.Description,
			Aliases:     hit.Aliases,
		})
	}
	return out, nil
}

// sparqlPageQuery lists psychoactive drugs (wd:Q8386 subtree) with their
// English labels and the label of their most specific class.
const sparqlPageQuery = `SELECT ?item ?itemLabel ?classLabel WHERE {
  ?item wdt:P31/wdt:P279* wd:Q8386 .
  ?item wdt:P31 ?class .
  SERVICE wikibase:label { bd:serviceParam wikibase:language "en". }
}
ORDER BY ?item
LIMIT %d OFFSET %d`

type sparqlResponse struct {
	Results struct {
		Bindings []map[string]struct {
			Value string `json:"value"`
		} `json:"bindings"`
	} `json:"results"`
}

// QueryPage fetches one page of the bulk-discovery query used by the seed
// generator. The caller owns pagination, politeness delays and dedup.
func (c *client) QueryPage(ctx context.Context, offset, limit int) ([]types.Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("query", fmt.Sprintf(sparqlPageQuery, limit, offset))
	params.Set("format", "json")

	headers := map[string]string{"Accept": "application/sparql-results+json"}
	var parsed sparqlResponse
	if err := c.getJSON(ctx, c.sparqlURL+"?"+params.Encode(), headers, &parsed); err != nil {
		return nil, err
	}

	out := make([]types.Candidate, 0, len(parsed.Results.Bindings))
	for _, b := range parsed.Results.Bindings {
		label := b["itemLabel"].Value
		if label == "" {
			continue
		}
		cand := types.Candidate{
			Name:       label,
			WikidataID: qidFromURI(b["item"].Value),
		}
		if cls := b["classLabel"].Value; cls != "" {
			cand.Class = cls
		}
		out = append(out, cand)
	}
	return out, nil
}

func qidFromURI(uri string) string {
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

func (c *client) getJSON(ctx context.Context, fullURL string, headers map[string]string, dest any) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := httpx.SleepBackoff(ctx, attempt-1, baseRetryDelay); err != nil {
				return err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if httpx.IsRetryableError(err) {
				c.log.Warn("wikidata request failed, retrying", "attempt", attempt, "error", err)
				continue
			}
			return err
		}

		raw, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			lastErr = &httpx.StatusError{Status: resp.StatusCode, URL: fullURL}
			if httpx.IsRetryableHTTPStatus(resp.StatusCode) {
				c.log.Warn("wikidata non-success status, retrying", "attempt", attempt, "status", resp.StatusCode)
				continue
			}
			return lastErr
		}
		if readErr != nil {
			lastErr = readErr
			continue
		}
		if err := json.Unmarshal(raw, dest); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("wikidata: retries exhausted: %w", lastErr)
}
