package psywiki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/entheodex/entheodex-backend/internal/clients/cache"
	"github.com/entheodex/entheodex-backend/internal/normalization"
	"github.com/entheodex/entheodex-backend/internal/pkg/httpx"
	"github.com/entheodex/entheodex-backend/internal/pkg/logger"
	"github.com/entheodex/entheodex-backend/internal/types"
	"github.com/entheodex/entheodex-backend/internal/utils"
)

const (
	maxAttempts    = 3
	baseRetryDelay = 500 * time.Millisecond
	cacheTTL       = 6 * time.Hour
)

// Client is the primary substance source. Lookups return (nil, nil) when the
// source has no record; only transport/protocol problems surface as errors.
type Client interface {
	FetchBySlug(ctx context.Context, slug string) (*types.PrimaryFact, error)
	Search(ctx context.Context, name string) ([]types.PrimaryFact, error)
}

type client struct {
	log        *logger.Logger
	httpClient *http.Client
	baseURL    string
	cache      cache.LookupCache
}

// NewClient reads PSYWIKI_API_URL and wires the optional lookup cache. A nil
// cache is a valid absent capability.
func NewClient(log *logger.Logger, lookupCache cache.LookupCache) Client {
	return &client{
		log:        log.With("client", "PsywikiClient"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    utils.GetEnv("PSYWIKI_API_URL", "https://api.psychonautwiki.org/", log),
		cache:      lookupCache,
	}
}

const substancesQuery = `query Substances($query: String) {
  substances(query: $query) {
    name
    url
    summary
    commonNames
    class { chemical psychoactive }
  }
}`

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlSubstance struct {
	Name        string   `json:"name"`
	URL         string   `json:"url"`
	Summary     string   `json:"summary"`
	CommonNames []string `json:"commonNames"`
	Class       *struct {
		Chemical     []string `json:"chemical"`
		Psychoactive []string `json:"psychoactive"`
	} `json:"class"`
}

type gqlResponse struct {
	Data struct {
		Substances []gqlSubstance `json:"substances"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *client) FetchBySlug(ctx context.Context, slug string) (*types.PrimaryFact, error) {
	if slug == "" {
		return nil, nil
	}

	cacheKey := "psywiki:slug:" + slug
	if c.cache != nil {
		var cached types.PrimaryFact
		if hit, err := c.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	facts, err := c.query(ctx, slug)
	if err != nil {
		return nil, err
	}
	for i := range facts {
		if facts[i].Slug == slug {
			if c.cache != nil {
				if err := c.cache.Set(ctx, cacheKey, &facts[i], cacheTTL); err != nil {
					c.log.Warn("lookup cache write failed", "key", cacheKey, "error", err)
				}
			}
			return &facts[i], nil
		}
	}
	return nil, nil
}

func (c *client) Search(ctx context.Context, name string) ([]types.PrimaryFact, error) {
	if name == "" {
		return nil, nil
	}
	return c.query(ctx, name)
}

func (c *client) query(ctx context.Context, term string) ([]types.PrimaryFact, error) {
	body, err := json.Marshal(gqlRequest{
		Query:     substancesQuery,
		Variables: map[string]any{"query": term},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	var parsed gqlResponse
	if err := c.doWithRetry(ctx, body, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("psywiki graphql: %s", parsed.Errors[0].Message)
	}

	out := make([]types.PrimaryFact, 0, len(parsed.Data.Substances))
	for _, s := range parsed.Data.Substances {
		fact := types.PrimaryFact{
			Slug:        normalization.Slug(s.Name),
			Name:        s.Name,
			CommonNames: s.CommonNames,
			Summary:     s.Summary,
			URL:         s.URL,
		}
		if s.Class != nil && len(s.Class.Psychoactive) > 0 {
			fact.Class = s.Class.Psychoactive[0]
		} else if s.Class != nil && len(s.Class.Chemical) > 0 {
			fact.Class = s.Class.Chemical[0]
		}
		out = append(out, fact)
	}
	return out, nil
}

func (c *client) doWithRetry(ctx context.Context, body []byte, dest any) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := httpx.SleepBackoff(ctx, attempt-1, baseRetryDelay); err != nil {
				return err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if httpx.IsRetryableError(err) {
				c.log.Warn("psywiki request failed, retrying", "attempt", attempt, "error", err)
				continue
			}
			return err
		}

		raw, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			lastErr = &httpx.StatusError{Status: resp.StatusCode, URL: c.baseURL}
			if httpx.IsRetryableHTTPStatus(resp.StatusCode) {
				c.log.Warn("psywiki non-success status, retrying", "attempt", attempt, "status", resp.StatusCode)
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
	return fmt.Errorf("psywiki: retries exhausted: %w", lastErr)
}
