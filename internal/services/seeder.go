package services

import (
	"context"
	"fmt"
	"time"

	"github.com/entheodex/entheodex-backend/internal/normalization"
	"github.com/entheodex/entheodex-backend/internal/pkg/httpx"
	"github.com/entheodex/entheodex-backend/internal/pkg/logger"
	"github.com/entheodex/entheodex-backend/internal/types"
)

// CandidateSource is one page of an external bulk-discovery query.
// Implemented by the wikidata client.
type CandidateSource interface {
	QueryPage(ctx context.Context, offset, limit int) ([]types.Candidate, error)
}

type SeederConfig struct {
	// PageSize rows requested per page before over-fetch.
	PageSize int
	// OverFetchFactor compensates for duplicate-slug collisions within a page.
	OverFetchFactor float64
	// PageDelay is the fixed politeness delay between pages.
	PageDelay time.Duration
	// MaxAttempts per page; exhausting them fails the whole run.
	MaxAttempts int
	// RetryBaseDelay for the linear per-page backoff.
	RetryBaseDelay time.Duration
}

func DefaultSeederConfig() SeederConfig {
	return SeederConfig{
		PageSize:        500,
		OverFetchFactor: 1.2,
		PageDelay:       2 * time.Second,
		MaxAttempts:     3,
		RetryBaseDelay:  time.Second,
	}
}

type SeederService interface {
	Generate(ctx context.Context, target int) ([]types.Candidate, error)
}

type seederService struct {
	log    *logger.Logger
	source CandidateSource
	cfg    SeederConfig
}

func NewSeederService(baseLog *logger.Logger, source CandidateSource, cfg SeederConfig) SeederService {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	if cfg.OverFetchFactor < 1 {
		cfg.OverFetchFactor = 1.2
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &seederService{
		log:    baseLog.With("service", "SeederService"),
		source: source,
		cfg:    cfg,
	}
}

// Generate paginates the discovery query, deduplicating by slug, until the
// target count is reached or the source is exhausted (an empty or short page).
// Unlike per-item commit failures, a page that exhausts its retries fails the
// entire run.
func (s *seederService) Generate(ctx context.Context, target int) ([]types.Candidate, error) {
	if target <= 0 {
		return nil, fmt.Errorf("seed target must be positive, got %d", target)
	}

	seen := map[string]struct{}{}
	out := make([]types.Candidate, 0, target)
	offset := 0

	for len(out) < target {
		remaining := target - len(out)
		want := int(float64(remaining) * s.cfg.OverFetchFactor)
		if want > s.cfg.PageSize {
			want = s.cfg.PageSize
		}
		if want < 1 {
			want = 1
		}

		page, err := s.fetchPage(ctx, offset, want)
		if err != nil {
			return nil, fmt.Errorf("seed page at offset %d: %w", offset, err)
		}
		s.log.Info("seed page fetched", "offset", offset, "requested", want, "rows", len(page))

		for _, cand := range page {
			slug := normalization.Slug(cand.Name)
			if slug == "" {
				continue
			}
			if _, dup := seen[slug]; dup {
				continue
			}
			seen[slug] = struct{}{}
			out = append(out, cand)
			if len(out) == target {
				break
			}
		}

		if len(page) == 0 || len(page) < want {
			break
		}
		offset += len(page)

		if len(out) < target && s.cfg.PageDelay > 0 {
			timer := time.NewTimer(s.cfg.PageDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}

	s.log.Info("seed generation finished", "candidates", len(out), "target", target)
	return out, nil
}

func (s *seederService) fetchPage(ctx context.Context, offset, limit int) ([]types.Candidate, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := httpx.SleepBackoff(ctx, attempt-1, s.cfg.RetryBaseDelay); err != nil {
				return nil, err
			}
		}
		page, err := s.source.QueryPage(ctx, offset, limit)
		if err == nil {
			return page, nil
		}
		lastErr = err
		s.log.Warn("seed page fetch failed", "offset", offset, "attempt", attempt, "error", err)
	}
	return nil, fmt.Errorf("retries exhausted: %w", lastErr)
}
