package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/entheodex/entheodex-backend/internal/clients/psywiki"
	"github.com/entheodex/entheodex-backend/internal/clients/wikidata"
	"github.com/entheodex/entheodex-backend/internal/normalization"
	"github.com/entheodex/entheodex-backend/internal/pkg/apierr"
	pkgerrors "github.com/entheodex/entheodex-backend/internal/pkg/errors"
	"github.com/entheodex/entheodex-backend/internal/pkg/logger"
	"github.com/entheodex/entheodex-backend/internal/repos"
	"github.com/entheodex/entheodex-backend/internal/types"
)

type ImportOptions struct {
	Overwrite           bool
	SkipSecondarySource bool
	TriggerSource       string
}

// Summary is always derived by counting the per-item result list after the
// fact, never accumulated by independent counters.
type Summary struct {
	Total    int `json:"total"`
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

type PreviewResult struct {
	Position   int              `json:"position"`
	Name       string           `json:"name"`
	Normalized types.Normalized `json:"normalized"`
	Error      string           `json:"error,omitempty"`
}

type DryRunResult struct {
	Position   int              `json:"position"`
	Name       string           `json:"name"`
	Normalized types.Normalized `json:"normalized"`
	Action     string           `json:"action"`
	Error      string           `json:"error,omitempty"`
}

type DryRunCounts struct {
	Total  int `json:"total"`
	Insert int `json:"insert"`
	Update int `json:"update"`
	Skip   int `json:"skip"`
}

type ItemResult struct {
	Position        int    `json:"position"`
	Name            string `json:"name"`
	Slug            string `json:"slug"`
	Action          string `json:"action"`
	ConfidenceScore int    `json:"confidence_score"`
	Verification    string `json:"verification"`
	Error           string `json:"error,omitempty"`
}

type ImporterConfig struct {
	// Concurrency bounds the per-item fan-out inside one batch.
	Concurrency int
	// BatchTimeout is the reporting latency budget for one commit call.
	// Exceeding it returns a distinct error but already-committed catalog
	// mutations stand.
	BatchTimeout time.Duration
}

type ImporterService interface {
	Preview(ctx context.Context, candidates []types.Candidate) ([]PreviewResult, error)
	DryRun(ctx context.Context, candidates []types.Candidate, overwrite bool) ([]DryRunResult, DryRunCounts, error)
	Commit(ctx context.Context, candidates []types.Candidate, opts ImportOptions) ([]ItemResult, Summary, uuid.UUID, error)
}

type importerService struct {
	log     *logger.Logger
	primary psywiki.Client
	enrich  wikidata.Client
	catalog repos.CatalogRepo
	audit   AuditSink
	cfg     ImporterConfig
}

// NewImporterService wires the pipeline. catalog may be nil when no backing
// store was resolved at startup; mutating calls then fail fast with
// STORE_UNCONFIGURED instead of branching on the environment per call.
func NewImporterService(
	baseLog *logger.Logger,
	primary psywiki.Client,
	enrich wikidata.Client,
	catalog repos.CatalogRepo,
	audit AuditSink,
	cfg ImporterConfig,
) ImporterService {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 55 * time.Second
	}
	return &importerService{
		log:     baseLog.With("service", "ImporterService"),
		primary: primary,
		enrich:  enrich,
		catalog: catalog,
		audit:   audit,
		cfg:     cfg,
	}
}

// resolved is the per-candidate outcome of the adapter phase plus merge.
type resolved struct {
	norm       types.Normalized
	adapterErr string
}

// resolveAndMerge runs the adapter calls for one candidate strictly in order:
// primary first, enrichment only if the primary resolved (its lookup may
// depend on an identifier the primary yields) and only when not skipped.
// Adapter failures are recovered here: a failing source contributes nothing.
func (s *importerService) resolveAndMerge(ctx context.Context, cand types.Candidate, skipSecondary bool) resolved {
	var adapterErrs []string

	var primaryFact *types.PrimaryFact
	lookupSlug := cand.PsywikiSlug
	if lookupSlug == "" {
		lookupSlug = normalization.Slug(cand.Name)
	}
	fact, err := s.primary.FetchBySlug(ctx, lookupSlug)
	if err != nil {
		adapterErrs = append(adapterErrs, fmt.Sprintf("psywiki: %v", err))
	} else {
		primaryFact = fact
	}
	if primaryFact == nil && err == nil && cand.Name != "" {
		hits, serr := s.primary.Search(ctx, cand.Name)
		if serr != nil {
			adapterErrs = append(adapterErrs, fmt.Sprintf("psywiki search: %v", serr))
		} else if len(hits) > 0 {
			primaryFact = &hits[0]
		}
	}

	var enrichFact *types.EnrichmentFact
	if primaryFact != nil && !skipSecondary {
		if cand.WikidataID != "" {
			ef, eerr := s.enrich.FetchByID(ctx, cand.WikidataID)
			if eerr != nil {
				adapterErrs = append(adapterErrs, fmt.Sprintf("wikidata: %v", eerr))
			} else {
				enrichFact = ef
			}
		} else {
			hits, eerr := s.enrich.SearchEntities(ctx, primaryFact.Name)
			if eerr != nil {
				adapterErrs = append(adapterErrs, fmt.Sprintf("wikidata search: %v", eerr))
			} else if len(hits) > 0 {
				enrichFact = &hits[0]
			}
		}
	}

	return resolved{
		norm:       MergeFacts(cand, primaryFact, enrichFact),
		adapterErr: strings.Join(adapterErrs, "; "),
	}
}

// Preview returns the normalized merge per candidate without touching the
// catalog or the audit log.
func (s *importerService) Preview(ctx context.Context, candidates []types.Candidate) ([]PreviewResult, error) {
	if err := ValidateBatchSize(len(candidates)); err != nil {
		return nil, err
	}

	results := make([]PreviewResult, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i := range candidates {
		i := i
		g.Go(func() error {
			res := s.resolveAndMerge(gctx, candidates[i], false)
			results[i] = PreviewResult{
				Position:   i,
				Name:       candidates[i].Name,
				Normalized: res.norm,
				Error:      res.adapterErr,
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

// DryRun classifies every candidate against current catalog state without
// mutating the catalog. The run itself is still recorded in the audit log
// with the dry-run flag set.
func (s *importerService) DryRun(ctx context.Context, candidates []types.Candidate, overwrite bool) ([]DryRunResult, DryRunCounts, error) {
	if err := ValidateBatchSize(len(candidates)); err != nil {
		return nil, DryRunCounts{}, err
	}
	if s.catalog == nil {
		return nil, DryRunCounts{}, apierr.New(http.StatusServiceUnavailable, "STORE_UNCONFIGURED", pkgerrors.ErrStoreUnconfigured)
	}

	existing, err := s.catalog.ListSlugs(ctx, nil)
	if err != nil {
		return nil, DryRunCounts{}, apierr.New(http.StatusServiceUnavailable, "STORE_UNCONFIGURED", fmt.Errorf("list slugs: %w", err))
	}

	run := s.newRun(candidates, ImportOptions{Overwrite: overwrite, TriggerSource: "api"}, true)
	auditable := s.audit != nil && s.audit.StartRun(ctx, run) == nil

	results := make([]DryRunResult, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i := range candidates {
		i := i
		g.Go(func() error {
			res := s.resolveAndMerge(gctx, candidates[i], false)
			slug := res.norm.Slug
			_, exists := existing[slug]
			if slug == "" {
				exists = false
			}
			results[i] = DryRunResult{
				Position:   i,
				Name:       candidates[i].Name,
				Normalized: res.norm,
				Action:     DecideAction(exists, overwrite),
				Error:      res.adapterErr,
			}
			if auditable {
				s.audit.RecordItem(gctx, &types.ImportRunItem{
					ID:              uuid.New(),
					ImportRunID:     run.ID,
					Position:        i,
					Name:            candidates[i].Name,
					Slug:            slug,
					Action:          planToOutcome(results[i].Action),
					ConfidenceScore: res.norm.ConfidenceScore,
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	counts := DryRunCounts{Total: len(results)}
	for _, r := range results {
		switch r.Action {
		case PlanInsert:
			counts.Insert++
		case PlanUpdate:
			counts.Update++
		case PlanSkip:
			counts.Skip++
		}
	}
	if auditable {
		s.audit.FinalizeRun(ctx, run.ID, Summary{
			Total:    counts.Total,
			Inserted: counts.Insert,
			Updated:  counts.Update,
			Skipped:  counts.Skip,
		})
	}
	return results, counts, nil
}

// Commit executes the reconciliation plan. Items are processed with bounded
// parallelism and full failure isolation: one item's error never aborts its
// siblings, and results are re-associated with their input positions.
func (s *importerService) Commit(ctx context.Context, candidates []types.Candidate, opts ImportOptions) ([]ItemResult, Summary, uuid.UUID, error) {
	started := time.Now()

	if err := ValidateBatchSize(len(candidates)); err != nil {
		return nil, Summary{}, uuid.Nil, err
	}
	if s.catalog == nil {
		return nil, Summary{}, uuid.Nil, apierr.New(http.StatusServiceUnavailable, "STORE_UNCONFIGURED", pkgerrors.ErrStoreUnconfigured)
	}
	if opts.TriggerSource == "" {
		opts.TriggerSource = "api"
	}

	run := s.newRun(candidates, opts, false)
	if s.audit != nil {
		if err := s.audit.StartRun(ctx, run); err != nil {
			// The audit trail is best-effort from here on, but a run that
			// cannot even start is still recorded in the logs.
			s.log.Warn("import run row could not be created", "error", err)
		}
	}

	results := make([]ItemResult, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i := range candidates {
		i := i
		g.Go(func() error {
			results[i] = s.commitOne(gctx, run.ID, i, candidates[i], opts)
			return nil
		})
	}
	_ = g.Wait()

	summary := summarize(results)
	if s.audit != nil {
		s.audit.FinalizeRun(ctx, run.ID, summary)
	}

	if elapsed := time.Since(started); elapsed > s.cfg.BatchTimeout {
		s.log.Warn("batch exceeded latency budget", "elapsed", elapsed, "budget", s.cfg.BatchTimeout, "run_id", run.ID)
		return nil, Summary{}, run.ID, apierr.New(http.StatusServiceUnavailable, "BATCH_TOO_SLOW",
			fmt.Errorf("batch took %s, reduce batch size and retry", elapsed.Round(time.Millisecond)))
	}

	return results, summary, run.ID, nil
}

// commitOne is the item boundary: every failure inside it, panics included,
// is converted into a failed item result.
func (s *importerService) commitOne(ctx context.Context, runID uuid.UUID, position int, cand types.Candidate, opts ImportOptions) (result ItemResult) {
	result = ItemResult{Position: position, Name: cand.Name}

	defer func() {
		if r := recover(); r != nil {
			result.Action = types.ActionFailed
			result.Error = fmt.Sprintf("panic: %v", r)
			s.log.Error("item processing panicked", "position", position, "name", cand.Name, "panic", r)
		}
		s.recordItem(ctx, runID, result)
	}()

	res := s.resolveAndMerge(ctx, cand, opts.SkipSecondarySource)
	norm := res.norm
	result.Slug = norm.Slug
	result.ConfidenceScore = norm.ConfidenceScore
	result.Verification = norm.Verification
	result.Error = res.adapterErr

	if norm.Slug == "" {
		result.Action = types.ActionFailed
		result.Error = joinErr(result.Error, "name normalizes to an empty slug")
		return result
	}

	existing, err := s.catalog.GetBySlug(ctx, nil, norm.Slug)
	if err != nil {
		result.Action = types.ActionFailed
		result.Error = joinErr(result.Error, fmt.Sprintf("catalog lookup: %v", err))
		return result
	}

	switch DecideAction(existing != nil, opts.Overwrite) {
	case PlanSkip:
		result.Action = types.ActionSkipped
		return result

	case PlanInsert:
		entry, berr := buildEntry(uuid.New(), norm)
		if berr != nil {
			result.Action = types.ActionFailed
			result.Error = joinErr(result.Error, berr.Error())
			return result
		}
		// Slug uniqueness is enforced by the store at insert time, not
		// pre-checked-then-trusted: a concurrent insert surfaces here.
		if ierr := s.catalog.Insert(ctx, nil, entry); ierr != nil {
			result.Action = types.ActionFailed
			result.Error = joinErr(result.Error, fmt.Sprintf("insert: %v", ierr))
			return result
		}
		result.Action = types.ActionInserted
		return result

	default: // PlanUpdate
		entry, berr := buildEntry(existing.ID, norm)
		if berr != nil {
			result.Action = types.ActionFailed
			result.Error = joinErr(result.Error, berr.Error())
			return result
		}
		entry.Status = existing.Status
		if uerr := s.catalog.Update(ctx, nil, entry); uerr != nil {
			result.Action = types.ActionFailed
			result.Error = joinErr(result.Error, fmt.Sprintf("update: %v", uerr))
			return result
		}
		result.Action = types.ActionUpdated
		return result
	}
}

func (s *importerService) recordItem(ctx context.Context, runID uuid.UUID, result ItemResult) {
	if s.audit == nil {
		return
	}
	item := &types.ImportRunItem{
		ID:              uuid.New(),
		ImportRunID:     runID,
		Position:        result.Position,
		Name:            result.Name,
		Slug:            result.Slug,
		Action:          result.Action,
		ConfidenceScore: result.ConfidenceScore,
	}
	if result.Error != "" {
		msg := result.Error
		item.ErrorMessage = &msg
	}
	s.audit.RecordItem(ctx, item)
}

func (s *importerService) newRun(candidates []types.Candidate, opts ImportOptions, dryRun bool) *types.ImportRun {
	adapters := []string{types.SourcePsywiki}
	if !opts.SkipSecondarySource {
		adapters = append(adapters, types.SourceWikidata)
	}
	adaptersJSON, _ := json.Marshal(adapters)
	trigger := opts.TriggerSource
	if trigger == "" {
		trigger = "api"
	}
	return &types.ImportRun{
		ID:            uuid.New(),
		TriggerSource: trigger,
		Adapters:      datatypes.JSON(adaptersJSON),
		Overwrite:     opts.Overwrite,
		DryRun:        dryRun,
		Status:        types.ImportRunStatusRunning,
		TotalItems:    len(candidates),
		StartedAt:     time.Now(),
	}
}

// buildEntry projects a normalized record onto the persisted catalog shape.
func buildEntry(id uuid.UUID, norm types.Normalized) (*types.Substance, error) {
	aliases, err := json.Marshal(norm.Aliases)
	if err != nil {
		return nil, fmt.Errorf("marshal aliases: %w", err)
	}
	tags, err := json.Marshal(norm.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	sources, err := json.Marshal(norm.Sources)
	if err != nil {
		return nil, fmt.Errorf("marshal sources: %w", err)
	}
	now := time.Now()
	return &types.Substance{
		ID:              id,
		Slug:            norm.Slug,
		Name:            norm.Name,
		CanonicalID:     norm.CanonicalID,
		Summary:         norm.Summary,
		Class:           norm.Class,
		Aliases:         datatypes.JSON(aliases),
		Tags:            datatypes.JSON(tags),
		Sources:         datatypes.JSON(sources),
		ConfidenceScore: norm.ConfidenceScore,
		Verification:    norm.Verification,
		Status:          types.StatusDraft,
		LastImportedAt:  &now,
	}, nil
}

func summarize(results []ItemResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Action {
		case types.ActionInserted:
			s.Inserted++
		case types.ActionUpdated:
			s.Updated++
		case types.ActionSkipped:
			s.Skipped++
		case types.ActionFailed:
			s.Failed++
		}
	}
	return s
}

func planToOutcome(plan string) string {
	switch plan {
	case PlanInsert:
		return types.ActionInserted
	case PlanUpdate:
		return types.ActionUpdated
	default:
		return types.ActionSkipped
	}
}

func joinErr(existing, add string) string {
	if existing == "" {
		return add
	}
	return existing + "; " + add
}
