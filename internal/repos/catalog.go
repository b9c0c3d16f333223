package repos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/entheodex/entheodex-backend/internal/pkg/logger"
	"github.com/entheodex/entheodex-backend/internal/types"
)

// slugPageSize bounds the bulk existing-slug fetch used by dry-run planning.
const slugPageSize = 5000

type CatalogRepo interface {
	GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.Substance, error)
	ListSlugs(ctx context.Context, tx *gorm.DB) (map[string]struct{}, error)
	ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Substance, error)
	Insert(ctx context.Context, tx *gorm.DB, entry *types.Substance) error
	Update(ctx context.Context, tx *gorm.DB, entry *types.Substance) error
}

type catalogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCatalogRepo(db *gorm.DB, baseLog *logger.Logger) CatalogRepo {
	return &catalogRepo{
		db:  db,
		log: baseLog.With("repo", "CatalogRepo"),
	}
}

// GetBySlug returns (nil, nil) when no entry exists for slug.
func (r *catalogRepo) GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.Substance, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if slug == "" {
		return nil, nil
	}
	var entry types.Substance
	err := transaction.WithContext(ctx).
		Where("slug = ?", slug).
		Limit(1).
		Find(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.Slug == "" {
		return nil, nil
	}
	return &entry, nil
}

// ListSlugs resolves catalog membership in one bounded bulk fetch, never one
// query per candidate.
func (r *catalogRepo) ListSlugs(ctx context.Context, tx *gorm.DB) (map[string]struct{}, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var slugs []string
	err := transaction.WithContext(ctx).
		Model(&types.Substance{}).
		Limit(slugPageSize).
		Pluck("slug", &slugs).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(slugs))
	for _, s := range slugs {
		out[s] = struct{}{}
	}
	return out, nil
}

func (r *catalogRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Substance, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Substance
	if err := transaction.WithContext(ctx).Order("slug ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Insert relies on the unique slug index to reject duplicates; callers see
// the constraint violation as an error instead of a silent overwrite.
func (r *catalogRepo) Insert(ctx context.Context, tx *gorm.DB, entry *types.Substance) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if entry == nil {
		return nil
	}
	return transaction.WithContext(ctx).Create(entry).Error
}

func (r *catalogRepo) Update(ctx context.Context, tx *gorm.DB, entry *types.Substance) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if entry == nil {
		return nil
	}
	entry.UpdatedAt = time.Now()
	return transaction.WithContext(ctx).
		Model(&types.Substance{}).
		Where("id = ?", entry.ID).
		Updates(map[string]interface{}{
			"name":             entry.Name,
			"canonical_id":     entry.CanonicalID,
			"summary":          entry.Summary,
			"class":            entry.Class,
			"aliases":          entry.Aliases,
			"tags":             entry.Tags,
			"sources":          entry.Sources,
			"confidence_score": entry.ConfidenceScore,
			"verification":     entry.Verification,
			"last_imported_at": entry.LastImportedAt,
			"updated_at":       entry.UpdatedAt,
		}).Error
}
