package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/entheodex/entheodex-backend/internal/pkg/logger"
	"github.com/entheodex/entheodex-backend/internal/types"
)

// ImportRunRepo is append-only: runs and item rows are only ever created,
// except for the single finalization update per run.
type ImportRunRepo interface {
	Create(ctx context.Context, tx *gorm.DB, run *types.ImportRun) error
	AppendItem(ctx context.Context, tx *gorm.DB, item *types.ImportRunItem) error
	Finalize(ctx context.Context, tx *gorm.DB, id uuid.UUID, inserted, updated, skipped, failed int) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ImportRun, error)
	ListItems(ctx context.Context, tx *gorm.DB, runID uuid.UUID) ([]*types.ImportRunItem, error)
	ListRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.ImportRun, error)
}

type importRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewImportRunRepo(db *gorm.DB, baseLog *logger.Logger) ImportRunRepo {
	return &importRunRepo{
		db:  db,
		log: baseLog.With("repo", "ImportRunRepo"),
	}
}

func (r *importRunRepo) Create(ctx context.Context, tx *gorm.DB, run *types.ImportRun) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if run == nil {
		return nil
	}
	return transaction.WithContext(ctx).Create(run).Error
}

func (r *importRunRepo) AppendItem(ctx context.Context, tx *gorm.DB, item *types.ImportRunItem) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if item == nil {
		return nil
	}
	return transaction.WithContext(ctx).Create(item).Error
}

func (r *importRunRepo) Finalize(ctx context.Context, tx *gorm.DB, id uuid.UUID, inserted, updated, skipped, failed int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	return transaction.WithContext(ctx).
		Model(&types.ImportRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      types.ImportRunStatusDone,
			"inserted":    inserted,
			"updated":     updated,
			"skipped":     skipped,
			"failed":      failed,
			"finished_at": &now,
		}).Error
}

func (r *importRunRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ImportRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var run types.ImportRun
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&run).Error
	if err != nil {
		return nil, err
	}
	if run.ID == uuid.Nil {
		return nil, nil
	}
	return &run, nil
}

func (r *importRunRepo) ListItems(ctx context.Context, tx *gorm.DB, runID uuid.UUID) ([]*types.ImportRunItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ImportRunItem
	err := transaction.WithContext(ctx).
		Where("import_run_id = ?", runID).
		Order("position ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *importRunRepo) ListRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.ImportRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 20
	}
	var out []*types.ImportRun
	err := transaction.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
