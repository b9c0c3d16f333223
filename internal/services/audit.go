package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/entheodex/entheodex-backend/internal/pkg/logger"
	"github.com/entheodex/entheodex-backend/internal/repos"
	"github.com/entheodex/entheodex-backend/internal/types"
)

// AuditSink records import-run bookkeeping. Everything except StartRun is
// best-effort by contract: the methods return nothing and a failure is
// unobservable to the caller. Failures are logged for operators and never
// block or roll back catalog work.
type AuditSink interface {
	StartRun(ctx context.Context, run *types.ImportRun) error
	RecordItem(ctx context.Context, item *types.ImportRunItem)
	FinalizeRun(ctx context.Context, runID uuid.UUID, summary Summary)
}

type auditSink struct {
	log  *logger.Logger
	runs repos.ImportRunRepo
}

func NewAuditSink(runs repos.ImportRunRepo, baseLog *logger.Logger) AuditSink {
	return &auditSink{
		log:  baseLog.With("service", "AuditSink"),
		runs: runs,
	}
}

// StartRun writes the run row before any item is processed, so a crash
// mid-batch leaves an inspectable record with status running.
func (a *auditSink) StartRun(ctx context.Context, run *types.ImportRun) error {
	return a.runs.Create(ctx, nil, run)
}

func (a *auditSink) RecordItem(ctx context.Context, item *types.ImportRunItem) {
	if err := a.runs.AppendItem(ctx, nil, item); err != nil {
		a.log.Warn("audit item write failed", "run_id", item.ImportRunID, "position", item.Position, "error", err)
	}
}

func (a *auditSink) FinalizeRun(ctx context.Context, runID uuid.UUID, summary Summary) {
	err := a.runs.Finalize(ctx, nil, runID, summary.Inserted, summary.Updated, summary.Skipped, summary.Failed)
	if err != nil {
		a.log.Warn("run finalization write failed", "run_id", runID, "error", err)
	}
}
