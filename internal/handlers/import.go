package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/entheodex/entheodex-backend/internal/pkg/apierr"
	pkgerrors "github.com/entheodex/entheodex-backend/internal/pkg/errors"
	"github.com/entheodex/entheodex-backend/internal/pkg/logger"
	"github.com/entheodex/entheodex-backend/internal/repos"
	"github.com/entheodex/entheodex-backend/internal/services"
	"github.com/entheodex/entheodex-backend/internal/types"
)

type ImportHandler struct {
	log      *logger.Logger
	importer services.ImporterService
	runs     repos.ImportRunRepo
}

func NewImportHandler(log *logger.Logger, importer services.ImporterService, runs repos.ImportRunRepo) *ImportHandler {
	return &ImportHandler{
		log:      log.With("handler", "ImportHandler"),
		importer: importer,
		runs:     runs,
	}
}

type importRequest struct {
	Items               []types.Candidate `json:"items"`
	Overwrite           bool              `json:"overwrite"`
	SkipSecondarySource bool              `json:"skipSecondarySource"`
}

func (h *ImportHandler) Preview(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, fmt.Errorf("invalid payload: %w", err))
		return
	}

	results, err := h.importer.Preview(c.Request.Context(), req.Items)
	if err != nil {
		RespondFailure(c, err)
		return
	}
	RespondResults(c, results, nil, "")
}

func (h *ImportHandler) DryRun(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, fmt.Errorf("invalid payload: %w", err))
		return
	}

	results, counts, err := h.importer.DryRun(c.Request.Context(), req.Items, req.Overwrite)
	if err != nil {
		RespondFailure(c, err)
		return
	}
	RespondResults(c, results, counts, "")
}

func (h *ImportHandler) Commit(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, fmt.Errorf("invalid payload: %w", err))
		return
	}

	results, summary, runID, err := h.importer.Commit(c.Request.Context(), req.Items, services.ImportOptions{
		Overwrite:           req.Overwrite,
		SkipSecondarySource: req.SkipSecondarySource,
		TriggerSource:       "api",
	})
	if err != nil {
		RespondFailure(c, err)
		return
	}
	RespondResults(c, results, summary, runID.String())
}

func (h *ImportHandler) ListRuns(c *gin.Context) {
	if h.runs == nil {
		RespondFailure(c, apierr.New(http.StatusServiceUnavailable, "STORE_UNCONFIGURED", pkgerrors.ErrStoreUnconfigured))
		return
	}
	runs, err := h.runs.ListRecent(c.Request.Context(), nil, 50)
	if err != nil {
		RespondFailure(c, err)
		return
	}
	RespondResults(c, runs, nil, "")
}

func (h *ImportHandler) GetRun(c *gin.Context) {
	if h.runs == nil {
		RespondFailure(c, apierr.New(http.StatusServiceUnavailable, "STORE_UNCONFIGURED", pkgerrors.ErrStoreUnconfigured))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, fmt.Errorf("invalid run id: %w", err))
		return
	}

	run, err := h.runs.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		RespondFailure(c, err)
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, Envelope{
			OK:      false,
			Code:    "NOT_FOUND",
			Message: "import run not found",
			Context: envelopeContext(c),
			Results: []any{},
		})
		return
	}
	items, err := h.runs.ListItems(c.Request.Context(), nil, id)
	if err != nil {
		RespondFailure(c, err)
		return
	}
	RespondResults(c, gin.H{"run": run, "items": items}, nil, run.ID.String())
}
