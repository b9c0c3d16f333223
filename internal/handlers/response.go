package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/entheodex/entheodex-backend/internal/middleware"
	"github.com/entheodex/entheodex-backend/internal/pkg/apierr"
)

// EnvelopeContext echoes per-request correlation data back to the caller.
type EnvelopeContext struct {
	RequestID string `json:"requestId"`
}

// Envelope is the single response shape for the import endpoints. A request
// that begins processing always answers ok=true with per-item failures inside
// results; only pre-processing failures produce ok=false.
type Envelope struct {
	OK      bool            `json:"ok"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Detail  string          `json:"detail,omitempty"`
	Context EnvelopeContext `json:"context"`
	Results any             `json:"results"`
	Summary any             `json:"summary,omitempty"`
	RunID   string          `json:"runId,omitempty"`
}

func envelopeContext(c *gin.Context) EnvelopeContext {
	return EnvelopeContext{RequestID: middleware.RequestID(c)}
}

func RespondResults(c *gin.Context, results any, summary any, runID string) {
	c.JSON(http.StatusOK, Envelope{
		OK:      true,
		Context: envelopeContext(c),
		Results: results,
		Summary: summary,
		RunID:   runID,
	})
}

// RespondFailure maps an error to the top-level failure envelope. Unknown
// errors become a generic 500 INTERNAL.
func RespondFailure(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL"
	message := "internal error"
	detail := ""

	var ae *apierr.Error
	if errors.As(err, &ae) {
		status = ae.Status
		code = ae.Code
		message = ae.Error()
	} else if err != nil {
		detail = err.Error()
	}

	c.JSON(status, Envelope{
		OK:      false,
		Code:    code,
		Message: message,
		Detail:  detail,
		Context: envelopeContext(c),
		Results: []any{},
	})
}

func RespondBadRequest(c *gin.Context, err error) {
	RespondFailure(c, apierr.New(http.StatusBadRequest, "BAD_REQUEST", err))
}
