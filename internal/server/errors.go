package server

import (
	"errors"
	"net/http"

	filingdomain "github.com/complyops/taxtrail/internal/filing/domain"
	"github.com/complyops/taxtrail/internal/period"
	recondomain "github.com/complyops/taxtrail/internal/reconciliation/domain"
	stepdomain "github.com/complyops/taxtrail/internal/stepledger/domain"
	"github.com/gin-gonic/gin"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// respondError maps the engine taxonomy onto HTTP statuses. Typed errors
// pass through; anything else is an internal error.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	kind := "internal_error"

	switch {
	case errors.Is(err, filingdomain.ErrValidation),
		errors.Is(err, recondomain.ErrValidation),
		errors.Is(err, period.ErrInvalidClient),
		errors.Is(err, period.ErrInvalidPeriod),
		errors.Is(err, period.ErrInvalidFiscalYear),
		errors.Is(err, stepdomain.ErrInvalidFiling),
		errors.Is(err, stepdomain.ErrInvalidPageToken):
		status = http.StatusBadRequest
		kind = "validation_error"
	case errors.Is(err, filingdomain.ErrNotFound),
		errors.Is(err, recondomain.ErrNotFound),
		errors.Is(err, stepdomain.ErrNotFound):
		status = http.StatusNotFound
		kind = "not_found"
	case errors.Is(err, filingdomain.ErrAlreadyExists):
		status = http.StatusConflict
		kind = "already_exists"
	case errors.Is(err, filingdomain.ErrInvalidTransition):
		status = http.StatusConflict
		kind = "invalid_transition"
	case errors.Is(err, filingdomain.ErrStorageConflict):
		status = http.StatusConflict
		kind = "storage_conflict"
	case errors.Is(err, filingdomain.ErrUpstreamTimeout),
		errors.Is(err, recondomain.ErrUpstreamTimeout):
		status = http.StatusGatewayTimeout
		kind = "upstream_timeout"
	}

	c.JSON(status, errorResponse{Error: errorPayload{
		Type:    kind,
		Message: err.Error(),
	}})
}
