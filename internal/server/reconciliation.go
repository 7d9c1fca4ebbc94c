package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/complyops/taxtrail/internal/period"
	recondomain "github.com/complyops/taxtrail/internal/reconciliation/domain"
	"github.com/gin-gonic/gin"
)

type periodRequest struct {
	ClientID string `json:"client_id" binding:"required"`
	Period   string `json:"period" binding:"required"`
}

func (s *Server) periodKey(c *gin.Context, clientID, periodToken string) (period.Key, bool) {
	orgID, ok := orgFrom(c)
	if !ok {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "validation_error", Message: "organization not resolved"}})
		return period.Key{}, false
	}
	client, err := snowflake.ParseString(clientID)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "validation_error", Message: "invalid client_id"}})
		return period.Key{}, false
	}
	key, err := period.KeyFor(orgID, client, periodToken)
	if err != nil {
		respondError(c, err)
		return period.Key{}, false
	}
	return key, true
}

func (s *Server) computeClaimed(c *gin.Context) {
	var req periodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "validation_error", Message: err.Error()}})
		return
	}
	key, ok := s.periodKey(c, req.ClientID, req.Period)
	if !ok {
		return
	}
	rec, err := s.reconSvc.ComputeClaimed(c.Request.Context(), key)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type syncRequest struct {
	ClientID                   string `json:"client_id" binding:"required"`
	Period                     string `json:"period" binding:"required"`
	CounterpartyReportedCredit int64  `json:"counterparty_reported_credit"`
	PendingCredit              int64  `json:"pending_credit"`
	RejectedCredit             int64  `json:"rejected_credit"`
}

func (s *Server) mergeCounterparty(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "validation_error", Message: err.Error()}})
		return
	}
	key, ok := s.periodKey(c, req.ClientID, req.Period)
	if !ok {
		return
	}
	rec, err := s.reconSvc.MergeCounterparty(c.Request.Context(), key, recondomain.SyncData{
		CounterpartyReportedCredit: req.CounterpartyReportedCredit,
		PendingCredit:              req.PendingCredit,
		RejectedCredit:             req.RejectedCredit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type resolveRequest struct {
	ClientID   string `json:"client_id" binding:"required"`
	Period     string `json:"period" binding:"required"`
	Resolution string `json:"resolution" binding:"required"`
	Actor      string `json:"actor" binding:"required"`
}

func (s *Server) resolveDiscrepancy(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "validation_error", Message: err.Error()}})
		return
	}
	key, ok := s.periodKey(c, req.ClientID, req.Period)
	if !ok {
		return
	}
	rec, err := s.reconSvc.Resolve(c.Request.Context(), key, req.Resolution, req.Actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) getAnalysis(c *gin.Context) {
	key, ok := s.periodKey(c, c.Query("client_id"), c.Query("period"))
	if !ok {
		return
	}
	rec, err := s.reconSvc.GetAnalysis(c.Request.Context(), key)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) fyReport(c *gin.Context) {
	orgID, ok := orgFrom(c)
	if !ok {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "validation_error", Message: "organization not resolved"}})
		return
	}
	clientID, err := snowflake.ParseString(c.Query("client_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "validation_error", Message: "invalid client_id"}})
		return
	}
	report, err := s.reconSvc.GenerateFYReport(c.Request.Context(), orgID, clientID, c.Query("fiscal_year"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
