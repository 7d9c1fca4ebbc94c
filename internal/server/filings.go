package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	filingdomain "github.com/complyops/taxtrail/internal/filing/domain"
	"github.com/complyops/taxtrail/internal/period"
	"github.com/complyops/taxtrail/pkg/db/pagination"
	"github.com/gin-gonic/gin"
)

type createFilingRequest struct {
	ClientID string `json:"client_id" binding:"required"`
	Period   string `json:"period" binding:"required"`
	Actor    string `json:"actor" binding:"required"`
}

func (s *Server) createFiling(c *gin.Context) {
	orgID, ok := orgFrom(c)
	if !ok {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "validation_error", Message: "organization not resolved"}})
		return
	}

	var req createFilingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "validation_error", Message: err.Error()}})
		return
	}

	clientID, err := snowflake.ParseString(req.ClientID)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "validation_error", Message: "invalid client_id"}})
		return
	}

	key, err := period.KeyFor(orgID, clientID, req.Period)
	if err != nil {
		respondError(c, err)
		return
	}

	f, err := s.filingSvc.Create(c.Request.Context(), key, req.Actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

type subReturnRequest struct {
	Reference string            `json:"reference_number" binding:"required"`
	FiledDate time.Time         `json:"filed_date" binding:"required"`
	Actor     string            `json:"actor" binding:"required"`
	Figures   *filingTaxFigures `json:"figures"`
}

type filingTaxFigures struct {
	TaxPaid       int64 `json:"tax_paid"`
	CentralTax    int64 `json:"central_tax"`
	StateTax      int64 `json:"state_tax"`
	IntegratedTax int64 `json:"integrated_tax"`
}

func (s *Server) fileSubReturnA(c *gin.Context) {
	orgID, filingID, req, ok := s.bindSubReturn(c)
	if !ok {
		return
	}
	f, err := s.filingSvc.FileSubReturnA(c.Request.Context(), orgID, filingID, req.Reference, req.FiledDate, req.Actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (s *Server) fileSubReturnB(c *gin.Context) {
	orgID, filingID, req, ok := s.bindSubReturn(c)
	if !ok {
		return
	}
	if req.Figures == nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "validation_error", Message: "figures are required"}})
		return
	}
	figures := filingdomain.TaxFigures{
		TaxPaid:       req.Figures.TaxPaid,
		CentralTax:    req.Figures.CentralTax,
		StateTax:      req.Figures.StateTax,
		IntegratedTax: req.Figures.IntegratedTax,
	}
	f, err := s.filingSvc.FileSubReturnB(c.Request.Context(), orgID, filingID, req.Reference, req.FiledDate, figures, req.Actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (s *Server) bindSubReturn(c *gin.Context) (snowflake.ID, snowflake.ID, subReturnRequest, bool) {
	var req subReturnRequest
	orgID, filingID, ok := s.pathFiling(c)
	if !ok {
		return 0, 0, req, false
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "validation_error", Message: err.Error()}})
		return 0, 0, req, false
	}
	return orgID, filingID, req, true
}

type actorReasonRequest struct {
	Actor  string `json:"actor" binding:"required"`
	Reason string `json:"reason"`
}

func (s *Server) lockFiling(c *gin.Context) {
	orgID, filingID, ok := s.pathFiling(c)
	if !ok {
		return
	}
	var req actorReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "validation_error", Message: err.Error()}})
		return
	}
	f, err := s.filingSvc.Lock(c.Request.Context(), orgID, filingID, req.Actor, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (s *Server) unlockFiling(c *gin.Context) {
	orgID, filingID, ok := s.pathFiling(c)
	if !ok {
		return
	}
	var req actorReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "validation_error", Message: err.Error()}})
		return
	}
	f, err := s.filingSvc.Unlock(c.Request.Context(), orgID, filingID, req.Actor, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (s *Server) completeAmendment(c *gin.Context) {
	orgID, filingID, ok := s.pathFiling(c)
	if !ok {
		return
	}
	var req actorReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "validation_error", Message: err.Error()}})
		return
	}
	f, err := s.filingSvc.CompleteAmendment(c.Request.Context(), orgID, filingID, req.Actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (s *Server) recalculateCharges(c *gin.Context) {
	orgID, filingID, ok := s.pathFiling(c)
	if !ok {
		return
	}
	var req actorReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "validation_error", Message: err.Error()}})
		return
	}
	f, err := s.filingSvc.RecalculateCharges(c.Request.Context(), orgID, filingID, req.Actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (s *Server) getFiling(c *gin.Context) {
	orgID, filingID, ok := s.pathFiling(c)
	if !ok {
		return
	}
	f, err := s.filingSvc.GetByID(c.Request.Context(), orgID, filingID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (s *Server) listSteps(c *gin.Context) {
	orgID, filingID, ok := s.pathFiling(c)
	if !ok {
		return
	}
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "validation_error", Message: err.Error()}})
		return
	}
	steps, pageInfo, err := s.stepSvc.ListByFilingPage(c.Request.Context(), orgID, filingID, page.PageToken, page.PageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": steps, "page_info": pageInfo})
}

// listFilings serves either one period (client_id+period) or a fiscal
// year of filings (client_id+fiscal_year).
func (s *Server) listFilings(c *gin.Context) {
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

	if token := c.Query("period"); token != "" {
		key, err := period.KeyFor(orgID, clientID, token)
		if err != nil {
			respondError(c, err)
			return
		}
		f, err := s.filingSvc.GetByPeriod(c.Request.Context(), key)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": []any{f}})
		return
	}

	filings, err := s.filingSvc.ListByClientFY(c.Request.Context(), orgID, clientID, c.Query("fiscal_year"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": filings})
}

func (s *Server) listOverdue(c *gin.Context) {
	orgID, ok := orgFrom(c)
	if !ok {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "validation_error", Message: "organization not resolved"}})
		return
	}
	filings, err := s.filingSvc.ListOverdue(c.Request.Context(), orgID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": filings})
}

func (s *Server) listDueWithin(c *gin.Context) {
	orgID, ok := orgFrom(c)
	if !ok {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "validation_error", Message: "organization not resolved"}})
		return
	}
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "validation_error", Message: "days must be a positive integer"}})
		return
	}
	filings, err := s.filingSvc.ListDueWithin(c.Request.Context(), orgID, days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": filings})
}

func (s *Server) pathFiling(c *gin.Context) (snowflake.ID, snowflake.ID, bool) {
	orgID, ok := orgFrom(c)
	if !ok {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "validation_error", Message: "organization not resolved"}})
		return 0, 0, false
	}
	filingID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "validation_error", Message: "invalid filing id"}})
		return 0, 0, false
	}
	return orgID, filingID, true
}
