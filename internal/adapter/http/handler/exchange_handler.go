package handler

import (
	"math"
	"strconv"
	"time"

	"github.com/CoderPravin-21/cash-exchange-prototype/internal/adapter/http/dto"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/adapter/http/middleware"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/domain"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/ports"
	"github.com/CoderPravin-21/cash-exchange-prototype/pkg/apperror"
	"github.com/CoderPravin-21/cash-exchange-prototype/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ExchangeHandler handles the exchange request lifecycle endpoints.
type ExchangeHandler struct {
	exchangeSvc   ports.ExchangeService
	acceptanceSvc ports.AcceptanceService
	settlementSvc ports.SettlementService
}

// NewExchangeHandler creates a new ExchangeHandler.
func NewExchangeHandler(
	exchangeSvc ports.ExchangeService,
	acceptanceSvc ports.AcceptanceService,
	settlementSvc ports.SettlementService,
) *ExchangeHandler {
	return &ExchangeHandler{
		exchangeSvc:   exchangeSvc,
		acceptanceSvc: acceptanceSvc,
		settlementSvc: settlementSvc,
	}
}

// Create handles POST /api/v1/exchanges.
func (h *ExchangeHandler) Create(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.exchangeSvc.CreateRequest(c.Request.Context(), ports.CreateRequestInput{
		ActorID:       userID.(uuid.UUID),
		Amount:        req.Amount,
		Direction:     domain.Direction(req.Direction),
		Location:      domain.Point{Lat: req.Lat, Lng: req.Lng},
		ExpiryMinutes: req.ExpiryMinutes,
		Notes:         req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toExchangeResponse(result))
}

// List handles GET /api/v1/exchanges, the caller's own request history.
func (h *ExchangeHandler) List(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	page, pageSize := parsePaging(c)
	requests, total, err := h.exchangeSvc.ListRequests(c.Request.Context(), userID.(uuid.UUID), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OKPaginated(c, toExchangeResponses(requests), paginationFor(page, pageSize, total))
}

// GetActive handles GET /api/v1/exchanges/active. Responds with null data
// when the caller has no open request; having none is not an error.
func (h *ExchangeHandler) GetActive(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	request, err := h.exchangeSvc.GetActiveRequest(c.Request.Context(), userID.(uuid.UUID))
	if err != nil {
		response.Error(c, err)
		return
	}
	if request == nil {
		response.OK(c, nil)
		return
	}

	response.OK(c, toExchangeResponse(request))
}

// Get handles GET /api/v1/exchanges/:id.
func (h *ExchangeHandler) Get(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid request id"))
		return
	}

	request, err := h.exchangeSvc.GetRequest(c.Request.Context(), userID.(uuid.UUID), requestID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toExchangeResponse(request))
}

// Accept handles POST /api/v1/exchanges/:id/accept. The completion code in
// the response is shown exactly once; it cannot be fetched again.
func (h *ExchangeHandler) Accept(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid request id"))
		return
	}

	result, err := h.acceptanceSvc.Accept(c.Request.Context(), userID.(uuid.UUID), requestID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.AcceptExchangeResponse{
		Exchange:       toExchangeResponse(result.Request),
		CompletionCode: result.CompletionCode,
	})
}

// Complete handles POST /api/v1/exchanges/:id/complete.
func (h *ExchangeHandler) Complete(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid request id"))
		return
	}

	var req dto.CompleteExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.settlementSvc.Complete(c.Request.Context(), userID.(uuid.UUID), requestID, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.CompleteExchangeResponse{
		Exchange:    toExchangeResponse(result.Request),
		Transaction: toTransactionResponse(result.Transaction),
	})
}

// Cancel handles POST /api/v1/exchanges/:id/cancel.
func (h *ExchangeHandler) Cancel(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid request id"))
		return
	}

	request, err := h.exchangeSvc.Cancel(c.Request.Context(), userID.(uuid.UUID), requestID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toExchangeResponse(request))
}

// parsePaging reads page/page_size query values with the documented bounds.
func parsePaging(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

// paginationFor builds the list envelope metadata.
func paginationFor(page, pageSize int, total int64) response.Pagination {
	return response.Pagination{
		Page:       page,
		PerPage:    pageSize,
		TotalItems: total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}
}

// toExchangeResponse converts domain.ExchangeRequest to its wire form.
func toExchangeResponse(r *domain.ExchangeRequest) dto.ExchangeResponse {
	resp := dto.ExchangeResponse{
		ID:             r.ID.String(),
		RequesterID:    r.RequesterID.String(),
		Amount:         r.Amount,
		PlatformFee:    r.PlatformFee,
		NetAmount:      r.NetAmount(),
		Direction:      string(r.Direction),
		Status:         string(r.Status),
		Lat:            r.Location.Lat,
		Lng:            r.Location.Lng,
		Notes:          r.Notes,
		ViewCount:      r.ViewCount,
		DistanceMeters: r.DistanceMeters,
		ExpiresAt:      r.ExpiresAt.Format(time.RFC3339),
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
	}
	if r.HelperID != nil {
		s := r.HelperID.String()
		resp.HelperID = &s
	}
	if r.LinkedRequestID != nil {
		s := r.LinkedRequestID.String()
		resp.LinkedRequestID = &s
	}
	if r.AcceptedAt != nil {
		s := r.AcceptedAt.Format(time.RFC3339)
		resp.AcceptedAt = &s
	}
	if r.CompletedAt != nil {
		s := r.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &s
	}
	if r.CancelledAt != nil {
		s := r.CancelledAt.Format(time.RFC3339)
		resp.CancelledAt = &s
	}
	return resp
}

// toExchangeResponses converts a result page in place.
func toExchangeResponses(requests []domain.ExchangeRequest) []dto.ExchangeResponse {
	items := make([]dto.ExchangeResponse, 0, len(requests))
	for i := range requests {
		items = append(items, toExchangeResponse(&requests[i]))
	}
	return items
}
