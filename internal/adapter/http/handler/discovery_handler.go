package handler

import (
	"strconv"

	"github.com/CoderPravin-21/cash-exchange-prototype/internal/adapter/http/middleware"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/domain"
	"github.com/CoderPravin-21/cash-exchange-prototype/internal/core/ports"
	"github.com/CoderPravin-21/cash-exchange-prototype/pkg/apperror"
	"github.com/CoderPravin-21/cash-exchange-prototype/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DiscoveryHandler handles the nearby-request search endpoints.
type DiscoveryHandler struct {
	matchingSvc ports.MatchingService
}

// NewDiscoveryHandler creates a new DiscoveryHandler.
func NewDiscoveryHandler(matchingSvc ports.MatchingService) *DiscoveryHandler {
	return &DiscoveryHandler{matchingSvc: matchingSvc}
}

// Nearby handles GET /api/v1/exchanges/nearby.
func (h *DiscoveryHandler) Nearby(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
	if latErr != nil || lngErr != nil {
		response.Error(c, apperror.Validation("lat and lng are required"))
		return
	}

	query := ports.NearbyQuery{
		ActorID: userID.(uuid.UUID),
		Origin:  domain.Point{Lat: lat, Lng: lng},
	}

	if r := c.Query("radius"); r != "" {
		if v, err := strconv.ParseFloat(r, 64); err == nil {
			query.MaxDistanceMeters = v
		}
	}
	if d := c.Query("direction"); d != "" {
		direction := domain.Direction(d)
		if !direction.Valid() {
			response.Error(c, apperror.Validation("invalid direction filter"))
			return
		}
		query.Direction = &direction
	}
	if m := c.Query("min_amount"); m != "" {
		if v, err := strconv.ParseInt(m, 10, 64); err == nil {
			query.MinAmount = &v
		}
	}
	if m := c.Query("max_amount"); m != "" {
		if v, err := strconv.ParseInt(m, 10, 64); err == nil {
			query.MaxAmount = &v
		}
	}
	query.Page, query.PageSize = parsePaging(c)

	requests, total, err := h.matchingSvc.FindNearby(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OKPaginated(c, toExchangeResponses(requests), paginationFor(query.Page, query.PageSize, total))
}

// Matches handles GET /api/v1/exchanges/matches. Filters are derived from
// the caller's own open request, so only a radius and paging are accepted.
func (h *DiscoveryHandler) Matches(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var radius float64
	if r := c.Query("radius"); r != "" {
		if v, err := strconv.ParseFloat(r, 64); err == nil {
			radius = v
		}
	}
	page, pageSize := parsePaging(c)

	requests, total, err := h.matchingSvc.FindCompatibleHelpers(c.Request.Context(), userID.(uuid.UUID), radius, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OKPaginated(c, toExchangeResponses(requests), paginationFor(page, pageSize, total))
}
