package recommend

import (
	"errors"
	"fmt"
	"net/http"

	v1 "github.com/brightcart-lab/recsys/internal/api/v1"
	httperr "github.com/brightcart-lab/recsys/internal/core/errors"
	"github.com/brightcart-lab/recsys/internal/core/feeds"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 50
)

// ErrInvalidQuery marks request validation errors that should return
// HTTP 400.
var ErrInvalidQuery = errors.New("invalid recommendation query")

// Handler exposes the aggregator over HTTP.
type Handler struct {
	agg *Aggregator
}

// NewHandler creates the HTTP handler for the recommendation API.
func NewHandler(agg *Aggregator) *Handler {
	return &Handler{agg: agg}
}

// RegisterRoutes registers all recommendation API routes.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	// Static guest route first; it doubles as the client fallback feed.
	r.GET("/v1/recommendations/guest/popular", h.HandleGuestPopular)

	r.GET("/v1/recommendations/:actor_id", h.HandleSections)
	r.GET("/v1/recommendations/:actor_id/:feed", h.HandleFeedPage)
	r.GET("/v1/products/:product_id/mixed-recommendations", h.HandleMixedFeed)
}

// HandleSections handles GET /v1/recommendations/:actor_id
// Query parameters: personalized_limit, popular_limit, trending_limit.
func (h *Handler) HandleSections(c *gin.Context) {
	var uri struct {
		ActorID string `uri:"actor_id" binding:"required"`
	}
	var query struct {
		PersonalizedLimit int `form:"personalized_limit"`
		PopularLimit      int `form:"popular_limit"`
		TrendingLimit     int `form:"trending_limit"`
	}

	if err := c.ShouldBindUri(&uri); err != nil {
		writeBadRequest(c, "Invalid path parameters", err)
		return
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		writeBadRequest(c, "Invalid query parameters", err)
		return
	}
	if query.PersonalizedLimit < 0 || query.PopularLimit < 0 || query.TrendingLimit < 0 {
		writeBadRequest(c, "Section limits must be >= 0", nil)
		return
	}

	sections, err := h.agg.Sections(c.Request.Context(), uri.ActorID, SectionLimits{
		Personalized: clampLimit(query.PersonalizedLimit),
		Popular:      clampLimit(query.PopularLimit),
		Trending:     clampLimit(query.TrendingLimit),
	})
	if err != nil {
		writeUpstreamError(c, "Failed to compute feed sections", err)
		return
	}

	c.JSON(http.StatusOK, sections)
}

// HandleFeedPage handles GET /v1/recommendations/:actor_id/:feed
// Query parameters: page, limit.
func (h *Handler) HandleFeedPage(c *gin.Context) {
	var uri struct {
		ActorID string `uri:"actor_id" binding:"required"`
		Feed    string `uri:"feed" binding:"required"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		writeBadRequest(c, "Invalid path parameters", err)
		return
	}

	source := feeds.Source(uri.Feed)
	if !feeds.ValidSource(source) {
		writeBadRequest(c, "Unknown feed", fmt.Sprintf("feed must be one of trending, popular, personalized; got %q", uri.Feed))
		return
	}

	page, limit, err := bindPageQuery(c)
	if err != nil {
		writeBadRequest(c, "Invalid pagination parameters", err.Error())
		return
	}

	data, pagination, err := h.agg.FeedPage(c.Request.Context(), source, uri.ActorID, page, limit)
	if err != nil {
		writeUpstreamError(c, "Failed to compute feed page", err)
		return
	}

	c.JSON(http.StatusOK, FeedPageResponse{Data: emptyIfNil(data), Pagination: pagination})
}

// HandleGuestPopular handles GET /v1/recommendations/guest/popular
// Query parameters: page, limit. Serves the fallback cascade target.
func (h *Handler) HandleGuestPopular(c *gin.Context) {
	page, limit, err := bindPageQuery(c)
	if err != nil {
		writeBadRequest(c, "Invalid pagination parameters", err.Error())
		return
	}

	data, pagination, err := h.agg.FeedPage(c.Request.Context(), feeds.SourcePopular, v1.ActorGuest, page, limit)
	if err != nil {
		writeUpstreamError(c, "Failed to compute popular feed", err)
		return
	}

	c.JSON(http.StatusOK, FeedPageResponse{Data: emptyIfNil(data), Pagination: pagination})
}

// HandleMixedFeed handles GET /v1/products/:product_id/mixed-recommendations
// Query parameters: actor_id, limit, offset.
func (h *Handler) HandleMixedFeed(c *gin.Context) {
	var uri struct {
		ProductID string `uri:"product_id" binding:"required"`
	}
	var query struct {
		ActorID string `form:"actor_id"`
		Limit   int    `form:"limit,default=10"`
		Offset  int    `form:"offset"`
	}

	if err := c.ShouldBindUri(&uri); err != nil {
		writeBadRequest(c, "Invalid path parameters", err)
		return
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		writeBadRequest(c, "Invalid query parameters", err)
		return
	}
	if query.Limit <= 0 || query.Limit > maxPageLimit {
		writeBadRequest(c, fmt.Sprintf("limit must be 1-%d", maxPageLimit), nil)
		return
	}
	if query.Offset < 0 {
		writeBadRequest(c, "offset must be >= 0", nil)
		return
	}
	if query.ActorID == "" {
		query.ActorID = v1.ActorGuest
	}

	data, err := h.agg.MixedFeed(c.Request.Context(), uri.ProductID, query.ActorID, query.Limit, query.Offset)
	if err != nil {
		writeUpstreamError(c, "Failed to compute mixed feed", err)
		return
	}

	c.JSON(http.StatusOK, MixedFeedResponse{
		Success: true,
		Data:    emptyIfNil(data),
		Count:   len(data),
	})
}

// bindPageQuery validates the shared page/limit query parameters.
func bindPageQuery(c *gin.Context) (page, limit int, err error) {
	var query struct {
		Page  int `form:"page,default=1"`
		Limit int `form:"limit,default=10"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		return 0, 0, fmt.Errorf("%w: %s", ErrInvalidQuery, err.Error())
	}
	if query.Page < 1 {
		return 0, 0, fmt.Errorf("%w: page must be >= 1", ErrInvalidQuery)
	}
	if query.Limit < 1 || query.Limit > maxPageLimit {
		return 0, 0, fmt.Errorf("%w: limit must be 1-%d", ErrInvalidQuery, maxPageLimit)
	}
	return query.Page, query.Limit, nil
}

func clampLimit(limit int) int {
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}

func emptyIfNil(candidates []v1.Candidate) []v1.Candidate {
	if candidates == nil {
		return []v1.Candidate{}
	}
	return candidates
}

func writeBadRequest(c *gin.Context, message string, details interface{}) {
	if err, ok := details.(error); ok {
		details = err.Error()
	}
	c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
		ErrorType: httperr.HttpValidationError,
		Message:   message,
		Details:   details,
	})
}

func writeUpstreamError(c *gin.Context, message string, err error) {
	c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
		ErrorType: httperr.HttpUpstreamError,
		Message:   message,
		Details:   err.Error(),
	})
}
