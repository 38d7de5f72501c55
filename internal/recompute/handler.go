package recompute

import (
	"errors"
	"net/http"
	"sync"

	httperr "github.com/brightcart-lab/recsys/internal/core/errors"
	"github.com/brightcart-lab/recsys/internal/core/storage"
	"github.com/gin-gonic/gin"
)

// Handler exposes manual recompute triggers for operators. The scheduler
// covers steady state; this exists for backfills and incident recovery.
type Handler struct {
	job *Job
	mu  sync.Mutex // one manual full recompute at a time
}

// NewHandler creates the recompute trigger handler.
func NewHandler(job *Job) *Handler {
	return &Handler{job: job}
}

// RegisterRoutes registers the recompute trigger route.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/recompute", h.TriggerHandler)
}

// TriggerHandler handles POST /v1/recompute.
// With a product_id in the body it rescores that one product; without,
// it runs a full catalog recompute synchronously.
func (h *Handler) TriggerHandler(c *gin.Context) {
	var body struct {
		ProductID string `json:"product_id"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
				ErrorType: httperr.HttpValidationError,
				Message:   "Invalid JSON body",
				Details:   err.Error(),
			})
			return
		}
	}

	if body.ProductID != "" {
		score, err := h.job.RecomputeOne(c.Request.Context(), body.ProductID)
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, httperr.ErrorResponse{
				ErrorType: httperr.HttpNotFoundError,
				Message:   "Unknown product",
				Details:   map[string]interface{}{"product_id": body.ProductID},
			})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
				ErrorType: httperr.HttpInternalError,
				Message:   "Recompute failed",
				Details:   err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"product_id": body.ProductID, "popularity_score": score})
		return
	}

	if !h.mu.TryLock() {
		c.JSON(http.StatusConflict, httperr.ErrorResponse{
			ErrorType: httperr.HttpValidationError,
			Message:   "A full recompute is already running",
		})
		return
	}
	defer h.mu.Unlock()

	updated, err := h.job.RecomputeAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Recompute failed",
			Details:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "completed", "products": updated})
}
