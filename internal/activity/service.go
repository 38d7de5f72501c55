package activity

import (
	"github.com/brightcart-lab/recsys/internal/core/storage"
	"github.com/gin-gonic/gin"
)

// Service accepts behavioral activity events over HTTP and bumps the
// per-product counters that feed popularity scoring.
type Service struct {
	events           storage.ActivityStore
	products         storage.ProductStore
	maxBodySizeBytes int
}

func NewService(events storage.ActivityStore, products storage.ProductStore, maxBodySizeMB int) *Service {
	if events == nil {
		panic("activity: event store must not be nil")
	}
	if products == nil {
		panic("activity: product store must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		events:           events,
		products:         products,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the activity intake routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/activity", s.IntakeHandler)
}
