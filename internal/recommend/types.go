package recommend

import (
	v1 "github.com/brightcart-lab/recsys/internal/api/v1"
)

// FeedPageResponse is the wire shape of one paginated feed page.
type FeedPageResponse struct {
	Data       []v1.Candidate `json:"data"`
	Pagination v1.Pagination  `json:"pagination"`
}

// MixedFeedResponse is the wire shape of the product-detail mixed feed.
type MixedFeedResponse struct {
	Success bool           `json:"success"`
	Data    []v1.Candidate `json:"data"`
	Count   int            `json:"count"`
}
