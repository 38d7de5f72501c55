package v1

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestActivityEvent_Validate(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	valid := ActivityEvent{
		ProductID:  "prod-1",
		ActorID:    "user-1",
		Kind:       ActivityView,
		OccurredAt: now,
	}

	tests := []struct {
		name    string
		mutate  func(e *ActivityEvent)
		wantErr string
	}{
		{name: "valid", mutate: func(e *ActivityEvent) {}},
		{
			name:    "missing product",
			mutate:  func(e *ActivityEvent) { e.ProductID = "" },
			wantErr: "product_id is required",
		},
		{
			name:    "missing actor",
			mutate:  func(e *ActivityEvent) { e.ActorID = "" },
			wantErr: "actor_id is required",
		},
		{
			name:    "unknown kind",
			mutate:  func(e *ActivityEvent) { e.Kind = "wishlist" },
			wantErr: "unknown activity kind",
		},
		{
			name:    "zero occurred_at",
			mutate:  func(e *ActivityEvent) { e.OccurredAt = time.Time{} },
			wantErr: "occurred_at is required",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			evt := valid
			tc.mutate(&evt)
			err := evt.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name        string
		page, limit int
		total       int
		wantPages   int
		wantHasMore bool
	}{
		{name: "exact multiple", page: 1, limit: 10, total: 20, wantPages: 2, wantHasMore: true},
		{name: "partial last page", page: 3, limit: 10, total: 25, wantPages: 3, wantHasMore: false},
		{name: "mid pagination", page: 2, limit: 10, total: 25, wantPages: 3, wantHasMore: true},
		{name: "empty result", page: 1, limit: 10, total: 0, wantPages: 0, wantHasMore: false},
		{name: "zero limit", page: 1, limit: 0, total: 5, wantPages: 0, wantHasMore: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPagination(tc.page, tc.limit, tc.total)
			require.Equal(t, tc.wantPages, p.TotalPages)
			require.Equal(t, tc.wantHasMore, p.HasMore())
		})
	}
}
