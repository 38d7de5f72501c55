package partition

import "hash/fnv"

// Count is the fixed number of logical shards the recompute job fans
// products out over. Never changes after initial deployment; it's a
// capacity decision, not a scaling decision.
const Count = 64

// For returns the shard ID for a given product ID.
// Stable and deterministic: same productID always maps to the same shard,
// so no two recompute workers ever touch the same product row.
// Uses FNV-32a (stdlib, fast, well-distributed).
func For(productID string) int {
	h := fnv.New32a()
	h.Write([]byte(productID))
	return int(h.Sum32()) % Count
}
