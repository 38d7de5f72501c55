package partition

import (
	"strconv"
	"testing"
)

func TestFor_Determinism(t *testing.T) {
	// Same input must always produce the same shard.
	id := For("prod-abc")
	for i := 0; i < 100; i++ {
		if got := For("prod-abc"); got != id {
			t.Fatalf("For(\"prod-abc\") = %d on iteration %d, want %d", got, i, id)
		}
	}
}

func TestFor_Range(t *testing.T) {
	// All outputs must be in [0, Count).
	inputs := []string{"", "a", "prod-1", "prod-2", "very-long-product-id-that-should-still-hash-correctly"}
	for _, s := range inputs {
		p := For(s)
		if p < 0 || p >= Count {
			t.Errorf("For(%q) = %d, want [0, %d)", s, p, Count)
		}
	}
}

func TestFor_Distribution(t *testing.T) {
	// 1 000 products should hit at least 50 distinct shards (sanity check
	// that FNV-32a spreads well). With 64 buckets and 1000 keys every
	// bucket is expected to be hit; 50 is a very conservative floor.
	seen := make(map[int]struct{})
	for i := 0; i < 1000; i++ {
		seen[For("prod-"+strconv.Itoa(i))] = struct{}{}
	}
	if len(seen) < 50 {
		t.Errorf("only %d distinct shards from 1000 inputs, want >= 50", len(seen))
	}
}
