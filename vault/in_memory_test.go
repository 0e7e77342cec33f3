package vault

import (
	"context"
	"sync"
	"testing"

	"github.com/hupe1980/agentfabric/core"
)

// Interface compliance (compile-time assertion)
var _ core.Vault = (*InMemory)(nil)

func TestInMemory_RetrieveSlice_Matching(t *testing.T) {
	ctx := context.Background()
	v := NewInMemory("tickets")

	first, err := v.AddClaim(ctx, "T-1 failing", core.Beacons{"ticket": "T-1"})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := v.AddClaim(ctx, "T-2 failing", core.Beacons{"ticket": "T-2"}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := v.AddClaim(ctx, "untagged note", nil); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	slice, err := v.RetrieveSlice(ctx, core.Beacons{"ticket": "T-1"}, 0)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(slice) != 1 || slice[0].ID != first.ID {
		t.Fatalf("expected exactly the T-1 claim, got %#v", slice)
	}

	// Shared key with a different value never matches.
	slice, _ = v.RetrieveSlice(ctx, core.Beacons{"ticket": "T-3"}, 0)
	if len(slice) != 0 {
		t.Fatalf("expected no matches, got %d", len(slice))
	}

	// Untagged claims never match a non-empty query.
	slice, _ = v.RetrieveSlice(ctx, core.Beacons{"note": "untagged"}, 0)
	if len(slice) != 0 {
		t.Fatalf("untagged claim must not match, got %d", len(slice))
	}
}

func TestInMemory_RetrieveSlice_EmptyQuery(t *testing.T) {
	ctx := context.Background()
	v := NewInMemory("tickets")
	if _, err := v.AddClaim(ctx, "T-1 failing", core.Beacons{"ticket": "T-1"}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	slice, err := v.RetrieveSlice(ctx, core.Beacons{}, 0)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(slice) != 0 {
		t.Fatalf("empty query must yield an empty slice by default, got %d", len(slice))
	}

	all := NewInMemory("open", func(o *Options) { o.EmptyQueryMatchesAll = true })
	if _, err := all.AddClaim(ctx, "anything", nil); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	slice, _ = all.RetrieveSlice(ctx, nil, 0)
	if len(slice) != 1 {
		t.Fatalf("opted-in vault should return everything on empty query, got %d", len(slice))
	}
}

func TestInMemory_RetrieveSlice_OrderAndLimit(t *testing.T) {
	ctx := context.Background()
	v := NewInMemory("log")

	contents := []string{"first", "second", "third", "fourth"}
	for _, c := range contents {
		if _, err := v.AddClaim(ctx, c, core.Beacons{"kind": "entry"}); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}

	slice, err := v.RetrieveSlice(ctx, core.Beacons{"kind": "entry"}, 0)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	for i, claim := range slice {
		if claim.Content != contents[i] {
			t.Fatalf("retrieval must keep insertion order: pos %d got %q", i, claim.Content)
		}
	}

	// Stable truncation keeps the first N matches, not the last.
	limited, _ := v.RetrieveSlice(ctx, core.Beacons{"kind": "entry"}, 2)
	if len(limited) != 2 || limited[0].Content != "first" || limited[1].Content != "second" {
		t.Fatalf("limit must truncate from the front, got %#v", limited)
	}

	// Idempotent across repeated calls with no intervening writes.
	again, _ := v.RetrieveSlice(ctx, core.Beacons{"kind": "entry"}, 0)
	if len(again) != len(slice) {
		t.Fatalf("repeated retrieval changed: %d vs %d", len(again), len(slice))
	}
	for i := range again {
		if again[i].ID != slice[i].ID {
			t.Fatalf("repeated retrieval reordered at %d", i)
		}
	}
}

func TestInMemory_AddClaim_NoDedup(t *testing.T) {
	ctx := context.Background()
	v := NewInMemory("dup")

	a, _ := v.AddClaim(ctx, "same", core.Beacons{"k": "v"})
	b, _ := v.AddClaim(ctx, "same", core.Beacons{"k": "v"})
	if a.ID == b.ID {
		t.Fatalf("identical claims must not be merged")
	}
	if v.Len() != 2 {
		t.Fatalf("expected 2 stored claims, got %d", v.Len())
	}
}

func TestInMemory_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	v := NewInMemory("busy")

	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := v.AddClaim(ctx, "entry", core.Beacons{"kind": "entry"}); err != nil {
					t.Errorf("add failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if v.Len() != writers*perWriter {
		t.Fatalf("lost claims under concurrency: got %d want %d", v.Len(), writers*perWriter)
	}
}
