package store

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryCatalogStore_FirstWriteWins(t *testing.T) {
	s := NewMemoryCatalogStore()
	ctx := context.Background()

	n, err := s.InsertBatch(ctx, []Game{{AppID: 100, Name: "A", Price: 999}})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 inserted, got %d", n)
	}

	n, err = s.InsertBatch(ctx, []Game{{AppID: 100, Name: "A2", Price: 1}, {AppID: 200, Name: "B"}})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected only the new id to insert, got %d", n)
	}

	g, err := s.GetByID(ctx, 100)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if g.Name != "A" || g.Price != 999 {
		t.Fatalf("expected original row to survive, got %+v", g)
	}
}

func TestMemoryCatalogStore_NormalizesLists(t *testing.T) {
	s := NewMemoryCatalogStore()
	ctx := context.Background()
	_, _ = s.InsertBatch(ctx, []Game{{AppID: 1, Name: "A"}})

	g, _ := s.GetByID(ctx, 1)
	for name, l := range map[string][]string{
		"developers": g.Developers, "publishers": g.Publishers, "categories": g.Categories,
		"genres": g.Genres, "tags": g.Tags,
	} {
		if l == nil {
			t.Fatalf("expected %s to be empty, not nil", name)
		}
	}
}

func TestMemoryCatalogStore_GetByIDMissing(t *testing.T) {
	s := NewMemoryCatalogStore()
	if _, err := s.GetByID(context.Background(), 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryCatalogStore_GetManyByIDs(t *testing.T) {
	s := NewMemoryCatalogStore()
	ctx := context.Background()
	_, _ = s.InsertBatch(ctx, []Game{
		{AppID: 100, Name: "A", Description: "first", Price: 999, Tags: []string{"Indie"}},
		{AppID: 200, Name: "B"},
	})

	got, err := s.GetManyByIDs(ctx, []int64{100, 999})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	a := got[100]
	if a.Description != "first" || a.Price != 999 || len(a.Tags) != 1 || a.Tags[0] != "Indie" {
		t.Fatalf("unexpected attrs: %+v", a)
	}
	if _, ok := got[999]; ok {
		t.Fatal("expected missing id to be absent")
	}
}

func TestMemoryCatalogStore_SampleRandom(t *testing.T) {
	s := NewMemoryCatalogStore()
	ctx := context.Background()
	for i := int64(1); i <= 5; i++ {
		_, _ = s.InsertBatch(ctx, []Game{{AppID: i, Name: "G"}})
	}

	got, err := s.SampleRandom(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 games, got %d", len(got))
	}
	seen := map[int64]bool{}
	for _, g := range got {
		if seen[g.AppID] {
			t.Fatalf("duplicate app id %d in sample", g.AppID)
		}
		seen[g.AppID] = true
	}

	all, _ := s.SampleRandom(ctx, 50)
	if len(all) != 5 {
		t.Fatalf("expected sample capped at 5, got %d", len(all))
	}
}

func TestMemoryCatalogStore_Reset(t *testing.T) {
	s := NewMemoryCatalogStore()
	ctx := context.Background()
	_, _ = s.InsertBatch(ctx, []Game{{AppID: 1, Name: "A"}})
	if err := s.ResetSchema(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty store after reset, got %d", s.Len())
	}
}
