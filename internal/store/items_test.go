package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/HarshS99/lostandfound/internal/db"
	"github.com/HarshS99/lostandfound/internal/model"
)

func TestInsertAndFetchOrder(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	const n = 5
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		id, err := InsertItem(ctx, database, &model.Item{
			Type:             model.TypeLost,
			Title:            fmt.Sprintf("Item %d", i),
			Description:      "desc",
			OwnerContact:     "+15550000000",
			ImageFingerprint: "8f373714acfcf4d0",
			Embedding:        []float64{float64(i), 0, 1},
		}, nil, "")
		if err != nil {
			t.Fatalf("InsertItem %d: %v", i, err)
		}
		ids = append(ids, id)
	}

	items, err := FetchAllItems(ctx, database)
	if err != nil {
		t.Fatalf("FetchAllItems: %v", err)
	}
	if len(items) != n {
		t.Fatalf("expected %d items, got %d", n, len(items))
	}

	for i, item := range items {
		if item.ID != ids[i] {
			t.Errorf("position %d: expected id %d, got %d (insertion order violated)", i, ids[i], item.ID)
		}
		if item.Title != fmt.Sprintf("Item %d", i) {
			t.Errorf("position %d: unexpected title %q", i, item.Title)
		}
		if item.CreatedAt.IsZero() {
			t.Errorf("position %d: missing created_at", i)
		}
		if len(item.Embedding) != 3 || item.Embedding[0] != float64(i) {
			t.Errorf("position %d: embedding did not round-trip: %v", i, item.Embedding)
		}
	}
}

func TestInsertAssignsUniqueIDs(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	seen := map[int64]bool{}
	for i := 0; i < 10; i++ {
		id, err := InsertItem(ctx, database, &model.Item{Type: model.TypeFound, Title: "x"}, nil, "")
		if err != nil {
			t.Fatalf("InsertItem: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
}

func TestGetItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	id, err := InsertItem(ctx, database, &model.Item{
		Type:             model.TypeLost,
		Title:            "Wallet",
		OwnerContact:     "+15551234567",
		ImageFingerprint: "abcdef0123456789",
	}, nil, "")
	if err != nil {
		t.Fatalf("InsertItem: %v", err)
	}

	item, err := GetItem(ctx, database, id)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if item == nil {
		t.Fatal("expected item, got nil")
	}
	if item.Title != "Wallet" || item.OwnerContact != "+15551234567" {
		t.Errorf("unexpected item: %+v", item)
	}

	missing, err := GetItem(ctx, database, id+100)
	if err != nil {
		t.Fatalf("GetItem missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing item, got %+v", missing)
	}
}

func TestEmptyEmbeddingRoundTrip(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	id, err := InsertItem(ctx, database, &model.Item{Type: model.TypeLost, Title: "No Embedding"}, nil, "")
	if err != nil {
		t.Fatalf("InsertItem: %v", err)
	}

	item, err := GetItem(ctx, database, id)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if len(item.Embedding) != 0 {
		t.Errorf("expected empty embedding, got %v", item.Embedding)
	}
}

func TestCorruptEmbeddingIsEmpty(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	id, err := InsertItem(ctx, database, &model.Item{Type: model.TypeLost, Title: "Corrupt"}, nil, "")
	if err != nil {
		t.Fatalf("InsertItem: %v", err)
	}
	if _, err := database.ExecContext(ctx, `UPDATE items SET embedding_json = 'not json' WHERE id = ?`, id); err != nil {
		t.Fatalf("corrupting embedding: %v", err)
	}

	items, err := FetchAllItems(ctx, database)
	if err != nil {
		t.Fatalf("FetchAllItems should tolerate a corrupt embedding: %v", err)
	}
	if len(items) != 1 || len(items[0].Embedding) != 0 {
		t.Errorf("expected 1 item with empty embedding, got %+v", items)
	}
}

func TestItemImage(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	imageData := []byte("fake jpeg data")
	id, err := InsertItem(ctx, database, &model.Item{Type: model.TypeFound, Title: "Photo Item"}, imageData, "image/jpeg")
	if err != nil {
		t.Fatalf("InsertItem: %v", err)
	}

	data, mime, err := GetItemImage(ctx, database, id)
	if err != nil {
		t.Fatalf("GetItemImage: %v", err)
	}
	if string(data) != "fake jpeg data" {
		t.Errorf("expected image data, got %q", string(data))
	}
	if mime != "image/jpeg" {
		t.Errorf("expected mime 'image/jpeg', got %q", mime)
	}
}
