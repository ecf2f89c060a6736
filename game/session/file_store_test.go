package session

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/puzzleforge/puzzleparty/game/puzzle"
)

func testSnapshot(id string, createdAt time.Time, placed int) Snapshot {
	grid := puzzle.GridSize{Rows: 2, Cols: 2}
	generated := puzzle.Generate(grid, rand.New(rand.NewSource(3)))
	pieces := make([]puzzle.Piece, len(generated))
	for i, p := range generated {
		pieces[i] = *p
		if i < placed {
			pieces[i].IsPlaced = true
		}
	}
	return Snapshot{
		ID:           id,
		Name:         "Snap " + id,
		ImageURL:     "/uploads/" + id + ".jpg",
		GridSize:     grid,
		TotalPieces:  grid.Total(),
		Pieces:       pieces,
		CreatedAt:    createdAt,
		LastActivity: createdAt,
	}
}

func TestFileStore_SaveLoad(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	snap := testSnapshot("AAAA0001", time.Now(), 1)
	if err := store.Save(snap); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	t.Run("load round-trips the snapshot", func(t *testing.T) {
		loaded, err := store.Load("AAAA0001")
		if err != nil {
			t.Fatalf("Failed to load: %v", err)
		}
		if loaded.ID != snap.ID || loaded.TotalPieces != snap.TotalPieces {
			t.Errorf("Loaded snapshot differs: %+v", loaded)
		}
		if len(loaded.Pieces) != 4 {
			t.Errorf("Expected 4 pieces, got %d", len(loaded.Pieces))
		}
	})

	t.Run("load is case-insensitive", func(t *testing.T) {
		if _, err := store.Load("aaaa0001"); err != nil {
			t.Errorf("Expected lowercase id to resolve: %v", err)
		}
	})

	t.Run("missing snapshot", func(t *testing.T) {
		_, err := store.Load("ZZZZ0000")
		if !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("exists", func(t *testing.T) {
		if !store.Exists("AAAA0001") {
			t.Error("Expected stored session to exist")
		}
		if store.Exists("ZZZZ0000") {
			t.Error("Expected missing session to not exist")
		}
	})
}

func TestFileStore_ListRecent(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	base := time.Now()
	store.Save(testSnapshot("OLD00001", base.Add(-2*time.Hour), 0))
	store.Save(testSnapshot("MID00001", base.Add(-1*time.Hour), 2))
	store.Save(testSnapshot("NEW00001", base, 4))

	summaries, err := store.ListRecent(2)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}

	if len(summaries) != 2 {
		t.Fatalf("Expected limit of 2 summaries, got %d", len(summaries))
	}
	if summaries[0].ID != "NEW00001" || summaries[1].ID != "MID00001" {
		t.Errorf("Expected newest-first ordering, got %s then %s", summaries[0].ID, summaries[1].ID)
	}
	if summaries[0].Progress != 100 {
		t.Errorf("Expected fully placed snapshot at 100%%, got %d", summaries[0].Progress)
	}
	if summaries[1].Progress != 50 {
		t.Errorf("Expected half placed snapshot at 50%%, got %d", summaries[1].Progress)
	}
}

func TestFileStore_Delete(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	store.Save(testSnapshot("DEL00001", time.Now(), 0))
	if err := store.Delete("del00001"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if store.Exists("DEL00001") {
		t.Error("Expected snapshot gone after delete")
	}
	if err := store.Delete("DEL00001"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound on double delete, got %v", err)
	}
}
