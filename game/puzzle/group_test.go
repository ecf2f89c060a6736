package puzzle

import "testing"

func TestMergeOrCreate(t *testing.T) {
	t.Run("creates first group", func(t *testing.T) {
		groups := MergeOrCreate(nil, Group{GroupID: "g1", PieceIDs: []int{1, 2}})
		if len(groups) != 1 {
			t.Fatalf("Expected 1 group, got %d", len(groups))
		}
		if groups[0].GroupID != "g1" {
			t.Errorf("Expected group id 'g1', got '%s'", groups[0].GroupID)
		}
	})

	t.Run("appends disjoint group", func(t *testing.T) {
		groups := []Group{{GroupID: "g1", PieceIDs: []int{1, 2}}}
		groups = MergeOrCreate(groups, Group{GroupID: "g2", PieceIDs: []int{3, 4}})
		if len(groups) != 2 {
			t.Fatalf("Expected 2 groups, got %d", len(groups))
		}
	})

	t.Run("shared member supersedes membership", func(t *testing.T) {
		groups := []Group{{GroupID: "g1", PieceIDs: []int{1, 2}}}
		groups = MergeOrCreate(groups, Group{GroupID: "g2", PieceIDs: []int{2, 3, 4}})

		if len(groups) != 1 {
			t.Fatalf("Expected supersession to keep 1 group, got %d", len(groups))
		}
		got := groups[0].PieceIDs
		if len(got) != 3 || got[0] != 2 || got[1] != 3 || got[2] != 4 {
			t.Errorf("Expected membership replaced with [2 3 4], got %v", got)
		}
	})

	t.Run("no piece referenced by two groups after merge", func(t *testing.T) {
		groups := []Group{
			{GroupID: "g1", PieceIDs: []int{1, 2}},
			{GroupID: "g2", PieceIDs: []int{5, 6}},
		}
		groups = MergeOrCreate(groups, Group{GroupID: "g3", PieceIDs: []int{2, 9}})

		counts := make(map[int]int)
		for _, g := range groups {
			for _, id := range g.PieceIDs {
				counts[id]++
			}
		}
		for id, n := range counts {
			if n > 1 {
				t.Errorf("Piece %d referenced by %d groups", id, n)
			}
		}
	})
}

func TestGroup_Contains(t *testing.T) {
	g := Group{GroupID: "g1", PieceIDs: []int{1, 5, 9}}
	if !g.Contains(5) {
		t.Error("Expected group to contain piece 5")
	}
	if g.Contains(2) {
		t.Error("Expected group not to contain piece 2")
	}
}
