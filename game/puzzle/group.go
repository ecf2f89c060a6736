package puzzle

// Group is a set of piece ids that move together as a rigid unit.
// The id is chosen by the initiating client and is opaque to the server.
type Group struct {
	GroupID  string `json:"groupId"`
	PieceIDs []int  `json:"pieceIds"`
}

// Contains reports whether the group includes the piece id.
func (g Group) Contains(pieceID int) bool {
	for _, id := range g.PieceIDs {
		if id == pieceID {
			return true
		}
	}
	return false
}

// PieceDelta is one per-piece update inside a batched group move or
// group release.
type PieceDelta struct {
	ID     int     `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Placed bool    `json:"placed,omitempty"`
}

// MergeOrCreate applies a last-writer-wins merge: if any existing group
// shares at least one piece with the new group, that group's membership
// is replaced wholesale (supersession, not union); otherwise the new
// group is appended. The updated slice is returned.
func MergeOrCreate(groups []Group, newGroup Group) []Group {
	for i, g := range groups {
		if sharesMember(g.PieceIDs, newGroup.PieceIDs) {
			groups[i].PieceIDs = newGroup.PieceIDs
			return groups
		}
	}
	return append(groups, newGroup)
}

func sharesMember(a, b []int) bool {
	seen := make(map[int]struct{}, len(a))
	for _, id := range a {
		seen[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := seen[id]; ok {
			return true
		}
	}
	return false
}
