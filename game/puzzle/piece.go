package puzzle

import (
	"math"
	"math/rand"
)

// Staging region for freshly generated pieces, off the main board.
const (
	stagingMinX  = 900
	stagingSpanX = 800
	stagingMinY  = 100
	stagingSpanY = 500
)

// GridSize describes the puzzle grid shape.
type GridSize struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// Total returns the number of cells in the grid.
func (g GridSize) Total() int {
	return g.Rows * g.Cols
}

// Piece is one movable jigsaw unit.
//
// CorrectRow/CorrectCol are immutable after creation; CurrentX/CurrentY
// track the canvas position and change on grab/move/release.
type Piece struct {
	ID         int     `json:"id"`
	CorrectRow int     `json:"correctRow"`
	CorrectCol int     `json:"correctCol"`
	CurrentX   float64 `json:"currentX"`
	CurrentY   float64 `json:"currentY"`
	IsPlaced   bool    `json:"isPlaced"`
	LockedBy   string  `json:"lockedBy,omitempty"`
}

// Grab attempts to take exclusive move rights for the actor.
// It succeeds only if the piece is not placed and not locked by a
// different actor. Re-grab by the current holder is idempotent.
func (p *Piece) Grab(actorID string) bool {
	if p.IsPlaced {
		return false
	}
	if p.LockedBy != "" && p.LockedBy != actorID {
		return false
	}
	p.LockedBy = actorID
	return true
}

// MoveTo repositions the piece if the actor currently holds its lock.
// Non-holders are a no-op so a late or crafted move cannot reposition a
// piece mid-drag.
func (p *Piece) MoveTo(actorID string, x, y float64) bool {
	if p.LockedBy != actorID {
		return false
	}
	p.CurrentX = x
	p.CurrentY = y
	return true
}

// Release sets the final position and placement and clears the lock.
// Release is authoritative regardless of prior lock state: the releasing
// client is trusted as the end of its own drag gesture.
func (p *Piece) Release(x, y float64, placed bool) {
	p.CurrentX = x
	p.CurrentY = y
	p.IsPlaced = placed
	p.LockedBy = ""
}

// GridForCount computes a grid shape for a requested piece count under a
// fixed target aspect ratio. The count is clamped to [minPieces,
// maxPieces] before rounding, so the resulting total may differ slightly
// from the request (e.g. 40 at 4:3 yields 7x6 = 42).
func GridForCount(count, minPieces, maxPieces int, aspect float64) GridSize {
	if count < minPieces {
		count = minPieces
	}
	if count > maxPieces {
		count = maxPieces
	}
	cols := int(math.Round(math.Sqrt(float64(count) * aspect)))
	if cols < 1 {
		cols = 1
	}
	rows := int(math.Round(float64(count) / float64(cols)))
	if rows < 1 {
		rows = 1
	}
	return GridSize{Rows: rows, Cols: cols}
}

// Generate creates the full piece set for a grid. Every piece starts
// unplaced and unlocked at a uniform-random spot in the staging region,
// and the returned slice is shuffled so presentation order carries no
// hint about the solution.
func Generate(grid GridSize, rng *rand.Rand) []*Piece {
	pieces := make([]*Piece, 0, grid.Total())
	for row := 0; row < grid.Rows; row++ {
		for col := 0; col < grid.Cols; col++ {
			pieces = append(pieces, &Piece{
				ID:         row*grid.Cols + col,
				CorrectRow: row,
				CorrectCol: col,
				CurrentX:   rng.Float64()*stagingSpanX + stagingMinX,
				CurrentY:   rng.Float64()*stagingSpanY + stagingMinY,
			})
		}
	}
	rng.Shuffle(len(pieces), func(i, j int) {
		pieces[i], pieces[j] = pieces[j], pieces[i]
	})
	return pieces
}

// Progress returns the percentage of placed pieces, rounded to the
// nearest integer. It is recomputed on demand and never stored.
func Progress(pieces []*Piece) int {
	if len(pieces) == 0 {
		return 0
	}
	placed := 0
	for _, p := range pieces {
		if p.IsPlaced {
			placed++
		}
	}
	return int(math.Round(float64(placed) / float64(len(pieces)) * 100))
}
