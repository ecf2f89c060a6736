package session

import (
	"sync"
	"time"

	"github.com/puzzleforge/puzzleparty/game/puzzle"
)

// Session is the aggregate root for one puzzle: pieces, groups, the
// connected players, and activity timestamps. It is the unit of
// persistence (players excluded) and of broadcast scope.
//
// All mutating methods take the session lock, so websocket event
// handling and REST-triggered mutations (reimage, snapshots) can share a
// session safely.
type Session struct {
	mu sync.Mutex

	ID           string
	Name         string
	ImageURL     string
	GridSize     puzzle.GridSize
	TotalPieces  int
	Pieces       []*puzzle.Piece
	Groups       []puzzle.Group
	Players      []*Player
	CreatedAt    time.Time
	LastActivity time.Time
}

// Snapshot is the durable, player-excluding serialization of a Session.
type Snapshot struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	ImageURL     string          `json:"imageUrl"`
	GridSize     puzzle.GridSize `json:"gridSize"`
	TotalPieces  int             `json:"totalPieces"`
	Pieces       []puzzle.Piece  `json:"pieces"`
	Groups       []puzzle.Group  `json:"groups,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	LastActivity time.Time       `json:"lastActivity"`
}

// State is the full client-facing view of a session, sent on join and
// served by the REST API.
type State struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	ImageURL    string          `json:"imageUrl"`
	GridSize    puzzle.GridSize `json:"gridSize"`
	TotalPieces int             `json:"totalPieces"`
	Pieces      []puzzle.Piece  `json:"pieces"`
	Players     []Player        `json:"players"`
	Progress    int             `json:"progress"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// ReleaseParams carries one authoritative piece:release intent, either a
// single piece or a batched group release, optionally declaring a new
// group.
type ReleaseParams struct {
	ActorID  string
	PieceID  int
	X, Y     float64
	Placed   bool
	Deltas   []puzzle.PieceDelta
	NewGroup *puzzle.Group
}

// ReleaseResult reports the progress after a release and whether this
// release crossed the completion threshold.
type ReleaseResult struct {
	Progress  int
	Completed bool
	Applied   []puzzle.PieceDelta
}

func (s *Session) piece(id int) *puzzle.Piece {
	for _, p := range s.Pieces {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// GrabPiece attempts to lock a piece for the actor. Unknown piece ids
// fail silently; they are stale client state, not errors.
func (s *Session) GrabPiece(pieceID int, actorID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.piece(pieceID)
	if p == nil {
		return false
	}
	return p.Grab(actorID)
}

// MovePiece repositions a single piece if the actor holds its lock.
func (s *Session) MovePiece(pieceID int, actorID string, x, y float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.piece(pieceID)
	if p == nil {
		return false
	}
	return p.MoveTo(actorID, x, y)
}

// MoveGroup applies a batch of position deltas for a dragged cluster.
// A delta for a piece locked by a different actor is skipped; the rest
// of the batch still lands. The applied deltas are returned so the
// broadcast echoes only what actually changed.
func (s *Session) MoveGroup(actorID string, deltas []puzzle.PieceDelta) []puzzle.PieceDelta {
	s.mu.Lock()
	defer s.mu.Unlock()

	applied := make([]puzzle.PieceDelta, 0, len(deltas))
	for _, d := range deltas {
		p := s.piece(d.ID)
		if p == nil {
			continue
		}
		if p.LockedBy != "" && p.LockedBy != actorID {
			continue
		}
		p.CurrentX = d.X
		p.CurrentY = d.Y
		applied = append(applied, d)
	}
	return applied
}

// Release lands a drag gesture: final positions, placement, lock clear,
// optional group supersession, and the lastActivity bump. All deltas
// land before the caller broadcasts anything.
func (s *Session) Release(params ReleaseParams) ReleaseResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := puzzle.Progress(s.Pieces)

	var applied []puzzle.PieceDelta
	if len(params.Deltas) > 0 {
		applied = make([]puzzle.PieceDelta, 0, len(params.Deltas))
		for _, d := range params.Deltas {
			p := s.piece(d.ID)
			if p == nil {
				continue
			}
			if p.LockedBy != "" && p.LockedBy != params.ActorID {
				continue
			}
			p.Release(d.X, d.Y, d.Placed)
			applied = append(applied, d)
		}
	} else if p := s.piece(params.PieceID); p != nil {
		p.Release(params.X, params.Y, params.Placed)
	}

	if params.NewGroup != nil {
		s.Groups = puzzle.MergeOrCreate(s.Groups, *params.NewGroup)
	}

	s.LastActivity = time.Now()
	after := puzzle.Progress(s.Pieces)

	return ReleaseResult{
		Progress:  after,
		Completed: before < 100 && after == 100,
		Applied:   applied,
	}
}

// ReleaseLocksHeldBy clears every lock held by the actor and returns the
// affected pieces at their current positions. Positions and placement are
// untouched; this is the disconnect reclaim path, not a release gesture.
func (s *Session) ReleaseLocksHeldBy(actorID string) []puzzle.PieceDelta {
	s.mu.Lock()
	defer s.mu.Unlock()

	var released []puzzle.PieceDelta
	for _, p := range s.Pieces {
		if p.LockedBy == actorID {
			p.LockedBy = ""
			released = append(released, puzzle.PieceDelta{
				ID:     p.ID,
				X:      p.CurrentX,
				Y:      p.CurrentY,
				Placed: p.IsPlaced,
			})
		}
	}
	return released
}

// Progress returns the current completion percentage.
func (s *Session) Progress() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return puzzle.Progress(s.Pieces)
}

// ResetPieces swaps in a new image and a fresh piece set, discarding all
// placement, lock, and group state. Used by reimage.
func (s *Session) ResetPieces(imageURL string, pieces []*puzzle.Piece) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ImageURL = imageURL
	s.Pieces = pieces
	s.Groups = nil
	s.LastActivity = time.Now()
}

// Snapshot returns the durable form of the session. Players are never
// included: presence is transient and a reloaded session always starts
// with zero connected players.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	pieces := make([]puzzle.Piece, len(s.Pieces))
	for i, p := range s.Pieces {
		pieces[i] = *p
	}
	groups := make([]puzzle.Group, len(s.Groups))
	copy(groups, s.Groups)

	return Snapshot{
		ID:           s.ID,
		Name:         s.Name,
		ImageURL:     s.ImageURL,
		GridSize:     s.GridSize,
		TotalPieces:  s.TotalPieces,
		Pieces:       pieces,
		Groups:       groups,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
	}
}

// State returns the full client-facing view including roster and
// derived progress.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	pieces := make([]puzzle.Piece, len(s.Pieces))
	for i, p := range s.Pieces {
		pieces[i] = *p
	}
	players := make([]Player, len(s.Players))
	for i, p := range s.Players {
		players[i] = *p
	}

	return State{
		ID:          s.ID,
		Name:        s.Name,
		ImageURL:    s.ImageURL,
		GridSize:    s.GridSize,
		TotalPieces: s.TotalPieces,
		Pieces:      pieces,
		Players:     players,
		Progress:    puzzle.Progress(s.Pieces),
		CreatedAt:   s.CreatedAt,
	}
}

// fromSnapshot rebuilds a live session from its durable form with an
// empty player list.
func fromSnapshot(snap *Snapshot) *Session {
	pieces := make([]*puzzle.Piece, len(snap.Pieces))
	for i := range snap.Pieces {
		p := snap.Pieces[i]
		pieces[i] = &p
	}

	return &Session{
		ID:           snap.ID,
		Name:         snap.Name,
		ImageURL:     snap.ImageURL,
		GridSize:     snap.GridSize,
		TotalPieces:  snap.TotalPieces,
		Pieces:       pieces,
		Groups:       snap.Groups,
		Players:      []*Player{},
		CreatedAt:    snap.CreatedAt,
		LastActivity: snap.LastActivity,
	}
}
