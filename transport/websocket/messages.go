package websocket

import (
	"encoding/json"

	"github.com/puzzleforge/puzzleparty/game/puzzle"
	"github.com/puzzleforge/puzzleparty/game/session"
)

// Wire event names. Inbound intents come from clients; outbound events
// are server broadcasts.
const (
	EventJoin         = "game:join"
	EventPieceGrab    = "piece:grab"
	EventPieceMove    = "piece:move"
	EventPieceRelease = "piece:release"
	EventCursorMove   = "cursor:move"

	EventState         = "game:state"
	EventError         = "error"
	EventPlayerJoined  = "player:joined"
	EventPlayersUpdate = "players:update"
	EventPlayerLeft    = "player:left"
	EventPieceGrabbed  = "piece:grabbed"
	EventPieceMoved    = "piece:moved"
	EventPieceReleased = "piece:released"
	EventCursorUpdate  = "cursor:update"
	EventGameComplete  = "game:complete"
	EventGameReset     = "game:reset"
)

// Envelope is the wire frame for every message in both directions:
// {"event": "...", "data": {...}}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encode(event string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: payload})
}

// Inbound payloads.

// JoinPayload requests membership in a session.
type JoinPayload struct {
	GameID     string `json:"gameId"`
	PlayerName string `json:"playerName,omitempty"`
}

// GrabPayload requests exclusive move rights over a piece.
type GrabPayload struct {
	PieceID int    `json:"pieceId"`
	GroupID string `json:"groupId,omitempty"`
}

// MovePayload repositions a piece mid-drag, or a whole cluster when
// GroupPieces is set.
type MovePayload struct {
	PieceID     int                 `json:"pieceId"`
	X           float64             `json:"x"`
	Y           float64             `json:"y"`
	GroupID     string              `json:"groupId,omitempty"`
	GroupPieces []puzzle.PieceDelta `json:"groupPieces,omitempty"`
}

// ReleasePayload ends a drag gesture, optionally declaring a new group.
type ReleasePayload struct {
	PieceID     int                 `json:"pieceId"`
	X           float64             `json:"x"`
	Y           float64             `json:"y"`
	Placed      bool                `json:"placed"`
	GroupID     string              `json:"groupId,omitempty"`
	GroupPieces []puzzle.PieceDelta `json:"groupPieces,omitempty"`
	NewGroup    *puzzle.Group       `json:"newGroup,omitempty"`
}

// CursorPayload is relayed verbatim; no validation.
type CursorPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Outbound payloads.

// StatePayload is the full session snapshot sent to the joiner only,
// annotated with the recipient's own connection id.
type StatePayload struct {
	session.State
	YourID string `json:"yourId"`
}

// ErrorPayload carries the only error surfaced to clients.
type ErrorPayload struct {
	Message string `json:"message"`
}

// GrabbedPayload announces a successful grab to the rest of the session.
type GrabbedPayload struct {
	PieceID  int    `json:"pieceId"`
	PlayerID string `json:"playerId"`
	GroupID  string `json:"groupId,omitempty"`
}

// MovedPayload echoes a move to the rest of the session. For group
// moves, GroupPieces holds only the deltas that actually applied.
type MovedPayload struct {
	PieceID     int                 `json:"pieceId"`
	X           float64             `json:"x"`
	Y           float64             `json:"y"`
	PlayerID    string              `json:"playerId"`
	GroupID     string              `json:"groupId,omitempty"`
	GroupPieces []puzzle.PieceDelta `json:"groupPieces,omitempty"`
}

// ReleasedPayload echoes an authoritative release to the whole session,
// including the recomputed progress.
type ReleasedPayload struct {
	PieceID     int                 `json:"pieceId"`
	X           float64             `json:"x"`
	Y           float64             `json:"y"`
	Placed      bool                `json:"placed"`
	PlayerID    string              `json:"playerId"`
	Progress    int                 `json:"progress"`
	GroupID     string              `json:"groupId,omitempty"`
	GroupPieces []puzzle.PieceDelta `json:"groupPieces,omitempty"`
	NewGroup    *puzzle.Group       `json:"newGroup,omitempty"`
}

// CursorUpdatePayload relays another player's cursor position.
type CursorUpdatePayload struct {
	PlayerID string  `json:"playerId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// PlayerLeftPayload announces a departure.
type PlayerLeftPayload struct {
	PlayerID string `json:"playerId"`
}

// CompletePayload fires exactly when progress reaches 100.
type CompletePayload struct {
	CompletedBy []string `json:"completedBy"`
}

// ResetPayload is broadcast when a session gets a new image.
type ResetPayload struct {
	ImageURL string         `json:"imageUrl"`
	Pieces   []puzzle.Piece `json:"pieces"`
}
