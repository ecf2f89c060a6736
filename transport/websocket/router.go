package websocket

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/puzzleforge/puzzleparty/game/session"
)

// route dispatches one inbound frame. Frames that fail to parse or
// arrive before a join are dropped; a stale client is not worth a
// connection teardown.
func (h *Hub) route(c *Client, raw []byte) {
	// A frame can still sit in the inbound queue when its connection
	// unregisters. Routing it would send on a closed channel, or worse,
	// re-lock pieces under a departed actor with no reclaim path left.
	if !h.clients[c] {
		return
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Debug().Err(err).Str("client", c.id).Msg("malformed frame")
		return
	}

	if env.Event == EventJoin {
		h.handleJoin(c, env.Data)
		return
	}

	// Everything else requires an established session.
	if c.sessionID == "" {
		return
	}

	switch env.Event {
	case EventPieceGrab:
		h.handleGrab(c, env.Data)
	case EventPieceMove:
		h.handleMove(c, env.Data)
	case EventPieceRelease:
		h.handleRelease(c, env.Data)
	case EventCursorMove:
		h.handleCursor(c, env.Data)
	default:
		log.Debug().Str("event", env.Event).Msg("unknown event")
	}
}

func (h *Hub) handleJoin(c *Client, data json.RawMessage) {
	var payload JoinPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendTo(c, EventError, ErrorPayload{Message: "Invalid join request"})
		return
	}

	sess, err := h.registry.Get(payload.GameID)
	if err != nil {
		h.sendTo(c, EventError, ErrorPayload{Message: "Game not found"})
		return
	}

	// One session per connection. A rejoin of the same session just
	// refreshes state; switching sessions needs a reconnect.
	if c.sessionID != "" && c.sessionID != sess.ID {
		h.sendTo(c, EventError, ErrorPayload{Message: "Already in a game"})
		return
	}

	player, isNew := sess.Join(c.id, payload.PlayerName)
	h.attach(c, sess.ID)

	h.sendTo(c, EventState, StatePayload{State: sess.State(), YourID: c.id})

	if isNew {
		h.broadcastToOthers(sess.ID, c, EventPlayerJoined, player)
	}
	h.broadcastToSession(sess.ID, EventPlayersUpdate, sess.Roster())

	log.Info().
		Str("game", sess.ID).
		Str("player", player.Name).
		Msg("player joined")
}

func (h *Hub) handleGrab(c *Client, data json.RawMessage) {
	var payload GrabPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}

	sess, err := h.registry.Get(c.sessionID)
	if err != nil {
		return
	}

	if !sess.GrabPiece(payload.PieceID, c.id) {
		return
	}

	h.broadcastToOthers(c.sessionID, c, EventPieceGrabbed, GrabbedPayload{
		PieceID:  payload.PieceID,
		PlayerID: c.id,
		GroupID:  payload.GroupID,
	})
}

func (h *Hub) handleMove(c *Client, data json.RawMessage) {
	var payload MovePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}

	sess, err := h.registry.Get(c.sessionID)
	if err != nil {
		return
	}

	out := MovedPayload{
		PieceID:  payload.PieceID,
		X:        payload.X,
		Y:        payload.Y,
		PlayerID: c.id,
		GroupID:  payload.GroupID,
	}

	if len(payload.GroupPieces) > 0 {
		applied := sess.MoveGroup(c.id, payload.GroupPieces)
		if len(applied) == 0 {
			return
		}
		out.GroupPieces = applied
	} else if !sess.MovePiece(payload.PieceID, c.id, payload.X, payload.Y) {
		return
	}

	h.broadcastToOthers(c.sessionID, c, EventPieceMoved, out)
}

func (h *Hub) handleRelease(c *Client, data json.RawMessage) {
	var payload ReleasePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}

	sess, err := h.registry.Get(c.sessionID)
	if err != nil {
		return
	}

	result := sess.Release(session.ReleaseParams{
		ActorID:  c.id,
		PieceID:  payload.PieceID,
		X:        payload.X,
		Y:        payload.Y,
		Placed:   payload.Placed,
		Deltas:   payload.GroupPieces,
		NewGroup: payload.NewGroup,
	})

	// The release echo goes to everyone, sender included, because it
	// carries the authoritative progress value.
	h.broadcastToSession(c.sessionID, EventPieceReleased, ReleasedPayload{
		PieceID:     payload.PieceID,
		X:           payload.X,
		Y:           payload.Y,
		Placed:      payload.Placed,
		PlayerID:    c.id,
		Progress:    result.Progress,
		GroupID:     payload.GroupID,
		GroupPieces: result.Applied,
		NewGroup:    payload.NewGroup,
	})

	if result.Completed {
		log.Info().Str("game", c.sessionID).Msg("puzzle completed")
		h.broadcastToSession(c.sessionID, EventGameComplete, CompletePayload{
			CompletedBy: sess.PlayerNames(),
		})
		h.persistAsync(c.sessionID)
		return
	}

	if h.sampleSnapshot() {
		h.persistAsync(c.sessionID)
	}
}

func (h *Hub) handleCursor(c *Client, data json.RawMessage) {
	var payload CursorPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}

	h.broadcastToOthers(c.sessionID, c, EventCursorUpdate, CursorUpdatePayload{
		PlayerID: c.id,
		X:        payload.X,
		Y:        payload.Y,
	})
}

// handleDisconnect reclaims a departing client's locks and roster slot
// and tells the rest of the session. Runs before removeClient so the
// client's bucket membership no longer matters for the broadcasts.
func (h *Hub) handleDisconnect(c *Client) {
	if c.sessionID == "" {
		return
	}

	sess, err := h.registry.Get(c.sessionID)
	if err != nil {
		return
	}

	reclaimed := sess.ReleaseLocksHeldBy(c.id)
	if len(reclaimed) > 0 {
		progress := sess.Progress()
		for _, d := range reclaimed {
			h.broadcastToOthers(c.sessionID, c, EventPieceReleased, ReleasedPayload{
				PieceID:  d.ID,
				X:        d.X,
				Y:        d.Y,
				Placed:   d.Placed,
				PlayerID: c.id,
				Progress: progress,
			})
		}
	}

	if sess.Leave(c.id) {
		h.broadcastToOthers(c.sessionID, c, EventPlayerLeft, PlayerLeftPayload{PlayerID: c.id})
		h.broadcastToOthers(c.sessionID, c, EventPlayersUpdate, sess.Roster())
		log.Info().Str("game", c.sessionID).Str("player", c.id).Msg("player left")
	}

	h.persistAsync(c.sessionID)
}
