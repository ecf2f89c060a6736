package websocket

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/puzzleforge/puzzleparty/game/session"
)

func newTestHub(t *testing.T) (*Hub, *session.Session) {
	t.Helper()

	store, err := session.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	mgr := session.NewManager(store, session.DefaultLimits(), rand.New(rand.NewSource(42)))
	sess, err := mgr.Create(session.CreateParams{
		ID:         "ROUTER01",
		Name:       "Router Test",
		ImageURL:   "/uploads/router.jpg",
		PieceCount: 25,
	})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	return NewHub(mgr, 0, rand.New(rand.NewSource(42))), sess
}

// newTestClient builds a connected client without a network socket and
// registers it directly, the way the Run loop would.
func newTestClient(h *Hub, id string) *Client {
	c := &Client{id: id, hub: h, send: make(chan []byte, 32)}
	h.clients[c] = true
	return c
}

func frame(t *testing.T, event string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}
	out, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		t.Fatalf("Failed to marshal envelope: %v", err)
	}
	return out
}

// drain decodes everything queued on the client's send channel.
func drain(t *testing.T, c *Client) []Envelope {
	t.Helper()
	var envs []Envelope
	for {
		select {
		case raw := <-c.send:
			var env Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				t.Fatalf("Failed to decode envelope: %v", err)
			}
			envs = append(envs, env)
		default:
			return envs
		}
	}
}

func findEvent(envs []Envelope, event string) (json.RawMessage, bool) {
	for _, env := range envs {
		if env.Event == event {
			return env.Data, true
		}
	}
	return nil, false
}

func join(t *testing.T, h *Hub, c *Client, gameID, name string) {
	t.Helper()
	h.route(c, frame(t, EventJoin, JoinPayload{GameID: gameID, PlayerName: name}))
	if c.sessionID == "" {
		t.Fatalf("Expected client %s to be joined", c.id)
	}
	drain(t, c)
}

func TestRouter_JoinUnknownGame(t *testing.T) {
	h, _ := newTestHub(t)
	c := newTestClient(h, "conn-1")

	h.route(c, frame(t, EventJoin, JoinPayload{GameID: "NOPE0000"}))

	envs := drain(t, c)
	data, ok := findEvent(envs, EventError)
	if !ok {
		t.Fatal("Expected an error event")
	}
	var payload ErrorPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("Failed to decode error: %v", err)
	}
	if payload.Message != "Game not found" {
		t.Errorf("Expected 'Game not found', got '%s'", payload.Message)
	}
	if c.sessionID != "" {
		t.Error("Expected client to remain unjoined")
	}
}

func TestRouter_Join(t *testing.T) {
	h, sess := newTestHub(t)
	first := newTestClient(h, "conn-1")
	join(t, h, first, "router01", "Alice")

	second := newTestClient(h, "conn-2")
	h.route(second, frame(t, EventJoin, JoinPayload{GameID: sess.ID}))

	t.Run("joiner receives state with own id", func(t *testing.T) {
		envs := drain(t, second)
		data, ok := findEvent(envs, EventState)
		if !ok {
			t.Fatal("Expected a game:state event")
		}
		var payload StatePayload
		if err := json.Unmarshal(data, &payload); err != nil {
			t.Fatalf("Failed to decode state: %v", err)
		}
		if payload.YourID != "conn-2" {
			t.Errorf("Expected yourId 'conn-2', got '%s'", payload.YourID)
		}
		if payload.ID != sess.ID || len(payload.Pieces) != sess.TotalPieces {
			t.Errorf("Expected full state for %s, got %+v", sess.ID, payload.State)
		}
		if len(payload.Players) != 2 {
			t.Errorf("Expected 2 players in state, got %d", len(payload.Players))
		}
		if _, ok := findEvent(envs, EventPlayerJoined); ok {
			t.Error("Expected no player:joined echo to the joiner itself")
		}
	})

	t.Run("peers receive join and roster", func(t *testing.T) {
		envs := drain(t, first)
		data, ok := findEvent(envs, EventPlayerJoined)
		if !ok {
			t.Fatal("Expected a player:joined event")
		}
		var player session.Player
		if err := json.Unmarshal(data, &player); err != nil {
			t.Fatalf("Failed to decode player: %v", err)
		}
		if player.ID != "conn-2" {
			t.Errorf("Expected joining player 'conn-2', got '%s'", player.ID)
		}
		if player.Name != "Player 2" {
			t.Errorf("Expected default name 'Player 2', got '%s'", player.Name)
		}
		if _, ok := findEvent(envs, EventPlayersUpdate); !ok {
			t.Error("Expected a players:update event")
		}
	})

	t.Run("joining a second game is rejected", func(t *testing.T) {
		h.route(second, frame(t, EventJoin, JoinPayload{GameID: "OTHER666"}))
		envs := drain(t, second)
		if _, ok := findEvent(envs, EventError); !ok {
			t.Error("Expected an error for cross-game join")
		}
		if second.sessionID != sess.ID {
			t.Error("Expected original session membership to survive")
		}
	})
}

func TestRouter_GrabContention(t *testing.T) {
	h, sess := newTestHub(t)
	a := newTestClient(h, "conn-a")
	b := newTestClient(h, "conn-b")
	join(t, h, a, sess.ID, "A")
	join(t, h, b, sess.ID, "B")
	drain(t, a)

	h.route(a, frame(t, EventPieceGrab, GrabPayload{PieceID: 0}))

	t.Run("peers see the grab", func(t *testing.T) {
		envs := drain(t, b)
		data, ok := findEvent(envs, EventPieceGrabbed)
		if !ok {
			t.Fatal("Expected a piece:grabbed event")
		}
		var payload GrabbedPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			t.Fatalf("Failed to decode grab: %v", err)
		}
		if payload.PieceID != 0 || payload.PlayerID != "conn-a" {
			t.Errorf("Expected piece 0 grabbed by conn-a, got %+v", payload)
		}
	})

	t.Run("grabber gets no echo", func(t *testing.T) {
		if envs := drain(t, a); len(envs) != 0 {
			t.Errorf("Expected silence for the grabber, got %d events", len(envs))
		}
	})

	t.Run("losing grab is dropped silently", func(t *testing.T) {
		h.route(b, frame(t, EventPieceGrab, GrabPayload{PieceID: 0}))
		if envs := drain(t, a); len(envs) != 0 {
			t.Errorf("Expected no broadcast for a failed grab, got %d events", len(envs))
		}
		if envs := drain(t, b); len(envs) != 0 {
			t.Errorf("Expected no error back to the loser, got %d events", len(envs))
		}
	})
}

func TestRouter_MoveRequiresLock(t *testing.T) {
	h, sess := newTestHub(t)
	a := newTestClient(h, "conn-a")
	b := newTestClient(h, "conn-b")
	join(t, h, a, sess.ID, "A")
	join(t, h, b, sess.ID, "B")
	drain(t, a)

	h.route(b, frame(t, EventPieceMove, MovePayload{PieceID: 1, X: 10, Y: 20}))
	if envs := drain(t, a); len(envs) != 0 {
		t.Errorf("Expected no broadcast for a lockless move, got %d events", len(envs))
	}

	h.route(a, frame(t, EventPieceGrab, GrabPayload{PieceID: 1}))
	h.route(a, frame(t, EventPieceMove, MovePayload{PieceID: 1, X: 10, Y: 20}))
	drain(t, a)

	envs := drain(t, b)
	data, ok := findEvent(envs, EventPieceMoved)
	if !ok {
		t.Fatal("Expected a piece:moved event")
	}
	var payload MovedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("Failed to decode move: %v", err)
	}
	if payload.X != 10 || payload.Y != 20 || payload.PlayerID != "conn-a" {
		t.Errorf("Unexpected move echo: %+v", payload)
	}
}

func TestRouter_Release(t *testing.T) {
	h, sess := newTestHub(t)
	a := newTestClient(h, "conn-a")
	b := newTestClient(h, "conn-b")
	join(t, h, a, sess.ID, "A")
	join(t, h, b, sess.ID, "B")
	drain(t, a)

	h.route(a, frame(t, EventPieceGrab, GrabPayload{PieceID: 2}))
	h.route(a, frame(t, EventPieceRelease, ReleasePayload{PieceID: 2, X: 5, Y: 6, Placed: true}))
	drain(t, b)

	envs := drain(t, a)
	data, ok := findEvent(envs, EventPieceReleased)
	if !ok {
		t.Fatal("Expected the releaser to receive piece:released too")
	}
	var payload ReleasedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("Failed to decode release: %v", err)
	}
	if !payload.Placed || payload.PlayerID != "conn-a" {
		t.Errorf("Unexpected release echo: %+v", payload)
	}
	// 25 requested pieces snap to a 6x4 grid; 1 of 24 placed rounds to 4%.
	if payload.Progress != 4 {
		t.Errorf("Expected progress 4 after one placement, got %d", payload.Progress)
	}
}

func TestRouter_Completion(t *testing.T) {
	h, sess := newTestHub(t)
	a := newTestClient(h, "conn-a")
	join(t, h, a, sess.ID, "Alice")

	// Everything placed except one piece.
	var lastID int
	for i, p := range sess.Pieces {
		if i == 0 {
			lastID = p.ID
			continue
		}
		p.IsPlaced = true
	}

	h.route(a, frame(t, EventPieceGrab, GrabPayload{PieceID: lastID}))
	h.route(a, frame(t, EventPieceRelease, ReleasePayload{PieceID: lastID, Placed: true}))

	envs := drain(t, a)
	data, ok := findEvent(envs, EventGameComplete)
	if !ok {
		t.Fatal("Expected a game:complete event")
	}
	var payload CompletePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("Failed to decode completion: %v", err)
	}
	if len(payload.CompletedBy) != 1 || payload.CompletedBy[0] != "Alice" {
		t.Errorf("Expected completion credited to Alice, got %v", payload.CompletedBy)
	}

	t.Run("does not refire", func(t *testing.T) {
		h.route(a, frame(t, EventPieceGrab, GrabPayload{PieceID: lastID}))
		h.route(a, frame(t, EventPieceRelease, ReleasePayload{PieceID: lastID, Placed: true}))
		envs := drain(t, a)
		if _, ok := findEvent(envs, EventGameComplete); ok {
			t.Error("Expected completion to fire only on the transition to 100")
		}
	})
}

func TestRouter_CursorRelay(t *testing.T) {
	h, sess := newTestHub(t)
	a := newTestClient(h, "conn-a")
	b := newTestClient(h, "conn-b")
	join(t, h, a, sess.ID, "A")
	join(t, h, b, sess.ID, "B")
	drain(t, a)

	h.route(a, frame(t, EventCursorMove, CursorPayload{X: 3.5, Y: 7.25}))

	if envs := drain(t, a); len(envs) != 0 {
		t.Error("Expected no cursor echo to the sender")
	}
	envs := drain(t, b)
	data, ok := findEvent(envs, EventCursorUpdate)
	if !ok {
		t.Fatal("Expected a cursor:update event")
	}
	var payload CursorUpdatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("Failed to decode cursor: %v", err)
	}
	if payload.PlayerID != "conn-a" || payload.X != 3.5 || payload.Y != 7.25 {
		t.Errorf("Unexpected cursor relay: %+v", payload)
	}
}

func TestRouter_FrameAfterDisconnect(t *testing.T) {
	h, sess := newTestHub(t)
	a := newTestClient(h, "conn-a")
	b := newTestClient(h, "conn-b")
	join(t, h, a, sess.ID, "A")
	join(t, h, b, sess.ID, "B")
	drain(t, a)

	h.handleDisconnect(a)
	h.removeClient(a)
	drain(t, b)

	t.Run("queued join is dropped, not sent on the closed channel", func(t *testing.T) {
		h.route(a, frame(t, EventJoin, JoinPayload{GameID: sess.ID}))
		if len(sess.Roster()) != 1 {
			t.Errorf("Expected departed client to stay off the roster, got %d players", len(sess.Roster()))
		}
	})

	t.Run("stale grab cannot strand a lock", func(t *testing.T) {
		h.route(a, frame(t, EventPieceGrab, GrabPayload{PieceID: 0}))
		for _, p := range sess.Pieces {
			if p.ID == 0 && p.LockedBy != "" {
				t.Errorf("Expected piece 0 unlocked, held by '%s'", p.LockedBy)
			}
		}
		if envs := drain(t, b); len(envs) != 0 {
			t.Errorf("Expected no broadcasts from a departed client, got %d events", len(envs))
		}
	})
}

func TestRouter_Disconnect(t *testing.T) {
	h, sess := newTestHub(t)
	a := newTestClient(h, "conn-a")
	b := newTestClient(h, "conn-b")
	join(t, h, a, sess.ID, "A")
	join(t, h, b, sess.ID, "B")
	drain(t, a)

	h.route(a, frame(t, EventPieceGrab, GrabPayload{PieceID: 4}))
	drain(t, b)

	h.handleDisconnect(a)
	h.removeClient(a)

	envs := drain(t, b)
	if data, ok := findEvent(envs, EventPieceReleased); !ok {
		t.Error("Expected the held lock to be released on disconnect")
	} else {
		var payload ReleasedPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			t.Fatalf("Failed to decode release: %v", err)
		}
		if payload.PieceID != 4 || payload.PlayerID != "conn-a" {
			t.Errorf("Unexpected reclaim echo: %+v", payload)
		}
	}
	if _, ok := findEvent(envs, EventPlayerLeft); !ok {
		t.Error("Expected a player:left event")
	}
	if _, ok := findEvent(envs, EventPlayersUpdate); !ok {
		t.Error("Expected a roster update")
	}

	if len(sess.Roster()) != 1 {
		t.Errorf("Expected 1 player after disconnect, got %d", len(sess.Roster()))
	}
	if h.clients[a] {
		t.Error("Expected the client to be gone from the hub")
	}
}
