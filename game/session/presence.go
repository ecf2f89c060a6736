package session

import (
	"fmt"
	"time"
)

// playerColors is the fixed palette, assigned by join order modulo its
// length. Collisions past eight players are cosmetic only.
var playerColors = []string{
	"#FF6B35", "#F7C531", "#E83F6F", "#2274A5",
	"#32936F", "#9B5DE5", "#00BBF9", "#00F5D4",
}

// Player is one connected actor in a session. The id is the connection
// identifier and doubles as the actor id for piece locks. Players are
// never persisted.
type Player struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Color    string    `json:"color"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Join adds the actor to the roster, or returns the existing player
// unchanged when the actor is already present. New players get the next
// palette color and, when name is empty, a sequential "Player N" label.
func (s *Session) Join(actorID, name string) (*Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.Players {
		if p.ID == actorID {
			return p, false
		}
	}

	if name == "" {
		name = fmt.Sprintf("Player %d", len(s.Players)+1)
	}
	player := &Player{
		ID:       actorID,
		Name:     name,
		Color:    playerColors[len(s.Players)%len(playerColors)],
		JoinedAt: time.Now(),
	}
	s.Players = append(s.Players, player)
	return player, true
}

// Leave removes the actor from the roster and reports whether it was
// present. Lock reclamation is a separate step (ReleaseLocksHeldBy) so
// the caller controls broadcast ordering.
func (s *Session) Leave(actorID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.Players {
		if p.ID == actorID {
			s.Players = append(s.Players[:i], s.Players[i+1:]...)
			return true
		}
	}
	return false
}

// Roster returns a copy of the current player list.
func (s *Session) Roster() []Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	players := make([]Player, len(s.Players))
	for i, p := range s.Players {
		players[i] = *p
	}
	return players
}

// PlayerNames returns the display names of all connected players, used
// for the completion broadcast.
func (s *Session) PlayerNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, len(s.Players))
	for i, p := range s.Players {
		names[i] = p.Name
	}
	return names
}
