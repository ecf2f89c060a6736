package session

import "time"

// Store defines durable snapshot storage for sessions. Snapshots exclude
// player data by construction; see Session.Snapshot.
type Store interface {
	// Save persists a snapshot, keyed by session id.
	Save(snap Snapshot) error

	// Load retrieves a snapshot by id.
	Load(id string) (*Snapshot, error)

	// ListRecent returns summaries of the most recently created
	// sessions, newest first, at most limit entries.
	ListRecent(limit int) ([]Summary, error)

	// Exists checks whether a snapshot is stored for the id.
	Exists(id string) bool

	// Delete removes a stored snapshot.
	Delete(id string) error
}

// Summary is the listing view of a stored session.
type Summary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ImageURL    string    `json:"imageUrl"`
	TotalPieces int       `json:"totalPieces"`
	Progress    int       `json:"progress"`
	CreatedAt   time.Time `json:"createdAt"`
}
