package session

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/puzzleforge/puzzleparty/game/puzzle"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
)

// Limits bound puzzle creation.
type Limits struct {
	MinPieces   int
	MaxPieces   int
	AspectRatio float64
}

// DefaultLimits matches the classic board: 25-250 pieces at 4:3.
func DefaultLimits() Limits {
	return Limits{MinPieces: 25, MaxPieces: 250, AspectRatio: 4.0 / 3.0}
}

// CreateParams describes a new session. ID may be empty, in which case a
// short code is generated. PieceCount of zero falls back to 100.
type CreateParams struct {
	ID         string
	Name       string
	ImageURL   string
	PieceCount int
}

// Manager is the process-wide session registry: a live map keyed by
// normalized session id, with load-through from the durable store.
// Storage failures are logged and never propagated to callers; sessions
// keep operating in memory.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	store    Store
	limits   Limits
	rng      *rand.Rand
}

// NewManager creates a registry backed by the given store. A nil rng is
// seeded from wall-clock time; tests pass a fixed seed for reproducible
// piece generation.
func NewManager(store Store, limits Limits, rng *rand.Rand) *Manager {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Manager{
		sessions: make(map[string]*Session),
		store:    store,
		limits:   limits,
		rng:      rng,
	}
}

// NormalizeID maps a caller-supplied session code to lookup form.
// Codes are case-insensitive and stored uppercase.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// Create builds a new session: grid shape from the requested piece count
// (clamped and rounded for the target aspect ratio), pieces shuffled
// into the staging region, stored live and durably.
func (m *Manager) Create(params CreateParams) (*Session, error) {
	id := NormalizeID(params.ID)
	if id == "" {
		id = m.generateSessionID()
	}

	m.mu.Lock()
	if _, exists := m.sessions[id]; exists {
		m.mu.Unlock()
		return nil, ErrSessionAlreadyExists
	}

	count := params.PieceCount
	if count == 0 {
		count = 100
	}
	grid := puzzle.GridForCount(count, m.limits.MinPieces, m.limits.MaxPieces, m.limits.AspectRatio)

	now := time.Now()
	sess := &Session{
		ID:           id,
		Name:         params.Name,
		ImageURL:     params.ImageURL,
		GridSize:     grid,
		TotalPieces:  grid.Total(),
		Pieces:       puzzle.Generate(grid, m.rng),
		Players:      []*Player{},
		CreatedAt:    now,
		LastActivity: now,
	}
	m.sessions[id] = sess
	m.mu.Unlock()

	m.persist(sess)
	return sess, nil
}

// Get retrieves a live session, falling back to the store on a miss.
// A reloaded session is admitted into the live map with an empty player
// list; presence is never persisted.
func (m *Manager) Get(id string) (*Session, error) {
	id = NormalizeID(id)

	m.mu.Lock()
	if sess, exists := m.sessions[id]; exists {
		m.mu.Unlock()
		return sess, nil
	}
	m.mu.Unlock()

	if m.store == nil || !m.store.Exists(id) {
		return nil, ErrSessionNotFound
	}

	snap, err := m.store.Load(id)
	if err != nil {
		log.Warn().Err(err).Str("session", id).Msg("failed to load session snapshot")
		return nil, ErrSessionNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another caller may have loaded it while we read the file.
	if sess, exists := m.sessions[id]; exists {
		return sess, nil
	}
	sess := fromSnapshot(snap)
	m.sessions[id] = sess
	return sess, nil
}

// Reimage replaces the session's image and regenerates all pieces from
// scratch, discarding placement, lock, and group state, then persists.
func (m *Manager) Reimage(id, imageURL string) (*Session, error) {
	sess, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	pieces := puzzle.Generate(sess.GridSize, m.rng)
	m.mu.Unlock()

	sess.ResetPieces(imageURL, pieces)
	m.persist(sess)
	return sess, nil
}

// Save snapshots one live session to the store, best-effort.
func (m *Manager) Save(id string) {
	id = NormalizeID(id)

	m.mu.Lock()
	sess, exists := m.sessions[id]
	m.mu.Unlock()

	if exists {
		m.persist(sess)
	}
}

// SaveAll snapshots every live session, returning an error when any
// write failed. Individual failures are logged as they happen.
func (m *Manager) SaveAll() error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.Unlock()

	failed := 0
	for _, sess := range sessions {
		if !m.persist(sess) {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to save %d sessions", failed)
	}
	return nil
}

// ListRecent returns summaries of stored sessions, newest first.
func (m *Manager) ListRecent(limit int) ([]Summary, error) {
	if m.store == nil {
		return []Summary{}, nil
	}
	return m.store.ListRecent(limit)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) persist(sess *Session) bool {
	if m.store == nil {
		return true
	}
	if err := m.store.Save(sess.Snapshot()); err != nil {
		log.Warn().Err(err).Str("session", sess.ID).Msg("failed to persist session")
		return false
	}
	return true
}

// generateSessionID returns a short shareable code: the first eight hex
// characters of a UUID, uppercased.
func (m *Manager) generateSessionID() string {
	return strings.ToUpper(uuid.NewString()[:8])
}
