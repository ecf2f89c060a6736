package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/puzzleforge/puzzleparty/game/puzzle"
)

// FileStore implements Store using one JSON file per session id.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed store rooted at dir, creating the
// directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Save writes the snapshot as indented JSON.
func (fs *FileStore) Save(snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session snapshot: %w", err)
	}
	if err := os.WriteFile(fs.filePath(snap.ID), data, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Load reads a snapshot by id.
func (fs *FileStore) Load(id string) (*Snapshot, error) {
	data, err := os.ReadFile(fs.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session snapshot: %w", err)
	}
	return &snap, nil
}

// ListRecent scans the store directory and returns summaries sorted
// newest first. Unreadable files are skipped with a log entry, never a
// failure.
func (fs *FileStore) ListRecent(limit int) ([]Summary, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	summaries := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		snap, err := fs.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			log.Debug().Err(err).Str("file", entry.Name()).Msg("skipping unreadable session file")
			continue
		}

		pieces := make([]*puzzle.Piece, len(snap.Pieces))
		for i := range snap.Pieces {
			pieces[i] = &snap.Pieces[i]
		}
		summaries = append(summaries, Summary{
			ID:          snap.ID,
			Name:        snap.Name,
			ImageURL:    snap.ImageURL,
			TotalPieces: snap.TotalPieces,
			Progress:    puzzle.Progress(pieces),
			CreatedAt:   snap.CreatedAt,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// Exists checks whether a session file is present.
func (fs *FileStore) Exists(id string) bool {
	_, err := os.Stat(fs.filePath(id))
	return err == nil
}

// Delete removes a session file.
func (fs *FileStore) Delete(id string) error {
	if !fs.Exists(id) {
		return ErrSessionNotFound
	}
	if err := os.Remove(fs.filePath(id)); err != nil {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

func (fs *FileStore) filePath(id string) string {
	return filepath.Join(fs.dir, fmt.Sprintf("%s.json", NormalizeID(id)))
}
