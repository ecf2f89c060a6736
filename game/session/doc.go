// Package session provides the session aggregate, presence tracking,
// and the process-wide session registry for the puzzle server.
//
// The session package implements:
//   - The Session aggregate: pieces, groups, players, derived progress
//   - Presence: idempotent join, palette colors, leave with lock reclaim
//   - A registry (Manager) with load-through from durable storage
//   - A file-backed Store writing one JSON snapshot per session
//
// Session Identifiers:
//
// Sessions use short uppercase codes for easy sharing. Lookup is
// case-insensitive; ids are normalized to uppercase everywhere.
//
// Persistence:
//
// Snapshots never include the player list, so a session reloaded from
// storage always starts with zero connected players. Saves are
// best-effort: a storage failure is logged and the session keeps
// operating in memory.
//
// Concurrency:
//
// The Manager and each Session guard their state with a mutex, so the
// websocket event loop and REST handlers (create, reimage, periodic
// snapshots) can share them safely.
//
// Usage:
//
//	store, err := session.NewFileStore("games")
//	if err != nil {
//		log.Fatal().Err(err).Msg("store init failed")
//	}
//
//	registry := session.NewManager(store, session.DefaultLimits(), nil)
//	sess, err := registry.Create(session.CreateParams{
//		Name:       "Friday puzzle",
//		ImageURL:   "/uploads/abc.jpg",
//		PieceCount: 100,
//	})
package session
