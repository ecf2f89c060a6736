// Package puzzle provides the core domain model for a collaborative
// jigsaw puzzle: pieces, piece groups, grid sizing, and progress.
//
// The puzzle package implements:
//   - Piece state and its mutation rules (grab/move/release locking)
//   - Group membership and last-writer-wins group merging
//   - Grid shape computation from a requested piece count
//   - Piece generation into the off-board staging region
//   - Completion progress as a rounded percentage
//
// Core Types:
//
// Piece is the atomic unit of puzzle state. Its id is derived from the
// correct grid cell (row*cols + col) and is stable for the lifetime of a
// session. Group is a set of piece ids that move together as a rigid
// unit once players snap pieces into clusters.
//
// Locking:
//
// Exclusive move rights over a piece are modeled by LockedBy holding the
// actor id of the current holder. Grab is an admission check: the first
// actor to grab wins and every later grab fails until release. Release
// is authoritative and always clears the lock.
//
// Randomness:
//
// Generate takes a *rand.Rand so callers control reproducibility. The
// server seeds it from wall-clock time; tests pass a fixed seed.
package puzzle
