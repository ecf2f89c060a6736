// Command inspect prints a human-readable summary of the saved games in
// a sessions directory: code, name, size, progress, and how long ago
// each was touched. Useful for checking what a server left behind.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/puzzleforge/puzzleparty/game/session"
)

func main() {
	dir := "./sessions"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	store, err := session.NewFileStore(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", dir, err)
		os.Exit(1)
	}

	games, err := store.ListRecent(0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing games: %v\n", err)
		os.Exit(1)
	}
	if len(games) == 0 {
		fmt.Printf("No saved games in %s\n", dir)
		return
	}

	fmt.Printf("%d saved game(s) in %s\n\n", len(games), dir)
	for _, g := range games {
		fmt.Println(describe(g, time.Now()))
	}
}

// describe renders one summary line for a saved game.
func describe(g session.Summary, now time.Time) string {
	status := fmt.Sprintf("%d%% of %d pieces", g.Progress, g.TotalPieces)
	if g.Progress == 100 {
		status = fmt.Sprintf("completed, %d pieces", g.TotalPieces)
	}
	name := g.Name
	if name == "" {
		name = "(unnamed)"
	}
	return fmt.Sprintf("%s  %-20s %s, created %s", g.ID, name, status, age(now.Sub(g.CreatedAt)))
}

// age formats a duration as a rough human-readable label.
func age(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
