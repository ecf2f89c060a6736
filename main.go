// Command puzzleparty runs the collaborative jigsaw puzzle server: a
// REST API for creating games, a websocket protocol for live play, and
// static serving for the browser client.
//
// Configuration comes from config.yaml / PUZZLE_* environment variables,
// with a few common settings overridable by flag.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/puzzleforge/puzzleparty/api"
	"github.com/puzzleforge/puzzleparty/config"
	"github.com/puzzleforge/puzzleparty/game/session"
	"github.com/puzzleforge/puzzleparty/storage"
	"github.com/puzzleforge/puzzleparty/transport/websocket"
)

func main() {
	// A missing .env file is the normal case outside development.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	cmd := &cli.Command{
		Name:  "puzzleparty",
		Usage: "collaborative jigsaw puzzle server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "bind address override"},
			&cli.IntFlag{Name: "port", Usage: "listen port override"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cmd.Bool("debug") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.IsSet("host") {
		cfg.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Port = int(cmd.Int("port"))
	}

	store, err := session.NewFileStore(cfg.SessionsDir)
	if err != nil {
		return err
	}
	registry := session.NewManager(store, session.Limits{
		MinPieces:   cfg.MinPieces,
		MaxPieces:   cfg.MaxPieces,
		AspectRatio: cfg.AspectRatio,
	}, nil)

	images, err := storage.NewImageStore(cfg.UploadsDir, cfg.MaxUploadBytes())
	if err != nil {
		return err
	}

	hub := websocket.NewHub(registry, cfg.SnapshotRate, nil)
	go hub.Run()

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.NewServer(registry, images, hub, cfg.StaticDir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AutosaveInterval > 0 {
		go autosave(ctx, registry, cfg.AutosaveInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	log.Info().Str("addr", cfg.Addr()).Msg("puzzle server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown failed")
	}

	// Last chance to persist in-memory state.
	if err := registry.SaveAll(); err != nil {
		log.Error().Err(err).Msg("final snapshot failed")
	}
	return nil
}

// autosave periodically snapshots every live session so a crash loses at
// most one interval of play.
func autosave(ctx context.Context, registry *session.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := registry.SaveAll(); err != nil {
				log.Warn().Err(err).Msg("autosave failed")
			}
		}
	}
}
