package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/puzzleforge/puzzleparty/game/session"
	"github.com/puzzleforge/puzzleparty/storage"
	"github.com/puzzleforge/puzzleparty/transport/websocket"
)

// listLimit caps the games returned by the list endpoint.
const listLimit = 20

// Server is the REST surface: game creation and discovery over HTTP,
// with the live protocol handed off to the websocket hub at /ws.
type Server struct {
	registry *session.Manager
	images   *storage.ImageStore
	hub      *websocket.Hub
	router   *mux.Router
}

// NewServer wires the routes. staticDir is served at the root for the
// browser client.
func NewServer(registry *session.Manager, images *storage.ImageStore, hub *websocket.Hub, staticDir string) *Server {
	s := &Server{
		registry: registry,
		images:   images,
		hub:      hub,
		router:   mux.NewRouter(),
	}
	s.setupRoutes(staticDir)
	return s
}

func (s *Server) setupRoutes(staticDir string) {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/games", s.handleCreateGame).Methods("POST")
	api.HandleFunc("/games", s.handleListGames).Methods("GET")
	api.HandleFunc("/games/{id}", s.handleGetGame).Methods("GET")
	api.HandleFunc("/games/{id}/image", s.handleReplaceImage).Methods("POST")

	s.router.HandleFunc("/ws", s.hub.ServeWS)

	s.router.PathPrefix(storage.URLPrefix).Handler(
		http.StripPrefix(storage.URLPrefix, http.FileServer(http.Dir(s.images.Dir()))))
	s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// readImage pulls the uploaded image out of a multipart request and
// stores it, enforcing the body size cap before parsing.
func (s *Server) readImage(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.images.MaxSize()+4096)
	if err := r.ParseMultipartForm(s.images.MaxSize()); err != nil {
		return "", errors.New("invalid multipart form")
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		return "", errors.New("missing image file")
	}
	defer file.Close()
	return s.images.Save(file, header)
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	imageURL, err := s.readImage(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	pieceCount := 0
	if raw := r.FormValue("pieceCount"); raw != "" {
		pieceCount, err = strconv.Atoi(raw)
		if err != nil {
			s.images.Remove(imageURL)
			respondError(w, http.StatusBadRequest, "pieceCount must be a number")
			return
		}
	}

	sess, err := s.registry.Create(session.CreateParams{
		Name:       r.FormValue("name"),
		ImageURL:   imageURL,
		PieceCount: pieceCount,
	})
	if err != nil {
		s.images.Remove(imageURL)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().
		Str("game", sess.ID).
		Int("pieces", sess.TotalPieces).
		Msg("game created")
	respondJSON(w, http.StatusCreated, sess.State())
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.registry.ListRecent(listLimit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list games")
		return
	}
	respondJSON(w, http.StatusOK, games)
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "game not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, sess.State())
}

// handleReplaceImage swaps a game's image and regenerates its pieces.
// Placement, locks, and groups are discarded; connected clients get a
// game:reset with the fresh piece set.
func (s *Server) handleReplaceImage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	current, err := s.registry.Get(id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "game not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	oldURL := current.State().ImageURL

	imageURL, err := s.readImage(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := s.registry.Reimage(id, imageURL)
	if err != nil {
		s.images.Remove(imageURL)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	state := sess.State()
	s.hub.BroadcastEvent(sess.ID, websocket.EventGameReset, websocket.ResetPayload{
		ImageURL: state.ImageURL,
		Pieces:   state.Pieces,
	})
	s.images.Remove(oldURL)

	log.Info().Str("game", sess.ID).Msg("game image replaced")
	respondJSON(w, http.StatusOK, state)
}
