package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/wricardo/wsprobe/transport/websocket"
	"github.com/wricardo/wsprobe/voting"
)

// Server represents the voting HTTP API
type Server struct {
	voting  *voting.Service
	hub     *websocket.Hub
	router  *mux.Router
	handler http.Handler
	log     zerolog.Logger
}

// NewServer creates a new API server
func NewServer(svc *voting.Service, hub *websocket.Hub, log zerolog.Logger) *Server {
	s := &Server{
		voting: svc,
		hub:    hub,
		router: mux.NewRouter(),
		log:    log,
	}

	s.setupRoutes()

	s.handler = cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}).Handler(s.router)

	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Voting phase
	s.router.HandleFunc("/start-voting", s.handleStartVoting).Methods(http.MethodPost)
	s.router.HandleFunc("/submit-move", s.handleSubmitMove).Methods(http.MethodPost)
	s.router.HandleFunc("/end-voting", s.handleEndVoting).Methods(http.MethodPost)

	// Direct moves and diagnostics
	s.router.HandleFunc("/ws-client-move", s.handleClientMove).Methods(http.MethodPost)
	s.router.HandleFunc("/connected-clients", s.handleConnectedClients).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	// WebSocket
	s.router.HandleFunc("/ws", s.hub.ServeWS)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondText(w http.ResponseWriter, status int, text string) {
	w.WriteHeader(status)
	w.Write([]byte(text))
}

// statusFor maps voting errors onto HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, voting.ErrVotingActive),
		errors.Is(err, voting.ErrVotingInactive),
		errors.Is(err, voting.ErrInvalidMove):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleStartVoting(w http.ResponseWriter, r *http.Request) {
	if err := s.voting.StartVoting(); err != nil {
		http.Error(w, "Voting phase already started", statusFor(err))
		return
	}
	respondText(w, http.StatusOK, "Voting phase started")
}

func (s *Server) handleSubmitMove(w http.ResponseWriter, r *http.Request) {
	var move voting.Move
	if err := json.NewDecoder(r.Body).Decode(&move); err != nil {
		http.Error(w, "Invalid move", http.StatusBadRequest)
		return
	}

	if err := s.voting.SubmitMove(move); err != nil {
		if errors.Is(err, voting.ErrVotingInactive) {
			http.Error(w, "Voting phase not started", statusFor(err))
			return
		}
		http.Error(w, "Invalid move", statusFor(err))
		return
	}
	respondText(w, http.StatusOK, "Move submitted")
}

func (s *Server) handleEndVoting(w http.ResponseWriter, r *http.Request) {
	if _, _, err := s.voting.EndVoting(); err != nil {
		http.Error(w, "Voting phase not started", statusFor(err))
		return
	}
	respondText(w, http.StatusOK, "Voting phase ended")
}

func (s *Server) handleClientMove(w http.ResponseWriter, r *http.Request) {
	var move voting.Move
	if err := json.NewDecoder(r.Body).Decode(&move); err != nil {
		http.Error(w, "Invalid move", http.StatusBadRequest)
		return
	}

	if err := s.voting.ApplyClientMove(move); err != nil {
		http.Error(w, "Invalid move", statusFor(err))
		return
	}
	respondText(w, http.StatusOK, "Move submitted")
}

func (s *Server) handleConnectedClients(w http.ResponseWriter, r *http.Request) {
	n, err := s.hub.Count(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("count clients")
		http.Error(w, "Error generating response", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"connected_clients": n})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.voting.Status())
}
