package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/devricklin/feishu-vault/internal/biz/domain"
	"github.com/devricklin/feishu-vault/internal/biz/repo"
	"github.com/devricklin/feishu-vault/internal/biz/usecase"
	"github.com/devricklin/feishu-vault/internal/logging"
)

// Listing limits for /api/sessions
const (
	defaultSessionLimit = 20
	maxSessionLimit     = 200
)

// PendingCounter reports queued deletion jobs
type PendingCounter interface {
	Pending() int
}

// Server provides the operator HTTP API used by vault-mcp
type Server struct {
	sessionRepo repo.SessionRepo
	users       *usecase.UserUsecase
	messages    *usecase.CannedMessageUsecase
	broadcast   *usecase.BroadcastUsecase
	deletions   PendingCounter

	operatorID   string
	deepLinkBase string
	defaults     map[domain.MessageName]string

	log    zerolog.Logger
	server *http.Server
	addr   string
}

// Options carries the identity and texts the API acts with
type Options struct {
	Addr         string
	OperatorID   string
	DeepLinkBase string
	DefaultStart string
	DefaultHelp  string
}

// NewServer creates a new API server
func NewServer(
	sessionRepo repo.SessionRepo,
	users *usecase.UserUsecase,
	messages *usecase.CannedMessageUsecase,
	broadcast *usecase.BroadcastUsecase,
	deletions PendingCounter,
	opts Options,
) *Server {
	return &Server{
		sessionRepo:  sessionRepo,
		users:        users,
		messages:     messages,
		broadcast:    broadcast,
		deletions:    deletions,
		operatorID:   opts.OperatorID,
		deepLinkBase: opts.DeepLinkBase,
		defaults: map[domain.MessageName]string{
			domain.MessageStart: opts.DefaultStart,
			domain.MessageHelp:  opts.DefaultHelp,
		},
		log:  logging.Logger("api"),
		addr: opts.Addr,
	}
}

// Routes builds the HTTP handler
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Get("/messages/{name}", s.handleGetMessage)
		r.Put("/messages/{name}", s.handleSetMessage)
		r.Post("/broadcast", s.handleBroadcast)
	})
	return r
}

// Start serves until Stop is called
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.log.Info().Str("addr", ln.Addr().String()).Msg("starting HTTP server")

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the HTTP server down
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// ============ Response types ============

// StatsResponse is returned by GET /api/stats
type StatsResponse struct {
	Users            int `json:"users"`
	Sessions         int `json:"sessions"`
	PendingDeletions int `json:"pending_deletions"`
}

// SessionInfo describes a stored session
type SessionInfo struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Protect      bool      `json:"protect"`
	TimerMinutes int       `json:"timer_minutes"`
	CreatedAt    time.Time `json:"created_at"`
	ItemCount    int       `json:"item_count"`
	DeepLink     string    `json:"deep_link"`
}

// ItemInfo describes one stored item
type ItemInfo struct {
	Position   int    `json:"position"`
	Kind       string `json:"kind"`
	PayloadRef string `json:"payload_ref,omitempty"`
	Caption    string `json:"caption,omitempty"`
}

// SessionDetail is returned by GET /api/sessions/{id}
type SessionDetail struct {
	Session SessionInfo `json:"session"`
	Items   []ItemInfo  `json:"items"`
}

// MessageInfo is returned by the canned message endpoints
type MessageInfo struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ============ Handlers ============

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	users, err := s.users.Count(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sessions, err := s.sessionRepo.Count(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := StatsResponse{Users: users, Sessions: sessions}
	if s.deletions != nil {
		resp.PendingDeletions = s.deletions.Pending()
	}
	s.writeJSON(w, resp)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := defaultSessionLimit
	if val := r.URL.Query().Get("limit"); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil || parsed < 1 || parsed > maxSessionLimit {
			s.writeStatus(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}

	summaries, err := s.sessionRepo.ListRecent(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	sessions := make([]SessionInfo, len(summaries))
	for i, sum := range summaries {
		sessions[i] = s.sessionInfo(&sum.Session, sum.ItemCount)
	}
	s.writeJSON(w, map[string]interface{}{"sessions": sessions})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, items, err := s.sessionRepo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	detail := SessionDetail{
		Session: s.sessionInfo(session, len(items)),
		Items:   make([]ItemInfo, len(items)),
	}
	for i, item := range items {
		detail.Items[i] = ItemInfo{
			Position:   item.Position,
			Kind:       string(item.Kind),
			PayloadRef: item.PayloadRef,
			Caption:    item.Caption,
		}
	}
	s.writeJSON(w, detail)
}

func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	name, err := domain.ParseMessageName(chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	content, err := s.messages.GetMessage(r.Context(), name, s.defaults[name])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, MessageInfo{Name: string(name), Content: content})
}

func (s *Server) handleSetMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeStatus(w, http.StatusBadRequest, err.Error())
		return
	}

	name, err := s.messages.SetMessage(r.Context(), s.operatorID, chi.URLParam(r, "name"), req.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info().Str("name", string(name)).Msg("canned message updated")
	s.writeJSON(w, MessageInfo{Name: string(name), Content: req.Content})
}

// handleBroadcast runs a broadcast as the operator and returns its report.
// Recipients not reached before the request is cancelled count as skipped.
func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeStatus(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.broadcast.Broadcast(r.Context(), s.operatorID, req.Text)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, report)
}

func (s *Server) sessionInfo(session *domain.Session, itemCount int) SessionInfo {
	return SessionInfo{
		ID:           session.ID,
		OwnerID:      session.OwnerID,
		Protect:      session.Protect,
		TimerMinutes: session.TimerMinutes,
		CreatedAt:    session.CreatedAt,
		ItemCount:    itemCount,
		DeepLink:     domain.BuildDeepLink(s.deepLinkBase, session.ID),
	}
}

// ============ Helpers ============

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps domain errors to HTTP status codes
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrUnknownMessageName):
		status = http.StatusBadRequest
	default:
		s.log.Error().Err(err).Msg("request failed")
	}
	s.writeStatus(w, status, err.Error())
}

func (s *Server) writeStatus(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
