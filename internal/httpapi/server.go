package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/doorman-labs/doorman/internal/doorman/service"
	"github.com/doorman-labs/doorman/internal/doorman/store"
	"github.com/doorman-labs/doorman/internal/doorman/types"
)

// Dependencies wires the ops server.  This surface is read-only inspection
// for operators; all state changes flow through the services.
type Dependencies struct {
	Logger       *log.Logger
	Addr         string
	Requests     store.RequestStore
	Grants       store.GrantStore
	KnockService *service.KnockService
}

type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	mux        *http.ServeMux
	requests   store.RequestStore
	grants     store.GrantStore
	knocks     *service.KnockService
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:   d.Logger,
		mux:      mux,
		requests: d.Requests,
		grants:   d.Grants,
		knocks:   d.KnockService,
	}

	mux.HandleFunc("GET /v1/healthz", s.handleHealthz)
	mux.HandleFunc("GET /v1/requests/pending", s.handlePendingRequests)
	mux.HandleFunc("GET /v1/requests/{token}", s.handleRequestByToken)
	mux.HandleFunc("GET /v1/channels/{id}/grants", s.handleChannelGrants)

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"server_time": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handlePendingRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := s.requests.ListPending(r.Context())
	if err != nil {
		s.logger.Printf("list pending error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	out := make([]requestView, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, requestToView(req))
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": out})
}

func (s *Server) handleRequestByToken(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing_token", "token is required")
		return
	}

	req, err := s.knocks.ResolveToken(r.Context(), token)
	if err != nil {
		s.logger.Printf("resolve token error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	if req == nil {
		writeError(w, http.StatusNotFound, "not_found", "no pending request for that token")
		return
	}

	writeJSON(w, http.StatusOK, requestToView(*req))
}

func (s *Server) handleChannelGrants(w http.ResponseWriter, r *http.Request) {
	channelID := r.PathValue("id")
	if channelID == "" {
		writeError(w, http.StatusBadRequest, "missing_channel", "channel id is required")
		return
	}

	grants, err := s.grants.ListByChannel(r.Context(), channelID)
	if err != nil {
		s.logger.Printf("list grants error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	out := make([]grantView, 0, len(grants))
	for _, g := range grants {
		out = append(out, grantToView(g))
	}
	writeJSON(w, http.StatusOK, map[string]any{"grants": out})
}

// ── response shapes ──────────────────────────────────────────────────────────

type requestView struct {
	ID            int64  `json:"id"`
	Token         string `json:"token"`
	RequesterID   string `json:"requester_id"`
	RequesterName string `json:"requester_name"`
	ChannelID     string `json:"channel_id"`
	GuildID       string `json:"guild_id"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
	ExpiresAt     string `json:"expires_at"`
}

func requestToView(r types.KnockRequest) requestView {
	return requestView{
		ID:            r.ID,
		Token:         r.Token,
		RequesterID:   r.RequesterID,
		RequesterName: r.RequesterName,
		ChannelID:     r.ChannelID,
		GuildID:       r.GuildID,
		Status:        string(r.Status),
		CreatedAt:     r.CreatedAt.Format(time.RFC3339Nano),
		ExpiresAt:     r.ExpiresAt.Format(time.RFC3339Nano),
	}
}

type grantView struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Kind      string `json:"kind"`
	GrantedAt string `json:"granted_at"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

func grantToView(g types.PermissionGrant) grantView {
	v := grantView{
		ChannelID: g.ChannelID,
		UserID:    g.UserID,
		Kind:      string(g.Kind),
		GrantedAt: g.GrantedAt.Format(time.RFC3339Nano),
	}
	if g.ExpiresAt != nil {
		v.ExpiresAt = g.ExpiresAt.Format(time.RFC3339Nano)
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": code, "message": msg})
}
