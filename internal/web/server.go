// Package web serves the JSON control API and a small status page.
package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kevin-liao/streamscout/internal/media"
	"github.com/kevin-liao/streamscout/internal/pipeline"
	"github.com/kevin-liao/streamscout/internal/scorelog"
	"github.com/kevin-liao/streamscout/internal/session"
	"github.com/kevin-liao/streamscout/internal/store"
)

// Prober inspects a media source without materializing chunks.
type Prober interface {
	Probe(ctx context.Context, sourceID string) (media.SourceInfo, error)
}

// ArtifactPurger evicts persisted chunk artifacts. Satisfied by
// *store.Store.
type ArtifactPurger interface {
	DeleteArtifacts(sourceID string) (int, error)
}

// TriggerReader lists recorded threshold crossings.
type TriggerReader interface {
	RecentTriggers(limit int) ([]store.Trigger, error)
}

// Deps are the collaborators the server exposes over HTTP. Prober,
// Purger and Triggers may be nil; the matching endpoints then report
// the feature as unavailable.
type Deps struct {
	Processor   session.Processor
	Cache       *pipeline.Cache
	Manager     *session.Manager
	Prober      Prober
	Purger      ArtifactPurger
	Triggers    TriggerReader
	Sources     map[string]string // configured name → URL
	ScoreLogDir string
}

// Server serves the control API with optional cookie authentication.
type Server struct {
	deps Deps
	port int

	mu           sync.RWMutex
	username     string
	passwordHash string
	sessions     sync.Map // token → expiry time
}

func NewServer(deps Deps, port int, username, passwordHash string) *Server {
	return &Server{
		deps:         deps,
		port:         port,
		username:     username,
		passwordHash: passwordHash,
	}
}

// UpdateAuth updates credentials (hot reload).
func (s *Server) UpdateAuth(username, passwordHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
	s.passwordHash = passwordHash
	slog.Info("auth credentials updated")
}

// Handler builds the route table. Split from Start for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.mu.RLock()
	hasAuth := s.username != "" && s.passwordHash != ""
	s.mu.RUnlock()

	protect := func(h http.HandlerFunc) http.HandlerFunc { return h }
	if hasAuth {
		mux.HandleFunc("/login", s.handleLoginPage)
		mux.HandleFunc("/api/login", s.handleLogin)
		mux.HandleFunc("/api/logout", s.handleLogout)
		protect = s.requireAuth
		slog.Info("web auth enabled", "username", s.username)
	} else {
		slog.Info("web auth disabled (no username/password configured)")
	}

	mux.HandleFunc("/", protect(s.handleIndex))
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/source/info", protect(s.handleSourceInfo))
	mux.HandleFunc("/api/process/chunk", protect(s.handleProcessChunk))
	mux.HandleFunc("/api/clear_cache", protect(s.handleClearCache))
	mux.HandleFunc("/api/session/start", protect(s.handleSessionStart))
	mux.HandleFunc("/api/session/stop", protect(s.handleSessionStop))
	mux.HandleFunc("/api/sessions", protect(s.handleSessions))
	mux.HandleFunc("/api/triggers", protect(s.handleTriggers))
	mux.HandleFunc("/api/scorelogs", protect(s.handleScoreLogs))
	return mux
}

// Start serves the API in the background.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("web control panel started", "addr", addr)
	handler := s.Handler()
	go func() {
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("web server error", "err", err)
		}
	}()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"success": false, "error": msg})
}

func (s *Server) generateToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func (s *Server) isValidSession(r *http.Request) bool {
	cookie, err := r.Cookie("streamscout_token")
	if err != nil {
		return false
	}
	expiry, ok := s.sessions.Load(cookie.Value)
	if !ok {
		return false
	}
	if time.Now().After(expiry.(time.Time)) {
		s.sessions.Delete(cookie.Value)
		return false
	}
	return true
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.isValidSession(r) {
			next(w, r)
			return
		}
		// API calls get 401, page requests redirect to login
		if len(r.URL.Path) > 4 && r.URL.Path[:4] == "/api" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.ParseForm()
	user := r.FormValue("username")
	pass := r.FormValue("password")

	s.mu.RLock()
	validUser := s.username
	validHash := s.passwordHash
	s.mu.RUnlock()

	if user != validUser ||
		bcrypt.CompareHashAndPassword([]byte(validHash), []byte(pass)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token := s.generateToken()
	s.sessions.Store(token, time.Now().Add(24*time.Hour))

	http.SetCookie(w, &http.Cookie{
		Name:     "streamscout_token",
		Value:    token,
		Path:     "/",
		MaxAge:   86400,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	slog.Info("user logged in", "username", user, "ip", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("streamscout_token")
	if err == nil {
		s.sessions.Delete(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:   "streamscout_token",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"cached_chunks": s.deps.Cache.Len(),
		"sessions":      len(s.deps.Manager.List()),
	})
}

func (s *Server) handleSourceInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.deps.Prober == nil {
		writeError(w, http.StatusServiceUnavailable, "probing unavailable")
		return
	}

	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "missing url")
		return
	}

	info, err := s.deps.Prober.Probe(r.Context(), s.resolveSource(req.URL))
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "info": info})
}

func (s *Server) handleProcessChunk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req pipeline.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SourceID == "" || req.StartOffset < 0 || req.Duration <= 0 {
		writeError(w, http.StatusBadRequest, "source_id, start_offset >= 0 and duration > 0 required")
		return
	}
	req.SourceID = s.resolveSource(req.SourceID)

	result, cached, err := s.deps.Processor.Process(r.Context(), req)
	if err != nil {
		code := http.StatusBadGateway
		if errors.Is(err, pipeline.ErrTimeout) {
			code = http.StatusGatewayTimeout
		}
		writeError(w, code, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"fromCache": cached,
		"result":    result,
	})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		SourceID string `json:"source_id"`
	}
	// An empty body means a global clear.
	json.NewDecoder(r.Body).Decode(&req)
	sourceID := s.resolveSource(req.SourceID)

	results := s.deps.Cache.Clear(sourceID)
	artifacts := 0
	if s.deps.Purger != nil {
		n, err := s.deps.Purger.DeleteArtifacts(sourceID)
		if err != nil {
			slog.Warn("artifact purge failed", "source", sourceID, "err", err)
		}
		artifacts = n
	}

	slog.Info("cache cleared", "source", sourceID, "results", results, "artifacts", artifacts)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"cleared_results":   results,
		"cleared_artifacts": artifacts,
	})
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Source        string  `json:"source"`
		TotalDuration float64 `json:"total_duration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Source == "" {
		writeError(w, http.StatusBadRequest, "missing source")
		return
	}

	view, err := s.deps.Manager.Start(context.Background(), s.resolveSource(req.Source), req.TotalDuration)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "session": view})
}

func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Source string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Source == "" {
		writeError(w, http.StatusBadRequest, "missing source")
		return
	}

	if err := s.deps.Manager.Stop(s.resolveSource(req.Source)); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Manager.List())
}

func (s *Server) handleTriggers(w http.ResponseWriter, r *http.Request) {
	if s.deps.Triggers == nil {
		writeJSON(w, http.StatusOK, []store.Trigger{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	triggers, err := s.deps.Triggers.RecentTriggers(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if triggers == nil {
		triggers = []store.Trigger{}
	}
	writeJSON(w, http.StatusOK, triggers)
}

func (s *Server) handleScoreLogs(w http.ResponseWriter, r *http.Request) {
	files, err := scorelog.ListFiles(s.deps.ScoreLogDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if files == nil {
		files = []scorelog.FileInfo{}
	}
	writeJSON(w, http.StatusOK, files)
}

// resolveSource maps a configured source name to its URL; anything not
// in the table is taken as a literal URL.
func (s *Server) resolveSource(source string) string {
	if url, ok := s.deps.Sources[source]; ok {
		return url
	}
	return source
}
