// Package api provides the HTTP server and handlers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/fily/fily/internal/auth"
	"github.com/fily/fily/internal/fsops"
	"github.com/fily/fily/internal/logging"
	"github.com/fily/fily/internal/metrics"
	"github.com/fily/fily/webapp"
)

// Server is the HTTP server. It owns no mutable per-request state;
// every request resolves its own paths and hits the filesystem
// directly.
type Server struct {
	root          *fsops.Root
	auth          *auth.Auth
	maxUploadSize int64
}

// NewServer creates a new server confined to the given root.
func NewServer(root *fsops.Root, authHandler *auth.Auth, maxUploadSize int64) *Server {
	return &Server{
		root:          root,
		auth:          authHandler,
		maxUploadSize: maxUploadSize,
	}
}

// Handler returns the HTTP handler with auth, logging and metrics
// middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/login", s.auth.HandleLogin)
	mux.HandleFunc("POST /api/v1/auth/register", s.auth.HandleRegister)

	// Web app (no auth; the app handles login via the API)
	mux.Handle("/app/", http.StripPrefix("/app/", http.FileServer(http.FS(webapp.Assets))))
	mux.HandleFunc("GET /app", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/app/", http.StatusMovedPermanently)
	})
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/app/", http.StatusMovedPermanently)
	})

	// Protected endpoints
	protected := http.NewServeMux()

	protected.HandleFunc("GET /api/v1/files", s.handleList)
	protected.HandleFunc("DELETE /api/v1/files", s.handleDelete)
	protected.HandleFunc("GET /api/v1/files/download", s.handleDownload)
	protected.HandleFunc("POST /api/v1/files/upload", s.handleUpload)
	protected.HandleFunc("POST /api/v1/files/mkdir", s.handleMkdir)
	protected.HandleFunc("POST /api/v1/files/rename", s.handleRename)
	protected.HandleFunc("POST /api/v1/files/move", s.handleMove)
	protected.HandleFunc("GET /api/v1/files/thumb", s.handleThumb)

	protected.HandleFunc("GET /api/v1/admin/users", auth.RequireAdmin(s.handleListUsers))
	protected.HandleFunc("POST /api/v1/admin/users", auth.RequireAdmin(s.handleCreateUser))
	protected.HandleFunc("DELETE /api/v1/admin/users/{userID}", auth.RequireAdmin(s.handleDeleteUser))
	protected.HandleFunc("PUT /api/v1/admin/users/{userID}/password", auth.RequireAdmin(s.handleChangePassword))

	// Auth runs before anything below touches the filesystem.
	mux.Handle("/api/v1/", s.auth.Middleware(protected))

	return metrics.Middleware(logging.Middleware(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": "1.0"})
}

// ─── Response helpers ───────────────────────────────────────────────────────

func sendJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func sendSuccess(w http.ResponseWriter, message string) {
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": message,
	})
}

func sendError(w http.ResponseWriter, code int, message string) {
	sendJSON(w, code, map[string]interface{}{
		"error": message,
		"code":  code,
	})
}

// sendOpError maps a filesystem-layer failure onto its transport code.
// Confinement failures are a uniform 403 with no detail: the response
// never distinguishes "would escape the root" from "does not exist
// outside the root", and never echoes a resolved path.
func (s *Server) sendOpError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, fsops.ErrAccessDenied), errors.Is(err, fsops.ErrInvalidPath):
		sendError(w, http.StatusForbidden, "access denied")
	case errors.Is(err, fsops.ErrInvalidName):
		sendError(w, http.StatusBadRequest, "invalid name")
	case errors.Is(err, fsops.ErrNotFound):
		sendError(w, http.StatusNotFound, "not found")
	case errors.Is(err, fsops.ErrNotADirectory), errors.Is(err, fsops.ErrIsADirectory):
		sendError(w, http.StatusBadRequest, "wrong entry kind")
	case errors.Is(err, fsops.ErrExists):
		sendError(w, http.StatusConflict, "name already in use")
	default:
		logging.Error("operation failed",
			zap.String("request_id", logging.GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		sendError(w, http.StatusInternalServerError, "internal error")
	}
}
