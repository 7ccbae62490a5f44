package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/fily/fily/internal/auth"
	"github.com/fily/fily/internal/logging"
)

// Admin user management. All handlers here sit behind auth.RequireAdmin.

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.auth.ListUsers(r.Context())
	if err != nil {
		logging.Error("list users failed", zap.Error(err))
		sendError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if users == nil {
		users = []auth.User{}
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		IsAdmin  bool   `json:"is_admin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		sendError(w, http.StatusBadRequest, "username and password required")
		return
	}

	user, err := s.auth.CreateUser(r.Context(), req.Username, req.Password, req.IsAdmin)
	if errors.Is(err, auth.ErrUsernameTaken) {
		sendError(w, http.StatusConflict, "username already taken")
		return
	}
	if err != nil {
		logging.Error("create user failed", zap.Error(err))
		sendError(w, http.StatusInternalServerError, "internal error")
		return
	}

	sendJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"user":    user,
	})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(r.PathValue("userID"))
	if err != nil {
		sendError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	// An admin deleting their own account would lock them out mid-session.
	if claims := auth.GetClaims(r.Context()); claims != nil && claims.UserID == userID {
		sendError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}

	if err := s.auth.DeleteUser(r.Context(), userID); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			sendError(w, http.StatusNotFound, "user not found")
			return
		}
		logging.Error("delete user failed", zap.Error(err))
		sendError(w, http.StatusInternalServerError, "internal error")
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(r.PathValue("userID"))
	if err != nil {
		sendError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Password) < 4 {
		sendError(w, http.StatusBadRequest, "password (min 4 chars) required")
		return
	}

	if err := s.auth.ChangePassword(r.Context(), userID, req.Password); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			sendError(w, http.StatusNotFound, "user not found")
			return
		}
		logging.Error("change password failed", zap.Error(err))
		sendError(w, http.StatusInternalServerError, "internal error")
		return
	}
	sendSuccess(w, "password changed")
}
