// Package auth provides JWT-based authentication: login against the
// user store, bearer-token middleware, and admin-only user management.
// Token validation is a pure check against the signing secret (or the
// configured OIDC issuer); no filesystem or store access happens before
// a request is authorized.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fily/fily/internal/logging"
	"github.com/fily/fily/internal/metrics"
)

type contextKey string

const userContextKey contextKey = "user"

// Claims holds JWT token claims.
type Claims struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Auth handles authentication and user management.
type Auth struct {
	store             UserStore
	secret            []byte
	tokenTTL          time.Duration
	allowRegistration bool
	oidc              *OIDCProvider
}

// Options configures an Auth handler.
type Options struct {
	JWTSecret         string
	TokenTTL          time.Duration
	AllowRegistration bool
}

// New creates a new Auth handler backed by the given user store.
func New(store UserStore, opts Options) *Auth {
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Auth{
		store:             store,
		secret:            []byte(opts.JWTSecret),
		tokenTTL:          ttl,
		allowRegistration: opts.AllowRegistration,
	}
}

// SetOIDCProvider enables bearer validation against an external issuer
// in addition to locally issued tokens.
func (a *Auth) SetOIDCProvider(p *OIDCProvider) { a.oidc = p }

// HasOIDC returns true if an OIDC provider is configured.
func (a *Auth) HasOIDC() bool { return a.oidc != nil }

// Middleware returns HTTP middleware that validates bearer tokens.
// Requests that fail validation are rejected before any downstream
// handler (and therefore any filesystem access) runs.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractToken(r)
		if tokenStr == "" {
			metrics.RecordAuthAttempt(false)
			sendAuthError(w, http.StatusUnauthorized, "missing authentication token")
			return
		}

		claims, err := a.validateToken(tokenStr)
		if err != nil && a.oidc != nil {
			claims, err = a.oidc.Validate(r.Context(), tokenStr)
		}
		if err != nil {
			metrics.RecordAuthAttempt(false)
			sendAuthError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin wraps a handler and rejects non-admin claims.
func RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := GetClaims(r.Context())
		if claims == nil || !claims.IsAdmin {
			sendAuthError(w, http.StatusForbidden, "admin privileges required")
			return
		}
		next(w, r)
	}
}

// GetClaims extracts claims from the request context.
func GetClaims(ctx context.Context) *Claims {
	claims, _ := ctx.Value(userContextKey).(*Claims)
	return claims
}

// WithClaims injects claims into a context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, userContextKey, claims)
}

// HandleLogin handles POST /api/v1/auth/login.
func (a *Auth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RecordAuthAttempt(false)
		sendAuthError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		metrics.RecordAuthAttempt(false)
		sendAuthError(w, http.StatusBadRequest, "username and password required")
		return
	}

	creds, err := a.store.GetCredentials(r.Context(), req.Username)
	if errors.Is(err, ErrUserNotFound) {
		metrics.RecordAuthAttempt(false)
		logging.Warn("login failed: unknown user", zap.String("username", req.Username))
		sendAuthError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		metrics.RecordAuthAttempt(false)
		logging.Error("login store error", zap.Error(err))
		sendAuthError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(req.Password)); err != nil {
		metrics.RecordAuthAttempt(false)
		logging.Warn("login failed: invalid password", zap.String("username", req.Username))
		sendAuthError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	tokenStr, expiresAt, err := a.IssueToken(creds.ID, creds.Username, creds.IsAdmin)
	if err != nil {
		metrics.RecordAuthAttempt(false)
		logging.Error("failed to sign token", zap.Error(err))
		sendAuthError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	metrics.RecordAuthAttempt(true)
	logging.Info("login successful", zap.String("username", creds.Username))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"token":      tokenStr,
		"expires_at": expiresAt,
		"user":       creds.User,
	})
}

// HandleRegister handles POST /api/v1/auth/register. New accounts are
// never admins. Registration can be disabled by configuration.
func (a *Auth) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if !a.allowRegistration {
		sendAuthError(w, http.StatusForbidden, "registration is disabled")
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendAuthError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || len(req.Password) < 4 {
		sendAuthError(w, http.StatusBadRequest, "username and password (min 4 chars) required")
		return
	}

	user, err := a.CreateUser(r.Context(), req.Username, req.Password, false)
	if errors.Is(err, ErrUsernameTaken) {
		sendAuthError(w, http.StatusConflict, "username already taken")
		return
	}
	if err != nil {
		logging.Error("register failed", zap.Error(err))
		sendAuthError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"user":    user,
	})
}

// IssueToken signs a JWT for the given identity.
func (a *Auth) IssueToken(userID int, username string, isAdmin bool) (string, time.Time, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		IsAdmin:  isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "fily",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenStr, claims.ExpiresAt.Time, nil
}

func (a *Auth) validateToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// CreateUser hashes the password and stores a new account.
func (a *Auth) CreateUser(ctx context.Context, username, password string, isAdmin bool) (*User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := a.store.Create(ctx, username, string(hashed), isAdmin)
	if err != nil {
		return nil, err
	}

	logging.Info("user created", zap.String("username", username), zap.Bool("is_admin", isAdmin))
	a.updateUserCount(ctx)
	return user, nil
}

// ChangePassword replaces a user's password.
func (a *Auth) ChangePassword(ctx context.Context, userID int, newPassword string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := a.store.SetPassword(ctx, userID, string(hashed)); err != nil {
		return err
	}
	logging.Info("password changed", zap.Int("user_id", userID))
	return nil
}

// ListUsers returns all accounts.
func (a *Auth) ListUsers(ctx context.Context) ([]User, error) {
	return a.store.List(ctx)
}

// DeleteUser removes an account by ID.
func (a *Auth) DeleteUser(ctx context.Context, userID int) error {
	if err := a.store.Delete(ctx, userID); err != nil {
		return err
	}
	logging.Info("user deleted", zap.Int("user_id", userID))
	a.updateUserCount(ctx)
	return nil
}

// EnsureDefaultAdmin creates a default admin user if no users exist.
func (a *Auth) EnsureDefaultAdmin(ctx context.Context) error {
	count, err := a.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	metrics.SetRegisteredUsers(count)

	if count == 0 {
		logging.Warn("no users found, creating default admin (admin/admin)")
		logging.Warn("** change the default password immediately! **")
		_, err := a.CreateUser(ctx, "admin", "admin", true)
		return err
	}
	return nil
}

func (a *Auth) updateUserCount(ctx context.Context) {
	if count, err := a.store.Count(ctx); err == nil {
		metrics.SetRegisteredUsers(count)
	}
}

func extractToken(r *http.Request) string {
	// Bearer token from Authorization header
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	// Query parameter fallback (download links opened by the browser)
	return r.URL.Query().Get("token")
}

func sendAuthError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": message,
		"code":  code,
	})
}
