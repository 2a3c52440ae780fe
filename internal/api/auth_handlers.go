package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/openschoolhq/schooldesk/internal/audit"
	"github.com/openschoolhq/schooldesk/internal/auth"
	"github.com/openschoolhq/schooldesk/internal/user"
)

// AuthHandlers serves login, token refresh and login history.
type AuthHandlers struct {
	users   *user.Service
	tokens  *auth.JWTService
	logins  auth.LoginHistoryRepository
	respond *Responder
	logger  *slog.Logger
}

// NewAuthHandlers creates the auth handlers. logins may be nil to disable
// login attempt recording.
func NewAuthHandlers(users *user.Service, tokens *auth.JWTService, logins auth.LoginHistoryRepository, respond *Responder, logger *slog.Logger) *AuthHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandlers{users: users, tokens: tokens, logins: logins, respond: respond, logger: logger}
}

// Register wires the auth routes.
func (h *AuthHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("POST /auth/refresh", h.Refresh)
}

// RegisterLoginHistory wires the login history route separately so it can
// sit behind the authenticated middleware chain.
func (h *AuthHandlers) RegisterLoginHistory(mux *http.ServeMux) {
	mux.HandleFunc("GET /auth/login-history", h.LoginHistory)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	TokenType    string     `json:"token_type"`
	User         *user.User `json:"user,omitempty"`
}

// Login handles POST /auth/login. Every attempt, successful or not, lands in
// the login history; recording failures never block the login itself.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body", err)
		return
	}
	if req.Username == "" || req.Password == "" {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "username and password are required", nil)
		return
	}

	u, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			h.recordLogin(r, req.Username, "", auth.LoginFailure)
			h.respond.Error(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid username or password", nil)
			return
		}
		h.respond.Error(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error", err)
		return
	}

	access, err := h.tokens.GenerateAccessToken(u.ID, u.Role)
	if err != nil {
		h.respond.Error(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error", err)
		return
	}
	refresh, err := h.tokens.GenerateRefreshToken(u.ID)
	if err != nil {
		h.respond.Error(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error", err)
		return
	}

	h.recordLogin(r, req.Username, u.ID, auth.LoginSuccess)
	WriteData(w, r.Context(), http.StatusOK, tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		User:         u,
	})
}

func (h *AuthHandlers) recordLogin(r *http.Request, username, userID string, outcome auth.LoginOutcome) {
	if h.logins == nil {
		return
	}
	origin := audit.OriginFromRequest(r)
	_, err := h.logins.RecordLogin(r.Context(), auth.LoginRecord{
		Username:    username,
		UserID:      userID,
		Outcome:     outcome,
		ClientIP:    origin.IP,
		ClientAgent: origin.Agent,
		OccurredAt:  time.Now().UTC(),
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to record login attempt",
			"username", username,
			"outcome", outcome,
			"error", err,
		)
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh handles POST /auth/refresh, exchanging a valid refresh token for a
// fresh token pair. The account is re-read so a role change or deletion
// takes effect at rotation time.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body", err)
		return
	}
	if req.RefreshToken == "" {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "refresh_token is required", nil)
		return
	}

	userID, err := h.tokens.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		h.respond.Error(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid or expired refresh token", nil)
		return
	}
	u, err := h.users.Get(r.Context(), userID)
	if err != nil {
		h.respond.Error(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Account no longer exists", nil)
		return
	}

	access, err := h.tokens.GenerateAccessToken(u.ID, u.Role)
	if err != nil {
		h.respond.Error(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error", err)
		return
	}
	refresh, err := h.tokens.GenerateRefreshToken(u.ID)
	if err != nil {
		h.respond.Error(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error", err)
		return
	}

	WriteData(w, r.Context(), http.StatusOK, tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
	})
}

// LoginHistory handles GET /auth/login-history, newest first, optionally
// filtered by username.
func (h *AuthHandlers) LoginHistory(w http.ResponseWriter, r *http.Request) {
	if h.logins == nil {
		WritePage(w, r.Context(), []*auth.LoginRecord{}, PageMetaFor(1, audit.DefaultPerPage, 0))
		return
	}
	page, perPage := ParsePagination(r)
	records, total, err := h.logins.QueryLogins(r.Context(), r.URL.Query().Get("username"), (page-1)*perPage, perPage)
	if err != nil {
		h.respond.Error(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error", err)
		return
	}
	WritePage(w, r.Context(), records, PageMetaFor(page, perPage, total))
}
