package http

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/devpetry/vipi-matrizes/internal/auth"
	"github.com/devpetry/vipi-matrizes/internal/crypto"
	internalmail "github.com/devpetry/vipi-matrizes/internal/mail"
	"github.com/devpetry/vipi-matrizes/internal/model"
	"github.com/devpetry/vipi-matrizes/internal/repository"
)

// Both branches of the recovery request return this exact message so callers
// cannot probe which emails are registered.
const recoveryGenericMessage = "Se o e-mail estiver registrado, enviaremos as instruções de recuperação."

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type userResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func mapUserResponse(user model.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	// Unknown email and wrong password produce the same response.
	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			loginAttempts.WithLabelValues("failure").Inc()
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		s.log.Error("login lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	if err := crypto.CheckPassword(user.PasswordHash, req.Password); err != nil {
		loginAttempts.WithLabelValues("failure").Inc()
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	token, err := auth.NewSessionToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.SessionTTL, auth.Claims{
		UserID: user.ID,
		Role:   user.Role,
	})
	if err != nil {
		s.log.Error("session token issue failed", "error", err)
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.cfg.SessionTTL / time.Second),
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	loginAttempts.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, sessionResponse{Token: token, User: mapUserResponse(user)})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	// Sessions are stateless: the cookie is cleared and the token ages out.
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_session")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, mapUserResponse(user))
}

type recoverRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleRecoverPassword(w http.ResponseWriter, r *http.Request) {
	var req recoverRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_email")
		return
	}

	allowed, err := s.recoveryAllowed(r.Context(), req.Email)
	if err != nil {
		s.log.Error("recovery rate limit check failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !allowed {
		recoveryRequests.WithLabelValues("rate_limited").Inc()
		writeError(w, http.StatusTooManyRequests, "too_many_requests")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Same success-shaped response as the registered case.
			recoveryRequests.WithLabelValues("unknown_email").Inc()
			writeJSON(w, http.StatusOK, map[string]string{"message": recoveryGenericMessage})
			return
		}
		s.log.Error("recovery lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	token, err := crypto.NewRecoveryToken()
	if err != nil {
		s.log.Error("recovery token generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	expiresAt := time.Now().UTC().Add(s.cfg.RecoveryTokenTTL)
	if err := s.store.SetRecoveryToken(r.Context(), user.ID, crypto.HashToken(token), expiresAt); err != nil {
		s.log.Error("recovery token persist failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	link := s.cfg.RecoveryBaseURL + "/alterar-senha?token=" + token
	if s.mailer != nil {
		subject, body := internalmail.RecoveryMessage(user.Name, link, s.cfg.RecoveryTokenTTL)
		if err := s.mailer.Send(r.Context(), user.Email, subject, body); err != nil {
			// Delivery failure stays server-side; the response shape must not
			// change.
			s.log.Error("recovery email send failed", "error", err)
		}
	}

	recoveryRequests.WithLabelValues("issued").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"message": recoveryGenericMessage})
}

// recoveryAllowed caps token issuance per email per window. With no redis
// client configured the limit is disabled.
func (s *Server) recoveryAllowed(ctx context.Context, email string) (bool, error) {
	if s.redis == nil || s.cfg.RecoveryMaxPerWindow <= 0 {
		return true, nil
	}

	// INCR and the TTL travel in one pipeline so the key can never be left
	// without an expiry. ExpireNX only arms the window once per key.
	key := "recovery_requests:" + email
	pipe := s.redis.TxPipeline()
	count := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, s.cfg.RecoveryWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return count.Val() <= int64(s.cfg.RecoveryMaxPerWindow), nil
}

type resetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Token == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "password_too_short")
		return
	}

	err := s.store.ResetPasswordByToken(r.Context(), crypto.HashToken(req.Token), req.Password, time.Now().UTC())
	switch {
	case errors.Is(err, repository.ErrRecoveryTokenInvalid):
		recoveryRedemptions.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "invalid_or_expired_token")
		return
	case errors.Is(err, repository.ErrPasswordReuse):
		recoveryRedemptions.WithLabelValues("reuse").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "password_reuse",
			"message": "A nova senha deve ser diferente da anterior.",
		})
		return
	case err != nil:
		s.log.Error("password reset failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	recoveryRedemptions.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Senha redefinida com sucesso!"})
}
