package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/devpetry/vipi-matrizes/internal/auth"
	"github.com/devpetry/vipi-matrizes/internal/config"
	"github.com/devpetry/vipi-matrizes/internal/mail"
	"github.com/devpetry/vipi-matrizes/internal/model"
	"github.com/devpetry/vipi-matrizes/internal/repository"
)

const sessionCookie = "session"

type Server struct {
	cfg    config.Config
	store  *repository.Store
	mailer mail.Sender
	redis  *redis.Client
	log    *slog.Logger
}

// NewServer wires the HTTP surface. mailer and redisClient may be nil: a nil
// mailer skips recovery email delivery, a nil redis client disables the
// recovery rate limit.
func NewServer(cfg config.Config, store *repository.Store, mailer mail.Sender, redisClient *redis.Client, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		store:  store,
		mailer: mailer,
		redis:  redisClient,
		log:    log,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/recover", s.handleRecoverPassword)
	r.Post("/auth/reset", s.handleResetPassword)
	r.With(s.authMiddleware).Post("/auth/logout", s.handleLogout)
	r.With(s.authMiddleware).Get("/auth/me", s.handleGetMe)

	r.Route("/users", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListUsers)
		r.Get("/{userID}", s.handleGetUser)
		r.With(s.requireAdmin).Post("/", s.handleCreateUser)
		r.With(s.requireAdmin).Put("/{userID}", s.handleUpdateUser)
		r.With(s.requireAdmin).Delete("/{userID}", s.handleDeleteUser)
	})

	r.Route("/categories", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListCategories)
		r.Post("/", s.handleCreateCategory)
		r.Get("/{categoryID}", s.handleGetCategory)
		r.Put("/{categoryID}", s.handleUpdateCategory)
		r.Delete("/{categoryID}", s.handleDeleteCategory)
	})

	r.Route("/items", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListItems)
		r.Post("/", s.handleCreateItem)
		r.Get("/{itemID}", s.handleGetItem)
		r.Put("/{itemID}", s.handleUpdateItem)
		r.Delete("/{itemID}", s.handleDeleteItem)
	})

	r.Route("/matrices", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListMatrices)
		r.Post("/", s.handleCreateMatrix)
		r.Get("/{matrixID}", s.handleGetMatrix)
		r.Put("/{matrixID}", s.handleUpdateMatrix)
		r.Delete("/{matrixID}", s.handleDeleteMatrix)
	})

	return r
}

// authMiddleware requires a valid session. The token is accepted from the
// session cookie or an Authorization bearer header.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_session")
			return
		}

		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_session")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil || claims.Role != model.RoleAdmin {
			writeError(w, http.StatusForbidden, "admin_only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type claimsKey struct{}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func sessionToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
