package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"review-auth/internal/config"
	"review-auth/internal/filter"
	"review-auth/internal/util"
)

// NewRouter assembles the HTTP surface. The defense chain runs after the
// infrastructure middleware (request id, real ip, recovery) and before every
// route, so no handler ever sees a request the chain rejected.
func NewRouter(cfg *config.Config, chain *filter.Chain, auth *AuthHandler, health http.HandlerFunc) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins(cfg),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(chain.Middleware)

	r.Get("/health", health)

	r.Route("/api", func(api chi.Router) {
		auth.RegisterRoutes(api)
	})

	// Interactive surface.
	r.Post("/login", auth.InteractiveLogin)
	r.Get("/logout", auth.InteractiveLogout)
	r.Post("/logout", auth.InteractiveLogout)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

func corsOrigins(cfg *config.Config) []string {
	if cfg.IsProduction() && cfg.Server.Domain != "" {
		return []string{"https://" + cfg.Server.Domain}
	}
	return []string{"*"}
}

// LoggerMiddleware logs every request with latency and status.
func LoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		util.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("remote_addr", r.RemoteAddr))
	})
}
