package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/collabhub/collabhub/internal/api/auth"
	"github.com/collabhub/collabhub/internal/api/ideas"
	"github.com/collabhub/collabhub/internal/api/middleware"
	"github.com/collabhub/collabhub/internal/api/projects"
	"github.com/collabhub/collabhub/internal/api/users"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	jwtService := auth.NewJWTService(s.config.JWTSecret, s.config.AccessTokenTTL)

	// Create rate limiters
	ipLimiter := middleware.NewRateLimiterWindow(s.config.RateLimitPerIP, s.config.AuthRateWindow)
	userLimiter := middleware.NewRateLimiter(s.config.RateLimitPerUser)
	s.closers = append(s.closers, ipLimiter.Close, userLimiter.Close)

	// Global middleware
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecurityHeaders(s.ips))
	r.Use(middleware.CORS(s.config.CORSOrigins))
	r.Use(middleware.PrometheusMiddleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		JSONError(w, ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		JSONError(w, ErrMethodNotAllowed)
	})

	authHandler := auth.NewHandler(s.storage, jwtService, s.deps.Lockout, auth.Options{
		RefreshTTL: s.config.RefreshTokenTTL,
		BcryptCost: s.config.BcryptCost,
		ResetURL:   s.config.ResetURL,
		Mailer:     s.deps.Mailer,
	})
	userHandler := users.NewHandler(s.storage, s.config.BcryptCost)
	ideaHandler := ideas.NewHandler(s.storage)
	projectHandler := projects.NewHandler(s.storage)

	requireAuth := middleware.JWTAuth(jwtService)
	limitUser := middleware.RateLimitByUser(userLimiter, s.ips)

	r.Route("/api", func(r chi.Router) {
		// Health checks (public, no rate limit)
		r.Route("/health", func(r chi.Router) {
			r.Get("/", s.healthHandler.Health)
			r.Get("/live", s.healthHandler.Live)
			r.Get("/ready", s.healthHandler.Ready)
		})

		r.Route("/auth", func(r chi.Router) {
			// Public routes with IP rate limiting
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitByIP(ipLimiter, s.ips))
				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)
				r.Post("/refresh", authHandler.Refresh)
				r.Post("/forgot-password", authHandler.ForgotPassword)
				r.Post("/reset-password", authHandler.ResetPassword)
			})

			// Protected routes
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/logout", authHandler.Logout)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(limitUser)

			r.Get("/me", userHandler.GetCurrentUser)
			r.Put("/me", userHandler.UpdateCurrentUser)
			r.Put("/me/password", userHandler.ChangePassword)
			r.Get("/{id}", userHandler.GetByID)

			r.With(middleware.RequireAdmin).Get("/", userHandler.List)
		})

		r.Route("/ideas", func(r chi.Router) {
			r.Get("/", ideaHandler.List)
			r.Get("/{id}", ideaHandler.Get)
			r.With(requireAuth, limitUser).Post("/", ideaHandler.Create)
		})

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", projectHandler.List)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Use(limitUser)
				r.Post("/join/{ideaId}", projectHandler.Join)
				r.Get("/my-projects", projectHandler.MyProjects)
				r.Put("/{id}/status", projectHandler.UpdateStatus)
				r.Delete("/{id}/members/me", projectHandler.Leave)
			})

			r.Get("/{id}", projectHandler.Get)
		})
	})

	return r
}
