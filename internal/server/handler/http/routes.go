package http

import (
	"net/http"

	"github.com/balalab/portal/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs the HTTP handler serving the lab-report portal API.
//
// Routes:
//
//	POST   /api/auth/register            → authHandler.Register
//	POST   /api/auth/login               → authHandler.Login
//	GET    /api/auth/me                  → authHandler.Me        (auth)
//	GET    /api/reports                  → reportHandler.List    (auth)
//	GET    /api/reports/{id}/download    → reportHandler.Download (auth)
//	GET    /api/reports/{id}/preview     → reportHandler.Preview  (auth, ?token= accepted)
//	POST   /api/reports/upload           → reportHandler.Upload   (auth, admin)
//	DELETE /api/reports/{id}             → reportHandler.Delete   (auth, admin)
//	GET    /api/users                    → userHandler.List       (auth, admin)
//
// The JSON content-type guard is scoped to the auth endpoints; the upload
// endpoint takes multipart form data.
func NewRouter(
	authHandler *AuthHandler,
	reportHandler *ReportHandler,
	userHandler *UserHandler,
	parser middleware.TokenParser,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "online"})
	})

	// Mount API routes
	r.Route("/api", func(r chi.Router) {
		// Public endpoints
		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.AllowContentType("application/json"))
			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/login", authHandler.Login)
		})

		// Protected group: requires a valid bearer token
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(parser))

			r.Get("/auth/me", authHandler.Me)
			r.Get("/reports", reportHandler.List)
			r.Get("/reports/{id}/download", reportHandler.Download)
			r.Get("/reports/{id}/preview", reportHandler.Preview)

			// Admin-only group
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Get("/users", userHandler.List)
				r.Post("/reports/upload", reportHandler.Upload)
				r.Delete("/reports/{id}", reportHandler.Delete)
			})
		})
	})

	return r
}
