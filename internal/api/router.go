package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/asesorlegal/backend/internal/config"
)

var pages = map[string]string{
	"/":              "index.html",
	"/menu":          "menu.html",
	"/chat":          "chat.html",
	"/document-chat": "document-chat.html",
}

func NewRouter(apiHandler *APIHandler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling
	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	limiter := newRateLimiter(cfg.Limits.RateLimitRequests, cfg.Limits.RateLimitWindow)

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		r.Use(limiter.Middleware)

		r.Get("/health", apiHandler.HealthHandler)

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.AuthMiddleware)

			r.Post("/chatWithAI", apiHandler.ChatWithAIHandler)
			r.Post("/analyzeDocument", apiHandler.AnalyzeDocumentHandler)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found", Details: "Ruta no encontrada"})
		})
	})

	r.Get("/env-config.js", apiHandler.EnvConfigHandler)

	for route, file := range pages {
		r.Get(route, servePage(filepath.Join(cfg.StaticDir, file)))
	}

	r.NotFound(staticOrRedirect(cfg.StaticDir))

	return r
}

func servePage(file string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, file)
	}
}

// staticOrRedirect serves existing assets from dir and sends every other
// path back to the landing page.
func staticOrRedirect(dir string) http.HandlerFunc {
	files := http.FileServer(http.Dir(dir))
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found", Details: "Ruta no encontrada"})
			return
		}
		name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(name); err == nil && !info.IsDir() && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
			files.ServeHTTP(w, r)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
	}
}
