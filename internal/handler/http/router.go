package http

import (
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/websync-digital/sunlit-blue-spark/internal/browser"
	"github.com/websync-digital/sunlit-blue-spark/internal/handoff"
	"github.com/websync-digital/sunlit-blue-spark/internal/manager"
	"github.com/websync-digital/sunlit-blue-spark/internal/session"
	"github.com/websync-digital/sunlit-blue-spark/pkg/health"
	"github.com/websync-digital/sunlit-blue-spark/pkg/middleware"
	"github.com/websync-digital/sunlit-blue-spark/web"
)

const staticMaxAge = 24 * time.Hour

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	ServiceName   string
	Gate          *session.Gate
	Managers      *manager.Registry
	Browsers      *browser.Registry
	Linker        *handoff.Linker
	Brand         string
	Phone         string
	SecureCookies bool
	LoginLimiter  *middleware.RateLimiter
	Metrics       *middleware.HTTPMetrics
	Health        *health.Handler
	// Media serves stored images below MediaPrefix when the storage driver
	// keeps them in-process. Nil when images live elsewhere.
	Media       http.Handler
	MediaPrefix string
	CORSOrigins []string
	PprofCIDRs  []string
	Logger      *slog.Logger
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(d Deps) (http.Handler, error) {
	c := cookies{secure: d.SecureCookies}
	sessions := NewSessionHandler(d.Gate, c, d.Logger)
	catalogHandler := NewCatalogHandler(d.Browsers, d.Linker, d.Phone, d.Logger)
	adminHandler := NewAdminHandler(d.Managers, d.Logger)
	pages, err := NewPageHandler(d.Browsers, d.Managers, sessions, d.Linker, d.Brand, d.Phone, d.Logger)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(d.CORSOrigins)))
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestLogging(d.Logger))
	r.Use(middleware.Tracing(d.ServiceName))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}

	// Health check endpoints
	r.Get("/health/live", d.Health.LivenessHandler())
	r.Get("/health/ready", d.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, d.PprofCIDRs, d.Logger)

	static, err := fs.Sub(web.Static, "static")
	if err != nil {
		return nil, err
	}
	r.With(middleware.CacheControl(staticMaxAge)).
		Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	if d.Media != nil {
		r.Handle(d.MediaPrefix+"/*", http.StripPrefix(d.MediaPrefix, d.Media))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(d.Gate.Validate, SessionCookie))
		r.Use(Sessions(d.Gate, c, d.Logger))
		r.Use(Profiles(c))
		r.Use(middleware.RequestLogger(d.Logger))

		// Pages
		r.Get("/", pages.static("home", "Home"))
		r.Get("/about", pages.static("about", "About"))
		r.Get("/services", pages.static("services", "Services"))
		r.Get("/projects", pages.static("projects", "Projects"))
		r.Get("/contact", pages.static("contact", "Contact"))
		r.Get("/products", pages.Products)
		r.Get("/products/{id}", pages.Product)
		r.Post("/products/{id}/favorite", pages.ToggleFavorite)
		r.Post("/theme", pages.ToggleTheme)
		r.Get("/login", pages.LoginForm)
		r.With(middleware.RateLimit(d.LoginLimiter, d.Logger)).Post("/login", pages.Login)
		r.Post("/logout", pages.Logout)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole("/login", session.RoleAdmin))
			r.Use(middleware.NoStore)

			r.Get("/", pages.Admin)
			r.Post("/products/new", pages.AdminAdd())
			r.Post("/products/{id}/edit", pages.AdminEdit())
			r.Post("/products/{id}/delete", pages.AdminRequestDelete())
			r.Post("/modal", pages.AdminModal)
			r.Post("/delete/confirm", pages.AdminConfirmDelete())
			r.Get("/previews/{token}", adminHandler.Preview)
		})

		// Catalog API
		r.Route("/api/v1/catalog", func(r chi.Router) {
			r.Use(ContentTypeJSON)

			r.Get("/products", catalogHandler.ListProducts)
			r.Post("/reload", catalogHandler.Reload)
			r.Get("/products/{id}", catalogHandler.GetProduct)
			r.Post("/products/{id}/quick-view", catalogHandler.OpenQuickView)
			r.Get("/quick-view", catalogHandler.GetQuickView)
			r.Delete("/quick-view", catalogHandler.CloseQuickView)
			r.Get("/favorites", catalogHandler.ListFavorites)
			r.Post("/favorites/{id}/toggle", catalogHandler.ToggleFavorite)
			r.Get("/theme", catalogHandler.GetTheme)
			r.Put("/theme", catalogHandler.SetTheme)
			r.Post("/theme/toggle", catalogHandler.ToggleTheme)
			r.Get("/contact", catalogHandler.Contact)
		})

		// Session API
		r.Route("/api/v1/session", func(r chi.Router) {
			r.Use(ContentTypeJSON)

			r.Get("/", sessions.Me)
			r.With(middleware.RateLimit(d.LoginLimiter, d.Logger)).Post("/login", sessions.Login)
			r.Post("/logout", sessions.Logout)
		})

		// Admin API
		r.Route("/api/v1/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole("", session.RoleAdmin))
			r.Use(middleware.NoStore)
			r.Use(ContentTypeJSON)

			r.Get("/", adminHandler.GetView)
			r.Post("/reload", adminHandler.Reload)
			r.Get("/products", adminHandler.ListProducts)
			r.Put("/search", adminHandler.Search)
			r.Get("/stats", adminHandler.Stats)
			r.Get("/notifications", adminHandler.Notifications)

			r.Get("/modal", adminHandler.GetModal)
			r.Patch("/modal", adminHandler.UpdateDraft)
			r.Delete("/modal", adminHandler.Cancel)
			r.Post("/modal/add", adminHandler.OpenAdd)
			r.Post("/modal/edit/{id}", adminHandler.OpenEdit)
			r.Post("/modal/image", adminHandler.SelectImage)
			r.Post("/modal/submit", adminHandler.Submit)

			r.Post("/products/{id}/delete", adminHandler.RequestDelete)
			r.Post("/delete/confirm", adminHandler.ConfirmDelete)
		})

		r.NotFound(pages.NotFound)
	})

	return r, nil
}
