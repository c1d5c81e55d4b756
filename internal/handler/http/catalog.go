package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/websync-digital/sunlit-blue-spark/internal/browser"
	"github.com/websync-digital/sunlit-blue-spark/internal/catalog"
	"github.com/websync-digital/sunlit-blue-spark/internal/domain"
	"github.com/websync-digital/sunlit-blue-spark/internal/handoff"
	"github.com/websync-digital/sunlit-blue-spark/pkg/httputil"
	"github.com/websync-digital/sunlit-blue-spark/pkg/logger"
)

// CatalogHandler serves the shopper's catalog API.
type CatalogHandler struct {
	browsers *browser.Registry
	linker   *handoff.Linker
	phone    string
	logger   *slog.Logger
}

// NewCatalogHandler creates a catalog HTTP handler.
func NewCatalogHandler(browsers *browser.Registry, linker *handoff.Linker, phone string, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{browsers: browsers, linker: linker, phone: phone, logger: logger}
}

// --- Request DTOs ---

type themeRequest struct {
	Theme string `json:"theme"`
}

// --- Response DTOs ---

type favoriteResponse struct {
	ProductID string   `json:"product_id"`
	Favorite  bool     `json:"favorite"`
	Favorites []string `json:"favorites"`
}

type themeResponse struct {
	Theme browser.Theme `json:"theme"`
}

type contactResponse struct {
	Phone       string `json:"phone"`
	WhatsAppURL string `json:"whatsapp_url,omitempty"`
}

func (h *CatalogHandler) browser(r *http.Request) *browser.Browser {
	return h.browsers.Get(r.Context(), logger.VisitorIDFromContext(r.Context()))
}

// --- Handlers ---

// ListProducts handles GET /api/v1/catalog/products?q=.
// A failed load is reported inside the view, not as an error status.
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	b := h.browser(r)
	_ = b.EnsureLoaded(r.Context())
	if q, ok := r.URL.Query()["q"]; ok {
		b.Search(q[0])
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: b.View()})
}

// Reload handles POST /api/v1/catalog/reload.
func (h *CatalogHandler) Reload(w http.ResponseWriter, r *http.Request) {
	b := h.browser(r)
	if err := b.Load(r.Context()); err != nil {
		httputil.WriteError(w, r, catalog.AppError(err), h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: b.View()})
}

// GetProduct handles GET /api/v1/catalog/products/{id}.
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	b := h.browser(r)
	_ = b.EnsureLoaded(r.Context())

	p, err := b.Detail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, catalog.AppError(err), h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: browser.QuickView{
		Product:    p,
		Price:      domain.FormatPrice(p.PriceMinor),
		InquiryURL: h.linker.InquiryURL(p),
	}})
}

// OpenQuickView handles POST /api/v1/catalog/products/{id}/quick-view.
func (h *CatalogHandler) OpenQuickView(w http.ResponseWriter, r *http.Request) {
	b := h.browser(r)
	_ = b.EnsureLoaded(r.Context())

	qv, err := b.OpenQuickView(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, catalog.AppError(err), h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: qv})
}

// GetQuickView handles GET /api/v1/catalog/quick-view.
func (h *CatalogHandler) GetQuickView(w http.ResponseWriter, r *http.Request) {
	qv, ok := h.browser(r).QuickView()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: qv})
}

// CloseQuickView handles DELETE /api/v1/catalog/quick-view.
func (h *CatalogHandler) CloseQuickView(w http.ResponseWriter, r *http.Request) {
	h.browser(r).CloseQuickView()
	w.WriteHeader(http.StatusNoContent)
}

// ListFavorites handles GET /api/v1/catalog/favorites.
func (h *CatalogHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.browser(r).Favorites()})
}

// ToggleFavorite handles POST /api/v1/catalog/favorites/{id}/toggle.
func (h *CatalogHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	b := h.browser(r)
	id := chi.URLParam(r, "id")
	favorite := b.ToggleFavorite(r.Context(), id)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: favoriteResponse{
		ProductID: id,
		Favorite:  favorite,
		Favorites: b.Favorites(),
	}})
}

// GetTheme handles GET /api/v1/catalog/theme.
func (h *CatalogHandler) GetTheme(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: themeResponse{Theme: h.browser(r).Theme()}})
}

// SetTheme handles PUT /api/v1/catalog/theme.
func (h *CatalogHandler) SetTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	theme, err := browser.ParseTheme(req.Theme)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	b := h.browser(r)
	if err := b.SetTheme(r.Context(), theme); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: themeResponse{Theme: theme}})
}

// ToggleTheme handles POST /api/v1/catalog/theme/toggle.
func (h *CatalogHandler) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	theme := h.browser(r).ToggleTheme(r.Context())
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: themeResponse{Theme: theme}})
}

// Contact handles GET /api/v1/catalog/contact.
func (h *CatalogHandler) Contact(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: contactResponse{
		Phone:       h.phone,
		WhatsAppURL: h.linker.ContactURL(),
	}})
}
