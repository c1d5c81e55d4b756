package http

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/websync-digital/sunlit-blue-spark/internal/browser"
	"github.com/websync-digital/sunlit-blue-spark/internal/catalog"
	"github.com/websync-digital/sunlit-blue-spark/internal/domain"
	"github.com/websync-digital/sunlit-blue-spark/internal/handoff"
	"github.com/websync-digital/sunlit-blue-spark/internal/manager"
	"github.com/websync-digital/sunlit-blue-spark/internal/session"
	apperrors "github.com/websync-digital/sunlit-blue-spark/pkg/errors"
	"github.com/websync-digital/sunlit-blue-spark/pkg/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{
	"home", "about", "services", "projects", "contact",
	"products", "product", "login", "admin", "notfound",
}

// pageData is what every page template receives.
type pageData struct {
	Title      string
	Brand      string
	Theme      browser.Theme
	Admin      bool
	Phone      string
	ContactURL string
	Year       int
	Path       string
	Error      string
	Page       any
}

type productsPage struct {
	View      browser.View
	Favorites map[string]bool
}

type adminPage struct {
	View    manager.View
	Notices []manager.Notification
}

// PageHandler renders the HTML pages.
type PageHandler struct {
	templates map[string]*template.Template
	browsers  *browser.Registry
	managers  *manager.Registry
	sessions  *SessionHandler
	linker    *handoff.Linker
	brand     string
	phone     string
	logger    *slog.Logger
}

// NewPageHandler parses the embedded templates.
func NewPageHandler(
	browsers *browser.Registry,
	managers *manager.Registry,
	sessions *SessionHandler,
	linker *handoff.Linker,
	brand, phone string,
	logger *slog.Logger,
) (*PageHandler, error) {
	h := &PageHandler{
		templates: make(map[string]*template.Template, len(pageNames)),
		browsers:  browsers,
		managers:  managers,
		sessions:  sessions,
		linker:    linker,
		brand:     brand,
		phone:     phone,
		logger:    logger,
	}

	funcs := template.FuncMap{
		"price":   domain.FormatPrice,
		"inquiry": linker.InquiryURL,
	}
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, err
		}
		h.templates[name] = t
	}
	return h, nil
}

func (h *PageHandler) browser(r *http.Request) *browser.Browser {
	return h.browsers.Get(r.Context(), logger.VisitorIDFromContext(r.Context()))
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, page any, errMsg string) {
	s := session.FromContext(r.Context())
	data := pageData{
		Title:      title,
		Brand:      h.brand,
		Theme:      h.browser(r).Theme(),
		Admin:      s != nil && s.IsAdmin(),
		Phone:      h.phone,
		ContactURL: h.linker.ContactURL(),
		Year:       time.Now().Year(),
		Path:       r.URL.Path,
		Error:      errMsg,
		Page:       page,
	}

	var buf bytes.Buffer
	if err := h.templates[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		h.logger.ErrorContext(r.Context(), "render page failed",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// static renders one of the marketing pages.
func (h *PageHandler) static(name, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.render(w, r, http.StatusOK, name, title, nil, "")
	}
}

// NotFound renders the catch-all page.
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, "notfound", "Page not found", nil, "")
}

// --- Shop ---

// Products handles GET /products?q=&view=.
func (h *PageHandler) Products(w http.ResponseWriter, r *http.Request) {
	b := h.browser(r)
	_ = b.EnsureLoaded(r.Context())

	query := r.URL.Query()
	if q, ok := query["q"]; ok {
		b.Search(q[0])
	}
	switch view := query.Get("view"); view {
	case "":
	case "close":
		b.CloseQuickView()
	default:
		if _, err := b.OpenQuickView(view); err != nil {
			b.CloseQuickView()
		}
	}

	v := b.View()
	favorites := make(map[string]bool, len(v.Favorites))
	for _, id := range v.Favorites {
		favorites[id] = true
	}
	h.render(w, r, http.StatusOK, "products", "Products", productsPage{View: v, Favorites: favorites}, "")
}

// Product handles GET /products/{id}.
func (h *PageHandler) Product(w http.ResponseWriter, r *http.Request) {
	b := h.browser(r)
	_ = b.EnsureLoaded(r.Context())

	p, err := b.Detail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		var notFound *catalog.NotFoundError
		if errors.As(err, &notFound) {
			h.render(w, r, http.StatusNotFound, "product", "Product not found", nil, "")
			return
		}
		h.render(w, r, http.StatusBadGateway, "product", "Product", nil, err.Error())
		return
	}
	h.render(w, r, http.StatusOK, "product", p.Name, p, "")
}

// ToggleFavorite handles POST /products/{id}/favorite.
func (h *PageHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	h.browser(r).ToggleFavorite(r.Context(), chi.URLParam(r, "id"))
	redirectBack(w, r, "/products")
}

// ToggleTheme handles POST /theme.
func (h *PageHandler) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	h.browser(r).ToggleTheme(r.Context())
	redirectBack(w, r, "/")
}

// --- Login ---

// LoginForm handles GET /login.
func (h *PageHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if s := session.FromContext(r.Context()); s != nil && s.IsAdmin() {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "login", "Admin login", nil, "")
}

// Login handles POST /login.
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	creds := session.Credentials{Email: r.PostFormValue("email"), Password: r.PostFormValue("password")}
	if err := h.sessions.login(w, r, session.FromContext(r.Context()), creds); err != nil {
		h.render(w, r, http.StatusUnauthorized, "login", "Admin login", creds.Email, "Invalid email or password")
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// Logout handles POST /logout.
func (h *PageHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.logout(w, r); err != nil {
		h.logger.ErrorContext(r.Context(), "logout failed", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// --- Admin ---

func (h *PageHandler) manager(r *http.Request) *manager.Manager {
	return h.managers.Enter(r.Context(), session.FromContext(r.Context()).ID())
}

// Admin handles GET /admin?q=.
func (h *PageHandler) Admin(w http.ResponseWriter, r *http.Request) {
	m := h.manager(r)
	if q, ok := r.URL.Query()["q"]; ok {
		m.Search(q[0])
	}
	h.renderAdmin(w, r, m, http.StatusOK, "")
}

func (h *PageHandler) renderAdmin(w http.ResponseWriter, r *http.Request, m *manager.Manager, status int, errMsg string) {
	w.Header().Set("Cache-Control", "no-store")
	h.render(w, r, status, "admin", "Admin", adminPage{View: m.View(), Notices: m.Notifications()}, errMsg)
}

// adminAction runs fn and redirects to /admin, or re-renders the admin
// page with the error.
func (h *PageHandler) adminAction(fn func(r *http.Request, m *manager.Manager) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m := h.manager(r)
		if err := fn(r, m); err != nil {
			appErr := catalog.AppError(err)
			h.renderAdmin(w, r, m, apperrors.HTTPStatus(appErr), errorMessage(appErr))
			return
		}
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
	}
}

// AdminAdd handles POST /admin/products/new.
func (h *PageHandler) AdminAdd() http.HandlerFunc {
	return h.adminAction(func(_ *http.Request, m *manager.Manager) error {
		_, err := m.OpenAdd()
		return err
	})
}

// AdminEdit handles POST /admin/products/{id}/edit.
func (h *PageHandler) AdminEdit() http.HandlerFunc {
	return h.adminAction(func(r *http.Request, m *manager.Manager) error {
		_, err := m.OpenEdit(chi.URLParam(r, "id"))
		return err
	})
}

// AdminModal handles POST /admin/modal. The form carries every draft field,
// an optional file and action=save|cancel|preview.
func (h *PageHandler) AdminModal(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, MaxImageSize+(1<<20))
		if err := r.ParseMultipartForm(MaxImageSize); err != nil {
			h.renderAdmin(w, r, h.manager(r), http.StatusBadRequest, "Upload failed: "+err.Error())
			return
		}
	}

	h.adminAction(func(r *http.Request, m *manager.Manager) error {
		if r.PostFormValue("action") == "cancel" {
			m.Cancel()
			return nil
		}

		patch, err := draftPatchFromForm(r)
		if err != nil {
			return err
		}
		if _, err := m.UpdateDraft(patch); err != nil {
			return err
		}

		if r.MultipartForm != nil {
			if files := r.MultipartForm.File["file"]; len(files) > 0 && files[0].Size > 0 {
				name, contentType, data, err := readFileHeader(files[0])
				if err != nil {
					return err
				}
				if _, err := m.SelectImage(name, contentType, data); err != nil {
					return err
				}
			}
		}

		if r.PostFormValue("action") == "save" {
			_, err := m.Submit(r.Context())
			return err
		}
		return nil
	})(w, r)
}

// AdminRequestDelete handles POST /admin/products/{id}/delete.
func (h *PageHandler) AdminRequestDelete() http.HandlerFunc {
	return h.adminAction(func(r *http.Request, m *manager.Manager) error {
		_, err := m.RequestDelete(chi.URLParam(r, "id"))
		return err
	})
}

// AdminConfirmDelete handles POST /admin/delete/confirm with answer=yes|no.
func (h *PageHandler) AdminConfirmDelete() http.HandlerFunc {
	return h.adminAction(func(r *http.Request, m *manager.Manager) error {
		_, err := m.ConfirmDelete(r.Context(), r.PostFormValue("answer") == "yes")
		return err
	})
}

func draftPatchFromForm(r *http.Request) (manager.DraftPatch, error) {
	var patch manager.DraftPatch
	if v, ok := formValue(r, "name"); ok {
		patch.Name = &v
	}
	if v, ok := formValue(r, "short_description"); ok {
		patch.ShortDescription = &v
	}
	if v, ok := formValue(r, "full_description"); ok {
		patch.FullDescription = &v
	}
	if v, ok := formValue(r, "price_minor"); ok {
		v = strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		if v == "" {
			v = "0"
		}
		price, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return patch, apperrors.InvalidInput("price must be a whole number")
		}
		patch.PriceMinor = &price
	}
	return patch, nil
}

func formValue(r *http.Request, key string) (string, bool) {
	if r.PostForm == nil {
		if err := r.ParseForm(); err != nil {
			return "", false
		}
	}
	v, ok := r.PostForm[key]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

func errorMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// redirectBack returns to a same-site Referer path, or fallback.
func redirectBack(w http.ResponseWriter, r *http.Request, fallback string) {
	target := fallback
	if ref := r.Referer(); ref != "" {
		if i := strings.Index(ref, "://"); i >= 0 {
			rest := ref[i+3:]
			if host, path, ok := strings.Cut(rest, "/"); ok && host == r.Host {
				target = "/" + path
			}
		}
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
