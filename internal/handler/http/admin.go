package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/websync-digital/sunlit-blue-spark/internal/catalog"
	"github.com/websync-digital/sunlit-blue-spark/internal/domain"
	"github.com/websync-digital/sunlit-blue-spark/internal/manager"
	"github.com/websync-digital/sunlit-blue-spark/internal/session"
	apperrors "github.com/websync-digital/sunlit-blue-spark/pkg/errors"
	"github.com/websync-digital/sunlit-blue-spark/pkg/httputil"
	"github.com/websync-digital/sunlit-blue-spark/pkg/validator"
)

// MaxImageSize caps a selected product image.
const MaxImageSize = 5 << 20

// AdminHandler serves the admin catalog API for the session's manager.
type AdminHandler struct {
	managers *manager.Registry
	logger   *slog.Logger
}

// NewAdminHandler creates an admin HTTP handler.
func NewAdminHandler(managers *manager.Registry, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{managers: managers, logger: logger}
}

// --- Request DTOs ---

type searchRequest struct {
	Query string `json:"query"`
}

type confirmRequest struct {
	Confirm bool `json:"confirm"`
}

// --- Response DTOs ---

type deleteResponse struct {
	Removed  bool `json:"removed"`
	Products int  `json:"products"`
}

// manager returns the session's manager after its entry load. A failed
// load is reported through the view, not as a request error.
func (h *AdminHandler) manager(r *http.Request) *manager.Manager {
	return h.managers.Enter(r.Context(), session.FromContext(r.Context()).ID())
}

func (h *AdminHandler) write(w http.ResponseWriter, m *manager.Manager, status int, data any) {
	resp := httputil.Response{Data: data}
	if notices := m.Notifications(); len(notices) > 0 {
		resp.Notices = notices
	}
	httputil.WriteJSON(w, status, resp)
}

func (h *AdminHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		httputil.WriteValidationError(w, valErr)
		return
	}
	httputil.WriteError(w, r, catalog.AppError(err), h.logger)
}

// --- Handlers ---

// GetView handles GET /api/v1/admin.
func (h *AdminHandler) GetView(w http.ResponseWriter, r *http.Request) {
	m := h.manager(r)
	h.write(w, m, http.StatusOK, m.View())
}

// Reload handles POST /api/v1/admin/reload.
func (h *AdminHandler) Reload(w http.ResponseWriter, r *http.Request) {
	m := h.managers.Get(session.FromContext(r.Context()).ID())
	if err := m.Load(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	h.write(w, m, http.StatusOK, m.View())
}

// ListProducts handles GET /api/v1/admin/products. The current search filter
// applies.
func (h *AdminHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	m := h.manager(r)
	products := m.Filtered()
	if products == nil {
		products = []domain.Product{}
	}
	h.write(w, m, http.StatusOK, products)
}

// Search handles PUT /api/v1/admin/search.
func (h *AdminHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	m := h.manager(r)
	h.write(w, m, http.StatusOK, m.Search(req.Query))
}

// Stats handles GET /api/v1/admin/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	m := h.manager(r)
	h.write(w, m, http.StatusOK, m.Stats())
}

// OpenAdd handles POST /api/v1/admin/modal/add.
func (h *AdminHandler) OpenAdd(w http.ResponseWriter, r *http.Request) {
	m := h.manager(r)
	modal, err := m.OpenAdd()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.write(w, m, http.StatusOK, modal)
}

// OpenEdit handles POST /api/v1/admin/modal/edit/{id}.
func (h *AdminHandler) OpenEdit(w http.ResponseWriter, r *http.Request) {
	m := h.manager(r)
	modal, err := m.OpenEdit(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.write(w, m, http.StatusOK, modal)
}

// GetModal handles GET /api/v1/admin/modal.
func (h *AdminHandler) GetModal(w http.ResponseWriter, r *http.Request) {
	modal, ok := h.manager(r).Modal()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: modal})
}

// UpdateDraft handles PATCH /api/v1/admin/modal.
func (h *AdminHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	var patch manager.DraftPatch
	if err := httputil.DecodeJSON(r, &patch); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	m := h.manager(r)
	modal, err := m.UpdateDraft(patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.write(w, m, http.StatusOK, modal)
}

// SelectImage handles POST /api/v1/admin/modal/image (multipart, field "file").
func (h *AdminHandler) SelectImage(w http.ResponseWriter, r *http.Request) {
	name, contentType, data, err := readImage(w, r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	m := h.manager(r)
	modal, err := m.SelectImage(name, contentType, data)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.write(w, m, http.StatusOK, modal)
}

// Cancel handles DELETE /api/v1/admin/modal.
func (h *AdminHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.manager(r).Cancel()
	w.WriteHeader(http.StatusNoContent)
}

// Submit handles POST /api/v1/admin/modal/submit.
func (h *AdminHandler) Submit(w http.ResponseWriter, r *http.Request) {
	m := h.manager(r)
	product, err := m.Submit(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.write(w, m, http.StatusOK, product)
}

// RequestDelete handles POST /api/v1/admin/products/{id}/delete.
func (h *AdminHandler) RequestDelete(w http.ResponseWriter, r *http.Request) {
	m := h.manager(r)
	c, err := m.RequestDelete(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.write(w, m, http.StatusOK, c)
}

// ConfirmDelete handles POST /api/v1/admin/delete/confirm.
func (h *AdminHandler) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	m := h.manager(r)
	removed, err := m.ConfirmDelete(r.Context(), req.Confirm)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.write(w, m, http.StatusOK, deleteResponse{Removed: removed, Products: len(m.Products())})
}

// Notifications handles GET /api/v1/admin/notifications.
func (h *AdminHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	notices := h.manager(r).Notifications()
	if notices == nil {
		notices = []manager.Notification{}
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: notices})
}

// Preview handles GET /admin/previews/{token}.
func (h *AdminHandler) Preview(w http.ResponseWriter, r *http.Request) {
	contentType, data, ok := h.manager(r).Preview(chi.URLParam(r, "token"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

// readImage reads the "file" part of a multipart request.
func readImage(w http.ResponseWriter, r *http.Request) (name, contentType string, data []byte, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxImageSize+(1<<20))
	if err := r.ParseMultipartForm(MaxImageSize); err != nil {
		return "", "", nil, apperrors.InvalidInput("failed to parse multipart form: " + err.Error())
	}
	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		return "", "", nil, apperrors.InvalidInput("file is required")
	}
	return readFileHeader(files[0])
}

// readFileHeader reads one uploaded file, enforcing MaxImageSize.
func readFileHeader(header *multipart.FileHeader) (name, contentType string, data []byte, err error) {
	if header.Size > MaxImageSize {
		return "", "", nil, apperrors.InvalidInput(fmt.Sprintf("image exceeds %d bytes", MaxImageSize))
	}
	file, err := header.Open()
	if err != nil {
		return "", "", nil, apperrors.InvalidInput("open file: " + err.Error())
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		return "", "", nil, apperrors.InvalidInput("read file: " + err.Error())
	}
	contentType = header.Header.Get("Content-Type")
	if contentType == "application/octet-stream" {
		contentType = ""
	}
	return header.Filename, contentType, data, nil
}
