// Package manager holds the admin catalog workflow: the loaded product list,
// the search box, the add/edit form and the delete confirmation. Successful
// mutations are reconciled into the local list without refetching.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/websync-digital/sunlit-blue-spark/internal/catalog"
	"github.com/websync-digital/sunlit-blue-spark/internal/domain"
	apperrors "github.com/websync-digital/sunlit-blue-spark/pkg/errors"
	"github.com/websync-digital/sunlit-blue-spark/pkg/validator"
)

// PreviewPath prefixes the URLs of selected images that are not uploaded yet.
const PreviewPath = "/admin/previews/"

// Workflow errors.
var (
	ErrModalBusy = &apperrors.AppError{
		Code: "MODAL_BUSY", Message: "another product form is already open",
		Status: http.StatusConflict, Err: apperrors.ErrConflict,
	}
	ErrSubmitting = &apperrors.AppError{
		Code: "SUBMITTING", Message: "the product form is being saved",
		Status: http.StatusConflict, Err: apperrors.ErrConflict,
	}
	ErrNoModal = &apperrors.AppError{
		Code: "NO_FORM", Message: "no product form is open",
		Status: http.StatusConflict, Err: apperrors.ErrConflict,
	}
	ErrNoPendingDelete = &apperrors.AppError{
		Code: "NO_PENDING_DELETE", Message: "no delete is awaiting confirmation",
		Status: http.StatusConflict, Err: apperrors.ErrConflict,
	}
	ErrClosed = &apperrors.AppError{
		Code: "SESSION_CLOSED", Message: "the admin session has ended",
		Status: http.StatusGone, Err: apperrors.ErrConflict,
	}
)

// Catalog is the remote catalog as the manager uses it.
type Catalog interface {
	ListAll(ctx context.Context) ([]domain.Product, error)
	Create(ctx context.Context, draft domain.ProductDraft) (domain.Product, error)
	Update(ctx context.Context, id string, patch domain.ProductDraft) (domain.Product, error)
	Delete(ctx context.Context, id string) error
	UploadImage(ctx context.Context, data []byte, fileName string) (string, error)
	DeleteImage(ctx context.Context, url string) error
}

// Events receives successful mutations.
type Events interface {
	ProductCreated(ctx context.Context, p domain.Product) error
	ProductUpdated(ctx context.Context, p domain.Product) error
	ProductDeleted(ctx context.Context, id string) error
}

// Options configure a Manager.
type Options struct {
	Layout              Layout
	PlaceholderImageURL string
	Events              Events
	Logger              *slog.Logger
}

type imageFile struct {
	token       string
	name        string
	contentType string
	data        []byte
}

type workflow struct {
	token         string
	mode          Mode
	productID     string
	originalImage string
	draft         domain.ProductDraft
	state         WorkflowState
	image         *imageFile
	lastError     string
}

// Manager is the admin view of the catalog for one session. It is safe for
// concurrent use; no lock is held while the remote catalog is called.
type Manager struct {
	catalog     Catalog
	events      Events
	logger      *slog.Logger
	layout      Layout
	placeholder string

	mu            sync.Mutex
	epoch         uint64
	closed        bool
	loadState     LoadState
	loading       chan struct{}
	loadErr       string
	products      []domain.Product
	query         string
	modal         *workflow
	pendingDelete *Confirmation
	notices       []Notification
}

// New creates a manager in the Idle state.
func New(c Catalog, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Layout == "" {
		opts.Layout = LayoutSidebar
	}
	return &Manager{
		catalog:     c,
		events:      opts.Events,
		logger:      opts.Logger,
		layout:      opts.Layout,
		placeholder: opts.PlaceholderImageURL,
	}
}

// Load fetches the whole catalog and replaces the local list. A failure
// empties the list and keeps the message as the inline error.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	return m.load(ctx)
}

// load runs one ListAll. It is called with m.mu held and releases it while
// the remote call is in flight.
func (m *Manager) load(ctx context.Context) error {
	m.loadState = LoadLoading
	epoch := m.epoch
	done := make(chan struct{})
	m.loading = done
	m.mu.Unlock()

	products, err := m.catalog.ListAll(context.WithoutCancel(ctx))

	m.mu.Lock()
	defer m.mu.Unlock()
	close(done)
	if m.loading == done {
		m.loading = nil
	}
	if m.epoch != epoch {
		return ErrClosed
	}
	if err != nil {
		m.loadState = LoadFailed
		m.loadErr = err.Error()
		m.products = nil
		m.notify(KindError, "Error fetching products", err.Error())
		m.logger.WarnContext(ctx, "catalog load failed", slog.String("error", err.Error()))
		return err
	}

	m.loadState = LoadReady
	m.loadErr = ""
	m.products = products
	return nil
}

// EnsureLoaded performs the entry load of the catalog. Only the first call
// fetches; calls arriving while that fetch is in flight wait for it, and
// later calls return at once so mutations are never followed by a refetch.
func (m *Manager) EnsureLoaded(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	switch m.loadState {
	case LoadIdle:
		return m.load(ctx)
	case LoadLoading:
		done := m.loading
		m.mu.Unlock()
		if done == nil {
			return nil
		}
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	default:
		m.mu.Unlock()
		return nil
	}
}

// Products returns a copy of the full local list.
func (m *Manager) Products() []domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Product(nil), m.products...)
}

// Search sets the search query and returns the matching products.
func (m *Manager) Search(query string) []domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.query = query
	return domain.Filter(m.products, query)
}

// Filtered returns the products matching the current query.
func (m *Manager) Filtered() []domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.Filter(m.products, m.query)
}

// Stats summarises the full local list.
func (m *Manager) Stats() domain.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.Summarize(m.products)
}

// Layout returns the configured admin layout.
func (m *Manager) Layout() Layout { return m.layout }

// OpenAdd opens an empty add form.
func (m *Manager) OpenAdd() (Modal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkCanOpen(); err != nil {
		return Modal{}, err
	}
	m.modal = &workflow{token: uuid.NewString(), mode: ModeAdd, state: StateOpen}
	return m.modal.view(), nil
}

// OpenEdit opens the edit form prefilled with the product with id.
func (m *Manager) OpenEdit(id string) (Modal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkCanOpen(); err != nil {
		return Modal{}, err
	}
	i := domain.IndexOf(m.products, id)
	if i < 0 {
		return Modal{}, &catalog.NotFoundError{ID: id}
	}

	p := m.products[i]
	m.modal = &workflow{
		token:         uuid.NewString(),
		mode:          ModeEdit,
		productID:     p.ID,
		originalImage: p.ImageURL,
		draft:         p.Draft(),
		state:         StateOpen,
	}
	return m.modal.view(), nil
}

func (m *Manager) checkCanOpen() error {
	if m.closed {
		return ErrClosed
	}
	if m.modal != nil {
		return ErrModalBusy
	}
	return nil
}

// Modal returns the open form, if any.
func (m *Manager) Modal() (Modal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.modal == nil {
		return Modal{}, false
	}
	return m.modal.view(), true
}

// UpdateDraft applies patch to the open form.
func (m *Manager) UpdateDraft(patch DraftPatch) (Modal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wf, err := m.editableModal()
	if err != nil {
		return Modal{}, err
	}
	patch.apply(&wf.draft)
	return wf.view(), nil
}

// SelectImage attaches a local file to the open form. Nothing is uploaded
// until Submit; the returned modal carries a preview URL for the file.
func (m *Manager) SelectImage(fileName, contentType string, data []byte) (Modal, error) {
	if len(data) == 0 {
		return Modal{}, apperrors.InvalidInput("selected image is empty")
	}
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return Modal{}, apperrors.InvalidInput("selected file is not an image")
	}
	contentType = http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return Modal{}, apperrors.InvalidInput("selected file is not an image")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	wf, err := m.editableModal()
	if err != nil {
		return Modal{}, err
	}
	wf.image = &imageFile{
		token:       uuid.NewString(),
		name:        fileName,
		contentType: contentType,
		data:        data,
	}
	return wf.view(), nil
}

// Preview returns the selected image behind a preview token.
func (m *Manager) Preview(token string) (contentType string, data []byte, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.modal == nil || m.modal.image == nil || m.modal.image.token != token {
		return "", nil, false
	}
	return m.modal.image.contentType, m.modal.image.data, true
}

func (m *Manager) editableModal() (*workflow, error) {
	if m.closed {
		return nil, ErrClosed
	}
	if m.modal == nil {
		return nil, ErrNoModal
	}
	if m.modal.state == StateSubmitting {
		return nil, ErrSubmitting
	}
	return m.modal, nil
}

// Cancel discards the open form. A submit already in flight is not
// aborted; its result is still reconciled into the list.
func (m *Manager) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modal = nil
}

// Submit saves the open form. A selected image is uploaded first and an
// upload failure aborts the save. On failure the form returns to Open with
// the draft intact.
func (m *Manager) Submit(ctx context.Context) (domain.Product, error) {
	m.mu.Lock()
	wf, err := m.editableModal()
	if err != nil {
		m.mu.Unlock()
		return domain.Product{}, err
	}
	wf.state = StateSubmitting
	wf.lastError = ""
	sub := *wf
	epoch := m.epoch
	m.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	saved, uploaded, err := m.save(ctx, sub)

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		m.logger.InfoContext(ctx, "discarding submit result of closed session", slog.String("token", sub.token))
		return domain.Product{}, ErrClosed
	}
	current := m.modal
	if current != nil && current.token != sub.token {
		current = nil
	}

	if err != nil {
		if current != nil {
			current.state = StateOpen
			current.lastError = err.Error()
		}
		m.notify(KindError, failureTitle(sub.mode, err), err.Error())
		m.mu.Unlock()

		if uploaded != "" {
			m.deleteImage(ctx, uploaded)
		}
		return domain.Product{}, err
	}

	if sub.mode == ModeAdd {
		m.products = append([]domain.Product{saved}, m.products...)
		m.notify(KindSuccess, "Product added successfully!", "")
	} else {
		if i := domain.IndexOf(m.products, saved.ID); i >= 0 {
			m.products[i] = saved
		}
		m.notify(KindSuccess, "Product updated", "")
	}
	if current != nil {
		m.modal = nil
	}
	var orphan string
	if sub.mode == ModeEdit && uploaded != "" && sub.originalImage != saved.ImageURL && !m.imageInUse(sub.originalImage) {
		orphan = sub.originalImage
	}
	m.mu.Unlock()

	if orphan != "" {
		m.deleteImage(ctx, orphan)
	}
	m.publish(ctx, sub.mode, saved)
	return saved, nil
}

// save performs the remote calls of one submit. uploaded is the URL of an
// image stored during this call, so a failed write can clean it up.
func (m *Manager) save(ctx context.Context, wf workflow) (saved domain.Product, uploaded string, err error) {
	draft := wf.draft
	if draft.ImageURL == "" && wf.mode == ModeAdd {
		draft.ImageURL = m.placeholder
	}

	if err := validator.Validate(draft); err != nil {
		return domain.Product{}, "", &catalog.MutationError{
			Op:      wf.mode.op(),
			ID:      wf.productID,
			Message: failureTitle(wf.mode, nil) + ": " + err.Error(),
			Err:     errors.Join(apperrors.ErrInvalidInput, err),
		}
	}

	if wf.image != nil {
		url, err := m.catalog.UploadImage(ctx, wf.image.data, wf.image.name)
		if err != nil {
			return domain.Product{}, "", err
		}
		draft.ImageURL = url
		uploaded = url
	}

	if wf.mode == ModeAdd {
		saved, err = m.catalog.Create(ctx, draft)
	} else {
		saved, err = m.catalog.Update(ctx, wf.productID, draft)
	}
	return saved, uploaded, err
}

// RequestDelete asks for confirmation before deleting the product with id.
func (m *Manager) RequestDelete(id string) (Confirmation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Confirmation{}, ErrClosed
	}
	i := domain.IndexOf(m.products, id)
	if i < 0 {
		return Confirmation{}, &catalog.NotFoundError{ID: id}
	}
	c := Confirmation{
		ProductID: id,
		Prompt:    fmt.Sprintf("Delete %q? This action cannot be undone.", m.products[i].Name),
	}
	m.pendingDelete = &c
	return c, nil
}

// PendingDelete returns the confirmation awaiting an answer, if any.
func (m *Manager) PendingDelete() (Confirmation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pendingDelete == nil {
		return Confirmation{}, false
	}
	return *m.pendingDelete, true
}

// ConfirmDelete answers the pending confirmation. Declining changes nothing.
// It reports whether a product was removed from the list.
func (m *Manager) ConfirmDelete(ctx context.Context, yes bool) (bool, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false, ErrClosed
	}
	pending := m.pendingDelete
	if pending == nil {
		m.mu.Unlock()
		return false, ErrNoPendingDelete
	}
	m.pendingDelete = nil
	if !yes {
		m.mu.Unlock()
		return false, nil
	}
	var image string
	if i := domain.IndexOf(m.products, pending.ProductID); i >= 0 {
		image = m.products[i].ImageURL
	}
	epoch := m.epoch
	m.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	err := m.catalog.Delete(ctx, pending.ProductID)

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return false, ErrClosed
	}
	if err != nil {
		m.notify(KindError, "Error deleting product", err.Error())
		m.mu.Unlock()
		return false, err
	}
	if i := domain.IndexOf(m.products, pending.ProductID); i >= 0 {
		m.products = append(m.products[:i:i], m.products[i+1:]...)
	}
	m.notify(KindSuccess, "Product deleted", "")
	orphan := !m.imageInUse(image)
	m.mu.Unlock()

	if orphan {
		m.deleteImage(ctx, image)
	}
	if m.events != nil {
		if err := m.events.ProductDeleted(ctx, pending.ProductID); err != nil {
			m.logger.WarnContext(ctx, "publish product deleted event failed", slog.String("error", err.Error()))
		}
	}
	return true, nil
}

// Notifications drains the pending notifications.
func (m *Manager) Notifications() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.notices
	m.notices = nil
	return out
}

// Close tears the manager down. Results of calls still in flight are
// discarded and every later operation fails with ErrClosed.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epoch++
	m.closed = true
	m.products = nil
	m.modal = nil
	m.pendingDelete = nil
	m.notices = nil
}

// View returns a snapshot of everything the admin page renders.
func (m *Manager) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := View{
		Layout:    m.layout,
		LoadState: m.loadState,
		Error:     m.loadErr,
		Query:     m.query,
		Products:  domain.Filter(m.products, m.query),
		Stats:     domain.Summarize(m.products),
	}
	if m.modal != nil {
		modal := m.modal.view()
		v.Modal = &modal
	}
	if m.pendingDelete != nil {
		c := *m.pendingDelete
		v.PendingDelete = &c
	}
	return v
}

func (m *Manager) notify(kind Kind, title, message string) {
	m.notices = append(m.notices, Notification{Kind: kind, Title: title, Message: message})
}

// imageInUse reports whether url must survive cleanup: it is empty, the
// placeholder, or still referenced by a product in the list. Called with
// m.mu held.
func (m *Manager) imageInUse(url string) bool {
	if url == "" || url == m.placeholder {
		return true
	}
	for _, p := range m.products {
		if p.ImageURL == url {
			return true
		}
	}
	return false
}

func (m *Manager) deleteImage(ctx context.Context, url string) {
	if err := m.catalog.DeleteImage(ctx, url); err != nil {
		m.logger.WarnContext(ctx, "orphaned image cleanup failed",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
	}
}

func (m *Manager) publish(ctx context.Context, mode Mode, p domain.Product) {
	if m.events == nil {
		return
	}
	var err error
	if mode == ModeAdd {
		err = m.events.ProductCreated(ctx, p)
	} else {
		err = m.events.ProductUpdated(ctx, p)
	}
	if err != nil {
		m.logger.WarnContext(ctx, "publish catalog event failed",
			slog.String("product_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
}

func failureTitle(mode Mode, err error) string {
	var uploadErr *catalog.UploadError
	if errors.As(err, &uploadErr) {
		return "Upload failed"
	}
	if mode == ModeAdd {
		return "Failed to add product"
	}
	return "Failed to update"
}
