package manager

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/websync-digital/sunlit-blue-spark/internal/catalog"
	"github.com/websync-digital/sunlit-blue-spark/internal/domain"
	"github.com/websync-digital/sunlit-blue-spark/internal/repository"
	memtable "github.com/websync-digital/sunlit-blue-spark/internal/repository/memory"
	memstore "github.com/websync-digital/sunlit-blue-spark/internal/storage/memory"
	apperrors "github.com/websync-digital/sunlit-blue-spark/pkg/errors"
)

const placeholder = "/static/placeholder.svg"

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubCatalog wraps a real adapter and can fail or hold individual calls.
type stubCatalog struct {
	*catalog.Adapter

	listErr   error
	createErr error
	updateErr error
	deleteErr error
	uploadErr error

	// hold, when set, blocks Create and Update until it is closed.
	hold    chan struct{}
	entered chan struct{}

	// holdList, when set, blocks ListAll until it is closed.
	holdList    chan struct{}
	listEntered chan struct{}

	mu            sync.Mutex
	deletedImages []string
	uploads       int
	lists         int
}

func (s *stubCatalog) ListAll(ctx context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	s.lists++
	s.mu.Unlock()
	if s.holdList != nil {
		s.listEntered <- struct{}{}
		<-s.holdList
	}
	if s.listErr != nil {
		return nil, &catalog.FetchError{Message: "Error fetching products: " + s.listErr.Error(), Err: s.listErr}
	}
	return s.Adapter.ListAll(ctx)
}

func (s *stubCatalog) wait() {
	if s.hold != nil {
		s.entered <- struct{}{}
		<-s.hold
	}
}

func (s *stubCatalog) Create(ctx context.Context, d domain.ProductDraft) (domain.Product, error) {
	s.wait()
	if s.createErr != nil {
		return domain.Product{}, &catalog.MutationError{Op: "create", Message: "Failed to add product: " + s.createErr.Error(), Err: s.createErr}
	}
	return s.Adapter.Create(ctx, d)
}

func (s *stubCatalog) Update(ctx context.Context, id string, d domain.ProductDraft) (domain.Product, error) {
	s.wait()
	if s.updateErr != nil {
		return domain.Product{}, &catalog.MutationError{Op: "update", ID: id, Message: "Failed to update: " + s.updateErr.Error(), Err: s.updateErr}
	}
	return s.Adapter.Update(ctx, id, d)
}

func (s *stubCatalog) Delete(ctx context.Context, id string) error {
	if s.deleteErr != nil {
		return &catalog.MutationError{Op: "delete", ID: id, Message: "Error deleting product: " + s.deleteErr.Error(), Err: s.deleteErr}
	}
	return s.Adapter.Delete(ctx, id)
}

func (s *stubCatalog) UploadImage(ctx context.Context, data []byte, name string) (string, error) {
	s.mu.Lock()
	s.uploads++
	s.mu.Unlock()
	if s.uploadErr != nil {
		return "", &catalog.UploadError{FileName: name, Message: "Upload failed: " + s.uploadErr.Error(), Err: s.uploadErr}
	}
	return s.Adapter.UploadImage(ctx, data, name)
}

func (s *stubCatalog) DeleteImage(ctx context.Context, url string) error {
	s.mu.Lock()
	s.deletedImages = append(s.deletedImages, url)
	s.mu.Unlock()
	return s.Adapter.DeleteImage(ctx, url)
}

type recordedEvents struct {
	mu      sync.Mutex
	created []string
	updated []string
	deleted []string
}

func (r *recordedEvents) ProductCreated(_ context.Context, p domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, p.ID)
	return nil
}

func (r *recordedEvents) ProductUpdated(_ context.Context, p domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated = append(r.updated, p.ID)
	return nil
}

func (r *recordedEvents) ProductDeleted(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
	return nil
}

type fixture struct {
	m       *Manager
	catalog *stubCatalog
	table   *memtable.ProductTable
	images  *memstore.Storage
	events  *recordedEvents
}

func seedRows() []repository.Row {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []repository.Row{
		{ID: "p1", Fields: repository.Fields{Name: "Solar Panel 450W", ShortDescription: "Mono panel", FullDescription: "Full panel", PriceCents: 120000, ImageURL: "/media/panel.png"}, CreatedAt: base.Add(3 * time.Hour)},
		{ID: "p2", Fields: repository.Fields{Name: "Inverter 5kVA", ShortDescription: "Hybrid inverter", FullDescription: "Full inverter", PriceCents: 450000, ImageURL: "https://cdn.example.com/inverter.png"}, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "p3", Fields: repository.Fields{Name: "Lithium Battery", ShortDescription: "Storage for solar", FullDescription: "Full battery", PriceCents: 800000, ImageURL: placeholder}, CreatedAt: base.Add(time.Hour)},
	}
}

func newFixture(t *testing.T, rows ...repository.Row) *fixture {
	t.Helper()
	table := memtable.NewProductTable(rows...)
	images := memstore.New("/media")
	stub := &stubCatalog{Adapter: catalog.NewAdapter(table, images, discardLogger())}
	events := &recordedEvents{}
	m := New(stub, Options{
		Layout:              LayoutSimple,
		PlaceholderImageURL: placeholder,
		Events:              events,
		Logger:              discardLogger(),
	})
	return &fixture{m: m, catalog: stub, table: table, images: images, events: events}
}

func loadedFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, seedRows()...)
	require.NoError(t, f.m.Load(context.Background()))
	return f
}

func ids(products []domain.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

func ptr[T any](v T) *T { return &v }

// ============================================================================
// Load / Search
// ============================================================================

func TestLoad_NewestFirst(t *testing.T) {
	f := loadedFixture(t)

	assert.Equal(t, []string{"p1", "p2", "p3"}, ids(f.m.Products()))
	v := f.m.View()
	assert.Equal(t, LoadReady, v.LoadState)
	assert.Empty(t, v.Error)
	assert.Equal(t, LayoutSimple, v.Layout)
}

func TestLoad_FailureShowsInlineError(t *testing.T) {
	f := newFixture(t, seedRows()...)
	f.catalog.listErr = errors.New("connection refused")

	err := f.m.Load(context.Background())

	var fetchErr *catalog.FetchError
	require.ErrorAs(t, err, &fetchErr)
	v := f.m.View()
	assert.Equal(t, LoadFailed, v.LoadState)
	assert.Contains(t, v.Error, "Error fetching products")
	assert.Empty(t, v.Products)

	notices := f.m.Notifications()
	require.Len(t, notices, 1)
	assert.Equal(t, KindError, notices[0].Kind)
	assert.Empty(t, f.m.Notifications(), "notifications drain")
}

func TestEnsureLoaded_LoadsOnce(t *testing.T) {
	f := newFixture(t, seedRows()...)
	require.NoError(t, f.m.EnsureLoaded(context.Background()))

	_, err := f.table.Insert(context.Background(), repository.Fields{Name: "Out of band", ShortDescription: "x", FullDescription: "x"})
	require.NoError(t, err)

	require.NoError(t, f.m.EnsureLoaded(context.Background()))
	assert.Len(t, f.m.Products(), 3)
	assert.Equal(t, 1, f.catalog.lists)
}

func TestEnsureLoaded_WaitsForLoadInFlight(t *testing.T) {
	f := newFixture(t, seedRows()...)
	f.catalog.holdList = make(chan struct{})
	f.catalog.listEntered = make(chan struct{}, 1)

	first := make(chan error, 1)
	go func() { first <- f.m.EnsureLoaded(context.Background()) }()
	<-f.catalog.listEntered

	second := make(chan error, 1)
	go func() { second <- f.m.EnsureLoaded(context.Background()) }()

	select {
	case <-second:
		t.Fatal("EnsureLoaded returned before the entry load finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(f.catalog.holdList)
	require.NoError(t, <-first)
	require.NoError(t, <-second)
	assert.Equal(t, 1, f.catalog.lists)

	_, err := f.m.OpenEdit("p2")
	require.NoError(t, err)
}

func TestEnsureLoaded_NoRefetchAfterMutation(t *testing.T) {
	f := newFixture(t, seedRows()...)
	require.NoError(t, f.m.EnsureLoaded(context.Background()))

	_, err := f.m.RequestDelete("p1")
	require.NoError(t, err)
	_, err = f.m.ConfirmDelete(context.Background(), true)
	require.NoError(t, err)

	require.NoError(t, f.m.EnsureLoaded(context.Background()))
	assert.Equal(t, []string{"p2", "p3"}, ids(f.m.Products()))
	assert.Equal(t, 1, f.catalog.lists)
}

func TestEnsureLoaded_AfterClose(t *testing.T) {
	f := newFixture(t, seedRows()...)
	f.m.Close()
	assert.ErrorIs(t, f.m.EnsureLoaded(context.Background()), ErrClosed)
	assert.Zero(t, f.catalog.lists)
}

func TestSearch(t *testing.T) {
	f := loadedFixture(t)

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"p1", "p2", "p3"}},
		{"   ", []string{"p1", "p2", "p3"}},
		{"SOLAR", []string{"p1", "p3"}},
		{"inverter", []string{"p2"}},
		{"hybrid", []string{"p2"}},
		{"wind turbine", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(f.m.Search(tt.query)))
			assert.Equal(t, tt.want, ids(f.m.Filtered()))
		})
	}
	assert.Len(t, f.m.Products(), 3, "search never drops products")
}

func TestStats(t *testing.T) {
	f := loadedFixture(t)
	assert.Equal(t, domain.Stats{Count: 3, InventoryValue: 1370000}, f.m.Stats())
}

// ============================================================================
// Add
// ============================================================================

func TestAdd_NoFileUsesPlaceholder(t *testing.T) {
	f := loadedFixture(t)

	_, err := f.m.OpenAdd()
	require.NoError(t, err)
	_, err = f.m.UpdateDraft(DraftPatch{
		Name:             ptr("Test Panel"),
		ShortDescription: ptr("desc"),
		FullDescription:  ptr("full"),
		PriceMinor:       ptr(int64(1000)),
	})
	require.NoError(t, err)

	saved, err := f.m.Submit(context.Background())
	require.NoError(t, err)

	products := f.m.Products()
	require.Len(t, products, 4)
	assert.Equal(t, saved.ID, products[0].ID, "new product is prepended")
	assert.Equal(t, "Test Panel", products[0].Name)
	assert.Equal(t, "desc", products[0].ShortDescription)
	assert.Equal(t, "full", products[0].FullDescription)
	assert.Equal(t, int64(1000), products[0].PriceMinor)
	assert.Equal(t, placeholder, products[0].ImageURL)
	assert.Equal(t, []string{"p1", "p2", "p3"}, ids(products[1:]))

	_, open := f.m.Modal()
	assert.False(t, open)
	assert.Equal(t, []Notification{{Kind: KindSuccess, Title: "Product added successfully!"}}, f.m.Notifications())
	assert.Equal(t, []string{saved.ID}, f.events.created)

	remote, err := f.catalog.ListAll(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, remote)
	assert.Equal(t, products[0].Draft(), remote[0].Draft(), "remote holds what was submitted")
}

func TestAdd_WithImageUploadsOnSubmit(t *testing.T) {
	f := loadedFixture(t)

	_, err := f.m.OpenAdd()
	require.NoError(t, err)
	modal, err := f.m.SelectImage("Panel.PNG", "image/png", pngBytes)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(modal.PreviewURL, PreviewPath))
	assert.Equal(t, modal.PreviewURL, modal.ImageURL())
	assert.Equal(t, 0, f.images.Len(), "selecting a file does not upload it")

	token := strings.TrimPrefix(modal.PreviewURL, PreviewPath)
	contentType, data, ok := f.m.Preview(token)
	require.True(t, ok)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, pngBytes, data)

	_, err = f.m.UpdateDraft(DraftPatch{Name: ptr("Panel"), ShortDescription: ptr("s"), FullDescription: ptr("f")})
	require.NoError(t, err)

	saved, err := f.m.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.images.Len())
	assert.True(t, strings.HasPrefix(saved.ImageURL, "/media/"))
	assert.True(t, strings.HasSuffix(saved.ImageURL, ".png"))

	_, _, ok = f.m.Preview(token)
	assert.False(t, ok, "preview goes away with the form")
}

func TestAdd_UploadFailureAbortsAndKeepsDraft(t *testing.T) {
	f := loadedFixture(t)
	f.catalog.uploadErr = errors.New("quota exceeded")

	_, err := f.m.OpenAdd()
	require.NoError(t, err)
	_, err = f.m.UpdateDraft(DraftPatch{Name: ptr("Panel"), ShortDescription: ptr("s"), FullDescription: ptr("f")})
	require.NoError(t, err)
	_, err = f.m.SelectImage("a.png", "", pngBytes)
	require.NoError(t, err)

	_, err = f.m.Submit(context.Background())
	var uploadErr *catalog.UploadError
	require.ErrorAs(t, err, &uploadErr)

	modal, open := f.m.Modal()
	require.True(t, open)
	assert.Equal(t, StateOpen, modal.State)
	assert.Equal(t, "Panel", modal.Draft.Name)
	assert.NotEmpty(t, modal.PreviewURL, "selected file is kept for retry")
	assert.Contains(t, modal.Error, "Upload failed")
	assert.Len(t, f.m.Products(), 3, "nothing written")

	notices := f.m.Notifications()
	require.Len(t, notices, 1)
	assert.Equal(t, "Upload failed", notices[0].Title)

	f.catalog.uploadErr = nil
	_, err = f.m.Submit(context.Background())
	require.NoError(t, err, "manual retry succeeds")
	assert.Len(t, f.m.Products(), 4)
}

func TestAdd_InvalidDraftNeverReachesRemote(t *testing.T) {
	f := loadedFixture(t)

	_, err := f.m.OpenAdd()
	require.NoError(t, err)
	_, err = f.m.SelectImage("a.png", "image/png", pngBytes)
	require.NoError(t, err)

	_, err = f.m.Submit(context.Background())
	var mutationErr *catalog.MutationError
	require.ErrorAs(t, err, &mutationErr)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, 0, f.catalog.uploads, "no upload for an invalid draft")
	assert.Equal(t, 0, f.images.Len())
}

func TestAdd_RemoteRejectionCleansUpUpload(t *testing.T) {
	f := loadedFixture(t)
	f.catalog.createErr = apperrors.Unprocessable("check constraint")

	_, err := f.m.OpenAdd()
	require.NoError(t, err)
	_, err = f.m.UpdateDraft(DraftPatch{Name: ptr("Panel"), ShortDescription: ptr("s"), FullDescription: ptr("f")})
	require.NoError(t, err)
	_, err = f.m.SelectImage("a.png", "image/png", pngBytes)
	require.NoError(t, err)

	_, err = f.m.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, f.images.Len(), "uploaded image removed after failed write")
	require.Len(t, f.catalog.deletedImages, 1)

	notices := f.m.Notifications()
	require.Len(t, notices, 1)
	assert.Equal(t, "Failed to add product", notices[0].Title)
}

// ============================================================================
// Edit
// ============================================================================

func TestEdit_RenameKeepsImageAndPrice(t *testing.T) {
	f := loadedFixture(t)

	modal, err := f.m.OpenEdit("p2")
	require.NoError(t, err)
	assert.Equal(t, "Inverter 5kVA", modal.Draft.Name)

	_, err = f.m.UpdateDraft(DraftPatch{Name: ptr("Renamed Panel")})
	require.NoError(t, err)
	_, err = f.m.Submit(context.Background())
	require.NoError(t, err)

	products := f.m.Products()
	assert.Equal(t, []string{"p1", "p2", "p3"}, ids(products), "position unchanged")
	assert.Equal(t, "Renamed Panel", products[1].Name)
	assert.Equal(t, "https://cdn.example.com/inverter.png", products[1].ImageURL)
	assert.Equal(t, int64(450000), products[1].PriceMinor)

	before := seedRows()
	assert.Equal(t, before[0].Name, products[0].Name, "other records unchanged")
	assert.Equal(t, before[2].Name, products[2].Name)
	assert.Empty(t, f.catalog.deletedImages)
	assert.Equal(t, []string{"p2"}, f.events.updated)
}

func TestEdit_ReflectsExactlyThePatch(t *testing.T) {
	f := loadedFixture(t)

	_, err := f.m.OpenEdit("p1")
	require.NoError(t, err)
	patch := domain.ProductDraft{Name: "N", ShortDescription: "S", FullDescription: "F", PriceMinor: 7, ImageURL: "https://cdn.example.com/n.png"}
	_, err = f.m.UpdateDraft(DraftPatch{
		Name:             &patch.Name,
		ShortDescription: &patch.ShortDescription,
		FullDescription:  &patch.FullDescription,
		PriceMinor:       &patch.PriceMinor,
		ImageURL:         &patch.ImageURL,
	})
	require.NoError(t, err)

	saved, err := f.m.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, patch, saved.Draft())
	assert.Equal(t, patch, f.m.Products()[0].Draft())
}

func TestEdit_NewImageDeletesPreviousOwnedImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.m.Load(ctx))

	_, err := f.m.OpenAdd()
	require.NoError(t, err)
	_, err = f.m.UpdateDraft(DraftPatch{Name: ptr("Panel"), ShortDescription: ptr("s"), FullDescription: ptr("f")})
	require.NoError(t, err)
	_, err = f.m.SelectImage("one.png", "image/png", pngBytes)
	require.NoError(t, err)
	first, err := f.m.Submit(ctx)
	require.NoError(t, err)

	_, err = f.m.OpenEdit(first.ID)
	require.NoError(t, err)
	_, err = f.m.SelectImage("two.png", "image/png", pngBytes)
	require.NoError(t, err)
	second, err := f.m.Submit(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, first.ImageURL, second.ImageURL)
	assert.Equal(t, []string{first.ImageURL}, f.catalog.deletedImages)
	assert.Equal(t, 1, f.images.Len(), "only the current image is stored")
}

// addWithSharedImage creates product A with an uploaded image and product B
// pointing at A's image URL.
func addWithSharedImage(t *testing.T, f *fixture) (a, b domain.Product) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.m.Load(ctx))

	_, err := f.m.OpenAdd()
	require.NoError(t, err)
	_, err = f.m.UpdateDraft(DraftPatch{Name: ptr("Panel A"), ShortDescription: ptr("s"), FullDescription: ptr("f")})
	require.NoError(t, err)
	_, err = f.m.SelectImage("a.png", "image/png", pngBytes)
	require.NoError(t, err)
	a, err = f.m.Submit(ctx)
	require.NoError(t, err)

	_, err = f.m.OpenAdd()
	require.NoError(t, err)
	_, err = f.m.UpdateDraft(DraftPatch{Name: ptr("Panel B"), ShortDescription: ptr("s"), FullDescription: ptr("f"), ImageURL: ptr(a.ImageURL)})
	require.NoError(t, err)
	b, err = f.m.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, a.ImageURL, b.ImageURL)
	return a, b
}

func TestDelete_KeepsImageSharedWithAnotherProduct(t *testing.T) {
	f := newFixture(t)
	a, b := addWithSharedImage(t, f)

	_, err := f.m.RequestDelete(b.ID)
	require.NoError(t, err)
	_, err = f.m.ConfirmDelete(context.Background(), true)
	require.NoError(t, err)

	assert.Empty(t, f.catalog.deletedImages)
	assert.Equal(t, 1, f.images.Len(), "A still shows its image")

	_, err = f.m.RequestDelete(a.ID)
	require.NoError(t, err)
	_, err = f.m.ConfirmDelete(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, []string{a.ImageURL}, f.catalog.deletedImages)
	assert.Zero(t, f.images.Len())
}

func TestEdit_ReplacingSharedImageKeepsIt(t *testing.T) {
	f := newFixture(t)
	a, b := addWithSharedImage(t, f)

	_, err := f.m.OpenEdit(b.ID)
	require.NoError(t, err)
	_, err = f.m.SelectImage("b.png", "image/png", pngBytes)
	require.NoError(t, err)
	saved, err := f.m.Submit(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, a.ImageURL, saved.ImageURL)
	assert.Empty(t, f.catalog.deletedImages)
	assert.Equal(t, 2, f.images.Len())
}

func TestEdit_UnknownID(t *testing.T) {
	f := loadedFixture(t)

	_, err := f.m.OpenEdit("missing")
	var notFound *catalog.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestEdit_RemoteFailureReturnsToOpen(t *testing.T) {
	f := loadedFixture(t)
	f.catalog.updateErr = apperrors.NotFound("product", "p1")

	_, err := f.m.OpenEdit("p1")
	require.NoError(t, err)
	_, err = f.m.UpdateDraft(DraftPatch{Name: ptr("Changed")})
	require.NoError(t, err)

	_, err = f.m.Submit(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	modal, open := f.m.Modal()
	require.True(t, open)
	assert.Equal(t, StateOpen, modal.State)
	assert.Equal(t, "Changed", modal.Draft.Name)
	assert.Equal(t, "Solar Panel 450W", f.m.Products()[0].Name)
	assert.Equal(t, "Failed to update", f.m.Notifications()[0].Title)
}

// ============================================================================
// Modal exclusivity and submit lifecycle
// ============================================================================

func TestModal_OnlyOneOpen(t *testing.T) {
	f := loadedFixture(t)

	_, err := f.m.OpenAdd()
	require.NoError(t, err)
	_, err = f.m.OpenEdit("p1")
	assert.ErrorIs(t, err, ErrModalBusy)
	_, err = f.m.OpenAdd()
	assert.ErrorIs(t, err, ErrModalBusy)

	f.m.Cancel()
	_, err = f.m.OpenEdit("p1")
	assert.NoError(t, err)
}

func TestModal_NoneOpen(t *testing.T) {
	f := loadedFixture(t)

	_, err := f.m.UpdateDraft(DraftPatch{Name: ptr("x")})
	assert.ErrorIs(t, err, ErrNoModal)
	_, err = f.m.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNoModal)
	_, err = f.m.SelectImage("a.png", "image/png", pngBytes)
	assert.ErrorIs(t, err, ErrNoModal)
}

func TestModal_CancelDiscardsDraftWithoutRemoteCall(t *testing.T) {
	f := loadedFixture(t)

	_, err := f.m.OpenAdd()
	require.NoError(t, err)
	_, err = f.m.UpdateDraft(DraftPatch{Name: ptr("Never saved")})
	require.NoError(t, err)
	f.m.Cancel()

	_, open := f.m.Modal()
	assert.False(t, open)
	assert.Len(t, f.m.Products(), 3)
	assert.Empty(t, f.events.created)
}

func TestSelectImage_Empty(t *testing.T) {
	f := loadedFixture(t)
	_, err := f.m.OpenAdd()
	require.NoError(t, err)

	_, err = f.m.SelectImage("a.png", "image/png", nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSelectImage_RejectsNonImages(t *testing.T) {
	f := loadedFixture(t)
	_, err := f.m.OpenAdd()
	require.NoError(t, err)

	html := []byte("<html><script>alert(1)</script></html>")
	tests := []struct {
		name        string
		contentType string
		data        []byte
	}{
		{"declared html", "text/html", html},
		{"html declared as image", "image/png", html},
		{"html without type", "", html},
		{"png declared as html", "text/html", pngBytes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.m.SelectImage("x.png", tt.contentType, tt.data)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}

	modal, _ := f.m.Modal()
	assert.Empty(t, modal.PreviewURL)
}

func TestSelectImage_PreviewUsesSniffedType(t *testing.T) {
	f := loadedFixture(t)
	_, err := f.m.OpenAdd()
	require.NoError(t, err)

	modal, err := f.m.SelectImage("a.jpg", "image/jpeg", pngBytes)
	require.NoError(t, err)

	contentType, data, ok := f.m.Preview(strings.TrimPrefix(modal.PreviewURL, PreviewPath))
	require.True(t, ok)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, pngBytes, data)
}

// submitInBackground starts Submit on a held catalog and waits until the
// remote write has been entered.
func submitInBackground(t *testing.T, f *fixture) <-chan error {
	t.Helper()
	f.catalog.hold = make(chan struct{})
	f.catalog.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := f.m.Submit(context.Background())
		done <- err
	}()
	select {
	case <-f.catalog.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("submit never reached the catalog")
	}
	return done
}

func openValidAdd(t *testing.T, f *fixture) {
	t.Helper()
	_, err := f.m.OpenAdd()
	require.NoError(t, err)
	_, err = f.m.UpdateDraft(DraftPatch{Name: ptr("Panel"), ShortDescription: ptr("s"), FullDescription: ptr("f")})
	require.NoError(t, err)
}

func TestSubmit_ResubmitWhileSubmitting(t *testing.T) {
	f := loadedFixture(t)
	openValidAdd(t, f)
	done := submitInBackground(t, f)

	modal, open := f.m.Modal()
	require.True(t, open)
	assert.Equal(t, StateSubmitting, modal.State)

	_, err := f.m.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmitting)
	_, err = f.m.UpdateDraft(DraftPatch{Name: ptr("x")})
	assert.ErrorIs(t, err, ErrSubmitting)

	close(f.catalog.hold)
	require.NoError(t, <-done)
	assert.Len(t, f.m.Products(), 4)
}

func TestSubmit_CancelledFormStillReconciles(t *testing.T) {
	f := loadedFixture(t)
	openValidAdd(t, f)
	done := submitInBackground(t, f)

	f.m.Cancel()
	_, err := f.m.OpenEdit("p3")
	require.NoError(t, err, "a new form can open while the old submit is in flight")

	close(f.catalog.hold)
	require.NoError(t, <-done)

	assert.Len(t, f.m.Products(), 4)
	modal, open := f.m.Modal()
	require.True(t, open, "the newer form is left alone")
	assert.Equal(t, ModeEdit, modal.Mode)
	assert.Equal(t, StateOpen, modal.State)
}

func TestSubmit_ResultAfterCloseIsDiscarded(t *testing.T) {
	f := loadedFixture(t)
	openValidAdd(t, f)
	done := submitInBackground(t, f)

	f.m.Close()
	close(f.catalog.hold)

	assert.ErrorIs(t, <-done, ErrClosed)
	assert.Empty(t, f.m.Products())
	assert.Empty(t, f.m.Notifications())

	_, err := f.m.OpenAdd()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, f.m.Load(context.Background()), ErrClosed)
}

func TestSubmit_DetachedFromCallerContext(t *testing.T) {
	f := loadedFixture(t)
	openValidAdd(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.m.Submit(ctx)
	require.NoError(t, err)
	assert.Len(t, f.m.Products(), 4)
}

// ============================================================================
// Delete
// ============================================================================

func TestDelete_ConfirmThenDecline(t *testing.T) {
	f := loadedFixture(t)

	c, err := f.m.RequestDelete("p2")
	require.NoError(t, err)
	assert.Equal(t, `Delete "Inverter 5kVA"? This action cannot be undone.`, c.Prompt)

	pending, ok := f.m.PendingDelete()
	require.True(t, ok)
	assert.Equal(t, c, pending)

	removed, err := f.m.ConfirmDelete(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []string{"p1", "p3"}, ids(f.m.Products()))
	assert.Equal(t, []Notification{{Kind: KindSuccess, Title: "Product deleted"}}, f.m.Notifications())
	assert.Equal(t, []string{"p2"}, f.events.deleted)

	_, err = f.m.RequestDelete("p1")
	require.NoError(t, err)
	removed, err = f.m.ConfirmDelete(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, []string{"p1", "p3"}, ids(f.m.Products()), "declining changes nothing")

	_, ok = f.m.PendingDelete()
	assert.False(t, ok)
}

func TestDelete_ShrinksByExactlyOne(t *testing.T) {
	f := loadedFixture(t)

	for _, id := range []string{"p3", "p1"} {
		before := len(f.m.Products())
		_, err := f.m.RequestDelete(id)
		require.NoError(t, err)
		_, err = f.m.ConfirmDelete(context.Background(), true)
		require.NoError(t, err)

		after := f.m.Products()
		assert.Len(t, after, before-1)
		assert.Equal(t, -1, domain.IndexOf(after, id))
	}
}

func TestDelete_NoPending(t *testing.T) {
	f := loadedFixture(t)
	_, err := f.m.ConfirmDelete(context.Background(), true)
	assert.ErrorIs(t, err, ErrNoPendingDelete)
}

func TestDelete_UnknownID(t *testing.T) {
	f := loadedFixture(t)
	_, err := f.m.RequestDelete("missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDelete_RemoteFailureKeepsRecord(t *testing.T) {
	f := loadedFixture(t)
	f.catalog.deleteErr = apperrors.Remote("catalog", errors.New("timeout"))

	_, err := f.m.RequestDelete("p1")
	require.NoError(t, err)
	removed, err := f.m.ConfirmDelete(context.Background(), true)

	var mutationErr *catalog.MutationError
	require.ErrorAs(t, err, &mutationErr)
	assert.False(t, removed)
	assert.Len(t, f.m.Products(), 3)
	assert.Equal(t, "Error deleting product", f.m.Notifications()[0].Title)
}

func TestDelete_RemovesOwnedImage(t *testing.T) {
	f := loadedFixture(t)

	_, err := f.m.RequestDelete("p1")
	require.NoError(t, err)
	_, err = f.m.ConfirmDelete(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"/media/panel.png"}, f.catalog.deletedImages)

	_, err = f.m.RequestDelete("p3")
	require.NoError(t, err)
	_, err = f.m.ConfirmDelete(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, f.catalog.deletedImages, 1, "placeholder image is never deleted")
}

// ============================================================================
// View / Registry
// ============================================================================

func TestView(t *testing.T) {
	f := loadedFixture(t)
	f.m.Search("battery")
	_, err := f.m.OpenEdit("p3")
	require.NoError(t, err)

	v := f.m.View()
	assert.Equal(t, "battery", v.Query)
	assert.Equal(t, []string{"p3"}, ids(v.Products))
	assert.Equal(t, 3, v.Stats.Count)
	require.NotNil(t, v.Modal)
	assert.Equal(t, "p3", v.Modal.ProductID)
	assert.Nil(t, v.PendingDelete)
}

func TestParseLayout(t *testing.T) {
	l, err := ParseLayout("SIMPLE")
	require.NoError(t, err)
	assert.Equal(t, LayoutSimple, l)

	l, err = ParseLayout("")
	require.NoError(t, err)
	assert.Equal(t, LayoutSidebar, l)

	_, err = ParseLayout("grid")
	assert.Error(t, err)
}

func TestRegistry_DropClosesManager(t *testing.T) {
	f := loadedFixture(t)
	created := 0
	r := NewRegistry(func() *Manager {
		created++
		return New(f.catalog, Options{Logger: discardLogger()})
	}, time.Hour)

	m := r.Get("sid-1")
	assert.Same(t, m, r.Get("sid-1"))
	assert.Equal(t, 1, created)
	require.NoError(t, m.Load(context.Background()))

	r.Drop("sid-1")
	assert.Equal(t, 0, r.Len())
	_, err := m.OpenAdd()
	assert.ErrorIs(t, err, ErrClosed)

	fresh := r.Get("sid-1")
	assert.NotSame(t, m, fresh)
	assert.Equal(t, LoadIdle, fresh.View().LoadState, "re-entry starts from a fresh load")

	r.Drop("unknown")
}

func TestRegistry_EnterLoadsOnce(t *testing.T) {
	f := newFixture(t, seedRows()...)
	r := NewRegistry(func() *Manager { return f.m }, time.Hour)

	m := r.Enter(context.Background(), "sid-1")
	assert.Equal(t, LoadReady, m.View().LoadState)

	_, err := m.RequestDelete("p1")
	require.NoError(t, err, "existing products are reachable right after entry")
	_, err = m.ConfirmDelete(context.Background(), true)
	require.NoError(t, err)

	r.Enter(context.Background(), "sid-1")
	assert.Equal(t, []string{"p2", "p3"}, ids(m.Products()))
	assert.Equal(t, 1, f.catalog.lists)
}

func TestRegistry_SweepClosesIdleManagers(t *testing.T) {
	f := loadedFixture(t)
	r := NewRegistry(func() *Manager {
		return New(f.catalog, Options{Logger: discardLogger()})
	}, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	idle := r.Get("sid-idle")
	active := r.Get("sid-active")

	now = now.Add(40 * time.Second)
	r.Get("sid-active")
	now = now.Add(40 * time.Second)
	r.Sweep()

	assert.Equal(t, 1, r.Len())
	assert.Same(t, active, r.Get("sid-active"))
	_, err := idle.OpenAdd()
	assert.ErrorIs(t, err, ErrClosed)
	assert.NotSame(t, idle, r.Get("sid-idle"))
}

func TestRegistry_ZeroMaxIdleNeverSweeps(t *testing.T) {
	f := loadedFixture(t)
	r := NewRegistry(func() *Manager {
		return New(f.catalog, Options{Logger: discardLogger()})
	}, 0)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	r.Get("sid-1")
	now = now.Add(24 * time.Hour)
	r.Sweep()
	assert.Equal(t, 1, r.Len())
}
