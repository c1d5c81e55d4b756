// Package browser is the shopper's read-only view of the catalog: the
// product list, search, quick view and the favorites and theme preferences.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/websync-digital/sunlit-blue-spark/internal/catalog"
	"github.com/websync-digital/sunlit-blue-spark/internal/domain"
	"github.com/websync-digital/sunlit-blue-spark/internal/handoff"
	"github.com/websync-digital/sunlit-blue-spark/internal/prefs"
	apperrors "github.com/websync-digital/sunlit-blue-spark/pkg/errors"
)

// Theme is the colour scheme preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme accepts "light" or "dark".
func ParseTheme(s string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case ThemeLight, ThemeDark:
		return t, nil
	default:
		return "", apperrors.InvalidInput(fmt.Sprintf("unknown theme %q", s))
	}
}

// Catalog is the read side of the remote catalog.
type Catalog interface {
	ListAll(ctx context.Context) ([]domain.Product, error)
}

// QuickView is a product opened in place, with its inquiry link.
type QuickView struct {
	Product    domain.Product `json:"product"`
	Price      string         `json:"price"`
	InquiryURL string         `json:"inquiry_url"`
}

// View is everything the products page renders.
type View struct {
	Loaded    bool             `json:"loaded"`
	Error     string           `json:"error,omitempty"`
	Query     string           `json:"query"`
	Products  []domain.Product `json:"products"`
	Favorites []string         `json:"favorites"`
	Theme     Theme            `json:"theme"`
	QuickView *QuickView       `json:"quick_view,omitempty"`
}

// Browser holds one visitor's catalog state. Preference reads and writes
// are best-effort: failures are logged and otherwise ignored.
type Browser struct {
	catalog Catalog
	profile prefs.Profile
	linker  *handoff.Linker
	logger  *slog.Logger

	mu        sync.Mutex
	loaded    bool
	loadErr   string
	products  []domain.Product
	query     string
	quickView string
	favorites []string
	theme     Theme
}

// New creates a browser for the visitor behind profile.
func New(c Catalog, profile prefs.Profile, linker *handoff.Linker, logger *slog.Logger) *Browser {
	return &Browser{
		catalog: c,
		profile: profile,
		linker:  linker,
		logger:  logger,
		theme:   ThemeLight,
	}
}

// Restore reads the stored favorites and theme.
func (b *Browser) Restore(ctx context.Context) {
	var favorites []string
	if err := b.profile.GetJSON(ctx, prefs.KeyFavorites, &favorites); err != nil {
		b.prefsFailed(ctx, "read", prefs.KeyFavorites, err)
	}
	raw, err := b.profile.Get(ctx, prefs.KeyTheme)
	if err != nil {
		b.prefsFailed(ctx, "read", prefs.KeyTheme, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.favorites = favorites
	if theme, err := ParseTheme(raw); err == nil {
		b.theme = theme
	}
}

// Load fetches the catalog and caches it in the visitor's preferences.
func (b *Browser) Load(ctx context.Context) error {
	products, err := b.catalog.ListAll(ctx)

	b.mu.Lock()
	b.loaded = true
	if err != nil {
		b.loadErr = err.Error()
		b.products = nil
		b.mu.Unlock()
		b.logger.WarnContext(ctx, "catalog load failed", slog.String("error", err.Error()))
		return err
	}
	b.loadErr = ""
	b.products = products
	b.mu.Unlock()

	if err := b.profile.SetJSON(ctx, prefs.KeyProducts, products); err != nil {
		b.prefsFailed(ctx, "write", prefs.KeyProducts, err)
	}
	return nil
}

// EnsureLoaded loads the catalog the first time it is called.
func (b *Browser) EnsureLoaded(ctx context.Context) error {
	b.mu.Lock()
	loaded := b.loaded
	b.mu.Unlock()
	if loaded {
		return nil
	}
	return b.Load(ctx)
}

// Search sets the query and returns the matching products.
func (b *Browser) Search(query string) []domain.Product {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.query = query
	return domain.Filter(b.products, query)
}

// Filtered returns the products matching the current query.
func (b *Browser) Filtered() []domain.Product {
	b.mu.Lock()
	defer b.mu.Unlock()
	return domain.Filter(b.products, b.query)
}

// Detail returns the product with id from the loaded list, falling back to
// the list cached by an earlier visit.
func (b *Browser) Detail(ctx context.Context, id string) (domain.Product, error) {
	b.mu.Lock()
	i := domain.IndexOf(b.products, id)
	if i >= 0 {
		p := b.products[i]
		b.mu.Unlock()
		return p, nil
	}
	b.mu.Unlock()

	var cached []domain.Product
	if err := b.profile.GetJSON(ctx, prefs.KeyProducts, &cached); err != nil {
		b.prefsFailed(ctx, "read", prefs.KeyProducts, err)
	}
	if i := domain.IndexOf(cached, id); i >= 0 {
		return cached[i], nil
	}
	return domain.Product{}, &catalog.NotFoundError{ID: id}
}

// OpenQuickView shows the product with id without leaving the list.
func (b *Browser) OpenQuickView(id string) (QuickView, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := domain.IndexOf(b.products, id)
	if i < 0 {
		return QuickView{}, &catalog.NotFoundError{ID: id}
	}
	b.quickView = id
	return b.quickViewOf(b.products[i]), nil
}

// CloseQuickView closes the quick view.
func (b *Browser) CloseQuickView() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quickView = ""
}

// QuickView returns the open quick view, if any.
func (b *Browser) QuickView() (QuickView, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentQuickView()
}

func (b *Browser) currentQuickView() (QuickView, bool) {
	if b.quickView == "" {
		return QuickView{}, false
	}
	i := domain.IndexOf(b.products, b.quickView)
	if i < 0 {
		return QuickView{}, false
	}
	return b.quickViewOf(b.products[i]), true
}

func (b *Browser) quickViewOf(p domain.Product) QuickView {
	return QuickView{Product: p, Price: domain.FormatPrice(p.PriceMinor), InquiryURL: b.linker.InquiryURL(p)}
}

// InquiryURL returns the messaging link for p.
func (b *Browser) InquiryURL(p domain.Product) string {
	return b.linker.InquiryURL(p)
}

// ToggleFavorite adds id to the favorites, or removes it if present, and
// reports whether it is now a favorite.
func (b *Browser) ToggleFavorite(ctx context.Context, id string) bool {
	b.mu.Lock()
	var now bool
	if i := slices.Index(b.favorites, id); i >= 0 {
		b.favorites = slices.Delete(slices.Clone(b.favorites), i, i+1)
	} else {
		b.favorites = append(slices.Clone(b.favorites), id)
		now = true
	}
	favorites := b.favorites
	b.mu.Unlock()

	if err := b.profile.SetJSON(ctx, prefs.KeyFavorites, favorites); err != nil {
		b.prefsFailed(ctx, "write", prefs.KeyFavorites, err)
	}
	return now
}

// Favorites returns the favorite product ids in the order they were added.
func (b *Browser) Favorites() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.favorites)
}

// IsFavorite reports whether id is a favorite.
func (b *Browser) IsFavorite(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Contains(b.favorites, id)
}

// Theme returns the current theme.
func (b *Browser) Theme() Theme {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.theme
}

// SetTheme stores t.
func (b *Browser) SetTheme(ctx context.Context, t Theme) error {
	if _, err := ParseTheme(string(t)); err != nil {
		return err
	}
	b.mu.Lock()
	b.theme = t
	b.mu.Unlock()

	if err := b.profile.Set(ctx, prefs.KeyTheme, string(t)); err != nil {
		b.prefsFailed(ctx, "write", prefs.KeyTheme, err)
	}
	return nil
}

// ToggleTheme switches between light and dark and returns the new theme.
func (b *Browser) ToggleTheme(ctx context.Context) Theme {
	next := ThemeDark
	if b.Theme() == ThemeDark {
		next = ThemeLight
	}
	_ = b.SetTheme(ctx, next)
	return next
}

// View returns a snapshot of the products page.
func (b *Browser) View() View {
	b.mu.Lock()
	defer b.mu.Unlock()

	v := View{
		Loaded:    b.loaded,
		Error:     b.loadErr,
		Query:     b.query,
		Products:  domain.Filter(b.products, b.query),
		Favorites: slices.Clone(b.favorites),
		Theme:     b.theme,
	}
	if v.Favorites == nil {
		v.Favorites = []string{}
	}
	if qv, ok := b.currentQuickView(); ok {
		v.QuickView = &qv
	}
	return v
}

func (b *Browser) prefsFailed(ctx context.Context, op, key string, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		return
	}
	b.logger.WarnContext(ctx, "preference "+op+" failed",
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
}
