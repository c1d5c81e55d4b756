// Package catalog maps storefront products onto the remote products table
// and the image store.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/websync-digital/sunlit-blue-spark/internal/domain"
	"github.com/websync-digital/sunlit-blue-spark/internal/repository"
	"github.com/websync-digital/sunlit-blue-spark/internal/storage"
	apperrors "github.com/websync-digital/sunlit-blue-spark/pkg/errors"
	"github.com/websync-digital/sunlit-blue-spark/pkg/validator"
)

// DefaultCacheControl is sent with every uploaded image.
const DefaultCacheControl = "max-age=3600"

// Adapter is the storefront's only path to the remote catalog. It holds no
// state between calls and each call is one round trip.
type Adapter struct {
	table        repository.ProductTable
	images       storage.Storage
	logger       *slog.Logger
	cacheControl string
	now          func() time.Time
	suffix       func() string
}

// NewAdapter creates an adapter over table and images.
func NewAdapter(table repository.ProductTable, images storage.Storage, logger *slog.Logger) *Adapter {
	return &Adapter{
		table:        table,
		images:       images,
		logger:       logger,
		cacheControl: DefaultCacheControl,
		now:          time.Now,
		suffix:       randomSuffix,
	}
}

// ListAll returns every product, newest first.
func (a *Adapter) ListAll(ctx context.Context) ([]domain.Product, error) {
	rows, err := a.table.List(ctx)
	if err != nil {
		return nil, &FetchError{Message: describe("Error fetching products", err), Err: err}
	}

	products := make([]domain.Product, 0, len(rows))
	for _, r := range rows {
		products = append(products, toProduct(r))
	}
	return products, nil
}

// Create validates draft and inserts it. Invalid drafts never reach the remote.
func (a *Adapter) Create(ctx context.Context, draft domain.ProductDraft) (domain.Product, error) {
	if err := validator.Validate(draft); err != nil {
		return domain.Product{}, &MutationError{Op: "create", Message: "Failed to add product: " + err.Error(), Err: errors.Join(apperrors.ErrInvalidInput, err)}
	}

	row, err := a.table.Insert(ctx, toFields(draft))
	if err != nil {
		return domain.Product{}, &MutationError{Op: "create", Message: describe("Failed to add product", err), Err: err}
	}
	return toProduct(row), nil
}

// Update replaces the editable fields of the product with id by patch.
func (a *Adapter) Update(ctx context.Context, id string, patch domain.ProductDraft) (domain.Product, error) {
	if err := validator.Validate(patch); err != nil {
		return domain.Product{}, &MutationError{Op: "update", ID: id, Message: "Failed to update: " + err.Error(), Err: errors.Join(apperrors.ErrInvalidInput, err)}
	}

	row, err := a.table.Update(ctx, id, toFields(patch))
	if err != nil {
		return domain.Product{}, &MutationError{Op: "update", ID: id, Message: describe("Failed to update", err), Err: err}
	}
	return toProduct(row), nil
}

// Delete removes the product with id. An id that is already gone counts as deleted.
func (a *Adapter) Delete(ctx context.Context, id string) error {
	removed, err := a.table.Delete(ctx, id)
	if err != nil {
		return &MutationError{Op: "delete", ID: id, Message: describe("Error deleting product", err), Err: err}
	}
	if !removed {
		a.logger.DebugContext(ctx, "product already absent", slog.String("product_id", id))
	}
	return nil
}

// UploadImage stores data under a fresh key derived from fileName and
// returns its public URL.
func (a *Adapter) UploadImage(ctx context.Context, data []byte, fileName string) (string, error) {
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") && !isSVG(fileName, contentType) {
		err := apperrors.InvalidInput(fmt.Sprintf("%s is not an image (%s)", fileName, contentType))
		return "", &UploadError{FileName: fileName, Message: "Upload failed: " + err.Message, Err: err}
	}
	if isSVG(fileName, contentType) {
		contentType = "image/svg+xml"
	}

	res, err := a.images.Upload(ctx, &storage.UploadInput{
		Key:          a.objectKey(fileName),
		ContentType:  contentType,
		Size:         int64(len(data)),
		Data:         bytes.NewReader(data),
		CacheControl: a.cacheControl,
	})
	if err != nil {
		return "", &UploadError{FileName: fileName, Message: describe("Upload failed", err), Err: err}
	}
	return res.URL, nil
}

// DeleteImage removes the stored object behind url. URLs that do not point
// into the image store, and objects already gone, are ignored.
func (a *Adapter) DeleteImage(ctx context.Context, url string) error {
	err := storage.DeleteURL(ctx, a.images, url)
	if err == nil || errors.Is(err, storage.ErrNotOwned) || errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("delete image %s: %w", url, err)
}

// OwnsImage reports whether url points into the image store.
func (a *Adapter) OwnsImage(url string) bool {
	_, ok := a.images.KeyFromURL(url)
	return ok
}

// Ping checks the products table.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.table.Ping(ctx)
}

// objectKey builds <unix-millis>-<base36 suffix>.<ext>.
func (a *Adapter) objectKey(fileName string) string {
	key := strconv.FormatInt(a.now().UnixMilli(), 10) + "-" + a.suffix()
	if ext := strings.ToLower(path.Ext(fileName)); len(ext) > 1 {
		key += ext
	}
	return key
}

func randomSuffix() string {
	return strconv.FormatUint(rand.Uint64(), 36) // #nosec G404 -- collision avoidance, not secrecy
}

// isSVG catches SVG files, which content sniffing reports as text/xml.
func isSVG(fileName, contentType string) bool {
	return strings.EqualFold(path.Ext(fileName), ".svg") &&
		(strings.HasPrefix(contentType, "text/xml") || strings.HasPrefix(contentType, "text/plain"))
}

func toFields(d domain.ProductDraft) repository.Fields {
	return repository.Fields{
		Name:             d.Name,
		ShortDescription: d.ShortDescription,
		FullDescription:  d.FullDescription,
		PriceCents:       d.PriceMinor,
		ImageURL:         d.ImageURL,
	}
}

func toProduct(r repository.Row) domain.Product {
	return domain.Product{
		ID:               r.ID,
		Name:             r.Name,
		ShortDescription: r.ShortDescription,
		FullDescription:  r.FullDescription,
		PriceMinor:       r.PriceCents,
		ImageURL:         r.ImageURL,
		CreatedAt:        r.CreatedAt,
	}
}
