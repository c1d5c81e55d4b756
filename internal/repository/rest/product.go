// Package rest reads and writes the products table through a hosted
// PostgREST-style API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/websync-digital/sunlit-blue-spark/internal/repository"
	apperrors "github.com/websync-digital/sunlit-blue-spark/pkg/errors"
	"github.com/websync-digital/sunlit-blue-spark/pkg/httpclient"
)

const (
	serviceName = "catalog"
	tablePath   = "/rest/v1/products"

	// invalidTextRepresentation is returned when an id is not a valid UUID.
	invalidTextRepresentation = "22P02"
)

// ProductTable implements repository.ProductTable over HTTP. The API key
// headers are expected to be set on the client.
type ProductTable struct {
	client  httpclient.Doer
	baseURL string
}

// NewProductTable creates a table rooted at baseURL, e.g. https://xyz.supabase.co.
func NewProductTable(client httpclient.Doer, baseURL string) *ProductTable {
	return &ProductTable{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

var _ repository.ProductTable = (*ProductTable)(nil)

// List fetches every row ordered by created_at descending.
func (t *ProductTable) List(ctx context.Context) ([]repository.Row, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.desc")

	var rows []repository.Row
	if err := t.do(ctx, http.MethodGet, q, nil, &rows); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if rows == nil {
		rows = []repository.Row{}
	}
	return rows, nil
}

// Insert posts one row and returns the stored representation.
func (t *ProductTable) Insert(ctx context.Context, f repository.Fields) (repository.Row, error) {
	var rows []repository.Row
	if err := t.do(ctx, http.MethodPost, nil, f, &rows); err != nil {
		return repository.Row{}, fmt.Errorf("insert product: %w", err)
	}
	if len(rows) == 0 {
		return repository.Row{}, apperrors.Remote(serviceName, errors.New("insert returned no row"))
	}
	return rows[0], nil
}

// Update patches the row with id. An empty representation means no row matched.
func (t *ProductTable) Update(ctx context.Context, id string, f repository.Fields) (repository.Row, error) {
	var rows []repository.Row
	err := t.do(ctx, http.MethodPatch, idFilter(id), f, &rows)
	if err != nil {
		if isInvalidID(err) {
			return repository.Row{}, apperrors.NotFound("product", id)
		}
		return repository.Row{}, fmt.Errorf("update product: %w", err)
	}
	if len(rows) == 0 {
		return repository.Row{}, apperrors.NotFound("product", id)
	}
	return rows[0], nil
}

// Delete removes the row with id and reports whether it existed.
func (t *ProductTable) Delete(ctx context.Context, id string) (bool, error) {
	var rows []repository.Row
	if err := t.do(ctx, http.MethodDelete, idFilter(id), nil, &rows); err != nil {
		if isInvalidID(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete product: %w", err)
	}
	return len(rows) > 0, nil
}

// Ping asks for a single id.
func (t *ProductTable) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("select", "id")
	q.Set("limit", "1")
	var rows []struct{}
	return t.do(ctx, http.MethodGet, q, nil, &rows)
}

func idFilter(id string) url.Values {
	q := url.Values{}
	q.Set("id", "eq."+id)
	return q
}

// do sends one request to the table endpoint and decodes a JSON array
// answer into out.
func (t *ProductTable) do(ctx context.Context, method string, query url.Values, body any, out any) error {
	endpoint := t.baseURL + tablePath
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := t.client.Do(ctx, req)
	if err != nil {
		return apperrors.Remote(serviceName, err)
	}
	if !httpclient.IsSuccess(resp.StatusCode) {
		return parseError(resp)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.Remote(serviceName, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// codedError keeps the database error code of a rejected request next to
// the mapped AppError.
type codedError struct {
	code string
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func parseError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()

	var body struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(raw, &body)

	resp.Body = io.NopCloser(bytes.NewReader(raw))
	err := httpclient.ParseResponseError(resp, serviceName)
	if body.Code == "" {
		return err
	}
	return &codedError{code: body.Code, err: err}
}

func isInvalidID(err error) bool {
	var ce *codedError
	return errors.As(err, &ce) && ce.code == invalidTextRepresentation
}
