// Package catalog reads the product listing the storefront sells from.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/promarket/internal/domain"
	"github.com/utafrali/promarket/internal/slot"
	apperrors "github.com/utafrali/promarket/pkg/errors"
	"github.com/utafrali/promarket/pkg/httpclient"
	"github.com/utafrali/promarket/pkg/tracing"
)

// CacheKey is the key the listing is cached under.
const CacheKey = "catalog:listing"

// Client fetches the catalog listing, optionally through a cache.
type Client struct {
	http   httpclient.Doer
	url    string
	cache  slot.Slot
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithCache caches the listing in c. Expiry is the cache's concern.
func WithCache(c slot.Slot) Option {
	return func(cl *Client) { cl.cache = c }
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// NewClient creates a client for the listing endpoint at url.
func NewClient(doer httpclient.Doer, url string, opts ...Option) *Client {
	c := &Client{
		http:   doer,
		url:    url,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns every product in the catalog.
func (c *Client) List(ctx context.Context) (products []domain.Product, err error) {
	ctx, span := tracing.Start(ctx, "catalog.list")
	defer func() { tracing.End(span, err) }()

	if hit, ok := c.cached(ctx); ok {
		span.SetAttributes(attribute.Bool("catalog.cache_hit", true))
		return hit, nil
	}
	span.SetAttributes(attribute.Bool("catalog.cache_hit", false))

	body, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	products, err = decodeListing(body)
	if err != nil {
		return nil, fmt.Errorf("decode catalog listing: %w", err)
	}

	c.store(ctx, products)
	return products, nil
}

// Get returns the product with the given id.
func (c *Client) Get(ctx context.Context, id string) (domain.Product, error) {
	products, err := c.List(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, apperrors.NotFound("product", id)
}

func (c *Client) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		var serverErr *httpclient.ServerError
		if errors.As(err, &serverErr) || errors.Is(err, httpclient.ErrCircuitOpen) {
			return nil, apperrors.ServiceUnavailable("catalog is unavailable")
		}
		return nil, fmt.Errorf("call catalog: %w", err)
	}
	if !httpclient.IsSuccess(resp.StatusCode) {
		return nil, httpclient.ParseResponseError(resp, "catalog")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read catalog response: %w", err)
	}
	return body, nil
}

// listingKeys are the object members a listing may be wrapped in.
var listingKeys = []string{"data", "products"}

// errUnknownListing is returned for an object holding none of listingKeys.
var errUnknownListing = errors.New(`listing object has no "data" or "products" member`)

// decodeListing accepts a bare array or an object wrapping the array in one
// of listingKeys, such as {"success": true, "products": [...]}.
func decodeListing(body []byte) ([]domain.Product, error) {
	body = bytes.TrimSpace(body)
	var products []domain.Product
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &products); err != nil {
			return nil, err
		}
		return products, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	for _, key := range listingKeys {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &products); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		return products, nil
	}
	return nil, errUnknownListing
}

func (c *Client) cached(ctx context.Context) ([]domain.Product, bool) {
	if c.cache == nil {
		return nil, false
	}
	data, err := c.cache.Load(ctx, CacheKey)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			c.logger.WarnContext(ctx, "catalog cache read failed", slog.String("error", err.Error()))
		}
		return nil, false
	}
	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		c.logger.WarnContext(ctx, "catalog cache entry corrupt", slog.String("error", err.Error()))
		return nil, false
	}
	return products, true
}

func (c *Client) store(ctx context.Context, products []domain.Product) {
	if c.cache == nil {
		return
	}
	data, err := json.Marshal(products)
	if err == nil {
		err = c.cache.Store(ctx, CacheKey, data)
	}
	if err != nil {
		c.logger.WarnContext(ctx, "catalog cache write failed", slog.String("error", err.Error()))
	}
}
