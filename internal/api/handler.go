// Package api exposes the catalog over HTTP. Handlers are thin: they decode
// and validate the request, call the catalog service, and render the result.
package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/merchkit/catalog-api/internal/domain/auth"
	"github.com/merchkit/catalog-api/internal/domain/catalog"
)

// CatalogService is the surface of the catalog engine the handlers need.
type CatalogService interface {
	Create(ctx context.Context, draft catalog.NewProduct, actor auth.User) (*catalog.PlainProduct, error)
	FindAll(ctx context.Context, limit, offset int) ([]catalog.PlainProduct, error)
	FindOnePlain(ctx context.Context, term string) (*catalog.PlainProduct, error)
	Update(ctx context.Context, id uuid.UUID, patch catalog.Patch, actor auth.User) (*catalog.PlainProduct, error)
	Remove(ctx context.Context, id uuid.UUID) error
	DeleteAll(ctx context.Context) (int64, error)
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string

	// APIKeyPepper is the server-side secret mixed into API key hashes.
	APIKeyPepper string
}

// Handler wires the HTTP routes to the catalog service and user repository.
type Handler struct {
	catalog      CatalogService
	users        auth.Repository
	imageBaseURL string
	pepper       string
	lg           *zap.Logger
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg HandlerConfig, catalogSvc CatalogService, users auth.Repository, lg *zap.Logger) *Handler {
	return &Handler{
		catalog:      catalogSvc,
		users:        users,
		imageBaseURL: cfg.ImageBaseURL,
		pepper:       cfg.APIKeyPepper,
		lg:           lg.Named("api"),
	}
}

// Routes registers all catalog endpoints on a fresh mux. Reads are public;
// every mutation requires a valid API key.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{term}", h.getProduct)

	mux.Handle("POST /api/products", h.requireUser(h.createProduct))
	mux.Handle("PATCH /api/products/{id}", h.requireUser(h.updateProduct))
	mux.Handle("DELETE /api/products/{id}", h.requireUser(h.deleteProduct))
	mux.Handle("DELETE /api/products", h.requireUser(h.deleteAllProducts))

	return mux
}
