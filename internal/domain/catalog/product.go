package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the aggregate root of the catalog: a sellable item together with
// its full, ordered image sequence. The image rows are exclusively owned by
// the product and never exist on their own.
type Product struct {
	ID          uuid.UUID
	Title       string
	Slug        string
	Price       decimal.Decimal
	Stock       int
	Description string
	Gender      string
	Tags        []string
	OwnerID     uuid.UUID
	Images      []Image
}

// Image is a single image reference owned by a product. URL points at an
// already-durable location; the engine never touches image bytes.
type Image struct {
	ID        int64
	URL       string
	ProductID uuid.UUID
}

// PlainProduct is the external rendering of a product: identical scalar
// fields, but images flattened to their URL strings in stored order.
type PlainProduct struct {
	ID          uuid.UUID       `json:"id"`
	Title       string          `json:"title"`
	Slug        string          `json:"slug"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Description string          `json:"description"`
	Gender      string          `json:"gender"`
	Tags        []string        `json:"tags"`
	OwnerID     uuid.UUID       `json:"userId"`
	Images      []string        `json:"images"`
}

// Flatten renders the aggregate with images reduced to URL strings,
// preserving their stored order.
func (p *Product) Flatten() *PlainProduct {
	urls := make([]string, len(p.Images))
	for i, img := range p.Images {
		urls[i] = img.URL
	}
	return &PlainProduct{
		ID:          p.ID,
		Title:       p.Title,
		Slug:        p.Slug,
		Price:       p.Price,
		Stock:       p.Stock,
		Description: p.Description,
		Gender:      p.Gender,
		Tags:        p.Tags,
		OwnerID:     p.OwnerID,
		Images:      urls,
	}
}

// NewProduct is the already-validated input for creating a product. Images
// holds plain URL strings; the store turns them into owned image rows.
type NewProduct struct {
	Title       string
	Slug        string
	Price       decimal.Decimal
	Stock       int
	Description string
	Gender      string
	Tags        []string
	Images      []string
}

// Patch describes a partial update. Nil pointer fields are left untouched on
// the existing product. Images follows the same convention: nil means "keep
// the current image set", while a non-nil slice (including an empty one)
// replaces the whole set.
type Patch struct {
	Title       *string
	Slug        *string
	Price       *decimal.Decimal
	Stock       *int
	Description *string
	Gender      *string
	Tags        []string
	Images      []string
}

// Store defines the persistence operations the catalog engine needs. All
// returned aggregates are fully populated with their image rows.
// Implementations return ErrNotFound when a lookup matches zero rows and
// surface raw driver errors otherwise; translating those into the caller
// taxonomy is the service's job.
type Store interface {
	// Create persists the product and its image rows as a single atomic unit.
	Create(ctx context.Context, draft NewProduct, ownerID uuid.UUID) (*Product, error)

	// FindByID returns the aggregate identified by id.
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindPage returns a page of aggregates in stable insertion order.
	FindPage(ctx context.Context, limit, offset int) ([]Product, error)

	// SearchByTitleOrSlug returns the first aggregate whose title or slug
	// contains term, matched case-insensitively.
	SearchByTitleOrSlug(ctx context.Context, term string) (*Product, error)

	// PreloadMerge loads the product identified by id and merges the patch's
	// scalar fields onto it. The image set and owner are not touched.
	PreloadMerge(ctx context.Context, id uuid.UUID, patch Patch) (*Product, error)

	// Remove deletes the product row; image rows go with it.
	Remove(ctx context.Context, p *Product) error

	// DeleteAll removes every product and returns the number of deleted rows.
	DeleteAll(ctx context.Context) (int64, error)
}
