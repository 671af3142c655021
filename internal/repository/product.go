package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchkit/catalog-api/internal/domain/catalog"
)

const (
	productColumns = `id, title, slug, price, stock, description, gender, tags, user_id`

	insertProductSQL = `INSERT INTO products (title, slug, price, stock, description, gender, tags, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	insertImageSQL = `INSERT INTO product_images (url, product_id) VALUES ($1, $2) RETURNING id`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products
		ORDER BY created_at, id LIMIT $1 OFFSET $2`

	searchProductSQL = `SELECT ` + productColumns + ` FROM products
		WHERE title ILIKE '%' || $1 || '%' OR slug ILIKE '%' || $1 || '%'
		ORDER BY created_at, id LIMIT 1`

	listImagesSQL = `SELECT id, url, product_id FROM product_images
		WHERE product_id = ANY($1) ORDER BY product_id, id`

	updateProductSQL = `UPDATE products
		SET title = $2, slug = $3, price = $4, stock = $5, description = $6,
		    gender = $7, tags = $8, user_id = $9, updated_at = now()
		WHERE id = $1`

	deleteProductSQL       = `DELETE FROM products WHERE id = $1`
	deleteAllProductsSQL   = `DELETE FROM products`
	deleteProductImagesSQL = `DELETE FROM product_images WHERE product_id = $1`
)

var _ catalog.Store = (*CatalogStore)(nil)

// CatalogStore implements catalog.Store backed by PostgreSQL. Lookup misses
// map to catalog.ErrNotFound; every other error keeps the driver error in its
// chain so the service-level classifier can inspect the SQLSTATE.
type CatalogStore struct {
	pool *pgxpool.Pool
}

// NewCatalogStore returns a CatalogStore that uses the given pool.
func NewCatalogStore(pool *pgxpool.Pool) *CatalogStore {
	return &CatalogStore{pool: pool}
}

// Create inserts the product and its image rows in one transaction.
func (s *CatalogStore) Create(ctx context.Context, draft catalog.NewProduct, ownerID uuid.UUID) (*catalog.Product, error) {
	p := &catalog.Product{
		Title:       draft.Title,
		Slug:        draft.Slug,
		Price:       draft.Price,
		Stock:       draft.Stock,
		Description: draft.Description,
		Gender:      draft.Gender,
		Tags:        draft.Tags,
		OwnerID:     ownerID,
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, insertProductSQL,
			p.Title, p.Slug, p.Price, p.Stock, p.Description, p.Gender, p.Tags, p.OwnerID,
		).Scan(&p.ID)
		if err != nil {
			return err
		}

		for _, url := range draft.Images {
			img := catalog.Image{URL: url, ProductID: p.ID}
			if err := tx.QueryRow(ctx, insertImageSQL, img.URL, img.ProductID).Scan(&img.ID); err != nil {
				return err
			}
			p.Images = append(p.Images, img)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating product: %w", err)
	}
	return p, nil
}

// FindByID returns the aggregate identified by id, images included.
func (s *CatalogStore) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	rows, err := s.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %s: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %s: %w", id, err)
	}

	if err := s.attachImages(ctx, []*catalog.Product{&p}); err != nil {
		return nil, err
	}
	return &p, nil
}

// FindPage returns one page of aggregates ordered by creation time.
func (s *CatalogStore) FindPage(ctx context.Context, limit, offset int) ([]catalog.Product, error) {
	rows, err := s.pool.Query(ctx, listProductsSQL, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}

	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}

	refs := make([]*catalog.Product, len(products))
	for i := range products {
		refs[i] = &products[i]
	}
	if err := s.attachImages(ctx, refs); err != nil {
		return nil, err
	}
	return products, nil
}

// SearchByTitleOrSlug returns the first product whose title or slug contains
// term, matched case-insensitively.
func (s *CatalogStore) SearchByTitleOrSlug(ctx context.Context, term string) (*catalog.Product, error) {
	rows, err := s.pool.Query(ctx, searchProductSQL, term)
	if err != nil {
		return nil, fmt.Errorf("searching product %q: %w", term, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("searching product %q: %w", term, err)
	}

	if err := s.attachImages(ctx, []*catalog.Product{&p}); err != nil {
		return nil, err
	}
	return &p, nil
}

// PreloadMerge loads the product's scalar fields and overlays the patch. The
// image set is deliberately not loaded: rows without IDs are the only thing
// the transactional save inserts, so an absent set stays untouched.
func (s *CatalogStore) PreloadMerge(ctx context.Context, id uuid.UUID, patch catalog.Patch) (*catalog.Product, error) {
	rows, err := s.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("preloading product %s: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("preloading product %s: %w", id, err)
	}

	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Slug != nil {
		p.Slug = *patch.Slug
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Gender != nil {
		p.Gender = *patch.Gender
	}
	if patch.Tags != nil {
		p.Tags = patch.Tags
	}
	return &p, nil
}

// Remove deletes the product row; the FK cascade removes its image rows.
func (s *CatalogStore) Remove(ctx context.Context, p *catalog.Product) error {
	if _, err := s.pool.Exec(ctx, deleteProductSQL, p.ID); err != nil {
		return fmt.Errorf("removing product %s: %w", p.ID, err)
	}
	return nil
}

// DeleteAll removes every product and reports how many rows went away.
func (s *CatalogStore) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, deleteAllProductsSQL)
	if err != nil {
		return 0, fmt.Errorf("deleting all products: %w", err)
	}
	return tag.RowsAffected(), nil
}

// attachImages loads the image rows for the given products in a single query
// and distributes them in stored order.
func (s *CatalogStore) attachImages(ctx context.Context, products []*catalog.Product) error {
	if len(products) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(products))
	byID := make(map[uuid.UUID]*catalog.Product, len(products))
	for i, p := range products {
		ids[i] = p.ID
		byID[p.ID] = p
	}

	rows, err := s.pool.Query(ctx, listImagesSQL, ids)
	if err != nil {
		return fmt.Errorf("loading product images: %w", err)
	}

	images, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Image, error) {
		var img catalog.Image
		err := row.Scan(&img.ID, &img.URL, &img.ProductID)
		return img, err
	})
	if err != nil {
		return fmt.Errorf("loading product images: %w", err)
	}

	for _, img := range images {
		p := byID[img.ProductID]
		p.Images = append(p.Images, img)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(
		&p.ID, &p.Title, &p.Slug, &p.Price, &p.Stock,
		&p.Description, &p.Gender, &p.Tags, &p.OwnerID,
	)
	return p, err
}
