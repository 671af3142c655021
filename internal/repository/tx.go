package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchkit/catalog-api/internal/domain/catalog"
)

var _ catalog.TxBeginner = (*TxManager)(nil)

// TxManager hands out dedicated connections for the image-replacement write
// path. Each acquisition pins one pool connection until Release.
type TxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager returns a TxManager backed by the given pool.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// Acquire checks a connection out of the pool and wraps it as a catalog.Tx.
func (m *TxManager) Acquire(ctx context.Context) (catalog.Tx, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	return &productTx{conn: conn}, nil
}

// productTx runs the delete-images / save-product write sequence on a single
// pinned connection.
type productTx struct {
	conn     *pgxpool.Conn
	tx       pgx.Tx
	released bool
}

func (t *productTx) Begin(ctx context.Context) error {
	tx, err := t.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	t.tx = tx
	return nil
}

func (t *productTx) DeleteProductImages(ctx context.Context, productID uuid.UUID) error {
	if _, err := t.tx.Exec(ctx, deleteProductImagesSQL, productID); err != nil {
		return fmt.Errorf("deleting images of product %s: %w", productID, err)
	}
	return nil
}

// SaveProduct updates the product's scalar columns and owner, then inserts
// the image rows that have no row ID yet, in slice order.
func (t *productTx) SaveProduct(ctx context.Context, p *catalog.Product) error {
	_, err := t.tx.Exec(ctx, updateProductSQL,
		p.ID, p.Title, p.Slug, p.Price, p.Stock,
		p.Description, p.Gender, p.Tags, p.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("saving product %s: %w", p.ID, err)
	}

	for i := range p.Images {
		if p.Images[i].ID != 0 {
			continue
		}
		err := t.tx.QueryRow(ctx, insertImageSQL, p.Images[i].URL, p.ID).Scan(&p.Images[i].ID)
		if err != nil {
			return fmt.Errorf("saving image of product %s: %w", p.ID, err)
		}
	}
	return nil
}

func (t *productTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *productTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// Release returns the connection to the pool. Calling it twice would hand the
// same connection back twice, so a double call panics instead of corrupting
// the pool.
func (t *productTx) Release() {
	if t.released {
		panic("repository: product tx released twice")
	}
	t.released = true
	t.conn.Release()
}
