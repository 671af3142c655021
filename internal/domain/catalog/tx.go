package catalog

import (
	"context"

	"github.com/google/uuid"
)

// TxBeginner hands out transaction resources. Acquire corresponds to checking
// a connection out of the pool; the transaction itself starts with Tx.Begin.
type TxBeginner interface {
	Acquire(ctx context.Context) (Tx, error)
}

// Tx is a scoped transaction resource for the image-replacement write path.
// The contract is acquire → Begin → writes → Commit or Rollback → Release.
//
// Release returns the underlying connection and must be called exactly once
// per acquisition, on every exit path. Calling it twice is a programming
// error and implementations panic on it.
type Tx interface {
	Begin(ctx context.Context) error

	// DeleteProductImages removes every image row owned by productID.
	DeleteProductImages(ctx context.Context, productID uuid.UUID) error

	// SaveProduct writes the aggregate's scalar fields and owner, and inserts
	// any image rows that do not have a row ID yet, preserving slice order.
	SaveProduct(ctx context.Context, p *Product) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Release()
}
