// Package catalog implements the product catalog consistency engine: atomic
// product+image writes, term resolution, and storage-error classification.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/merchkit/catalog-api/internal/domain/auth"
)

// Pagination defaults for FindAll.
const (
	DefaultLimit  = 10
	DefaultOffset = 0
)

// Service orchestrates the product store, the transaction coordinator, and
// the error classifier. It holds no mutable state of its own; every operation
// runs synchronously on the caller's goroutine.
type Service struct {
	store Store
	txs   TxBeginner
	lg    *zap.Logger
}

// NewService creates a catalog Service. All dependencies are explicit; the
// logger is owned by the process entry point.
func NewService(store Store, txs TxBeginner, lg *zap.Logger) *Service {
	return &Service{
		store: store,
		txs:   txs,
		lg:    lg.Named("catalog"),
	}
}

// Create persists a new product together with its image sequence as one
// atomic unit, owned by the acting user, and returns the flattened aggregate.
// A slug conflict surfaces as *DuplicateKeyError.
func (s *Service) Create(ctx context.Context, draft NewProduct, actor auth.User) (*PlainProduct, error) {
	p, err := s.store.Create(ctx, draft, actor.ID)
	if err != nil {
		return nil, classifyStoreError(s.lg, "create", err)
	}
	return p.Flatten(), nil
}

// FindAll returns one page of flattened products in stable insertion order.
// Non-positive limit and negative offset fall back to the defaults. No total
// count is returned: pagination is offset-only by design.
func (s *Service) FindAll(ctx context.Context, limit, offset int) ([]PlainProduct, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = DefaultOffset
	}

	products, err := s.store.FindPage(ctx, limit, offset)
	if err != nil {
		return nil, classifyStoreError(s.lg, "findAll", err)
	}

	out := make([]PlainProduct, len(products))
	for i := range products {
		out[i] = *products[i].Flatten()
	}
	return out, nil
}

// FindOne resolves term to a single aggregate. Terms in canonical identifier
// format go through the exact-ID lookup; anything else is a case-insensitive
// partial match on title or slug. Zero matches yield ErrNotFound.
func (s *Service) FindOne(ctx context.Context, term string) (*Product, error) {
	var (
		p   *Product
		err error
	)
	if id, parseErr := uuid.Parse(term); parseErr == nil {
		p, err = s.store.FindByID(ctx, id)
	} else {
		p, err = s.store.SearchByTitleOrSlug(ctx, term)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, classifyStoreError(s.lg, "findOne", err)
	}
	return p, nil
}

// FindOnePlain is FindOne with the image sequence flattened to URL strings,
// for external consumption.
func (s *Service) FindOnePlain(ctx context.Context, term string) (*PlainProduct, error) {
	p, err := s.FindOne(ctx, term)
	if err != nil {
		return nil, err
	}
	return p.Flatten(), nil
}

// Update applies a partial update to the product identified by id. Scalar
// fields are merged outside the transaction; if the patch carries an image
// list the whole image set is replaced inside a transaction that spans
// exactly delete-old → insert-new → save. Ownership is reassigned to the
// acting user on every update. On success the freshly reloaded, flattened
// product is returned.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch Patch, actor auth.User) (*PlainProduct, error) {
	product, err := s.store.PreloadMerge(ctx, id, patch)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, classifyStoreError(s.lg, "update", err)
	}

	tx, err := s.txs.Acquire(ctx)
	if err != nil {
		return nil, classifyStoreError(s.lg, "update", err)
	}

	if err := tx.Begin(ctx); err != nil {
		tx.Release()
		return nil, classifyStoreError(s.lg, "update", err)
	}

	// A nil image list means "leave the set alone"; a non-nil list (empty
	// included) replaces it wholesale.
	if patch.Images != nil {
		if err := tx.DeleteProductImages(ctx, id); err != nil {
			return nil, s.abort(ctx, tx, err)
		}
		images := make([]Image, len(patch.Images))
		for i, url := range patch.Images {
			images[i] = Image{URL: url, ProductID: id}
		}
		product.Images = images
	}

	// The last modifier owns the record.
	product.OwnerID = actor.ID

	if err := tx.SaveProduct(ctx, product); err != nil {
		return nil, s.abort(ctx, tx, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, s.abort(ctx, tx, err)
	}
	tx.Release()

	return s.FindOnePlain(ctx, id.String())
}

// abort rolls back and releases the transaction resource, then classifies the
// causing error. Rollback and release always happen before classification so
// a half-committed state can never reach the caller.
func (s *Service) abort(ctx context.Context, tx Tx, cause error) error {
	if err := tx.Rollback(ctx); err != nil {
		s.lg.Error("rollback failed",
			zap.String("component", "catalog"),
			zap.Error(err),
		)
	}
	tx.Release()
	return classifyStoreError(s.lg, "update", cause)
}

// Remove looks the product up via FindOne and deletes it; the image rows are
// removed with it.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	p, err := s.FindOne(ctx, id.String())
	if err != nil {
		return err
	}
	if err := s.store.Remove(ctx, p); err != nil {
		return classifyStoreError(s.lg, "remove", err)
	}
	return nil
}

// DeleteAll unconditionally removes every product from the catalog and
// returns the number of deleted rows.
func (s *Service) DeleteAll(ctx context.Context) (int64, error) {
	count, err := s.store.DeleteAll(ctx)
	if err != nil {
		return 0, classifyStoreError(s.lg, "deleteAll", err)
	}
	return count, nil
}
