package catalog

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/merchkit/catalog-api/internal/domain/auth"
)

// --- Mock implementations ---

type mockStore struct {
	byID map[uuid.UUID]*Product

	createErr  error
	pageErr    error
	preloadErr error
	removeErr  error

	findByIDCalls int
	searchCalls   int
	removed       []uuid.UUID
}

func newMockStore(products ...*Product) *mockStore {
	byID := make(map[uuid.UUID]*Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &mockStore{byID: byID}
}

func (m *mockStore) Create(_ context.Context, draft NewProduct, ownerID uuid.UUID) (*Product, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	p := &Product{
		ID:          uuid.New(),
		Title:       draft.Title,
		Slug:        draft.Slug,
		Price:       draft.Price,
		Stock:       draft.Stock,
		Description: draft.Description,
		Gender:      draft.Gender,
		Tags:        draft.Tags,
		OwnerID:     ownerID,
	}
	for i, url := range draft.Images {
		p.Images = append(p.Images, Image{ID: int64(i + 1), URL: url, ProductID: p.ID})
	}
	m.byID[p.ID] = p
	return p, nil
}

func (m *mockStore) FindByID(_ context.Context, id uuid.UUID) (*Product, error) {
	m.findByIDCalls++
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockStore) FindPage(_ context.Context, limit, offset int) ([]Product, error) {
	if m.pageErr != nil {
		return nil, m.pageErr
	}
	out := make([]Product, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, *p)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) SearchByTitleOrSlug(_ context.Context, term string) (*Product, error) {
	m.searchCalls++
	for _, p := range m.byID {
		if p.Title == term || p.Slug == term {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockStore) PreloadMerge(_ context.Context, id uuid.UUID, patch Patch) (*Product, error) {
	if m.preloadErr != nil {
		return nil, m.preloadErr
	}
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	merged := *p
	if patch.Title != nil {
		merged.Title = *patch.Title
	}
	if patch.Slug != nil {
		merged.Slug = *patch.Slug
	}
	if patch.Price != nil {
		merged.Price = *patch.Price
	}
	if patch.Stock != nil {
		merged.Stock = *patch.Stock
	}
	if patch.Description != nil {
		merged.Description = *patch.Description
	}
	if patch.Gender != nil {
		merged.Gender = *patch.Gender
	}
	if patch.Tags != nil {
		merged.Tags = patch.Tags
	}
	return &merged, nil
}

func (m *mockStore) Remove(_ context.Context, p *Product) error {
	if m.removeErr != nil {
		return m.removeErr
	}
	m.removed = append(m.removed, p.ID)
	delete(m.byID, p.ID)
	return nil
}

func (m *mockStore) DeleteAll(_ context.Context) (int64, error) {
	n := int64(len(m.byID))
	m.byID = make(map[uuid.UUID]*Product)
	return n, nil
}

// mockTx records the full lifecycle of one acquisition. SaveProduct writes
// back into the shared store so a reload after commit observes the new state,
// and Begin snapshots the store so Rollback restores it, the same way a real
// transaction leaves no trace of aborted writes.
type mockTx struct {
	store *mockStore

	beginErr  error
	deleteErr error
	saveErr   error
	commitErr error

	begun       int
	committed   int
	rolledBack  int
	released    int
	deletedFor  []uuid.UUID
	savedImages []Image

	snapshot map[uuid.UUID]*Product
}

func (m *mockTx) Begin(context.Context) error {
	m.begun++
	if m.beginErr != nil {
		return m.beginErr
	}
	m.snapshot = make(map[uuid.UUID]*Product, len(m.store.byID))
	for id, p := range m.store.byID {
		cp := *p
		cp.Images = append([]Image(nil), p.Images...)
		m.snapshot[id] = &cp
	}
	return nil
}

func (m *mockTx) DeleteProductImages(_ context.Context, productID uuid.UUID) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletedFor = append(m.deletedFor, productID)
	if p, ok := m.store.byID[productID]; ok {
		p.Images = nil
	}
	return nil
}

func (m *mockTx) SaveProduct(_ context.Context, p *Product) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.savedImages = p.Images
	saved := *p
	m.store.byID[p.ID] = &saved
	return nil
}

func (m *mockTx) Commit(context.Context) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed++
	m.snapshot = nil
	return nil
}

func (m *mockTx) Rollback(context.Context) error {
	m.rolledBack++
	if m.snapshot != nil {
		m.store.byID = m.snapshot
		m.snapshot = nil
	}
	return nil
}

func (m *mockTx) Release() {
	m.released++
	if m.released > 1 {
		panic("transaction released twice")
	}
}

type mockTxBeginner struct {
	tx       *mockTx
	err      error
	acquires int
}

func (m *mockTxBeginner) Acquire(context.Context) (Tx, error) {
	m.acquires++
	if m.err != nil {
		return nil, m.err
	}
	return m.tx, nil
}

// --- Helpers ---

func newStoredProduct(title, slug string, imageURLs ...string) *Product {
	id := uuid.New()
	p := &Product{
		ID:      id,
		Title:   title,
		Slug:    slug,
		Price:   decimal.RequireFromString("19.99"),
		Stock:   5,
		Tags:    []string{"shirt"},
		OwnerID: uuid.New(),
	}
	for i, url := range imageURLs {
		p.Images = append(p.Images, Image{ID: int64(i + 1), URL: url, ProductID: id})
	}
	return p
}

func newTestService(store *mockStore, txs TxBeginner) *Service {
	return NewService(store, txs, zap.NewNop())
}

func testActor() auth.User {
	return auth.User{ID: uuid.New(), Email: "admin@example.com", Roles: []string{"admin"}}
}

// --- Tests ---

func TestCreate_PreservesImageOrder(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store, &mockTxBeginner{})

	created, err := svc.Create(context.Background(), NewProduct{
		Title:  "Basic Tee",
		Slug:   "basic_tee",
		Price:  decimal.RequireFromString("29.99"),
		Images: []string{"front.jpg", "back.jpg", "detail.jpg"},
	}, testActor())
	require.NoError(t, err)

	assert.Equal(t, []string{"front.jpg", "back.jpg", "detail.jpg"}, created.Images)

	plain, err := svc.FindOnePlain(context.Background(), created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, []string{"front.jpg", "back.jpg", "detail.jpg"}, plain.Images)
}

func TestCreate_DuplicateSlug(t *testing.T) {
	store := newMockStore(newStoredProduct("Basic Tee", "basic_tee"))
	store.createErr = &pgconn.PgError{
		Code:   "23505",
		Detail: "Key (slug)=(basic_tee) already exists.",
	}
	svc := newTestService(store, &mockTxBeginner{})

	_, err := svc.Create(context.Background(), NewProduct{Title: "Basic Tee", Slug: "basic_tee"}, testActor())

	var dupErr *DuplicateKeyError
	require.ErrorAs(t, err, &dupErr)
	assert.Contains(t, dupErr.Detail, "basic_tee")

	page, err := svc.FindAll(context.Background(), DefaultLimit, 0)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestCreate_UnclassifiedErrorIsOpaque(t *testing.T) {
	store := newMockStore()
	store.createErr = errors.New("connection reset by peer")
	svc := newTestService(store, &mockTxBeginner{})

	_, err := svc.Create(context.Background(), NewProduct{Title: "Basic Tee", Slug: "basic_tee"}, testActor())

	require.ErrorIs(t, err, ErrInternal)
	assert.NotContains(t, err.Error(), "connection reset")
}

func TestFindOne_UUIDTermUsesExactLookupOnly(t *testing.T) {
	p := newStoredProduct("Basic Tee", "basic_tee")
	store := newMockStore(p)
	svc := newTestService(store, &mockTxBeginner{})

	got, err := svc.FindOne(context.Background(), p.ID.String())
	require.NoError(t, err)

	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, 1, store.findByIDCalls)
	assert.Zero(t, store.searchCalls)
}

func TestFindOne_TextTermUsesSearchOnly(t *testing.T) {
	p := newStoredProduct("Basic Tee", "basic_tee")
	store := newMockStore(p)
	svc := newTestService(store, &mockTxBeginner{})

	got, err := svc.FindOne(context.Background(), "basic_tee")
	require.NoError(t, err)

	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, 1, store.searchCalls)
	assert.Zero(t, store.findByIDCalls)
}

func TestFindOne_NotFound(t *testing.T) {
	svc := newTestService(newMockStore(), &mockTxBeginner{})

	_, err := svc.FindOne(context.Background(), "no_such_slug")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.FindOne(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFindAll_AppliesDefaults(t *testing.T) {
	store := newMockStore()
	for i := 0; i < 15; i++ {
		p := newStoredProduct("Tee", uuid.NewString())
		store.byID[p.ID] = p
	}
	svc := newTestService(store, &mockTxBeginner{})

	page, err := svc.FindAll(context.Background(), 0, -1)
	require.NoError(t, err)
	assert.Len(t, page, DefaultLimit)
}

func TestUpdate_ReplacesImagesInOrder(t *testing.T) {
	p := newStoredProduct("Basic Tee", "basic_tee", "old1.jpg", "old2.jpg")
	store := newMockStore(p)
	tx := &mockTx{store: store}
	svc := newTestService(store, &mockTxBeginner{tx: tx})

	plain, err := svc.Update(context.Background(), p.ID, Patch{
		Images: []string{"new1.jpg", "new2.jpg", "new3.jpg"},
	}, testActor())
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{p.ID}, tx.deletedFor)
	assert.Equal(t, []string{"new1.jpg", "new2.jpg", "new3.jpg"}, plain.Images)
	assert.Equal(t, 1, tx.begun)
	assert.Equal(t, 1, tx.committed)
	assert.Zero(t, tx.rolledBack)
	assert.Equal(t, 1, tx.released)
}

func TestUpdate_EmptyImageListClearsSet(t *testing.T) {
	p := newStoredProduct("Basic Tee", "basic_tee", "old1.jpg", "old2.jpg")
	store := newMockStore(p)
	tx := &mockTx{store: store}
	svc := newTestService(store, &mockTxBeginner{tx: tx})

	plain, err := svc.Update(context.Background(), p.ID, Patch{Images: []string{}}, testActor())
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{p.ID}, tx.deletedFor)
	assert.Empty(t, plain.Images)
}

func TestUpdate_NilImagesLeavesSetAlone(t *testing.T) {
	p := newStoredProduct("Basic Tee", "basic_tee", "keep1.jpg", "keep2.jpg")
	store := newMockStore(p)
	tx := &mockTx{store: store}
	svc := newTestService(store, &mockTxBeginner{tx: tx})

	title := "Premium Tee"
	plain, err := svc.Update(context.Background(), p.ID, Patch{Title: &title}, testActor())
	require.NoError(t, err)

	assert.Empty(t, tx.deletedFor)
	assert.Equal(t, "Premium Tee", plain.Title)
	assert.Equal(t, []string{"keep1.jpg", "keep2.jpg"}, plain.Images)
}

func TestUpdate_ReassignsOwnerToActor(t *testing.T) {
	p := newStoredProduct("Basic Tee", "basic_tee")
	store := newMockStore(p)
	tx := &mockTx{store: store}
	svc := newTestService(store, &mockTxBeginner{tx: tx})

	actor := testActor()
	title := "Premium Tee"
	plain, err := svc.Update(context.Background(), p.ID, Patch{Title: &title}, actor)
	require.NoError(t, err)

	assert.Equal(t, actor.ID, plain.OwnerID)
}

func TestUpdate_NotFoundBeforeAcquire(t *testing.T) {
	store := newMockStore()
	txs := &mockTxBeginner{tx: &mockTx{store: store}}
	svc := newTestService(store, txs)

	_, err := svc.Update(context.Background(), uuid.New(), Patch{}, testActor())

	require.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, txs.acquires)
}

func TestUpdate_SaveFailureRollsBackAndReleasesOnce(t *testing.T) {
	p := newStoredProduct("Basic Tee", "basic_tee", "old1.jpg", "old2.jpg")
	store := newMockStore(p)
	tx := &mockTx{store: store, saveErr: errors.New("disk full")}
	svc := newTestService(store, &mockTxBeginner{tx: tx})

	_, err := svc.Update(context.Background(), p.ID, Patch{
		Images: []string{"new.jpg"},
	}, testActor())

	require.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, 1, tx.rolledBack)
	assert.Equal(t, 1, tx.released)
	assert.Zero(t, tx.committed)

	plain, err := svc.FindOnePlain(context.Background(), p.ID.String())
	require.NoError(t, err)
	assert.Equal(t, []string{"old1.jpg", "old2.jpg"}, plain.Images)
}

func TestUpdate_DeleteImagesFailureRollsBack(t *testing.T) {
	p := newStoredProduct("Basic Tee", "basic_tee", "old1.jpg", "old2.jpg")
	store := newMockStore(p)
	tx := &mockTx{store: store, deleteErr: errors.New("lock timeout")}
	svc := newTestService(store, &mockTxBeginner{tx: tx})

	_, err := svc.Update(context.Background(), p.ID, Patch{
		Images: []string{"new.jpg"},
	}, testActor())

	require.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, 1, tx.rolledBack)
	assert.Equal(t, 1, tx.released)

	plain, err := svc.FindOnePlain(context.Background(), p.ID.String())
	require.NoError(t, err)
	assert.Equal(t, []string{"old1.jpg", "old2.jpg"}, plain.Images)
}

func TestUpdate_BeginFailureReleases(t *testing.T) {
	p := newStoredProduct("Basic Tee", "basic_tee")
	store := newMockStore(p)
	tx := &mockTx{store: store, beginErr: errors.New("connection closed")}
	svc := newTestService(store, &mockTxBeginner{tx: tx})

	_, err := svc.Update(context.Background(), p.ID, Patch{}, testActor())

	require.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, 1, tx.released)
	assert.Zero(t, tx.rolledBack)
}

func TestUpdate_DuplicateSlugSurfacesDetail(t *testing.T) {
	p := newStoredProduct("Basic Tee", "basic_tee")
	store := newMockStore(p)
	tx := &mockTx{store: store, saveErr: &pgconn.PgError{
		Code:   "23505",
		Detail: "Key (slug)=(taken_slug) already exists.",
	}}
	svc := newTestService(store, &mockTxBeginner{tx: tx})

	slug := "taken_slug"
	_, err := svc.Update(context.Background(), p.ID, Patch{Slug: &slug}, testActor())

	var dupErr *DuplicateKeyError
	require.ErrorAs(t, err, &dupErr)
	assert.Contains(t, dupErr.Detail, "taken_slug")
	assert.Equal(t, 1, tx.rolledBack)
	assert.Equal(t, 1, tx.released)
}

func TestRemove_DeletesFoundProduct(t *testing.T) {
	p := newStoredProduct("Basic Tee", "basic_tee", "a.jpg")
	store := newMockStore(p)
	svc := newTestService(store, &mockTxBeginner{})

	require.NoError(t, svc.Remove(context.Background(), p.ID))
	assert.Equal(t, []uuid.UUID{p.ID}, store.removed)

	err := svc.Remove(context.Background(), p.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteAll_ReturnsCountAndEmptiesCatalog(t *testing.T) {
	store := newMockStore(
		newStoredProduct("Tee", "tee"),
		newStoredProduct("Hat", "hat"),
		newStoredProduct("Cap", "cap"),
	)
	svc := newTestService(store, &mockTxBeginner{})

	count, err := svc.DeleteAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	page, err := svc.FindAll(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, page)
}
