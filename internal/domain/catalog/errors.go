package catalog

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Sentinel errors of the catalog taxonomy.
var (
	// ErrNotFound is returned when no product matches a given identifier or
	// search term. It is raised by lookups directly, never by classification.
	ErrNotFound = errors.New("product not found")

	// ErrInternal is the opaque error surfaced to callers for unclassified
	// storage failures. The underlying cause is logged server-side only.
	ErrInternal = errors.New("unexpected error, check server logs")
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique-constraint conflicts.
const uniqueViolation = "23505"

// DuplicateKeyError reports a unique-constraint conflict (e.g. a slug that is
// already taken). Detail carries the conflicting value as reported by the
// store and is safe to show to callers.
type DuplicateKeyError struct {
	Detail string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key: %s", e.Detail)
}

// ValidationError reports a malformed term or patch shape. It is produced at
// the external boundary before the engine is invoked; the engine itself never
// raises it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// classifyStoreError translates a raw storage failure into the caller-facing
// taxonomy. Unique-constraint violations become DuplicateKeyError with the
// conflict detail; everything else is logged in full and collapsed into the
// opaque ErrInternal. It never retries and never lets driver detail escape.
func classifyStoreError(lg *zap.Logger, op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		detail := pgErr.Detail
		if detail == "" {
			detail = pgErr.Message
		}
		return &DuplicateKeyError{Detail: detail}
	}

	lg.Error("storage failure",
		zap.String("component", "catalog"),
		zap.String("op", op),
		zap.Error(err),
	)
	return ErrInternal
}
