package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/merchkit/catalog-api/internal/domain/catalog"
)

// errorResponse is the uniform error body for every failure status.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the catalog error taxonomy onto HTTP statuses. Duplicate
// keys and validation failures carry their detail; everything else is the
// opaque internal message.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		dupErr *catalog.DuplicateKeyError
		valErr *catalog.ValidationError
	)

	switch {
	case errors.As(err, &valErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    http.StatusBadRequest,
			Message: valErr.Error(),
		})
	case errors.As(err, &dupErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    http.StatusBadRequest,
			Message: dupErr.Detail,
		})
	case errors.Is(err, catalog.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{
			Code:    http.StatusNotFound,
			Message: "product not found",
		})
	default:
		h.lg.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Code:    http.StatusInternalServerError,
			Message: catalog.ErrInternal.Error(),
		})
	}
}
