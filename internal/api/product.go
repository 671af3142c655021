package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/merchkit/catalog-api/internal/domain/catalog"
)

var validGenders = map[string]bool{
	"men": true, "women": true, "kid": true, "unisex": true,
}

type createProductRequest struct {
	Title       string           `json:"title"`
	Slug        string           `json:"slug"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	Description string           `json:"description"`
	Gender      string           `json:"gender"`
	Tags        []string         `json:"tags"`
	Images      []string         `json:"images"`
}

type updateProductRequest struct {
	Title       *string          `json:"title"`
	Slug        *string          `json:"slug"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	Description *string          `json:"description"`
	Gender      *string          `json:"gender"`
	Tags        []string         `json:"tags"`
	Images      []string         `json:"images"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", catalog.DefaultLimit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", catalog.DefaultOffset)
	if err != nil {
		h.writeError(w, err)
		return
	}

	products, err := h.catalog.FindAll(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]catalog.PlainProduct, len(products))
	for i := range products {
		out[i] = *h.present(&products[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.FindOnePlain(r.Context(), r.PathValue("term"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present(p))
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	if err := req.validate(); err != nil {
		h.writeError(w, err)
		return
	}

	draft := catalog.NewProduct{
		Title:       req.Title,
		Slug:        normalizeSlug(req.Slug, req.Title),
		Description: req.Description,
		Gender:      req.Gender,
		Tags:        req.Tags,
		Images:      req.Images,
	}
	if req.Price != nil {
		draft.Price = *req.Price
	}
	if req.Stock != nil {
		draft.Stock = *req.Stock
	}

	p, err := h.catalog.Create(r.Context(), draft, userFrom(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.present(p))
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, &catalog.ValidationError{Field: "id", Reason: "must be a UUID"})
		return
	}

	var req updateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	if err := req.validate(); err != nil {
		h.writeError(w, err)
		return
	}

	patch := catalog.Patch{
		Title:       req.Title,
		Price:       req.Price,
		Stock:       req.Stock,
		Description: req.Description,
		Gender:      req.Gender,
		Tags:        req.Tags,
		Images:      req.Images,
	}
	if req.Slug != nil {
		slug := normalizeSlug(*req.Slug, "")
		patch.Slug = &slug
	}

	p, err := h.catalog.Update(r.Context(), id, patch, userFrom(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present(p))
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, &catalog.ValidationError{Field: "id", Reason: "must be a UUID"})
		return
	}

	if err := h.catalog.Remove(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteAllProducts(w http.ResponseWriter, r *http.Request) {
	count, err := h.catalog.DeleteAll(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": count})
}

func (req *createProductRequest) validate() error {
	if strings.TrimSpace(req.Title) == "" {
		return &catalog.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if req.Price != nil && req.Price.IsNegative() {
		return &catalog.ValidationError{Field: "price", Reason: "must not be negative"}
	}
	if req.Stock != nil && *req.Stock < 0 {
		return &catalog.ValidationError{Field: "stock", Reason: "must not be negative"}
	}
	if req.Gender != "" && !validGenders[req.Gender] {
		return &catalog.ValidationError{Field: "gender", Reason: "must be one of men, women, kid, unisex"}
	}
	return validateImages(req.Images)
}

func (req *updateProductRequest) validate() error {
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return &catalog.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	// There is no title to derive a replacement slug from on update, so an
	// explicitly empty slug would blank the stored one.
	if req.Slug != nil && strings.TrimSpace(*req.Slug) == "" {
		return &catalog.ValidationError{Field: "slug", Reason: "must not be empty"}
	}
	if req.Price != nil && req.Price.IsNegative() {
		return &catalog.ValidationError{Field: "price", Reason: "must not be negative"}
	}
	if req.Stock != nil && *req.Stock < 0 {
		return &catalog.ValidationError{Field: "stock", Reason: "must not be negative"}
	}
	if req.Gender != nil && !validGenders[*req.Gender] {
		return &catalog.ValidationError{Field: "gender", Reason: "must be one of men, women, kid, unisex"}
	}
	return validateImages(req.Images)
}

func validateImages(images []string) error {
	for _, url := range images {
		if strings.TrimSpace(url) == "" {
			return &catalog.ValidationError{Field: "images", Reason: "must not contain empty entries"}
		}
	}
	return nil
}

// normalizeSlug lowercases the slug, replaces spaces with underscores, and
// strips apostrophes. An empty slug is derived from the title.
func normalizeSlug(slug, title string) string {
	if slug == "" {
		slug = title
	}
	slug = strings.ToLower(slug)
	slug = strings.ReplaceAll(slug, " ", "_")
	slug = strings.ReplaceAll(slug, "'", "")
	return slug
}

// present prefixes relative image paths with the configured base URL.
func (h *Handler) present(p *catalog.PlainProduct) *catalog.PlainProduct {
	if h.imageBaseURL == "" {
		return p
	}
	out := *p
	out.Images = make([]string, len(p.Images))
	for i, url := range p.Images {
		if strings.Contains(url, "://") {
			out.Images[i] = url
			continue
		}
		out.Images[i] = h.imageBaseURL + url
	}
	return &out
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &catalog.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &catalog.ValidationError{Field: name, Reason: "must be an integer"}
	}
	return v, nil
}
