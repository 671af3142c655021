//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"
)

func TestListProducts_Seeded(t *testing.T) {
	resp := doGet(t, "/api/products")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	products := decodeJSON[[]productResponse](t, resp)
	if len(products) != 5 {
		t.Fatalf("expected 5 products, got %d", len(products))
	}
}

func TestListProducts_Pagination(t *testing.T) {
	resp := doGet(t, "/api/products?limit=2&offset=0")
	defer resp.Body.Close()

	first := decodeJSON[[]productResponse](t, resp)
	if len(first) != 2 {
		t.Fatalf("expected 2 products, got %d", len(first))
	}

	resp2 := doGet(t, "/api/products?limit=2&offset=2")
	defer resp2.Body.Close()

	second := decodeJSON[[]productResponse](t, resp2)
	if len(second) != 2 {
		t.Fatalf("expected 2 products, got %d", len(second))
	}
	if first[0].ID == second[0].ID {
		t.Error("pages overlap: same product on both pages")
	}
}

func TestGetProduct_BySlug(t *testing.T) {
	resp := doGet(t, "/api/products/logo_hoodie")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	p := decodeJSON[productResponse](t, resp)
	if p.Slug != "logo_hoodie" {
		t.Errorf("slug: got %q, want %q", p.Slug, "logo_hoodie")
	}
	if len(p.Images) != 3 {
		t.Errorf("images: got %d, want 3", len(p.Images))
	}
}

func TestGetProduct_ByID(t *testing.T) {
	resp := doGet(t, "/api/products/basic_cotton_tee")
	defer resp.Body.Close()
	bySlug := decodeJSON[productResponse](t, resp)

	resp2 := doGet(t, "/api/products/" + bySlug.ID)
	defer resp2.Body.Close()

	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp2.StatusCode)
	}
	byID := decodeJSON[productResponse](t, resp2)
	if byID.ID != bySlug.ID {
		t.Errorf("id lookup returned %q, want %q", byID.ID, bySlug.ID)
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	resp := doGet(t, "/api/products/no_such_slug")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	errResp := decodeJSON[errorResponse](t, resp)
	if errResp.Code != 404 {
		t.Errorf("error code: got %d, want 404", errResp.Code)
	}
}

func TestCreateProduct_RequiresAuth(t *testing.T) {
	resp := doRequest(t, http.MethodPost, "/api/products", map[string]any{
		"title": "Sneaky Product",
	}, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCreateProduct_ImageOrderSurvivesRoundTrip(t *testing.T) {
	images := []string{"z_last.jpg", "a_first.jpg", "m_middle.jpg"}

	resp := doAuthed(t, http.MethodPost, "/api/products", map[string]any{
		"title":  "Ordered Images Tee",
		"price":  12.34,
		"images": images,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	created := decodeJSON[productResponse](t, resp)

	resp2 := doGet(t, "/api/products/"+created.ID)
	defer resp2.Body.Close()
	fetched := decodeJSON[productResponse](t, resp2)

	if len(fetched.Images) != len(images) {
		t.Fatalf("images: got %d, want %d", len(fetched.Images), len(images))
	}
	for i := range images {
		if fetched.Images[i] != images[i] {
			t.Errorf("images[%d]: got %q, want %q", i, fetched.Images[i], images[i])
		}
	}

	cleanupProduct(t, created.ID)
}

func TestCreateProduct_DuplicateSlug(t *testing.T) {
	before := listProductCount(t)

	resp := doAuthed(t, http.MethodPost, "/api/products", map[string]any{
		"title": "Another Hoodie",
		"slug":  "logo_hoodie",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	errResp := decodeJSON[errorResponse](t, resp)
	if errResp.Message == "" {
		t.Error("expected conflict detail in error message")
	}

	if after := listProductCount(t); after != before {
		t.Errorf("product count changed after rejected create: got %d, want %d", after, before)
	}
}

func listProductCount(t *testing.T) int {
	t.Helper()
	resp := doGet(t, "/api/products?limit=1000")
	defer resp.Body.Close()
	return len(decodeJSON[[]productResponse](t, resp))
}

func TestUpdateProduct_ReplacesImages(t *testing.T) {
	resp := doAuthed(t, http.MethodPost, "/api/products", map[string]any{
		"title":  "Patch Target",
		"images": []string{"old1.jpg", "old2.jpg"},
	})
	defer resp.Body.Close()
	created := decodeJSON[productResponse](t, resp)

	resp2 := doAuthed(t, http.MethodPatch, "/api/products/"+created.ID, map[string]any{
		"images": []string{"new1.jpg"},
	})
	defer resp2.Body.Close()

	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp2.StatusCode)
	}
	updated := decodeJSON[productResponse](t, resp2)
	if len(updated.Images) != 1 || updated.Images[0] != "new1.jpg" {
		t.Errorf("images: got %v, want [new1.jpg]", updated.Images)
	}

	cleanupProduct(t, created.ID)
}

func TestUpdateProduct_ScalarPatchKeepsImages(t *testing.T) {
	resp := doAuthed(t, http.MethodPost, "/api/products", map[string]any{
		"title":  "Scalar Patch Target",
		"images": []string{"keep1.jpg", "keep2.jpg"},
	})
	defer resp.Body.Close()
	created := decodeJSON[productResponse](t, resp)

	resp2 := doAuthed(t, http.MethodPatch, "/api/products/"+created.ID, map[string]any{
		"stock": 42,
	})
	defer resp2.Body.Close()

	updated := decodeJSON[productResponse](t, resp2)
	if updated.Stock != 42 {
		t.Errorf("stock: got %d, want 42", updated.Stock)
	}
	if len(updated.Images) != 2 {
		t.Errorf("images: got %v, want both originals", updated.Images)
	}

	cleanupProduct(t, created.ID)
}

func TestUpdateProduct_NotFound(t *testing.T) {
	resp := doAuthed(t, http.MethodPatch, "/api/products/00000000-0000-0000-0000-000000000000", map[string]any{
		"title": "Ghost",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestDeleteProduct(t *testing.T) {
	resp := doAuthed(t, http.MethodPost, "/api/products", map[string]any{
		"title": fmt.Sprintf("Delete Target %d", http.StatusTeapot),
	})
	defer resp.Body.Close()
	created := decodeJSON[productResponse](t, resp)

	resp2 := doAuthed(t, http.MethodDelete, "/api/products/"+created.ID, nil)
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp2.StatusCode)
	}

	resp3 := doGet(t, "/api/products/"+created.ID)
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp3.StatusCode)
	}
}

func cleanupProduct(t *testing.T, id string) {
	t.Helper()
	resp := doAuthed(t, http.MethodDelete, "/api/products/"+id, nil)
	resp.Body.Close()
}
