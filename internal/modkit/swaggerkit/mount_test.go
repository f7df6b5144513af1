package swaggerkit

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	phttp "chime/internal/platform/net/http"
	"chime/internal/platform/testkit"
)

func TestMountServesDocJSON(t *testing.T) {
	mux := chi.NewRouter()
	Mount(phttp.AdaptChi(mux), true)

	req := httptest.NewRequest("GET", "/docs/doc.json", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var spec map[string]any
	testkit.NoErr(t, json.Unmarshal(rec.Body.Bytes(), &spec))
	if spec["openapi"] != "3.0.3" {
		t.Fatalf("openapi = %v", spec["openapi"])
	}
	if _, ok := spec["paths"].(map[string]any); !ok {
		t.Fatalf("paths missing: %v", spec["paths"])
	}
}

func TestMountDisabledServesNothing(t *testing.T) {
	mux := chi.NewRouter()
	Mount(phttp.AdaptChi(mux), false)

	req := httptest.NewRequest("GET", "/docs/doc.json", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != 404 {
		t.Fatalf("status = %d", rec.Code)
	}
}
