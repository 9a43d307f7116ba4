package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

// newRequestWithChiParam creates a request with a chi URL parameter set.
func newRequestWithChiParam(key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	req := httptest.NewRequest("GET", "/", nil)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// ── WriteJSON / WriteError ───────────────────────────────────────────

func TestWriteErrorDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorDetail(rec, http.StatusConflict, "already processing", "book-1")
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if body.Error != "already processing" || body.Detail != "book-1" {
		t.Errorf("unexpected body %+v", body)
	}

	rec = httptest.NewRecorder()
	WriteError(rec, http.StatusBadRequest, "bad")
	if strings.Contains(rec.Body.String(), "detail") {
		t.Errorf("empty detail should be omitted: %s", rec.Body.String())
	}
}

// ── QueryBool ────────────────────────────────────────────────────────

func TestQueryBool(t *testing.T) {
	tests := []struct {
		query  string
		want   bool
		wantOK bool
	}{
		{"", false, false},
		{"download=1", true, true},
		{"download=true", true, true},
		{"download=0", false, true},
		{"download=maybe", false, false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/?"+tt.query, nil)
		got, ok := QueryBool(req, "download")
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("QueryBool(%q) = %v, %v; want %v, %v", tt.query, got, ok, tt.want, tt.wantOK)
		}
	}
}

// ── PathString ───────────────────────────────────────────────────────

func TestPathString(t *testing.T) {
	t.Run("unescapes", func(t *testing.T) {
		req := newRequestWithChiParam("id", "my%20book")
		v, err := PathString(req, "id")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != "my book" {
			t.Errorf("got %q, want %q", v, "my book")
		}
	})
	t.Run("missing", func(t *testing.T) {
		rctx := chi.NewRouteContext()
		req := httptest.NewRequest("GET", "/", nil)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
		if _, err := PathString(req, "id"); err == nil {
			t.Error("expected error for missing param")
		}
	})
	t.Run("bad_escape", func(t *testing.T) {
		req := newRequestWithChiParam("id", "%zz")
		if _, err := PathString(req, "id"); err == nil {
			t.Error("expected error for malformed escape")
		}
	})
}

// ── DecodeOptionalJSON ───────────────────────────────────────────────

func TestDecodeOptionalJSON(t *testing.T) {
	type body struct {
		Language string `json:"language"`
	}

	t.Run("empty_body", func(t *testing.T) {
		v := body{Language: "keep"}
		req := httptest.NewRequest("POST", "/", nil)
		if err := DecodeOptionalJSON(req, &v); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.Language != "keep" {
			t.Errorf("empty body modified value: %+v", v)
		}
	})
	t.Run("valid", func(t *testing.T) {
		var v body
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"language":"es"}`))
		if err := DecodeOptionalJSON(req, &v); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.Language != "es" {
			t.Errorf("got %+v", v)
		}
	})
	t.Run("malformed", func(t *testing.T) {
		var v body
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"language":`))
		if err := DecodeOptionalJSON(req, &v); err == nil {
			t.Error("expected error for malformed body")
		}
	})
}
