package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/fingrow/fingrow/internal/auth"
)

// serve routes a single request through a chi router so URL params resolve,
// with the given identity on the context. An empty userID leaves the request
// anonymous.
func serve(method, pattern, target string, body interface{}, userID string, handler http.HandlerFunc) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, target, &buf)
	if userID != "" {
		req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: userID}))
	}

	router := chi.NewRouter()
	router.MethodFunc(method, pattern, handler)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return out
}
