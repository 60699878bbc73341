package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/opencanarias/taple-client-sub000/pkg/backend"
	"github.com/opencanarias/taple-client-sub000/pkg/keys"
	"github.com/opencanarias/taple-client-sub000/pkg/store"
)

const (
	testClientKey = "test-key"
	testSystemKey = "system-key"
)

// setupTestServer creates a server over an in-memory store. The system
// service is opened when config carries a system key.
func setupTestServer(t *testing.T, config ServerConfig) *Server {
	t.Helper()

	st, err := store.Open(store.Config{Backend: backend.Config{Driver: "memory"}})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	var system *SystemService
	if config.SystemKey != "" {
		system, err = NewSystemService(st, SystemConfig{EncryptionKey: config.SystemEncryptionKey})
		if err != nil {
			t.Fatalf("Failed to open system service: %v", err)
		}
		t.Cleanup(func() { system.Close() })
	}

	return NewServer(st, system, config, zaptest.NewLogger(t))
}

func clientServer(t *testing.T) *Server {
	return setupTestServer(t, ServerConfig{APIKey: testClientKey})
}

func do(t *testing.T, h http.Handler, method, target, body, apiKey string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeResponse[T any](t *testing.T, w *httptest.ResponseRecorder) (APIResponse, T) {
	t.Helper()

	var envelope struct {
		APIResponse
		Data T `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return envelope.APIResponse, envelope.Data
}

func TestServer_handleHealth(t *testing.T) {
	server := clientServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	server.handleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	resp, data := decodeResponse[map[string]string](t, w)
	if !resp.Success {
		t.Error("Expected success to be true")
	}
	if data["status"] != "healthy" {
		t.Errorf("Expected status healthy, got %q", data["status"])
	}
}

func TestServer_PutGetDelete(t *testing.T) {
	h := clientServer(t).Router()
	target := "/api/v1/collections/first/entries/a"

	w := do(t, h, "PUT", target, `{"fruit":"apple"}`, testClientKey)
	if w.Code != http.StatusOK {
		t.Fatalf("Put: expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, h, "GET", target, "", testClientKey)
	if w.Code != http.StatusOK {
		t.Fatalf("Get: expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	_, entry := decodeResponse[EntryResponse](t, w)
	if entry.Key != "a" {
		t.Errorf("Expected key a, got %q", entry.Key)
	}
	if string(entry.Value) != `{"fruit":"apple"}` {
		t.Errorf("Unexpected value %s", entry.Value)
	}

	for i := 0; i < 2; i++ {
		w = do(t, h, "DELETE", target, "", testClientKey)
		if w.Code != http.StatusOK {
			t.Fatalf("Delete #%d: expected status 200, got %d", i+1, w.Code)
		}
	}

	w = do(t, h, "GET", target, "", testClientKey)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after delete, got %d", w.Code)
	}
}

func TestServer_handlePut_InvalidJSON(t *testing.T) {
	h := clientServer(t).Router()

	w := do(t, h, "PUT", "/api/v1/collections/first/entries/a", `{"broken"`, testClientKey)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestServer_handlePut_EscapedKey(t *testing.T) {
	h := clientServer(t).Router()

	w := do(t, h, "PUT", "/api/v1/collections/first/entries/dir%2Ffile", `1`, testClientKey)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, h, "GET", "/api/v1/collections/first/entries", "", testClientKey)
	_, list := decodeResponse[ListResponse](t, w)
	if list.Count != 1 || list.Entries[0].Key != "dir/file" {
		t.Errorf("Expected single key dir/file, got %+v", list.Entries)
	}
}

func TestServer_InvalidNames(t *testing.T) {
	h := clientServer(t).Router()

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"separator in key", "/api/v1/collections/first/entries/a%F4%8F%BF%BFb", http.StatusBadRequest},
		{"empty partition", "/api/v1/collections/first/entries/a?partition=", http.StatusBadRequest},
		{"separator in partition", "/api/v1/collections/first/entries/a?partition=x%F4%8F%BF%BF", http.StatusBadRequest},
		{"reserved collection", "/api/v1/collections/_system/entries/a", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, "PUT", tt.target, `1`, testClientKey)
			if w.Code != tt.want {
				t.Errorf("Expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestServer_handleList_NestedPartitions(t *testing.T) {
	h := clientServer(t).Router()

	puts := []struct{ target, body string }{
		{"/api/v1/collections/first/entries/a", `"apple"`},
		{"/api/v1/collections/first/entries/b?partition=inner1", `"banana"`},
		{"/api/v1/collections/first/entries/c?partition=inner1&partition=deep", `"cherry"`},
		{"/api/v1/collections/first/entries/d?partition=inner2", `"date"`},
		{"/api/v1/collections/second/entries/a", `"apricot"`},
	}
	for _, p := range puts {
		if w := do(t, h, "PUT", p.target, p.body, testClientKey); w.Code != http.StatusOK {
			t.Fatalf("Put %s: status %d", p.target, w.Code)
		}
	}

	sep := keys.SeparatorString
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"root", "", []string{"a", "inner1" + sep + "b", "inner1" + sep + "deep" + sep + "c", "inner2" + sep + "d"}},
		{"root reverse", "?reverse=true", []string{"inner2" + sep + "d", "inner1" + sep + "deep" + sep + "c", "inner1" + sep + "b", "a"}},
		{"partition", "?partition=inner1", []string{"b", "deep" + sep + "c"}},
		{"partition reverse", "?partition=inner1&reverse=true", []string{"deep" + sep + "c", "b"}},
		{"nested partition", "?partition=inner1&partition=deep", []string{"c"}},
		{"sibling", "?partition=inner2", []string{"d"}},
		{"empty partition", "?partition=missing&reverse=true", []string{}},
		{"limit", "?limit=2", []string{"a", "inner1" + sep + "b"}},
		{"reverse limit", "?reverse=1&limit=1", []string{"inner2" + sep + "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, "GET", "/api/v1/collections/first/entries"+tt.query, "", testClientKey)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
			}

			_, list := decodeResponse[ListResponse](t, w)
			if list.Count != len(tt.want) || len(list.Entries) != len(tt.want) {
				t.Fatalf("Expected %d entries, got %d", len(tt.want), len(list.Entries))
			}
			for i, e := range list.Entries {
				if e.Key != tt.want[i] {
					t.Errorf("Entry %d: expected key %q, got %q", i, tt.want[i], e.Key)
				}
			}
		})
	}
}

func TestServer_handleList_EntryPath(t *testing.T) {
	h := clientServer(t).Router()

	do(t, h, "PUT", "/api/v1/collections/first/entries/b?partition=inner1", `"banana"`, testClientKey)

	w := do(t, h, "GET", "/api/v1/collections/first/entries", "", testClientKey)
	_, list := decodeResponse[ListResponse](t, w)
	if len(list.Entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(list.Entries))
	}

	path := list.Entries[0].Path
	if len(path) != 2 || path[0] != "inner1" || path[1] != "b" {
		t.Errorf("Expected path [inner1 b], got %v", path)
	}
	if string(list.Entries[0].Value) != `"banana"` {
		t.Errorf("Unexpected value %s", list.Entries[0].Value)
	}
}

func TestServer_handleList_BadParameters(t *testing.T) {
	h := clientServer(t).Router()

	for _, query := range []string{"?reverse=sideways", "?limit=-1", "?limit=many"} {
		w := do(t, h, "GET", "/api/v1/collections/first/entries"+query, "", testClientKey)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", query, w.Code)
		}
	}
}

func TestServer_handleList_ReleasesReferences(t *testing.T) {
	server := clientServer(t)
	h := server.Router()

	do(t, h, "PUT", "/api/v1/collections/first/entries/a", `"apple"`, testClientKey)
	do(t, h, "PUT", "/api/v1/collections/first/entries/b?partition=inner1", `"banana"`, testClientKey)

	before := server.store.Handle().Refs()
	for _, query := range []string{"?reverse=true", "?reverse=true", "?reverse=true&limit=1", "", "?limit=1"} {
		w := do(t, h, "GET", "/api/v1/collections/first/entries"+query, "", testClientKey)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d", query, w.Code)
		}
	}

	if after := server.store.Handle().Refs(); after != before {
		t.Errorf("Expected %d references after listing, got %d", before, after)
	}
}

func TestServer_handleList_CorruptEntry(t *testing.T) {
	server := clientServer(t)
	h := server.Router()

	path, err := keys.Root("first", server.store.RootMode())
	if err != nil {
		t.Fatal(err)
	}
	if err := server.store.Handle().Store().Put(keys.Compose(path.Prefix(), "bad"), []byte("junk")); err != nil {
		t.Fatal(err)
	}

	w := do(t, h, "GET", "/api/v1/collections/first/entries", "", testClientKey)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}

	w = do(t, h, "GET", "/api/v1/collections/first/entries/bad", "", testClientKey)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected status 422, got %d", w.Code)
	}

	if refs := server.store.Handle().Refs(); refs != 1 {
		t.Errorf("Expected only the store reference to remain, got %d", refs)
	}
}

func TestServer_handleStats(t *testing.T) {
	h := clientServer(t).Router()

	do(t, h, "PUT", "/api/v1/collections/first/entries/a", `1`, testClientKey)
	do(t, h, "PUT", "/api/v1/collections/first/entries/b?partition=p", `2`, testClientKey)

	w := do(t, h, "GET", "/api/v1/stats", "", testClientKey)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	_, stats := decodeResponse[store.StoreStats](t, w)
	if stats.Keys != 2 {
		t.Errorf("Expected 2 keys, got %d", stats.Keys)
	}
	if stats.DataSize == 0 {
		t.Error("Expected non-zero data size")
	}
}

func TestServer_handleExplain(t *testing.T) {
	h := clientServer(t).Router()

	do(t, h, "PUT", "/api/v1/collections/first/entries/a", `1`, testClientKey)
	do(t, h, "PUT", "/api/v1/collections/first/entries/b?partition=inner1", `2`, testClientKey)
	do(t, h, "PUT", "/api/v1/collections/second/entries/c", `3`, testClientKey)

	w := do(t, h, "GET", "/api/v1/explain?collection=first&samples=1", "", testClientKey)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	_, result := decodeResponse[store.ExplainResult](t, w)
	stats, ok := result.Collections["first"]
	if !ok {
		t.Fatalf("Expected collection first in %v", result.Collections)
	}
	if stats.Keys != 2 || stats.OwnKeys != 1 {
		t.Errorf("Expected 2 keys with 1 own key, got %+v", stats)
	}
	if _, ok := result.Collections["second"]; ok {
		t.Error("Expected explain to be restricted to first")
	}
	if len(result.Samples) != 1 {
		t.Errorf("Expected 1 sample, got %d", len(result.Samples))
	}

	w = do(t, h, "GET", "/api/v1/explain?samples=x", "", testClientKey)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}
