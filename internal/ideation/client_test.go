package ideation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGenerateReturnsCandidateText(t *testing.T) {
	var gotPath, gotKey string
	var gotBody generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Goog-Api-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "theme text"}}}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "gemini-1.5-flash", "test-key", time.Second)
	text, err := c.Generate(context.Background(), "Needs drywall bid")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "theme text" {
		t.Errorf("text = %q", text)
	}
	if gotPath != "/models/gemini-1.5-flash:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("api key header = %q", gotKey)
	}
	if len(gotBody.Contents) != 1 || len(gotBody.Contents[0].Parts) != 1 {
		t.Fatalf("unexpected request body: %+v", gotBody)
	}
	if prompt := gotBody.Contents[0].Parts[0].Text; !strings.Contains(prompt, "Needs drywall bid") {
		t.Errorf("prompt missing description: %q", prompt)
	}
}

func TestGenerateBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "gemini-1.5-flash", "", time.Second)
	if _, err := c.Generate(context.Background(), "x"); err == nil {
		t.Fatal("expected error on non-2xx status")
	}
}

func TestGenerateEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "gemini-1.5-flash", "", time.Second)
	if _, err := c.Generate(context.Background(), "x"); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}
