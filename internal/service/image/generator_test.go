package image

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/xiaoyue/companion/internal/config"
)

func newGenerator(t *testing.T, cfg config.ImageConfig) *Generator {
	t.Helper()
	if cfg.CacheDir == "" {
		cfg.CacheDir = t.TempDir()
	}
	gen, err := NewGenerator(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewGenerator err: %v", err)
	}
	return gen
}

func TestGenerateStaticMode(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "gym-selfie.jpg"), []byte("jpg"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	gen := newGenerator(t, config.ImageConfig{Mode: "static", CacheDir: dir})

	got, err := gen.Generate(context.Background(), "life", "gym")
	if err != nil {
		t.Fatalf("Generate err: %v", err)
	}
	if got != filepath.Join(dir, "gym-selfie.jpg") {
		t.Fatalf("unexpected image path: %s", got)
	}
}

func TestGenerateStaticModeMissingFileReturnsDefault(t *testing.T) {
	gen := newGenerator(t, config.ImageConfig{Mode: "static"})

	got, err := gen.Generate(context.Background(), "work", "coffee")
	if err != nil {
		t.Fatalf("Generate err: %v", err)
	}
	if !strings.HasSuffix(got, "default.jpg") {
		t.Fatalf("expected default image path, got %s", got)
	}
}

func TestGenerateAIMode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/images/generations", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", got)
		}
		req := generateRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !strings.Contains(req.Prompt, "咖啡馆") {
			t.Errorf("prompt missing scene text: %s", req.Prompt)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"created": 1,
			"data":    []map[string]string{{"url": fmt.Sprintf("http://%s/img.jpg", r.Host)}},
		})
	})
	mux.HandleFunc("/img.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jpg-bytes"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gen := newGenerator(t, config.ImageConfig{
		Mode:    "ai",
		APIKey:  "test-key",
		Model:   "cogview-3-flash",
		BaseURL: srv.URL + "/images/generations",
	})

	got, err := gen.Generate(context.Background(), "work", "coffee")
	if err != nil {
		t.Fatalf("Generate err: %v", err)
	}
	if !strings.HasSuffix(got, "/img.jpg") {
		t.Fatalf("unexpected image url: %s", got)
	}
}

func TestGenerateAIFailureFallsBackToStatic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	gen := newGenerator(t, config.ImageConfig{
		Mode:    "ai",
		APIKey:  "test-key",
		BaseURL: srv.URL,
	})

	got, err := gen.Generate(context.Background(), "life", "gym")
	if err != nil {
		t.Fatalf("Generate err: %v", err)
	}
	if !strings.HasSuffix(got, "default.jpg") {
		t.Fatalf("expected static fallback, got %s", got)
	}
}
