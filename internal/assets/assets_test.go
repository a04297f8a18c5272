package assets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writeFile(%s) failed: %v", name, err)
	}
}

func TestEnsure_PreProvisioned(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "model")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "ggml-model-q8_0.bin", "weights")
	writeFile(t, dir, stagingMarker, "ok")

	got, err := Ensure(context.Background(), Config{
		Dir:   dir,
		Files: []string{"ggml-model-q8_0.bin"},
	})
	if err != nil {
		t.Fatalf("Ensure() failed: %v", err)
	}
	if got != dir {
		t.Errorf("Expected dir %s, got %s", dir, got)
	}
}

func TestEnsure_MissingWithoutSource(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "model")

	if _, err := Ensure(context.Background(), Config{
		Dir:   dir,
		Files: []string{"ggml-model-q8_0.bin"},
	}); err == nil {
		t.Fatal("Expected error when files are missing and no source is configured")
	}
}

func TestEnsure_DownloadsAndMarks(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write([]byte("weights"))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "model")
	cfg := Config{
		Dir:       dir,
		Files:     []string{"ggml-model-q8_0.bin"},
		SourceURL: srv.URL,
	}

	got, err := Ensure(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Ensure() failed: %v", err)
	}
	if got != dir {
		t.Errorf("Expected dir %s, got %s", dir, got)
	}
	if !Staged(dir) {
		t.Error("Expected staging marker after successful download")
	}

	// A second Ensure must not download again.
	before := atomic.LoadInt32(&requests)
	if _, err := Ensure(context.Background(), cfg); err != nil {
		t.Fatalf("Second Ensure() failed: %v", err)
	}
	if after := atomic.LoadInt32(&requests); after != before {
		t.Errorf("Expected no additional downloads, got %d more", after-before)
	}
}

func TestEnsure_RetriesTransientFailure(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("weights"))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "model")
	if _, err := Ensure(context.Background(), Config{
		Dir:       dir,
		Files:     []string{"ggml-model-q8_0.bin"},
		SourceURL: srv.URL,
	}); err != nil {
		t.Fatalf("Ensure() failed: %v", err)
	}
	if got := atomic.LoadInt32(&requests); got != 2 {
		t.Errorf("Expected 2 requests (1 failure + 1 success), got %d", got)
	}
}

func TestInvalidate_ForcesRestaging(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write([]byte("weights"))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "model")
	cfg := Config{
		Dir:       dir,
		Files:     []string{"ggml-model-q8_0.bin"},
		SourceURL: srv.URL,
	}
	if _, err := Ensure(context.Background(), cfg); err != nil {
		t.Fatalf("Ensure() failed: %v", err)
	}

	if err := Invalidate(dir); err != nil {
		t.Fatalf("Invalidate() failed: %v", err)
	}
	if Staged(dir) {
		t.Fatal("Expected marker to be gone after Invalidate")
	}

	before := atomic.LoadInt32(&requests)
	if _, err := Ensure(context.Background(), cfg); err != nil {
		t.Fatalf("Ensure() after Invalidate failed: %v", err)
	}
	if after := atomic.LoadInt32(&requests); after == before {
		t.Error("Expected re-staging to download again")
	}
}

func TestInvalidate_NoMarkerIsFine(t *testing.T) {
	if err := Invalidate(t.TempDir()); err != nil {
		t.Errorf("Invalidate() on unmarked dir failed: %v", err)
	}
}
