package preflight

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"wallp/internal/services"
	"wallp/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckEndpoint_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "wallp-test" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := CheckEndpoint(context.Background(), "xkcd", srv.URL, "wallp-test")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckEndpoint_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	result := CheckEndpoint(context.Background(), "Bing", srv.URL, "")
	if result.Passed {
		t.Fatal("expected failure for 503")
	}
}

func TestCheckEndpoint_MissingURL(t *testing.T) {
	result := CheckEndpoint(context.Background(), "xkcd", " ", "")
	if result.Passed {
		t.Fatal("expected failure for missing URL")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("free", dir, 0); !result.Passed {
		t.Fatalf("expected zero floor to pass, got: %s", result.Detail)
	}
	if result := CheckFreeSpace("free", dir, math.MaxUint64); result.Passed {
		t.Fatal("expected impossible floor to fail")
	}
	if result := CheckFreeSpace("free", filepath.Join(dir, "missing"), 0); result.Passed {
		t.Fatal("expected missing path to fail")
	}
}

func TestEnsureFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if err := EnsureFreeSpace(dir, 0); err != nil {
		t.Fatalf("expected no error for zero floor, got %v", err)
	}
	err := EnsureFreeSpace(dir, math.MaxUint64)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ColorOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSources("color"))

	results := RunAll(context.Background(), cfg)
	// Three directories plus free space, no endpoints.
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAll_IncludesEnabledEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithSources("xkcd", "bing"), testsupport.WithBaseURLs(srv.URL))

	results := RunAll(context.Background(), cfg)
	found := map[string]bool{}
	for _, r := range results {
		if r.Name == "xkcd" || r.Name == "Bing" {
			found[r.Name] = true
			if !r.Passed {
				t.Errorf("%s check failed: %s", r.Name, r.Detail)
			}
		}
	}
	if !found["xkcd"] || !found["Bing"] {
		t.Fatalf("expected endpoint checks in results, got %+v", results)
	}
}

func TestCheckSystemDeps(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("feh"))
	cfg.Desktop.Backend = "feh"

	statuses := CheckSystemDeps(cfg)
	if len(statuses) != 1 || !statuses[0].Available {
		t.Fatalf("expected feh to be available, got %+v", statuses)
	}

	cfg.Desktop.Backend = "none"
	if statuses := CheckSystemDeps(cfg); len(statuses) != 0 {
		t.Fatalf("expected no deps for none backend, got %+v", statuses)
	}
}

func TestHumanBytes(t *testing.T) {
	cases := map[uint64]string{
		512:     "512 B",
		2048:    "2.0 KiB",
		5 << 20: "5.0 MiB",
	}
	for in, want := range cases {
		if got := humanBytes(in); got != want {
			t.Fatalf("humanBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
