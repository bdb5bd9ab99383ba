package testsupport

import (
	"context"
	"testing"

	"wallp/internal/config"
	"wallp/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// MarkSeen records a staged image with the given context reference so later
// selections treat it as already used.
func MarkSeen(t testing.TB, st *store.Store, source, contextURL string) {
	t.Helper()

	_, err := st.InsertImage(context.Background(), &store.ImageRecord{
		Path:       "/tmp/seen",
		Source:     source,
		ContextURL: contextURL,
	})
	if err != nil {
		t.Fatalf("store.InsertImage: %v", err)
	}
}
