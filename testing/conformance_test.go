package testing

import (
	"path/filepath"
	"testing"

	"github.com/kvshard/core/btree"
	"github.com/kvshard/core/pagestore"
	"github.com/kvshard/core/region"
	"github.com/kvshard/core/store"
)

func TestConformance(t *testing.T) {
	RunStoreTests(t, "in-memory pagestore", func(t *testing.T) *store.Store {
		ps, err := pagestore.OpenInMemory()
		if err != nil {
			t.Fatalf("opening in-memory page store: %v", err)
		}
		cache := pagestore.CreateCache(ps, pagestore.CacheStaticConfig{})
		tr, err := btree.Create(cache, region.Universe())
		if err != nil {
			t.Fatalf("creating tree: %v", err)
		}
		return store.New(tr)
	})

	RunStoreTests(t, "on-disk pagestore", func(t *testing.T) *store.Store {
		dir := filepath.Join(t.TempDir(), "shard")
		ps, err := pagestore.Create(dir, pagestore.StaticConfig{})
		if err != nil {
			t.Fatalf("creating page store at %s: %v", dir, err)
		}
		cache := pagestore.CreateCache(ps, pagestore.CacheStaticConfig{})
		tr, err := btree.Create(cache, region.Universe())
		if err != nil {
			t.Fatalf("creating tree: %v", err)
		}
		return store.New(tr)
	})
}
