package metainfo

import (
	"context"
	"testing"

	"github.com/kvshard/core/btree"
	"github.com/kvshard/core/pagestore"
	"github.com/kvshard/core/region"
)

func newTestTree(t *testing.T) *btree.Tree {
	ps, err := pagestore.OpenInMemory()
	if err != nil {
		t.Fatalf("opening in-memory page store: %v", err)
	}
	cache := pagestore.CreateCache(ps, pagestore.CacheStaticConfig{})
	tr, err := btree.Create(cache, region.Universe())
	if err != nil {
		t.Fatalf("creating tree: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestRoundTrip(t *testing.T) {
	tr := newTestTree(t)
	wtxn, _ := tr.BeginWrite(context.Background(), 2)

	m := region.NewMap([]region.Entry[[]byte]{
		{Region: region.Region{LeftBound: region.BoundClosed, RightBound: region.BoundOpen, RightKey: []byte("m")}, Value: []byte{0x01}},
		{Region: region.Region{LeftBound: region.BoundClosed, LeftKey: []byte("m"), RightBound: region.BoundNone}, Value: []byte{0x02}},
	})

	if err := Set(tr, wtxn, m); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	got, err := Get(tr, wtxn)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	entries := got.Entries()
	if len(entries) != 2 || entries[0].Value[0] != 0x01 || entries[1].Value[0] != 0x02 {
		t.Fatalf("unexpected round trip: %+v", entries)
	}
}

func TestSetIsDomainRestrictedOverwrite(t *testing.T) {
	tr := newTestTree(t)
	wtxn, _ := tr.BeginWrite(context.Background(), 2)

	initial := region.NewMap([]region.Entry[[]byte]{
		{Region: region.Region{LeftBound: region.BoundClosed, RightBound: region.BoundOpen, RightKey: []byte("m")}, Value: []byte{0x01}},
		{Region: region.Region{LeftBound: region.BoundClosed, LeftKey: []byte("m"), RightBound: region.BoundNone}, Value: []byte{0x02}},
	})
	if err := Set(tr, wtxn, initial); err != nil {
		t.Fatalf("initial set failed: %v", err)
	}

	update := region.NewMap([]region.Entry[[]byte]{
		{Region: region.Region{LeftBound: region.BoundClosed, LeftKey: []byte("m"), RightBound: region.BoundNone}, Value: []byte{0x03}},
	})
	if err := Set(tr, wtxn, update); err != nil {
		t.Fatalf("update set failed: %v", err)
	}

	got, err := Get(tr, wtxn)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	entries := got.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", entries)
	}
	if entries[0].Value[0] != 0x01 {
		t.Fatalf("left piece should be preserved, got %v", entries[0].Value)
	}
	if entries[1].Value[0] != 0x03 {
		t.Fatalf("right piece should be overwritten, got %v", entries[1].Value)
	}
}
