package btree

import (
	"context"
	"testing"

	"github.com/kvshard/core/pagestore"
	"github.com/kvshard/core/query"
	"github.com/kvshard/core/region"
)

func newTestTree(t *testing.T) *Tree {
	ps, err := pagestore.OpenInMemory()
	if err != nil {
		t.Fatalf("opening in-memory page store: %v", err)
	}
	cache := pagestore.CreateCache(ps, pagestore.CacheStaticConfig{})
	tr, err := Create(cache, region.Universe())
	if err != nil {
		t.Fatalf("creating tree: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestSetGet(t *testing.T) {
	tr := newTestTree(t)
	ctx := context.Background()
	wtxn, _ := tr.BeginWrite(ctx, 2)

	res, err := tr.Change(wtxn, query.Mutation{Kind: query.MutSet, Key: []byte("k"), Value: []byte("v1")}, Castime{Cas: 1, Timestamp: 1})
	if err != nil || !res.Ok {
		t.Fatalf("set failed: ok=%v err=%v", res.Ok, err)
	}

	rtxn, _ := tr.BeginRead(ctx)
	atom, found, err := tr.Get(rtxn, []byte("k"))
	if err != nil || !found || string(atom.Value) != "v1" {
		t.Fatalf("unexpected get result: atom=%+v found=%v err=%v", atom, found, err)
	}
}

func TestAddReplaceCAS(t *testing.T) {
	tr := newTestTree(t)
	ctx := context.Background()
	wtxn, _ := tr.BeginWrite(ctx, 2)

	if res, _ := tr.Change(wtxn, query.Mutation{Kind: query.MutAdd, Key: []byte("k"), Value: []byte("v1")}, Castime{Cas: 1}); !res.Ok {
		t.Fatal("add on absent key should succeed")
	}
	if res, _ := tr.Change(wtxn, query.Mutation{Kind: query.MutAdd, Key: []byte("k"), Value: []byte("v2")}, Castime{Cas: 2}); res.Ok {
		t.Fatal("add on existing key should fail")
	}
	if res, _ := tr.Change(wtxn, query.Mutation{Kind: query.MutReplace, Key: []byte("missing"), Value: []byte("v")}, Castime{}); res.Ok {
		t.Fatal("replace on absent key should fail")
	}

	atom, _, _ := tr.Get(wtxn, []byte("k"))
	if res, _ := tr.Change(wtxn, query.Mutation{Kind: query.MutCAS, Key: []byte("k"), Value: []byte("v3"), ExpectedCas: atom.Cas + 999}, Castime{Cas: 3}); res.Ok {
		t.Fatal("cas with wrong expected token should fail")
	}
	if res, _ := tr.Change(wtxn, query.Mutation{Kind: query.MutCAS, Key: []byte("k"), Value: []byte("v3"), ExpectedCas: atom.Cas}, Castime{Cas: 3}); !res.Ok {
		t.Fatal("cas with correct expected token should succeed")
	}
}

func TestIncrDecr(t *testing.T) {
	tr := newTestTree(t)
	ctx := context.Background()
	wtxn, _ := tr.BeginWrite(ctx, 1)

	tr.Change(wtxn, query.Mutation{Kind: query.MutSet, Key: []byte("n"), Value: []byte("10")}, Castime{})
	res, err := tr.Change(wtxn, query.Mutation{Kind: query.MutIncr, Key: []byte("n"), Delta: 5}, Castime{})
	if err != nil || !res.Ok || string(res.Value) != "15" {
		t.Fatalf("incr: got %+v err=%v", res, err)
	}
	res, err = tr.Change(wtxn, query.Mutation{Kind: query.MutDecr, Key: []byte("n"), Delta: 100}, Castime{})
	if err != nil || !res.Ok || string(res.Value) != "0" {
		t.Fatalf("decr underflow should clamp to 0: got %+v err=%v", res, err)
	}
}

func TestDeleteAndHas(t *testing.T) {
	tr := newTestTree(t)
	ctx := context.Background()
	wtxn, _ := tr.BeginWrite(ctx, 2)

	tr.Change(wtxn, query.Mutation{Kind: query.MutSet, Key: []byte("k"), Value: []byte("v")}, Castime{})
	res, err := tr.Change(wtxn, query.Mutation{Kind: query.MutDelete, Key: []byte("k")}, Castime{})
	if err != nil || !res.Ok {
		t.Fatalf("delete failed: %+v err=%v", res, err)
	}
	_, found, _ := tr.Get(wtxn, []byte("k"))
	if found {
		t.Fatal("key should be absent after delete")
	}
}

func TestRgetOrdering(t *testing.T) {
	tr := newTestTree(t)
	ctx := context.Background()
	wtxn, _ := tr.BeginWrite(ctx, 4)

	for _, k := range []string{"c", "a", "d", "b"} {
		tr.Change(wtxn, query.Mutation{Kind: query.MutSet, Key: []byte(k), Value: []byte(k)}, Castime{})
	}

	rtxn, _ := tr.BeginRead(ctx)
	result, err := tr.Rget(rtxn, region.BoundNone, nil, region.BoundNone, nil)
	if err != nil {
		t.Fatalf("rget failed: %v", err)
	}

	var got []string
	for {
		a, ok, err := result.Next()
		if err != nil {
			t.Fatalf("iterating: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, string(a.Key))
	}
	want := []string{"a", "b", "c", "d"}
	for i, k := range want {
		if got[i] != k {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestBackfillEmitsNewerThanSince(t *testing.T) {
	tr := newTestTree(t)
	ctx := context.Background()
	wtxn, _ := tr.BeginWrite(ctx, 1)

	tr.Change(wtxn, query.Mutation{Kind: query.MutSet, Key: []byte("x"), Value: []byte("1")}, Castime{})
	since := tr.seq

	tr.Change(wtxn, query.Mutation{Kind: query.MutSet, Key: []byte("y"), Value: []byte("2")}, Castime{})

	var seen []string
	err := tr.Backfill(wtxn, region.Universe(), since, BackfillCallback{
		OnKeyValue: func(a query.Atom) error {
			seen = append(seen, string(a.Key))
			return nil
		},
	})
	if err != nil {
		t.Fatalf("backfill failed: %v", err)
	}
	if len(seen) != 1 || seen[0] != "y" {
		t.Fatalf("expected only y to be newer than since, got %v", seen)
	}
}
