package query

import (
	"testing"

	"github.com/kvshard/core/region"
)

func TestGetShardIdentity(t *testing.T) {
	g := NewGet([]byte("apple"))
	sharded := g.Shard(region.Point([]byte("apple")))
	if sharded.Kind != ReadGet || string(sharded.Key) != "apple" {
		t.Fatalf("unexpected sharded get: %+v", sharded)
	}
}

func TestGetShardWrongRegionPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when sharding Get onto a foreign region")
		}
	}()
	g := NewGet([]byte("apple"))
	g.Shard(region.Region{LeftBound: region.BoundClosed, LeftKey: []byte("m"), RightBound: region.BoundNone})
}

func TestRgetShard(t *testing.T) {
	r := NewRget(region.BoundClosed, []byte("a"), region.BoundOpen, []byte("z"))

	left := r.Shard(region.Region{LeftBound: region.BoundClosed, LeftKey: []byte("a"), RightBound: region.BoundOpen, RightKey: []byte("m")})
	if string(left.LeftKey) != "a" || left.RightBound != region.BoundOpen || string(left.RightKey) != "m" {
		t.Fatalf("unexpected left shard: %+v", left)
	}

	right := r.Shard(region.Region{LeftBound: region.BoundClosed, LeftKey: []byte("m"), RightBound: region.BoundOpen, RightKey: []byte("z")})
	if string(right.LeftKey) != "m" || right.RightBound != region.BoundOpen || string(right.RightKey) != "z" {
		t.Fatalf("unexpected right shard: %+v", right)
	}
}

func TestRgetUnshardEmptyParts(t *testing.T) {
	r := NewRget(region.BoundClosed, []byte("a"), region.BoundOpen, []byte("z"))
	resp := r.Unshard([]Response{
		{Kind: ReadRget, Rget: NewSliceResult(nil)},
		{Kind: ReadRget, Rget: NewSliceResult(nil)},
	})
	_, ok, err := resp.Rget.Next()
	if err != nil || ok {
		t.Fatalf("expected empty merged sequence, got ok=%v err=%v", ok, err)
	}
}

func TestMergeIteratorOrdering(t *testing.T) {
	left := NewSliceResult([]Atom{{Key: []byte("a")}, {Key: []byte("c")}})
	right := NewSliceResult([]Atom{{Key: []byte("b")}, {Key: []byte("d")}})

	merged := NewMergeIterator([]RgetResult{left, right})
	var got []string
	for {
		a, ok, err := merged.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, string(a.Key))
	}

	want := []string{"a", "b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestMutationShardIdentity(t *testing.T) {
	m := Mutation{Kind: MutSet, Key: []byte("k"), Value: []byte("v1")}
	sharded := m.Shard(m.GetRegion())
	if string(sharded.Key) != "k" {
		t.Fatalf("unexpected sharded mutation: %+v", sharded)
	}
}

func TestMutationShardWrongRegionPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when sharding a mutation onto a foreign region")
		}
	}()
	m := Mutation{Kind: MutSet, Key: []byte("k")}
	m.Shard(region.Point([]byte("other")))
}
