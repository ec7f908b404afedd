package store

import (
	"context"
	"testing"

	"github.com/kvshard/core/backfill"
	"github.com/kvshard/core/btree"
	"github.com/kvshard/core/pagestore"
	"github.com/kvshard/core/query"
	"github.com/kvshard/core/region"
)

func newTestStore(t *testing.T) *Store {
	ps, err := pagestore.OpenInMemory()
	if err != nil {
		t.Fatalf("opening in-memory page store: %v", err)
	}
	cache := pagestore.CreateCache(ps, pagestore.CacheStaticConfig{})
	tr, err := btree.Create(cache, region.Universe())
	if err != nil {
		t.Fatalf("creating tree: %v", err)
	}
	s := New(tr)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWriteThenRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	empty := region.NewMap([]region.Entry[[]byte]{{Region: region.Universe()}})

	wt := s.NewWriteTicket()
	res, err := s.Write(ctx, empty, empty, query.Mutation{Kind: query.MutSet, Key: []byte("k"), Value: []byte("v1")}, 1, wt)
	if err != nil || !res.Ok {
		t.Fatalf("write failed: res=%+v err=%v", res, err)
	}

	rt := s.NewReadTicket()
	resp, err := s.Read(ctx, empty, query.NewGet([]byte("k")), rt)
	if err != nil || !resp.Get.Found || string(resp.Get.Atom.Value) != "v1" {
		t.Fatalf("read failed: resp=%+v err=%v", resp, err)
	}
}

// TestFIFOUnderWrites mirrors scenario E4: a write followed immediately by
// a read of the same key must observe the write.
func TestFIFOUnderWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	empty := region.NewMap([]region.Entry[[]byte]{{Region: region.Universe()}})

	w1 := s.NewWriteTicket()
	r1 := s.NewReadTicket()

	go func() {
		s.Write(ctx, empty, empty, query.Mutation{Kind: query.MutSet, Key: []byte("k"), Value: []byte("v1")}, 1, w1)
	}()

	resp, err := s.Read(ctx, empty, query.NewGet([]byte("k")), r1)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !resp.Get.Found || string(resp.Get.Atom.Value) != "v1" {
		t.Fatalf("read did not observe preceding write: %+v", resp.Get)
	}
}

// TestCancelledTicketDoesNotStallLater mirrors invariant 6.
func TestCancelledTicketDoesNotStallLater(t *testing.T) {
	s := newTestStore(t)
	empty := region.NewMap([]region.Entry[[]byte]{{Region: region.Universe()}})

	blocked := s.NewWriteTicket()
	t1 := s.NewReadTicket()
	t2 := s.NewReadTicket()

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Read(cancelled, empty, query.NewGet([]byte("x")), t1); err == nil {
		t.Fatal("expected interrupted error")
	}

	done := make(chan struct{})
	go func() {
		s.Read(context.Background(), empty, query.NewGet([]byte("x")), t2)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("t2 should still be blocked behind the un-dropped earlier ticket")
	default:
	}

	blocked.Release()
	<-done
}

func TestResetData(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	empty := region.NewMap([]region.Entry[[]byte]{{Region: region.Universe()}})

	for _, k := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		wt := s.NewWriteTicket()
		s.Write(ctx, empty, empty, query.Mutation{Kind: query.MutSet, Key: []byte(k), Value: []byte(k)}, 1, wt)
	}

	sub := region.Region{LeftBound: region.BoundClosed, LeftKey: []byte("c"), RightBound: region.BoundOpen, RightKey: []byte("g")}
	rt := s.NewWriteTicket()
	if err := s.ResetData(ctx, sub, empty, rt); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	for _, k := range []string{"c", "d", "e", "f"} {
		gt := s.NewReadTicket()
		resp, _ := s.Read(ctx, empty, query.NewGet([]byte(k)), gt)
		if resp.Get.Found {
			t.Fatalf("key %q should be absent after reset", k)
		}
	}
	for _, k := range []string{"a", "b", "g", "h"} {
		gt := s.NewReadTicket()
		resp, _ := s.Read(ctx, empty, query.NewGet([]byte(k)), gt)
		if !resp.Get.Found {
			t.Fatalf("key %q should remain after reset", k)
		}
	}
}

// TestBackfillRoundTripIsIdempotent mirrors scenario E6.
func TestBackfillRoundTripIsIdempotent(t *testing.T) {
	dst := newTestStore(t)
	ctx := context.Background()

	chunks := []backfill.Chunk{
		{Kind: backfill.ChunkSetKey, Atom: atomFor("x", "1")},
		{Kind: backfill.ChunkDeleteKey, Key: []byte("x")},
		{Kind: backfill.ChunkSetKey, Atom: atomFor("x", "1")},
	}

	apply := func() {
		for _, c := range chunks {
			wt := dst.NewWriteTicket()
			if err := dst.ReceiveBackfill(ctx, c, wt); err != nil {
				t.Fatalf("receive backfill: %v", err)
			}
		}
	}

	apply()
	apply()

	empty := region.NewMap([]region.Entry[[]byte]{{Region: region.Universe()}})
	rt := dst.NewReadTicket()
	resp, err := dst.Read(ctx, empty, query.NewGet([]byte("x")), rt)
	if err != nil || !resp.Get.Found || string(resp.Get.Atom.Value) != "1" {
		t.Fatalf("unexpected state after idempotent replay: %+v err=%v", resp.Get, err)
	}
}

func atomFor(key, value string) query.Atom {
	return query.Atom{Key: []byte(key), Value: []byte(value)}
}
