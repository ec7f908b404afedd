// Package testing holds a store-construction-agnostic conformance suite.
// Any factory that produces a *store.Store can be run through
// RunStoreTests to check the properties every store construction must
// satisfy regardless of what page store backs its B-tree.
package testing

import (
	"context"
	"testing"

	"github.com/kvshard/core/backfill"
	"github.com/kvshard/core/query"
	"github.com/kvshard/core/region"
	"github.com/kvshard/core/store"
)

// Factory constructs a fresh, empty *store.Store for one subtest. The
// returned store is closed automatically by RunStoreTests.
type Factory func(t *testing.T) *store.Store

func universeMap() region.Map[[]byte] {
	return region.NewMap([]region.Entry[[]byte]{{Region: region.Universe()}})
}

// RunStoreTests registers one subtest per conformance scenario under a
// t.Run(name, ...) group, so the same suite can be run against every
// store.Store construction this codebase ships (in-memory pagestore,
// on-disk pagestore) with a single call site.
func RunStoreTests(t *testing.T, name string, factory Factory) {
	t.Run(name, func(t *testing.T) {
		t.Run("WriteThenRead", func(t *testing.T) { testWriteThenRead(t, factory) })
		t.Run("FIFOUnderWrites", func(t *testing.T) { testFIFOUnderWrites(t, factory) })
		t.Run("CancelledTicketDoesNotStallLater", func(t *testing.T) { testCancelledTicketDoesNotStallLater(t, factory) })
		t.Run("MetainfoRoundTrip", func(t *testing.T) { testMetainfoRoundTrip(t, factory) })
		t.Run("ResetData", func(t *testing.T) { testResetData(t, factory) })
		t.Run("BackfillIdempotence", func(t *testing.T) { testBackfillIdempotence(t, factory) })
	})
}

func newStore(t *testing.T, factory Factory) *store.Store {
	s := factory(t)
	t.Cleanup(func() { s.Close() })
	return s
}

// testWriteThenRead mirrors scenario E4's setup half: a write must be
// visible to a subsequent read of the same key.
func testWriteThenRead(t *testing.T, factory Factory) {
	s := newStore(t, factory)
	ctx := context.Background()
	empty := universeMap()

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

// testFIFOUnderWrites mirrors scenario E4 and invariant 7: given issuance
// order (write, read), the read must observe the write's commit.
func testFIFOUnderWrites(t *testing.T, factory Factory) {
	s := newStore(t, factory)
	ctx := context.Background()
	empty := universeMap()

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

// testCancelledTicketDoesNotStallLater mirrors invariant 6: cancelling an
// earlier ticket must not stall a later, non-cancelled one.
func testCancelledTicketDoesNotStallLater(t *testing.T, factory Factory) {
	s := newStore(t, factory)
	empty := universeMap()

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

// testMetainfoRoundTrip mirrors invariants 4 and 5, and scenario E3.
func testMetainfoRoundTrip(t *testing.T, factory Factory) {
	s := newStore(t, factory)
	ctx := context.Background()

	mid := []byte("m")
	left := region.Region{LeftBound: region.BoundNone, RightBound: region.BoundOpen, RightKey: mid}
	right := region.Region{LeftBound: region.BoundClosed, LeftKey: mid, RightBound: region.BoundNone}

	set := region.NewMap([]region.Entry[[]byte]{
		{Region: left, Value: []byte{0x01}},
		{Region: right, Value: []byte{0x02}},
	})

	st := s.NewWriteTicket()
	if err := s.SetMetainfo(ctx, set, st); err != nil {
		t.Fatalf("set metainfo: %v", err)
	}

	gt := s.NewReadTicket()
	got, err := s.GetMetainfo(ctx, gt)
	if err != nil {
		t.Fatalf("get metainfo: %v", err)
	}
	for _, e := range got.Entries() {
		if region.Equals(e.Region, left) && string(e.Value) != string([]byte{0x01}) {
			t.Fatalf("left sub-region: got %v", e.Value)
		}
		if region.Equals(e.Region, right) && string(e.Value) != string([]byte{0x02}) {
			t.Fatalf("right sub-region: got %v", e.Value)
		}
	}

	partial := region.NewMap([]region.Entry[[]byte]{{Region: right, Value: []byte{0x03}}})
	st2 := s.NewWriteTicket()
	if err := s.SetMetainfo(ctx, partial, st2); err != nil {
		t.Fatalf("partial set metainfo: %v", err)
	}
	gt2 := s.NewReadTicket()
	got2, err := s.GetMetainfo(ctx, gt2)
	if err != nil {
		t.Fatalf("get metainfo: %v", err)
	}
	for _, e := range got2.Entries() {
		if region.Equals(e.Region, left) && string(e.Value) != string([]byte{0x01}) {
			t.Fatalf("left sub-region should survive a disjoint update: got %v", e.Value)
		}
		if region.Equals(e.Region, right) && string(e.Value) != string([]byte{0x03}) {
			t.Fatalf("right sub-region should reflect the update: got %v", e.Value)
		}
	}
}

// testResetData mirrors scenario E5.
func testResetData(t *testing.T, factory Factory) {
	s := newStore(t, factory)
	ctx := context.Background()
	empty := universeMap()

	for _, k := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		wt := s.NewWriteTicket()
		if _, err := s.Write(ctx, empty, empty, query.Mutation{Kind: query.MutSet, Key: []byte(k), Value: []byte(k)}, 1, wt); err != nil {
			t.Fatalf("seeding key %q: %v", k, err)
		}
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

// testBackfillIdempotence mirrors scenario E6 and invariant 8.
func testBackfillIdempotence(t *testing.T, factory Factory) {
	s := newStore(t, factory)
	ctx := context.Background()

	chunks := []backfill.Chunk{
		{Kind: backfill.ChunkSetKey, Atom: query.Atom{Key: []byte("x"), Value: []byte("1")}},
		{Kind: backfill.ChunkDeleteKey, Key: []byte("x")},
		{Kind: backfill.ChunkSetKey, Atom: query.Atom{Key: []byte("x"), Value: []byte("1")}},
	}

	apply := func() {
		for _, c := range chunks {
			wt := s.NewWriteTicket()
			if err := s.ReceiveBackfill(ctx, c, wt); err != nil {
				t.Fatalf("receive backfill: %v", err)
			}
		}
	}

	apply()
	apply()

	empty := universeMap()
	rt := s.NewReadTicket()
	resp, err := s.Read(ctx, empty, query.NewGet([]byte("x")), rt)
	if err != nil || !resp.Get.Found || string(resp.Get.Atom.Value) != "1" {
		t.Fatalf("unexpected state after idempotent replay: %+v err=%v", resp.Get, err)
	}
}
