package region

import "testing"

func TestContainsUniverse(t *testing.T) {
	u := Universe()
	for _, k := range []string{"", "a", "zzzz"} {
		if !Contains(u, []byte(k)) {
			t.Fatalf("universe should contain %q", k)
		}
	}
}

func TestSplitAtM(t *testing.T) {
	left := Region{LeftBound: BoundClosed, RightBound: BoundOpen, RightKey: []byte("m")}
	right := Region{LeftBound: BoundClosed, LeftKey: []byte("m"), RightBound: BoundNone}

	if !Contains(left, []byte("apple")) {
		t.Fatal("left piece should contain apple")
	}
	if Contains(left, []byte("m")) {
		t.Fatal("left piece should not contain m")
	}
	if !Contains(right, []byte("m")) {
		t.Fatal("right piece should contain m")
	}
}

func TestIsSuperset(t *testing.T) {
	u := Universe()
	left := Region{LeftBound: BoundClosed, RightBound: BoundOpen, RightKey: []byte("m")}
	if !IsSuperset(u, left) {
		t.Fatal("universe should be superset of left half")
	}
	if IsSuperset(left, u) {
		t.Fatal("left half should not be superset of universe")
	}
}

func TestIntersect(t *testing.T) {
	a := Region{LeftBound: BoundClosed, LeftKey: []byte("a"), RightBound: BoundOpen, RightKey: []byte("m")}
	b := Region{LeftBound: BoundClosed, LeftKey: []byte("g"), RightBound: BoundNone}

	got, ok := Intersect(a, b)
	if !ok {
		t.Fatal("expected overlap")
	}
	want := Region{LeftBound: BoundClosed, LeftKey: []byte("g"), RightBound: BoundOpen, RightKey: []byte("m")}
	if !Equals(got, want) {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestIntersectDisjoint(t *testing.T) {
	a := Point([]byte("apple"))
	b := Region{LeftBound: BoundClosed, LeftKey: []byte("m"), RightBound: BoundNone}
	if _, ok := Intersect(a, b); ok {
		t.Fatal("expected no overlap")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Region{
		Universe(),
		Point([]byte("apple")),
		{LeftBound: BoundClosed, RightBound: BoundOpen, RightKey: []byte("m")},
		{LeftBound: BoundClosed, LeftKey: []byte("m"), RightBound: BoundNone},
	}
	for _, r := range cases {
		enc := EncodeKey(r)
		dec, err := DecodeKey(enc)
		if err != nil {
			t.Fatalf("decode error: %v", err)
		}
		if !Equals(dec, r) {
			t.Fatalf("round trip mismatch: got %s want %s", dec, r)
		}
	}
}

func TestEncodeKeyDeterministic(t *testing.T) {
	r := Region{LeftBound: BoundClosed, LeftKey: []byte("m"), RightBound: BoundNone}
	a := EncodeKey(r)
	b := EncodeKey(r)
	if string(a) != string(b) {
		t.Fatal("encoding must be deterministic")
	}
}

func TestNewMapPanicsOnGap(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on gapped region map")
		}
	}()
	NewMap([]Entry[int]{
		{Region: Region{LeftBound: BoundClosed, RightBound: BoundOpen, RightKey: []byte("c")}, Value: 1},
		{Region: Region{LeftBound: BoundClosed, LeftKey: []byte("g"), RightBound: BoundNone}, Value: 2},
	})
}

func TestMapEntriesAndUpdate(t *testing.T) {
	m := NewMap([]Entry[byte]{
		{Region: Region{LeftBound: BoundClosed, RightBound: BoundOpen, RightKey: []byte("m")}, Value: 0x01},
		{Region: Region{LeftBound: BoundClosed, LeftKey: []byte("m"), RightBound: BoundNone}, Value: 0x02},
	})

	if got := m.Entries(); len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}

	update := NewMap([]Entry[byte]{
		{Region: Region{LeftBound: BoundClosed, LeftKey: []byte("m"), RightBound: BoundNone}, Value: 0x03},
	})

	merged := m.Update(update)
	entries := merged.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 merged entries, got %d", len(entries))
	}
	if entries[0].Value != 0x01 {
		t.Fatalf("left entry should be preserved, got %v", entries[0].Value)
	}
	if entries[1].Value != 0x03 {
		t.Fatalf("right entry should be overwritten, got %v", entries[1].Value)
	}
}

func TestMapMask(t *testing.T) {
	m := NewMap([]Entry[int]{{Region: Universe(), Value: 7}})
	sub := Region{LeftBound: BoundClosed, LeftKey: []byte("c"), RightBound: BoundOpen, RightKey: []byte("g")}
	masked := m.Mask(sub)
	entries := masked.Entries()
	if len(entries) != 1 || entries[0].Value != 7 {
		t.Fatalf("unexpected mask result: %+v", entries)
	}
	if !Equals(entries[0].Region, sub) {
		t.Fatalf("mask region mismatch: got %s want %s", entries[0].Region, sub)
	}
}
