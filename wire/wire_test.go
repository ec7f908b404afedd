package wire

import (
	"bytes"
	"testing"
)

func sampleMessage() Message {
	return Message{
		Op:          OpCAS,
		Key:         []byte("k"),
		Value:       []byte("v"),
		Flags:       7,
		Exptime:     42,
		Cas:         9,
		ExpectedCas: 8,
		Timestamp:   123,
		LeftBound:   BoundClosed,
		LeftKey:     []byte("a"),
		RightBound:  BoundOpen,
		RightKey:    []byte("z"),
		Atoms: []MetaAtom{
			{Key: []byte("x"), Value: []byte("1"), Cas: 1, Recency: 2},
		},
		MetaEntries: []MetaEntry{
			{LeftBound: BoundClosed, RightBound: BoundNone, Blob: []byte{0x01}},
		},
		StartPoint: []BackfillStartPointEntry{
			{LeftBound: BoundClosed, RightBound: BoundNone, Timestamp: 5},
		},
		Ok:    true,
		Found: true,
	}
}

func TestSerializerRoundTrips(t *testing.T) {
	for _, s := range []struct {
		name string
		ser  Serializer
	}{
		{"json", NewJSONSerializer()},
		{"gob", NewGOBSerializer()},
		{"binary", NewBinarySerializer()},
	} {
		t.Run(s.name, func(t *testing.T) {
			in := sampleMessage()
			b, err := s.ser.Serialize(in)
			if err != nil {
				t.Fatalf("serialize: %v", err)
			}
			var out Message
			if err := s.ser.Deserialize(b, &out); err != nil {
				t.Fatalf("deserialize: %v", err)
			}
			if out.Op != in.Op || !bytes.Equal(out.Key, in.Key) || !bytes.Equal(out.Value, in.Value) {
				t.Fatalf("round trip mismatch: got %+v want %+v", out, in)
			}
			if out.Cas != in.Cas || out.ExpectedCas != in.ExpectedCas || out.Timestamp != in.Timestamp {
				t.Fatalf("scalar round trip mismatch: got %+v", out)
			}
			if len(out.Atoms) != 1 || string(out.Atoms[0].Key) != "x" {
				t.Fatalf("atoms round trip mismatch: got %+v", out.Atoms)
			}
			if len(out.MetaEntries) != 1 || out.MetaEntries[0].Blob[0] != 0x01 {
				t.Fatalf("meta entries round trip mismatch: got %+v", out.MetaEntries)
			}
			if len(out.StartPoint) != 1 || out.StartPoint[0].Timestamp != 5 {
				t.Fatalf("start point round trip mismatch: got %+v", out.StartPoint)
			}
			if !out.Ok || !out.Found {
				t.Fatalf("bool flags round trip mismatch: got %+v", out)
			}
		})
	}
}

func TestNewErrorMessage(t *testing.T) {
	msg := NewError(errTest{})
	if msg.Op != OpError || msg.Err != "boom" {
		t.Fatalf("unexpected error message: %+v", msg)
	}
}

type errTest struct{}

func (errTest) Error() string { return "boom" }
