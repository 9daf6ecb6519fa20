package lockin

import (
	"encoding/binary"
	"testing"
)

func TestSampleBuffer_Drain(t *testing.T) {
	pairs := []SamplePair{{1, 2}, {0xDEADBEEF, 0x01020304}, {0, 0xFFFFFFFF}}

	testCases := []struct {
		name  string
		order ByteOrder
		bo    binary.AppendByteOrder
	}{
		{"little endian", LittleEndian, binary.LittleEndian},
		{"big endian", BigEndian, binary.BigEndian},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := newSampleBuffer()
			if _, err := b.Write(encodePairs(pairs, tc.bo)); err != nil {
				t.Fatalf("Write failed: %v", err)
			}

			got := b.drain(tc.order)
			if len(got) != len(pairs) {
				t.Fatalf("Expected %d pairs, got %d", len(pairs), len(got))
			}
			for i := range pairs {
				if got[i] != pairs[i] {
					t.Errorf("Pair %d: expected %+v, got %+v", i, pairs[i], got[i])
				}
			}
			if b.Len() != 0 {
				t.Errorf("Expected an empty buffer, %d bytes left", b.Len())
			}
		})
	}
}

func TestSampleBuffer_KeepsPartialFrame(t *testing.T) {
	raw := encodePairs([]SamplePair{{1, 2}, {3, 4}}, binary.LittleEndian)

	b := newSampleBuffer()
	_, _ = b.Write(raw[:11]) // one pair and three bytes of the next

	if got := b.drain(LittleEndian); len(got) != 1 || got[0] != (SamplePair{1, 2}) {
		t.Fatalf("Expected the first pair only, got %v", got)
	}
	if b.Len() != 3 {
		t.Fatalf("Expected 3 bytes kept, got %d", b.Len())
	}

	_, _ = b.Write(raw[11:])
	if got := b.drain(LittleEndian); len(got) != 1 || got[0] != (SamplePair{3, 4}) {
		t.Errorf("Expected the second pair once complete, got %v", got)
	}
}

func TestSampleBuffer_Empty(t *testing.T) {
	if got := newSampleBuffer().drain(LittleEndian); got != nil {
		t.Errorf("Expected nil from an empty buffer, got %v", got)
	}
}
