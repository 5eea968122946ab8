package domain

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRangeValidate(t *testing.T) {
	tests := []struct {
		r  Range
		ok bool
	}{
		{Range{0, 1}, true},
		{Range{-3, -3}, true},
		{Range{1, 0}, false},
	}
	for _, test := range tests {
		t.Run(test.r.String(), func(t *testing.T) {
			err := test.r.Validate()
			if test.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !test.ok && err == nil {
				t.Errorf("Validate() = nil, want error")
			}
		})
	}
}

func TestRangeSetValidate(t *testing.T) {
	tests := []struct {
		name string
		s    RangeSet
		ok   bool
	}{
		{"nil", nil, true},
		{"single", RangeSet{{0, 1}}, true},
		{"disjoint sorted", RangeSet{{-2, -1}, {0, 1}, {2, 3}}, true},
		{"overlapping", RangeSet{{0, 1}, {0.5, 2}}, false},
		{"touching", RangeSet{{0, 1}, {1, 2}}, false},
		{"out of order", RangeSet{{2, 3}, {0, 1}}, false},
		{"inverted member", RangeSet{{1, 0}}, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.s.Validate()
			if test.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !test.ok && err == nil {
				t.Errorf("Validate() = nil, want error")
			}
		})
	}
}

func TestRangeSetContains(t *testing.T) {
	s := RangeSet{{-2, -1}, {0, 1}}
	for p, want := range map[float64]bool{
		-1.5: true,
		-1:   true, // boundaries are inclusive
		0:    true,
		1:    true,
		-0.5: false,
		5:    false,
	} {
		if got := s.Contains(p); got != want {
			t.Errorf("Contains(%v) = %v, want %v", p, got, want)
		}
	}
}

func TestCodecRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		s    RangeSet
	}{
		{"nil sentinel", nil},
		{"empty", RangeSet{}},
		{"single default", RangeSet{{0, 1}}},
		{"multiple", RangeSet{{-10, -0.25}, {0.25, 10}}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, test.s); err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			got, err := Decode(&buf)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if diff := cmp.Diff(test.s, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
			// The nil sentinel must survive as nil, not come back empty.
			if test.s == nil && got != nil {
				t.Errorf("nil sentinel decoded as non-nil %v", got)
			}
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode(bytes.NewReader([]byte("not an artifact"))); err == nil {
		t.Errorf("expected error decoding garbage")
	}
	// Valid framing around an invalid (overlapping) set must be rejected too.
	var buf bytes.Buffer
	buf.Write(artifactMagic[:])
	buf.Write([]byte{artifactVersion, 1})
	binary.Write(&buf, binary.LittleEndian, uint32(2))
	for _, f := range []float64{0, 1, 0.5, 2} {
		binary.Write(&buf, binary.LittleEndian, f)
	}
	if _, err := Decode(&buf); err == nil {
		t.Errorf("expected error decoding overlapping ranges")
	}
}

func TestSaveLoadFile(t *testing.T) {
	dir := t.TempDir()

	tests := []RangeSet{
		nil,
		{{-1, -0.5}, {0, 1}},
	}
	for i, s := range tests {
		t.Run(fmt.Sprintf("case%d", i), func(t *testing.T) {
			path := filepath.Join(dir, fmt.Sprintf("domain%d.bin", i))
			if err := Save(path, s); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			got, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile failed: %v", err)
			}
			if diff := cmp.Diff(s, got); diff != "" {
				t.Errorf("file round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncodeRejectsInvalid(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, RangeSet{{1, 0}}); err == nil {
		t.Errorf("expected error encoding inverted range")
	}
}
