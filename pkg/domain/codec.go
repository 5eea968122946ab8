package domain

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Artifact format, little-endian:
//
//	[magic "DINF" (4B)] [version (1B)] [present flag (1B)]
//	[count (uint32)] [low (float64)] [high (float64)] ...
//
// A zero present flag encodes the nil "no safe range found" sentinel; count
// and pairs are omitted in that case. Round-tripping reproduces the sequence
// exactly, including the sentinel.
var artifactMagic = [4]byte{'D', 'I', 'N', 'F'}

const artifactVersion uint8 = 1

// Encode writes the range set to w.
func Encode(w io.Writer, s RangeSet) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if _, err := w.Write(artifactMagic[:]); err != nil {
		return fmt.Errorf("writing magic: %w", err)
	}
	header := []byte{artifactVersion, 0}
	if s != nil {
		header[1] = 1
	}
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if s == nil {
		return nil
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return fmt.Errorf("writing count: %w", err)
	}
	for _, r := range s {
		if err := binary.Write(w, binary.LittleEndian, r.Low); err != nil {
			return fmt.Errorf("writing range: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, r.High); err != nil {
			return fmt.Errorf("writing range: %w", err)
		}
	}
	return nil
}

// Decode reads a range set written by Encode and revalidates its invariants.
func Decode(r io.Reader) (RangeSet, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("reading magic: %w", err)
	}
	if magic != artifactMagic {
		return nil, fmt.Errorf("not a domain artifact (magic %q)", magic)
	}
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if header[0] != artifactVersion {
		return nil, fmt.Errorf("unsupported artifact version %d", header[0])
	}
	if header[1] == 0 {
		return nil, nil
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("reading count: %w", err)
	}
	s := make(RangeSet, 0, count)
	for i := uint32(0); i < count; i++ {
		var rng Range
		if err := binary.Read(r, binary.LittleEndian, &rng.Low); err != nil {
			return nil, fmt.Errorf("reading range %d: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &rng.High); err != nil {
			return nil, fmt.Errorf("reading range %d: %w", i, err)
		}
		s = append(s, rng)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("decoded artifact is invalid: %w", err)
	}
	return s, nil
}

// Save writes the range set to path, atomically via a temp file.
func Save(path string, s RangeSet) error {
	dir := filepath.Dir(path)
	tempFile, err := os.CreateTemp(dir, "domain")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tempFile.Name())

	if err := Encode(tempFile, s); err != nil {
		tempFile.Close()
		return err
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tempFile.Name(), path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// LoadFile reads a range set artifact from path.
func LoadFile(path string) (RangeSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening domain artifact %q: %w", path, err)
	}
	defer f.Close()
	s, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding domain artifact %q: %w", path, err)
	}
	return s, nil
}
