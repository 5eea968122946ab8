package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tensorfuzz/domaininfer/pkg/domain"
)

func openTemp(t *testing.T) *Registry {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestPutGetRoundTrip(t *testing.T) {
	r := openTemp(t)
	ctx := context.Background()

	set := domain.RangeSet{{Low: -2, High: -1}, {Low: 0, High: 1}}
	runID, err := r.Put(ctx, "digest-a", "native", set)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if runID == "" {
		t.Fatalf("Put returned empty run id")
	}

	rec, found, err := r.Get(ctx, "digest-a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatalf("stored record not found")
	}
	if rec.RunID != runID || rec.Backend != "native" {
		t.Errorf("record = %+v, want run id %q backend %q", rec, runID, "native")
	}
	if diff := cmp.Diff(set, rec.Ranges); diff != "" {
		t.Errorf("stored ranges mismatch (-want +got):\n%s", diff)
	}
}

func TestPutNilSentinel(t *testing.T) {
	r := openTemp(t)
	ctx := context.Background()

	if _, err := r.Put(ctx, "digest-b", "native", nil); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	rec, found, err := r.Get(ctx, "digest-b")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatalf("stored record not found")
	}
	// A recorded "no domain found" verdict must come back as nil, not empty.
	if rec.Ranges != nil {
		t.Errorf("nil sentinel came back as %v", rec.Ranges)
	}
}

func TestPutReplaces(t *testing.T) {
	r := openTemp(t)
	ctx := context.Background()

	if _, err := r.Put(ctx, "digest-c", "native", domain.RangeSet{{Low: 0, High: 1}}); err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	second, err := r.Put(ctx, "digest-c", "ort", domain.RangeSet{{Low: -1, High: 0}})
	if err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	rec, found, err := r.Get(ctx, "digest-c")
	if err != nil || !found {
		t.Fatalf("Get after replace: found=%v err=%v", found, err)
	}
	if rec.RunID != second || rec.Backend != "ort" {
		t.Errorf("record = %+v, want latest run %q backend %q", rec, second, "ort")
	}
	if diff := cmp.Diff(domain.RangeSet{{Low: -1, High: 0}}, rec.Ranges); diff != "" {
		t.Errorf("replaced ranges mismatch (-want +got):\n%s", diff)
	}
}

func TestGetMissing(t *testing.T) {
	r := openTemp(t)
	rec, found, err := r.Get(context.Background(), "never-stored")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found || rec != nil {
		t.Errorf("Get on missing digest: found=%v rec=%v", found, rec)
	}
}

func TestDigestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	got, err := DigestFile(path)
	if err != nil {
		t.Fatalf("DigestFile failed: %v", err)
	}
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("DigestFile = %q, want %q", got, want)
	}

	if _, err := DigestFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Errorf("expected error digesting missing file")
	}
}
