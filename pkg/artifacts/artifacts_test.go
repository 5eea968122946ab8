package artifacts

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "src.bin")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing source file: %v", err)
	}
	return path
}

func TestLocalStoreRoundTrip(t *testing.T) {
	store := &LocalStore{Dir: filepath.Join(t.TempDir(), "store")}
	ctx := context.Background()

	src := writeTemp(t, "range payload")
	if err := store.Upload(ctx, src, "abc123"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "out.bin")
	if err := store.Download(ctx, "abc123", dest); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading downloaded artifact: %v", err)
	}
	if string(got) != "range payload" {
		t.Errorf("downloaded %q, want %q", got, "range payload")
	}
}

func TestLocalStoreUploadIdempotent(t *testing.T) {
	store := &LocalStore{Dir: t.TempDir()}
	ctx := context.Background()

	first := writeTemp(t, "first")
	if err := store.Upload(ctx, first, "key"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	// A second upload under the same key must not replace the content.
	second := writeTemp(t, "second")
	if err := store.Upload(ctx, second, "key"); err != nil {
		t.Fatalf("repeat Upload failed: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "out.bin")
	if err := store.Download(ctx, "key", dest); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	got, _ := os.ReadFile(dest)
	if string(got) != "first" {
		t.Errorf("repeat upload replaced content: got %q", got)
	}
}

func TestLocalStoreDownloadMissing(t *testing.T) {
	store := &LocalStore{Dir: t.TempDir()}
	err := store.Download(context.Background(), "nope", filepath.Join(t.TempDir(), "out.bin"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing artifact: got %v, want os.ErrNotExist", err)
	}
}

func TestHTTPReaderDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/artifacts/deadbeef" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("served payload"))
	}))
	defer srv.Close()

	base, err := url.Parse(srv.URL + "/artifacts/")
	if err != nil {
		t.Fatalf("parsing base url: %v", err)
	}
	reader := &HTTPReader{BaseURL: base}

	dest := filepath.Join(t.TempDir(), "out.bin")
	if err := reader.Download(context.Background(), "deadbeef", dest); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading downloaded artifact: %v", err)
	}
	if string(got) != "served payload" {
		t.Errorf("downloaded %q, want %q", got, "served payload")
	}

	err = reader.Download(context.Background(), "missing", dest)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("404: got %v, want os.ErrNotExist", err)
	}
}

func TestWriteToFileLeavesNoTempOnFailure(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")

	if _, err := writeToFile(context.Background(), failingReader{}, dest); err == nil {
		t.Fatalf("expected copy error")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("listing dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("failed write left files behind: %v", entries)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("broken stream")
}
