package artifacts

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"k8s.io/klog/v2"
)

// LocalStore keeps artifacts as files in a directory, keyed by file name.
type LocalStore struct {
	Dir string
}

var _ Store = (*LocalStore)(nil)

func (l *LocalStore) path(key string) string {
	return filepath.Join(l.Dir, key)
}

func (l *LocalStore) Upload(ctx context.Context, sourcePath string, key string) error {
	log := klog.FromContext(ctx)

	destPath := l.path(key)
	if _, err := os.Stat(destPath); err == nil {
		log.V(1).Info("artifact already stored", "key", key)
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking for artifact %q: %w", key, err)
	}

	if err := os.MkdirAll(l.Dir, 0755); err != nil {
		return fmt.Errorf("creating artifact directory %q: %w", l.Dir, err)
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("opening source file: %w", err)
	}
	defer src.Close()

	if _, err := writeToFile(ctx, src, destPath); err != nil {
		return fmt.Errorf("storing artifact %q: %w", key, err)
	}
	log.Info("stored artifact", "key", key, "path", destPath)
	return nil
}

func (l *LocalStore) Download(ctx context.Context, key string, destPath string) error {
	src, err := os.Open(l.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("artifact %q not found: %w", key, os.ErrNotExist)
		}
		return fmt.Errorf("opening artifact %q: %w", key, err)
	}
	defer src.Close()

	if _, err := writeToFile(ctx, src, destPath); err != nil {
		return fmt.Errorf("copying artifact %q: %w", key, err)
	}
	return nil
}

// writeToFile streams src into destinationPath via a temp file in the same
// directory, renaming only on success so readers never see partial content.
func writeToFile(ctx context.Context, src io.Reader, destinationPath string) (int64, error) {
	log := klog.FromContext(ctx)

	dir := filepath.Dir(destinationPath)
	tempFile, err := os.CreateTemp(dir, "artifact")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}

	shouldDeleteTempFile := true
	defer func() {
		if shouldDeleteTempFile {
			if err := os.Remove(tempFile.Name()); err != nil {
				log.Error(err, "removing temp file", "path", tempFile.Name())
			}
		}
	}()

	shouldCloseTempFile := true
	defer func() {
		if shouldCloseTempFile {
			if err := tempFile.Close(); err != nil {
				log.Error(err, "closing temp file", "path", tempFile.Name())
			}
		}
	}()

	n, err := io.Copy(tempFile, src)
	if err != nil {
		return n, fmt.Errorf("copying to temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return n, fmt.Errorf("closing temp file: %w", err)
	}
	shouldCloseTempFile = false

	if err := os.Rename(tempFile.Name(), destinationPath); err != nil {
		return n, fmt.Errorf("renaming temp file: %w", err)
	}
	shouldDeleteTempFile = false

	return n, nil
}
