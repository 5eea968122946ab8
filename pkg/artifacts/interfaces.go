// Package artifacts moves persisted domain artifacts (range-set files)
// between the local filesystem and shared storage, so inferred domains can be
// reused across fuzzing sessions and machines.
package artifacts

import "context"

type Reader interface {
	// Download fetches the artifact stored under key into destPath. If no
	// such artifact exists, Download returns an error for which
	// errors.Is(err, os.ErrNotExist) is true.
	Download(ctx context.Context, key string, destPath string) error
}

type Store interface {
	Reader
	// Upload stores the file at sourcePath under the given key. Uploading a
	// key that already exists is a no-op, not an error: artifacts are keyed
	// by model digest and their content is deterministic per key.
	Upload(ctx context.Context, sourcePath string, key string) error
}
