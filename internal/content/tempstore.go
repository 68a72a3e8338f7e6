package content

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

var extForType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
	"image/tiff": ".tif",
}

// TempStore writes upload bytes to disk under names derived from their
// content hash. Files are transient; the Sweeper removes them after a TTL.
type TempStore struct {
	dir string
}

// NewTempStore ensures dir exists and returns a store rooted there.
func NewTempStore(dir string) (*TempStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "content: create temp dir")
	}
	return &TempStore{dir: dir}, nil
}

// Dir returns the temp directory root.
func (t *TempStore) Dir() string {
	return t.dir
}

// Save writes data under a name derived from its content hash and returns
// the path. Deletion is the caller's (or the sweeper's) responsibility.
func (t *TempStore) Save(hash, mediaType string, data []byte) (string, error) {
	ext := extForType[mediaType]
	if ext == "" {
		ext = ".bin"
	}
	path := filepath.Join(t.dir, hash[:16]+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrap(err, "content: write temp file")
	}
	return path, nil
}

// Remove deletes a previously saved file. Missing files are not an error.
func (t *TempStore) Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return eris.Wrap(err, "content: remove temp file")
	}
	return nil
}

// SweepOnce removes files older than ttl and returns how many were deleted.
func (t *TempStore) SweepOnce(ttl time.Duration) (int, error) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return 0, eris.Wrap(err, "content: read temp dir")
	}

	cutoff := time.Now().Add(-ttl)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if rmErr := os.Remove(filepath.Join(t.dir, entry.Name())); rmErr == nil {
				removed++
			}
		}
	}
	return removed, nil
}
