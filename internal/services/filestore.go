package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"guardian-api/internal/config"
)

// FileStore serves product archives from a local directory. It is invoked
// only after the entitlement gate has approved the redemption.
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at the configured products dir.
func NewFileStore(cfg *config.Config) *FileStore {
	return &FileStore{dir: cfg.ProductsDir}
}

// OpenForDownload opens the referenced product file for streaming and returns
// its size. The reference is reduced to a bare file name so a crafted
// reference cannot escape the products directory.
func (f *FileStore) OpenForDownload(fileReference string) (io.ReadCloser, int64, error) {
	name := filepath.Base(fileReference)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return nil, 0, fmt.Errorf("invalid file reference %q", fileReference)
	}

	path := filepath.Join(f.dir, name)
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("product file %s not available: %w", name, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, err
	}
	return file, info.Size(), nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// DownloadFilename builds a safe attachment name for a redemption.
func DownloadFilename(productID, activationKey string) string {
	prefix := activationKey
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	name := fmt.Sprintf("%s_%s.zip", strings.ToLower(productID), strings.ToLower(prefix))
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}
