package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"studioflow-project/backend/logging"
)

// MaxObjectSize is the upload cap in bytes (500 MB).
const MaxObjectSize = 500 * 1024 * 1024

var allowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,

	"video/mp4":       true,
	"video/quicktime": true,
	"video/x-msvideo": true,

	"audio/mpeg":  true,
	"audio/wav":   true,
	"audio/x-wav": true,

	"application/pdf": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"application/zip":              true,
	"application/x-rar-compressed": true,
}

// AllowedMimeType reports whether uploads of this mime type are accepted.
func AllowedMimeType(mimeType string) bool {
	return allowedMimeTypes[mimeType]
}

// BlobStore keeps uploaded attachment bytes on local disk under a root
// directory. Locators are relative slash-separated paths and never escape
// the root.
type BlobStore struct {
	root string
}

func NewBlobStore(root string) (*BlobStore, error) {
	if root == "" {
		return nil, fmt.Errorf("blob store root is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create blob store root: %v", err)
	}
	return &BlobStore{root: root}, nil
}

func (s *BlobStore) resolve(locator string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(locator))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid blob locator")
	}
	return filepath.Join(s.root, clean), nil
}

// Upload writes the object and returns its locator (the path handed in).
// Size and mime type must have been validated by the caller; Upload enforces
// the hard byte cap again while copying.
func (s *BlobStore) Upload(locator string, r io.Reader) (string, error) {
	path, err := s.resolve(locator)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("failed to create blob directory: %v", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create blob: %v", err)
	}

	written, err := io.Copy(f, io.LimitReader(r, MaxObjectSize+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write blob: %v", err)
	}
	if written > MaxObjectSize {
		os.Remove(path)
		return "", fmt.Errorf("object exceeds maximum size of %d bytes", MaxObjectSize)
	}

	return locator, nil
}

// Download opens the object for reading. The caller closes the reader.
func (s *BlobStore) Download(locator string) (io.ReadCloser, error) {
	path, err := s.resolve(locator)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("blob not found: %v", err)
	}
	return f, nil
}

// Remove deletes the object. Removing a missing object is not an error.
func (s *BlobStore) Remove(locator string) error {
	path, err := s.resolve(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Logger.Warnf("Event ID: BLOB_REMOVE_FAILED, Description: Failed to remove blob %s: %v", locator, err)
		return err
	}
	return nil
}
