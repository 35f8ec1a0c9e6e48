package document

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrDocumentNotFound is returned when the configured PDF path does not resolve.
var ErrDocumentNotFound = errors.New("document not found")

// Source is a PDF loaded into memory together with its content fingerprint.
type Source struct {
	Path        string
	Name        string // base filename, used in chunk titles
	Data        []byte
	ContentHash string
}

// Load reads the PDF at path.
func Load(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &Source{
		Path:        path,
		Name:        filepath.Base(path),
		Data:        data,
		ContentHash: ContentHashHex(data),
	}, nil
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
