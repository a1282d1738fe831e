// Package localfs archives raw crawl payloads on the worker's disk so a
// page can be re-parsed later without another crawl. Keys are content-hash
// derived, so writes are idempotent and never collide across sources.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

type Archive struct {
	basePath string
}

func New(basePath string) (*Archive, error) {
	if basePath == "" {
		basePath = "./data/archive"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Archive{basePath: basePath}, nil
}

// Save writes one payload under key. Keys must stay inside the archive
// directory; anything with a path separator is rejected.
func (a *Archive) Save(_ context.Context, key string, data io.Reader) error {
	if key == "" || strings.ContainsAny(key, `/\`) {
		return domain.WrapError(domain.ErrInvalidInput, "archive key",
			errors.New("key must be a bare file name"))
	}
	f, err := os.Create(filepath.Join(a.basePath, key))
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		return fmt.Errorf("write archive file: %w", err)
	}
	return nil
}
