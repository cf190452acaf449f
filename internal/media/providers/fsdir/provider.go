// Package fsdir stores blobs as plain files under a root directory.
package fsdir

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/chatsinkai/chatsink/internal/media"
)

// Provider implements media.StorageProvider on the local filesystem.
type Provider struct {
	root string
}

// New creates a Provider rooted at dir, creating it if needed.
func New(dir string) (*Provider, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve blob root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Provider{root: abs}, nil
}

// resolve maps a storage key to an absolute path, rejecting keys that
// escape the root.
func (p *Provider) resolve(key string) (string, error) {
	if key == "" {
		return "", media.ErrInvalidKey
	}
	path := filepath.Join(p.root, filepath.FromSlash(key))
	if path != p.root && !strings.HasPrefix(path, p.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", media.ErrInvalidKey, key)
	}
	return path, nil
}

func (p *Provider) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	path, err := p.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create blob dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create blob: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("write blob: %w", err)
	}
	return n, nil
}

func (p *Provider) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := p.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", media.ErrNotFound, key)
		}
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return f, nil
}

func (p *Provider) Delete(ctx context.Context, key string) error {
	path, err := p.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// AccessPath returns the absolute filesystem path for key.
func (p *Provider) AccessPath(key string) string {
	path, err := p.resolve(key)
	if err != nil {
		return ""
	}
	return path
}
