// Package storage provides core.BlobStore implementations.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/Skryldev/doc-intake/core"
	apperrors "github.com/Skryldev/doc-intake/errors"
)

// Local stores artifacts on the local filesystem.  Files are written to a
// temporary name first and renamed into place, so a failed Put leaves
// nothing behind.
type Local struct {
	rootDir     string
	baseURL     string
	permissions os.FileMode
}

// NewLocal creates a Local storage adapter rooted at dir.  Links are
// baseURL/<name> when baseURL is set and file:// URLs otherwise.
func NewLocal(dir, baseURL string, perm os.FileMode) (*Local, error) {
	if perm == 0 {
		perm = 0o644
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: mkdir %s: %w", dir, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("local storage: %w", err)
	}
	return &Local{rootDir: abs, baseURL: strings.TrimRight(baseURL, "/"), permissions: perm}, nil
}

func (l *Local) Put(ctx context.Context, name string, r io.Reader, _ int64, _ string) (core.Object, error) {
	if err := ctx.Err(); err != nil {
		return core.Object{}, apperrors.Wrap(apperrors.CategoryStorage, "local.put", err)
	}
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." {
		return core.Object{}, apperrors.New(apperrors.CategoryStorage, "local.put", apperrors.ErrEmptyInput)
	}

	f, err := os.CreateTemp(l.rootDir, ".upload-*")
	if err != nil {
		return core.Object{}, apperrors.Wrap(apperrors.CategoryStorage, "local.put.create", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp) // no-op after a successful rename

	if _, err = io.Copy(f, r); err != nil {
		f.Close()
		return core.Object{}, apperrors.Wrap(apperrors.CategoryStorage, "local.put.copy", err)
	}
	if err = f.Close(); err != nil {
		return core.Object{}, apperrors.Wrap(apperrors.CategoryStorage, "local.put.close", err)
	}
	if err = os.Chmod(tmp, l.permissions); err != nil {
		return core.Object{}, apperrors.Wrap(apperrors.CategoryStorage, "local.put.chmod", err)
	}
	path := filepath.Join(l.rootDir, name)
	if err = os.Rename(tmp, path); err != nil {
		return core.Object{}, apperrors.Wrap(apperrors.CategoryStorage, "local.put.rename", err)
	}

	return core.Object{ID: name, Link: l.link(name, path)}, nil
}

func (l *Local) link(name, path string) string {
	if l.baseURL != "" {
		return l.baseURL + "/" + url.PathEscape(name)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
