package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Local stores images under a directory on disk.
type Local struct {
	root string
}

// NewLocal creates the root directory when missing.
func NewLocal(root string) (*Local, error) {
	if root == "" {
		root = "uploads"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, wrap("mkdir", root, err)
	}
	return &Local{root: root}, nil
}

func (l *Local) path(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(cleaned)), nil
}

// Put implements ImageStore.
func (l *Local) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	dest, err := l.path(key)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return wrap("mkdir", key, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return wrap("create", key, err)
	}
	tmpName := tmp.Name()
	if _, err = io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return wrap("write", key, err)
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return wrap("close", key, err)
	}
	if err = os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return wrap("rename", key, err)
	}
	return nil
}

// Open implements ImageStore.
func (l *Local) Open(_ context.Context, key string) (io.ReadCloser, error) {
	src, err := l.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, wrap("open", key, err)
	}
	return f, nil
}

// URL implements ImageStore. Local images are always proxied.
func (l *Local) URL(context.Context, string) (string, error) {
	return "", nil
}

// Delete implements ImageStore.
func (l *Local) Delete(_ context.Context, key string) error {
	target, err := l.path(key)
	if err != nil {
		return err
	}
	if err = os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return wrap("delete", key, err)
	}
	return nil
}
