// Package storage keeps receipt images on local disk or in an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// ErrInvalidKey is returned for keys that escape the store root.
var ErrInvalidKey = errors.New("storage: invalid key")

// ImageStore persists uploaded images.
type ImageStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// URL returns a link a browser can load directly, or "" when the image must be proxied.
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// ImageTypes maps accepted image content types to file extensions.
var ImageTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/heic": "heic",
}

// ReceiptKey builds "receipts/YYYY/MM/<shop-slug>/<uuid>.<ext>".
func ReceiptKey(shop string, now time.Time, ext string) string {
	shopSlug := slug.Make(shop)
	if shopSlug == "" {
		shopSlug = "shop"
	}
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = "bin"
	}
	return path.Join("receipts", now.UTC().Format("2006"), now.UTC().Format("01"), shopSlug, uuid.NewString()+"."+ext)
}

func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

func wrap(op, key string, err error) error {
	return fmt.Errorf("storage: %s %s: %w", op, key, err)
}
