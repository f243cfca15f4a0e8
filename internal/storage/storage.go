package storage

import (
	"context"
	"io"
)

// ImageStore persists artwork images and hands back a public URL.
type ImageStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}
