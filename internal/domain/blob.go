package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader reads archived objects back.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
}

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// SnapshotRoot is the key prefix of archived market snapshots.
const SnapshotRoot = "markets/"

// SnapshotKey returns the object key of a market snapshot taken at t:
// markets/YYYY/MM/DD/HHMMSS.<ext>, in UTC.
func SnapshotKey(t time.Time, ext string) string {
	return SnapshotRoot + t.UTC().Format("2006/01/02/150405") + "." + ext
}

// SnapshotDayPrefix returns the key prefix of every snapshot taken on the
// UTC day of t.
func SnapshotDayPrefix(t time.Time) string {
	return SnapshotRoot + t.UTC().Format("2006/01/02") + "/"
}
