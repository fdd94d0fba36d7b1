package domain

import (
	"context"
	"time"
)

// ObjectInfo describes one blob in the artifact store.
type ObjectInfo struct {
	Name    string
	Size    int64
	Updated time.Time
}

// ArtifactStore is remote blob storage keyed by folder prefix. Keys are built with ObjectKey.
type ArtifactStore interface {
	// Download writes the blob to localPath. A missing blob yields ErrArtifactNotFound.
	Download(ctx context.Context, folder, filename, localPath string) error
	List(ctx context.Context, folder string) ([]ObjectInfo, error)
	Close() error
}

// ObjectKey is the remote key of filename inside folder.
func ObjectKey(folder, filename string) string {
	if folder == "" {
		return filename
	}
	return folder + "/" + filename
}

// StoreOpener resolves credentials and connects to the artifact store.
type StoreOpener func(ctx context.Context) (ArtifactStore, error)
