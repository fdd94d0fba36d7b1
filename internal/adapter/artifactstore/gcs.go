package artifactstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/Dhakshil/ordernpick-sentiment-api/internal/domain"
)

var _ domain.ArtifactStore = (*GCSStore)(nil)

// GCSStore reads artifacts from a Google Cloud Storage bucket, which is what Firebase Storage
// buckets are underneath.
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

func NewGCSStore(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSStore, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: client.Bucket(bucket)}, nil
}

func (s *GCSStore) Download(ctx context.Context, folder, filename, localPath string) error {
	key := domain.ObjectKey(folder, filename)
	r, err := s.bucket.Object(key).NewReader(ctx)
	if err != nil {
		return mapGCSError(key, err)
	}
	defer r.Close()

	return writeFile(localPath, func(f *os.File) error {
		if _, err := io.Copy(f, r); err != nil {
			return fmt.Errorf("download %s: %w", key, err)
		}
		return nil
	})
}

func (s *GCSStore) List(ctx context.Context, folder string) ([]domain.ObjectInfo, error) {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: folderPrefix(folder)})

	var out []domain.ObjectInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", folder, err)
		}
		out = append(out, domain.ObjectInfo{Name: attrs.Name, Size: attrs.Size, Updated: attrs.Updated})
	}
	return out, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func mapGCSError(key string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%s: %w", key, domain.ErrArtifactNotFound)
	}
	return fmt.Errorf("open %s: %w", key, err)
}
