package artifactstore

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"

	"github.com/Dhakshil/ordernpick-sentiment-api/internal/domain"
	"github.com/Dhakshil/ordernpick-sentiment-api/internal/platform/config"
)

type Options struct {
	// Backend is config.BackendGCS or config.BackendS3; empty means GCS.
	Backend string
	Bucket  string

	FirebaseCredentials     string
	FirebaseCredentialsPath string

	S3Region   string
	S3Endpoint string
}

// NewOpener returns a domain.StoreOpener that resolves credentials and connects lazily,
// so a process with a warm cache never touches remote storage.
func NewOpener(opts Options) domain.StoreOpener {
	return func(ctx context.Context) (domain.ArtifactStore, error) {
		return Open(ctx, opts)
	}
}

func Open(ctx context.Context, opts Options) (domain.ArtifactStore, error) {
	switch opts.Backend {
	case config.BackendGCS, "":
		creds, err := ResolveCredentials(opts.FirebaseCredentials, opts.FirebaseCredentialsPath)
		if err != nil {
			return nil, err
		}
		slog.Info("Connecting to Firebase Storage",
			"bucket", opts.Bucket,
			"credentials_source", creds.Source,
			"client_email", creds.ClientEmail,
		)
		return NewGCSStore(ctx, opts.Bucket, option.WithCredentialsJSON(creds.JSON))

	case config.BackendS3:
		slog.Info("Connecting to S3 storage", "bucket", opts.Bucket, "region", opts.S3Region, "endpoint", opts.S3Endpoint)
		return NewS3Store(ctx, S3Options{
			Bucket:   opts.Bucket,
			Region:   opts.S3Region,
			Endpoint: opts.S3Endpoint,
		})

	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
