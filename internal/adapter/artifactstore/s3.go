package artifactstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/Dhakshil/ordernpick-sentiment-api/internal/domain"
)

var _ domain.ArtifactStore = (*S3Store)(nil)

type S3Options struct {
	Bucket string
	Region string
	// Endpoint targets an S3-compatible service (MinIO, R2) and switches to path-style addressing.
	Endpoint string
	// Credentials overrides the default AWS credential chain.
	Credentials aws.CredentialsProvider
}

type S3Store struct {
	client     *s3.Client
	downloader *manager.Downloader
	bucket     string
}

func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
		// Downloads are retried by the loader's own policy.
		awsconfig.WithRetryMaxAttempts(1),
	}
	if opts.Credentials != nil {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(opts.Credentials))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:     client,
		downloader: manager.NewDownloader(client),
		bucket:     opts.Bucket,
	}, nil
}

func (s *S3Store) Download(ctx context.Context, folder, filename, localPath string) error {
	key := domain.ObjectKey(folder, filename)
	return writeFile(localPath, func(f *os.File) error {
		_, err := s.downloader.Download(ctx, f, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if isS3NotFound(err) {
			return fmt.Errorf("%s: %w", key, domain.ErrArtifactNotFound)
		}
		if err != nil {
			return fmt.Errorf("download %s: %w", key, err)
		}
		return nil
	})
}

func (s *S3Store) List(ctx context.Context, folder string) ([]domain.ObjectInfo, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(folderPrefix(folder)),
	})

	var out []domain.ObjectInfo
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", folder, err)
		}
		for _, obj := range page.Contents {
			out = append(out, domain.ObjectInfo{
				Name:    aws.ToString(obj.Key),
				Size:    aws.ToInt64(obj.Size),
				Updated: aws.ToTime(obj.LastModified),
			})
		}
	}
	return out, nil
}

func (s *S3Store) Close() error {
	return nil
}

func isS3NotFound(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := errors.AsType[*types.NoSuchKey](err); ok {
		return true
	}
	if re, ok := errors.AsType[*awshttp.ResponseError](err); ok {
		return re.HTTPStatusCode() == http.StatusNotFound
	}
	return false
}
