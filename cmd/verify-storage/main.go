// Command verify-storage checks that the configured artifact store holds a complete model.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Dhakshil/ordernpick-sentiment-api/internal/adapter/artifactstore"
	"github.com/Dhakshil/ordernpick-sentiment-api/internal/app"
	"github.com/Dhakshil/ordernpick-sentiment-api/internal/domain"
	"github.com/Dhakshil/ordernpick-sentiment-api/internal/modelcache"
	"github.com/Dhakshil/ordernpick-sentiment-api/internal/platform/config"
	"github.com/Dhakshil/ordernpick-sentiment-api/internal/platform/logging"
)

var errVerifyFailed = errors.New("storage verification failed")

func newRootCmd(cfg *config.Config) *cobra.Command {
	opts := app.VerifyOptions{
		Bucket:   cfg.StorageBucket,
		Folder:   cfg.StorageFolder,
		Required: modelcache.DefaultRequiredFiles,
	}
	backend := cfg.StorageBackend

	cmd := &cobra.Command{
		Use:   "verify-storage",
		Short: "Verify the model artifacts in remote storage",
		Long: `Connect to the configured artifact store, list the model folder and check that every
required model file is present. With --download-test the smallest required file is
downloaded to a temporary directory and removed again.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opener := artifactstore.NewOpener(artifactstore.Options{
				Backend:                 backend,
				Bucket:                  opts.Bucket,
				FirebaseCredentials:     cfg.FirebaseCredentials,
				FirebaseCredentialsPath: cfg.FirebaseCredentialsPath,
				S3Region:                cfg.S3Region,
				S3Endpoint:              cfg.S3Endpoint,
			})
			return runVerify(cmd.Context(), cmd.OutOrStdout(), opener, opts)
		},
	}

	cmd.Flags().StringVar(&backend, "backend", backend, "storage backend (gcs or s3)")
	cmd.Flags().StringVar(&opts.Bucket, "bucket", opts.Bucket, "bucket holding the model")
	cmd.Flags().StringVar(&opts.Folder, "folder", opts.Folder, "folder prefix of the model files")
	cmd.Flags().BoolVar(&opts.DownloadTest, "download-test", false, "download the smallest required file")

	return cmd
}

func runVerify(ctx context.Context, out io.Writer, open domain.StoreOpener, opts app.VerifyOptions) error {
	report := app.VerifyStorage(ctx, open, opts)
	printReport(out, report)
	if !report.OK() {
		return errVerifyFailed
	}
	return nil
}

func printReport(out io.Writer, r app.StorageReport) {
	fmt.Fprintf(out, "Bucket: %s\nFolder: %s\n\n", r.Bucket, r.Folder)

	if !r.Connected {
		fmt.Fprintf(out, "Connection: FAILED\n\n%s\n", r.Summary())
		return
	}
	fmt.Fprintln(out, "Connection: OK")

	if r.ListErr == nil {
		fmt.Fprintf(out, "\nObjects (%d):\n", len(r.Objects))
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, o := range r.Objects {
			fmt.Fprintf(tw, "  %s\t%d bytes\n", o.Name, o.Size)
		}
		_ = tw.Flush()

		fmt.Fprintln(out, "\nRequired files:")
		for _, c := range r.Required {
			mark := "missing"
			if c.Found {
				mark = "found"
			}
			fmt.Fprintf(out, "  [%s] %s\n", mark, c.Name)
		}
	}

	if r.Download != nil && r.Download.Err == nil {
		fmt.Fprintf(out, "\nTest download: %s (%d bytes)\n", r.Download.File, r.Download.Bytes)
	}

	status := "OK"
	if !r.OK() {
		status = "FAILED"
	}
	fmt.Fprintf(out, "\nResult: %s, %s\n", status, r.Summary())
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(cfg).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
