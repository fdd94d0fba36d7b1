package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Dhakshil/ordernpick-sentiment-api/internal/domain"
)

type RequiredFileCheck struct {
	Name  string
	Found bool
	Size  int64
}

// DownloadCheck is the outcome of the optional test download.
type DownloadCheck struct {
	File  string
	Bytes int64
	Err   error
}

// StorageReport summarizes a storage verification run.
type StorageReport struct {
	Bucket    string
	Folder    string
	Connected bool
	ConnErr   error
	ListErr   error
	Objects   []domain.ObjectInfo
	Required  []RequiredFileCheck
	Download  *DownloadCheck
}

func (r StorageReport) Missing() []string {
	var out []string
	for _, c := range r.Required {
		if !c.Found {
			out = append(out, c.Name)
		}
	}
	return out
}

// OK reports whether the store is reachable, listable, complete and (if tested) downloadable.
func (r StorageReport) OK() bool {
	if !r.Connected || r.ListErr != nil || len(r.Missing()) > 0 {
		return false
	}
	return r.Download == nil || r.Download.Err == nil
}

type VerifyOptions struct {
	Bucket   string
	Folder   string
	Required []string
	// DownloadTest fetches the smallest required file to a temp directory and removes it.
	DownloadTest bool
}

// VerifyStorage checks that the artifact store holds a loadable model.
func VerifyStorage(ctx context.Context, open domain.StoreOpener, opts VerifyOptions) StorageReport {
	report := StorageReport{Bucket: opts.Bucket, Folder: opts.Folder}

	store, err := open(ctx)
	if err != nil {
		report.ConnErr = err
		return report
	}
	defer store.Close()
	report.Connected = true

	objects, err := store.List(ctx, opts.Folder)
	if err != nil {
		report.ListErr = err
		return report
	}
	report.Objects = objects

	sizes := make(map[string]int64, len(objects))
	for _, o := range objects {
		sizes[o.Name] = o.Size
	}

	for _, name := range opts.Required {
		size, found := sizes[domain.ObjectKey(opts.Folder, name)]
		report.Required = append(report.Required, RequiredFileCheck{Name: name, Found: found, Size: size})
	}

	if opts.DownloadTest && len(report.Missing()) == 0 && len(report.Required) > 0 {
		report.Download = testDownload(ctx, store, opts.Folder, report.Required)
	}
	return report
}

func testDownload(ctx context.Context, store domain.ArtifactStore, folder string, files []RequiredFileCheck) *DownloadCheck {
	smallest := slices.MinFunc(files, func(a, b RequiredFileCheck) int {
		return cmp.Compare(a.Size, b.Size)
	})
	check := &DownloadCheck{File: smallest.Name}

	dir, err := os.MkdirTemp("", "verify-storage-*")
	if err != nil {
		check.Err = err
		return check
	}
	defer os.RemoveAll(dir)

	local := filepath.Join(dir, smallest.Name)
	if err := store.Download(ctx, folder, smallest.Name, local); err != nil {
		check.Err = err
		return check
	}

	info, err := os.Stat(local)
	if err != nil {
		check.Err = err
		return check
	}
	check.Bytes = info.Size()
	return check
}

// Summary renders a short human-readable verdict.
func (r StorageReport) Summary() string {
	switch {
	case r.ConnErr != nil:
		if errors.Is(r.ConnErr, domain.ErrNoCredentials) {
			return "no storage credentials: " + r.ConnErr.Error()
		}
		return "connection failed: " + r.ConnErr.Error()
	case r.ListErr != nil:
		return "listing failed: " + r.ListErr.Error()
	case len(r.Missing()) > 0:
		return "missing required files: " + strings.Join(r.Missing(), ", ")
	case r.Download != nil && r.Download.Err != nil:
		return fmt.Sprintf("test download of %s failed: %v", r.Download.File, r.Download.Err)
	default:
		return fmt.Sprintf("all %d required files present", len(r.Required))
	}
}
