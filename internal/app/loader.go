package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/Dhakshil/ordernpick-sentiment-api/internal/domain"
	"github.com/Dhakshil/ordernpick-sentiment-api/internal/modelcache"
	"github.com/Dhakshil/ordernpick-sentiment-api/internal/platform/retry"
)

// Loader stages reported to the observer.
const (
	StageDownload = "download"
	StageModel    = "model"
	StagePipeline = "pipeline"
)

// LoaderObserver receives lifecycle events, typically for metrics.
type LoaderObserver interface {
	CacheChecked(missing int)
	StateChanged(state domain.LoaderState)
	DownloadAttempted(file string, err error, d time.Duration)
	StageCompleted(stage string, d time.Duration)
}

type noopLoaderObserver struct{}

func (noopLoaderObserver) CacheChecked(int)                                {}
func (noopLoaderObserver) StateChanged(domain.LoaderState)                 {}
func (noopLoaderObserver) DownloadAttempted(string, error, time.Duration) {}
func (noopLoaderObserver) StageCompleted(string, time.Duration)            {}

type LoaderConfig struct {
	// Folder is the remote prefix holding the artifacts.
	Folder string
	Retry  retry.Policy
}

type loaderSnapshot struct {
	status     domain.LoaderStatus
	classifier domain.Classifier
}

// ResourceLoader owns the model lifecycle: cache check, download, load, and the terminal
// ready or fallback state. Readers see immutable snapshots through an atomic pointer.
type ResourceLoader struct {
	cache    *modelcache.Cache
	open     domain.StoreOpener
	models   domain.ModelLoader
	cfg      LoaderConfig
	clock    clockwork.Clock
	observer LoaderObserver

	group    singleflight.Group
	snapshot atomic.Pointer[loaderSnapshot]
}

// NewResourceLoader creates a loader in the uninitialized state. observer may be nil.
func NewResourceLoader(cache *modelcache.Cache, open domain.StoreOpener, models domain.ModelLoader, cfg LoaderConfig, clock clockwork.Clock, observer LoaderObserver) *ResourceLoader {
	if observer == nil {
		observer = noopLoaderObserver{}
	}
	if cfg.Retry.Clock == nil {
		cfg.Retry.Clock = clock
	}

	l := &ResourceLoader{
		cache:    cache,
		open:     open,
		models:   models,
		cfg:      cfg,
		clock:    clock,
		observer: observer,
	}
	l.snapshot.Store(&loaderSnapshot{status: domain.LoaderStatus{State: domain.StateUninitialized}})
	return l
}

func (l *ResourceLoader) Status() domain.LoaderStatus {
	return l.snapshot.Load().status
}

// Classifier returns the loaded pipeline, or false until the loader is ready.
func (l *ResourceLoader) Classifier() (domain.Classifier, bool) {
	s := l.snapshot.Load()
	return s.classifier, s.classifier != nil
}

// EnsureReady runs the lifecycle once per process. Concurrent callers share the first run and
// later callers get its terminal status without touching storage again.
func (l *ResourceLoader) EnsureReady(ctx context.Context) domain.LoaderStatus {
	if s := l.Status(); s.State.Terminal() {
		return s
	}

	v, _, _ := l.group.Do("ensure-ready", func() (any, error) {
		if s := l.Status(); s.State.Terminal() {
			return s, nil
		}
		return l.run(ctx), nil
	})
	return v.(domain.LoaderStatus)
}

func (l *ResourceLoader) run(ctx context.Context) (status domain.LoaderStatus) {
	defer func() {
		if r := recover(); r != nil {
			status = l.fail(l.Status(), fmt.Errorf("panic while loading model: %v", r))
		}
	}()

	start := l.clock.Now()
	dir := l.cache.Dir()

	if l.cache.IsComplete() {
		l.observer.CacheChecked(0)
		slog.Info("Using cached model", "dir", dir)
	} else {
		missing := l.cache.Missing()
		l.observer.CacheChecked(len(missing))
		slog.Info("Model cache incomplete, downloading from storage",
			"dir", dir,
			"folder", l.cfg.Folder,
			"missing", missing,
		)
		l.publish(domain.LoaderStatus{State: domain.StateDownloading}, nil)

		if err := l.download(ctx); err != nil {
			return l.fail(l.Status(), err)
		}
		l.observer.StageCompleted(StageDownload, l.clock.Since(start))
	}

	l.publish(domain.LoaderStatus{State: domain.StateLoading}, nil)

	stageStart := l.clock.Now()
	model, err := l.models.LoadModel(dir)
	if err != nil {
		return l.fail(l.Status(), fmt.Errorf("load model: %w", err))
	}
	l.observer.StageCompleted(StageModel, l.clock.Since(stageStart))
	l.publish(domain.LoaderStatus{State: domain.StateLoading, ModelLoaded: true}, nil)
	slog.Info("Model loaded", "labels", model.Labels())

	stageStart = l.clock.Now()
	pipeline, err := l.models.NewPipeline(dir, model)
	if err != nil {
		return l.fail(l.Status(), fmt.Errorf("build pipeline: %w", err))
	}
	l.observer.StageCompleted(StagePipeline, l.clock.Since(stageStart))

	ready := domain.LoaderStatus{State: domain.StateReady, ModelLoaded: true, PipelineReady: true}
	l.publish(ready, pipeline)
	slog.Info("Sentiment pipeline ready", "duration", l.clock.Since(start))
	return ready
}

func (l *ResourceLoader) download(ctx context.Context) error {
	store, err := l.open(ctx)
	if err != nil {
		return fmt.Errorf("connect to artifact store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("Failed to close artifact store", "error", err)
		}
	}()

	if err := l.cache.Prepare(); err != nil {
		return err
	}

	policy := l.cfg.Retry
	onRetry := l.cfg.Retry.OnRetry
	for _, name := range l.cache.RequiredFiles() {
		policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Artifact download failed, retrying", "file", name, "attempt", attempt, "backoff", backoff, "error", err)
			if onRetry != nil {
				onRetry(attempt, err, backoff)
			}
		}

		err := retry.DoVoid(ctx, policy, classifyDownloadError, func(ctx context.Context) error {
			attemptStart := l.clock.Now()
			err := store.Download(ctx, l.cfg.Folder, name, l.cache.Path(name))
			l.observer.DownloadAttempted(name, err, l.clock.Since(attemptStart))
			return err
		})
		if err != nil {
			return fmt.Errorf("download %s: %w", name, err)
		}
		slog.Info("Downloaded model artifact", "file", name)
	}
	return nil
}

func classifyDownloadError(err error) retry.Action {
	switch {
	case errors.Is(err, domain.ErrArtifactNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return retry.Stop
	default:
		return retry.Retry
	}
}

// fail moves to the terminal fallback state, keeping the progress flags already reached.
func (l *ResourceLoader) fail(prev domain.LoaderStatus, err error) domain.LoaderStatus {
	slog.Error("Model loading failed, serving fallback predictions", "state", prev.State, "error", err)
	status := domain.LoaderStatus{
		State:       domain.StateFallback,
		ModelLoaded: prev.ModelLoaded,
		LastError:   err.Error(),
	}
	l.publish(status, nil)
	return status
}

func (l *ResourceLoader) publish(status domain.LoaderStatus, classifier domain.Classifier) {
	l.snapshot.Store(&loaderSnapshot{status: status, classifier: classifier})
	l.observer.StateChanged(status.State)
}
