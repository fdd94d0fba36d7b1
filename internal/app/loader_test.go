package app

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhakshil/ordernpick-sentiment-api/internal/domain"
	"github.com/Dhakshil/ordernpick-sentiment-api/internal/modelcache"
	"github.com/Dhakshil/ordernpick-sentiment-api/internal/platform/retry"
)

type loaderFixture struct {
	cache    *modelcache.Cache
	store    *mockStore
	opener   *countingOpener
	models   *mockModelLoader
	observer *recordingLoaderObserver
	loader   *ResourceLoader
}

func newLoaderFixture(t *testing.T) *loaderFixture {
	t.Helper()
	f := &loaderFixture{
		cache:    newTestCache(t),
		store:    newMockStore(modelcache.DefaultRequiredFiles),
		models:   &mockModelLoader{},
		observer: &recordingLoaderObserver{},
	}
	f.opener = &countingOpener{store: f.store}
	return f
}

func (f *loaderFixture) build(policy retry.Policy) *ResourceLoader {
	if policy.MaxAttempts == 0 {
		policy = retry.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}
	}
	f.loader = NewResourceLoader(f.cache, f.opener.Open, f.models, LoaderConfig{
		Folder: "SentimentAnalysis",
		Retry:  policy,
	}, clockwork.NewRealClock(), f.observer)
	return f.loader
}

func TestResourceLoader_InitialStatus(t *testing.T) {
	f := newLoaderFixture(t)
	l := f.build(retry.Policy{})

	s := l.Status()
	assert.Equal(t, domain.StateUninitialized, s.State)
	assert.False(t, s.ModelLoaded)
	assert.False(t, s.PipelineReady)

	_, ok := l.Classifier()
	assert.False(t, ok)
}

func TestResourceLoader_CacheMissDownloadsThenReady(t *testing.T) {
	f := newLoaderFixture(t)
	l := f.build(retry.Policy{})

	s := l.EnsureReady(context.Background())

	assert.Equal(t, domain.StateReady, s.State)
	assert.True(t, s.ModelLoaded)
	assert.True(t, s.PipelineReady)
	assert.Empty(t, s.LastError)
	assert.True(t, s.Ready())

	assert.True(t, f.cache.IsComplete())
	assert.Equal(t, len(modelcache.DefaultRequiredFiles), f.store.downloadCount())
	assert.True(t, f.store.closed)

	_, ok := l.Classifier()
	assert.True(t, ok)

	assert.Equal(t, []domain.LoaderState{
		domain.StateDownloading,
		domain.StateLoading,
		domain.StateLoading,
		domain.StateReady,
	}, f.observer.states)
	assert.Equal(t, []string{StageDownload, StageModel, StagePipeline}, f.observer.stages)
	assert.Equal(t, []int{len(modelcache.DefaultRequiredFiles)}, f.observer.missing)
}

func TestResourceLoader_CacheHitSkipsStorage(t *testing.T) {
	f := newLoaderFixture(t)
	populateCache(t, f.cache)
	l := f.build(retry.Policy{})

	s := l.EnsureReady(context.Background())

	assert.Equal(t, domain.StateReady, s.State)
	assert.Zero(t, f.opener.count())
	assert.Zero(t, f.store.downloadCount())
	assert.Equal(t, []string{StageModel, StagePipeline}, f.observer.stages)
	assert.Equal(t, []int{0}, f.observer.missing)
}

func TestResourceLoader_IdempotentAfterReady(t *testing.T) {
	f := newLoaderFixture(t)
	l := f.build(retry.Policy{})

	first := l.EnsureReady(context.Background())
	downloads := f.store.downloadCount()

	second := l.EnsureReady(context.Background())

	assert.Equal(t, first, second)
	assert.Equal(t, downloads, f.store.downloadCount(), "no extra downloads")
	assert.Equal(t, 1, f.opener.count())
	assert.Equal(t, 1, f.models.loadCount())
}

func TestResourceLoader_ConcurrentCallsCollapse(t *testing.T) {
	f := newLoaderFixture(t)
	release := make(chan struct{})
	f.store.downloadF = func(context.Context, string) error {
		<-release
		return nil
	}
	l := f.build(retry.Policy{})

	const callers = 8
	var wg sync.WaitGroup
	statuses := make([]domain.LoaderStatus, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			statuses[i] = l.EnsureReady(context.Background())
		}()
	}

	require.Eventually(t, func() bool {
		return l.Status().State == domain.StateDownloading
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	for _, s := range statuses {
		assert.Equal(t, domain.StateReady, s.State)
	}
	assert.Equal(t, 1, f.opener.count())
	assert.Equal(t, 1, f.models.loadCount())
	assert.Equal(t, len(modelcache.DefaultRequiredFiles), f.store.downloadCount())
}

func TestResourceLoader_CredentialFailureFallsBack(t *testing.T) {
	f := newLoaderFixture(t)
	f.opener.err = domain.ErrNoCredentials
	l := f.build(retry.Policy{})

	s := l.EnsureReady(context.Background())

	assert.Equal(t, domain.StateFallback, s.State)
	assert.False(t, s.ModelLoaded)
	assert.False(t, s.PipelineReady)
	assert.Contains(t, s.LastError, "no storage credentials")
	_, ok := l.Classifier()
	assert.False(t, ok)
	assert.Zero(t, f.models.loadCount())
}

func TestResourceLoader_FallbackIsTerminal(t *testing.T) {
	f := newLoaderFixture(t)
	f.opener.err = errors.New("dial tcp: connection refused")
	l := f.build(retry.Policy{})

	l.EnsureReady(context.Background())
	f.opener.err = nil
	s := l.EnsureReady(context.Background())

	assert.Equal(t, domain.StateFallback, s.State)
	assert.Equal(t, 1, f.opener.count(), "fallback never retries within the process")
}

func TestResourceLoader_MissingArtifactIsNotRetried(t *testing.T) {
	f := newLoaderFixture(t)
	delete(f.store.objects, "tokenizer.json")
	l := f.build(retry.Policy{})

	s := l.EnsureReady(context.Background())

	assert.Equal(t, domain.StateFallback, s.State)
	assert.Contains(t, s.LastError, "tokenizer.json")
	assert.Equal(t, 1, f.store.attemptsFor("tokenizer.json"))
	assert.False(t, f.cache.IsComplete())

	// Files before the failure stay in place; later ones were never attempted.
	assert.FileExists(t, f.cache.Path("config.json"))
	assert.FileExists(t, f.cache.Path("model.safetensors"))
	assert.Zero(t, f.store.attemptsFor("vocab.txt"))
	assert.Zero(t, f.models.loadCount())
}

func TestResourceLoader_TransientFailureRetried(t *testing.T) {
	f := newLoaderFixture(t)
	f.store.failTimes["model.safetensors"] = 2
	l := f.build(retry.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond})

	s := l.EnsureReady(context.Background())

	assert.Equal(t, domain.StateReady, s.State)
	assert.Equal(t, 3, f.store.attemptsFor("model.safetensors"))
	assert.Len(t, f.observer.downloads, len(modelcache.DefaultRequiredFiles)+2)
}

func TestResourceLoader_CallerRetryHookRuns(t *testing.T) {
	f := newLoaderFixture(t)
	f.store.failTimes["vocab.txt"] = 2

	var mu sync.Mutex
	var attempts []int
	var errs []error
	l := f.build(retry.Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		OnRetry: func(attempt int, err error, _ time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			attempts = append(attempts, attempt)
			errs = append(errs, err)
		},
	})

	s := l.EnsureReady(context.Background())

	assert.Equal(t, domain.StateReady, s.State)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2}, attempts)
	for _, err := range errs {
		assert.ErrorContains(t, err, "connection reset by peer")
	}
}

func TestResourceLoader_RetriesExhausted(t *testing.T) {
	f := newLoaderFixture(t)
	f.store.failTimes["vocab.txt"] = 10
	l := f.build(retry.Policy{MaxAttempts: 2, InitialBackoff: time.Millisecond})

	s := l.EnsureReady(context.Background())

	assert.Equal(t, domain.StateFallback, s.State)
	assert.Equal(t, 2, f.store.attemptsFor("vocab.txt"))
	assert.Contains(t, s.LastError, "failed after 2 attempts")
}

func TestResourceLoader_BackoffUsesClock(t *testing.T) {
	f := newLoaderFixture(t)
	f.store.failTimes["config.json"] = 1
	clock := clockwork.NewFakeClock()
	l := NewResourceLoader(f.cache, f.opener.Open, f.models, LoaderConfig{
		Folder: "SentimentAnalysis",
		Retry:  retry.Policy{MaxAttempts: 3, InitialBackoff: time.Minute},
	}, clock, nil)

	done := make(chan domain.LoaderStatus, 1)
	go func() { done <- l.EnsureReady(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, domain.StateDownloading, l.Status().State)

	clock.Advance(time.Minute)
	assert.Equal(t, domain.StateReady, (<-done).State)
}

func TestResourceLoader_CanceledContextFallsBack(t *testing.T) {
	f := newLoaderFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.store.downloadF = func(ctx context.Context, _ string) error {
		cancel()
		return ctx.Err()
	}
	l := f.build(retry.Policy{})

	s := l.EnsureReady(ctx)

	assert.Equal(t, domain.StateFallback, s.State)
	assert.Equal(t, 1, f.store.attemptsFor("config.json"))
}

func TestResourceLoader_LoadModelFailure(t *testing.T) {
	f := newLoaderFixture(t)
	populateCache(t, f.cache)
	f.models.loadModelFn = func(string) (domain.Model, error) {
		return nil, errors.New("config.json: unexpected end of JSON input")
	}
	l := f.build(retry.Policy{})

	s := l.EnsureReady(context.Background())

	assert.Equal(t, domain.StateFallback, s.State)
	assert.False(t, s.ModelLoaded)
	assert.False(t, s.PipelineReady)
	assert.Contains(t, s.LastError, "load model")
}

func TestResourceLoader_PipelineFailureKeepsModelLoaded(t *testing.T) {
	f := newLoaderFixture(t)
	populateCache(t, f.cache)
	f.models.newPipelineFn = func(string, domain.Model) (domain.Classifier, error) {
		return nil, errors.New("special token missing")
	}
	l := f.build(retry.Policy{})

	s := l.EnsureReady(context.Background())

	assert.Equal(t, domain.StateFallback, s.State)
	assert.True(t, s.ModelLoaded)
	assert.False(t, s.PipelineReady)
	assert.Contains(t, s.LastError, "build pipeline")
}

func TestResourceLoader_PanicFallsBack(t *testing.T) {
	f := newLoaderFixture(t)
	populateCache(t, f.cache)
	f.models.loadModelFn = func(string) (domain.Model, error) {
		panic("index out of range")
	}
	l := f.build(retry.Policy{})

	s := l.EnsureReady(context.Background())

	assert.Equal(t, domain.StateFallback, s.State)
	assert.Contains(t, s.LastError, "panic")
}

func TestResourceLoader_IncompleteCacheRedownloadsEverything(t *testing.T) {
	f := newLoaderFixture(t)
	populateCache(t, f.cache)
	require.NoError(t, os.Remove(f.cache.Path("vocab.txt")))
	l := f.build(retry.Policy{})

	s := l.EnsureReady(context.Background())

	assert.Equal(t, domain.StateReady, s.State)
	assert.Equal(t, len(modelcache.DefaultRequiredFiles), f.store.downloadCount())
}
