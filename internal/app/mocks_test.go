package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Dhakshil/ordernpick-sentiment-api/internal/domain"
	"github.com/Dhakshil/ordernpick-sentiment-api/internal/modelcache"
)

// --- Mock implementations ---

type mockStore struct {
	mu        sync.Mutex
	objects   map[string]string
	failTimes map[string]int
	attempts  map[string]int
	downloads int
	closed    bool
	downloadF func(ctx context.Context, filename string) error
}

func newMockStore(files []string) *mockStore {
	objects := make(map[string]string, len(files))
	for _, f := range files {
		objects[f] = "content of " + f
	}
	return &mockStore{objects: objects, failTimes: map[string]int{}, attempts: map[string]int{}}
}

func (m *mockStore) Download(ctx context.Context, _, filename, localPath string) error {
	m.mu.Lock()
	m.attempts[filename]++
	if m.failTimes[filename] > 0 {
		m.failTimes[filename]--
		m.mu.Unlock()
		return errors.New("connection reset by peer")
	}
	content, ok := m.objects[filename]
	downloadF := m.downloadF
	m.mu.Unlock()

	if downloadF != nil {
		if err := downloadF(ctx, filename); err != nil {
			return err
		}
	}
	if !ok {
		return fmt.Errorf("%s: %w", filename, domain.ErrArtifactNotFound)
	}

	m.mu.Lock()
	m.downloads++
	m.mu.Unlock()
	return os.WriteFile(localPath, []byte(content), 0o644)
}

func (m *mockStore) List(_ context.Context, folder string) ([]domain.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ObjectInfo
	for name, content := range m.objects {
		out = append(out, domain.ObjectInfo{Name: domain.ObjectKey(folder, name), Size: int64(len(content))})
	}
	return out, nil
}

func (m *mockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockStore) attemptsFor(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[name]
}

func (m *mockStore) downloadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.downloads
}

type countingOpener struct {
	mu    sync.Mutex
	store domain.ArtifactStore
	err   error
	opens int
}

func (o *countingOpener) Open(context.Context) (domain.ArtifactStore, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	if o.err != nil {
		return nil, o.err
	}
	return o.store, nil
}

func (o *countingOpener) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

type mockModel struct{ labels []string }

func (m mockModel) Labels() []string { return m.labels }

type mockModelLoader struct {
	mu            sync.Mutex
	loadModelFn   func(dir string) (domain.Model, error)
	newPipelineFn func(dir string, model domain.Model) (domain.Classifier, error)
	loads         int
}

func (m *mockModelLoader) LoadModel(dir string) (domain.Model, error) {
	m.mu.Lock()
	m.loads++
	m.mu.Unlock()
	if m.loadModelFn != nil {
		return m.loadModelFn(dir)
	}
	return mockModel{labels: []string{"NEGATIVE", "NEUTRAL", "POSITIVE"}}, nil
}

func (m *mockModelLoader) NewPipeline(dir string, model domain.Model) (domain.Classifier, error) {
	if m.newPipelineFn != nil {
		return m.newPipelineFn(dir, model)
	}
	return &mockClassifier{}, nil
}

func (m *mockModelLoader) loadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

type mockClassifier struct {
	classifyFn func(ctx context.Context, text string) (domain.RawPrediction, error)
}

func (m *mockClassifier) Classify(ctx context.Context, text string) (domain.RawPrediction, error) {
	if m.classifyFn != nil {
		return m.classifyFn(ctx, text)
	}
	return domain.RawPrediction{Label: "LABEL_2", Score: 0.8}, nil
}

type staticSource struct {
	classifier domain.Classifier
}

func (s staticSource) Classifier() (domain.Classifier, bool) {
	return s.classifier, s.classifier != nil
}

type recordingLoaderObserver struct {
	mu        sync.Mutex
	missing   []int
	states    []domain.LoaderState
	downloads []error
	stages    []string
}

func (r *recordingLoaderObserver) CacheChecked(missing int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.missing = append(r.missing, missing)
}

func (r *recordingLoaderObserver) StateChanged(state domain.LoaderState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *recordingLoaderObserver) DownloadAttempted(_ string, err error, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.downloads = append(r.downloads, err)
}

func (r *recordingLoaderObserver) StageCompleted(stage string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
}

type recordingPredictionObserver struct {
	mu           sync.Mutex
	outcomes     []domain.Outcome
	unrecognized []string
	batches      [][2]int
}

func (r *recordingPredictionObserver) PredictionCompleted(o domain.Outcome, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *recordingPredictionObserver) LabelUnrecognized(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unrecognized = append(r.unrecognized, label)
}

func (r *recordingPredictionObserver) BatchCompleted(received, analyzed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, [2]int{received, analyzed})
}

// --- Helpers ---

func newTestCache(t *testing.T) *modelcache.Cache {
	t.Helper()
	cache, err := modelcache.New(filepath.Join(t.TempDir(), "cached_model"), modelcache.DefaultRequiredFiles)
	require.NoError(t, err)
	return cache
}

func populateCache(t *testing.T, cache *modelcache.Cache) {
	t.Helper()
	require.NoError(t, cache.Prepare())
	for _, name := range cache.RequiredFiles() {
		require.NoError(t, os.WriteFile(cache.Path(name), []byte("cached"), 0o644))
	}
}
