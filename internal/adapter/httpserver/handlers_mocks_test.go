package httpserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/Dhakshil/ordernpick-sentiment-api/internal/domain"
	"github.com/Dhakshil/ordernpick-sentiment-api/internal/platform/config"
)

// --- Mock implementations ---

type mockSentimentService struct {
	mu sync.Mutex

	predictFn func(ctx context.Context, text string) domain.Outcome
	batchFn   func(ctx context.Context, items []domain.ReviewItem) []domain.BatchResult

	predicted []string
	batches   [][]domain.ReviewItem
}

func (m *mockSentimentService) Predict(ctx context.Context, text string) domain.Outcome {
	m.mu.Lock()
	m.predicted = append(m.predicted, text)
	m.mu.Unlock()

	if m.predictFn != nil {
		return m.predictFn(ctx, text)
	}
	return domain.ReadyOutcome(domain.Prediction{
		Sentiment:  domain.Positive,
		Confidence: 0.9,
		Scores:     domain.Scores{Negative: 0.05, Neutral: 0.05, Positive: 0.9},
	})
}

// AnalyzeBatch defaults to classifying every non-blank item with Predict.
func (m *mockSentimentService) AnalyzeBatch(ctx context.Context, items []domain.ReviewItem) []domain.BatchResult {
	m.mu.Lock()
	m.batches = append(m.batches, items)
	m.mu.Unlock()

	if m.batchFn != nil {
		return m.batchFn(ctx, items)
	}
	results := make([]domain.BatchResult, 0, len(items))
	for _, item := range items {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			continue
		}
		results = append(results, domain.BatchResult{ID: item.ID, Outcome: m.Predict(ctx, text)})
	}
	return results
}

func (m *mockSentimentService) lastBatch() []domain.ReviewItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.batches) == 0 {
		return nil
	}
	return m.batches[len(m.batches)-1]
}

type mockStatusSource struct {
	status domain.LoaderStatus
}

func (m *mockStatusSource) Status() domain.LoaderStatus {
	return m.status
}

// --- Test helpers ---

type serverOption func(*config.Config)

func withRateLimit(rps float64, burst int) serverOption {
	return func(cfg *config.Config) {
		cfg.RateLimitRPS = rps
		cfg.RateLimitBurst = burst
	}
}

func withMaxBodySize(size string) serverOption {
	return func(cfg *config.Config) {
		cfg.MaxBodySize = size
	}
}

func testConfig(opts ...serverOption) *config.Config {
	cfg := &config.Config{
		AppEnv:             "test",
		Port:               "0",
		CORSAllowedOrigins: []string{"*"},
		RateLimitBurst:     20,
		MaxBodySize:        "1M",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func readyStatus() domain.LoaderStatus {
	return domain.LoaderStatus{State: domain.StateReady, ModelLoaded: true, PipelineReady: true}
}

func newTestServer(t *testing.T, svc *mockSentimentService, status *mockStatusSource, opts ...serverOption) (*Server, *clockwork.FakeClock) {
	t.Helper()

	if svc == nil {
		svc = &mockSentimentService{}
	}
	if status == nil {
		status = &mockStatusSource{status: readyStatus()}
	}

	clock := clockwork.NewFakeClock()
	srv, err := NewServer(testConfig(opts...), svc, status, nil, nil, clock)
	require.NoError(t, err)
	return srv, clock
}

func doRequest(t *testing.T, srv *Server, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func postJSON(t *testing.T, srv *Server, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	return doRequest(t, srv, http.MethodPost, target, strings.NewReader(body))
}
