package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/Dhakshil/ordernpick-sentiment-api/internal/domain"
	"github.com/Dhakshil/ordernpick-sentiment-api/internal/sentiment"
)

// ClassifierSource hands out the current pipeline, if any.
type ClassifierSource interface {
	Classifier() (domain.Classifier, bool)
}

// PredictionObserver receives per-prediction events, typically for metrics.
type PredictionObserver interface {
	PredictionCompleted(o domain.Outcome, d time.Duration)
	LabelUnrecognized(label string)
	BatchCompleted(received, analyzed int)
}

type noopPredictionObserver struct{}

func (noopPredictionObserver) PredictionCompleted(domain.Outcome, time.Duration) {}
func (noopPredictionObserver) LabelUnrecognized(string)                          {}
func (noopPredictionObserver) BatchCompleted(int, int)                           {}

// Predictor turns review text into outcomes. It holds no mutable state.
type Predictor struct {
	source      ClassifierSource
	concurrency int
	clock       clockwork.Clock
	observer    PredictionObserver
}

// NewPredictor creates a predictor. concurrency below 1 means sequential batches; observer may be nil.
func NewPredictor(source ClassifierSource, concurrency int, clock clockwork.Clock, observer PredictionObserver) *Predictor {
	if observer == nil {
		observer = noopPredictionObserver{}
	}
	return &Predictor{
		source:      source,
		concurrency: max(concurrency, 1),
		clock:       clock,
		observer:    observer,
	}
}

// Predict classifies one text. It never returns an error: a missing pipeline yields the fixed
// fallback and classifier failures (including panics) yield a Failed outcome.
func (p *Predictor) Predict(ctx context.Context, text string) domain.Outcome {
	start := p.clock.Now()
	outcome := p.predict(ctx, text)
	p.observer.PredictionCompleted(outcome, p.clock.Since(start))
	return outcome
}

func (p *Predictor) predict(ctx context.Context, text string) (outcome domain.Outcome) {
	classifier, ok := p.source.Classifier()
	if !ok {
		return domain.NotReadyOutcome()
	}

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Classifier panicked", "panic", r)
			outcome = domain.FailedOutcome(fmt.Errorf("inference panic: %v", r))
		}
	}()

	raw, err := classifier.Classify(ctx, text)
	if err != nil {
		slog.WarnContext(ctx, "Classification failed", "error", err)
		return domain.FailedOutcome(err)
	}

	prediction, match := sentiment.Normalize(raw)
	if match == sentiment.Unrecognized {
		p.observer.LabelUnrecognized(raw.Label)
	}
	return domain.ReadyOutcome(prediction)
}

// AnalyzeBatch predicts every item with non-blank text and returns results in input order.
// Blank items are skipped without a result.
func (p *Predictor) AnalyzeBatch(ctx context.Context, items []domain.ReviewItem) []domain.BatchResult {
	var accepted []domain.ReviewItem
	for _, item := range items {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			continue
		}
		accepted = append(accepted, domain.ReviewItem{ID: item.ID, Text: text})
	}

	results := make([]domain.BatchResult, len(accepted))
	if p.concurrency == 1 || len(accepted) < 2 {
		for i, item := range accepted {
			results[i] = domain.BatchResult{ID: item.ID, Outcome: p.Predict(ctx, item.Text)}
		}
	} else {
		var g errgroup.Group
		g.SetLimit(p.concurrency)
		for i, item := range accepted {
			g.Go(func() error {
				results[i] = domain.BatchResult{ID: item.ID, Outcome: p.Predict(ctx, item.Text)}
				return nil
			})
		}
		_ = g.Wait()
	}

	p.observer.BatchCompleted(len(items), len(accepted))
	return results
}
