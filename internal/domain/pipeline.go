package domain

import "context"

// RawPrediction is a classifier's own label and confidence before normalization.
type RawPrediction struct {
	Label string
	Score float64
}

// Classifier is a loaded inference pipeline.
type Classifier interface {
	Classify(ctx context.Context, text string) (RawPrediction, error)
}

// Model is parsed model state (configuration and weights) before a pipeline is built on it.
type Model interface {
	Labels() []string
}

// ModelLoader reconstructs an inference pipeline from a populated cache directory.
type ModelLoader interface {
	LoadModel(dir string) (Model, error)
	NewPipeline(dir string, model Model) (Classifier, error)
}
