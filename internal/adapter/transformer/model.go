package transformer

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Dhakshil/ordernpick-sentiment-api/internal/domain"
)

var _ domain.Model = (*Model)(nil)

// Model holds the embedding table and classification head.
type Model struct {
	labels     []string
	vocabSize  int
	dim        int
	embeddings []float32 // vocabSize x dim
	weight     []float32 // len(labels) x dim
	bias       []float32
}

func (m *Model) Labels() []string {
	out := make([]string, len(m.labels))
	copy(out, m.labels)
	return out
}

var _ domain.Classifier = (*Pipeline)(nil)

// Pipeline couples a Model with its tokenizer. It is immutable and safe for concurrent use.
type Pipeline struct {
	model     *Model
	tokenizer *WordPiece
}

var errNonFiniteLogits = errors.New("model produced non-finite logits")

func (p *Pipeline) Classify(ctx context.Context, text string) (domain.RawPrediction, error) {
	if err := ctx.Err(); err != nil {
		return domain.RawPrediction{}, err
	}

	ids := p.tokenizer.Encode(text)
	m := p.model

	pooled := make([]float64, m.dim)
	for _, id := range ids {
		if id < 0 || id >= m.vocabSize {
			return domain.RawPrediction{}, fmt.Errorf("token id %d outside embedding table of %d rows", id, m.vocabSize)
		}
		row := m.embeddings[id*m.dim : (id+1)*m.dim]
		for j, v := range row {
			pooled[j] += float64(v)
		}
	}
	for j := range pooled {
		pooled[j] /= float64(len(ids))
	}

	logits := make([]float64, len(m.labels))
	for l := range logits {
		sum := float64(m.bias[l])
		row := m.weight[l*m.dim : (l+1)*m.dim]
		for j, w := range row {
			sum += float64(w) * pooled[j]
		}
		if math.IsNaN(sum) || math.IsInf(sum, 0) {
			return domain.RawPrediction{}, errNonFiniteLogits
		}
		logits[l] = sum
	}

	probs := softmax(logits)
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return domain.RawPrediction{Label: m.labels[best], Score: probs[best]}, nil
}

func softmax(logits []float64) []float64 {
	maxLogit := math.Inf(-1)
	for _, v := range logits {
		maxLogit = max(maxLogit, v)
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(v - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
