package sentiment

import (
	"log/slog"
	"math"

	"github.com/Dhakshil/ordernpick-sentiment-api/internal/domain"
)

// Normalize converts a raw classifier output into a three-class prediction.
// The winning class scores c; each other class scores (1-c)/2.
func Normalize(raw domain.RawPrediction) (domain.Prediction, LabelMatch) {
	sentiment, match := ParseLabel(raw.Label)
	if match == Unrecognized {
		slog.Debug("Unrecognized classifier label, using neutral", "label", raw.Label)
	}

	c := clampConfidence(raw.Score)
	residual := (1 - c) / 2

	var scores domain.Scores
	for _, s := range domain.Sentiments {
		scores.Set(s, residual)
	}
	scores.Set(sentiment, c)

	return domain.Prediction{
		Sentiment:  sentiment,
		Confidence: c,
		Scores:     scores,
	}, match
}

func clampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
