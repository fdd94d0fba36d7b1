package domain

// Sentiment is one of the three fixed output classes.
type Sentiment string

const (
	Negative Sentiment = "negative"
	Neutral  Sentiment = "neutral"
	Positive Sentiment = "positive"
)

// Sentiments lists the classes in their canonical index order.
var Sentiments = [3]Sentiment{Negative, Neutral, Positive}

// Scores is a probability distribution over the three classes. The struct form
// guarantees exactly three keys on the wire.
type Scores struct {
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
	Positive float64 `json:"positive"`
}

func (s Scores) Get(sentiment Sentiment) float64 {
	switch sentiment {
	case Negative:
		return s.Negative
	case Positive:
		return s.Positive
	default:
		return s.Neutral
	}
}

func (s *Scores) Set(sentiment Sentiment, v float64) {
	switch sentiment {
	case Negative:
		s.Negative = v
	case Positive:
		s.Positive = v
	default:
		s.Neutral = v
	}
}

func (s Scores) Sum() float64 {
	return s.Negative + s.Neutral + s.Positive
}

type Prediction struct {
	Sentiment  Sentiment `json:"sentiment"`
	Confidence float64   `json:"confidence"`
	Scores     Scores    `json:"scores"`
}

// FallbackPrediction is the fixed result served whenever no pipeline is ready.
func FallbackPrediction() Prediction {
	return Prediction{
		Sentiment:  Neutral,
		Confidence: 0.5,
		Scores:     Scores{Negative: 0.33, Neutral: 0.34, Positive: 0.33},
	}
}

type OutcomeKind int

const (
	// OutcomeReady carries a normalized classifier prediction.
	OutcomeReady OutcomeKind = iota
	// OutcomeNotReady carries the fixed fallback because no pipeline is loaded.
	OutcomeNotReady
	// OutcomeFailed means the pipeline is loaded but this input could not be classified.
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeReady:
		return "ready"
	case OutcomeNotReady:
		return "not_ready"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of a single prediction.
type Outcome struct {
	Kind       OutcomeKind
	Prediction Prediction
	Err        error
}

func ReadyOutcome(p Prediction) Outcome {
	return Outcome{Kind: OutcomeReady, Prediction: p}
}

func NotReadyOutcome() Outcome {
	return Outcome{Kind: OutcomeNotReady, Prediction: FallbackPrediction()}
}

// FailedOutcome reports a per-input failure as neutral with zero confidence and no scores.
func FailedOutcome(err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Prediction: Prediction{Sentiment: Neutral}, Err: err}
}
