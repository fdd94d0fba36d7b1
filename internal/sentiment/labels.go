package sentiment

import (
	"strings"

	"github.com/Dhakshil/ordernpick-sentiment-api/internal/domain"
)

// LabelMatch says how a raw label was resolved.
type LabelMatch int

const (
	// Recognized means the label is a known spelling of one of the three classes.
	Recognized LabelMatch = iota
	// Unrecognized means the label is unknown and was mapped to neutral.
	Unrecognized
)

var labelTable = map[string]domain.Sentiment{
	"positive": domain.Positive,
	"pos":      domain.Positive,
	"label_2":  domain.Positive,
	"2":        domain.Positive,

	"negative": domain.Negative,
	"neg":      domain.Negative,
	"label_0":  domain.Negative,
	"0":        domain.Negative,

	"neutral": domain.Neutral,
	"neu":     domain.Neutral,
	"label_1": domain.Neutral,
	"1":       domain.Neutral,
}

// ParseLabel resolves a raw classifier label. Unknown labels resolve to neutral
// with Unrecognized.
func ParseLabel(raw string) (domain.Sentiment, LabelMatch) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if s, ok := labelTable[key]; ok {
		return s, Recognized
	}
	return domain.Neutral, Unrecognized
}
