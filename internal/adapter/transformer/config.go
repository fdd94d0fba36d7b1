package transformer

import (
	"fmt"
	"strconv"
)

type modelConfig struct {
	ModelType string            `json:"model_type"`
	ID2Label  map[string]string `json:"id2label"`
}

// labels returns id2label ordered by index; ids must be contiguous from 0.
func (c modelConfig) labels() ([]string, error) {
	if len(c.ID2Label) == 0 {
		return nil, nil
	}

	out := make([]string, len(c.ID2Label))
	seen := make([]bool, len(c.ID2Label))
	for key, label := range c.ID2Label {
		idx, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("id2label key %q is not an integer", key)
		}
		if idx < 0 || idx >= len(out) {
			return nil, fmt.Errorf("id2label index %d out of range for %d labels", idx, len(out))
		}
		if seen[idx] {
			return nil, fmt.Errorf("duplicate id2label index %d", idx)
		}
		seen[idx] = true
		out[idx] = label
	}
	return out, nil
}

// defaultLabels mirrors the LABEL_<i> names used when a config carries no id2label.
func defaultLabels(n int) []string {
	out := make([]string, n)
	for i := range n {
		out[i] = "LABEL_" + strconv.Itoa(i)
	}
	return out
}
