package domain

// ReviewItem is one caller-supplied entry of a batch request.
// ID is opaque and echoed back untouched; nil means the caller sent none.
type ReviewItem struct {
	ID   any
	Text string
}

type BatchResult struct {
	ID      any
	Outcome Outcome
}
