package domain

// LoaderState is the resource loader's lifecycle position.
type LoaderState string

const (
	StateUninitialized LoaderState = "uninitialized"
	StateDownloading   LoaderState = "downloading"
	StateLoading       LoaderState = "loading"
	StateReady         LoaderState = "ready"
	// StateFallback is terminal for the process lifetime.
	StateFallback LoaderState = "fallback"
)

// LoaderStates lists every state, used to reset per-state gauges.
var LoaderStates = []LoaderState{StateUninitialized, StateDownloading, StateLoading, StateReady, StateFallback}

func (s LoaderState) Terminal() bool {
	return s == StateReady || s == StateFallback
}

// LoaderStatus is an immutable snapshot of the loader.
type LoaderStatus struct {
	State         LoaderState
	ModelLoaded   bool
	PipelineReady bool
	LastError     string
}

func (s LoaderStatus) Ready() bool {
	return s.State == StateReady && s.PipelineReady
}
