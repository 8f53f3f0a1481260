package tools

// ProgressEvent describes one unit of work completed by a tool run.
type ProgressEvent struct {
	Tool    string `json:"tool"`
	Path    string `json:"path,omitempty"`
	Done    int    `json:"done"`
	Total   int    `json:"total"`
	Message string `json:"message,omitempty"`
}

// ProgressFunc receives progress events during a tool run. Callbacks
// run on the worker goroutine and must return quickly.
type ProgressFunc func(ProgressEvent)

func (f ProgressFunc) emit(ev ProgressEvent) {
	if f != nil {
		f(ev)
	}
}
