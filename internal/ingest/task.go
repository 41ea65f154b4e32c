package ingest

import "context"

// Task is the handle for one in-flight extraction.
type Task struct {
	MaterialID int64

	done chan struct{}
	err  error
}

// Wait blocks until the extraction attempt finishes or the context is
// cancelled. It returns the attempt's outcome; the extraction itself keeps
// running after a cancelled wait.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return t.err
	}
}
