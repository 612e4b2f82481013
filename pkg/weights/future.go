package weights

import (
	"context"

	"github.com/google/uuid"
)

// Future is the pending result of a Decode call. It settles exactly once,
// either with the complete buffer or with an error, never both.
type Future struct {
	id   string
	done chan struct{}
	buf  []float32
	err  error
}

func newFuture() *Future {
	return &Future{
		id:   uuid.NewString(),
		done: make(chan struct{}),
	}
}

func (f *Future) resolve(buf []float32, err error) {
	if err != nil {
		buf = nil
	}
	f.buf, f.err = buf, err
	close(f.done)
}

// ID identifies the decode call in logs.
func (f *Future) ID() string {
	return f.id
}

// Done is closed once the decode has settled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the decode settles or ctx ends. A ctx error means the
// caller stopped waiting; the decode itself keeps running to completion.
func (f *Future) Wait(ctx context.Context) ([]float32, error) {
	select {
	case <-f.done:
		return f.buf, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result blocks until the decode settles.
func (f *Future) Result() ([]float32, error) {
	<-f.done
	return f.buf, f.err
}
