package watcher

import (
	"context"
	"errors"
	"io"
	"sync"
)

// errPipeClosed is returned when an end of the pipe is used after that same
// end (or, for the writer, the reader) has been closed.
var errPipeClosed = errors.New("watcher: use of closed pipe")

// DefaultPipeBuffer is the number of payloads the pipe holds before the
// subscriber blocks on send.
const DefaultPipeBuffer = 128

// pipe carries notification payloads from the subscriber goroutine to the
// watcher. It has exactly one writer and one reader; closing either end makes
// the pair unusable.
type pipe struct {
	msgs chan string
	done chan struct{}
	once sync.Once

	mu           sync.Mutex
	cause        error // why the writer went away, io.EOF when it gave no reason
	readerClosed bool
}

type pipeReader struct{ p *pipe }

type pipeWriter struct{ p *pipe }

func newPipe(size int) (*pipeReader, *pipeWriter) {
	if size <= 0 {
		size = DefaultPipeBuffer
	}
	p := &pipe{
		msgs: make(chan string, size),
		done: make(chan struct{}),
	}
	return &pipeReader{p: p}, &pipeWriter{p: p}
}

func (p *pipe) close(cause error, reader bool) {
	p.once.Do(func() {
		p.mu.Lock()
		p.cause = cause
		p.readerClosed = reader
		p.mu.Unlock()
		close(p.done)
	})
}

// Send queues payload for the reader. It blocks while the buffer is full and
// fails once either end is closed or ctx is done.
func (w *pipeWriter) Send(ctx context.Context, payload string) error {
	select {
	case <-w.p.done:
		return errPipeClosed
	default:
	}

	select {
	case w.p.msgs <- payload:
		return nil
	case <-w.p.done:
		return errPipeClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CloseWithError closes the writer; the reader sees cause after draining
// what was already sent. A nil cause reads as io.EOF.
func (w *pipeWriter) CloseWithError(cause error) {
	if cause == nil {
		cause = io.EOF
	}
	w.p.close(cause, false)
}

// Close closes the writer with io.EOF.
func (w *pipeWriter) Close() error {
	w.CloseWithError(nil)
	return nil
}

// Poll never blocks. It returns the next payload when one is waiting,
// ok=false with a nil error when the pipe is empty, the writer's cause once
// the writer is gone and the buffer is drained, and errPipeClosed after the
// reader itself was closed.
func (r *pipeReader) Poll() (payload string, ok bool, err error) {
	r.p.mu.Lock()
	readerClosed := r.p.readerClosed
	r.p.mu.Unlock()
	if readerClosed {
		return "", false, errPipeClosed
	}

	select {
	case payload = <-r.p.msgs:
		return payload, true, nil
	default:
	}

	select {
	case <-r.p.done:
		// 写端可能在两次检查之间发送后关闭
		select {
		case payload = <-r.p.msgs:
			return payload, true, nil
		default:
		}
		r.p.mu.Lock()
		defer r.p.mu.Unlock()
		if r.p.readerClosed {
			return "", false, errPipeClosed
		}
		return "", false, r.p.cause
	default:
		return "", false, nil
	}
}

// Close closes the reader; pending payloads are discarded.
func (r *pipeReader) Close() error {
	r.p.close(errPipeClosed, true)
	return nil
}
