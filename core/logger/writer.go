package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// lineWriter fans complete log lines out to buffered sinks.
// Lines reach the sinks in write order; Flush pushes buffered bytes down.
type lineWriter struct {
	mu       sync.Mutex
	sinks    []*bufio.Writer
	closed   bool
	writeErr error
}

func newLineWriter(writers []io.Writer, bufSize int) *lineWriter {
	if bufSize <= 0 {
		bufSize = 4 * 1024
	}
	w := &lineWriter{}
	for _, sink := range writers {
		if sink != nil {
			w.sinks = append(w.sinks, bufio.NewWriterSize(sink, bufSize))
		}
	}
	return w
}

// Write appends one line to every sink and flushes it.
func (w *lineWriter) Write(p []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("logger: writer closed")
	}
	if w.writeErr != nil {
		return w.writeErr
	}
	for _, sink := range w.sinks {
		if _, err := sink.Write(p); err != nil {
			w.writeErr = err
			return err
		}
		if err := sink.Flush(); err != nil {
			w.writeErr = err
			return err
		}
	}
	return nil
}

// Flush pushes any buffered content to the sinks.
func (w *lineWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// Close flushes and rejects further writes.
func (w *lineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.flushLocked(); err != nil {
		return err
	}
	return w.writeErr
}

func (w *lineWriter) flushLocked() error {
	var errs []error
	for _, sink := range w.sinks {
		if err := sink.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
