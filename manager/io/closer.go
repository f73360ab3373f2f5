package io

import (
	"io"

	"go.uber.org/multierr"
)

// MultiCloser closes several io.Closers in order and merges their errors.
type MultiCloser struct {
	closers []io.Closer
}

// NewMultiCloser returns a MultiCloser over closers, skipping nil ones.
func NewMultiCloser(closers ...io.Closer) *MultiCloser {
	mc := &MultiCloser{
		closers: make([]io.Closer, 0, len(closers)),
	}
	for _, c := range closers {
		if c != nil {
			mc.closers = append(mc.closers, c)
		}
	}
	return mc
}

// Add appends c unless it is nil.
func (m *MultiCloser) Add(c io.Closer) {
	if c != nil {
		m.closers = append(m.closers, c)
	}
}

// Close closes every closer, even after a failure, and returns the combined
// error.
func (m *MultiCloser) Close() error {
	var err error
	for _, c := range m.closers {
		err = multierr.Append(err, c.Close())
	}
	return err
}

// CloserFunc adapts a function to io.Closer.
type CloserFunc func() error

func (f CloserFunc) Close() error { return f() }
