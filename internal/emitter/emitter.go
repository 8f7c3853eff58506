// Package emitter delivers audit reports to their destinations: the terminal,
// and optionally a Prometheus textfile.
package emitter

import (
	"context"
	"errors"

	"github.com/yairfalse/tagaudit/pkg/resource"
)

// Emitter outputs an audit result to a backend.
type Emitter interface {
	// Emit delivers one audit result.
	Emit(ctx context.Context, result resource.ScanResult) error

	// Close releases the backend.
	Close() error
}

// MultiEmitter fans out to multiple emitters in order.
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter creates an emitter that sends to multiple backends.
// Nil emitters are dropped.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	m := &MultiEmitter{}
	for _, e := range emitters {
		if e != nil {
			m.emitters = append(m.emitters, e)
		}
	}
	return m
}

// Emit sends to each emitter in turn and stops at the first error.
func (m *MultiEmitter) Emit(ctx context.Context, result resource.ScanResult) error {
	for _, e := range m.emitters {
		if err := e.Emit(ctx, result); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every emitter, even after a failure, and joins the errors.
func (m *MultiEmitter) Close() error {
	var errs []error
	for _, e := range m.emitters {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
