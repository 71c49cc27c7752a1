package volume

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// NotReadyError reports that a volume field did not become available within
// the caller's wait bound.
type NotReadyError struct {
	// Timeout is the wait bound that elapsed.
	Timeout time.Duration
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("volume field not ready after %s", e.Timeout)
}

// Source is the readiness contract between the engine and the data layer: a
// one-shot promise for a Field. The data layer resolves it exactly once
// (with a field or a failure); the engine waits with a bounded timeout.
// Retry and backoff for loading belong to the data layer, not here.
type Source struct {
	mu    sync.Mutex
	done  chan struct{}
	field Field
	err   error
}

// NewSource creates an unresolved source.
func NewSource() *Source {
	return &Source{done: make(chan struct{})}
}

// Resolve publishes the loaded field. Calls after the first resolution or
// failure are ignored.
func (s *Source) Resolve(f Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return
	default:
	}
	s.field = f
	close(s.done)
}

// Fail publishes a load failure. Calls after the first resolution or
// failure are ignored.
func (s *Source) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return
	default:
	}
	s.err = err
	close(s.done)
}

// Wait blocks until the field is available, the context is cancelled, or
// the timeout elapses. A timeout yields a NotReadyError.
func (s *Source) Wait(ctx context.Context, timeout time.Duration) (Field, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.err != nil {
			return nil, s.err
		}
		return s.field, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, &NotReadyError{Timeout: timeout}
	}
}
