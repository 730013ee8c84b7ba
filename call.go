package asynccalc

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// Call represents a calculation that is scheduled but possibly not yet settled.
type Call struct {
	ID       string    // ID is the unique identifier of the call.
	Op       Operation // Op is the requested operation.
	Operands Operands  // Operands are the inputs of the calculation.

	// Done is closed once the call has settled.
	Done chan struct{}

	settled atomic.Bool // settled guards against a second settlement.
	mu      sync.Mutex  // mu protects result and err.
	result  float64
	err     error
}

func newCall(op Operation, a, b float64) *Call {
	return &Call{
		ID:       uuid.NewString(),
		Op:       op,
		Operands: Operands{A: a, B: b},
		Done:     make(chan struct{}),
	}
}

// settle records the outcome of the call and closes Done.
// It returns false if the call has already settled, in which case the outcome is dropped.
func (c *Call) settle(result float64, err error) bool {
	if !c.settled.CompareAndSwap(false, true) {
		return false
	}

	c.mu.Lock()
	c.result = result
	c.err = err
	c.mu.Unlock()

	close(c.Done)
	return true
}

// Settled reports whether the call has settled.
func (c *Call) Settled() bool {
	return c.settled.Load()
}

// Result returns the outcome of a settled call.
// Before settlement it returns zero and a nil error.
func (c *Call) Result() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, c.err
}

// Await blocks until the call settles or ctx is done.
func (c *Call) Await(ctx context.Context) (float64, error) {
	select {
	case <-c.Done:
		return c.Result()
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
