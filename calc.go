package asynccalc

//go:generate mockgen -source=calc.go -destination=mock/mock_calc.go

import (
	"context"

	"github.com/cockroachdb/errors"
)

var (
	// ErrDivisionByZero is returned by a division whose divisor is zero.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrUnknownOperation is returned for an operation outside add, sub, mul and div.
	ErrUnknownOperation = errors.New("[CALC] unknown operation")
)

// Operation identifies one of the arithmetic operations.
type Operation int

const (
	OpAdd Operation = iota
	OpSub
	OpMul
	OpDiv
)

var operationNames = [...]string{
	OpAdd: "add",
	OpSub: "sub",
	OpMul: "mul",
	OpDiv: "div",
}

// String returns the wire name of the operation.
func (op Operation) String() string {
	if op < 0 || int(op) >= len(operationNames) {
		return "unknown"
	}
	return operationNames[op]
}

// ParseOperation returns the operation with the given wire name.
func ParseOperation(name string) (Operation, error) {
	for i, n := range operationNames {
		if n == name {
			return Operation(i), nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownOperation, "%q", name)
}

// Operands holds the two inputs of a calculation.
type Operands struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// Service is an asynchronous numeric service.
// Every method blocks until the service settles the calculation or ctx is done.
type Service interface {
	Add(ctx context.Context, a, b float64) (float64, error)
	Sub(ctx context.Context, a, b float64) (float64, error)
	Mul(ctx context.Context, a, b float64) (float64, error)
	Div(ctx context.Context, a, b float64) (float64, error)
}

// Apply evaluates op over a and b.
func Apply(op Operation, a, b float64) (float64, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMul:
		return a * b, nil
	case OpDiv:
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return a / b, nil
	default:
		return 0, errors.Wrapf(ErrUnknownOperation, "%d", int(op))
	}
}

// Invoke dispatches op onto the matching method of svc.
func Invoke(ctx context.Context, svc Service, op Operation, a, b float64) (float64, error) {
	switch op {
	case OpAdd:
		return svc.Add(ctx, a, b)
	case OpSub:
		return svc.Sub(ctx, a, b)
	case OpMul:
		return svc.Mul(ctx, a, b)
	case OpDiv:
		return svc.Div(ctx, a, b)
	default:
		return 0, errors.Wrapf(ErrUnknownOperation, "%d", int(op))
	}
}
