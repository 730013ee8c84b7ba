// Package demo runs the fixed calculation script against a numeric service
// and reports every outcome as a line of text.
package demo

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/cockroachdb/errors"
	asynccalc "github.com/xizhibei/go-async-calc"
	"go.uber.org/zap"
)

// Step is one calculation of the script.
// A guarded step reports its failure instead of returning it.
type Step struct {
	Op      asynccalc.Operation
	A, B    float64
	Guarded bool
}

func (s Step) String() string {
	return fmt.Sprintf("%s(%s, %s)", s.Op, FormatNumber(s.A), FormatNumber(s.B))
}

// Script returns the steps in the order they run.
func Script() []Step {
	return []Step{
		{Op: asynccalc.OpAdd, A: 1, B: 2},
		{Op: asynccalc.OpSub, A: 10, B: 3},
		{Op: asynccalc.OpMul, A: 16, B: 15},
		{Op: asynccalc.OpDiv, A: 999, B: 9},
		{Op: asynccalc.OpDiv, A: 1, B: 0, Guarded: true},
	}
}

// Runner runs the script against svc and writes the outcomes to out.
type Runner struct {
	svc   asynccalc.Service
	out   io.Writer
	steps []Step
	log   *zap.SugaredLogger
}

func NewRunner(svc asynccalc.Service, out io.Writer) *Runner {
	return &Runner{
		svc:   svc,
		out:   out,
		steps: Script(),
		log:   zap.S().With("module", "calc.demo"),
	}
}

// Run issues the steps one at a time, each awaited before the next.
// The first failure of an unguarded step aborts the run and is returned,
// as does ctx being done before a step starts.
func (r *Runner) Run(ctx context.Context) error {
	for i, step := range r.steps {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "%s", step)
		}
		r.log.Debugf("Step %d %s", i+1, step)

		v, err := asynccalc.Invoke(ctx, r.svc, step.Op, step.A, step.B)

		if step.Guarded {
			if err != nil {
				if _, werr := fmt.Fprintf(r.out, "Error: %v\n", err); werr != nil {
					return errors.Wrap(werr, "write output")
				}
			} else {
				r.log.Warnf("Step %d %s succeeded unexpectedly with %s", i+1, step, FormatNumber(v))
			}
			continue
		}

		if err != nil {
			return errors.Wrapf(err, "%s", step)
		}
		if _, err := fmt.Fprintf(r.out, "v = %s\n", FormatNumber(v)); err != nil {
			return errors.Wrap(err, "write output")
		}
	}
	return nil
}

// FormatNumber formats v as the shortest decimal that reads back to v,
// without exponent or trailing zeros. Non-finite values print as Infinity, -Infinity and NaN.
func FormatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
