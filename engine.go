package asynccalc

import (
	"context"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/Jeffail/tunny"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xizhibei/go-async-calc/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
)

var (
	// ErrTimeout is an error indicating a calculation did not settle in time.
	ErrTimeout = errors.New("[CALC] timeout")

	// ErrTooFrequently is an error indicating that calculations were requested too frequently.
	ErrTooFrequently = errors.New("[CALC] too frequently, try again later")

	// ErrClosed is an error indicating that the engine no longer accepts calculations.
	ErrClosed = errors.New("[CALC] engine closed")
)

// StatusOf maps the outcome of a calculation to a status code.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrDivisionByZero), errors.Is(err, ErrUnknownOperation):
		return StatusClientError
	case errors.Is(err, ErrTimeout):
		return StatusRequestTimeout
	case errors.Is(err, ErrTooFrequently):
		return StatusTooFrequently
	default:
		return StatusServerError
	}
}

// Engine runs calculations asynchronously on a bounded pool of workers.
// Every calculation is settled on a later worker turn, never inside Go itself.
type Engine struct {
	log *zap.SugaredLogger

	cbList       []OnAfterResultCallback // Callbacks executed after each settled calculation.
	cbMu         sync.RWMutex            // Protects cbList.
	afterResPool sync.Pool               // Pool of AfterResultEvent objects.

	options    *engineOptions
	workerPool *tunny.Pool
	limiter    *rate.Limiter
	telemetry  *telemetry.Telemetry
	closed     atomic.Bool

	apply func(op Operation, a, b float64) (float64, error)
}

// NewEngine creates a new engine with the provided options.
// Options that are not provided fall back to their defaults.
func NewEngine(options ...EngineOption) *Engine {
	o := engineOptions{
		name:            uuid.New().String(),
		logResult:       false,
		workerNum:       runtime.NumCPU(),
		limiterDuration: time.Millisecond,
		limiterCount:    100,
		limiterReject:   true,
	}

	for _, option := range options {
		option(&o)
	}

	rt := rate.Every(o.limiterDuration)
	limiter := rate.NewLimiter(rt, o.limiterCount)

	engine := Engine{
		log:     zap.S().With("module", "calc.engine"),
		options: &o,

		afterResPool: sync.Pool{
			New: func() interface{} {
				return new(AfterResultEvent)
			},
		},
		workerPool: tunny.NewCallback(o.workerNum),
		limiter:    limiter,
		telemetry:  telemetry.NewNoop(),
		apply:      Apply,
	}

	return &engine
}

// Name returns the name of the engine.
func (e *Engine) Name() string {
	return e.options.name
}

// SetTelemetry sets the telemetry used to trace and measure calculations.
func (e *Engine) SetTelemetry(tel *telemetry.Telemetry) {
	e.telemetry = tel
}

// Close stops the workers. Calculations requested afterwards fail with ErrClosed.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.workerPool.Close()
	e.log.Debugf("Engine %s closed", e.options.name)
	return nil
}

// Go schedules op over a and b and returns immediately.
// The returned call settles once the calculation completes, fails, times out or is rejected.
func (e *Engine) Go(ctx context.Context, op Operation, a, b float64) *Call {
	call := newCall(op, a, b)
	if e.closed.Load() {
		call.settle(0, ErrClosed)
		return call
	}

	go e.process(ctx, call)

	return call
}

// Calculate schedules op over a and b and waits for the result.
func (e *Engine) Calculate(ctx context.Context, op Operation, a, b float64) (float64, error) {
	return e.Go(ctx, op, a, b).Await(ctx)
}

// Add returns a + b.
func (e *Engine) Add(ctx context.Context, a, b float64) (float64, error) {
	return e.Calculate(ctx, OpAdd, a, b)
}

// Sub returns a - b.
func (e *Engine) Sub(ctx context.Context, a, b float64) (float64, error) {
	return e.Calculate(ctx, OpSub, a, b)
}

// Mul returns a * b.
func (e *Engine) Mul(ctx context.Context, a, b float64) (float64, error) {
	return e.Calculate(ctx, OpMul, a, b)
}

// Div returns a / b, or ErrDivisionByZero when b is zero.
func (e *Engine) Div(ctx context.Context, a, b float64) (float64, error) {
	return e.Calculate(ctx, OpDiv, a, b)
}

func (e *Engine) process(ctx context.Context, call *Call) {
	start := time.Now()

	var span trace.Span
	ctx, span = e.telemetry.StartSpan(ctx, "Calc.Engine."+call.Op.String(),
		trace.WithAttributes(
			attribute.Float64("calc.a", call.Operands.A),
			attribute.Float64("calc.b", call.Operands.B),
		),
	)

	defer func() {
		duration := time.Since(start)
		result, err := call.Result()
		status := StatusOf(err)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		e.telemetry.RecordCalculation(ctx, duration, call.Op.String(), strconv.Itoa(status), err)

		if e.options.logResult {
			e.log.Infof("Calculated %s(%v, %v) = %v [%d] (%v)",
				call.Op, call.Operands.A, call.Operands.B, result, status, duration.Round(time.Microsecond))
		}

		evt := e.afterResPool.Get().(*AfterResultEvent)
		evt.Call = call
		evt.Duration = duration
		evt.Result = result
		evt.Err = err
		evt.Status = status
		e.emitAfterResult(evt)
	}()

	if e.options.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.options.timeout)
		defer cancel()
	}

	if e.options.limiterReject {
		if !e.limiter.Allow() {
			call.settle(0, ErrTooFrequently)
			return
		}
	} else if err := e.limiter.Wait(ctx); err != nil {
		call.settle(0, translatePoolError(err))
		return
	}

	_, err := e.workerPool.ProcessCtx(ctx, func() {
		defer func() {
			if i := recover(); i != nil {
				err := errors.Newf("panic in calculation %s %v", call.Op, i)
				e.log.Desugar().WithOptions(zap.AddStacktrace(zapcore.ErrorLevel)).Sugar().Error(err)
				call.settle(0, err)
			}
		}()

		result, err := e.apply(call.Op, call.Operands.A, call.Operands.B)
		if !call.settle(result, err) {
			e.log.Warnf("Calculation %s %s settled late, result dropped", call.Op, call.ID)
		}
	})

	if err != nil {
		call.settle(0, translatePoolError(err))
	}
}

func translatePoolError(err error) error {
	switch {
	case errors.Is(err, tunny.ErrPoolNotRunning), errors.Is(err, tunny.ErrWorkerClosed):
		return ErrClosed
	case errors.Is(err, context.Canceled):
		return err
	default:
		return ErrTimeout
	}
}

// AfterResultEvent describes a settled calculation.
// Events are pooled, so callbacks must not retain them.
type AfterResultEvent struct {
	Call     *Call
	Duration time.Duration
	Result   float64
	Err      error
	Status   int
}

// OnAfterResultCallback is a function executed after a calculation settles.
type OnAfterResultCallback func(e *AfterResultEvent)

// OnAfterResult registers a callback executed after each calculation settles.
func (e *Engine) OnAfterResult(cb OnAfterResultCallback) {
	e.cbMu.Lock()
	defer e.cbMu.Unlock()
	e.cbList = append(e.cbList, cb)
}

func (e *Engine) emitAfterResult(evt *AfterResultEvent) {
	e.cbMu.RLock()
	for _, cb := range e.cbList {
		cb(evt)
	}
	e.cbMu.RUnlock()

	*evt = AfterResultEvent{}
	e.afterResPool.Put(evt)
}

// RegisterMetrics records the duration of every calculation into responseTime
// and counts failed calculations into errorCount. Either may be nil.
// Both vectors are expected to carry the labels name, op and status; errorCount also carries message.
func (e *Engine) RegisterMetrics(responseTime *prometheus.HistogramVec, errorCount *prometheus.GaugeVec) {
	e.OnAfterResult(func(evt *AfterResultEvent) {
		labels := prometheus.Labels{
			"name":   e.options.name,
			"op":     evt.Call.Op.String(),
			"status": strconv.Itoa(evt.Status),
		}

		if responseTime != nil {
			responseTime.
				With(labels).
				Observe(evt.Duration.Seconds())
		}

		if evt.Err != nil && errorCount != nil {
			labels["message"] = evt.Err.Error()
			errorCount.
				With(labels).
				Inc()
		}
	})
}
