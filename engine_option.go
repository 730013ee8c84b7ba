package asynccalc

import "time"

type engineOptions struct {
	logResult       bool
	name            string
	workerNum       int
	timeout         time.Duration
	limiterDuration time.Duration
	limiterCount    int
	limiterReject   bool
}

// EngineOption is a functional option for configuring the engine.
type EngineOption func(o *engineOptions)

// WithEngineName sets the name reported in logs and metric labels.
func WithEngineName(name string) EngineOption {
	return func(o *engineOptions) {
		o.name = name
	}
}

// WithLogResult enables or disables logging of every settled calculation.
func WithLogResult(logResult bool) EngineOption {
	return func(o *engineOptions) {
		o.logResult = logResult
	}
}

// WithLimiter sets the limiter window and the number of calculations allowed within it.
// Default values are 1 millisecond and 100 calculations.
func WithLimiter(d time.Duration, count int) EngineOption {
	return func(o *engineOptions) {
		o.limiterDuration = d
		o.limiterCount = count
	}
}

// WithLimiterReject makes the engine fail a calculation with ErrTooFrequently when the limiter is exhausted.
// This is the default behavior.
func WithLimiterReject() EngineOption {
	return func(o *engineOptions) {
		o.limiterReject = true
	}
}

// WithLimiterWait makes the engine wait for the limiter instead of rejecting.
func WithLimiterWait() EngineOption {
	return func(o *engineOptions) {
		o.limiterReject = false
	}
}

// WithWorkerNum sets the number of workers that run calculations.
func WithWorkerNum(count int) EngineOption {
	return func(o *engineOptions) {
		o.workerNum = count
	}
}

// WithTimeout bounds the time a calculation may spend queued and running.
// Zero disables the bound.
func WithTimeout(d time.Duration) EngineOption {
	return func(o *engineOptions) {
		o.timeout = d
	}
}
