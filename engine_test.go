package asynccalc

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"github.com/xizhibei/go-async-calc/telemetry"
	"go.uber.org/zap"
)

type EngineTestSuite struct {
	suite.Suite
	ctx context.Context
}

func (suite *EngineTestSuite) SetupSuite() {
	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(log)
	suite.ctx = context.Background()
}

func (suite *EngineTestSuite) newEngine(options ...EngineOption) *Engine {
	e := NewEngine(append([]EngineOption{WithLogResult(true)}, options...)...)
	suite.T().Cleanup(func() { _ = e.Close() })
	return e
}

func (suite *EngineTestSuite) TestArithmetic() {
	e := suite.newEngine()

	v, err := e.Add(suite.ctx, 1, 2)
	suite.NoError(err)
	suite.Equal(3.0, v)

	v, err = e.Sub(suite.ctx, 10, 3)
	suite.NoError(err)
	suite.Equal(7.0, v)

	v, err = e.Mul(suite.ctx, 16, 15)
	suite.NoError(err)
	suite.Equal(240.0, v)

	v, err = e.Div(suite.ctx, 999, 9)
	suite.NoError(err)
	suite.Equal(111.0, v)
}

func (suite *EngineTestSuite) TestDivisionByZero() {
	e := suite.newEngine()

	_, err := e.Div(suite.ctx, 1, 0)
	suite.ErrorIs(err, ErrDivisionByZero)
	suite.Equal(StatusClientError, StatusOf(err))
}

func (suite *EngineTestSuite) TestGoSettlesLater() {
	e := suite.newEngine()
	release := make(chan struct{})
	e.apply = func(op Operation, a, b float64) (float64, error) {
		<-release
		return Apply(op, a, b)
	}

	call := e.Go(suite.ctx, OpMul, 16, 15)
	suite.False(call.Settled())
	suite.NotEmpty(call.ID)
	suite.Equal(Operands{A: 16, B: 15}, call.Operands)

	close(release)

	v, err := call.Await(suite.ctx)
	suite.NoError(err)
	suite.Equal(240.0, v)
	suite.True(call.Settled())
}

func (suite *EngineTestSuite) TestAwaitContextDone() {
	e := suite.newEngine()
	release := make(chan struct{})
	defer close(release)
	e.apply = func(op Operation, a, b float64) (float64, error) {
		<-release
		return Apply(op, a, b)
	}

	ctx, cancel := context.WithCancel(suite.ctx)
	call := e.Go(suite.ctx, OpAdd, 1, 2)
	cancel()

	_, err := call.Await(ctx)
	suite.ErrorIs(err, context.Canceled)
}

func (suite *EngineTestSuite) TestTimeout() {
	e := suite.newEngine(WithTimeout(50 * time.Millisecond))
	e.apply = func(op Operation, a, b float64) (float64, error) {
		time.Sleep(200 * time.Millisecond)
		return Apply(op, a, b)
	}

	call := e.Go(suite.ctx, OpAdd, 1, 2)
	_, err := call.Await(suite.ctx)
	suite.ErrorIs(err, ErrTimeout)

	// The late result must not overwrite the timeout.
	time.Sleep(250 * time.Millisecond)
	_, err = call.Result()
	suite.ErrorIs(err, ErrTimeout)
}

func (suite *EngineTestSuite) TestPanic() {
	e := suite.newEngine()
	e.apply = func(op Operation, a, b float64) (float64, error) {
		panic("native crash")
	}

	_, err := e.Add(suite.ctx, 1, 2)
	suite.Error(err)
	suite.Contains(err.Error(), "panic in calculation add native crash")
	suite.Equal(StatusServerError, StatusOf(err))
}

func (suite *EngineTestSuite) TestLimiterReject() {
	e := suite.newEngine(WithLimiter(time.Hour, 1), WithLimiterReject())

	_, err := e.Add(suite.ctx, 1, 2)
	suite.NoError(err)

	_, err = e.Add(suite.ctx, 1, 2)
	suite.ErrorIs(err, ErrTooFrequently)
}

func (suite *EngineTestSuite) TestLimiterWait() {
	e := suite.newEngine(WithLimiter(time.Hour, 1), WithLimiterWait(), WithTimeout(50*time.Millisecond))

	_, err := e.Add(suite.ctx, 1, 2)
	suite.NoError(err)

	_, err = e.Add(suite.ctx, 1, 2)
	suite.ErrorIs(err, ErrTimeout)
}

func (suite *EngineTestSuite) TestClosed() {
	e := NewEngine()
	suite.NoError(e.Close())
	suite.NoError(e.Close())

	_, err := e.Add(suite.ctx, 1, 2)
	suite.ErrorIs(err, ErrClosed)
}

func (suite *EngineTestSuite) TestCallSettlesOnce() {
	call := newCall(OpAdd, 1, 2)
	suite.True(call.settle(3, nil))
	suite.False(call.settle(0, errors.New("late")))

	v, err := call.Result()
	suite.NoError(err)
	suite.Equal(3.0, v)
}

func (suite *EngineTestSuite) TestOnAfterResult() {
	e := suite.newEngine()

	events := make(chan AfterResultEvent, 2)
	e.OnAfterResult(func(evt *AfterResultEvent) {
		events <- *evt
	})

	_, _ = e.Add(suite.ctx, 1, 2)
	_, _ = e.Div(suite.ctx, 1, 0)

	byOp := map[Operation]AfterResultEvent{}
	for i := 0; i < 2; i++ {
		select {
		case evt := <-events:
			byOp[evt.Call.Op] = evt
		case <-time.After(time.Second):
			suite.FailNow("missing after result event")
		}
	}

	add := byOp[OpAdd]
	suite.Equal(3.0, add.Result)
	suite.Equal(StatusOK, add.Status)
	suite.NoError(add.Err)

	div := byOp[OpDiv]
	suite.Equal(StatusClientError, div.Status)
	suite.ErrorIs(div.Err, ErrDivisionByZero)
}

func (suite *EngineTestSuite) TestRegisterMetrics() {
	e := suite.newEngine(WithEngineName("metrics-test"))

	responseTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "calc_response_time_seconds",
	}, []string{"name", "op", "status"})
	errorCount := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "calc_error_count",
	}, []string{"name", "op", "status", "message"})

	e.RegisterMetrics(responseTime, errorCount)

	_, _ = e.Add(suite.ctx, 1, 2)
	_, _ = e.Div(suite.ctx, 1, 0)

	suite.Eventually(func() bool {
		return testutil.CollectAndCount(responseTime) == 2 && testutil.CollectAndCount(errorCount) == 1
	}, time.Second, 10*time.Millisecond)

	suite.Equal(1.0, testutil.ToFloat64(errorCount.With(prometheus.Labels{
		"name":    "metrics-test",
		"op":      "div",
		"status":  "400",
		"message": "division by zero",
	})))
}

func (suite *EngineTestSuite) TestTelemetry() {
	testTel := telemetry.NewTestTelemetry(suite.T())
	defer testTel.Shutdown(suite.ctx)

	e := suite.newEngine()
	e.SetTelemetry(testTel.Telemetry(suite.T()))

	_, err := e.Sub(suite.ctx, 10, 3)
	suite.NoError(err)

	suite.Eventually(func() bool {
		for _, span := range testTel.GetSpanRecorder().Ended() {
			if span.Name() == "Calc.Engine.sub" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestEngine(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}
