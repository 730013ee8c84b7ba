package asynccalc_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	asynccalc "github.com/xizhibei/go-async-calc"
	mock_asynccalc "github.com/xizhibei/go-async-calc/mock"
	"go.uber.org/mock/gomock"
)

func TestApply(t *testing.T) {
	cases := []struct {
		op   asynccalc.Operation
		a, b float64
		want float64
	}{
		{asynccalc.OpAdd, 1, 2, 3},
		{asynccalc.OpSub, 10, 3, 7},
		{asynccalc.OpMul, 16, 15, 240},
		{asynccalc.OpDiv, 999, 9, 111},
		{asynccalc.OpDiv, 1, 2, 0.5},
		{asynccalc.OpDiv, 0, 5, 0},
	}

	for _, c := range cases {
		got, err := asynccalc.Apply(c.op, c.a, c.b)
		require.NoError(t, err, "%s(%v, %v)", c.op, c.a, c.b)
		assert.Equal(t, c.want, got, "%s(%v, %v)", c.op, c.a, c.b)
	}
}

func TestApplyDivisionByZero(t *testing.T) {
	for _, a := range []float64{1, 0, -1} {
		_, err := asynccalc.Apply(asynccalc.OpDiv, a, 0)
		assert.ErrorIs(t, err, asynccalc.ErrDivisionByZero)
		assert.Equal(t, "division by zero", err.Error())
	}
}

func TestApplyUnknownOperation(t *testing.T) {
	_, err := asynccalc.Apply(asynccalc.Operation(42), 1, 2)
	assert.ErrorIs(t, err, asynccalc.ErrUnknownOperation)
}

func TestParseOperation(t *testing.T) {
	for _, op := range []asynccalc.Operation{asynccalc.OpAdd, asynccalc.OpSub, asynccalc.OpMul, asynccalc.OpDiv} {
		parsed, err := asynccalc.ParseOperation(op.String())
		require.NoError(t, err)
		assert.Equal(t, op, parsed)
	}

	_, err := asynccalc.ParseOperation("pow")
	assert.ErrorIs(t, err, asynccalc.ErrUnknownOperation)
	assert.Equal(t, "unknown", asynccalc.Operation(-1).String())
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, asynccalc.StatusOK, asynccalc.StatusOf(nil))
	assert.Equal(t, asynccalc.StatusClientError, asynccalc.StatusOf(asynccalc.ErrDivisionByZero))
	assert.Equal(t, asynccalc.StatusClientError, asynccalc.StatusOf(errors.Wrap(asynccalc.ErrUnknownOperation, "pow")))
	assert.Equal(t, asynccalc.StatusRequestTimeout, asynccalc.StatusOf(asynccalc.ErrTimeout))
	assert.Equal(t, asynccalc.StatusTooFrequently, asynccalc.StatusOf(asynccalc.ErrTooFrequently))
	assert.Equal(t, asynccalc.StatusServerError, asynccalc.StatusOf(errors.New("boom")))
}

func TestInvoke(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mock_asynccalc.NewMockService(ctrl)
	ctx := context.Background()

	gomock.InOrder(
		svc.EXPECT().Add(ctx, 1.0, 2.0).Return(3.0, nil),
		svc.EXPECT().Sub(ctx, 10.0, 3.0).Return(7.0, nil),
		svc.EXPECT().Mul(ctx, 16.0, 15.0).Return(240.0, nil),
		svc.EXPECT().Div(ctx, 1.0, 0.0).Return(0.0, asynccalc.ErrDivisionByZero),
	)

	v, err := asynccalc.Invoke(ctx, svc, asynccalc.OpAdd, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	v, err = asynccalc.Invoke(ctx, svc, asynccalc.OpSub, 10, 3)
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)

	v, err = asynccalc.Invoke(ctx, svc, asynccalc.OpMul, 16, 15)
	require.NoError(t, err)
	assert.Equal(t, 240.0, v)

	_, err = asynccalc.Invoke(ctx, svc, asynccalc.OpDiv, 1, 0)
	assert.ErrorIs(t, err, asynccalc.ErrDivisionByZero)

	_, err = asynccalc.Invoke(ctx, svc, asynccalc.Operation(9), 1, 0)
	assert.ErrorIs(t, err, asynccalc.ErrUnknownOperation)
}
