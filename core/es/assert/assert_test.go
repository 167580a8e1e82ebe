package assert

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssert(t *testing.T) {
	mustBeTrue := True(true, "must be true")
	require.True(t, mustBeTrue.Eval())
	require.NoError(t, mustBeTrue.Check())
	require.Equal(t, "must be true", mustBeTrue.String())

	mustBeFalse := False(false, "must be false")
	require.True(t, mustBeFalse.Eval())
	require.NoError(t, mustBeFalse.Check())

	require.NoError(t, All(mustBeTrue, mustBeFalse).Check())

	err := All(mustBeTrue, mustBeFalse, That("foo", func() bool { return false })).Check()
	require.ErrorIs(t, err, ErrFailed)
	require.ErrorContains(t, err, "foo")

	require.False(t, Not(mustBeTrue).Eval())
	require.Equal(t, "not(must be true)", Not(mustBeTrue).String())
}

func TestAssert_Check(t *testing.T) {
	errRejected := errors.New("rejected")

	require.NoError(t, Check(errRejected, True(true, "ok")))

	err := Check(errRejected, True(true, "ok"), True(false, "quantity is positive"))
	require.ErrorIs(t, err, errRejected)
	require.ErrorIs(t, err, ErrFailed)
	require.ErrorContains(t, err, "quantity is positive")
}

func TestAssert_That_isLazy(t *testing.T) {
	n := 0
	c := That("n is positive", func() bool { return n > 0 })
	require.Error(t, c.Check())
	n = 1
	require.NoError(t, c.Check())
}
