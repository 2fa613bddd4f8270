package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatic_GetParameter(t *testing.T) {
	s := Static{"/x/a": "value", "/x/blank": "  "}

	v, err := s.GetParameter(context.Background(), "/x/a")
	require.NoError(t, err)
	require.Equal(t, "value", v)

	_, err = s.GetParameter(context.Background(), "/x/blank")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetParameter(context.Background(), "/x/missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestChain_FirstHitWins(t *testing.T) {
	env := Static{"/x/a": "from-env"}
	ssm := &countingGetter{val: "from-ssm"}
	dev := Static{"/x/a": "from-dev", "/x/b": "dev-b"}

	c := Chain{env, ssm, dev}
	v, err := c.GetParameter(context.Background(), "/x/a")
	require.NoError(t, err)
	require.Equal(t, "from-env", v)
	require.Zero(t, ssm.calls)
}

func TestChain_FallsThroughErrors(t *testing.T) {
	ssm := &countingGetter{err: errors.New("access denied")}
	c := Chain{Static{}, ssm, nil, Static{"/x/b": "dev-b"}}

	v, err := c.GetParameter(context.Background(), "/x/b")
	require.NoError(t, err)
	require.Equal(t, "dev-b", v)
	require.Equal(t, 1, ssm.calls)
}

func TestChain_AllFail(t *testing.T) {
	c := Chain{Static{}, &countingGetter{err: errors.New("access denied")}}
	_, err := c.GetParameter(context.Background(), "/x/c")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorContains(t, err, "access denied")

	_, err = Chain{}.GetParameter(context.Background(), "/x/c")
	require.ErrorContains(t, err, "empty chain")
}
