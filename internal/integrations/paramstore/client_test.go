package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	out *ssm.GetParameterOutput
	err error
	in  *ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.in = in
	return f.out, f.err
}

func parameter(value *string) *ssm.GetParameterOutput {
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name:  aws.String("/reply-gateway/ark-api-key"),
		Type:  types.ParameterTypeSecureString,
		Value: value,
	}}
}

func TestClient_GetParameter_DecryptsAndTrims(t *testing.T) {
	api := &fakeSSM{out: parameter(aws.String(" sk-123 \n"))}
	c, err := New(api)
	require.NoError(t, err)

	v, err := c.GetParameter(context.Background(), " /reply-gateway/ark-api-key ")
	require.NoError(t, err)
	require.Equal(t, "sk-123", v)
	require.Equal(t, "/reply-gateway/ark-api-key", aws.ToString(api.in.Name))
	require.True(t, aws.ToBool(api.in.WithDecryption))
}

func TestClient_GetParameter_NotFound(t *testing.T) {
	cases := []struct {
		name string
		api  *fakeSSM
	}{
		{name: "ssm not found", api: &fakeSSM{err: &types.ParameterNotFound{Message: aws.String("nope")}}},
		{name: "nil parameter", api: &fakeSSM{out: &ssm.GetParameterOutput{}}},
		{name: "nil value", api: &fakeSSM{out: parameter(nil)}},
		{name: "blank value", api: &fakeSSM{out: parameter(aws.String("  "))}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := New(tc.api)
			require.NoError(t, err)
			_, err = c.GetParameter(context.Background(), "/p")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestClient_GetParameter_APIErrorIsNotNotFound(t *testing.T) {
	c, err := New(&fakeSSM{err: errors.New("throttled")})
	require.NoError(t, err)

	_, err = c.GetParameter(context.Background(), "/p")
	require.ErrorContains(t, err, "throttled")
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestClient_InvalidUse(t *testing.T) {
	_, err := New(nil)
	require.ErrorContains(t, err, "must not be nil")

	_, err = (&Client{}).GetParameter(context.Background(), "/p")
	require.ErrorContains(t, err, "not initialized")

	c, err := New(&fakeSSM{})
	require.NoError(t, err)
	_, err = c.GetParameter(context.Background(), "  ")
	require.ErrorContains(t, err, "required")
}
