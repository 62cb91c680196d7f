package oscbridge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateSignature(t *testing.T) {
	require.NoError(t, validateSignature("fissif"))
	require.NoError(t, validateSignature("ihfds"))
	require.ErrorIs(t, validateSignature(""), ErrInvalidConfig)
	require.ErrorIs(t, validateSignature("fxb"), ErrInvalidConfig)
}

func TestCoerceToSignature(t *testing.T) {
	got, err := coerceToSignature("ihfds", []any{1, 2, 3.5, 4.5, "x"})
	require.NoError(t, err)
	require.Equal(t, []any{int32(1), int64(2), float32(3.5), float64(4.5), "x"}, got)

	// Exact wire types pass through untouched.
	got, err = coerceToSignature("if", []any{int32(7), float32(1.5)})
	require.NoError(t, err)
	require.Equal(t, []any{int32(7), float32(1.5)}, got)

	_, err = coerceToSignature("i", []any{"nope"})
	require.ErrorIs(t, err, ErrTypeSignatureMismatch)
	_, err = coerceToSignature("d", []any{float32(1)})
	require.ErrorIs(t, err, ErrTypeSignatureMismatch, "no silent narrowing into float64")
	_, err = coerceToSignature("ii", []any{1})
	require.ErrorIs(t, err, ErrTypeSignatureMismatch)
}

func TestSupportedArguments(t *testing.T) {
	require.True(t, supportedArguments([]any{int32(1), int64(2), float32(3), float64(4), "s"}))
	require.False(t, supportedArguments([]any{[]byte("blob")}))
	require.False(t, supportedArguments([]any{true}))
	require.False(t, supportedArguments([]any{nil}))
}

func TestNumericValues(t *testing.T) {
	dst := make([]float64, 4)
	require.True(t, numericValues([]any{int32(1), int64(2), float32(3), float64(4)}, dst))
	require.Equal(t, []float64{1, 2, 3, 4}, dst)

	require.False(t, numericValues([]any{"s"}, make([]float64, 1)))
	require.False(t, numericValues([]any{int32(1)}, make([]float64, 2)))
}
