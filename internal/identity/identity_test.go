package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallerRoundTrip(t *testing.T) {
	ctx := WithCaller(context.Background(), "  0xAbC ")
	id, err := RequireCaller(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", id)
}

func TestRequireCaller_Missing(t *testing.T) {
	_, err := RequireCaller(context.Background())
	assert.ErrorIs(t, err, ErrMissingCaller)

	_, err = RequireCaller(WithCaller(context.Background(), "   "))
	assert.ErrorIs(t, err, ErrMissingCaller)
}
