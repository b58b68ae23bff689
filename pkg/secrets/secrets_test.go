package secrets

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvProvider(t *testing.T) {
	t.Setenv("HARVEST_TEST_SECRET", "s3cret")

	p := NewEnvProvider()
	value, err := p.GetSecret(context.Background(), "HARVEST_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", value)

	_, err = p.GetSecret(context.Background(), "HARVEST_TEST_MISSING")
	assert.Error(t, err)
}

type countingProvider struct {
	calls int
	value string
}

func (p *countingProvider) GetSecret(context.Context, string) (string, error) {
	p.calls++
	return p.value, nil
}

func TestCachedProvider_ResolvesOnce(t *testing.T) {
	inner := &countingProvider{value: "key-material"}
	p := NewCachedProvider(inner, time.Minute)

	for i := 0; i < 3; i++ {
		value, err := p.GetSecret(context.Background(), "treasury-key")
		require.NoError(t, err)
		assert.Equal(t, "key-material", value)
	}
	assert.Equal(t, 1, inner.calls)
}
