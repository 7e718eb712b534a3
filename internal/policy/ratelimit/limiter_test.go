package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClamp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultInterval, Clamp(0))
	assert.Equal(t, MinInterval, Clamp(10*time.Millisecond))
	assert.Equal(t, 3*time.Second, Clamp(3*time.Second))
}

func TestLimiterSpacesRequestsAcrossHosts(t *testing.T) {
	t.Parallel()

	l := New(Config{Interval: MinInterval})
	ctx := context.Background()

	// First call consumes the initial token.
	start := time.Now()
	_, err := l.Wait(ctx, "https://en.wikipedia.org/w/api.php")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	// A different host still waits: the throttle is shared.
	start = time.Now()
	waited, err := l.Wait(ctx, "https://stats.espncricinfo.com/ci/engine/player/1.html")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	assert.Greater(t, waited, time.Duration(0))
}

func TestLimiterHonorsCancellation(t *testing.T) {
	t.Parallel()

	l := New(Config{Interval: 5 * time.Second})
	_, err := l.Wait(context.Background(), "https://example.com")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Wait(ctx, "https://example.com")
	require.Error(t, err)
}
