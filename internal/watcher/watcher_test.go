package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOptionsWithDefaultsFillsStreamWatchTimeout(t *testing.T) {
	o := Options{}.withDefaults()
	require.Equal(t, defaultStreamWatchTimeout, o.StreamWatchTimeout)
}

func TestOptionsWithDefaultsKeepsExplicitStreamWatchTimeout(t *testing.T) {
	o := Options{StreamWatchTimeout: 30 * time.Second}.withDefaults()
	require.Equal(t, 30*time.Second, o.StreamWatchTimeout)
}

func TestNewReconnectBackoffCapsAtMaxReconnectBackoff(t *testing.T) {
	b := newReconnectBackoff()
	require.Equal(t, maxReconnectBackoff, b.MaxInterval)
	require.Zero(t, b.MaxElapsedTime)
}

func TestInt64PtrRoundTrips(t *testing.T) {
	p := int64Ptr(42)
	require.NotNil(t, p)
	require.Equal(t, int64(42), *p)
}
