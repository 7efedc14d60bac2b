package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/andreweacott/actron-neo-bridge/pkg/neo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func breakerUnderTest(api API) API {
	return WithBreaker(api, BreakerConfig{
		MaxConsecutiveFailures: 3,
		Timeout:                time.Minute,
	})
}

// TestBreaker_PassThrough tests normal operation with a healthy backend
func TestBreaker_PassThrough(t *testing.T) {
	api := breakerUnderTest(newFakeAPI())

	systems, err := api.ListSystems(context.Background())
	require.NoError(t, err)
	assert.Len(t, systems, 1)

	status, err := api.FetchStatus(context.Background(), "ABC123456")
	require.NoError(t, err)
	assert.NotNil(t, status)
}

// TestBreaker_OpensAfterConsecutiveTransientFailures tests tripping
func TestBreaker_OpensAfterConsecutiveTransientFailures(t *testing.T) {
	fake := newFakeAPI()
	fake.statusErr = &neo.Error{Kind: neo.KindOffline, Op: "fetch status", StatusCode: 503}
	api := breakerUnderTest(fake)

	for i := 0; i < 3; i++ {
		_, err := api.FetchStatus(context.Background(), "ABC123456")
		require.Error(t, err)
		assert.Equal(t, neo.KindOffline, neo.KindOf(err))
	}

	// Breaker is open now: the backend is no longer consulted
	fake.mu.Lock()
	callsBefore := fake.fetchCalls
	fake.mu.Unlock()

	_, err := api.FetchStatus(context.Background(), "ABC123456")
	require.Error(t, err)
	assert.Equal(t, neo.KindAPI, neo.KindOf(err))
	assert.True(t, neo.IsTransient(err))
	assert.Equal(t, time.Minute, neo.RetryAfterHint(err), "open breaker advises waiting its timeout")

	fake.mu.Lock()
	assert.Equal(t, callsBefore, fake.fetchCalls)
	fake.mu.Unlock()
}

// TestBreaker_PersistentErrorsDoNotTrip tests that auth/config failures are
// not counted: the coordinator stops on those anyway
func TestBreaker_PersistentErrorsDoNotTrip(t *testing.T) {
	fake := newFakeAPI()
	fake.statusErr = &neo.Error{Kind: neo.KindAuth, Op: "fetch status", StatusCode: 403}
	api := breakerUnderTest(fake)

	for i := 0; i < 10; i++ {
		_, err := api.FetchStatus(context.Background(), "ABC123456")
		require.Error(t, err)
		// Still the original error, never the open-breaker replacement
		assert.Equal(t, neo.KindAuth, neo.KindOf(err))
	}
}

// TestBreaker_WritesBypass tests that commands flow even when reads have
// tripped the breaker open
func TestBreaker_WritesBypass(t *testing.T) {
	fake := newFakeAPI()
	fake.statusErr = &neo.Error{Kind: neo.KindOffline, Op: "fetch status"}
	api := breakerUnderTest(fake)

	for i := 0; i < 4; i++ {
		_, _ = api.FetchStatus(context.Background(), "ABC123456")
	}

	err := api.SendCommand(context.Background(), "ABC123456", neo.SetPower(true))
	require.NoError(t, err)
	assert.Len(t, fake.commands, 1)
}

// TestDefaultBreakerConfig tests the default settings
func TestDefaultBreakerConfig(t *testing.T) {
	cfg := DefaultBreakerConfig()
	assert.Equal(t, uint32(5), cfg.MaxConsecutiveFailures)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}
