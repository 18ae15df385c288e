package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"versegraph/application/ports"
	"versegraph/domain/config"
	domainservices "versegraph/domain/services"
	pkgerrors "versegraph/pkg/errors"
	"versegraph/pkg/observability"
)

func newTestManager(t *testing.T) *SessionManager {
	t.Helper()
	cfg := config.DefaultDomainConfig()
	m := NewSessionManager(
		newFakeReader(),
		domainservices.NewVisibilityService(cfg),
		cfg,
		zap.NewNop(),
		observability.NewNopMetrics(),
	)
	t.Cleanup(m.Shutdown)
	return m
}

func TestSessionManager_CreateAndGet(t *testing.T) {
	m := newTestManager(t)

	id := m.Create()
	require.NotEmpty(t, id)

	svc, err := m.Get(id)
	require.NoError(t, err)
	assert.NotNil(t, svc)

	// Same ID resolves to the same session state.
	again, err := m.Get(id)
	require.NoError(t, err)
	assert.Same(t, svc, again)
}

func TestSessionManager_SessionsAreIsolated(t *testing.T) {
	m := newTestManager(t)

	a, err := m.Get(m.Create())
	require.NoError(t, err)
	b, err := m.Get(m.Create())
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, 0, a.NodeCount())
	assert.Equal(t, 0, b.NodeCount())
}

func TestSessionManager_UnknownSession(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Get("no-such-session")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestSessionManager_UpdateConfigAppliesToNewSessionsOnly(t *testing.T) {
	reader := newFakeReader()
	reader.neighborhoods["Genesis-1"] = []ports.Relationship{
		rel(t, "Genesis-1-1", "Genesis-1-3"),
		rel(t, "Genesis-1-1", "Genesis-1-5"),
	}
	cfg := config.DefaultDomainConfig()
	m := NewSessionManager(
		reader,
		domainservices.NewVisibilityService(cfg),
		cfg,
		zap.NewNop(),
		observability.NewNopMetrics(),
	)
	t.Cleanup(m.Shutdown)

	before, err := m.Get(m.Create())
	require.NoError(t, err)

	m.UpdateConfig(func(dc *config.DomainConfig) {
		dc.MaxNodesPerSession = 1
	})

	after, err := m.Get(m.Create())
	require.NoError(t, err)

	// The live session keeps the limits it started with.
	_, err = before.LoadNeighborhood(context.Background(), key(t, "Genesis-1-1"), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, before.NodeCount())

	// The session created after the reload is bounded by the new limit.
	_, err = after.LoadNeighborhood(context.Background(), key(t, "Genesis-1-1"), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, after.NodeCount())

	// The caller's config object is never written through.
	assert.Equal(t, config.DefaultDomainConfig().MaxNodesPerSession, cfg.MaxNodesPerSession)
}

func TestSessionManager_UpdateConfigConcurrentWithLoads(t *testing.T) {
	reader := newFakeReader()
	reader.neighborhoods["Genesis-1"] = []ports.Relationship{
		rel(t, "Genesis-1-1", "Genesis-1-3"),
	}
	m := NewSessionManager(
		reader,
		domainservices.NewVisibilityService(config.DefaultDomainConfig()),
		config.DefaultDomainConfig(),
		zap.NewNop(),
		observability.NewNopMetrics(),
	)
	t.Cleanup(m.Shutdown)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			m.UpdateConfig(func(dc *config.DomainConfig) {
				dc.MaxNodesPerSession = 1000 + i
				dc.DefaultPageSize = 50 + i%50
			})
		}
	}()

	for i := 0; i < 20; i++ {
		svc, err := m.Get(m.Create())
		require.NoError(t, err)
		_, err = svc.LoadNeighborhood(context.Background(), key(t, "Genesis-1-1"), 0)
		require.NoError(t, err)
	}
	wg.Wait()
}

func TestSessionManager_Close(t *testing.T) {
	m := newTestManager(t)

	id := m.Create()
	m.Close(id)

	_, err := m.Get(id)
	assert.True(t, pkgerrors.IsNotFound(err))

	// Closing twice is harmless.
	m.Close(id)
}
