package services

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"versegraph/application/ports"
	"versegraph/domain/config"
	domainservices "versegraph/domain/services"
	pkgerrors "versegraph/pkg/errors"
	"versegraph/pkg/observability"
)

// SessionManager owns one GraphSyncService per browsing session. Sessions
// are created on demand, never shared across users of the process, and
// evicted after the configured idle timeout.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*session

	scripture  ports.ScriptureReader
	visibility *domainservices.VisibilityService
	config     *config.DomainConfig
	logger     *zap.Logger
	metrics    *observability.Metrics

	stopCh chan struct{}
}

type session struct {
	sync       *GraphSyncService
	lastAccess time.Time
}

// NewSessionManager creates a session manager and starts its idle reaper
func NewSessionManager(
	scripture ports.ScriptureReader,
	visibility *domainservices.VisibilityService,
	cfg *config.DomainConfig,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *SessionManager {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	m := &SessionManager{
		sessions:   make(map[string]*session),
		scripture:  scripture,
		visibility: visibility,
		config:     cfg,
		logger:     logger,
		metrics:    metrics,
		stopCh:     make(chan struct{}),
	}

	go m.reapIdle()

	return m
}

// Create opens a new session and returns its ID. Each session gets its own
// seeded jitter source so layout is reproducible within the session but
// rings don't align across sessions, and its own config snapshot so a
// limits reload never touches a live session.
func (m *SessionManager) Create() string {
	id := uuid.New().String()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	jitter := func() float64 { return rng.Float64()*2 - 1 }

	m.mu.Lock()
	cfg := *m.config
	layout := domainservices.NewCircularLayout(&cfg, jitter)
	svc := NewGraphSyncService(m.scripture, layout, m.visibility, &cfg, m.logger, m.metrics)
	m.sessions[id] = &session{sync: svc, lastAccess: time.Now()}
	m.mu.Unlock()

	m.metrics.ActiveSessions.Inc()
	m.logger.Info("graph session created", zap.String("sessionID", id))

	return id
}

// Get returns the sync service for a session, refreshing its idle clock
func (m *SessionManager) Get(id string) (*GraphSyncService, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("graph session")
	}
	sess.lastAccess = time.Now()
	return sess.sync, nil
}

// UpdateConfig applies a config change for sessions created from now on.
// The current config is copied, mutated, and swapped whole; live sessions
// keep the snapshot they were created with.
func (m *SessionManager) UpdateConfig(mutate func(*config.DomainConfig)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := *m.config
	mutate(&next)
	m.config = &next
}

// Close removes a session
func (m *SessionManager) Close(id string) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		m.metrics.ActiveSessions.Dec()
		m.logger.Info("graph session closed", zap.String("sessionID", id))
	}
}

// Shutdown stops the idle reaper
func (m *SessionManager) Shutdown() {
	close(m.stopCh)
}

// reapIdle evicts sessions untouched for longer than the idle timeout
func (m *SessionManager) reapIdle() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.mu.Lock()
			cutoff := time.Now().Add(-m.config.SessionIdleTimeout)
			for id, sess := range m.sessions {
				if sess.lastAccess.Before(cutoff) {
					delete(m.sessions, id)
					m.metrics.ActiveSessions.Dec()
					m.logger.Info("idle graph session evicted", zap.String("sessionID", id))
				}
			}
			m.mu.Unlock()
		}
	}
}
