package database

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/storymine-hq/storymine-engine/pkg/config"
	"github.com/storymine-hq/storymine-engine/pkg/logging"
	"github.com/storymine-hq/storymine-engine/pkg/retry"
)

const (
	// connectAttemptTimeout bounds a single connection attempt.
	connectAttemptTimeout = 10 * time.Second
	// ReconnectInterval is how often a degraded process retries the
	// database connection in the background.
	ReconnectInterval = 30 * time.Second
)

// connectFunc produces a verified database handle. Injectable for tests.
type connectFunc func(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error)

// Manager owns the database connection state: the pool (when connected), the
// connected flag, and the attempt counter mutated by the bootstrap and the
// background reconnect loop. The service keeps serving without a database;
// callers must treat a nil pool as "degraded".
type Manager struct {
	cfg     *config.DatabaseConfig
	logger  *zap.Logger
	connect connectFunc

	mu       sync.RWMutex
	db       *DB
	attempts int
}

// NewManager creates a Manager for the given database configuration.
func NewManager(cfg *config.DatabaseConfig, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		logger:  logger,
		connect: NewConnection,
	}
}

// Connect attempts the bootstrap: up to 3 attempts, each bounded by a 10s
// timeout, with a 2s pause between attempts. Permanent failures (bad
// credentials, malformed config) abort the remaining attempts. On failure
// the manager stays in the degraded state and the error is returned so the
// caller can decide to start the reconnect loop.
func (m *Manager) Connect(ctx context.Context) error {
	err := retry.DoIfRetryable(ctx, retry.DatabaseBootstrapConfig(), func() error {
		return m.tryConnect(ctx)
	})
	if err != nil {
		m.logger.Warn("Database bootstrap failed, serving degraded",
			zap.Int("attempts", m.Attempts()),
			zap.String("error", logging.SanitizeError(err)))
	}
	return err
}

// StartReconnectLoop retries the connection at the given interval until it
// succeeds or ctx is cancelled. Once connected the loop exits; no further
// retries run for the life of the process.
func (m *Manager) StartReconnectLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if m.Connected() {
					return
				}
				if err := m.tryConnect(ctx); err == nil {
					m.logger.Info("Database reconnected",
						zap.Int("attempts", m.Attempts()))
					return
				}
			}
		}
	}()
}

// Connected reports whether a live pool is held.
func (m *Manager) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db != nil
}

// Get returns the database handle, or nil when degraded.
func (m *Manager) Get() *DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

// Attempts returns how many connection attempts have been made.
func (m *Manager) Attempts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attempts
}

// Close releases the pool if one is held.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db != nil {
		m.db.Close()
		m.db = nil
	}
}

func (m *Manager) tryConnect(ctx context.Context) error {
	m.mu.Lock()
	m.attempts++
	attempt := m.attempts
	m.mu.Unlock()

	attemptCtx, cancel := context.WithTimeout(ctx, connectAttemptTimeout)
	defer cancel()

	db, err := m.connect(attemptCtx, m.cfg)
	if err != nil {
		m.logger.Debug("Database connection attempt failed",
			zap.Int("attempt", attempt),
			zap.String("error", logging.SanitizeError(err)))
		return err
	}

	m.mu.Lock()
	if m.db != nil {
		// A concurrent attempt won; keep the existing pool.
		db.Close()
	} else {
		m.db = db
	}
	m.mu.Unlock()
	return nil
}
