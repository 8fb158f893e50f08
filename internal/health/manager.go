package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager runs registered checkers on an interval and caches results so
// probe endpoints never block on a slow dependency.
type Manager struct {
	checkers    map[string]Checker
	lastResults map[string]CheckResult
	interval    time.Duration
	started     bool
	stopCh      chan struct{}
	logger      *zap.Logger
	mu          sync.RWMutex
}

// NewManager creates a health manager with the given check interval.
func NewManager(interval time.Duration, logger *zap.Logger) *Manager {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Manager{
		checkers:    make(map[string]Checker),
		lastResults: make(map[string]CheckResult),
		interval:    interval,
		stopCh:      make(chan struct{}),
		logger:      logger,
	}
}

// RegisterChecker adds a health check. Names must be unique.
func (m *Manager) RegisterChecker(c Checker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := c.Name()
	if name == "" {
		return fmt.Errorf("checker name cannot be empty")
	}
	if _, exists := m.checkers[name]; exists {
		return fmt.Errorf("checker %s already registered", name)
	}
	m.checkers[name] = c
	return nil
}

// Start runs an initial pass and then checks on the configured interval.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	m.RunChecks(ctx)
	go m.loop(ctx)
}

// Stop ends the periodic check loop.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return
	}
	m.started = false
	close(m.stopCh)
}

func (m *Manager) loop(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.RunChecks(ctx)
		}
	}
}

// RunChecks executes every registered checker once and caches the results.
func (m *Manager) RunChecks(ctx context.Context) {
	m.mu.RLock()
	checkers := make([]Checker, 0, len(m.checkers))
	for _, c := range m.checkers {
		checkers = append(checkers, c)
	}
	m.mu.RUnlock()

	for _, c := range checkers {
		checkCtx, cancel := context.WithTimeout(ctx, c.Timeout())
		result := c.Check(checkCtx)
		cancel()

		if result.Status == StatusUnhealthy {
			m.logger.Warn("Health check failed",
				zap.String("component", c.Name()),
				zap.String("error", result.Error),
			)
		}

		m.mu.Lock()
		m.lastResults[c.Name()] = result
		m.mu.Unlock()
	}
}

// Overall summarizes the latest cached results. The worker is ready when no
// critical check is unhealthy; non-critical failures degrade the status.
func (m *Manager) Overall() OverallHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	overall := OverallHealth{
		Status:    StatusHealthy,
		Ready:     true,
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, len(m.lastResults)),
	}
	for name, r := range m.lastResults {
		overall.Checks[name] = r
		switch r.Status {
		case StatusUnhealthy:
			if r.Critical {
				overall.Status = StatusUnhealthy
				overall.Ready = false
			} else if overall.Status != StatusUnhealthy {
				overall.Status = StatusDegraded
			}
		case StatusDegraded:
			if overall.Status == StatusHealthy {
				overall.Status = StatusDegraded
			}
		}
	}
	return overall
}

// IsReady reports whether the worker can accept tasks.
func (m *Manager) IsReady() bool {
	return m.Overall().Ready
}
