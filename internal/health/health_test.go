package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubChecker struct {
	name     string
	status   CheckStatus
	critical bool
}

func (s *stubChecker) Name() string           { return s.name }
func (s *stubChecker) IsCritical() bool       { return s.critical }
func (s *stubChecker) Timeout() time.Duration { return time.Second }
func (s *stubChecker) Check(ctx context.Context) CheckResult {
	return CheckResult{
		Component: s.name,
		Status:    s.status,
		Critical:  s.critical,
		Timestamp: time.Now(),
	}
}

func TestManagerOverall(t *testing.T) {
	tests := []struct {
		name       string
		checkers   []*stubChecker
		wantStatus CheckStatus
		wantReady  bool
	}{
		{
			name: "all healthy",
			checkers: []*stubChecker{
				{name: "a", status: StatusHealthy, critical: true},
				{name: "b", status: StatusHealthy},
			},
			wantStatus: StatusHealthy,
			wantReady:  true,
		},
		{
			name: "critical failure blocks readiness",
			checkers: []*stubChecker{
				{name: "a", status: StatusUnhealthy, critical: true},
			},
			wantStatus: StatusUnhealthy,
			wantReady:  false,
		},
		{
			name: "non-critical failure only degrades",
			checkers: []*stubChecker{
				{name: "a", status: StatusHealthy, critical: true},
				{name: "b", status: StatusUnhealthy},
			},
			wantStatus: StatusDegraded,
			wantReady:  true,
		},
		{
			name: "degraded check degrades overall",
			checkers: []*stubChecker{
				{name: "a", status: StatusDegraded, critical: true},
			},
			wantStatus: StatusDegraded,
			wantReady:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(time.Minute, zaptest.NewLogger(t))
			for _, c := range tt.checkers {
				require.NoError(t, m.RegisterChecker(c))
			}
			m.RunChecks(context.Background())

			overall := m.Overall()
			assert.Equal(t, tt.wantStatus, overall.Status)
			assert.Equal(t, tt.wantReady, overall.Ready)
			assert.Len(t, overall.Checks, len(tt.checkers))
		})
	}
}

func TestManagerRejectsDuplicateChecker(t *testing.T) {
	m := NewManager(time.Minute, zaptest.NewLogger(t))
	require.NoError(t, m.RegisterChecker(&stubChecker{name: "a"}))
	assert.Error(t, m.RegisterChecker(&stubChecker{name: "a"}))
}

func TestDirectoryChecker(t *testing.T) {
	dir := t.TempDir()

	ok := NewDirectoryChecker("input", dir, true).Check(context.Background())
	assert.Equal(t, StatusHealthy, ok.Status)

	missing := NewDirectoryChecker("input", dir+"/nope", true).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, missing.Status)
}

func TestHandlerReadiness(t *testing.T) {
	m := NewManager(time.Minute, zaptest.NewLogger(t))
	require.NoError(t, m.RegisterChecker(&stubChecker{name: "a", status: StatusUnhealthy, critical: true}))
	m.RunChecks(context.Background())

	mux := http.NewServeMux()
	NewHandler(m, zaptest.NewLogger(t)).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unhealthy"`)
}
