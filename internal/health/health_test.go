package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthy(ctx context.Context) CheckResult   { return CheckResult{Status: StatusHealthy} }
func unhealthy(ctx context.Context) CheckResult { return CheckResult{Status: StatusUnhealthy} }

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		critical Check
		optional Check
		want     Status
	}{
		{"all healthy", healthy, healthy, StatusHealthy},
		{"optional failing degrades", healthy, unhealthy, StatusDegraded},
		{"critical failing", unhealthy, healthy, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			c.RegisterFunc("scan", true, tt.critical)
			c.RegisterFunc("queue", false, tt.optional)

			assert.Equal(t, StatusUnknown, c.OverallStatus(), "nothing checked yet")
			c.Check(context.Background())
			assert.Equal(t, tt.want, c.OverallStatus())
		})
	}
}

func TestCheckTimeoutAndPanic(t *testing.T) {
	c := NewChecker()
	c.Register(&Component{
		Name:    "slow",
		Timeout: 10 * time.Millisecond,
		Check: func(ctx context.Context) CheckResult {
			<-ctx.Done()
			time.Sleep(5 * time.Millisecond)
			return CheckResult{Status: StatusHealthy}
		},
	})
	c.RegisterFunc("panics", false, func(ctx context.Context) CheckResult {
		panic("boom")
	})

	results := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, results["slow"].Status)
	assert.Equal(t, "check timed out", results["slow"].Message)
	assert.Equal(t, StatusUnhealthy, results["panics"].Status)
	assert.Equal(t, "boom", results["panics"].Error)

	got, ok := c.GetResult("panics")
	require.True(t, ok)
	assert.Equal(t, "check panicked", got.Message)
}

func TestCheckComponentAndUnregister(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("scan", true, healthy)

	res, ok := c.CheckComponent(context.Background(), "scan")
	require.True(t, ok)
	assert.Equal(t, StatusHealthy, res.Status)
	assert.False(t, res.LastChecked.IsZero())

	_, ok = c.CheckComponent(context.Background(), "missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"scan"}, c.Components())
	c.Unregister("scan")
	assert.Empty(t, c.Components())
}

func TestScanLoopCheck(t *testing.T) {
	var last time.Time
	check := ScanLoopCheck(func() time.Time { return last }, time.Second)

	assert.Equal(t, StatusUnhealthy, check(context.Background()).Status)

	last = time.Now()
	assert.Equal(t, StatusHealthy, check(context.Background()).Status)

	last = time.Now().Add(-2 * time.Second)
	res := check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Equal(t, "scan loop stalled", res.Message)
}

type fakeQueue struct{ n, c int }

func (q fakeQueue) Len() int { return q.n }
func (q fakeQueue) Cap() int { return q.c }

func TestQueueCheck(t *testing.T) {
	assert.Equal(t, StatusHealthy, QueueCheck(fakeQueue{3, 10})(context.Background()).Status)
	res := QueueCheck(fakeQueue{10, 10})(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Equal(t, 10, res.Details["depth"])
}

func TestCustomCheck(t *testing.T) {
	assert.Equal(t, StatusHealthy, CustomCheck(func() error { return nil })(context.Background()).Status)
	res := CustomCheck(func() error { return errors.New("no lines") })(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Equal(t, "no lines", res.Error)
}

func TestReadinessHandler(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("scan", true, healthy)
	h := c.ReadinessHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	c.SetReady(true)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	c.RegisterFunc("scan", true, unhealthy)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	c := NewChecker()
	c.SetReady(true)
	c.RegisterFunc("scan", true, healthy)
	c.RegisterFunc("queue", false, unhealthy)

	rec := httptest.NewRecorder()
	c.HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz?full=true", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.True(t, resp.Ready)
	assert.Len(t, resp.Components, 2)

	rec = httptest.NewRecorder()
	c.LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
