package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wuwenbin0122/chatgate/internal/ollama"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Probe(ctx context.Context) error { return f.err }

type fakeLister struct {
	err   error
	block bool
}

func (f fakeLister) ListModels(ctx context.Context) ([]ollama.Model, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return nil, f.err
}

func TestAggregate(t *testing.T) {
	cases := []struct {
		database, inference Status
		want                Status
	}{
		{Healthy, Healthy, Healthy},
		{Unhealthy, Healthy, Degraded},
		{Healthy, Unhealthy, Degraded},
		{Unhealthy, Unhealthy, Degraded},
	}

	for _, tc := range cases {
		report := Aggregate(tc.database, tc.inference)
		assert.Equal(t, tc.want, report.Status)
		assert.Equal(t, tc.database, report.Database)
		assert.Equal(t, tc.inference, report.Ollama)
	}
}

func TestCheckerDatabaseFailsInferenceSucceeds(t *testing.T) {
	checker := NewChecker(
		DatabaseProbe(fakePinger{err: errors.New("connection reset")}, time.Second, nil),
		InferenceProbe(fakeLister{}, time.Second, nil),
		nil,
	)

	report := checker.Check(context.Background())
	assert.Equal(t, Report{Status: Degraded, Database: Unhealthy, Ollama: Healthy}, report)
}

func TestCheckerBothHealthy(t *testing.T) {
	checker := NewChecker(
		DatabaseProbe(fakePinger{}, time.Second, nil),
		InferenceProbe(fakeLister{}, time.Second, nil),
		nil,
	)

	assert.Equal(t, Report{Status: Healthy, Database: Healthy, Ollama: Healthy}, checker.Check(context.Background()))
}

func TestCheckerBothFail(t *testing.T) {
	checker := NewChecker(
		DatabaseProbe(nil, time.Second, nil),
		InferenceProbe(fakeLister{err: errors.New("connection refused")}, time.Second, nil),
		nil,
	)

	assert.Equal(t, Report{Status: Degraded, Database: Unhealthy, Ollama: Unhealthy}, checker.Check(context.Background()))
}

func TestCheckerInferenceTimeoutDoesNotBlockDatabase(t *testing.T) {
	checker := NewChecker(
		DatabaseProbe(fakePinger{}, time.Second, nil),
		InferenceProbe(fakeLister{block: true}, 20*time.Millisecond, nil),
		nil,
	)

	start := time.Now()
	report := checker.Check(context.Background())

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, Report{Status: Degraded, Database: Healthy, Ollama: Unhealthy}, report)
}

func TestCheckerRecoversPanickingProbe(t *testing.T) {
	checker := NewChecker(
		ProbeFunc(func(ctx context.Context) Status { panic("boom") }),
		ProbeFunc(func(ctx context.Context) Status { return Healthy }),
		nil,
	)

	assert.Equal(t, Report{Status: Degraded, Database: Unhealthy, Ollama: Healthy}, checker.Check(context.Background()))
}

func TestInferenceProbeAgainstServer(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer server.Close()

	probe := InferenceProbe(ollama.NewClient(ollama.Config{BaseURL: server.URL}), time.Second, nil)
	assert.Equal(t, Healthy, probe.Probe(context.Background()))

	status.Store(http.StatusInternalServerError)
	assert.Equal(t, Unhealthy, probe.Probe(context.Background()))
}
