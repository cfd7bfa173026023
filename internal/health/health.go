package health

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wuwenbin0122/chatgate/internal/ollama"
)

type Status string

const (
	Healthy   Status = "healthy"
	Unhealthy Status = "unhealthy"
	Degraded  Status = "degraded"
)

// Report is the body served by /health.
type Report struct {
	Status   Status `json:"status"`
	Database Status `json:"database"`
	Ollama   Status `json:"ollama"`
}

// Probe checks one dependency. Implementations report failure as Unhealthy
// and never return an error.
type Probe interface {
	Probe(ctx context.Context) Status
}

type ProbeFunc func(ctx context.Context) Status

func (f ProbeFunc) Probe(ctx context.Context) Status { return f(ctx) }

// Aggregate reduces the two dependency states to the overall status.
func Aggregate(database, inference Status) Report {
	overall := Degraded
	if database == Healthy && inference == Healthy {
		overall = Healthy
	}
	return Report{Status: overall, Database: database, Ollama: inference}
}

type Checker struct {
	database  Probe
	inference Probe
	logger    *zap.Logger
}

func NewChecker(database, inference Probe, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{database: database, inference: inference, logger: logger}
}

// Check runs both probes concurrently and aggregates their results. One
// probe stalling or panicking does not stop the other from completing.
func (c *Checker) Check(ctx context.Context) Report {
	var dbStatus, inferenceStatus Status

	var g errgroup.Group
	g.Go(func() error {
		dbStatus = c.run(ctx, "database", c.database)
		return nil
	})
	g.Go(func() error {
		inferenceStatus = c.run(ctx, "ollama", c.inference)
		return nil
	})
	_ = g.Wait()

	return Aggregate(dbStatus, inferenceStatus)
}

func (c *Checker) run(ctx context.Context, name string, probe Probe) (status Status) {
	if probe == nil {
		return Unhealthy
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("health probe panicked", zap.String("dependency", name), zap.Any("panic", r))
			status = Unhealthy
		}
	}()

	status = probe.Probe(ctx)
	if status != Healthy {
		status = Unhealthy
	}
	return status
}

var errNoPool = errors.New("health: no database pool")

type Pinger interface {
	Probe(ctx context.Context) error
}

// DatabaseProbe adapts a database handle. A nil pinger means no pool was
// established and always reports Unhealthy.
func DatabaseProbe(p Pinger, timeout time.Duration, logger *zap.Logger) Probe {
	return errorProbe("database", timeout, logger, func(ctx context.Context) error {
		if p == nil {
			return errNoPool
		}
		return p.Probe(ctx)
	})
}

type ModelLister interface {
	ListModels(ctx context.Context) ([]ollama.Model, error)
}

// InferenceProbe adapts the inference server's model listing call.
func InferenceProbe(l ModelLister, timeout time.Duration, logger *zap.Logger) Probe {
	return errorProbe("ollama", timeout, logger, func(ctx context.Context) error {
		_, err := l.ListModels(ctx)
		return err
	})
}

func errorProbe(name string, timeout time.Duration, logger *zap.Logger, check func(context.Context) error) Probe {
	if logger == nil {
		logger = zap.NewNop()
	}
	return ProbeFunc(func(ctx context.Context) Status {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		if err := check(ctx); err != nil {
			logger.Debug("dependency unhealthy", zap.String("dependency", name), zap.Error(err))
			return Unhealthy
		}
		return Healthy
	})
}
