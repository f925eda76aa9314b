// Package health keeps a periodically refreshed view of the backend health.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"cropcure/internal/api"
	"cropcure/internal/logging"
	"cropcure/internal/metrics"
)

// Prober is the subset of the API client used for probes
type Prober interface {
	HealthCheck(ctx context.Context) api.Response[api.Health]
}

// Status is the last probe result
type Status struct {
	Checked     time.Time
	Reachable   bool
	ModelLoaded bool
	Labels      []string
	Error       string
}

// Ready reports whether the backend can classify
func (s Status) Ready() bool {
	return s.Reachable && s.ModelLoaded
}

// Summary is a one-line description for the UI
func (s Status) Summary() string {
	switch {
	case s.Checked.IsZero():
		return "Backend status unknown"
	case !s.Reachable:
		return "Classifier offline"
	case !s.ModelLoaded:
		return "Classifier online, model loading"
	default:
		return "Classifier online"
	}
}

// Monitor probes the backend on a cron schedule
type Monitor struct {
	prober  Prober
	metrics *metrics.Metrics
	timeout time.Duration

	cron   *cron.Cron
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	status Status
}

// NewMonitor creates a monitor. m may be nil.
func NewMonitor(prober Prober, m *metrics.Metrics) *Monitor {
	return &Monitor{
		prober:  prober,
		metrics: m,
		timeout: 10 * time.Second,
	}
}

// Start runs a first probe and schedules the rest with spec (e.g. "@every 1m").
// Probes are cancelled by Stop.
func (m *Monitor) Start(spec string) error {
	ctx, cancel := context.WithCancel(context.Background())

	c := cron.New()
	if _, err := c.AddFunc(spec, func() { m.Probe(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("invalid health schedule %q: %w", spec, err)
	}
	m.cron = c
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.Probe(ctx)
	}()
	c.Start()
	return nil
}

// Stop cancels running probes, stops the schedule and waits for every probe
// to return
func (m *Monitor) Stop() {
	if m.cron == nil {
		return
	}
	m.cancel()
	<-m.cron.Stop().Done()
	m.wg.Wait()
}

// Probe runs one health check and records the outcome
func (m *Monitor) Probe(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	res := m.prober.HealthCheck(ctx)
	next := Status{
		Checked:     time.Now(),
		Reachable:   res.Success,
		ModelLoaded: res.Success && res.Data.ModelLoaded,
		Labels:      res.Data.Labels,
		Error:       res.Error,
	}

	m.mu.Lock()
	prev := m.status
	m.status = next
	m.mu.Unlock()

	if prev.Checked.IsZero() || prev.Ready() != next.Ready() {
		if next.Ready() {
			logging.Infof("Backend health: %s", next.Summary())
		} else {
			logging.Warnf("Backend health: %s %s", next.Summary(), next.Error)
		}
	}

	if m.metrics != nil {
		if next.Ready() {
			m.metrics.BackendUp.Set(1)
		} else {
			m.metrics.BackendUp.Set(0)
		}
	}
	return next
}

// Status returns the last probe result
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}
