package health

import (
	"context"
	"sync"
	"time"

	"github.com/Payphone-Digital/account-service/pkg/logger"
)

// Status represents health check status
type Status int

const (
	StatusUnknown Status = iota
	StatusHealthy
	StatusUnhealthy
	StatusDegraded
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "HEALTHY"
	case StatusUnhealthy:
		return "UNHEALTHY"
	case StatusDegraded:
		return "DEGRADED"
	default:
		return "UNKNOWN"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckResult is the outcome of one dependency check.
type CheckResult struct {
	Name         string            `json:"name"`
	Status       Status            `json:"status"`
	Latency      time.Duration     `json:"latency"`
	LastCheck    time.Time         `json:"lastCheck"`
	Error        string            `json:"error,omitempty"`
	Details      map[string]string `json:"details,omitempty"`
	CheckCount   int               `json:"checkCount"`
	FailureCount int               `json:"failureCount"`
}

// Checker probes one dependency.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Report is the aggregate over every registered checker.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Healthy reports whether the service can take traffic. Degraded
// dependencies still count as serving.
func (r Report) Healthy() bool {
	return r.Status == StatusHealthy || r.Status == StatusDegraded
}

// Monitor runs registered checks on demand and, once started, on an
// interval so the latest results are cheap to read.
type Monitor struct {
	mu       sync.RWMutex
	checkers []Checker
	results  map[string]CheckResult
	interval time.Duration
	timeout  time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewMonitor(interval, timeout time.Duration, checkers ...Checker) *Monitor {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Monitor{
		checkers: checkers,
		results:  make(map[string]CheckResult),
		interval: interval,
		timeout:  timeout,
	}
}

func (m *Monitor) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
}

// Start runs the checks every interval until Stop or ctx ends.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil || m.interval <= 0 {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.CheckAll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CheckAll(ctx)
			}
		}
	}()
}

func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// CheckAll probes every dependency concurrently and returns the report.
func (m *Monitor) CheckAll(ctx context.Context) Report {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()

	fresh := make([]CheckResult, len(checkers))
	var wg sync.WaitGroup
	for i, checker := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			fresh[i] = checker.Check(checkCtx)
		}()
	}
	wg.Wait()

	m.mu.Lock()
	for _, result := range fresh {
		previous := m.results[result.Name]
		result.CheckCount = previous.CheckCount + 1
		result.FailureCount = previous.FailureCount
		if result.Status == StatusUnhealthy {
			result.FailureCount++
		}
		m.results[result.Name] = result
	}
	m.mu.Unlock()

	for _, result := range fresh {
		if result.Status != StatusHealthy {
			logger.WarnWithContext(ctx, "Health check failed").
				String("dependency", result.Name).
				String("status", result.Status.String()).
				Duration(result.Latency).
				String("error", result.Error).
				Log()
		}
	}

	return m.Latest()
}

// Latest returns the most recent results without probing.
func (m *Monitor) Latest() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	report := Report{Status: StatusHealthy, Checks: make(map[string]CheckResult, len(m.results))}
	if len(m.results) == 0 && len(m.checkers) > 0 {
		report.Status = StatusUnknown
	}
	for name, result := range m.results {
		report.Checks[name] = result
		switch {
		case result.Status == StatusUnhealthy || result.Status == StatusUnknown:
			report.Status = StatusUnhealthy
		case result.Status == StatusDegraded && report.Status == StatusHealthy:
			report.Status = StatusDegraded
		}
	}
	return report
}
