package circuitbreaker

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"herald/pkg/metrics"
)

type Config struct {
	Name          string
	MaxRequests   uint32
	Interval      time.Duration
	Timeout       time.Duration
	ReadyToTrip   func(counts gobreaker.Counts) bool
	OnStateChange func(name string, from, to gobreaker.State)
}

func DefaultConfig(name string) Config {
	return Config{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.5
		},
	}
}

// Wrapper guards a downstream call with a circuit breaker and keeps the
// breaker-state gauge current.
type Wrapper struct {
	cb *gobreaker.CircuitBreaker
}

func NewWrapper(cfg Config) *Wrapper {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
	}

	if cfg.ReadyToTrip != nil {
		settings.ReadyToTrip = cfg.ReadyToTrip
	}

	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		metrics.SetCircuitBreakerState(name, to)
		if cfg.OnStateChange != nil {
			cfg.OnStateChange(name, from, to)
		}
	}

	cb := gobreaker.NewCircuitBreaker(settings)
	metrics.SetCircuitBreakerState(cfg.Name, cb.State())

	return &Wrapper{cb: cb}
}

func (w *Wrapper) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return w.cb.Execute(fn)
}

func (w *Wrapper) ExecuteWithContext(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return w.cb.Execute(fn)
}

func (w *Wrapper) State() gobreaker.State {
	return w.cb.State()
}
