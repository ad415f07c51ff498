package circuitbreaker

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrOpen is returned by Execute while an endpoint's breaker rejects calls.
var ErrOpen = errors.New("circuit breaker is open")

// StateChangeFunc observes breaker transitions for an endpoint.
type StateChangeFunc func(endpoint string, state gobreaker.State)

type entry struct {
	target  string
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

// Registry keeps one breaker per endpoint name. A breaker is replaced when
// the endpoint's target changes and dropped when the endpoint disappears.
type Registry struct {
	mutex         sync.RWMutex
	breakers      map[string]*entry
	threshold     uint32
	timeout       time.Duration
	onStateChange StateChangeFunc
}

// NewRegistry creates a registry whose breakers open after threshold
// consecutive failures and probe again after timeout.
func NewRegistry(threshold int, timeout time.Duration, onStateChange StateChangeFunc) *Registry {
	return &Registry{
		breakers:      make(map[string]*entry),
		threshold:     uint32(threshold),
		timeout:       timeout,
		onStateChange: onStateChange,
	}
}

// Execute runs fn through the breaker of endpoint. Client cancellations do
// not count as failures.
func (r *Registry) Execute(endpoint, target string, fn func() (*http.Response, error)) (*http.Response, error) {
	res, err := r.getBreaker(endpoint, target).Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrOpen
	}
	return res, err
}

func (r *Registry) getBreaker(endpoint, target string) *gobreaker.CircuitBreaker[*http.Response] {
	r.mutex.RLock()
	e, exists := r.breakers[endpoint]
	r.mutex.RUnlock()

	if exists && e.target == target {
		return e.breaker
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if e, exists = r.breakers[endpoint]; exists && e.target == target {
		return e.breaker
	}

	e = &entry{target: target, breaker: r.newBreaker(endpoint)}
	r.breakers[endpoint] = e
	return e.breaker
}

func (r *Registry) newBreaker(endpoint string) *gobreaker.CircuitBreaker[*http.Response] {
	threshold := r.threshold
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        endpoint,
		MaxRequests: 1,
		Timeout:     r.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			if r.onStateChange != nil {
				r.onStateChange(name, to)
			}
		},
	})
}

// Prune drops the breakers of endpoints not listed in keep.
func (r *Registry) Prune(keep []string) []string {
	wanted := make(map[string]struct{}, len(keep))
	for _, name := range keep {
		wanted[name] = struct{}{}
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	var removed []string
	for name := range r.breakers {
		if _, ok := wanted[name]; !ok {
			delete(r.breakers, name)
			removed = append(removed, name)
		}
	}
	return removed
}

// Stats returns the state of every known breaker.
func (r *Registry) Stats() map[string]gobreaker.State {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make(map[string]gobreaker.State, len(r.breakers))
	for name, e := range r.breakers {
		stats[name] = e.breaker.State()
	}
	return stats
}
