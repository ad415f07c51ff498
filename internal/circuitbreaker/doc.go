// Package circuitbreaker guards upstream calls with one circuit breaker per
// endpoint, built on github.com/sony/gobreaker/v2.
//
// A breaker opens after a configured number of consecutive failures
// (unreachable or timed-out upstreams), rejects calls with ErrOpen until the
// reset timeout elapses, then lets a single probe call through in the
// half-open state. Calls abandoned by the client are not failures.
//
// Usage:
//
//	registry := circuitbreaker.NewRegistry(5, 30*time.Second, nil)
//	res, err := registry.Execute("users", "http://users.internal", func() (*http.Response, error) {
//		return transport.RoundTrip(req)
//	})
//	if errors.Is(err, circuitbreaker.ErrOpen) {
//		// fail fast
//	}
package circuitbreaker
