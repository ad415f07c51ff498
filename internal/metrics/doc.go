// Package metrics provides the gateway's process-wide Prometheus metrics.
//
// A Registry owns a private prometheus.Registry with the forwarding
// counters and latency histogram (labeled by endpoint name and outcome),
// per-handler response counters, configuration reload counters and
// snapshot gauges, and per-endpoint reachability and circuit breaker
// gauges. All recording methods are safe for concurrent use.
//
// Render writes the registry in the Prometheus text exposition format and
// reports gathering failures instead of emitting a partial document:
//
//	reg := metrics.NewRegistry()
//	reg.RecordForward("users", metrics.OutcomeSuccess, 120*time.Millisecond)
//
//	var buf bytes.Buffer
//	if err := reg.Render(&buf); err != nil {
//		// surface as an internal error
//	}
package metrics
