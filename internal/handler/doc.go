// Package handler implements the gateway's HTTP handlers: the fixed
// introspection routes, the endpoint config views, reload, the pass-through
// to upstreams and the catch-all 404.
//
// Handlers are plain methods; Wrap adds panic recovery, the handled-requests
// counter and the one log line every request produces.
package handler
