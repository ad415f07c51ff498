// Package forwarder relays a client request to the upstream of a named
// endpoint and streams the answer back.
//
// Forward resolves the endpoint against one snapshot, rewrites the request
// (hop-by-hop headers removed, fixed headers applied, forwarding headers
// added) and performs a single round trip under the endpoint's timeout.
// Redirects are relayed to the client rather than followed. Relay copies the
// response without buffering it whole.
//
// Failures are *Error values whose Kind is one of ErrUnknownEndpoint,
// ErrUpstreamUnreachable, ErrUpstreamTimeout, ErrCircuitOpen or
// ErrClientClosed.
package forwarder
