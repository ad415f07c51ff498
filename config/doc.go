// Package config loads the gateway process configuration from a YAML file
// and environment variables. It covers the listen address, logging, where the
// endpoint document lives and how it is watched, forwarding timeouts, circuit
// breaking and the background reachability probe.
//
// The endpoint name -> upstream mapping itself is not part of this package;
// it is loaded and hot-reloaded by internal/endpoint.
package config
