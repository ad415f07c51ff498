// Package healthcheck implements periodic reachability probing for the
// configured endpoints. It records whether each endpoint's target answers,
// for the endpoint_up gauge and the logs.
package healthcheck
