// Package state bundles the endpoint store and the metrics registry into
// the single value handlers are built from.
package state
