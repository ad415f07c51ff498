// Package watcher reloads the endpoint configuration when its file changes
// on disk. Bursts of events are debounced into one reload.
package watcher
