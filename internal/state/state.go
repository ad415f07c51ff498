package state

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/angeloszaimis/endpoint-gateway/internal/endpoint"
	"github.com/angeloszaimis/endpoint-gateway/internal/metrics"
)

// ErrMetricsUnavailable is returned by Metrics when no registry is attached.
var ErrMetricsUnavailable = errors.New("metrics registry unavailable")

// State is the process-wide state shared by every handler: the endpoint
// store, the metrics registry and the source reloads read from.
type State struct {
	store   *endpoint.Store
	metrics *metrics.Registry
	source  endpoint.Source
	logger  *slog.Logger

	mutex sync.Mutex
	known map[string]struct{}
}

// New composes a State and keeps the snapshot gauges in step with the
// store. reg may be nil, in which case Metrics reports an error.
func New(store *endpoint.Store, reg *metrics.Registry, source endpoint.Source, logger *slog.Logger) *State {
	if logger == nil {
		logger = slog.Default()
	}

	s := &State{
		store:   store,
		metrics: reg,
		source:  source,
		logger:  logger,
		known:   make(map[string]struct{}),
	}

	store.Subscribe(s.published)
	return s
}

func (s *State) Store() *endpoint.Store {
	return s.store
}

// Snapshot returns the active endpoint snapshot.
func (s *State) Snapshot() *endpoint.Snapshot {
	return s.store.Snapshot()
}

func (s *State) Source() endpoint.Source {
	return s.source
}

// Metrics returns the registry, or ErrMetricsUnavailable.
func (s *State) Metrics() (*metrics.Registry, error) {
	if s.metrics == nil {
		return nil, ErrMetricsUnavailable
	}
	return s.metrics, nil
}

// Reload re-reads the configured source and publishes it. The attempt is
// counted whether or not it succeeds.
func (s *State) Reload(ctx context.Context) (uint64, error) {
	version, err := s.store.Reload(ctx, s.source)
	if s.metrics != nil {
		s.metrics.RecordReload(err == nil)
	}
	return version, err
}

func (s *State) published(snap *endpoint.Snapshot) {
	if s.metrics == nil {
		return
	}

	s.metrics.SetSnapshot(snap.Version(), snap.Len())

	s.mutex.Lock()
	defer s.mutex.Unlock()

	current := make(map[string]struct{}, snap.Len())
	for _, name := range snap.Names() {
		current[name] = struct{}{}
	}

	for name := range s.known {
		if _, ok := current[name]; !ok {
			s.metrics.ForgetEndpoint(name)
			s.logger.Debug("endpoint removed", slog.String("endpoint", name))
		}
	}
	s.known = current
}
