package endpoint

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Store holds the active Snapshot. Reads are a single atomic load; reloads
// are serialized and publish a fully built snapshot with one pointer swap.
type Store struct {
	current atomic.Pointer[Snapshot]
	logger  *slog.Logger

	// reloadMutex serializes writers; readers never take it.
	reloadMutex sync.Mutex
	observers   []func(*Snapshot)
}

// NewStore returns a store holding an empty version-0 snapshot.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{logger: logger}
	s.current.Store(newSnapshot(0, "", map[string]Config{}))
	return s
}

// Snapshot returns the active snapshot. Callers keep the returned pointer
// for the whole request so one request never mixes two versions.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Lookup resolves name against the active snapshot.
func (s *Store) Lookup(name string) (Config, bool) {
	return s.Snapshot().Lookup(name)
}

// Subscribe registers fn to run after every successful publish. Observers
// are called in version order while the reload lock is held, so they must
// not call Reload.
func (s *Store) Subscribe(fn func(*Snapshot)) {
	s.reloadMutex.Lock()
	defer s.reloadMutex.Unlock()
	s.observers = append(s.observers, fn)
}

// Reload fetches and validates a new document from src and publishes it.
// On any failure the active snapshot is left untouched and the error wraps
// ErrInvalidConfig.
func (s *Store) Reload(ctx context.Context, src Source) (uint64, error) {
	s.reloadMutex.Lock()
	defer s.reloadMutex.Unlock()

	data, format, err := src.Fetch(ctx)
	if err != nil {
		s.logger.Warn("endpoint config reload rejected",
			slog.String("source", src.String()),
			slog.Any("err", err))
		return 0, documentError(src.String(), err)
	}

	endpoints, err := Parse(src.String(), format, data)
	if err != nil {
		s.logger.Warn("endpoint config reload rejected",
			slog.String("source", src.String()),
			slog.Any("err", err))
		return 0, err
	}

	next := newSnapshot(s.current.Load().Version()+1, src.String(), endpoints)
	s.current.Store(next)

	s.logger.Info("endpoint config published",
		slog.Uint64("version", next.Version()),
		slog.Int("endpoints", next.Len()),
		slog.String("source", src.String()))

	for _, fn := range s.observers {
		fn(next)
	}

	return next.Version(), nil
}
