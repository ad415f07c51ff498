package endpoint

import (
	"net/http"
	"net/url"
	"sort"
	"time"
)

// Config describes one named upstream target. Values are immutable once
// built; accessors hand out copies so callers cannot reach into a published
// snapshot.
type Config struct {
	name    string
	target  *url.URL
	headers http.Header
	timeout time.Duration
}

// NewConfig builds a Config. The target and headers are copied.
func NewConfig(name string, target *url.URL, headers http.Header, timeout time.Duration) Config {
	u := *target

	return Config{
		name:    name,
		target:  &u,
		headers: headers.Clone(),
		timeout: timeout,
	}
}

// Name returns the endpoint name.
func (c Config) Name() string {
	return c.name
}

// Target returns a copy of the upstream base URL.
func (c Config) Target() *url.URL {
	u := *c.target
	return &u
}

// Headers returns a copy of the fixed headers added to every forwarded request.
func (c Config) Headers() http.Header {
	return c.headers.Clone()
}

// Timeout returns the per-endpoint timeout, zero meaning the process default.
func (c Config) Timeout() time.Duration {
	return c.timeout
}

// Snapshot is an immutable, versioned view of every configured endpoint.
type Snapshot struct {
	version   uint64
	loadedAt  time.Time
	source    string
	endpoints map[string]Config
}

func newSnapshot(version uint64, source string, endpoints map[string]Config) *Snapshot {
	return &Snapshot{
		version:   version,
		loadedAt:  time.Now(),
		source:    source,
		endpoints: endpoints,
	}
}

// Version is the generation number; it increases by one per successful reload.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// LoadedAt reports when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// Source describes where the snapshot was loaded from.
func (s *Snapshot) Source() string {
	return s.source
}

// Lookup resolves a name with an exact, case-sensitive match.
func (s *Snapshot) Lookup(name string) (Config, bool) {
	cfg, ok := s.endpoints[name]
	return cfg, ok
}

// Len returns the number of endpoints.
func (s *Snapshot) Len() int {
	return len(s.endpoints)
}

// Names returns the endpoint names in lexical order.
func (s *Snapshot) Names() []string {
	names := make([]string, 0, len(s.endpoints))
	for name := range s.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
