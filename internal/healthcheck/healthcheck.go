package healthcheck

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/endpoint-gateway/internal/endpoint"
)

const maxConcurrentProbes = 8

// SnapshotSource yields the endpoints to probe.
type SnapshotSource interface {
	Snapshot() *endpoint.Snapshot
}

// Recorder receives probe results.
type Recorder interface {
	SetEndpointUp(endpoint string, up bool)
}

// Prober periodically checks that every configured endpoint answers. An
// endpoint is up when its target returns any status below 500. Results are
// informational; forwarding never consults them.
type Prober struct {
	store    SnapshotSource
	recorder Recorder
	client   *http.Client
	interval time.Duration
	logger   *slog.Logger

	mutex  sync.Mutex
	status map[string]bool
}

func New(store SnapshotSource, recorder Recorder, interval, timeout time.Duration, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}

	return &Prober{
		store:    store,
		recorder: recorder,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		interval: interval,
		logger:   logger,
		status:   make(map[string]bool),
	}
}

// Run probes immediately and then on every tick until ctx is cancelled.
func (p *Prober) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.ProbeAll(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Endpoint probe stopped")
			return nil

		case <-ticker.C:
			p.ProbeAll(ctx)
		}
	}
}

// ProbeAll checks every endpoint of the active snapshot once.
func (p *Prober) ProbeAll(ctx context.Context) {
	snap := p.store.Snapshot()
	names := snap.Names()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProbes)

	for _, name := range names {
		cfg, _ := snap.Lookup(name)
		g.Go(func() error {
			p.update(name, cfg.Target().Redacted(), p.probe(ctx, cfg))
			return nil
		})
	}
	g.Wait()

	p.forgetMissing(names)
}

func (p *Prober) probe(ctx context.Context, cfg endpoint.Config) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.Target().String(), nil)
	if err != nil {
		return false
	}
	for name, values := range cfg.Headers() {
		req.Header[name] = values
	}

	res, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer res.Body.Close()
	io.Copy(io.Discard, io.LimitReader(res.Body, 4096))

	return res.StatusCode < http.StatusInternalServerError
}

func (p *Prober) update(name, target string, up bool) {
	p.mutex.Lock()
	previous, known := p.status[name]
	p.status[name] = up
	p.mutex.Unlock()

	if p.recorder != nil {
		p.recorder.SetEndpointUp(name, up)
	}

	if known && previous == up {
		return
	}
	if up {
		p.logger.Info("Endpoint is up",
			slog.String("endpoint", name),
			slog.String("target", target))
	} else {
		p.logger.Warn("Endpoint is down",
			slog.String("endpoint", name),
			slog.String("target", target))
	}
}

func (p *Prober) forgetMissing(names []string) {
	keep := make(map[string]struct{}, len(names))
	for _, name := range names {
		keep[name] = struct{}{}
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	for name := range p.status {
		if _, ok := keep[name]; !ok {
			delete(p.status, name)
		}
	}
}

// Status returns the latest probe result of every endpoint.
func (p *Prober) Status() map[string]bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	out := make(map[string]bool, len(p.status))
	for name, up := range p.status {
		out[name] = up
	}
	return out
}
