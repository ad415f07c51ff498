package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/angeloszaimis/endpoint-gateway/internal/apierror"
	"github.com/angeloszaimis/endpoint-gateway/internal/endpoint"
)

const redacted = "xxxxx"

// sensitiveHeaderParts marks fixed header values hidden from config views.
var sensitiveHeaderParts = []string{"authorization", "cookie", "api-key", "apikey", "token", "secret", "password"}

type endpointView struct {
	Name    string            `json:"name"`
	URL     string            `json:"url"`
	Timeout string            `json:"timeout,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Version uint64            `json:"version,omitempty"`
}

type snapshotView struct {
	Version   uint64         `json:"version"`
	LoadedAt  time.Time      `json:"loaded_at"`
	Source    string         `json:"source"`
	Endpoints []endpointView `json:"endpoints"`
}

type reloadView struct {
	Version uint64 `json:"version"`
}

func viewOf(cfg endpoint.Config) endpointView {
	view := endpointView{
		Name: cfg.Name(),
		URL:  cfg.Target().Redacted(),
	}
	if t := cfg.Timeout(); t > 0 {
		view.Timeout = t.String()
	}

	headers := cfg.Headers()
	if len(headers) > 0 {
		view.Headers = make(map[string]string, len(headers))
		for name := range headers {
			value := headers.Get(name)
			if isSensitive(name) {
				value = redacted
			}
			view.Headers[name] = value
		}
	}

	return view
}

func isSensitive(header string) bool {
	lower := strings.ToLower(header)
	for _, part := range sensitiveHeaderParts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}

// Config shows the whole active snapshot.
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	snap := h.state.Snapshot()

	view := snapshotView{
		Version:   snap.Version(),
		LoadedAt:  snap.LoadedAt(),
		Source:    snap.Source(),
		Endpoints: make([]endpointView, 0, snap.Len()),
	}
	for _, name := range snap.Names() {
		cfg, _ := snap.Lookup(name)
		view.Endpoints = append(view.Endpoints, viewOf(cfg))
	}

	writeJSON(w, http.StatusOK, view)
}

// EndpointConfig shows one endpoint of the active snapshot.
func (h *Handler) EndpointConfig(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("endpoint")
	annotate(w, slog.String("endpoint", name))

	snap := h.state.Snapshot()
	cfg, ok := snap.Lookup(name)
	if !ok {
		writeError(w, apierror.ErrNotFound)
		return
	}

	view := viewOf(cfg)
	view.Version = snap.Version()
	writeJSON(w, http.StatusOK, view)
}

// Reload re-reads the configured endpoints source. A rejected document
// leaves the active snapshot in place and is reported as 400.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	version, err := h.state.Reload(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	annotate(w, slog.Uint64("version", version))
	writeJSON(w, http.StatusOK, reloadView{Version: version})
}
