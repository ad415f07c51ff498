package handler

import (
	"log/slog"

	"github.com/angeloszaimis/endpoint-gateway/internal/forwarder"
	"github.com/angeloszaimis/endpoint-gateway/internal/state"
)

// Handler names, used as the fn field of request logs and the fn label of
// the handled-requests counter.
const (
	FnHealth         = "health"
	FnRoot           = "root"
	FnEcho           = "echo"
	FnHelp           = "help"
	FnMetrics        = "metrics"
	FnConfig         = "config"
	FnEndpointConfig = "endpoint_config"
	FnReload         = "reload"
	FnPassthrough    = "passthrough"
	FnNotFound       = "handler_404"
)

const defaultMaxBodyBytes = 1 << 20

// BuildInfo is reported by the root handler.
type BuildInfo struct {
	Version     string `json:"version"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Options struct {
	Info         BuildInfo
	MaxBodyBytes int64
}

// Handler serves the fixed introspection routes and the pass-through.
type Handler struct {
	logger       *slog.Logger
	state        *state.State
	forwarder    *forwarder.Forwarder
	info         BuildInfo
	maxBodyBytes int64
}

func New(logger *slog.Logger, st *state.State, fwd *forwarder.Forwarder, opts Options) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}

	return &Handler{
		logger:       logger,
		state:        st,
		forwarder:    fwd,
		info:         opts.Info,
		maxBodyBytes: opts.MaxBodyBytes,
	}
}
