package main

import (
	"net/http"

	"github.com/angeloszaimis/endpoint-gateway/internal/handler"
)

// setupRouter registers every route. Static paths win over the {endpoint}
// wildcard by pattern precedence; "/" catches whatever is left, including
// known paths with the wrong method. Pass-through requests are matched on
// the escaped path before the mux, which would otherwise clean or redirect
// them.
func setupRouter(h *handler.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /{$}", h.Wrap(handler.FnRoot, h.Root))
	mux.Handle("GET /health", h.Wrap(handler.FnHealth, h.Health))
	mux.Handle("GET /help", h.Wrap(handler.FnHelp, h.Help))
	mux.Handle("POST /echo", h.Wrap(handler.FnEcho, h.Echo))
	mux.Handle("GET /metrics", h.Wrap(handler.FnMetrics, h.Metrics))
	mux.Handle("GET /config", h.Wrap(handler.FnConfig, h.Config))
	mux.Handle("POST /reload", h.Wrap(handler.FnReload, h.Reload))

	endpointConfig := h.Wrap(handler.FnEndpointConfig, h.EndpointConfig)
	notFound := h.Wrap(handler.FnNotFound, h.NotFound)

	mux.Handle("/{endpoint}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			endpointConfig.ServeHTTP(w, r)
			return
		}
		notFound.ServeHTTP(w, r)
	}))
	mux.Handle("/", notFound)

	passthrough := h.Wrap(handler.FnPassthrough, h.Passthrough)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := handler.SplitEndpointPath(r.URL.EscapedPath()); ok {
			passthrough.ServeHTTP(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	})
}
