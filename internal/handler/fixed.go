package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/angeloszaimis/endpoint-gateway/internal/apierror"
	"github.com/angeloszaimis/endpoint-gateway/internal/metrics"
)

// Paths lists every route with a short description, as served by Help.
var Paths = map[string]string{
	"/":                "Show name, version and description",
	"/health":          "Get the health of the api",
	"/metrics":         "Prometheus metrics",
	"/config":          "Get config of api",
	"/reload":          "Reload the api's config",
	"/echo":            "Echo back json payload (debugging)",
	"/help":            "Show this help message",
	"/:endpoint":       "Show config for specific endpoint",
	"/:endpoint/*path": "Pass through any request to specified endpoint",
}

var errNotJSON = apierror.New(http.StatusBadRequest, "request body must be valid JSON")

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Healthy"})
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.info)
}

func (h *Handler) Help(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]map[string]string{"paths": Paths})
}

// Echo writes the request body back verbatim once it is known to be JSON.
func (h *Handler) Echo(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, err)
			return
		}
		writeError(w, apierror.Wrap(err, http.StatusBadRequest, "could not read request body"))
		return
	}

	if !json.Valid(body) {
		writeError(w, errNotJSON)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// Metrics renders into a buffer first so a failed render is still a clean
// 500 rather than a truncated exposition.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	reg, err := h.state.Metrics()
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := reg.Render(&buf); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", string(metrics.TextFormat))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// NotFound answers every unmatched route. The application error code is
// carried in the body so clients can tell it from a transport-level 404.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	apierror.ErrNotFound.WriteJSON(w)
}
