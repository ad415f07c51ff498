package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/angeloszaimis/endpoint-gateway/internal/apierror"
)

// Passthrough forwards /{endpoint}/{path...} to the endpoint's upstream and
// relays the answer. Errors before the upstream responds become structured
// error bodies; errors while relaying can only be logged.
func (h *Handler) Passthrough(w http.ResponseWriter, r *http.Request) {
	name, rest, ok := SplitEndpointPath(r.URL.EscapedPath())
	if !ok {
		writeError(w, apierror.ErrNotFound)
		return
	}
	annotate(w, slog.String("endpoint", name))

	res, err := h.forwarder.Forward(r, name, rest)
	if err != nil {
		writeError(w, err)
		return
	}
	defer res.Close()

	annotate(w, slog.Uint64("config_version", res.Version))

	n, err := h.forwarder.Relay(w, res)
	annotate(w, slog.Int64("bytes", n))
	if err != nil {
		noteError(w, err)
	}
}

// SplitEndpointPath splits an escaped request path shaped
// /{endpoint}/{rest...} into the decoded endpoint name and the still escaped
// remainder, leading slash included. Paths with dot segments do not split.
func SplitEndpointPath(escaped string) (name, rest string, ok bool) {
	first, tail, found := strings.Cut(strings.TrimPrefix(escaped, "/"), "/")
	if !strings.HasPrefix(escaped, "/") || !found || first == "" {
		return "", "", false
	}

	name, err := url.PathUnescape(first)
	if err != nil || name == "" {
		return "", "", false
	}

	for _, seg := range strings.Split(tail, "/") {
		decoded, err := url.PathUnescape(seg)
		if err != nil || decoded == "." || decoded == ".." {
			return "", "", false
		}
	}

	return name, "/" + tail, true
}
