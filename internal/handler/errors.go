package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/angeloszaimis/endpoint-gateway/internal/apierror"
	"github.com/angeloszaimis/endpoint-gateway/internal/endpoint"
	"github.com/angeloszaimis/endpoint-gateway/internal/forwarder"
)

// toAPIError maps an error from the store, the forwarder or the state to
// the body and status written to the client.
func toAPIError(err error) *apierror.Error {
	var apiErr *apierror.Error
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, forwarder.ErrUnknownEndpoint):
		return apierror.ErrNotFound
	case errors.Is(err, forwarder.ErrUpstreamTimeout):
		return apierror.ErrGatewayTimeout
	case errors.Is(err, forwarder.ErrUpstreamUnreachable):
		return apierror.ErrBadGateway
	case errors.Is(err, forwarder.ErrCircuitOpen):
		return apierror.ErrServiceUnavailable
	case errors.Is(err, forwarder.ErrClientClosed):
		return apierror.ErrClientClosedRequest
	case errors.Is(err, endpoint.ErrInvalidConfig):
		return apierror.ErrBadRequest.WithDetails(err.Error())
	case errors.As(err, &tooLarge):
		return apierror.ErrRequestTooLarge
	default:
		return apierror.ErrInternalServer
	}
}

func writeError(w http.ResponseWriter, err error) {
	noteError(w, err)
	toAPIError(err).WriteJSON(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
