// Package apierror defines the structured JSON error body shared by every
// handler: {"error_code": 404, "message": "HTTP 404 Not Found"}, with an
// optional "details" field for diagnostics that are safe to show clients.
package apierror
