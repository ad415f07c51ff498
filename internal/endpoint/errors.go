package endpoint

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig is matched by every error a rejected reload returns.
var ErrInvalidConfig = errors.New("invalid endpoint configuration")

// ConfigError reports why an endpoint document was rejected. Messages never
// carry header values or URL credentials.
type ConfigError struct {
	Source   string
	Endpoint string
	Index    int
	Field    string
	Err      error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("endpoint config")
	if e.Source != "" {
		fmt.Fprintf(&b, " %q", e.Source)
	}
	if e.Index >= 0 {
		fmt.Fprintf(&b, ": entry %d", e.Index)
	}
	if e.Endpoint != "" {
		fmt.Fprintf(&b, " (%s)", e.Endpoint)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": %s", e.Field)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ConfigError) Unwrap() []error {
	return []error{ErrInvalidConfig, e.Err}
}

func documentError(source string, err error) *ConfigError {
	return &ConfigError{Source: source, Index: -1, Err: err}
}
