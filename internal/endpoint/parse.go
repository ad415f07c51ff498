package endpoint

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

// ReservedNames cannot be used as endpoint names because the fixed routes
// already own them.
var ReservedNames = []string{"config", "echo", "health", "help", "metrics", "reload"}

var errEmptyDocument = errors.New("document is empty")

var (
	namePattern       = regexp.MustCompile(`^[A-Za-z0-9._~-]+$`)
	headerNamePattern = regexp.MustCompile("^[!#$%&'*+.^_`|~0-9A-Za-z-]+$")
)

type rawEndpoint struct {
	Name    string            `mapstructure:"name" json:"name"`
	URL     string            `mapstructure:"url" json:"url"`
	Timeout time.Duration     `mapstructure:"timeout" json:"timeout"`
	Headers map[string]string `mapstructure:"headers" json:"headers"`
}

type rawDocument struct {
	Endpoints []rawEndpoint `mapstructure:"endpoints"`
}

// Parse decodes an endpoint document and validates every entry. format is
// one of yaml, yml, json or toml; an empty format means yaml. The returned
// map is complete or the call fails: no entry of a rejected document is kept.
func Parse(source, format string, data []byte) (map[string]Config, error) {
	if format == "" {
		format = "yaml"
	}

	// A truncated file seen mid-write must not wipe every endpoint.
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, documentError(source, errEmptyDocument)
	}

	v := viper.New()
	v.SetConfigType(format)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, documentError(source, err)
	}

	var doc rawDocument
	if err := v.Unmarshal(&doc); err != nil {
		return nil, documentError(source, err)
	}

	endpoints := make(map[string]Config, len(doc.Endpoints))
	firstSeen := make(map[string]int, len(doc.Endpoints))

	for i, raw := range doc.Endpoints {
		if err := raw.validate(); err != nil {
			return nil, &ConfigError{Source: source, Endpoint: raw.Name, Index: i, Err: err}
		}

		if prev, dup := firstSeen[raw.Name]; dup {
			return nil, &ConfigError{
				Source:   source,
				Endpoint: raw.Name,
				Index:    i,
				Field:    "name",
				Err:      fmt.Errorf("duplicate endpoint name, first defined in entry %d", prev),
			}
		}
		firstSeen[raw.Name] = i

		endpoints[raw.Name] = raw.build()
	}

	return endpoints, nil
}

// FormatFromPath maps a file name or URL path to a document format.
func FormatFromPath(p string) string {
	switch strings.ToLower(strings.TrimPrefix(path.Ext(p), ".")) {
	case "json":
		return "json"
	case "toml":
		return "toml"
	default:
		return "yaml"
	}
}

func (r rawEndpoint) validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name,
			validation.Required,
			validation.Match(namePattern).Error("must contain only letters, digits, '.', '_', '~' or '-'"),
			validation.NotIn(toInterfaces(ReservedNames)...).Error("is reserved for a built-in route"),
		),
		validation.Field(&r.URL,
			validation.Required,
			validation.By(validateTargetURL),
		),
		validation.Field(&r.Timeout,
			validation.Min(time.Duration(0)).Error("must not be negative"),
		),
		validation.Field(&r.Headers,
			validation.By(validateHeaderNames),
		),
	)
}

func (r rawEndpoint) build() Config {
	// validate already proved the URL parses
	target, _ := url.Parse(r.URL)

	headers := make(http.Header, len(r.Headers))
	for name, value := range r.Headers {
		headers.Set(name, value)
	}

	return NewConfig(r.Name, target, headers, r.Timeout)
}

func validateTargetURL(value interface{}) error {
	raw, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	// url.Parse errors echo the input, which may carry credentials.
	parsedURL, err := url.Parse(raw)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	if parsedURL.Fragment != "" {
		return validation.NewError("validation_unexpected_fragment", "URL must not have a fragment")
	}

	return nil
}

func validateHeaderNames(value interface{}) error {
	headers, ok := value.(map[string]string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a map of header names to values")
	}

	for name := range headers {
		if !headerNamePattern.MatchString(name) {
			return validation.NewError("validation_invalid_header", "header names must be valid HTTP tokens")
		}
		if isHopByHop(name) {
			return validation.NewError("validation_hop_header", "hop-by-hop headers cannot be fixed")
		}
	}

	return nil
}

func isHopByHop(name string) bool {
	switch http.CanonicalHeaderKey(name) {
	case "Connection", "Proxy-Connection", "Keep-Alive", "Proxy-Authenticate",
		"Te", "Trailer", "Transfer-Encoding", "Upgrade", "Host", "Content-Length":
		return true
	}
	return false
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// IsReserved reports whether name belongs to a built-in route.
func IsReserved(name string) bool {
	for _, reserved := range ReservedNames {
		if name == reserved {
			return true
		}
	}
	return false
}
