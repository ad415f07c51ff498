package endpoint

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// maxDocumentBytes bounds how much of a remote document is read.
const maxDocumentBytes = 4 << 20

// Source produces the raw bytes of an endpoint document.
type Source interface {
	// Fetch returns the document and its format (yaml, json or toml).
	Fetch(ctx context.Context) (data []byte, format string, err error)
	String() string
}

// FileSource reads the document from the local filesystem.
type FileSource struct {
	Path string
}

func (s FileSource) Fetch(ctx context.Context) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, "", fmt.Errorf("read endpoint file: %w", err)
	}

	return data, FormatFromPath(s.Path), nil
}

func (s FileSource) String() string {
	return s.Path
}

// HTTPSource fetches the document from a remote URL.
type HTTPSource struct {
	URL    *url.URL
	Client *http.Client
}

func (s HTTPSource) Fetch(ctx context.Context) ([]byte, string, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("build endpoint document request: %w", err)
	}
	req.Header.Set("Accept", "application/yaml, application/json, application/toml;q=0.9, */*;q=0.5")

	res, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch endpoint document: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, "", fmt.Errorf("fetch endpoint document: unexpected status %d", res.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read endpoint document: %w", err)
	}
	if len(data) > maxDocumentBytes {
		return nil, "", fmt.Errorf("endpoint document exceeds %d bytes", maxDocumentBytes)
	}

	return data, formatFromContentType(res.Header.Get("Content-Type"), s.URL.Path), nil
}

func (s HTTPSource) String() string {
	return s.URL.Redacted()
}

// NewSource picks an HTTPSource for http(s) locations and a FileSource
// otherwise.
func NewSource(location string, client *http.Client) (Source, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		u, err := url.Parse(location)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint source URL: %w", err)
		}
		return HTTPSource{URL: u, Client: client}, nil
	}

	return FileSource{Path: location}, nil
}

func formatFromContentType(contentType, urlPath string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err == nil {
		switch {
		case strings.HasSuffix(mediaType, "json"):
			return "json"
		case strings.HasSuffix(mediaType, "toml"):
			return "toml"
		case strings.HasSuffix(mediaType, "yaml"), strings.HasSuffix(mediaType, "yml"):
			return "yaml"
		}
	}

	return FormatFromPath(urlPath)
}
