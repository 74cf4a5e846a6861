package sources

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/infracollect/archivist/internal/engine"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	HTTPKind = "http"

	DefaultHTTPTimeout = 30 * time.Second
)

var defaultHeaders = map[string]string{
	"User-Agent": "archivist",
	"Accept":     "*/*",
}

type HTTPConfig struct {
	URL      string
	Headers  map[string]string
	Timeout  time.Duration
	Insecure bool
}

type HTTPOption func(*httpSource)

// WithHTTPClient replaces the pooled client built from the config.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *httpSource) {
		s.client = client
	}
}

type httpSource struct {
	url     *url.URL
	headers map[string]string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPResolver stores the body of a GET request. The request is only sent
// when the archive gets to the entry and the body is streamed into it.
func NewHTTPResolver(id string, logger *zap.Logger, meta engine.EntryMetadata, cfg HTTPConfig, opts ...HTTPOption) (engine.Resolver, error) {
	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse url '%s': %w", cfg.URL, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("url must use http or https scheme, got: %s", parsedURL.Scheme)
	}

	src := &httpSource{
		url:     parsedURL,
		headers: lo.Assign(defaultHeaders, cfg.Headers),
		logger:  logger,
	}

	for _, opt := range opts {
		opt(src)
	}

	if src.client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultHTTPTimeout
		}

		transport := cleanhttp.DefaultPooledTransport()
		if cfg.Insecure {
			if transport.TLSClientConfig == nil {
				transport.TLSClientConfig = &tls.Config{}
			}

			transport.TLSClientConfig.InsecureSkipVerify = true
		}

		src.client = &http.Client{
			Transport: transport,
			Timeout:   timeout,
		}
	}

	if meta.Name == "" {
		meta.Name = nameFromURL(parsedURL, id)
	}

	return engine.ResolverFunction(id, HTTPKind, func(ctx context.Context) ([]engine.Entry, error) {
		return []engine.Entry{{
			Metadata: meta,
			Source: engine.FromOpener(func() (io.ReadCloser, error) {
				return src.get(ctx)
			}),
		}}, nil
	}), nil
}

func (s *httpSource) get(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	s.logger.Debug("fetching entry", zap.String("url", s.url.Redacted()))
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return resp.Body, nil
}

func nameFromURL(u *url.URL, fallback string) string {
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return fallback
	}
	return base
}
