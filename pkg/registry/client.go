// Package registry provides the HTTP client for the NSI registry data API.
package registry

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/nsi-loader/pkg/dictionary"
	"github.com/Sternrassler/nsi-loader/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for registry requests.
var (
	registryRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nsi_registry_requests_total",
		Help: "Total registry page requests by outcome status",
	}, []string{"status"})

	registryRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nsi_registry_request_duration_seconds",
		Help:    "Registry page request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	registryErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nsi_registry_errors_total",
		Help: "Total registry errors by class",
	}, []string{"class"})
)

// ResultOK is the registry's success marker in the "result" field.
const ResultOK = "OK"

// redactedKey replaces the access key in error messages.
const redactedKey = "xxxxx"

// DefaultBaseURL is the public NSI data endpoint.
const DefaultBaseURL = "https://nsi.rosminzdrav.ru/port/rest/data"

// Config holds the client configuration.
type Config struct {
	// BaseURL is the registry data endpoint.
	BaseURL string

	// UserKey is the registry access key (REQUIRED).
	UserKey string

	// Timeout applies to each page request.
	Timeout time.Duration

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	// UserAgent header sent with every request.
	UserAgent string
}

// DefaultConfig returns the default configuration for the given access key.
func DefaultConfig(userKey string) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserKey:   userKey,
		Timeout:   60 * time.Second,
		UserAgent: "nsi-loader/0.1.0",
	}
}

// Client fetches dictionary pages from the registry.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
}

// pageResponse is the registry payload envelope.
type pageResponse struct {
	Result string          `json:"result"`
	List   json.RawMessage `json:"list"`
}

// New creates a new registry client.
func New(cfg Config) (*Client, error) {
	if cfg.UserKey == "" {
		return nil, fmt.Errorf("user key is required")
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // registry certificate chain is not always trusted
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		baseURL: base,
		config:  cfg,
		logger:  logging.NewLogger(logging.ComponentRegistry),
	}, nil
}

// FetchPage requests one page of a dictionary and returns its raw rows.
// Pages are 1-based. A single attempt is made.
func (c *Client) FetchPage(ctx context.Context, identifier string, page, size int) ([]dictionary.Row, error) {
	startTime := time.Now()
	defer func() {
		registryRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(identifier, page, size), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = c.redact(err)
		c.logger.Error().
			Err(err).
			Str("identifier", identifier).
			Int("page", page).
			Msg("Registry request failed")
		return nil, c.fail(&TransportError{
			Identifier: identifier,
			Page:       page,
			ErrorClass: ErrorClassNetwork,
			Err:        err,
		}, "network_error")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(&TransportError{
			Identifier: identifier,
			Page:       page,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Err:        fmt.Errorf("read body: %w", err),
		}, "network_error")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errClass := classifyStatus(resp.StatusCode)
		c.logger.Warn().
			Str("identifier", identifier).
			Int("page", page).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Registry request error")
		return nil, c.fail(&TransportError{
			Identifier: identifier,
			Page:       page,
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}, strconv.Itoa(resp.StatusCode))
	}

	rows, err := c.decode(identifier, page, resp.StatusCode, body)
	if err != nil {
		return nil, err
	}

	registryRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	c.logger.Info().
		Str("identifier", identifier).
		Int("page", page).
		Int("rows", len(rows)).
		Dur("duration", time.Since(startTime)).
		Msg("Page downloaded")

	return rows, nil
}

// decode parses the registry envelope and its row list.
func (c *Client) decode(identifier string, page, status int, body []byte) ([]dictionary.Row, error) {
	var envelope pageResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, c.fail(&TransportError{
			Identifier: identifier,
			Page:       page,
			StatusCode: status,
			ErrorClass: ErrorClassDecode,
			Err:        fmt.Errorf("decode response: %w", err),
		}, "decode_error")
	}

	if envelope.Result != ResultOK {
		c.logger.Warn().
			Str("identifier", identifier).
			Int("page", page).
			Str("result", envelope.Result).
			Msg("Registry reported non-OK result")
		return nil, c.fail(&RegistryError{
			Identifier: identifier,
			Page:       page,
			Result:     envelope.Result,
			Payload:    body,
		}, "registry_error")
	}

	rows := []dictionary.Row{}
	if len(envelope.List) == 0 || bytes.Equal(envelope.List, []byte("null")) {
		return rows, nil
	}

	dec := json.NewDecoder(bytes.NewReader(envelope.List))
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, c.fail(&TransportError{
			Identifier: identifier,
			Page:       page,
			StatusCode: status,
			ErrorClass: ErrorClassDecode,
			Err:        fmt.Errorf("decode rows: %w", err),
		}, "decode_error")
	}

	return rows, nil
}

// fail records metrics for a failed request and returns err unchanged.
func (c *Client) fail(err error, status string) error {
	registryRequestsTotal.WithLabelValues(status).Inc()
	switch e := err.(type) {
	case *TransportError:
		registryErrorsTotal.WithLabelValues(string(e.ErrorClass)).Inc()
	case *RegistryError:
		registryErrorsTotal.WithLabelValues(string(ErrorClassRegistry)).Inc()
	}
	return err
}

// pageURL builds the request URL. The access key never reaches the logs.
func (c *Client) pageURL(identifier string, page, size int) string {
	u := *c.baseURL
	q := u.Query()
	q.Set("identifier", identifier)
	q.Set("userKey", c.config.UserKey)
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	u.RawQuery = q.Encode()
	return u.String()
}

// redact removes the access key from the request URL that net/http embeds
// in *url.Error messages.
func (c *Client) redact(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	u, perr := url.Parse(ue.URL)
	if perr != nil {
		ue.URL = c.baseURL.Redacted()
		return err
	}
	q := u.Query()
	if q.Has("userKey") {
		q.Set("userKey", redactedKey)
	}
	u.RawQuery = q.Encode()
	ue.URL = u.String()
	return err
}

// classifyStatus categorizes a non-2xx status code.
func classifyStatus(status int) ErrorClass {
	switch {
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		// 1xx/3xx that escaped redirect handling
		return ErrorClassServer
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Timeout returns the effective per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.config.Timeout
}
