package search

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nimburion/esbench/pkg/observability/logger"
	"github.com/nimburion/esbench/pkg/version"
)

// HTTPClient talks to the cluster over plain net/http. Requests rotate across the
// configured nodes and fail over on connection errors and 502/503/504.
type HTTPClient struct {
	api

	baseURLs []url.URL
	client   *http.Client
	logger   logger.Logger
	config   Config

	nextNode uint64
	signer   *sigV4Signer
}

// NewHTTPClient creates the client and pings the cluster.
func NewHTTPClient(ctx context.Context, cfg Config, log logger.Logger) (*HTTPClient, error) {
	baseURLs, err := parseBaseURLs(cfg)
	if err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxConns,
		MaxIdleConnsPerHost: cfg.MaxConns,
		MaxConnsPerHost:     cfg.MaxConns,
		IdleConnTimeout:     90 * time.Second,
	}

	c := &HTTPClient{
		baseURLs: baseURLs,
		client:   &http.Client{Transport: transport},
		logger:   log,
		config:   cfg,
	}
	c.api = api{name: "search", perform: c.request}

	if cfg.AWSAuthEnabled {
		signer, err := newSigV4Signer(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c.signer = signer
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.OperationTimeout)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to ping search cluster: %w", err)
	}

	log.Info("search connection established",
		"driver", "http",
		"nodes", len(baseURLs),
		"aws_auth_enabled", cfg.AWSAuthEnabled,
		"max_conns", cfg.MaxConns,
		"operation_timeout", cfg.OperationTimeout,
	)
	return c, nil
}

// Close releases idle HTTP connections.
func (c *HTTPClient) Close() error {
	c.logger.Debug("closing search connections", "driver", "http")
	if transport, ok := c.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}

func (c *HTTPClient) request(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	start := int(atomic.AddUint64(&c.nextNode, 1)-1) % len(c.baseURLs)
	var lastErr error

	for attempt := 0; attempt < len(c.baseURLs); attempt++ {
		baseURL := c.baseURLs[(start+attempt)%len(c.baseURLs)]

		resp, err := c.requestNode(ctx, baseURL, method, path, body)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			c.logger.Debug("search node request failed", "node", baseURL.Host, "error", err)
			continue
		}

		if shouldRetryOnStatus(resp.StatusCode) && attempt < len(c.baseURLs)-1 {
			drain(resp)
			lastErr = fmt.Errorf("node %s returned retryable status %d", baseURL.String(), resp.StatusCode)
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

func (c *HTTPClient) requestNode(ctx context.Context, baseURL url.URL, method, path string, body []byte) (*http.Response, error) {
	endpoint, err := resolveEndpoint(baseURL, path)
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout(ctx, c.config.OperationTimeout))
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, endpoint, reqBody)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.signer != nil {
		if err := c.signer.sign(reqCtx, req, body); err != nil {
			cancel()
			return nil, err
		}
	} else {
		switch {
		case strings.TrimSpace(c.config.APIKey) != "":
			req.Header.Set("Authorization", "ApiKey "+strings.TrimSpace(c.config.APIKey))
		case strings.TrimSpace(c.config.Username) != "":
			req.SetBasicAuth(c.config.Username, c.config.Password)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose keeps the per-request timeout alive until the body is consumed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func resolveEndpoint(base url.URL, path string) (string, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	rel, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid request path %q: %w", path, err)
	}
	return base.ResolveReference(rel).String(), nil
}

func shouldRetryOnStatus(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
