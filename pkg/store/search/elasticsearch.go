package search

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"

	"github.com/nimburion/esbench/pkg/observability/logger"
	"github.com/nimburion/esbench/pkg/version"
)

// ElasticsearchSDKClient is backed by the official Elasticsearch Go client, which
// handles node selection, retries and product checks.
type ElasticsearchSDKClient struct {
	api

	client    *elasticsearch.Client
	logger    logger.Logger
	transport *http.Transport
	timeout   time.Duration
}

// NewElasticsearchSDKClient creates the client and pings the cluster.
func NewElasticsearchSDKClient(ctx context.Context, cfg Config, log logger.Logger) (*ElasticsearchSDKClient, error) {
	addresses, err := collectAddresses(cfg)
	if err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	baseTransport := &http.Transport{
		MaxIdleConns:        cfg.MaxConns,
		MaxIdleConnsPerHost: cfg.MaxConns,
		MaxConnsPerHost:     cfg.MaxConns,
		IdleConnTimeout:     90 * time.Second,
	}
	transport := http.RoundTripper(baseTransport)
	if cfg.AWSAuthEnabled {
		signer, err := newSigV4Signer(ctx, cfg)
		if err != nil {
			return nil, err
		}
		transport = &signingRoundTripper{base: baseTransport, signer: signer}
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     addresses,
		Username:      cfg.Username,
		Password:      cfg.Password,
		APIKey:        cfg.APIKey,
		Transport:     transport,
		RetryOnStatus: []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout},
		MaxRetries:    len(addresses),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch sdk client: %w", err)
	}

	c := &ElasticsearchSDKClient{
		client:    client,
		logger:    log,
		transport: baseTransport,
		timeout:   cfg.OperationTimeout,
	}
	c.api = api{name: "elasticsearch sdk", perform: c.perform}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.OperationTimeout)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to ping elasticsearch via sdk: %w", err)
	}

	log.Info("search connection established",
		"driver", "elasticsearch-sdk",
		"nodes", len(addresses),
		"aws_auth_enabled", cfg.AWSAuthEnabled,
		"max_conns", cfg.MaxConns,
	)
	return c, nil
}

// Close releases idle HTTP connections.
func (c *ElasticsearchSDKClient) Close() error {
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
	return nil
}

func (c *ElasticsearchSDKClient) perform(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout(ctx, c.timeout))
	req, err := newPerformRequest(reqCtx, method, path, body)
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := c.client.Perform(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("elasticsearch sdk request failed: %w", err)
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// newPerformRequest builds a path-only request; the SDK transports fill in the node.
func newPerformRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
