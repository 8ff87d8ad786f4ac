package search

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	opensearchsdk "github.com/opensearch-project/opensearch-go/v4"
	awssigner "github.com/opensearch-project/opensearch-go/v4/signer/awsv2"

	"github.com/nimburion/esbench/pkg/observability/logger"
)

// OpenSearchSDKClient is backed by the official OpenSearch Go client.
type OpenSearchSDKClient struct {
	api

	client    *opensearchsdk.Client
	logger    logger.Logger
	transport *http.Transport
	timeout   time.Duration
}

// NewOpenSearchSDKClient creates the client and pings the cluster.
func NewOpenSearchSDKClient(ctx context.Context, cfg Config, log logger.Logger) (*OpenSearchSDKClient, error) {
	addresses, err := collectAddresses(cfg)
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

	clientCfg := opensearchsdk.Config{
		Addresses:     addresses,
		Username:      cfg.Username,
		Password:      cfg.Password,
		Transport:     transport,
		RetryOnStatus: []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout},
		MaxRetries:    len(addresses),
	}
	if strings.TrimSpace(cfg.APIKey) != "" {
		clientCfg.Header = http.Header{"Authorization": []string{"ApiKey " + strings.TrimSpace(cfg.APIKey)}}
	}
	if cfg.AWSAuthEnabled {
		awsCfg, err := loadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		signer, err := awssigner.NewSignerWithService(awsCfg, cfg.AWSService)
		if err != nil {
			return nil, fmt.Errorf("failed to create opensearch aws signer: %w", err)
		}
		clientCfg.Signer = signer
	}

	client, err := opensearchsdk.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch sdk client: %w", err)
	}

	c := &OpenSearchSDKClient{
		client:    client,
		logger:    log,
		transport: transport,
		timeout:   cfg.OperationTimeout,
	}
	c.api = api{name: "opensearch sdk", perform: c.perform}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.OperationTimeout)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to ping opensearch via sdk: %w", err)
	}

	log.Info("search connection established",
		"driver", "opensearch-sdk",
		"nodes", len(addresses),
		"aws_auth_enabled", cfg.AWSAuthEnabled,
		"max_conns", cfg.MaxConns,
	)
	return c, nil
}

// Close releases idle HTTP connections.
func (c *OpenSearchSDKClient) Close() error {
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
	return nil
}

func (c *OpenSearchSDKClient) perform(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout(ctx, c.timeout))
	req, err := newPerformRequest(reqCtx, method, path, body)
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := c.client.Perform(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("opensearch sdk request failed: %w", err)
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}
