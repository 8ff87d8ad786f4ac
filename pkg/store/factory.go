// Package store builds the document client the benchmark binding talks to.
package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/nimburion/esbench/pkg/config"
	"github.com/nimburion/esbench/pkg/observability/logger"
	"github.com/nimburion/esbench/pkg/store/embedded"
	"github.com/nimburion/esbench/pkg/store/search"
)

// ErrInvalidEndpoint marks endpoint lists that cannot be parsed or resolved.
var ErrInvalidEndpoint = errors.New("invalid search endpoint")

// Resolver looks up host addresses. *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Factory builds search clients from the binding configuration.
type Factory struct {
	Resolver Resolver
}

// NewFactory returns a Factory using the system resolver.
func NewFactory() *Factory {
	return &Factory{Resolver: net.DefaultResolver}
}

// NewClient builds a client from cfg: the embedded store when cfg.Remote is false,
// otherwise the configured remote driver.
func NewClient(ctx context.Context, cfg *config.Config, log logger.Logger) (search.Client, error) {
	return NewFactory().NewClient(ctx, cfg, log)
}

// NewClient builds a client from cfg.
func (f *Factory) NewClient(ctx context.Context, cfg *config.Config, log logger.Logger) (search.Client, error) {
	if !cfg.Remote {
		if strings.TrimSpace(cfg.PathHome) == "" {
			return nil, config.ErrPathHomeRequired
		}
		return embedded.Open(ctx, embedded.Config{DataDir: cfg.PathHome, ClusterName: cfg.ClusterName}, log)
	}

	urls, err := f.ResolveEndpoints(ctx, cfg.Hosts, cfg.Search.Scheme)
	if err != nil {
		return nil, err
	}
	searchCfg := search.Config{
		URLs:             urls,
		Username:         cfg.Search.Username,
		Password:         cfg.Search.Password,
		APIKey:           cfg.Search.APIKey,
		AWSAuthEnabled:   cfg.Search.AWSAuthEnabled,
		AWSRegion:        cfg.Search.AWSRegion,
		AWSService:       cfg.Search.AWSService,
		AWSAccessKeyID:   cfg.Search.AWSAccessKeyID,
		AWSSecretKey:     cfg.Search.AWSSecretKey,
		AWSSessionToken:  cfg.Search.AWSSessionToken,
		MaxConns:         cfg.Search.MaxConns,
		OperationTimeout: cfg.Search.OperationTimeout,
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Search.Driver)) {
	case "", config.DriverHTTP:
		return search.NewHTTPClient(ctx, searchCfg, log)
	case config.DriverElasticsearchSDK:
		return search.NewElasticsearchSDKClient(ctx, searchCfg, log)
	case config.DriverOpenSearchSDK:
		return search.NewOpenSearchSDKClient(ctx, searchCfg, log)
	default:
		return nil, fmt.Errorf("unsupported %s %q (supported: %s, %s, %s)", config.KeyDriver, cfg.Search.Driver,
			config.DriverHTTP, config.DriverElasticsearchSDK, config.DriverOpenSearchSDK)
	}
}

// ResolveEndpoints turns host:port entries into base URLs. Each host must resolve;
// the URL keeps the host name so TLS verification and virtual hosting still work.
func (f *Factory) ResolveEndpoints(ctx context.Context, hosts []string, scheme string) ([]string, error) {
	if scheme == "" {
		scheme = "http"
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidEndpoint, config.KeyHostsList)
	}

	urls := make([]string, 0, len(hosts))
	for _, endpoint := range hosts {
		host, port, err := config.SplitHostPort(endpoint)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
		}
		if net.ParseIP(host) == nil {
			if _, err := f.Resolver.LookupHost(ctx, host); err != nil {
				return nil, fmt.Errorf("%w: unable to resolve host %q: %w", ErrInvalidEndpoint, host, err)
			}
		}
		urls = append(urls, scheme+"://"+net.JoinHostPort(host, strconv.Itoa(port)))
	}
	return urls, nil
}
