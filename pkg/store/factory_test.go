package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nimburion/esbench/pkg/config"
	"github.com/nimburion/esbench/pkg/observability/logger"
	"github.com/nimburion/esbench/pkg/store/embedded"
	"github.com/nimburion/esbench/pkg/store/search"
	"github.com/nimburion/esbench/pkg/store/search/searchtest"
)

type staticResolver map[string][]string

func (r staticResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	if addrs, ok := r[host]; ok {
		return addrs, nil
	}
	return nil, errors.New("no such host")
}

func TestResolveEndpoints(t *testing.T) {
	f := &Factory{Resolver: staticResolver{"node-1": {"10.0.0.1"}, "node-2": {"10.0.0.2"}}}

	urls, err := f.ResolveEndpoints(context.Background(), []string{"node-1:9200", "node-2:9201", "127.0.0.1:9200"}, "https")
	if err != nil {
		t.Fatalf("ResolveEndpoints() error = %v", err)
	}
	want := []string{"https://node-1:9200", "https://node-2:9201", "https://127.0.0.1:9200"}
	for i := range want {
		if urls[i] != want[i] {
			t.Fatalf("url %d = %s, want %s", i, urls[i], want[i])
		}
	}
}

func TestResolveEndpoints_Errors(t *testing.T) {
	f := &Factory{Resolver: staticResolver{"node-1": {"10.0.0.1"}}}
	tests := map[string][]string{
		"empty":        nil,
		"bad port":     {"node-1:abc"},
		"missing port": {"node-1"},
		"unresolvable": {"node-1:9200", "ghost:9200"},
	}
	for name, hosts := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.ResolveEndpoints(context.Background(), hosts, "")
			if !errors.Is(err, ErrInvalidEndpoint) {
				t.Fatalf("expected ErrInvalidEndpoint, got %v", err)
			}
		})
	}
}

func TestNewClient_EmbeddedRequiresPathHome(t *testing.T) {
	cfg := config.DefaultConfig()
	_, err := NewClient(context.Background(), &cfg, logger.NewNop())
	if !errors.Is(err, config.ErrPathHomeRequired) {
		t.Fatalf("expected ErrPathHomeRequired, got %v", err)
	}
}

func TestNewClient_Embedded(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PathHome = t.TempDir()

	client, err := NewClient(context.Background(), &cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer client.Close()
	if _, ok := client.(*embedded.Store); !ok {
		t.Fatalf("expected embedded store, got %T", client)
	}
}

func TestNewClient_RemoteDrivers(t *testing.T) {
	cluster := searchtest.NewCluster(t)

	for driver, check := range map[string]func(search.Client) bool{
		config.DriverHTTP:             func(c search.Client) bool { _, ok := c.(*search.HTTPClient); return ok },
		config.DriverElasticsearchSDK: func(c search.Client) bool { _, ok := c.(*search.ElasticsearchSDKClient); return ok },
		config.DriverOpenSearchSDK:    func(c search.Client) bool { _, ok := c.(*search.OpenSearchSDKClient); return ok },
	} {
		t.Run(driver, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Remote = true
			cfg.Hosts = []string{cluster.HostPort()}
			cfg.Search.Driver = driver

			client, err := NewClient(context.Background(), &cfg, logger.NewNop())
			if err != nil {
				t.Fatalf("NewClient() error = %v", err)
			}
			defer client.Close()
			if !check(client) {
				t.Fatalf("unexpected client type %T", client)
			}
		})
	}
}

func TestNewClient_UnsupportedDriver(t *testing.T) {
	cluster := searchtest.NewCluster(t)
	cfg := config.DefaultConfig()
	cfg.Remote = true
	cfg.Hosts = []string{cluster.HostPort()}
	cfg.Search.Driver = "grpc"

	_, err := NewClient(context.Background(), &cfg, logger.NewNop())
	if err == nil || !strings.Contains(err.Error(), "unsupported es.driver") {
		t.Fatalf("expected unsupported driver error, got %v", err)
	}
}
