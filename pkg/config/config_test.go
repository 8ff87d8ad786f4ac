package config

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/nimburion/esbench/pkg/ycsb"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Remote {
		t.Error("expected remote mode to be disabled by default")
	}
	if cfg.IndexKey != "es.ycsb" {
		t.Errorf("expected index key es.ycsb, got %s", cfg.IndexKey)
	}
	if cfg.ClusterName != "es.ycsb.cluster" {
		t.Errorf("expected cluster name es.ycsb.cluster, got %s", cfg.ClusterName)
	}
	if cfg.NumberOfShards != 1 || cfg.NumberOfReplicas != 0 {
		t.Errorf("expected 1 shard / 0 replicas, got %d / %d", cfg.NumberOfShards, cfg.NumberOfReplicas)
	}
	if len(cfg.Hosts) != 1 || cfg.Hosts[0] != "localhost:9300" {
		t.Errorf("expected default host localhost:9300, got %v", cfg.Hosts)
	}
	if cfg.ScanMode != ScanModeRange {
		t.Errorf("expected range scan mode, got %s", cfg.ScanMode)
	}
	if cfg.LegacyFixedID {
		t.Error("expected per-key document identity by default")
	}
	if cfg.Search.OperationTimeout != 5*time.Second {
		t.Errorf("expected 5s operation timeout, got %v", cfg.Search.OperationTimeout)
	}
}

func TestFromProperties_EmbeddedRequiresPathHome(t *testing.T) {
	_, err := FromProperties(ycsb.Properties{KeyRemote: "false", KeyPathHome: ""})
	if err == nil {
		t.Fatal("expected error when path.home is missing in embedded mode")
	}
	if !errors.Is(err, ErrPathHomeRequired) {
		t.Fatalf("expected ErrPathHomeRequired, got %v", err)
	}
}

func TestFromProperties_Remote(t *testing.T) {
	cfg, err := FromProperties(ycsb.Properties{
		KeyRemote:           "true",
		KeyHostsList:        "node-1:9200, node-2:9201",
		KeyIndexKey:         "bench",
		KeyNumberOfShards:   "3",
		KeyNumberOfReplicas: "1",
		KeyNewDB:            "true",
		KeyDriver:           "Elasticsearch-SDK",
		KeyOperationTimeout: "1500",
		KeyScanMode:         "single",
		KeyLegacyFixedID:    "true",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !cfg.Remote || !cfg.NewDB || !cfg.LegacyFixedID {
		t.Errorf("boolean flags not applied: %+v", cfg)
	}
	if len(cfg.Hosts) != 2 || cfg.Hosts[1] != "node-2:9201" {
		t.Errorf("unexpected hosts %v", cfg.Hosts)
	}
	if cfg.IndexKey != "bench" || cfg.NumberOfShards != 3 || cfg.NumberOfReplicas != 1 {
		t.Errorf("index settings not applied: %+v", cfg)
	}
	if cfg.Search.Driver != DriverElasticsearchSDK {
		t.Errorf("expected driver to be normalised, got %s", cfg.Search.Driver)
	}
	if cfg.Search.OperationTimeout != 1500*time.Millisecond {
		t.Errorf("expected 1.5s timeout, got %v", cfg.Search.OperationTimeout)
	}
	if cfg.ScanMode != ScanModeSingle {
		t.Errorf("expected single scan mode, got %s", cfg.ScanMode)
	}
}

func TestFromProperties_RemoteDoesNotNeedPathHome(t *testing.T) {
	if _, err := FromProperties(ycsb.Properties{KeyRemote: "true"}); err != nil {
		t.Fatalf("remote mode with defaults should be valid: %v", err)
	}
}

func TestFromProperties_AggregatesErrors(t *testing.T) {
	_, err := FromProperties(ycsb.Properties{
		KeyRemote:         "true",
		KeyNumberOfShards: "0",
		KeyHostsList:      "localhost:notaport",
		KeyDriver:         "grpc",
		KeyScanMode:       "reverse",
		KeyAWSAuthEnabled: "true",
	})
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{
		"es.number_of_shards",
		"unable to parse port number",
		"es.driver",
		"es.scan.mode",
		"es.aws.region",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in error: %v", want, msg)
		}
	}
}

func TestFromProperties_ParseErrors(t *testing.T) {
	_, err := FromProperties(ycsb.Properties{
		KeyRemote:         "maybe",
		KeyNumberOfShards: "many",
	})
	if err == nil {
		t.Fatal("expected parse errors")
	}
	if !strings.Contains(err.Error(), "es.remote") || !strings.Contains(err.Error(), "es.number_of_shards") {
		t.Fatalf("expected both parse errors, got %v", err)
	}
}

func TestFromProperties_Tracing(t *testing.T) {
	_, err := FromProperties(ycsb.Properties{
		KeyRemote:         "true",
		KeyTracingEnabled: "true",
	})
	if err == nil || !strings.Contains(err.Error(), "tracing.endpoint") {
		t.Fatalf("expected tracing endpoint error, got %v", err)
	}
}

func TestSplitHostPort(t *testing.T) {
	tests := []struct {
		in      string
		host    string
		port    int
		wantErr bool
	}{
		{in: "localhost:9300", host: "localhost", port: 9300},
		{in: " 10.0.0.1:9200 ", host: "10.0.0.1", port: 9200},
		{in: "[::1]:9200", host: "::1", port: 9200},
		{in: "localhost", wantErr: true},
		{in: "localhost:0", wantErr: true},
		{in: ":9200", wantErr: true},
		{in: "localhost:abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			host, port, err := SplitHostPort(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SplitHostPort(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && (host != tt.host || port != tt.port) {
				t.Fatalf("SplitHostPort(%q) = %s, %d", tt.in, host, port)
			}
		})
	}
}

func TestRedactProperties(t *testing.T) {
	in := ycsb.Properties{KeyPassword: "secret", KeyAPIKey: "", KeyUsername: "elastic"}
	out := RedactProperties(in)
	if out[KeyPassword] != "********" {
		t.Errorf("password not redacted: %q", out[KeyPassword])
	}
	if out[KeyAPIKey] != "" {
		t.Errorf("empty api key should stay empty, got %q", out[KeyAPIKey])
	}
	if out[KeyUsername] != "elastic" {
		t.Errorf("username should not be redacted")
	}
	if in[KeyPassword] != "secret" {
		t.Error("RedactProperties must not modify its input")
	}
}

func TestProperty_ShardAndReplicaCountsRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("valid shard and replica counts are applied verbatim", prop.ForAll(
		func(shards, replicas int) bool {
			cfg, err := FromProperties(ycsb.Properties{
				KeyRemote:           "true",
				KeyNumberOfShards:   strconv.Itoa(shards),
				KeyNumberOfReplicas: strconv.Itoa(replicas),
			})
			if err != nil {
				t.Logf("unexpected error: %v", err)
				return false
			}
			return cfg.NumberOfShards == shards && cfg.NumberOfReplicas == replicas
		},
		gen.IntRange(1, 64),
		gen.IntRange(0, 8),
	))

	properties.Property("non-positive shard counts are rejected", prop.ForAll(
		func(shards int) bool {
			_, err := FromProperties(ycsb.Properties{
				KeyRemote:         "true",
				KeyNumberOfShards: strconv.Itoa(shards),
			})
			return err != nil
		},
		gen.IntRange(-100, 0),
	))

	properties.TestingRun(t)
}
