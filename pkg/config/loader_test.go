package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nimburion/esbench/pkg/ycsb"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoader_Defaults(t *testing.T) {
	props, err := NewLoader("", "ESBENCH_TEST_DEFAULTS").LoadProperties()
	if err != nil {
		t.Fatalf("LoadProperties() error = %v", err)
	}
	if props[KeyIndexKey] != DefaultIndexKey {
		t.Errorf("expected default index key, got %q", props[KeyIndexKey])
	}
	if props[KeyHostsList] != DefaultRemoteHost {
		t.Errorf("expected default hosts, got %q", props[KeyHostsList])
	}
}

func TestLoader_PropertiesFile(t *testing.T) {
	path := writeFile(t, "workload.properties", `
es.remote=true
es.hosts.list=node-1:9200,node-2:9200
es.index.key=bench
es.number_of_shards=2
recordcount=1000
`)

	cfg, props, err := NewLoader(path, "ESBENCH_TEST_FILE").Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Remote {
		t.Error("expected remote mode from file")
	}
	if len(cfg.Hosts) != 2 {
		t.Errorf("expected 2 hosts, got %v", cfg.Hosts)
	}
	if cfg.IndexKey != "bench" || cfg.NumberOfShards != 2 {
		t.Errorf("unexpected index settings %+v", cfg)
	}
	if props["recordcount"] != "1000" {
		t.Errorf("workload properties should pass through, got %q", props["recordcount"])
	}
}

func TestLoader_YAMLFileWithList(t *testing.T) {
	path := writeFile(t, "bench.yaml", `
es:
  remote: true
  hosts:
    list:
      - node-1:9200
      - node-2:9200
`)

	cfg, _, err := NewLoader(path, "ESBENCH_TEST_YAML").Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Hosts) != 2 || cfg.Hosts[0] != "node-1:9200" {
		t.Fatalf("expected YAML list to be joined, got %v", cfg.Hosts)
	}
}

func TestLoader_Precedence(t *testing.T) {
	path := writeFile(t, "workload.properties", "es.remote=true\nes.index.key=from-file\nes.number_of_shards=2\n")

	loader := NewLoader(path, "ESBENCH_TEST_PREC")
	t.Setenv(loader.EnvName(KeyIndexKey), "from-env")
	t.Setenv(loader.EnvName(KeyNumberOfShards), "4")

	cfg, _, err := loader.WithOverrides(ycsb.Properties{KeyNumberOfShards: "8"}).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.IndexKey != "from-env" {
		t.Errorf("env should win over file, got %q", cfg.IndexKey)
	}
	if cfg.NumberOfShards != 8 {
		t.Errorf("overrides should win over env, got %d", cfg.NumberOfShards)
	}
}

func TestLoader_ExtraEnvKeys(t *testing.T) {
	loader := NewLoader("", "ESBENCH_TEST_EXTRA").WithEnvKeys("recordcount")
	t.Setenv(loader.EnvName("recordcount"), "42")

	props, err := loader.LoadProperties()
	if err != nil {
		t.Fatalf("LoadProperties() error = %v", err)
	}
	if props["recordcount"] != "42" {
		t.Fatalf("expected recordcount from env, got %q", props["recordcount"])
	}
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "missing.properties"), "").LoadProperties()
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoader_InvalidConfigStillReturnsProperties(t *testing.T) {
	_, props, err := NewLoader("", "ESBENCH_TEST_INVALID").Load()
	if err == nil {
		t.Fatal("expected embedded mode without path.home to fail validation")
	}
	if props == nil {
		t.Fatal("properties should be returned alongside validation errors")
	}
}

func TestEnvName(t *testing.T) {
	l := NewLoader("", "")
	if got := l.EnvName("es.hosts.list"); got != "ESBENCH_ES_HOSTS_LIST" {
		t.Fatalf("EnvName() = %q", got)
	}
	if got := NewLoader("", "bench").EnvName("path.home"); got != "BENCH_PATH_HOME" {
		t.Fatalf("EnvName() = %q", got)
	}
}
