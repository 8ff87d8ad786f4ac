package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/nimburion/esbench/pkg/ycsb"
)

// DefaultEnvPrefix is used when no prefix is configured.
const DefaultEnvPrefix = "ESBENCH"

// Loader reads benchmark properties with precedence: overrides > ENV > file > defaults.
//
// The file may be a Java-style .properties file (the format workload files
// traditionally use) or anything else viper understands (yaml, json, toml).
type Loader struct {
	configFile string
	envPrefix  string
	overrides  ycsb.Properties
	extraKeys  []string
}

// NewLoader creates a Loader.
// configFile: path to a property file (optional, can be empty)
// envPrefix: prefix for environment variables (e.g., "ESBENCH")
func NewLoader(configFile, envPrefix string) *Loader {
	return &Loader{
		configFile: configFile,
		envPrefix:  envPrefix,
	}
}

// WithOverrides sets properties that win over every other source (the -p flags).
func (l *Loader) WithOverrides(overrides ycsb.Properties) *Loader {
	l.overrides = overrides
	return l
}

// WithEnvKeys binds additional property names to environment variables,
// for example the workload properties.
func (l *Loader) WithEnvKeys(keys ...string) *Loader {
	l.extraKeys = append(l.extraKeys, keys...)
	return l
}

// LoadProperties returns the merged property map.
func (l *Loader) LoadProperties() (ycsb.Properties, error) {
	v := viper.New()

	for key, value := range DefaultProperties() {
		v.SetDefault(key, value)
	}

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}

	for _, key := range append(KnownKeys(), l.extraKeys...) {
		if err := v.BindEnv(key, l.EnvName(key)); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	for key, value := range l.overrides {
		v.Set(key, value)
	}

	keys := v.AllKeys()
	sort.Strings(keys)
	props := make(ycsb.Properties, len(keys))
	for _, key := range keys {
		raw := v.Get(key)
		if raw == nil {
			continue
		}
		props[key] = stringValue(raw)
	}
	return props, nil
}

// Load returns the merged properties and the validated Config built from them.
func (l *Loader) Load() (*Config, ycsb.Properties, error) {
	props, err := l.LoadProperties()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := FromProperties(props)
	if err != nil {
		return nil, props, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, props, nil
}

// EnvName returns the environment variable bound to a property,
// e.g. es.hosts.list -> ESBENCH_ES_HOSTS_LIST.
func (l *Loader) EnvName(key string) string {
	prefix := strings.TrimSpace(l.envPrefix)
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	suffix := strings.NewReplacer(".", "_", "-", "_").Replace(key)
	return strings.ToUpper(prefix + "_" + suffix)
}

func stringValue(raw any) string {
	switch val := raw.(type) {
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, stringValue(item))
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(val, ",")
	default:
		return fmt.Sprint(val)
	}
}
