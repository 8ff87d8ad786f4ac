// Package config turns the flat benchmark property map into a validated Config.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/nimburion/esbench/pkg/ycsb"
)

// Property names understood by the Elasticsearch binding.
const (
	KeyRemote           = "es.remote"
	KeyPathHome         = "path.home"
	KeyClusterName      = "cluster.name"
	KeyIndexKey         = "es.index.key"
	KeyNumberOfShards   = "es.number_of_shards"
	KeyNumberOfReplicas = "es.number_of_replicas"
	KeyNewDB            = "es.newdb"
	KeyHostsList        = "es.hosts.list"

	KeyDriver           = "es.driver"
	KeyScheme           = "es.scheme"
	KeyUsername         = "es.username"
	KeyPassword         = "es.password"
	KeyAPIKey           = "es.api_key"
	KeyAWSAuthEnabled   = "es.aws.auth_enabled"
	KeyAWSRegion        = "es.aws.region"
	KeyAWSService       = "es.aws.service"
	KeyAWSAccessKeyID   = "es.aws.access_key_id"
	KeyAWSSecretKey     = "es.aws.secret_access_key"
	KeyAWSSessionToken  = "es.aws.session_token"
	KeyMaxConns         = "es.max_conns"
	KeyOperationTimeout = "es.operation.timeout"
	KeyHealthTimeout    = "es.health.timeout"
	KeyScanMode         = "es.scan.mode"
	KeyLegacyFixedID    = "es.legacy.fixed_id"

	KeyLogLevel          = "log.level"
	KeyLogFormat         = "log.format"
	KeyTracingEnabled    = "tracing.enabled"
	KeyTracingEndpoint   = "tracing.endpoint"
	KeyTracingSampleRate = "tracing.sample_rate"
)

// Defaults mirror the historical YCSB Elasticsearch binding.
const (
	DefaultClusterName      = "es.ycsb.cluster"
	DefaultIndexKey         = "es.ycsb"
	DefaultRemoteHost       = "localhost:9300"
	DefaultNumberOfShards   = 1
	DefaultNumberOfReplicas = 0
)

// Search drivers.
const (
	DriverHTTP             = "http"
	DriverElasticsearchSDK = "elasticsearch-sdk"
	DriverOpenSearchSDK    = "opensearch-sdk"
)

// ScanMode selects how Scan is served.
type ScanMode string

const (
	// ScanModeRange returns up to count records ordered by key starting at the start key.
	ScanModeRange ScanMode = "range"
	// ScanModeSingle fetches only the record at the start key.
	ScanModeSingle ScanMode = "single"
)

// ErrPathHomeRequired is returned when embedded mode is selected without a home directory.
var ErrPathHomeRequired = errors.New("path.home must be specified when running in embedded mode")

// Config is the validated binding configuration.
type Config struct {
	Remote           bool
	PathHome         string
	ClusterName      string
	IndexKey         string
	NumberOfShards   int
	NumberOfReplicas int
	NewDB            bool
	// Hosts holds the raw host:port endpoints from es.hosts.list.
	Hosts         []string
	Search        SearchConfig
	HealthTimeout time.Duration
	ScanMode      ScanMode
	// LegacyFixedID addresses insert and delete by IndexKey instead of the record key.
	LegacyFixedID bool
	Observability ObservabilityConfig
}

// SearchConfig configures how the remote cluster is reached.
type SearchConfig struct {
	Driver           string
	Scheme           string
	Username         string
	Password         string
	APIKey           string
	AWSAuthEnabled   bool
	AWSRegion        string
	AWSService       string
	AWSAccessKeyID   string
	AWSSecretKey     string
	AWSSessionToken  string
	MaxConns         int
	OperationTimeout time.Duration
}

// ObservabilityConfig configures logging and tracing.
type ObservabilityConfig struct {
	LogLevel          string
	LogFormat         string
	TracingEnabled    bool
	TracingEndpoint   string
	TracingSampleRate float64
}

// DefaultConfig returns the configuration used when no property is set.
func DefaultConfig() Config {
	return Config{
		ClusterName:      DefaultClusterName,
		IndexKey:         DefaultIndexKey,
		NumberOfShards:   DefaultNumberOfShards,
		NumberOfReplicas: DefaultNumberOfReplicas,
		Hosts:            []string{DefaultRemoteHost},
		Search: SearchConfig{
			Driver:           DriverHTTP,
			Scheme:           "http",
			AWSService:       "es",
			MaxConns:         10,
			OperationTimeout: 5 * time.Second,
		},
		HealthTimeout: 30 * time.Second,
		ScanMode:      ScanModeRange,
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogFormat:         "json",
			TracingSampleRate: 1,
		},
	}
}

// DefaultProperties returns DefaultConfig expressed as properties.
// Secrets and path.home have no default and are omitted.
func DefaultProperties() ycsb.Properties {
	d := DefaultConfig()
	return ycsb.Properties{
		KeyRemote:            strconv.FormatBool(d.Remote),
		KeyClusterName:       d.ClusterName,
		KeyIndexKey:          d.IndexKey,
		KeyNumberOfShards:    strconv.Itoa(d.NumberOfShards),
		KeyNumberOfReplicas:  strconv.Itoa(d.NumberOfReplicas),
		KeyNewDB:             strconv.FormatBool(d.NewDB),
		KeyHostsList:         strings.Join(d.Hosts, ","),
		KeyDriver:            d.Search.Driver,
		KeyScheme:            d.Search.Scheme,
		KeyAWSAuthEnabled:    strconv.FormatBool(d.Search.AWSAuthEnabled),
		KeyAWSService:        d.Search.AWSService,
		KeyMaxConns:          strconv.Itoa(d.Search.MaxConns),
		KeyOperationTimeout:  d.Search.OperationTimeout.String(),
		KeyHealthTimeout:     d.HealthTimeout.String(),
		KeyScanMode:          string(d.ScanMode),
		KeyLegacyFixedID:     strconv.FormatBool(d.LegacyFixedID),
		KeyLogLevel:          d.Observability.LogLevel,
		KeyLogFormat:         d.Observability.LogFormat,
		KeyTracingEnabled:    strconv.FormatBool(d.Observability.TracingEnabled),
		KeyTracingSampleRate: strconv.FormatFloat(d.Observability.TracingSampleRate, 'g', -1, 64),
	}
}

// KnownKeys lists every property the binding reads.
func KnownKeys() []string {
	return []string{
		KeyRemote, KeyPathHome, KeyClusterName, KeyIndexKey, KeyNumberOfShards,
		KeyNumberOfReplicas, KeyNewDB, KeyHostsList, KeyDriver, KeyScheme,
		KeyUsername, KeyPassword, KeyAPIKey, KeyAWSAuthEnabled, KeyAWSRegion,
		KeyAWSService, KeyAWSAccessKeyID, KeyAWSSecretKey, KeyAWSSessionToken,
		KeyMaxConns, KeyOperationTimeout, KeyHealthTimeout, KeyScanMode,
		KeyLegacyFixedID, KeyLogLevel, KeyLogFormat, KeyTracingEnabled,
		KeyTracingEndpoint, KeyTracingSampleRate,
	}
}

// FromProperties builds and validates a Config. Parse and validation
// problems are reported together.
func FromProperties(props ycsb.Properties) (*Config, error) {
	cfg := DefaultConfig()
	d := NewDecoder(props)

	cfg.Remote = d.Bool(KeyRemote, cfg.Remote)
	cfg.PathHome = d.String(KeyPathHome, "")
	cfg.ClusterName = d.String(KeyClusterName, cfg.ClusterName)
	cfg.IndexKey = d.String(KeyIndexKey, cfg.IndexKey)
	cfg.NumberOfShards = d.Int(KeyNumberOfShards, cfg.NumberOfShards)
	cfg.NumberOfReplicas = d.Int(KeyNumberOfReplicas, cfg.NumberOfReplicas)
	cfg.NewDB = d.Bool(KeyNewDB, cfg.NewDB)
	cfg.Hosts = splitList(d.String(KeyHostsList, DefaultRemoteHost))

	cfg.Search.Driver = strings.ToLower(d.String(KeyDriver, cfg.Search.Driver))
	cfg.Search.Scheme = strings.ToLower(d.String(KeyScheme, cfg.Search.Scheme))
	cfg.Search.Username = d.String(KeyUsername, "")
	cfg.Search.Password = d.String(KeyPassword, "")
	cfg.Search.APIKey = d.String(KeyAPIKey, "")
	cfg.Search.AWSAuthEnabled = d.Bool(KeyAWSAuthEnabled, cfg.Search.AWSAuthEnabled)
	cfg.Search.AWSRegion = d.String(KeyAWSRegion, "")
	cfg.Search.AWSService = d.String(KeyAWSService, cfg.Search.AWSService)
	cfg.Search.AWSAccessKeyID = d.String(KeyAWSAccessKeyID, "")
	cfg.Search.AWSSecretKey = d.String(KeyAWSSecretKey, "")
	cfg.Search.AWSSessionToken = d.String(KeyAWSSessionToken, "")
	cfg.Search.MaxConns = d.Int(KeyMaxConns, cfg.Search.MaxConns)
	cfg.Search.OperationTimeout = d.Duration(KeyOperationTimeout, cfg.Search.OperationTimeout)

	cfg.HealthTimeout = d.Duration(KeyHealthTimeout, cfg.HealthTimeout)
	cfg.ScanMode = ScanMode(strings.ToLower(d.String(KeyScanMode, string(cfg.ScanMode))))
	cfg.LegacyFixedID = d.Bool(KeyLegacyFixedID, cfg.LegacyFixedID)

	cfg.Observability.LogLevel = strings.ToLower(d.String(KeyLogLevel, cfg.Observability.LogLevel))
	cfg.Observability.LogFormat = strings.ToLower(d.String(KeyLogFormat, cfg.Observability.LogFormat))
	cfg.Observability.TracingEnabled = d.Bool(KeyTracingEnabled, cfg.Observability.TracingEnabled)
	cfg.Observability.TracingEndpoint = d.String(KeyTracingEndpoint, "")
	cfg.Observability.TracingSampleRate = d.Float(KeyTracingSampleRate, cfg.Observability.TracingSampleRate)

	if err := d.Err(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs []error

	if !c.Remote && strings.TrimSpace(c.PathHome) == "" {
		errs = append(errs, ErrPathHomeRequired)
	}
	if strings.TrimSpace(c.IndexKey) == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty", KeyIndexKey))
	}
	if c.NumberOfShards < 1 {
		errs = append(errs, fmt.Errorf("invalid %s: %d (must be at least 1)", KeyNumberOfShards, c.NumberOfShards))
	}
	if c.NumberOfReplicas < 0 {
		errs = append(errs, fmt.Errorf("invalid %s: %d (cannot be negative)", KeyNumberOfReplicas, c.NumberOfReplicas))
	}
	if c.HealthTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be greater than zero", KeyHealthTimeout))
	}

	validScanModes := []string{string(ScanModeRange), string(ScanModeSingle)}
	if !contains(validScanModes, string(c.ScanMode)) {
		errs = append(errs, fmt.Errorf("invalid %s: %s (must be one of: %v)", KeyScanMode, c.ScanMode, validScanModes))
	}

	if c.Remote {
		if len(c.Hosts) == 0 {
			errs = append(errs, fmt.Errorf("%s is required in remote mode", KeyHostsList))
		}
		for _, h := range c.Hosts {
			if _, _, err := SplitHostPort(h); err != nil {
				errs = append(errs, err)
			}
		}
		validDrivers := []string{DriverHTTP, DriverElasticsearchSDK, DriverOpenSearchSDK}
		if !contains(validDrivers, c.Search.Driver) {
			errs = append(errs, fmt.Errorf("invalid %s: %s (must be one of: %v)", KeyDriver, c.Search.Driver, validDrivers))
		}
		if c.Search.Scheme != "http" && c.Search.Scheme != "https" {
			errs = append(errs, fmt.Errorf("invalid %s: %s (must be http or https)", KeyScheme, c.Search.Scheme))
		}
		if c.Search.MaxConns <= 0 {
			errs = append(errs, fmt.Errorf("%s must be greater than zero", KeyMaxConns))
		}
		if c.Search.OperationTimeout <= 0 {
			errs = append(errs, fmt.Errorf("%s must be greater than zero", KeyOperationTimeout))
		}
		if c.Search.AWSAuthEnabled {
			if strings.TrimSpace(c.Search.AWSRegion) == "" {
				errs = append(errs, fmt.Errorf("%s is required when %s is true", KeyAWSRegion, KeyAWSAuthEnabled))
			}
			if strings.TrimSpace(c.Search.AWSService) == "" {
				errs = append(errs, fmt.Errorf("%s is required when %s is true", KeyAWSService, KeyAWSAuthEnabled))
			}
			if (c.Search.AWSAccessKeyID == "") != (c.Search.AWSSecretKey == "") {
				errs = append(errs, fmt.Errorf("both %s and %s are required when using static AWS credentials", KeyAWSAccessKeyID, KeyAWSSecretKey))
			}
		}
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.Observability.LogLevel) {
		errs = append(errs, fmt.Errorf("invalid %s: %s (must be one of: %v)", KeyLogLevel, c.Observability.LogLevel, validLogLevels))
	}
	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, c.Observability.LogFormat) {
		errs = append(errs, fmt.Errorf("invalid %s: %s (must be one of: %v)", KeyLogFormat, c.Observability.LogFormat, validLogFormats))
	}
	if c.Observability.TracingEnabled && strings.TrimSpace(c.Observability.TracingEndpoint) == "" {
		errs = append(errs, fmt.Errorf("%s is required when tracing is enabled", KeyTracingEndpoint))
	}
	if c.Observability.TracingSampleRate < 0 || c.Observability.TracingSampleRate > 1 {
		errs = append(errs, fmt.Errorf("invalid %s: %v (must be between 0 and 1)", KeyTracingSampleRate, c.Observability.TracingSampleRate))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// SplitHostPort parses a host:port endpoint from es.hosts.list.
func SplitHostPort(endpoint string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(endpoint))
	if err != nil {
		return "", 0, fmt.Errorf("invalid endpoint %q in %s: %w", endpoint, KeyHostsList, err)
	}
	if host == "" {
		return "", 0, fmt.Errorf("invalid endpoint %q in %s: missing host", endpoint, KeyHostsList)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("unable to parse port number in endpoint %q", endpoint)
	}
	return host, port, nil
}

// RedactProperties returns a copy of props with secret values masked.
func RedactProperties(props ycsb.Properties) ycsb.Properties {
	out := props.Clone()
	for _, key := range []string{KeyPassword, KeyAPIKey, KeyAWSSecretKey, KeyAWSSessionToken} {
		if v, ok := out[key]; ok && v != "" {
			out[key] = "********"
		}
	}
	return out
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// contains checks if a string slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
