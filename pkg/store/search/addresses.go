package search

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	defaultMaxConns         = 10
	defaultOperationTimeout = 5 * time.Second
	defaultAWSService       = "es"
)

// Config holds the connection settings shared by every search driver.
type Config struct {
	// URLs are node base URLs such as http://node-1:9200.
	URLs             []string
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

func (c Config) withDefaults() Config {
	if c.MaxConns <= 0 {
		c.MaxConns = defaultMaxConns
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = defaultOperationTimeout
	}
	if strings.TrimSpace(c.AWSService) == "" {
		c.AWSService = defaultAWSService
	}
	return c
}

func parseBaseURLs(cfg Config) ([]url.URL, error) {
	parsed := make([]url.URL, 0, len(cfg.URLs))
	seen := make(map[string]struct{}, len(cfg.URLs))
	for _, item := range cfg.URLs {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		u, err := url.Parse(item)
		if err != nil {
			return nil, fmt.Errorf("failed to parse search URL %q: %w", item, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid search URL: %s", item)
		}
		key := u.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		parsed = append(parsed, *u)
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("at least one search node address is required")
	}
	return parsed, nil
}

func collectAddresses(cfg Config) ([]string, error) {
	parsed, err := parseBaseURLs(cfg)
	if err != nil {
		return nil, err
	}
	addresses := make([]string, 0, len(parsed))
	for _, u := range parsed {
		addresses = append(addresses, u.String())
	}
	return addresses, nil
}
