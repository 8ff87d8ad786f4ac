// Package search talks to Elasticsearch and OpenSearch clusters over their document HTTP API.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when the addressed document or index does not exist.
var ErrNotFound = errors.New("search: not found")

// ErrSerialization marks failures to encode a request or decode a response.
var ErrSerialization = errors.New("search: serialization failed")

// Cluster health states.
const (
	HealthGreen  = "green"
	HealthYellow = "yellow"
	HealthRed    = "red"
)

// Client is the document-store surface the benchmark binding needs.
type Client interface {
	// Ping verifies the cluster answers.
	Ping(ctx context.Context) error
	// HealthCheck verifies the cluster reports a usable health state.
	HealthCheck(ctx context.Context) error
	// WaitForStatus blocks until the cluster reaches status or timeout elapses.
	WaitForStatus(ctx context.Context, status string, timeout time.Duration) (*ClusterHealth, error)

	IndexExists(ctx context.Context, index string) (bool, error)
	CreateIndex(ctx context.Context, index string, settings IndexSettings) error
	DeleteIndex(ctx context.Context, index string) error
	Refresh(ctx context.Context, index string) error

	// GetDocument returns the document source and whether it exists.
	GetDocument(ctx context.Context, index, id string) (map[string]any, bool, error)
	IndexDocument(ctx context.Context, index, id string, source map[string]any) error
	// UpdateDocument applies a partial update. Missing documents yield ErrNotFound.
	UpdateDocument(ctx context.Context, index, id string, partial map[string]any) error
	// DeleteDocument removes a document. Missing documents yield ErrNotFound.
	DeleteDocument(ctx context.Context, index, id string) error
	// ScanDocuments returns documents ordered by ScanRequest.KeyField.
	ScanDocuments(ctx context.Context, req ScanRequest) ([]Document, error)

	Close() error
}

// IndexSettings holds the settings applied when an index is created.
type IndexSettings struct {
	Shards   int
	Replicas int
	// KeywordFields are mapped as exact-match keyword fields.
	KeywordFields []string
}

// ScanRequest selects up to Count documents whose KeyField is >= StartKey.
type ScanRequest struct {
	Index    string
	KeyField string
	StartKey string
	Count    int
	// Fields restricts the returned source. Empty means all fields.
	Fields []string
}

// Document is a stored document.
type Document struct {
	ID     string
	Source map[string]any
}

// ClusterHealth is the subset of the cluster health response the binding reads.
type ClusterHealth struct {
	ClusterName   string `json:"cluster_name"`
	Status        string `json:"status"`
	TimedOut      bool   `json:"timed_out"`
	NumberOfNodes int    `json:"number_of_nodes"`
}

// StatusError is returned when the cluster answers with an unexpected HTTP status.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == 404
}

// HealthTimeoutError is returned when the cluster does not reach the wanted status in time.
type HealthTimeoutError struct {
	Wanted  string
	Current string
	Timeout time.Duration
}

func (e *HealthTimeoutError) Error() string {
	return fmt.Sprintf("cluster health did not reach %s within %s (current: %s)", e.Wanted, e.Timeout, e.Current)
}

// healthRank orders health states so that green satisfies a yellow wait.
func healthRank(status string) int {
	switch status {
	case HealthGreen:
		return 2
	case HealthYellow:
		return 1
	default:
		return 0
	}
}

// Satisfies reports whether the health state meets the wanted status.
func (h *ClusterHealth) Satisfies(wanted string) bool {
	return h != nil && !h.TimedOut && healthRank(h.Status) >= healthRank(wanted)
}
