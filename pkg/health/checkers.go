package health

import (
	"context"
	"fmt"
	"time"

	"github.com/nimburion/esbench/pkg/resilience"
	"github.com/nimburion/esbench/pkg/store/search"
)

// DefaultTimeout bounds a check when none is given.
const DefaultTimeout = 5 * time.Second

// Checkable is an interface for components that support health checks
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// AdapterChecker reports whether a Checkable answers its health check in time.
type AdapterChecker struct {
	name     string
	adapter  Checkable
	deadline *resilience.Deadline
}

// NewAdapterChecker creates a new health checker for an adapter
func NewAdapterChecker(name string, adapter Checkable, timeout time.Duration) *AdapterChecker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &AdapterChecker{
		name:     name,
		adapter:  adapter,
		deadline: resilience.NewDeadline(timeout),
	}
}

// Check performs the health check on the adapter
func (c *AdapterChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	err := c.deadline.Run(ctx, c.adapter.HealthCheck)
	result := CheckResult{
		Name:      c.name,
		Status:    StatusHealthy,
		Message:   "OK",
		Timestamp: time.Now(),
		Duration:  time.Since(start),
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = ""
		result.Error = err.Error()
	}
	return result
}

// Name returns the name of the health check
func (c *AdapterChecker) Name() string {
	return c.name
}

// ClusterChecker maps the cluster health color onto a check status: green is
// healthy, yellow degraded and red unhealthy.
type ClusterChecker struct {
	name     string
	client   search.Client
	deadline *resilience.Deadline
}

// NewClusterChecker creates a checker reading the cluster health through client.
func NewClusterChecker(name string, client search.Client, timeout time.Duration) *ClusterChecker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ClusterChecker{name: name, client: client, deadline: resilience.NewDeadline(timeout)}
}

// Check asks for the current health without waiting for a color.
func (c *ClusterChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	var health *search.ClusterHealth
	err := c.deadline.Run(ctx, func(ctx context.Context) error {
		var err error
		health, err = c.client.WaitForStatus(ctx, search.HealthRed, 0)
		return err
	})

	result := CheckResult{Name: c.name, Timestamp: time.Now(), Duration: time.Since(start)}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		return result
	}
	result.Metadata = map[string]any{
		"cluster_name": health.ClusterName,
		"nodes":        health.NumberOfNodes,
		"color":        health.Status,
	}
	switch health.Status {
	case search.HealthGreen:
		result.Status = StatusHealthy
		result.Message = "cluster is green"
	case search.HealthYellow:
		result.Status = StatusDegraded
		result.Message = "cluster is yellow"
	default:
		result.Status = StatusUnhealthy
		result.Error = fmt.Sprintf("cluster is %s", health.Status)
	}
	return result
}

// Name returns the name of the health check
func (c *ClusterChecker) Name() string {
	return c.name
}

// IndexChecker reports whether the benchmark index exists. A missing index is
// degraded: the load phase creates it.
type IndexChecker struct {
	name     string
	index    string
	client   search.Client
	deadline *resilience.Deadline
}

// NewIndexChecker creates a checker for index.
func NewIndexChecker(name, index string, client search.Client, timeout time.Duration) *IndexChecker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &IndexChecker{name: name, index: index, client: client, deadline: resilience.NewDeadline(timeout)}
}

// Check looks the index up.
func (c *IndexChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	var exists bool
	err := c.deadline.Run(ctx, func(ctx context.Context) error {
		var err error
		exists, err = c.client.IndexExists(ctx, c.index)
		return err
	})

	result := CheckResult{
		Name:      c.name,
		Timestamp: time.Now(),
		Duration:  time.Since(start),
		Metadata:  map[string]any{"index": c.index},
	}
	switch {
	case err != nil:
		result.Status = StatusUnhealthy
		result.Error = err.Error()
	case exists:
		result.Status = StatusHealthy
		result.Message = "index exists"
	default:
		result.Status = StatusDegraded
		result.Message = "index does not exist"
	}
	return result
}

// Name returns the name of the health check
func (c *IndexChecker) Name() string {
	return c.name
}
