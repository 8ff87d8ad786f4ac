package metrics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const (
	operationsTotalName   = "esbench_operations_total"
	operationDurationName = "esbench_operation_duration_seconds"
)

// latencyBuckets span 100µs to ~6.5s, which covers local and remote clusters.
var latencyBuckets = prometheus.ExponentialBuckets(0.0001, 2, 17)

// Recorder records the outcome of one database operation.
type Recorder interface {
	Observe(operation, status string, duration time.Duration)
}

// Operations holds the per-operation counter and latency histogram.
type Operations struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	gatherer prometheus.Gatherer
}

// NewOperations creates the operation collectors and registers them with reg.
func NewOperations(reg *Registry) (*Operations, error) {
	ops := &Operations{
		total: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: operationsTotalName,
				Help: "Total number of benchmark operations by outcome",
			},
			[]string{"operation", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    operationDurationName,
				Help:    "Benchmark operation latency in seconds",
				Buckets: latencyBuckets,
			},
			[]string{"operation"},
		),
		gatherer: reg.Gatherer(),
	}
	if err := reg.Register(ops.total); err != nil {
		return nil, fmt.Errorf("register %s: %w", operationsTotalName, err)
	}
	if err := reg.Register(ops.duration); err != nil {
		reg.Unregister(ops.total)
		return nil, fmt.Errorf("register %s: %w", operationDurationName, err)
	}
	return ops, nil
}

// Observe implements Recorder.
func (o *Operations) Observe(operation, status string, duration time.Duration) {
	o.total.WithLabelValues(operation, status).Inc()
	o.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// OperationSummary aggregates the samples recorded for one operation.
type OperationSummary struct {
	Operation   string
	Count       uint64
	ByStatus    map[string]uint64
	AvgLatency  time.Duration
	P95Latency  time.Duration
	P99Latency  time.Duration
	MaxLatency  time.Duration
}

// Summary reads the collected samples back through the registry gatherer.
// Percentiles are bucket upper bounds, so they over-estimate by at most one bucket.
func (o *Operations) Summary() ([]OperationSummary, error) {
	families, err := o.gatherer.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	byOp := make(map[string]*OperationSummary)
	get := func(op string) *OperationSummary {
		s, ok := byOp[op]
		if !ok {
			s = &OperationSummary{Operation: op, ByStatus: make(map[string]uint64)}
			byOp[op] = s
		}
		return s
	}

	for _, family := range families {
		switch family.GetName() {
		case operationsTotalName:
			for _, m := range family.GetMetric() {
				s := get(label(m, "operation"))
				s.ByStatus[label(m, "status")] += uint64(m.GetCounter().GetValue())
			}
		case operationDurationName:
			for _, m := range family.GetMetric() {
				s := get(label(m, "operation"))
				h := m.GetHistogram()
				s.Count = h.GetSampleCount()
				if s.Count > 0 {
					s.AvgLatency = seconds(h.GetSampleSum() / float64(s.Count))
				}
				s.P95Latency = quantile(h, 0.95)
				s.P99Latency = quantile(h, 0.99)
				s.MaxLatency = quantile(h, 1)
			}
		}
	}

	out := make([]OperationSummary, 0, len(byOp))
	for _, s := range byOp {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operation < out[j].Operation })
	return out, nil
}

func label(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func quantile(h *dto.Histogram, q float64) time.Duration {
	total := h.GetSampleCount()
	if total == 0 {
		return 0
	}
	rank := uint64(math.Ceil(q * float64(total)))
	for _, b := range h.GetBucket() {
		if b.GetCumulativeCount() >= rank {
			return seconds(b.GetUpperBound())
		}
	}
	// Beyond the last finite bucket.
	buckets := h.GetBucket()
	if len(buckets) == 0 {
		return 0
	}
	return seconds(buckets[len(buckets)-1].GetUpperBound())
}

func seconds(v float64) time.Duration {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}
