// Package workload drives a ycsb.DB with a reduced YCSB core workload: a load
// phase inserting the initial records and a run phase mixing reads, updates,
// scans, inserts and deletes by proportion.
package workload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nimburion/esbench/pkg/observability/logger"
	"github.com/nimburion/esbench/pkg/observability/metrics"
	"github.com/nimburion/esbench/pkg/ycsb"
)

// Phase names a workload phase.
type Phase string

const (
	PhaseLoad Phase = "load"
	PhaseRun  Phase = "run"
)

// Option configures a Workload.
type Option func(*Workload)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log logger.Logger) Option {
	return func(w *Workload) { w.log = log }
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(w *Workload) { w.runID = id }
}

// WithSeed makes key and value generation reproducible.
func WithSeed(seed uint64) Option {
	return func(w *Workload) { w.seed = seed }
}

// WithRegistry records into reg instead of a fresh registry per phase, so the
// collectors can be exposed while the workload runs. Samples then accumulate
// across phases.
func WithRegistry(reg *metrics.Registry) Option {
	return func(w *Workload) { w.reg = reg }
}

// Workload runs benchmark phases against DB instances built by a ycsb.Creator.
type Workload struct {
	cfg     Config
	props   ycsb.Properties
	creator ycsb.Creator
	log     logger.Logger
	runID   string
	seed    uint64
	reg     *metrics.Registry
	ops     *metrics.Operations

	nextInsert atomic.Int64
}

// New validates the workload properties. props are also handed to every DB the
// creator builds.
func New(creator ycsb.Creator, props ycsb.Properties, opts ...Option) (*Workload, error) {
	if creator == nil {
		return nil, errors.New("db creator is required")
	}
	cfg, err := ConfigFromProperties(props)
	if err != nil {
		return nil, fmt.Errorf("invalid workload: %w", err)
	}
	w := &Workload{
		cfg:     cfg,
		props:   props.Clone(),
		creator: creator,
		log:     logger.NewNop(),
		runID:   uuid.NewString(),
		seed:    uint64(time.Now().UnixNano()),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.reg != nil {
		if w.ops, err = metrics.NewOperations(w.reg); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Config returns the validated workload parameters.
func (w *Workload) Config() Config { return w.cfg }

// RunID returns the identifier attached to every log entry of this workload.
func (w *Workload) RunID() string { return w.runID }

// Result summarises one phase.
type Result struct {
	Phase      Phase
	RunID      string
	Threads    int
	Operations int64
	Duration   time.Duration
	// Throughput is completed operations per second.
	Throughput float64
	Summary    []metrics.OperationSummary
	// Registry holds the collectors recorded during the phase.
	Registry *metrics.Registry
}

// Count returns how many operations finished with status across all kinds.
func (r *Result) Count(status ycsb.Status) uint64 {
	var n uint64
	for _, s := range r.Summary {
		n += s.ByStatus[status.String()]
	}
	return n
}

// Operation returns the summary for op, if any operation of that kind ran.
func (r *Result) Operation(op string) (metrics.OperationSummary, bool) {
	for _, s := range r.Summary {
		if s.Operation == op {
			return s, true
		}
	}
	return metrics.OperationSummary{}, false
}

// step performs operation number seq and reports its kind and status.
type step func(ctx context.Context, db ycsb.DB, g *generator, seq int64) (string, ycsb.Status)

// Load inserts records [insertstart, insertstart+recordcount).
func (w *Workload) Load(ctx context.Context) (*Result, error) {
	cfg := w.cfg
	return w.execute(ctx, PhaseLoad, cfg.RecordCount, func(ctx context.Context, db ycsb.DB, g *generator, seq int64) (string, ycsb.Status) {
		key := Key(cfg.KeyPrefix, cfg.InsertStart+seq)
		return OpInsert, db.Insert(ctx, cfg.Table, key, g.record())
	})
}

// Run executes operationcount operations chosen by proportion over uniformly
// chosen loaded keys. Inserts append keys after the loaded range.
func (w *Workload) Run(ctx context.Context) (*Result, error) {
	cfg := w.cfg
	w.nextInsert.Store(cfg.InsertStart + cfg.RecordCount)
	choose := newChooser(cfg)

	return w.execute(ctx, PhaseRun, cfg.OperationCount, func(ctx context.Context, db ycsb.DB, g *generator, _ int64) (string, ycsb.Status) {
		op := choose.next(g.rng)
		switch op {
		case OpRead:
			_, status := db.Read(ctx, cfg.Table, g.existingKey(), g.readFields())
			return op, status
		case OpUpdate:
			return op, db.Update(ctx, cfg.Table, g.existingKey(), g.updateRecord())
		case OpScan:
			_, status := db.Scan(ctx, cfg.Table, g.existingKey(), g.scanLength(), g.readFields())
			return op, status
		case OpInsert:
			key := Key(cfg.KeyPrefix, w.nextInsert.Add(1)-1)
			return op, db.Insert(ctx, cfg.Table, key, g.record())
		default:
			return OpDelete, db.Delete(ctx, cfg.Table, g.existingKey())
		}
	})
}

func (w *Workload) execute(ctx context.Context, phase Phase, total int64, fn step) (*Result, error) {
	reg, ops := w.reg, w.ops
	if ops == nil {
		reg = metrics.NewRegistry(false)
		var err error
		if ops, err = metrics.NewOperations(reg); err != nil {
			return nil, err
		}
	}

	ctx = logger.ContextWithRunID(ctx, w.runID)
	log := w.log.WithContext(ctx).With("phase", string(phase))

	var limiter *rate.Limiter
	if w.cfg.Target > 0 {
		limiter = rate.NewLimiter(rate.Limit(w.cfg.Target), 1)
	}

	log.Info("starting workload phase",
		"threads", w.cfg.Threads,
		"operations", total,
		"target", w.cfg.Target,
	)

	var (
		claimed   atomic.Int64
		completed atomic.Int64
		initMu    sync.Mutex
		ready     sync.WaitGroup
		wg        sync.WaitGroup
	)
	begin := make(chan struct{})
	errs := make([]error, w.cfg.Threads)
	for i := 0; i < w.cfg.Threads; i++ {
		wg.Add(1)
		ready.Add(1)
		go func(id int) {
			defer wg.Done()
			workerCtx := logger.ContextWithWorkerID(ctx, id)
			errs[id] = w.worker(workerCtx, id, &initMu, &ready, begin, func(ctx context.Context, db ycsb.DB, g *generator) error {
				for {
					seq := claimed.Add(1) - 1
					if seq >= total {
						return nil
					}
					if limiter != nil {
						if err := limiter.Wait(ctx); err != nil {
							return err
						}
					}
					if err := ctx.Err(); err != nil {
						return err
					}
					start := time.Now()
					op, status := fn(ctx, db, g, seq)
					ops.Observe(op, status.String(), time.Since(start))
					completed.Add(1)
				}
			})
		}(i)
	}
	ready.Wait()
	start := time.Now()
	close(begin)
	wg.Wait()
	elapsed := time.Since(start)

	summary, err := ops.Summary()
	if err != nil {
		return nil, err
	}
	result := &Result{
		Phase:      phase,
		RunID:      w.runID,
		Threads:    w.cfg.Threads,
		Operations: completed.Load(),
		Duration:   elapsed,
		Summary:    summary,
		Registry:   reg,
	}
	if elapsed > 0 {
		result.Throughput = float64(result.Operations) / elapsed.Seconds()
	}

	if err := errors.Join(errs...); err != nil {
		log.Error("workload phase failed", "error", err, "operations", result.Operations)
		return result, err
	}
	log.Info("workload phase finished",
		"operations", result.Operations,
		"duration", elapsed.String(),
		"throughput", result.Throughput,
		"errors", result.Count(ycsb.StatusError),
	)
	return result, nil
}

// worker owns one DB for its whole life. Inits are serialized so that index
// provisioning by one worker cannot race another; operations start together once
// every worker is ready.
func (w *Workload) worker(
	ctx context.Context,
	id int,
	initMu *sync.Mutex,
	ready *sync.WaitGroup,
	begin <-chan struct{},
	loop func(ctx context.Context, db ycsb.DB, g *generator) error,
) (err error) {
	log := w.log.WithContext(ctx)

	db, err := w.initDB(ctx, initMu)
	ready.Done()
	if err != nil {
		return fmt.Errorf("worker %d: %w", id, err)
	}
	defer func() {
		if cleanupErr := db.Cleanup(context.WithoutCancel(ctx)); cleanupErr != nil {
			log.Warn("failed to clean up db", "error", cleanupErr)
			if err == nil {
				err = fmt.Errorf("worker %d: cleanup db: %w", id, cleanupErr)
			}
		}
	}()

	<-begin
	if err := loop(ctx, db, newGenerator(w.cfg, w.seed+uint64(id))); err != nil {
		return fmt.Errorf("worker %d: %w", id, err)
	}
	return nil
}

func (w *Workload) initDB(ctx context.Context, initMu *sync.Mutex) (ycsb.DB, error) {
	initMu.Lock()
	defer initMu.Unlock()
	db, err := w.creator(w.props.Clone())
	if err != nil {
		return nil, fmt.Errorf("create db: %w", err)
	}
	if err := db.Init(ctx); err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}
	return db, nil
}
