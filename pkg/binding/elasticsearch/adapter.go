// Package elasticsearch is the benchmark binding for Elasticsearch-compatible document stores.
//
// Every document written by the binding carries its record key in the keyword field
// KeyField, which backs range scans. The field is never returned to the caller.
package elasticsearch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nimburion/esbench/pkg/config"
	"github.com/nimburion/esbench/pkg/observability/logger"
	"github.com/nimburion/esbench/pkg/observability/metrics"
	"github.com/nimburion/esbench/pkg/observability/tracing"
	"github.com/nimburion/esbench/pkg/resilience"
	"github.com/nimburion/esbench/pkg/store"
	"github.com/nimburion/esbench/pkg/store/search"
	"github.com/nimburion/esbench/pkg/ycsb"
)

// KeyField is the reserved keyword field holding the record key.
const KeyField = "ycsb_key"

// healthGrace is added on top of the server-side green wait before the client gives up.
const healthGrace = 5 * time.Second

// Operation names used for metrics and logs.
const (
	OpRead   = "READ"
	OpScan   = "SCAN"
	OpUpdate = "UPDATE"
	OpInsert = "INSERT"
	OpDelete = "DELETE"
)

// ClientFactory builds the document client for a validated configuration.
type ClientFactory func(ctx context.Context, cfg *config.Config, log logger.Logger) (search.Client, error)

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log logger.Logger) Option {
	return func(a *Adapter) { a.log = log }
}

// WithRecorder records every operation outcome.
func WithRecorder(rec metrics.Recorder) Option {
	return func(a *Adapter) { a.recorder = rec }
}

// WithClientFactory replaces the client factory, store.NewClient by default.
func WithClientFactory(factory ClientFactory) Option {
	return func(a *Adapter) { a.newClient = factory }
}

// Adapter implements ycsb.DB. One Adapter serves one worker; it is not safe for
// concurrent use.
type Adapter struct {
	props     ycsb.Properties
	cfg       *config.Config
	client    search.Client
	baseLog   logger.Logger
	log       logger.Logger
	recorder  metrics.Recorder
	newClient ClientFactory
	system    string
	// indices holds the indices known to carry the key mapping.
	indices map[string]bool
}

// New returns an uninitialized adapter reading its settings from props.
func New(props ycsb.Properties, opts ...Option) *Adapter {
	a := &Adapter{
		props:     props.Clone(),
		log:       logger.NewNop(),
		newClient: store.NewClient,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.baseLog = a.log
	return a
}

// NewCreator returns a ycsb.Creator building adapters with opts.
func NewCreator(opts ...Option) ycsb.Creator {
	return func(props ycsb.Properties) (ycsb.DB, error) {
		return New(props, opts...), nil
	}
}

// Config returns the validated configuration, or nil before Init.
func (a *Adapter) Config() *config.Config { return a.cfg }

// Init validates the configuration, connects, provisions the target index and
// waits for the cluster to turn green.
func (a *Adapter) Init(ctx context.Context) error {
	cfg, err := config.FromProperties(a.props)
	if err != nil {
		return newError("init", KindConfiguration, err)
	}
	a.cfg = cfg
	a.log = a.baseLog.WithContext(ctx).With("component", "elasticsearch", "cluster_name", cfg.ClusterName)
	a.system = "sqlite"
	if cfg.Remote {
		a.system = "elasticsearch"
	}

	a.log.Info("starting elasticsearch binding",
		"remote", cfg.Remote,
		"path_home", cfg.PathHome,
		"index", cfg.IndexKey,
	)
	if cfg.Remote {
		a.log.Info("elasticsearch remote hosts", "hosts", strings.Join(cfg.Hosts, ","), "driver", cfg.Search.Driver)
	}

	ctx, span := tracing.StartDatabaseSpan(ctx, tracing.SpanOperationDBInit,
		tracing.WithDBTable(cfg.IndexKey), tracing.WithDBSystem(a.system))
	defer span.End()

	client, err := a.newClient(ctx, cfg, a.log)
	if err != nil {
		tracing.RecordError(span, err)
		return classify("init", err)
	}
	a.client = client
	a.indices = make(map[string]bool)

	if err := a.provision(ctx); err != nil {
		tracing.RecordError(span, err)
		a.client = nil
		if closeErr := client.Close(); closeErr != nil {
			a.log.Warn("failed to close client after init failure", "error", closeErr)
		}
		return classify("init", err)
	}
	tracing.RecordSuccess(span)
	return nil
}

func (a *Adapter) provision(ctx context.Context) error {
	cfg := a.cfg
	exists, err := a.client.IndexExists(ctx, cfg.IndexKey)
	if err != nil {
		return fmt.Errorf("check index %s: %w", cfg.IndexKey, err)
	}
	if exists && cfg.NewDB {
		a.log.Info("deleting existing index", "index", cfg.IndexKey)
		if err := a.client.DeleteIndex(ctx, cfg.IndexKey); err != nil {
			return fmt.Errorf("delete index %s: %w", cfg.IndexKey, err)
		}
	}
	if !exists || cfg.NewDB {
		a.log.Info("creating index",
			"index", cfg.IndexKey,
			"shards", cfg.NumberOfShards,
			"replicas", cfg.NumberOfReplicas,
		)
		if err := a.client.CreateIndex(ctx, cfg.IndexKey, a.indexSettings()); err != nil {
			return fmt.Errorf("create index %s: %w", cfg.IndexKey, err)
		}
	}
	a.indices[cfg.IndexKey] = true

	var health *search.ClusterHealth
	err = resilience.WithTimeout(ctx, cfg.HealthTimeout+healthGrace, func(ctx context.Context) error {
		var err error
		health, err = a.client.WaitForStatus(ctx, search.HealthGreen, cfg.HealthTimeout)
		return err
	})
	if err != nil {
		return fmt.Errorf("wait for green cluster health: %w", err)
	}
	a.log.Info("cluster is green", "nodes", health.NumberOfNodes)
	return nil
}

func (a *Adapter) indexSettings() search.IndexSettings {
	return search.IndexSettings{
		Shards:        a.cfg.NumberOfShards,
		Replicas:      a.cfg.NumberOfReplicas,
		KeywordFields: []string{KeyField},
	}
}

// ensureIndex creates index with the key mapping before the first write to it.
// Left to dynamic mapping, KeyField would be indexed as text and could not be
// sorted on by range scans.
func (a *Adapter) ensureIndex(ctx context.Context, index string) error {
	if a.indices[index] {
		return nil
	}
	exists, err := a.client.IndexExists(ctx, index)
	if err != nil {
		return fmt.Errorf("check index %s: %w", index, err)
	}
	if !exists {
		a.log.Info("creating index", "index", index, "shards", a.cfg.NumberOfShards, "replicas", a.cfg.NumberOfReplicas)
		if err := a.client.CreateIndex(ctx, index, a.indexSettings()); err != nil {
			// Another worker may have created it first.
			if exists, existsErr := a.client.IndexExists(ctx, index); existsErr != nil || !exists {
				return fmt.Errorf("create index %s: %w", index, err)
			}
		}
	}
	a.indices[index] = true
	return nil
}

// Cleanup releases the client. Calling it again is a no-op.
func (a *Adapter) Cleanup(ctx context.Context) error {
	if a.client == nil {
		return nil
	}
	client := a.client
	a.client = nil
	if err := client.Close(); err != nil {
		return newError("cleanup", KindTransport, err)
	}
	return nil
}

// HealthCheck verifies the client can reach the store.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if a.client == nil {
		return ErrNotInitialized
	}
	return a.client.HealthCheck(ctx)
}

// Read fetches one record.
func (a *Adapter) Read(ctx context.Context, table, key string, fields []string) (ycsb.Record, ycsb.Status) {
	var record ycsb.Record
	status := a.do(ctx, OpRead, tracing.SpanOperationDBRead, table, key, func(ctx context.Context, index string) error {
		source, err := a.get(ctx, index, key)
		if err != nil {
			return err
		}
		record = toRecord(source, fields)
		return nil
	}, tracing.WithDBKey(key))
	if status != ycsb.StatusOK {
		return nil, status
	}
	return record, status
}

// Scan returns up to count records starting at startKey. In single mode only the
// record at startKey is returned.
func (a *Adapter) Scan(ctx context.Context, table, startKey string, count int, fields []string) ([]ycsb.Record, ycsb.Status) {
	var records []ycsb.Record
	status := a.do(ctx, OpScan, tracing.SpanOperationDBScan, table, startKey, func(ctx context.Context, index string) error {
		if count <= 0 {
			return newError("scan", KindConfiguration, fmt.Errorf("record count must be positive, got %d", count))
		}
		if a.cfg.ScanMode == config.ScanModeSingle {
			source, err := a.get(ctx, index, startKey)
			if err != nil {
				return err
			}
			records = []ycsb.Record{toRecord(source, fields)}
			return nil
		}

		docs, err := a.client.ScanDocuments(ctx, search.ScanRequest{
			Index:    index,
			KeyField: KeyField,
			StartKey: startKey,
			Count:    count,
			Fields:   fields,
		})
		if err != nil {
			return err
		}
		records = make([]ycsb.Record, 0, len(docs))
		for _, doc := range docs {
			records = append(records, toRecord(doc.Source, fields))
		}
		return nil
	}, tracing.WithDBKey(startKey), tracing.WithDBRecordCount(count))
	if status != ycsb.StatusOK {
		return nil, status
	}
	return records, status
}

// Update merges values over the stored record.
func (a *Adapter) Update(ctx context.Context, table, key string, values ycsb.Record) ycsb.Status {
	return a.do(ctx, OpUpdate, tracing.SpanOperationDBUpdate, table, key, func(ctx context.Context, index string) error {
		if err := checkValues("update", values); err != nil {
			return err
		}
		source, err := a.get(ctx, index, key)
		if err != nil {
			return err
		}
		for field, value := range ycsb.StringMap(values) {
			source[field] = value
		}
		return a.client.UpdateDocument(ctx, index, key, source)
	}, tracing.WithDBKey(key))
}

// Insert writes a new record.
func (a *Adapter) Insert(ctx context.Context, table, key string, values ycsb.Record) ycsb.Status {
	return a.do(ctx, OpInsert, tracing.SpanOperationDBInsert, table, key, func(ctx context.Context, index string) error {
		if err := checkValues("insert", values); err != nil {
			return err
		}
		if err := a.ensureIndex(ctx, index); err != nil {
			return err
		}
		doc := make(map[string]any, len(values)+1)
		for field, value := range ycsb.StringMap(values) {
			doc[field] = value
		}
		doc[KeyField] = key
		return a.client.IndexDocument(ctx, index, a.documentID(key), doc)
	}, tracing.WithDBKey(key))
}

// Delete removes a record.
func (a *Adapter) Delete(ctx context.Context, table, key string) ycsb.Status {
	return a.do(ctx, OpDelete, tracing.SpanOperationDBDelete, table, key, func(ctx context.Context, index string) error {
		return a.client.DeleteDocument(ctx, index, a.documentID(key))
	}, tracing.WithDBKey(key))
}

// do runs one data operation and reports it to the span, the recorder and the log.
func (a *Adapter) do(
	ctx context.Context,
	op string,
	spanOp tracing.SpanOperation,
	table, key string,
	fn func(ctx context.Context, index string) error,
	spanOpts ...tracing.DatabaseSpanOption,
) ycsb.Status {
	start := time.Now()
	if a.client == nil {
		a.observe(op, ycsb.StatusError, start)
		return ycsb.StatusError
	}
	index := a.index(table)

	spanOpts = append(spanOpts, tracing.WithDBTable(index), tracing.WithDBSystem(a.system))
	ctx, span := tracing.StartDatabaseSpan(ctx, spanOp, spanOpts...)
	defer span.End()

	status := ycsb.StatusOK
	err := fn(ctx, index)
	if err != nil {
		bindErr := classify(strings.ToLower(op), err)
		status = bindErr.Kind.Status()
		if bindErr.Kind != KindNotFound {
			a.log.Debug("operation failed",
				"operation", op,
				"index", index,
				"key", key,
				"kind", bindErr.Kind.String(),
				"error", err,
			)
		}
		err = bindErr
	}
	if status == ycsb.StatusNotFound {
		tracing.RecordStatus(span, status.String(), nil)
	} else {
		tracing.RecordStatus(span, status.String(), err)
	}
	a.observe(op, status, start)
	return status
}

func (a *Adapter) observe(op string, status ycsb.Status, start time.Time) {
	if a.recorder != nil {
		a.recorder.Observe(op, status.String(), time.Since(start))
	}
}

// get fetches a document source, reporting absence as KindNotFound.
func (a *Adapter) get(ctx context.Context, index, key string) (map[string]any, error) {
	source, found, err := a.client.GetDocument(ctx, index, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, newError("get", KindNotFound, fmt.Errorf("document %s/%s: %w", index, key, search.ErrNotFound))
	}
	return source, nil
}

func (a *Adapter) index(table string) string {
	if strings.TrimSpace(table) == "" {
		return a.cfg.IndexKey
	}
	return table
}

// documentID returns the identity used by Insert and Delete. Legacy mode addresses
// every write to the index key, which is how the historical binding behaved.
func (a *Adapter) documentID(key string) string {
	if a.cfg.LegacyFixedID {
		return a.cfg.IndexKey
	}
	return key
}

// checkValues rejects writes that name the reserved key field.
func checkValues(op string, values ycsb.Record) error {
	if _, ok := values[KeyField]; ok {
		return newError(op, KindConfiguration, fmt.Errorf("field %s is reserved for the record key", KeyField))
	}
	return nil
}

// toRecord converts a document source into a record. Only string values are kept;
// requested fields missing from the source are omitted.
func toRecord(source map[string]any, fields []string) ycsb.Record {
	record := make(ycsb.Record, len(source))
	put := func(field string) {
		if field == KeyField {
			return
		}
		if value, ok := source[field].(string); ok {
			record[field] = ycsb.NewStringByteIterator(value)
		}
	}
	if len(fields) > 0 {
		for _, field := range fields {
			put(field)
		}
		return record
	}
	for field := range source {
		put(field)
	}
	return record
}

var _ ycsb.DB = (*Adapter)(nil)
