package workload

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nimburion/esbench/pkg/config"
	"github.com/nimburion/esbench/pkg/ycsb"
)

// Workload property keys.
const (
	KeyRecordCount      = "recordcount"
	KeyOperationCount   = "operationcount"
	KeyThreadCount      = "threadcount"
	KeyTarget           = "target"
	KeyFieldCount       = "fieldcount"
	KeyFieldLength      = "fieldlength"
	KeyReadProportion   = "readproportion"
	KeyUpdateProportion = "updateproportion"
	KeyScanProportion   = "scanproportion"
	KeyInsertProportion = "insertproportion"
	KeyDeleteProportion = "deleteproportion"
	KeyMaxScanLength    = "maxscanlength"
	KeyReadAllFields    = "readallfields"
	KeyTable            = "table"
	KeyInsertStart      = "insertstart"
	KeyKeyPrefix        = "keyprefix"
)

// Config holds the core workload parameters.
type Config struct {
	RecordCount    int64
	OperationCount int64
	Threads        int
	// Target is the overall operations per second; zero means unthrottled.
	Target           float64
	FieldCount       int
	FieldLength      int
	ReadProportion   float64
	UpdateProportion float64
	ScanProportion   float64
	InsertProportion float64
	DeleteProportion float64
	MaxScanLength    int
	ReadAllFields    bool
	// Table is passed to every operation. Empty selects the binding's configured index.
	Table       string
	InsertStart int64
	KeyPrefix   string
}

// DefaultConfig returns the read-mostly defaults of the YCSB core workload.
func DefaultConfig() Config {
	return Config{
		RecordCount:      1000,
		OperationCount:   1000,
		Threads:          1,
		FieldCount:       10,
		FieldLength:      100,
		ReadProportion:   0.95,
		UpdateProportion: 0.05,
		MaxScanLength:    1000,
		ReadAllFields:    true,
		KeyPrefix:        "user",
	}
}

// KnownKeys lists the workload property keys.
func KnownKeys() []string {
	return []string{
		KeyRecordCount, KeyOperationCount, KeyThreadCount, KeyTarget,
		KeyFieldCount, KeyFieldLength,
		KeyReadProportion, KeyUpdateProportion, KeyScanProportion, KeyInsertProportion, KeyDeleteProportion,
		KeyMaxScanLength, KeyReadAllFields, KeyTable, KeyInsertStart, KeyKeyPrefix,
	}
}

// ConfigFromProperties reads and validates the workload parameters.
func ConfigFromProperties(props ycsb.Properties) (Config, error) {
	cfg := DefaultConfig()
	d := config.NewDecoder(props)

	cfg.RecordCount = d.Int64(KeyRecordCount, cfg.RecordCount)
	cfg.OperationCount = d.Int64(KeyOperationCount, cfg.OperationCount)
	cfg.Threads = d.Int(KeyThreadCount, cfg.Threads)
	cfg.Target = d.Float(KeyTarget, cfg.Target)
	cfg.FieldCount = d.Int(KeyFieldCount, cfg.FieldCount)
	cfg.FieldLength = d.Int(KeyFieldLength, cfg.FieldLength)
	cfg.ReadProportion = d.Float(KeyReadProportion, cfg.ReadProportion)
	cfg.UpdateProportion = d.Float(KeyUpdateProportion, cfg.UpdateProportion)
	cfg.ScanProportion = d.Float(KeyScanProportion, cfg.ScanProportion)
	cfg.InsertProportion = d.Float(KeyInsertProportion, cfg.InsertProportion)
	cfg.DeleteProportion = d.Float(KeyDeleteProportion, cfg.DeleteProportion)
	cfg.MaxScanLength = d.Int(KeyMaxScanLength, cfg.MaxScanLength)
	cfg.ReadAllFields = d.Bool(KeyReadAllFields, cfg.ReadAllFields)
	cfg.Table = d.String(KeyTable, cfg.Table)
	cfg.InsertStart = d.Int64(KeyInsertStart, cfg.InsertStart)
	cfg.KeyPrefix = d.String(KeyKeyPrefix, cfg.KeyPrefix)

	if err := d.Err(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the workload parameters and returns every problem found.
func (c Config) Validate() error {
	var errs []error
	if c.RecordCount < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative", KeyRecordCount))
	}
	if c.OperationCount < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative", KeyOperationCount))
	}
	if c.Threads < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", KeyThreadCount))
	}
	if c.Target < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative", KeyTarget))
	}
	if c.FieldCount < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", KeyFieldCount))
	}
	if c.FieldLength < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative", KeyFieldLength))
	}
	if c.MaxScanLength < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", KeyMaxScanLength))
	}
	if c.InsertStart < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative", KeyInsertStart))
	}
	if strings.TrimSpace(c.KeyPrefix) == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty", KeyKeyPrefix))
	}

	proportions := map[string]float64{
		KeyReadProportion:   c.ReadProportion,
		KeyUpdateProportion: c.UpdateProportion,
		KeyScanProportion:   c.ScanProportion,
		KeyInsertProportion: c.InsertProportion,
		KeyDeleteProportion: c.DeleteProportion,
	}
	var total float64
	for _, key := range []string{KeyReadProportion, KeyUpdateProportion, KeyScanProportion, KeyInsertProportion, KeyDeleteProportion} {
		if proportions[key] < 0 {
			errs = append(errs, fmt.Errorf("%s cannot be negative", key))
		}
		total += proportions[key]
	}
	if total <= 0 {
		errs = append(errs, errors.New("at least one operation proportion must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
