package workload

import (
	"math/rand/v2"
	"strconv"

	"github.com/nimburion/esbench/pkg/ycsb"
)

// Operation kinds chosen by the run phase.
const (
	OpRead   = "READ"
	OpUpdate = "UPDATE"
	OpScan   = "SCAN"
	OpInsert = "INSERT"
	OpDelete = "DELETE"
)

const valueAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// chooser picks an operation with probability proportional to its weight.
type chooser struct {
	ops     []string
	weights []float64
	total   float64
}

func newChooser(cfg Config) *chooser {
	c := &chooser{}
	for _, w := range []struct {
		op     string
		weight float64
	}{
		{OpRead, cfg.ReadProportion},
		{OpUpdate, cfg.UpdateProportion},
		{OpScan, cfg.ScanProportion},
		{OpInsert, cfg.InsertProportion},
		{OpDelete, cfg.DeleteProportion},
	} {
		if w.weight > 0 {
			c.ops = append(c.ops, w.op)
			c.weights = append(c.weights, w.weight)
			c.total += w.weight
		}
	}
	return c
}

func (c *chooser) next(rng *rand.Rand) string {
	x := rng.Float64() * c.total
	for i, w := range c.weights {
		if x < w {
			return c.ops[i]
		}
		x -= w
	}
	return c.ops[len(c.ops)-1]
}

// generator produces keys, field names and values for one worker.
type generator struct {
	cfg Config
	rng *rand.Rand
}

func newGenerator(cfg Config, seed uint64) *generator {
	return &generator{cfg: cfg, rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Key builds the record key for sequence number n.
func Key(prefix string, n int64) string {
	return prefix + strconv.FormatInt(n, 10)
}

// FieldName returns the name of field i.
func FieldName(i int) string {
	return "field" + strconv.Itoa(i)
}

// existingKey picks a key uniformly among the loaded records.
func (g *generator) existingKey() string {
	n := g.cfg.InsertStart
	if g.cfg.RecordCount > 0 {
		n += g.rng.Int64N(g.cfg.RecordCount)
	}
	return Key(g.cfg.KeyPrefix, n)
}

func (g *generator) value() ycsb.ByteIterator {
	b := make([]byte, g.cfg.FieldLength)
	for i := range b {
		b[i] = valueAlphabet[g.rng.IntN(len(valueAlphabet))]
	}
	return ycsb.NewStringByteIterator(string(b))
}

// record builds a full record with every field set.
func (g *generator) record() ycsb.Record {
	r := make(ycsb.Record, g.cfg.FieldCount)
	for i := 0; i < g.cfg.FieldCount; i++ {
		r[FieldName(i)] = g.value()
	}
	return r
}

// updateRecord builds a record carrying one random field.
func (g *generator) updateRecord() ycsb.Record {
	return ycsb.Record{FieldName(g.rng.IntN(g.cfg.FieldCount)): g.value()}
}

// readFields returns nil when every field is read, else one random field.
func (g *generator) readFields() []string {
	if g.cfg.ReadAllFields {
		return nil
	}
	return []string{FieldName(g.rng.IntN(g.cfg.FieldCount))}
}

func (g *generator) scanLength() int {
	return 1 + g.rng.IntN(g.cfg.MaxScanLength)
}
