package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/nimburion/esbench/pkg/ycsb"
)

// Decoder reads typed values out of benchmark properties. Blank values fall
// back to the given default. Parse failures are collected and returned by Err.
type Decoder struct {
	props ycsb.Properties
	errs  []error
}

// NewDecoder returns a Decoder reading from props.
func NewDecoder(props ycsb.Properties) *Decoder {
	return &Decoder{props: props}
}

// Err returns every parse failure seen so far, or nil.
func (d *Decoder) Err() error {
	return errors.Join(d.errs...)
}

func (d *Decoder) lookup(key string) (string, bool) {
	v := strings.TrimSpace(d.props[key])
	return v, v != ""
}

func (d *Decoder) fail(key, kind, value string) {
	d.errs = append(d.errs, fmt.Errorf("property %s: invalid %s %q", key, kind, value))
}

// String returns the trimmed value for key, or def when unset.
func (d *Decoder) String(key, def string) string {
	if v, ok := d.lookup(key); ok {
		return v
	}
	return def
}

// Bool returns the value for key as a boolean.
func (d *Decoder) Bool(key string, def bool) bool {
	v, ok := d.lookup(key)
	if !ok {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		d.fail(key, "boolean", v)
		return def
	}
	return b
}

// Int returns the value for key as an int.
func (d *Decoder) Int(key string, def int) int {
	v, ok := d.lookup(key)
	if !ok {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		d.fail(key, "integer", v)
		return def
	}
	return n
}

// Int64 returns the value for key as an int64.
func (d *Decoder) Int64(key string, def int64) int64 {
	v, ok := d.lookup(key)
	if !ok {
		return def
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		d.fail(key, "integer", v)
		return def
	}
	return n
}

// Float returns the value for key as a float64.
func (d *Decoder) Float(key string, def float64) float64 {
	v, ok := d.lookup(key)
	if !ok {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		d.fail(key, "number", v)
		return def
	}
	return f
}

// Duration returns the value for key as a duration. A bare integer is read as
// milliseconds, anything else as a Go duration string.
func (d *Decoder) Duration(key string, def time.Duration) time.Duration {
	v, ok := d.lookup(key)
	if !ok {
		return def
	}
	if ms, err := cast.ToInt64E(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	if !strings.ContainsAny(v, "nsuµmh") {
		d.fail(key, "duration", v)
		return def
	}
	dur, err := cast.ToDurationE(v)
	if err != nil {
		d.fail(key, "duration", v)
		return def
	}
	return dur
}
