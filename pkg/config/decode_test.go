package config

import (
	"strings"
	"testing"
	"time"

	"github.com/nimburion/esbench/pkg/ycsb"
)

func TestDecoder(t *testing.T) {
	d := NewDecoder(ycsb.Properties{
		"flag":    "true",
		"count":   " 42 ",
		"big":     "9000000000",
		"rate":    "0.5",
		"timeout": "250",
		"wait":    "2s",
		"empty":   "   ",
	})

	if got := d.Bool("flag", false); !got {
		t.Fatalf("Bool(flag) = %v", got)
	}
	if got := d.Int("count", 0); got != 42 {
		t.Fatalf("Int(count) = %v", got)
	}
	if got := d.Int64("big", 0); got != 9000000000 {
		t.Fatalf("Int64(big) = %v", got)
	}
	if got := d.Float("rate", 0); got != 0.5 {
		t.Fatalf("Float(rate) = %v", got)
	}
	if got := d.Duration("timeout", 0); got != 250*time.Millisecond {
		t.Fatalf("Duration(timeout) = %v", got)
	}
	if got := d.Duration("wait", 0); got != 2*time.Second {
		t.Fatalf("Duration(wait) = %v", got)
	}
	if got := d.String("empty", "fallback"); got != "fallback" {
		t.Fatalf("String(empty) = %q, want fallback", got)
	}
	if got := d.Int("missing", 7); got != 7 {
		t.Fatalf("Int(missing) = %v", got)
	}
	if err := d.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
}

func TestDecoder_CollectsErrors(t *testing.T) {
	d := NewDecoder(ycsb.Properties{
		"flag":  "nope",
		"count": "many",
		"rate":  "fast",
		"wait":  "1.5",
	})

	if got := d.Bool("flag", true); !got {
		t.Fatal("invalid boolean should return the default")
	}
	if got := d.Int("count", 3); got != 3 {
		t.Fatalf("invalid integer should return the default, got %d", got)
	}
	d.Float("rate", 0)
	if got := d.Duration("wait", time.Second); got != time.Second {
		t.Fatalf("invalid duration should return the default, got %v", got)
	}

	err := d.Err()
	if err == nil {
		t.Fatal("expected collected errors")
	}
	for _, want := range []string{
		`property flag: invalid boolean "nope"`,
		`property count: invalid integer "many"`,
		`property rate: invalid number "fast"`,
		`property wait: invalid duration "1.5"`,
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %q in %v", want, err)
		}
	}
}
