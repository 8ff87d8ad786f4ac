package ycsb

import (
	"strings"
	"testing"
)

func TestProperties_CloneAndKeys(t *testing.T) {
	p := Properties{"b": "2", "a": "1"}
	clone := p.Clone()
	clone["c"] = "3"
	if _, ok := p["c"]; ok {
		t.Fatal("Clone should not share storage with the original")
	}
	if got := strings.Join(clone.Keys(), ","); got != "a,b,c" {
		t.Fatalf("Keys() = %s, want a,b,c", got)
	}
}

func TestParseAssignments(t *testing.T) {
	props, err := ParseAssignments([]string{"es.remote=true", "es.hosts.list=a:1,b:2", "empty="})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if props["es.hosts.list"] != "a:1,b:2" {
		t.Fatalf("unexpected hosts value %q", props["es.hosts.list"])
	}
	if v, ok := props["empty"]; !ok || v != "" {
		t.Fatalf("expected empty assignment to be kept, got %q (%v)", v, ok)
	}

	if _, err := ParseAssignments([]string{"novalue"}); err == nil {
		t.Fatal("expected error for assignment without '='")
	}
	if _, err := ParseAssignments([]string{"=value"}); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestStringByteIterator(t *testing.T) {
	it := NewStringByteIterator("abc")
	if it.BytesLeft() != 3 {
		t.Fatalf("BytesLeft = %d, want 3", it.BytesLeft())
	}
	if b := it.NextByte(); b != 'a' {
		t.Fatalf("NextByte = %q, want 'a'", b)
	}
	if got := it.String(); got != "bc" {
		t.Fatalf("String = %q, want bc", got)
	}
	if it.HasNext() {
		t.Fatal("iterator should be drained")
	}
}

func TestRecordRoundTrip(t *testing.T) {
	in := map[string]string{"field0": "x", "field1": "y"}
	out := StringMap(RecordFromStrings(in))
	if len(out) != len(in) {
		t.Fatalf("got %d fields, want %d", len(out), len(in))
	}
	for k, v := range in {
		if out[k] != v {
			t.Fatalf("field %s = %q, want %q", k, out[k], v)
		}
	}

	fields := RecordFromStrings(in).Fields()
	if len(fields) != 2 || fields[0] != "field0" || fields[1] != "field1" {
		t.Fatalf("Fields() = %v", fields)
	}
}

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusOK:       "OK",
		StatusNotFound: "NOT_FOUND",
		StatusError:    "ERROR",
		Status(99):     "UNKNOWN",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", int(status), got, want)
		}
	}
}
