package ycsb

import "sort"

// ByteIterator is a forward-only view over a field value.
type ByteIterator interface {
	// HasNext reports whether more bytes remain.
	HasNext() bool
	// NextByte returns the next byte. It panics when HasNext is false.
	NextByte() byte
	// BytesLeft returns the number of unread bytes.
	BytesLeft() int
	// Bytes returns the unread bytes and consumes them.
	Bytes() []byte
	// String returns the unread bytes as a string and consumes them.
	String() string
}

// StringByteIterator is a ByteIterator backed by a string.
type StringByteIterator struct {
	s   string
	off int
}

// NewStringByteIterator wraps s.
func NewStringByteIterator(s string) *StringByteIterator {
	return &StringByteIterator{s: s}
}

func (it *StringByteIterator) HasNext() bool {
	return it.off < len(it.s)
}

func (it *StringByteIterator) NextByte() byte {
	b := it.s[it.off]
	it.off++
	return b
}

func (it *StringByteIterator) BytesLeft() int {
	return len(it.s) - it.off
}

func (it *StringByteIterator) Bytes() []byte {
	return []byte(it.String())
}

func (it *StringByteIterator) String() string {
	rest := it.s[it.off:]
	it.off = len(it.s)
	return rest
}

// Record is a flat field-name to value map.
type Record map[string]ByteIterator

// RecordFromStrings wraps every value of m in a StringByteIterator.
func RecordFromStrings(m map[string]string) Record {
	r := make(Record, len(m))
	for k, v := range m {
		r[k] = NewStringByteIterator(v)
	}
	return r
}

// StringMap drains every iterator of r into a plain string map.
// Nil values are skipped.
func StringMap(r Record) map[string]string {
	out := make(map[string]string, len(r))
	for k, v := range r {
		if v == nil {
			continue
		}
		out[k] = v.String()
	}
	return out
}

// Fields returns the field names of r in sorted order.
func (r Record) Fields() []string {
	names := make([]string, 0, len(r))
	for k := range r {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
