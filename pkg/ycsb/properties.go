package ycsb

import (
	"fmt"
	"sort"
	"strings"
)

// Properties is the flat option map handed from the harness to bindings.
type Properties map[string]string

// Clone returns a copy of p that can be modified independently.
func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Keys returns the property names in sorted order.
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseAssignments turns "key=value" strings into properties.
func ParseAssignments(assignments []string) (Properties, error) {
	out := make(Properties, len(assignments))
	for _, a := range assignments {
		key, value, ok := strings.Cut(a, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid property %q (expected key=value)", a)
		}
		out[key] = value
	}
	return out, nil
}
