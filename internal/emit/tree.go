package emit

import (
	"sort"
	"strconv"
)

// Node is one value in the tagged value tree: an *OMap (insertion-ordered
// hash), a []Node (ordered list), or a scalar (string, int64, bool, nil).
type Node interface{}

// OMap is an insertion-ordered string-keyed map. A bare Go map would
// lose the scan order the unsorted emission mode needs and could vary
// its iteration order between runs; OMap makes the order an explicit,
// inspectable property instead.
type OMap struct {
	keys []string
	vals map[string]Node
}

// NewOMap returns an empty OMap.
func NewOMap() *OMap {
	return &OMap{vals: make(map[string]Node)}
}

// Put inserts or overwrites key, preserving first-insertion position on
// overwrite.
func (m *OMap) Put(key string, value Node) *OMap {
	if _, exists := m.vals[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = value
	return m
}

// Keys returns the map's keys in their current order.
func (m *OMap) Keys() []string { return m.keys }

// Get returns the value stored at key.
func (m *OMap) Get(key string) (Node, bool) {
	v, ok := m.vals[key]
	return v, ok
}

// Len returns the number of entries.
func (m *OMap) Len() int { return len(m.keys) }

// Sorted returns a shallow copy of m whose keys are ordered numerically
// (if every key parses as an integer) or lexicographically otherwise.
func (m *OMap) Sorted() *OMap {
	keys := append([]string(nil), m.keys...)
	if allNumeric(keys) {
		sort.Slice(keys, func(i, j int) bool {
			a, _ := strconv.ParseInt(keys[i], 10, 64)
			b, _ := strconv.ParseInt(keys[j], 10, 64)
			return a < b
		})
	} else {
		sort.Strings(keys)
	}
	return &OMap{keys: keys, vals: m.vals}
}

func allNumeric(keys []string) bool {
	if len(keys) == 0 {
		return false
	}
	for _, k := range keys {
		if _, err := strconv.ParseInt(k, 10, 64); err != nil {
			return false
		}
	}
	return true
}

// SortTree recursively sorts every OMap in n, implementing the --sort
// CLI flag.
func SortTree(n Node) Node {
	switch v := n.(type) {
	case *OMap:
		sorted := v.Sorted()
		for _, k := range sorted.keys {
			val, _ := sorted.Get(k)
			sorted.vals[k] = SortTree(val)
		}
		return sorted
	case []Node:
		out := make([]Node, len(v))
		for i, e := range v {
			out[i] = SortTree(e)
		}
		return out
	default:
		return n
	}
}
