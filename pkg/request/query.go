package request

import (
	"fmt"
	"reflect"
	"slices"
)

// SortKey is the query key the remote service requires in first position.
const SortKey = "sort"

// Query is an insertion-ordered multimap of query parameters.
// The zero value is ready to use. Query is not safe for concurrent mutation.
type Query struct {
	keys   []string
	values map[string][]string
}

// NewQuery returns an empty Query.
func NewQuery() *Query {
	return &Query{}
}

// Set replaces the values stored under key. A key that already exists keeps
// its original position. Each value is formatted with fmt.Sprint; a slice or
// array value expands to one element per entry, in order.
func (q *Query) Set(key string, values ...any) *Query {
	if q.values == nil {
		q.values = make(map[string][]string)
	}
	if _, ok := q.values[key]; !ok {
		q.keys = append(q.keys, key)
	}
	q.values[key] = flatten(values)
	return q
}

// Add appends values to key, creating it at the end of the order if needed.
func (q *Query) Add(key string, values ...any) *Query {
	if q.values == nil {
		q.values = make(map[string][]string)
	}
	if _, ok := q.values[key]; !ok {
		q.keys = append(q.keys, key)
	}
	q.values[key] = append(q.values[key], flatten(values)...)
	return q
}

// Del removes key and its values.
func (q *Query) Del(key string) *Query {
	if q == nil || q.values == nil {
		return q
	}
	if _, ok := q.values[key]; !ok {
		return q
	}
	delete(q.values, key)
	q.keys = slices.DeleteFunc(q.keys, func(k string) bool { return k == key })
	return q
}

// Get returns the values stored under key.
func (q *Query) Get(key string) []string {
	if q == nil {
		return nil
	}
	return slices.Clone(q.values[key])
}

// Has reports whether key is present.
func (q *Query) Has(key string) bool {
	if q == nil {
		return false
	}
	_, ok := q.values[key]
	return ok
}

// Keys returns the keys in insertion order.
func (q *Query) Keys() []string {
	if q == nil {
		return nil
	}
	return slices.Clone(q.keys)
}

// Len returns the number of distinct keys.
func (q *Query) Len() int {
	if q == nil {
		return 0
	}
	return len(q.keys)
}

// Clone returns a deep copy of q.
func (q *Query) Clone() *Query {
	c := &Query{}
	if q == nil {
		return c
	}
	c.keys = slices.Clone(q.keys)
	c.values = make(map[string][]string, len(q.values))
	for k, v := range q.values {
		c.values[k] = slices.Clone(v)
	}
	return c
}

// ordered returns the emission order: "sort" first when present, then the
// remaining keys in insertion order.
func (q *Query) ordered() []string {
	if q == nil {
		return nil
	}
	out := make([]string, 0, len(q.keys))
	if q.Has(SortKey) {
		out = append(out, SortKey)
	}
	for _, k := range q.keys {
		if k != SortKey {
			out = append(out, k)
		}
	}
	return out
}

func flatten(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		rv := reflect.ValueOf(v)
		if rv.IsValid() && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Type().Elem().Kind() != reflect.Uint8 {
			for i := range rv.Len() {
				out = append(out, fmt.Sprint(rv.Index(i).Interface()))
			}
			continue
		}
		out = append(out, fmt.Sprint(v))
	}
	return out
}
