package sql

import "hash/fnv"

// Record is one result row: an ordered tuple of field values in schema order.
// Fields are text; typed interpretation happens inside the engine.
type Record []string

// Equal reports field-wise equality.
func (r Record) Equal(other Record) bool {
	if len(r) != len(other) {
		return false
	}
	for i := range r {
		if r[i] != other[i] {
			return false
		}
	}
	return true
}

// Hash returns a stable hash consistent with Equal, used for de-duplication
// when merging result sets. Fields are length-prefixed so that
// ["ab","c"] and ["a","bc"] hash differently.
func (r Record) Hash() uint64 {
	h := fnv.New64a()
	var sep [1]byte
	for _, field := range r {
		sep[0] = byte(len(field))
		h.Write(sep[:])
		h.Write([]byte(field))
		sep[0] = 0
		h.Write(sep[:])
	}
	return h.Sum64()
}

// Predicate is a row filter produced by the engine's comparator factory and
// composed by the executor. It must capture any compared value by value so it
// remains valid after the originating condition list is gone.
type Predicate func(Record) bool

// True is the constant-true predicate used when a conjunct has no residual
// conditions.
func True(Record) bool { return true }
