package dedup

import (
	"fmt"
	"strings"

	"gleaner/internal/schema"
)

// ResultSet is the ordered, duplicate-free sequence of accepted records.
// Insertion order is preserved and the set only grows; finalization is a
// matter of the caller no longer adding to it.
type ResultSet struct {
	keyFields []string
	records   []schema.ValidatedRecord
	seen      map[string]struct{}
	dropped   int
}

// NewResultSet creates an empty set whose uniqueness invariant is defined by
// the given identity key fields. Comparison is case-insensitive over the
// joined field values.
func NewResultSet(keyFields []string) *ResultSet {
	return &ResultSet{
		keyFields: keyFields,
		seen:      make(map[string]struct{}),
	}
}

// Add appends the record unless an earlier record shares its identity key.
// First-seen wins; duplicates are dropped and counted, never merged.
// Reports whether the record was accepted.
func (rs *ResultSet) Add(record schema.ValidatedRecord) bool {
	key := rs.Key(record)
	if _, dup := rs.seen[key]; dup {
		rs.dropped++
		return false
	}
	rs.seen[key] = struct{}{}
	rs.records = append(rs.records, record)
	return true
}

// Key builds the identity key for a record: the configured fields' values,
// lowercased and joined. Missing fields contribute an empty segment.
func (rs *ResultSet) Key(record schema.ValidatedRecord) string {
	parts := make([]string, 0, len(rs.keyFields))
	for _, field := range rs.keyFields {
		value := ""
		if raw, ok := record[field]; ok {
			value = strings.ToLower(strings.TrimSpace(fmt.Sprint(raw)))
		}
		parts = append(parts, value)
	}
	return strings.Join(parts, "\x1f")
}

// Records returns the accepted records in arrival order. The returned slice
// shares backing storage; callers treat it as read-only.
func (rs *ResultSet) Records() []schema.ValidatedRecord {
	return rs.records
}

// Len reports the number of accepted records.
func (rs *ResultSet) Len() int {
	return len(rs.records)
}

// Dropped reports how many duplicates were rejected.
func (rs *ResultSet) Dropped() int {
	return rs.dropped
}
