package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gleaner/internal/schema"
)

// TestResultSet_FirstSeenWins drops exact duplicates under the identity key
func TestResultSet_FirstSeenWins(t *testing.T) {
	rs := NewResultSet([]string{"name", "address"})

	first := schema.ValidatedRecord{"name": "A", "address": "1 Main St", "phone": "+15550000001"}
	second := schema.ValidatedRecord{"name": "A", "address": "1 Main St", "phone": "+15550000002"}

	assert.True(t, rs.Add(first))
	assert.False(t, rs.Add(second), "same identity key should be dropped")

	require.Equal(t, 1, rs.Len())
	assert.Equal(t, "+15550000001", rs.Records()[0]["phone"], "first-seen record should survive")
	assert.Equal(t, 1, rs.Dropped())
}

// TestResultSet_CaseInsensitiveKey compares key fields case-insensitively
func TestResultSet_CaseInsensitiveKey(t *testing.T) {
	rs := NewResultSet([]string{"name"})

	assert.True(t, rs.Add(schema.ValidatedRecord{"name": "Acme Billing"}))
	assert.False(t, rs.Add(schema.ValidatedRecord{"name": "ACME BILLING"}))
	assert.Equal(t, 1, rs.Len())
}

// TestResultSet_PreservesOrder keeps records in arrival order
func TestResultSet_PreservesOrder(t *testing.T) {
	rs := NewResultSet([]string{"name"})

	names := []string{"c", "a", "b"}
	for _, n := range names {
		rs.Add(schema.ValidatedRecord{"name": n})
	}

	got := make([]string, 0, rs.Len())
	for _, r := range rs.Records() {
		got = append(got, r["name"].(string))
	}
	assert.Equal(t, names, got)
}

// TestResultSet_DistinctUnderCompositeKey accepts records differing in any key field
func TestResultSet_DistinctUnderCompositeKey(t *testing.T) {
	rs := NewResultSet([]string{"name", "address"})

	assert.True(t, rs.Add(schema.ValidatedRecord{"name": "A", "address": "1 Main St"}))
	assert.True(t, rs.Add(schema.ValidatedRecord{"name": "A", "address": "2 Main St"}))
	assert.Equal(t, 2, rs.Len())
}

// TestResultSet_MissingKeyField treats an absent key field as empty
func TestResultSet_MissingKeyField(t *testing.T) {
	rs := NewResultSet([]string{"name", "phone"})

	assert.True(t, rs.Add(schema.ValidatedRecord{"name": "A"}))
	assert.False(t, rs.Add(schema.ValidatedRecord{"name": "a"}))
	assert.Equal(t, 1, rs.Len())
}
