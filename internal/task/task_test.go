package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gleaner/internal/paginate"
	"gleaner/internal/schema"
)

const structuralTask = `
url: https://www.example.org/search?q=medical+billing
strategy: structural
budget: 90s
max_records: 50
identity_key: [name, address]
pagination: [click_next, url_increment]
next_selector: ".pagination-next"
containers: [".result-item"]
fields:
  - name: name
    type: string
    min_length: 1
    max_length: 200
    selectors: ["h3.business-name", "h3"]
  - name: address
    type: string
    selectors: [".addr"]
  - name: phone
    type: string
    optional: true
    normalize: phone
    pattern: '\(\d{3}\) \d{3}-\d{4}'
`

// TestParse_Structural loads a full declaration and derives configs
func TestParse_Structural(t *testing.T) {
	task, err := Parse([]byte(structuralTask))
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, task.Budget.Std())
	assert.Equal(t, 50, task.MaxRecords)

	target := task.Target()
	require.Len(t, target.Fields, 3)
	assert.Equal(t, schema.TypeString, target.Fields[0].Type)
	assert.Equal(t, []string{"name", "address"}, target.Identity)

	opts := task.ExtractOptions()
	assert.Equal(t, []string{"h3.business-name", "h3"}, opts.Fields["name"].Selectors)
	assert.NotEmpty(t, opts.Fields["phone"].Pattern)

	pc := task.PaginateConfig()
	assert.Equal(t, []paginate.Strategy{paginate.ClickNext, paginate.URLIncrement}, pc.Strategies)
	assert.Equal(t, ".pagination-next", pc.NextSelector)

	assert.Equal(t, []string{"name", "address", "phone"}, task.ColumnOrder())
}

// TestParse_Defaults fills budget, strategy, emit interval, identity key
func TestParse_Defaults(t *testing.T) {
	task, err := Parse([]byte(`
url: https://example.org
containers: [".row"]
fields:
  - name: title
    type: string
    selectors: ["h1"]
`))
	require.NoError(t, err)

	assert.Equal(t, "structural", task.Strategy)
	assert.Equal(t, 5*time.Minute, task.Budget.Std())
	assert.Equal(t, 10, task.EmitEvery)
	assert.Equal(t, 3, task.EmptyBatchLimit)
	assert.Equal(t, []string{"title"}, task.IdentityKey, "identity defaults to the first field")
	assert.Len(t, task.Pagination, 3)
}

// TestParse_SemanticRequiresService
func TestParse_SemanticRequiresService(t *testing.T) {
	_, err := Parse([]byte(`
url: https://example.org
strategy: semantic
fields:
  - name: title
    type: string
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint")
}

// TestParse_RejectsUnknownType
func TestParse_RejectsUnknownType(t *testing.T) {
	_, err := Parse([]byte(`
url: https://example.org
containers: [".row"]
fields:
  - name: title
    type: blob
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blob")
}

// TestParse_RejectsUndeclaredIdentityField
func TestParse_RejectsUndeclaredIdentityField(t *testing.T) {
	_, err := Parse([]byte(`
url: https://example.org
identity_key: [missing]
containers: [".row"]
fields:
  - name: title
    type: string
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

// TestParse_RejectsBadDuration
func TestParse_RejectsBadDuration(t *testing.T) {
	_, err := Parse([]byte(`
url: https://example.org
budget: ninety seconds
containers: [".row"]
fields:
  - name: title
    type: string
`))
	require.Error(t, err)
}

// TestParse_RejectsBadPagination
func TestParse_RejectsBadPagination(t *testing.T) {
	_, err := Parse([]byte(`
url: https://example.org
pagination: [teleport]
containers: [".row"]
fields:
  - name: title
    type: string
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "teleport")
}

// TestParse_MissingURL
func TestParse_MissingURL(t *testing.T) {
	_, err := Parse([]byte(`
containers: [".row"]
fields:
  - name: title
    type: string
`))
	require.Error(t, err)
}
