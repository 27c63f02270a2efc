package emit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gleaner/internal/schema"
)

func record(name string) schema.ValidatedRecord {
	return schema.ValidatedRecord{"name": name}
}

func decodeLines(t *testing.T, out string) []Envelope {
	t.Helper()
	var envelopes []Envelope
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == StartMarker || line == EndMarker {
			continue
		}
		var env Envelope
		require.NoError(t, json.Unmarshal([]byte(line), &env))
		envelopes = append(envelopes, env)
	}
	return envelopes
}

// TestEmitter_PartialInterval emits every N accepted records
func TestEmitter_PartialInterval(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf, 2, false)

	records := []schema.ValidatedRecord{record("a")}
	require.NoError(t, e.MaybePartial(records, time.Second, nil))
	assert.Empty(t, buf.String(), "below interval, nothing emitted")

	records = append(records, record("b"))
	require.NoError(t, e.MaybePartial(records, time.Second, nil))

	records = append(records, record("c"))
	require.NoError(t, e.MaybePartial(records, time.Second, nil))

	records = append(records, record("d"))
	require.NoError(t, e.MaybePartial(records, 2*time.Second, nil))

	envelopes := decodeLines(t, buf.String())
	require.Len(t, envelopes, 2)
	assert.True(t, envelopes[0].IsPartial)
	assert.Equal(t, 2, envelopes[0].TotalFound)
	assert.Equal(t, 4, envelopes[1].TotalFound)
}

// TestEmitter_PartialsArePrefixes each partial extends the previous in order
func TestEmitter_PartialsArePrefixes(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf, 1, false)

	var records []schema.ValidatedRecord
	for _, n := range []string{"a", "b", "c"} {
		records = append(records, record(n))
		require.NoError(t, e.MaybePartial(records, time.Second, nil))
	}

	envelopes := decodeLines(t, buf.String())
	require.Len(t, envelopes, 3)
	for i := 1; i < len(envelopes); i++ {
		prev, cur := envelopes[i-1].Data, envelopes[i].Data
		require.GreaterOrEqual(t, len(cur), len(prev))
		for j := range prev {
			assert.Equal(t, prev[j]["name"], cur[j]["name"], "earlier records keep their positions")
		}
	}
}

// TestEmitter_FinalOnce exactly one final envelope, never partial
func TestEmitter_FinalOnce(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf, 10, false)

	meta := &Metadata{RunID: "r1", TerminationReason: "exhausted"}
	require.NoError(t, e.Final([]schema.ValidatedRecord{record("a")}, 3*time.Second, meta))
	require.Error(t, e.Final(nil, 3*time.Second, nil), "second final must be rejected")
	require.NoError(t, e.MaybePartial(make([]schema.ValidatedRecord, 50), time.Second, nil))

	envelopes := decodeLines(t, buf.String())
	require.Len(t, envelopes, 1)
	assert.True(t, envelopes[0].Success)
	assert.False(t, envelopes[0].IsPartial)
	assert.Equal(t, int64(3000), envelopes[0].ExecutionTime)
	assert.Equal(t, "exhausted", envelopes[0].Metadata.TerminationReason)
}

// TestEmitter_FailureEnvelope failed tasks still emit parseable output
func TestEmitter_FailureEnvelope(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf, 0, false)

	require.NoError(t, e.Failure([]string{"browser failed to start"}, time.Second, nil))

	envelopes := decodeLines(t, buf.String())
	require.Len(t, envelopes, 1)
	assert.False(t, envelopes[0].Success)
	assert.NotNil(t, envelopes[0].Data)
	assert.Empty(t, envelopes[0].Data)
	assert.Equal(t, []string{"browser failed to start"}, envelopes[0].Errors)
}

// TestEmitter_EmptyFinal has data:[] not data:null
func TestEmitter_EmptyFinal(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf, 0, false)

	require.NoError(t, e.Final(nil, time.Second, nil))
	assert.Contains(t, buf.String(), `"data":[]`)
	assert.Contains(t, buf.String(), `"totalFound":0`)
}

// TestEmitter_Markers wrap only the final envelope
func TestEmitter_Markers(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf, 1, true)

	require.NoError(t, e.MaybePartial([]schema.ValidatedRecord{record("a")}, time.Second, nil))
	require.NoError(t, e.Final([]schema.ValidatedRecord{record("a")}, time.Second, nil))

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, StartMarker))
	assert.Equal(t, 1, strings.Count(out, EndMarker))
	assert.Greater(t, strings.Index(out, StartMarker), strings.Index(out, `"isPartial":true`))
}
