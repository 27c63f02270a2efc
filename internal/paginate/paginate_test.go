package paginate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gleaner/internal/driver/drivertest"
)

func testConfig() Config {
	return Config{
		Strategies:      []Strategy{ClickNext, Scroll, URLIncrement},
		NextSelector:    ".pagination-next",
		EmptyBatchLimit: 3,
		SettleTimeout:   50 * time.Millisecond,
		Poll:            5 * time.Millisecond,
	}
}

// TestController_ClickNextAdvance succeeds when the control is visible and content changes
func TestController_ClickNextAdvance(t *testing.T) {
	c := NewController(testConfig())
	page := &drivertest.FakePage{
		Clickable: map[string]bool{".pagination-next": true},
		Heights:   []float64{1000, 1400},
	}

	require.NoError(t, c.Advance(context.Background(), page))
	assert.Equal(t, Ready, c.State())
	assert.Equal(t, 2, c.Pages())
	assert.Contains(t, page.Calls, "click:.pagination-next")
}

// TestController_StrategyOrder falls through click -> scroll within one step
func TestController_StrategyOrder(t *testing.T) {
	c := NewController(testConfig())
	page := &drivertest.FakePage{
		Clickable: map[string]bool{},               // no visible next control
		Heights:   []float64{1000, 1000, 1000, 1600}, // grows after scroll
	}

	require.NoError(t, c.Advance(context.Background(), page))
	assert.Equal(t, Ready, c.State())

	var clickIdx, scrollIdx int
	for i, call := range page.Calls {
		switch call {
		case "click:.pagination-next":
			clickIdx = i
		case "scroll":
			scrollIdx = i
		}
	}
	assert.Greater(t, scrollIdx, clickIdx, "scroll is attempted only after click fails")
}

// TestController_URLIncrementFallback navigates to page=2 when nothing else works
func TestController_URLIncrementFallback(t *testing.T) {
	c := NewController(testConfig())
	page := &drivertest.FakePage{
		Addr:      "https://example.org/search?q=x",
		Clickable: map[string]bool{},
		Heights:   []float64{1000}, // never grows
	}

	require.NoError(t, c.Advance(context.Background(), page))
	assert.Equal(t, Ready, c.State())
	assert.Contains(t, page.Calls, "navigate:https://example.org/search?page=2&q=x")
}

// TestController_ExhaustedWhenAllFail terminates when no strategy succeeds
func TestController_ExhaustedWhenAllFail(t *testing.T) {
	c := NewController(testConfig())
	page := &drivertest.FakePage{
		Addr:        "https://example.org/search",
		Clickable:   map[string]bool{},
		Heights:     []float64{1000},
		NavigateErr: context.DeadlineExceeded,
	}

	require.NoError(t, c.Advance(context.Background(), page))
	assert.Equal(t, Exhausted, c.State())
	assert.True(t, c.Terminal())
}

// TestController_EmptyBatchBreaker trips after N consecutive empty batches
func TestController_EmptyBatchBreaker(t *testing.T) {
	c := NewController(testConfig())

	c.ObserveBatch(0)
	c.ObserveBatch(0)
	assert.Equal(t, Ready, c.State())

	c.ObserveBatch(0)
	assert.Equal(t, Exhausted, c.State())
	assert.Contains(t, c.Note(), "empty batches")
}

// TestController_BatchResetsBreaker a non-empty batch resets the counter
func TestController_BatchResetsBreaker(t *testing.T) {
	c := NewController(testConfig())

	c.ObserveBatch(0)
	c.ObserveBatch(0)
	c.ObserveBatch(5)
	c.ObserveBatch(0)
	c.ObserveBatch(0)
	assert.Equal(t, Ready, c.State())
}

// TestController_Abort is terminal and wins from any non-exhausted state
func TestController_Abort(t *testing.T) {
	c := NewController(testConfig())
	c.Abort()
	assert.Equal(t, Aborted, c.State())
	assert.True(t, c.Terminal())

	// Terminal states refuse further transitions.
	c.ObserveBatch(10)
	assert.Equal(t, Aborted, c.State())
	require.NoError(t, c.Advance(context.Background(), &drivertest.FakePage{}))
	assert.Equal(t, Aborted, c.State())
}

// TestController_AbortOnExpiredContext during an advance
func TestController_AbortOnExpiredContext(t *testing.T) {
	c := NewController(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Advance(ctx, &drivertest.FakePage{})
	require.Error(t, err)
	assert.Equal(t, Aborted, c.State())
}

// TestNextPageURL increments and inserts the page parameter
func TestNextPageURL(t *testing.T) {
	next, err := NextPageURL("https://x.org/s?page=3&q=a", "page")
	require.NoError(t, err)
	assert.Equal(t, "https://x.org/s?page=4&q=a", next)

	next, err = NextPageURL("https://x.org/s?q=a", "page")
	require.NoError(t, err)
	assert.Equal(t, "https://x.org/s?page=2&q=a", next)

	_, err = NextPageURL("https://x.org/s?page=abc", "page")
	require.Error(t, err)
}
