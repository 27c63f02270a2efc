// Package paginate decides, after each extraction batch, whether and how to
// reveal more content. The decision logic is an explicit state machine so it
// can be tested without a browser.
package paginate

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"gleaner/internal/driver"
)

// State names the controller's position in its lifecycle.
type State string

const (
	// Ready means the current page can be extracted from.
	Ready State = "ready"
	// Advancing means an advance strategy is being attempted.
	Advancing State = "advancing"
	// Exhausted means no strategy can reveal more content. Terminal.
	Exhausted State = "exhausted"
	// Aborted means the time budget ended the run. Terminal.
	Aborted State = "aborted"
)

// Strategy names one way of revealing more content.
type Strategy string

const (
	ClickNext    Strategy = "click_next"
	Scroll       Strategy = "scroll"
	URLIncrement Strategy = "url_increment"
)

// Config controls the controller's behavior.
type Config struct {
	// Strategies are tried in order within one advancement step.
	Strategies []Strategy
	// NextSelector locates the "next page" / "load more" control.
	NextSelector string
	// PageParam is the query parameter incremented by URLIncrement.
	PageParam string
	// EmptyBatchLimit is the consecutive-empty-batch circuit breaker.
	EmptyBatchLimit int
	// SettleTimeout bounds the wait for new content after an advance.
	SettleTimeout time.Duration
	// Poll is the interval between content-growth checks.
	Poll time.Duration
}

// Controller is the pagination state machine.
type Controller struct {
	cfg        Config
	state      State
	emptyRuns  int
	pageNum    int
	reasonNote string
}

// NewController creates a controller in the Ready state.
func NewController(cfg Config) *Controller {
	if len(cfg.Strategies) == 0 {
		cfg.Strategies = []Strategy{ClickNext, Scroll, URLIncrement}
	}
	if cfg.EmptyBatchLimit <= 0 {
		cfg.EmptyBatchLimit = 3
	}
	if cfg.PageParam == "" {
		cfg.PageParam = "page"
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = 10 * time.Second
	}
	if cfg.Poll <= 0 {
		cfg.Poll = 500 * time.Millisecond
	}
	return &Controller{cfg: cfg, state: Ready, pageNum: 1}
}

// State returns the controller's current state.
func (c *Controller) State() State { return c.state }

// Terminal reports whether no further extraction may occur.
func (c *Controller) Terminal() bool {
	return c.state == Exhausted || c.state == Aborted
}

// Pages returns how many pages/advancement steps have been visited.
func (c *Controller) Pages() int { return c.pageNum }

// Note returns a short description of why the controller terminated.
func (c *Controller) Note() string { return c.reasonNote }

// ObserveBatch records the outcome of an extraction batch. A run of empty
// batches at the configured limit trips the circuit breaker into Exhausted.
func (c *Controller) ObserveBatch(accepted int) {
	if c.Terminal() {
		return
	}
	if accepted > 0 {
		c.emptyRuns = 0
		return
	}
	c.emptyRuns++
	if c.emptyRuns >= c.cfg.EmptyBatchLimit {
		c.state = Exhausted
		c.reasonNote = fmt.Sprintf("%d consecutive empty batches", c.emptyRuns)
	}
}

// Exhaust moves the controller to Exhausted. Used when the caller knows no
// further content can be reached, e.g. every configured URL failed to load.
func (c *Controller) Exhaust(note string) {
	if !c.Terminal() {
		c.state = Exhausted
		c.reasonNote = note
	}
}

// Abort moves the controller to the Aborted terminal state. Any state may
// abort; the time budget is the usual caller.
func (c *Controller) Abort() {
	if c.state != Exhausted {
		c.state = Aborted
		c.reasonNote = "time budget exceeded"
	}
}

// Advance attempts each configured strategy in order until one reveals new
// content. On success the controller returns to Ready; when every strategy
// fails it becomes Exhausted.
func (c *Controller) Advance(ctx context.Context, page driver.Page) error {
	if c.Terminal() {
		return nil
	}
	c.state = Advancing

	for _, strategy := range c.cfg.Strategies {
		if ctx.Err() != nil {
			c.Abort()
			return ctx.Err()
		}
		ok, err := c.tryStrategy(ctx, page, strategy)
		if err != nil {
			zap.L().Warn("advance strategy failed",
				zap.String("strategy", string(strategy)), zap.Error(err))
			continue
		}
		if ok {
			zap.L().Debug("advanced", zap.String("strategy", string(strategy)), zap.Int("page", c.pageNum+1))
			c.pageNum++
			c.state = Ready
			return nil
		}
	}

	c.state = Exhausted
	c.reasonNote = "all advance strategies failed"
	return nil
}

func (c *Controller) tryStrategy(ctx context.Context, page driver.Page, strategy Strategy) (bool, error) {
	switch strategy {
	case ClickNext:
		return c.clickNext(ctx, page)
	case Scroll:
		return c.scroll(ctx, page)
	case URLIncrement:
		return c.incrementURL(ctx, page)
	default:
		return false, fmt.Errorf("unknown strategy %q", strategy)
	}
}

// clickNext clicks the configured control if present and visible, then
// confirms new content by waiting for the page to settle and grow.
func (c *Controller) clickNext(ctx context.Context, page driver.Page) (bool, error) {
	if c.cfg.NextSelector == "" {
		return false, nil
	}
	before, err := page.Height(ctx)
	if err != nil {
		return false, err
	}
	clicked, err := page.ClickVisible(ctx, c.cfg.NextSelector)
	if err != nil || !clicked {
		return false, err
	}
	if err := page.WaitStable(ctx); err != nil {
		return false, err
	}
	// A next-page click usually replaces content rather than growing it,
	// so a changed height in either direction counts as progress.
	after, err := page.Height(ctx)
	if err != nil {
		return false, err
	}
	if after != before {
		return true, nil
	}
	return c.waitForGrowth(ctx, page, before)
}

// scroll scrolls to the bottom and detects page-height growth.
func (c *Controller) scroll(ctx context.Context, page driver.Page) (bool, error) {
	before, err := page.Height(ctx)
	if err != nil {
		return false, err
	}
	if err := page.ScrollToBottom(ctx); err != nil {
		return false, err
	}
	return c.waitForGrowth(ctx, page, before)
}

// incrementURL rewrites the page-number query parameter and navigates.
func (c *Controller) incrementURL(ctx context.Context, page driver.Page) (bool, error) {
	next, err := NextPageURL(page.URL(), c.cfg.PageParam)
	if err != nil {
		return false, err
	}
	if err := page.Navigate(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Controller) waitForGrowth(ctx context.Context, page driver.Page, before float64) (bool, error) {
	deadline := time.Now().Add(c.cfg.SettleTimeout)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		h, err := page.Height(ctx)
		if err != nil {
			return false, err
		}
		if h > before {
			return true, nil
		}
		time.Sleep(c.cfg.Poll)
	}
	return false, nil
}

// NextPageURL increments the numeric page parameter of a URL, adding
// param=2 when it is absent.
func NextPageURL(raw, param string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("cannot parse current URL %q: %w", raw, err)
	}
	q := u.Query()
	current := 1
	if v := q.Get(param); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return "", fmt.Errorf("page parameter %q is not numeric: %q", param, v)
		}
		current = n
	}
	q.Set(param, strconv.Itoa(current+1))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
