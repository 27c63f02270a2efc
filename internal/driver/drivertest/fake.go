// Package drivertest provides an in-memory driver.Page for tests.
package drivertest

import (
	"context"

	"gleaner/internal/driver"
)

// FakePage is a scriptable driver.Page. Tests set the HTML document, the
// per-selector click results, and the height sequence; every call is
// recorded so tests can assert on strategy order.
type FakePage struct {
	Addr     string
	Document string

	// Clickable maps selectors to whether ClickVisible succeeds for them.
	Clickable map[string]bool

	// Heights is consumed one value per Height call; the last value repeats.
	Heights []float64

	// NavigateErr, when set, is returned by every Navigate call.
	NavigateErr error

	// NavigateErrFor fails navigation for specific URLs only.
	NavigateErrFor map[string]error

	// OnNavigate, when set, runs after a successful Navigate.
	OnNavigate func(url string)

	// Tabs maps detail URLs to the pages NewTab returns.
	Tabs map[string]*FakePage

	Calls     []string
	heightIdx int
	Closed    bool
}

func (f *FakePage) Navigate(ctx context.Context, url string) error {
	f.Calls = append(f.Calls, "navigate:"+url)
	if f.NavigateErr != nil {
		return f.NavigateErr
	}
	if err, ok := f.NavigateErrFor[url]; ok {
		return err
	}
	f.Addr = url
	if f.OnNavigate != nil {
		f.OnNavigate(url)
	}
	return nil
}

func (f *FakePage) URL() string { return f.Addr }

func (f *FakePage) HTML(ctx context.Context) (string, error) {
	f.Calls = append(f.Calls, "html")
	return f.Document, nil
}

func (f *FakePage) ClickVisible(ctx context.Context, selector string) (bool, error) {
	f.Calls = append(f.Calls, "click:"+selector)
	return f.Clickable[selector], nil
}

func (f *FakePage) Height(ctx context.Context) (float64, error) {
	f.Calls = append(f.Calls, "height")
	if len(f.Heights) == 0 {
		return 0, nil
	}
	h := f.Heights[f.heightIdx]
	if f.heightIdx < len(f.Heights)-1 {
		f.heightIdx++
	}
	return h, nil
}

func (f *FakePage) ScrollToBottom(ctx context.Context) error {
	f.Calls = append(f.Calls, "scroll")
	return nil
}

func (f *FakePage) WaitStable(ctx context.Context) error {
	f.Calls = append(f.Calls, "wait")
	return ctx.Err()
}

func (f *FakePage) NewTab(ctx context.Context, url string) (driver.Page, error) {
	f.Calls = append(f.Calls, "tab:"+url)
	if tab, ok := f.Tabs[url]; ok {
		tab.Addr = url
		return tab, nil
	}
	return nil, driver.ErrNavigation
}

func (f *FakePage) Close() error {
	f.Closed = true
	return nil
}

var _ driver.Page = (*FakePage)(nil)
