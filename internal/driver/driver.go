package driver

import (
	"context"
	"errors"
)

// ErrNavigation marks failures that end the current page attempt: timeouts,
// DNS errors, blocked loads. Missing elements are not errors; lookups report
// them as plain false results.
var ErrNavigation = errors.New("navigation failed")

// Page is the navigation surface the pipeline consumes. The pagination
// controller and extraction strategies depend only on this interface, so
// they are testable without a live browser.
type Page interface {
	// Navigate loads the URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error

	// URL returns the page's current address.
	URL() string

	// HTML returns a snapshot of the rendered document.
	HTML(ctx context.Context) (string, error)

	// ClickVisible clicks the first visible, enabled element matching the
	// selector. Reports false without error when no such element exists.
	ClickVisible(ctx context.Context, selector string) (bool, error)

	// Height returns the current document scroll height.
	Height(ctx context.Context) (float64, error)

	// ScrollToBottom scrolls the window to the document end.
	ScrollToBottom(ctx context.Context) error

	// WaitStable blocks until in-flight requests settle or ctx expires.
	WaitStable(ctx context.Context) error

	// NewTab opens an isolated page on the same browser, loaded at url.
	// Detail lookups use it so the primary page's DOM state is untouched.
	NewTab(ctx context.Context, url string) (Page, error)

	// Close releases the page. Safe to call once per page.
	Close() error
}
