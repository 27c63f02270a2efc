package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"gleaner/internal/browser"
)

// rodPage adapts a rod.Page to the Page interface.
type rodPage struct {
	b    *browser.Browser
	page *rod.Page
}

// NewRodPage opens a fresh page on the given browser.
func NewRodPage(b *browser.Browser) (Page, error) {
	page, err := b.NewPage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNavigation, err)
	}
	return &rodPage{b: b, page: page}, nil
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	if err := p.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNavigation, url, err)
	}
	if err := p.page.Context(ctx).WaitLoad(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNavigation, url, err)
	}
	return nil
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	result, err := p.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("failed to snapshot page HTML: %w", err)
	}
	return p.page.MustObjectToJSON(result).String(), nil
}

func (p *rodPage) ClickVisible(ctx context.Context, selector string) (bool, error) {
	result, err := p.page.Context(ctx).Eval(fmt.Sprintf(`() => {
        const el = document.querySelector(%q);
        if (!el) return false;
        const style = window.getComputedStyle(el);
        if (style.display === 'none' || style.visibility === 'hidden') return false;
        if (el.classList.contains('disabled') || el.disabled) return false;
        el.click();
        return true;
    }`, selector))
	if err != nil {
		return false, fmt.Errorf("failed to click %q: %w", selector, err)
	}
	return p.page.MustObjectToJSON(result).Bool(), nil
}

func (p *rodPage) Height(ctx context.Context) (float64, error) {
	result, err := p.page.Context(ctx).Eval(`() => document.body ? document.body.scrollHeight : 0`)
	if err != nil {
		return 0, fmt.Errorf("failed to read page height: %w", err)
	}
	return p.page.MustObjectToJSON(result).Num(), nil
}

func (p *rodPage) ScrollToBottom(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	if err != nil {
		return fmt.Errorf("failed to scroll: %w", err)
	}
	return nil
}

func (p *rodPage) WaitStable(ctx context.Context) error {
	// Idle means no new requests for 500ms, ignoring image/media trickle.
	wait := p.page.Context(ctx).WaitRequestIdle(
		500*time.Millisecond, nil, nil,
		[]proto.NetworkResourceType{proto.NetworkResourceTypeImage, proto.NetworkResourceTypeMedia},
	)
	wait()
	return ctx.Err()
}

func (p *rodPage) NewTab(ctx context.Context, url string) (Page, error) {
	tab, err := NewRodPage(p.b)
	if err != nil {
		return nil, err
	}
	if err := tab.Navigate(ctx, url); err != nil {
		tab.Close()
		return nil, err
	}
	return tab, nil
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

var _ Page = (*rodPage)(nil)
