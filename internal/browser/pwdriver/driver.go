// internal/browser/pwdriver/driver.go
package pwdriver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/hrmcheck/internal/browser"
)

// Driver is one Playwright browser context with a single page.
type Driver struct {
	bctx    playwright.BrowserContext
	page    playwright.Page
	logger  *zap.Logger
	onClose func()

	closeOnce sync.Once
}

var _ browser.Driver = (*Driver)(nil)

// selector renders a Locator in Playwright's selector syntax.
func selector(loc browser.Locator) string {
	if loc.HasText == "" {
		return loc.Query
	}
	return loc.Query + ":has-text(" + strconv.Quote(loc.HasText) + ")"
}

// timeoutMS converts the remaining time on ctx into a Playwright timeout.
// Playwright calls are not context aware, so the deadline is all they see.
func timeoutMS(ctx context.Context) *float64 {
	dl, ok := ctx.Deadline()
	if !ok {
		return nil
	}
	ms := float64(time.Until(dl).Milliseconds())
	if ms < 1 {
		ms = 1
	}
	return &ms
}

func (d *Driver) locator(loc browser.Locator) playwright.Locator {
	return d.page.Locator(selector(loc))
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.logger.Debug("Navigating.", zap.String("url", url))
	_, err := d.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateCommit,
		Timeout:   timeoutMS(ctx),
	})
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (d *Driver) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := d.page.Reload(playwright.PageReloadOptions{Timeout: timeoutMS(ctx)})
	return err
}

func (d *Driver) WaitForNetworkIdle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: timeoutMS(ctx),
	})
}

func (d *Driver) Inspect(ctx context.Context, loc browser.Locator) (browser.ElementState, error) {
	if err := ctx.Err(); err != nil {
		return browser.ElementState{}, err
	}
	l := d.locator(loc)
	count, err := l.Count()
	if err != nil {
		return browser.ElementState{}, fmt.Errorf("inspect %s: %w", loc, err)
	}
	if count == 0 {
		return browser.ElementState{}, nil
	}
	visible, err := l.First().IsVisible()
	if err != nil {
		return browser.ElementState{}, fmt.Errorf("inspect %s: %w", loc, err)
	}
	return browser.ElementState{Count: count, Visible: visible}, nil
}

func (d *Driver) Fill(ctx context.Context, loc browser.Locator, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.locator(loc).First().Fill(value, playwright.LocatorFillOptions{Timeout: timeoutMS(ctx)}); err != nil {
		return fmt.Errorf("fill %s: %w", loc, err)
	}
	return nil
}

func (d *Driver) Click(ctx context.Context, loc browser.Locator) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.locator(loc).First().Click(playwright.LocatorClickOptions{Timeout: timeoutMS(ctx)}); err != nil {
		return fmt.Errorf("click %s: %w", loc, err)
	}
	return nil
}

func (d *Driver) Text(ctx context.Context, loc browser.Locator) (*string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := d.locator(loc).First().TextContent(playwright.LocatorTextContentOptions{Timeout: timeoutMS(ctx)})
	if err != nil {
		return nil, fmt.Errorf("read text of %s: %w", loc, err)
	}
	return &text, nil
}

func (d *Driver) AllTexts(ctx context.Context, loc browser.Locator) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	texts, err := d.locator(loc).AllTextContents()
	if err != nil {
		return nil, fmt.Errorf("read texts of %s: %w", loc, err)
	}
	return texts, nil
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf, err := d.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Timeout:  timeoutMS(ctx),
	})
	if err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

func (d *Driver) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return d.page.Title()
}

func (d *Driver) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return d.page.URL(), nil
}

func (d *Driver) SetViewport(ctx context.Context, vp browser.Viewport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.page.SetViewportSize(vp.Width, vp.Height)
}

// Close closes the page and its browser context.
func (d *Driver) Close(ctx context.Context) error {
	var err error
	d.closeOnce.Do(func() {
		defer d.onClose()
		d.logger.Debug("Closing session.")
		err = errors.Join(d.page.Close(), d.bctx.Close())
	})
	return err
}
