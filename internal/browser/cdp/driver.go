// internal/browser/cdp/driver.go
package cdp

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/hrmcheck/internal/browser"
)

// Driver is one Chrome tab driven over the DevTools protocol.
type Driver struct {
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
	tracker *netTracker
	// refToken is the value written to refAttribute by this session.
	refToken string

	closeOnce sync.Once
}

var _ browser.Driver = (*Driver)(nil)

// run executes actions on the tab, bounded by both the tab's lifetime and ctx.
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(d.ctx, ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		// Report the caller's deadline rather than the derived cancellation.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.logger.Debug("Navigating.", zap.String("url", url))
	if err := d.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (d *Driver) Reload(ctx context.Context) error {
	return d.run(ctx, chromedp.Reload())
}

func (d *Driver) WaitForNetworkIdle(ctx context.Context) error {
	waitCtx, cancel := CombineContext(ctx, d.ctx)
	defer cancel()
	return d.tracker.waitIdle(waitCtx, networkQuietPeriod)
}

func (d *Driver) Inspect(ctx context.Context, loc browser.Locator) (browser.ElementState, error) {
	var res inspectResult
	if err := d.run(ctx, chromedp.Evaluate(inspectScript(loc), &res)); err != nil {
		return browser.ElementState{}, fmt.Errorf("inspect %s: %w", loc, err)
	}
	return browser.ElementState{Count: res.Count, Visible: res.Visible}, nil
}

// target tags the first match of loc and returns a selector for it.
func (d *Driver) target(ctx context.Context, loc browser.Locator) (string, error) {
	var found bool
	if err := d.run(ctx, chromedp.Evaluate(tagScript(loc, d.refToken), &found)); err != nil {
		return "", fmt.Errorf("resolve %s: %w", loc, err)
	}
	if !found {
		return "", fmt.Errorf("resolve %s: no matching element", loc)
	}
	return "[" + refAttribute + "=" + strconv.Quote(d.refToken) + "]", nil
}

func (d *Driver) Fill(ctx context.Context, loc browser.Locator, value string) error {
	sel, err := d.target(ctx, loc)
	if err != nil {
		return err
	}
	if err := d.run(ctx,
		chromedp.Clear(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, value, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("fill %s: %w", loc, err)
	}
	return nil
}

func (d *Driver) Click(ctx context.Context, loc browser.Locator) error {
	sel, err := d.target(ctx, loc)
	if err != nil {
		return err
	}
	if err := d.run(ctx, chromedp.Click(sel, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %s: %w", loc, err)
	}
	return nil
}

func (d *Driver) Text(ctx context.Context, loc browser.Locator) (*string, error) {
	var res textResult
	if err := d.run(ctx, chromedp.Evaluate(textScript(loc), &res)); err != nil {
		return nil, fmt.Errorf("read text of %s: %w", loc, err)
	}
	if !res.Found {
		return nil, fmt.Errorf("read text of %s: no matching element", loc)
	}
	return res.Text, nil
}

func (d *Driver) AllTexts(ctx context.Context, loc browser.Locator) ([]string, error) {
	var texts []string
	if err := d.run(ctx, chromedp.Evaluate(allTextsScript(loc), &texts)); err != nil {
		return nil, fmt.Errorf("read texts of %s: %w", loc, err)
	}
	return texts, nil
}

// Screenshot captures the full page. A quality of 100 makes chromedp encode PNG.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := d.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

func (d *Driver) Title(ctx context.Context) (string, error) {
	var title string
	err := d.run(ctx, chromedp.Title(&title))
	return title, err
}

func (d *Driver) URL(ctx context.Context) (string, error) {
	var loc string
	err := d.run(ctx, chromedp.Location(&loc))
	return loc, err
}

func (d *Driver) SetViewport(ctx context.Context, vp browser.Viewport) error {
	return d.run(ctx, chromedp.EmulateViewport(int64(vp.Width), int64(vp.Height)))
}

// Close closes the tab. The caller's context is ignored so cleanup still runs
// after a scenario deadline.
func (d *Driver) Close(ctx context.Context) error {
	var err error
	d.closeOnce.Do(func() {
		d.logger.Debug("Closing browser tab.")
		if cerr := chromedp.Cancel(d.ctx); cerr != nil && cerr != context.Canceled {
			err = fmt.Errorf("close tab: %w", cerr)
		}
		d.cancel()
	})
	return err
}
