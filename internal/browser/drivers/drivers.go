// Package drivers selects the browser engine named in the configuration.
package drivers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/hrmcheck/internal/browser"
	"github.com/xkilldash9x/hrmcheck/internal/browser/cdp"
	"github.com/xkilldash9x/hrmcheck/internal/browser/pwdriver"
	"github.com/xkilldash9x/hrmcheck/internal/config"
)

// UnknownDriverError is returned for a driver name no engine answers to.
type UnknownDriverError struct {
	Name string
}

func (e *UnknownDriverError) Error() string {
	return fmt.Sprintf("unknown browser driver %q (want %q or %q)", e.Name, config.DriverChromedp, config.DriverPlaywright)
}

// New starts the launcher for cfg.Driver. An empty name selects chromedp.
func New(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browser.Launcher, error) {
	switch cfg.Driver {
	case config.DriverChromedp, "":
		return cdp.NewLauncher(ctx, cfg, logger)
	case config.DriverPlaywright:
		return pwdriver.NewLauncher(cfg, logger), nil
	default:
		return nil, &UnknownDriverError{Name: cfg.Driver}
	}
}
