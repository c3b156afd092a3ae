// internal/browser/cdp/launcher.go
package cdp

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/hrmcheck/internal/browser"
	"github.com/xkilldash9x/hrmcheck/internal/config"
)

const startupTimeout = 30 * time.Second

// Launcher owns one Chrome process and hands out isolated tabs as Drivers.
type Launcher struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

var _ browser.Launcher = (*Launcher)(nil)

// NewLauncher starts Chrome and confirms it responds before returning.
func NewLauncher(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Launcher, error) {
	l := &Launcher{
		logger: logger.Named("cdp"),
		cfg:    cfg,
	}
	l.logger.Info("Initializing browser allocator...", zap.Bool("headless", cfg.Headless))

	// The browser must outlive the caller's context; Close tears it down.
	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(ctx), allocatorOptions(cfg)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	l.allocCancel = allocCancel
	l.browserCtx = browserCtx
	l.browserCancel = browserCancel

	// The first Run allocates the process. It must run on browserCtx itself,
	// since a derived context would kill Chrome when it is canceled.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx, chromedp.Navigate("about:blank")) }()

	select {
	case err := <-started:
		if err != nil {
			l.shutdown()
			return nil, fmt.Errorf("browser failed to start or respond: %w", err)
		}
	case <-time.After(startupTimeout):
		l.shutdown()
		return nil, fmt.Errorf("browser did not start within %s", startupTimeout)
	case <-ctx.Done():
		l.shutdown()
		return nil, ctx.Err()
	}

	l.logger.Info("Browser launched successfully and is responsive.")
	return l, nil
}

// Launch opens a new tab with network tracking enabled and the configured
// viewport applied.
func (l *Launcher) Launch(ctx context.Context) (browser.Driver, error) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("launcher is closed")
	}

	sessionID := uuid.NewString()
	logger := l.logger.With(zap.String("session_id", sessionID))

	tabCtx, tabCancel := chromedp.NewContext(l.browserCtx)
	tracker := newNetTracker(logger)
	chromedp.ListenTarget(tabCtx, tracker.handle)

	setup := []chromedp.Action{network.Enable()}
	if vp := l.cfg.Viewport; vp.Width > 0 && vp.Height > 0 {
		setup = append(setup, chromedp.EmulateViewport(int64(vp.Width), int64(vp.Height)))
	}

	// As with the browser, the first Run creates the tab and binds its
	// lifetime to tabCtx.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tabCtx, setup...) }()
	select {
	case err := <-started:
		if err != nil {
			tabCancel()
			return nil, fmt.Errorf("failed to open browser tab: %w", err)
		}
	case <-ctx.Done():
		tabCancel()
		return nil, ctx.Err()
	}

	logger.Debug("Browser tab opened.")
	return &Driver{
		ctx:      tabCtx,
		cancel:   tabCancel,
		logger:   logger,
		tracker:  tracker,
		refToken: sessionID,
	}, nil
}

// Close terminates the browser process. It is safe to call more than once.
func (l *Launcher) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	l.logger.Info("Shutting down browser.")
	l.shutdown()
	return nil
}

func (l *Launcher) shutdown() {
	if err := chromedp.Cancel(l.browserCtx); err != nil && err != context.Canceled {
		l.logger.Debug("Graceful browser close failed.", zap.Error(err))
	}
	l.browserCancel()
	l.allocCancel()
}

// allocatorFlags translates the browser config into Chrome command-line flags.
func allocatorFlags(cfg config.BrowserConfig) map[string]interface{} {
	flags := map[string]interface{}{
		"headless":                  cfg.Headless,
		"ignore-certificate-errors": cfg.IgnoreTLSErrors,
		"disable-extensions":        true,
		"disable-gpu":               cfg.Headless,
	}

	// Flags required for running inside containers.
	if runtime.GOOS == "linux" {
		flags["no-sandbox"] = true
		flags["disable-dev-shm-usage"] = true
		flags["disable-setuid-sandbox"] = true
	}

	// Custom arguments from the config file win over the defaults above.
	for _, arg := range cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if name == "" {
			continue
		}
		if len(parts) == 2 {
			flags[name] = parts[1]
		} else {
			flags[name] = true
		}
	}
	return flags
}

func allocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	flags := allocatorFlags(cfg)
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		opts = append(opts, chromedp.Flag(name, flags[name]))
	}

	if cfg.Viewport.Width > 0 && cfg.Viewport.Height > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.Viewport.Width, cfg.Viewport.Height))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}
