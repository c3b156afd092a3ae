// internal/browser/pwdriver/launcher.go
package pwdriver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/hrmcheck/internal/browser"
	"github.com/xkilldash9x/hrmcheck/internal/config"
)

const (
	playwrightInstallTimeout = 5 * time.Minute
	launchTimeoutMS          = 60000
)

// Launcher starts the Playwright driver and one Chromium instance lazily, on
// the first Launch, and gives every Driver its own browser context.
type Launcher struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	pw      *playwright.Playwright
	browser playwright.Browser

	initOnce sync.Once
	initErr  error

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

var _ browser.Launcher = (*Launcher)(nil)

// NewLauncher creates a launcher. Nothing is started until the first Launch.
func NewLauncher(cfg config.BrowserConfig, logger *zap.Logger) *Launcher {
	l := &Launcher{
		logger: logger.Named("playwright"),
		cfg:    cfg,
	}
	l.logger.Info("Browser launcher created (initialization deferred).")
	return l
}

func (l *Launcher) initialize(ctx context.Context) error {
	l.initOnce.Do(func() {
		l.logger.Info("Initializing Playwright and launching browser...")

		if err := l.ensureInstallation(ctx); err != nil {
			l.initErr = err
			return
		}

		pw, err := playwright.Run()
		if err != nil {
			l.initErr = fmt.Errorf("failed to start playwright driver: %w", err)
			return
		}

		b, err := pw.Chromium.Launch(launchOptions(l.cfg))
		if err != nil {
			_ = pw.Stop()
			l.initErr = fmt.Errorf("failed to launch browser instance: %w", err)
			return
		}
		l.pw = pw
		l.browser = b

		l.logger.Info("Browser initialized successfully.", zap.String("browser_version", b.Version()))
	})
	return l.initErr
}

// ensureInstallation downloads the Chromium build Playwright expects when it
// is missing.
func (l *Launcher) ensureInstallation(ctx context.Context) error {
	l.logger.Info("Verifying Playwright browser installation...")
	installCtx, cancel := context.WithTimeout(ctx, playwrightInstallTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			done <- fmt.Errorf("failed to install playwright browsers: %w", err)
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-installCtx.Done():
		return fmt.Errorf("timeout waiting for Playwright installation: %w", installCtx.Err())
	}
}

func launchOptions(cfg config.BrowserConfig) playwright.BrowserTypeLaunchOptions {
	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Timeout:  playwright.Float(launchTimeoutMS),
	}
	defaultArgs := []string{
		"--disable-gpu",
		"--no-sandbox",
		"--disable-dev-shm-usage",
	}
	opts.Args = append(defaultArgs, cfg.Args...)
	if cfg.ExecPath != "" {
		opts.ExecutablePath = playwright.String(cfg.ExecPath)
	}
	return opts
}

func contextOptions(cfg config.BrowserConfig) playwright.BrowserNewContextOptions {
	opts := playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(cfg.IgnoreTLSErrors),
	}
	if cfg.Viewport.Width > 0 && cfg.Viewport.Height > 0 {
		opts.Viewport = &playwright.Size{Width: cfg.Viewport.Width, Height: cfg.Viewport.Height}
	}
	return opts
}

// Launch opens an isolated browser context with a single page.
func (l *Launcher) Launch(ctx context.Context) (browser.Driver, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, errors.New("launcher is closed")
	}
	l.wg.Add(1)
	l.mu.Unlock()

	if err := l.initialize(ctx); err != nil {
		l.wg.Done()
		return nil, err
	}

	bctx, err := l.browser.NewContext(contextOptions(l.cfg))
	if err != nil {
		l.wg.Done()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		l.wg.Done()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	sessionID := uuid.NewString()
	logger := l.logger.With(zap.String("session_id", sessionID))
	logger.Debug("New session created.")
	return &Driver{
		bctx:    bctx,
		page:    page,
		logger:  logger,
		onClose: l.wg.Done,
	}, nil
}

// Close waits briefly for open sessions, then closes the browser and stops
// the Playwright driver.
func (l *Launcher) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	l.logger.Info("Shutting down browser launcher.")
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(15 * time.Second):
		l.logger.Warn("Timeout waiting for sessions to close. Proceeding with forceful shutdown.")
	}
	if l.pw == nil {
		return nil
	}

	var errs []error
	if err := l.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
	}
	if err := l.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
	}
	return errors.Join(errs...)
}
