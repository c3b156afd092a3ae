package suite

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/hrmcheck/internal/apiclient"
	"github.com/xkilldash9x/hrmcheck/internal/auth"
	"github.com/xkilldash9x/hrmcheck/internal/browser"
	"github.com/xkilldash9x/hrmcheck/internal/config"
	"github.com/xkilldash9x/hrmcheck/internal/datafactory"
	"github.com/xkilldash9x/hrmcheck/internal/pages"
)

const (
	// closeTimeout bounds driver teardown after the scenario context is gone.
	closeTimeout = 10 * time.Second
	// screenshotTimeout bounds the failure screenshot.
	screenshotTimeout = 5 * time.Second
)

// Runner executes scenarios, each in its own browser session.
type Runner struct {
	cfg      *config.Config
	launcher browser.Launcher
	logger   *zap.Logger
	trace    *zap.Logger
	factory  *datafactory.Factory
	apiOpts  []apiclient.Option
	now      func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTrace sends per-scenario start and end events to trace.
func WithTrace(trace *zap.Logger) RunnerOption {
	return func(r *Runner) { r.trace = trace }
}

// WithFactory overrides the test data factory, typically to fix its seed.
func WithFactory(f *datafactory.Factory) RunnerOption {
	return func(r *Runner) { r.factory = f }
}

// WithAPIOptions passes extra options to every API client the runner creates.
func WithAPIOptions(opts ...apiclient.Option) RunnerOption {
	return func(r *Runner) { r.apiOpts = append(r.apiOpts, opts...) }
}

// NewRunner builds a runner. launcher may be nil when only API scenarios run.
func NewRunner(cfg *config.Config, launcher browser.Launcher, logger *zap.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:      cfg,
		launcher: launcher,
		logger:   logger.Named("suite"),
		trace:    zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.factory == nil {
		r.factory = datafactory.NewFactory(0)
	}
	return r
}

// Run executes scenarios with at most browser.concurrency in flight. Scenario
// failures are recorded in the report; the returned error is only set when the
// run itself could not proceed.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.NewString(),
		StartedAt: r.now(),
		Results:   make([]Result, len(scenarios)),
	}
	logger := r.logger.With(zap.String("run_id", report.RunID))
	logger.Info("Starting run.", zap.Int("scenarios", len(scenarios)), zap.Int("concurrency", r.cfg.Browser.Concurrency))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.cfg.Browser.Concurrency, 1))
	for i, sc := range scenarios {
		g.Go(func() error {
			report.Results[i] = r.runOne(gctx, sc, logger)
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = r.now()
	sum := report.Summary()
	logger.Info("Run finished.",
		zap.Int("passed", sum.Passed),
		zap.Int("failed", sum.Failed),
		zap.Int("skipped", sum.Skipped),
		zap.Duration("duration", report.Duration()))

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("run interrupted: %w", err)
	}
	return report, nil
}

func (r *Runner) runOne(ctx context.Context, sc Scenario, parent *zap.Logger) (res Result) {
	logger := parent.With(zap.String("scenario", sc.ID()))
	res = Result{ID: sc.ID(), Name: sc.Name, Group: sc.Group, Tags: sc.Tags, StartedAt: r.now()}
	r.trace.Info("scenario.start", zap.String("scenario", sc.ID()), zap.Strings("tags", sc.Tags))

	defer func() {
		res.Duration = r.now().Sub(res.StartedAt)
		res.StatusText = res.Status.String()
		r.trace.Info("scenario.end",
			zap.String("scenario", sc.ID()),
			zap.String("status", res.StatusText),
			zap.String("message", res.Message),
			zap.Duration("duration", res.Duration))
	}()

	if err := ctx.Err(); err != nil {
		res.Status, res.Message = Failed, "not started: "+err.Error()
		return res
	}

	env := &Env{
		Config: r.cfg,
		Logger: logger,
		Data:   r.factory,
	}
	settings := pages.SettingsFromConfig(r.cfg)
	env.Auth = auth.NewProvider(r.cfg.Credentials, settings, logger)

	teardown, err := r.setup(ctx, sc.Fixture, env, settings)
	defer teardown()
	if err != nil {
		res.Status, res.Message = Failed, "setup: "+err.Error()
		res.Screenshot = r.screenshot(ctx, env, sc, logger)
		logger.Warn("Scenario setup failed.", zap.Error(err))
		return res
	}

	err = r.execute(ctx, sc, env)
	res.Status, res.Message = classify(err)
	switch res.Status {
	case Failed:
		res.Screenshot = r.screenshot(ctx, env, sc, logger)
		logger.Warn("Scenario failed.", zap.Error(err))
	case Skipped:
		logger.Info("Scenario skipped.", zap.String("reason", res.Message))
	default:
		logger.Info("Scenario passed.")
	}
	return res
}

// execute runs the scenario body, turning a panic into a failure.
func (r *Runner) execute(ctx context.Context, sc Scenario, env *Env) (err error) {
	defer func() {
		if p := recover(); p != nil {
			env.Logger.Error("Scenario panicked.", zap.Any("panic", p), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	if sc.Run == nil {
		return fmt.Errorf("scenario %s has no body", sc.ID())
	}
	return sc.Run(ctx, env)
}

// setup prepares fixture on env. The returned teardown is always non-nil and
// must be called even when setup fails.
func (r *Runner) setup(ctx context.Context, fixture Fixture, env *Env, settings pages.Settings) (func(), error) {
	var closers []func()
	teardown := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if fixture == FixtureAPI {
		client := apiclient.New(append([]apiclient.Option{
			apiclient.WithLogger(env.Logger),
			apiclient.WithTimeout(r.cfg.Timeouts.Request),
			apiclient.WithInsecureSkipVerify(r.cfg.Browser.IgnoreTLSErrors),
		}, r.apiOpts...)...)
		closers = append(closers, client.Dispose)
		if err := client.Init(ctx, r.cfg.APIBaseURL()); err != nil {
			return teardown, err
		}
		env.API = client
		return teardown, nil
	}

	if !fixture.usesBrowser() {
		return teardown, nil
	}
	if r.launcher == nil {
		return teardown, fmt.Errorf("no browser launcher configured")
	}

	driver, err := r.launcher.Launch(ctx)
	if err != nil {
		return teardown, fmt.Errorf("launch browser: %w", err)
	}
	closers = append(closers, func() {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if err := driver.Close(cctx); err != nil {
			env.Logger.Warn("Failed to close browser session.", zap.Error(err))
		}
	})

	env.Driver = driver
	env.Page = pages.NewBase(driver, settings, env.Logger)
	env.Login = pages.NewLoginPage(env.Page, env.Logger)

	switch fixture {
	case FixtureLoginPage:
		if err := env.Login.Open(ctx); err != nil {
			return teardown, fmt.Errorf("open login page: %w", err)
		}
	case FixtureDashboard:
		session, err := env.Auth.LoginAs(ctx, driver, auth.RoleAdmin)
		if err != nil {
			return teardown, err
		}
		env.Dashboard = session.Dashboard
	}
	return teardown, nil
}

// screenshot captures the page of a failing UI scenario. It runs on a fresh
// deadline so a cancelled scenario still leaves evidence.
func (r *Runner) screenshot(ctx context.Context, env *Env, sc Scenario, logger *zap.Logger) string {
	if env.Page == nil {
		return ""
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), screenshotTimeout)
	defer cancel()
	path, err := env.Page.CaptureScreenshot(sctx, string(sc.Group)+"-"+sc.Name)
	if err != nil {
		logger.Warn("Failed to capture failure screenshot.", zap.Error(err))
		return ""
	}
	return path
}
