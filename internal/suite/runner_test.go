package suite

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/hrmcheck/internal/browser/browsertest"
	"github.com/xkilldash9x/hrmcheck/internal/config"
	"github.com/xkilldash9x/hrmcheck/internal/datafactory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// The API client's keep-alive connections are torn down asynchronously.
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.App.BaseURL = browsertest.DefaultOrigin + browsertest.BasePath
	cfg.Browser.Concurrency = 4
	cfg.Timeouts = config.TimeoutsConfig{
		Element:      500 * time.Millisecond,
		Probe:        150 * time.Millisecond,
		ErrorProbe:   300 * time.Millisecond,
		Navigation:   time.Second,
		Assertion:    200 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
		Request:      2 * time.Second,
	}
	cfg.Artifacts.Dir = t.TempDir()
	return cfg
}

// hrmAPI answers the few HTTP endpoints the api scenarios touch.
func hrmAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /web/index.php/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=UTF-8")
		_, _ = w.Write([]byte("<html><title>OrangeHRM</title></html>"))
	})
	mux.HandleFunc("POST /web/api/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newRunner(t *testing.T, cfg *config.Config, opts browsertest.OrangeHRMOptions, ropts ...RunnerOption) (*Runner, *browsertest.Launcher) {
	t.Helper()
	launcher := &browsertest.Launcher{Site: browsertest.OrangeHRM(opts)}
	t.Cleanup(func() { _ = launcher.Close() })
	ropts = append([]RunnerOption{WithFactory(datafactory.NewFactory(1))}, ropts...)
	return NewRunner(cfg, launcher, zaptest.NewLogger(t), ropts...), launcher
}

func resultsByID(report *RunReport) map[string]Result {
	out := make(map[string]Result, len(report.Results))
	for _, r := range report.Results {
		out[r.ID] = r
	}
	return out
}

func TestCatalogAgainstFixture(t *testing.T) {
	cfg := testConfig(t)
	srv := hrmAPI(t)
	cfg.App.APIBaseURL = srv.URL + browsertest.BasePath

	runner, launcher := newRunner(t, cfg, browsertest.OrangeHRMOptions{})
	catalog := Catalog()
	report, err := runner.Run(context.Background(), catalog)
	require.NoError(t, err)
	require.Len(t, report.Results, len(catalog))

	for i, sc := range catalog {
		assert.Equal(t, sc.ID(), report.Results[i].ID, "results keep catalog order")
	}

	skipped := map[string]bool{
		"login/valid-user":       true,
		"dashboard/quick-launch": true,
	}
	for _, res := range report.Results {
		want := Passed
		if skipped[res.ID] {
			want = Skipped
		}
		assert.Equal(t, want, res.Status, "%s: %s", res.ID, res.Message)
		assert.Equal(t, res.Status.String(), res.StatusText)
	}

	sum := report.Summary()
	assert.Equal(t, len(catalog), sum.Total)
	assert.Equal(t, 2, sum.Skipped)
	assert.Zero(t, sum.Failed)
	assert.True(t, report.OK())
	assert.NotEmpty(t, report.RunID)

	for _, d := range launcher.Drivers() {
		assert.True(t, d.Closed(), "every browser session is closed")
	}
}

func TestQuickLaunchRunsWhenPresent(t *testing.T) {
	runner, _ := newRunner(t, testConfig(t), browsertest.OrangeHRMOptions{QuickLaunch: true})
	report, err := runner.Run(context.Background(), Select(Catalog(), "dashboard", "*/quick-launch"))
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, Passed, report.Results[0].Status, report.Results[0].Message)
}

func TestRunnerOutcomes(t *testing.T) {
	t.Run("FailureCapturesScreenshot", func(t *testing.T) {
		cfg := testConfig(t)
		runner, _ := newRunner(t, cfg, browsertest.OrangeHRMOptions{})
		report, err := runner.Run(context.Background(), []Scenario{{
			Name:    "always-fails",
			Group:   GroupLogin,
			Fixture: FixtureLoginPage,
			Run: func(context.Context, *Env) error {
				return errors.New("boom")
			},
		}})
		require.NoError(t, err)
		res := report.Results[0]
		assert.Equal(t, Failed, res.Status)
		assert.Equal(t, "boom", res.Message)
		require.NotEmpty(t, res.Screenshot)
		assert.Contains(t, res.Screenshot, "login-always-fails-")
		_, statErr := os.Stat(res.Screenshot)
		assert.NoError(t, statErr)
		assert.False(t, report.OK())
	})

	t.Run("Skip", func(t *testing.T) {
		runner, _ := newRunner(t, testConfig(t), browsertest.OrangeHRMOptions{})
		report, err := runner.Run(context.Background(), []Scenario{{
			Name: "not-here",
			Run:  func(context.Context, *Env) error { return Skip("feature absent") },
		}})
		require.NoError(t, err)
		assert.Equal(t, Skipped, report.Results[0].Status)
		assert.Equal(t, "feature absent", report.Results[0].Message)
		assert.Empty(t, report.Results[0].Screenshot)
	})

	t.Run("PanicIsRecorded", func(t *testing.T) {
		runner, _ := newRunner(t, testConfig(t), browsertest.OrangeHRMOptions{})
		report, err := runner.Run(context.Background(), []Scenario{
			{Name: "panics", Run: func(context.Context, *Env) error { panic("kaboom") }},
			{Name: "fine", Run: func(context.Context, *Env) error { return nil }},
		})
		require.NoError(t, err)
		assert.Equal(t, Failed, report.Results[0].Status)
		assert.Contains(t, report.Results[0].Message, "kaboom")
		assert.Equal(t, Passed, report.Results[1].Status)
	})

	t.Run("SetupFailure", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Credentials.Admin.Password = "wrong"
		ran := false
		runner, launcher := newRunner(t, cfg, browsertest.OrangeHRMOptions{})
		report, err := runner.Run(context.Background(), []Scenario{{
			Name:    "needs-dashboard",
			Group:   GroupDashboard,
			Fixture: FixtureDashboard,
			Run:     func(context.Context, *Env) error { ran = true; return nil },
		}})
		require.NoError(t, err)
		assert.False(t, ran)
		res := report.Results[0]
		assert.Equal(t, Failed, res.Status)
		assert.Contains(t, res.Message, "setup:")
		assert.NotEmpty(t, res.Screenshot)
		require.Len(t, launcher.Drivers(), 1)
		assert.True(t, launcher.Drivers()[0].Closed())
	})

	t.Run("MissingCredentialsNeverLaunchNavigation", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Credentials.Admin.Username = ""
		runner, launcher := newRunner(t, cfg, browsertest.OrangeHRMOptions{})
		report, err := runner.Run(context.Background(), Select(Catalog(), "roles", ""))
		require.NoError(t, err)
		assert.Equal(t, Failed, report.Results[0].Status)
		assert.Contains(t, report.Results[0].Message, "no username configured for role admin")
		require.Len(t, launcher.Drivers(), 1)
		assert.Zero(t, launcher.Drivers()[0].Navigations())
	})

	t.Run("NoBody", func(t *testing.T) {
		runner, _ := newRunner(t, testConfig(t), browsertest.OrangeHRMOptions{})
		report, err := runner.Run(context.Background(), []Scenario{{Name: "empty"}})
		require.NoError(t, err)
		assert.Equal(t, Failed, report.Results[0].Status)
	})
}

func TestMissingEndpointNeedsAnAnswer(t *testing.T) {
	missing := Select(Catalog(), "api", "api/missing-endpoint")
	require.Len(t, missing, 1)

	t.Run("NotFound", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.App.APIBaseURL = hrmAPI(t).URL + browsertest.BasePath
		runner, _ := newRunner(t, cfg, browsertest.OrangeHRMOptions{})
		report, err := runner.Run(context.Background(), missing)
		require.NoError(t, err)
		assert.Equal(t, Passed, report.Results[0].Status, report.Results[0].Message)
	})

	t.Run("TransportFailure", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		cfg := testConfig(t)
		cfg.App.APIBaseURL = srv.URL + browsertest.BasePath
		runner, _ := newRunner(t, cfg, browsertest.OrangeHRMOptions{})
		report, err := runner.Run(context.Background(), missing)
		require.NoError(t, err)
		assert.Equal(t, Failed, report.Results[0].Status)
		assert.Contains(t, report.Results[0].Message, "well-formed request failed")
	})
}

func TestRunnerConcurrencyLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Browser.Concurrency = 2
	runner, _ := newRunner(t, cfg, browsertest.OrangeHRMOptions{})

	var inFlight, peak atomic.Int32
	body := func(context.Context, *Env) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}

	var scenarios []Scenario
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		scenarios = append(scenarios, Scenario{Name: name, Run: body})
	}
	report, err := runner.Run(context.Background(), scenarios)
	require.NoError(t, err)
	assert.Equal(t, 6, report.Summary().Passed)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestRunnerCancelled(t *testing.T) {
	runner, launcher := newRunner(t, testConfig(t), browsertest.OrangeHRMOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := runner.Run(ctx, Select(Catalog(), "login", ""))
	require.ErrorIs(t, err, context.Canceled)
	for _, res := range report.Results {
		assert.Equal(t, Failed, res.Status)
	}
	assert.Empty(t, launcher.Drivers())
}

func TestRunnerTrace(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	runner, _ := newRunner(t, testConfig(t), browsertest.OrangeHRMOptions{}, WithTrace(zap.New(core)))

	_, err := runner.Run(context.Background(), []Scenario{{
		Name:  "traced",
		Group: GroupAPI,
		Run:   func(context.Context, *Env) error { return nil },
	}})
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("scenario.start").Len())
	ends := logs.FilterMessage("scenario.end").All()
	require.Len(t, ends, 1)
	assert.Equal(t, "api/traced", ends[0].ContextMap()["scenario"])
	assert.Equal(t, "passed", ends[0].ContextMap()["status"])
}

func TestSelect(t *testing.T) {
	all := Catalog()
	assert.Len(t, Select(all, "", ""), len(all))

	api := Select(all, "api", "")
	assert.Len(t, api, 4)
	for _, sc := range api {
		assert.Equal(t, GroupAPI, sc.Group)
	}

	sql := Select(all, "", "*/sql-*")
	require.Len(t, sql, 1)
	assert.Equal(t, "login/sql-injection", sql[0].ID())

	assert.Empty(t, Select(all, "nope", ""))

	ids := make(map[string]bool)
	for _, sc := range all {
		assert.False(t, ids[sc.ID()], "duplicate id %s", sc.ID())
		ids[sc.ID()] = true
		assert.NotNil(t, sc.Run, sc.ID())
	}
}
