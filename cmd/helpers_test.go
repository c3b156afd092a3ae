// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/hrmcheck/internal/browser"
	"github.com/xkilldash9x/hrmcheck/internal/browser/browsertest"
	"github.com/xkilldash9x/hrmcheck/internal/config"
	"github.com/xkilldash9x/hrmcheck/internal/store"
	"github.com/xkilldash9x/hrmcheck/internal/suite"
)

// newTestConfig returns defaults pointed at the in-memory OrangeHRM site with
// timeouts short enough for unit tests.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	cfg, err := config.NewConfigFromViper(v)
	require.NoError(t, err)

	cfg.App.BaseURL = browsertest.DefaultOrigin + browsertest.BasePath
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
	cfg.Artifacts.Reports = []string{"json", "junit"}
	cfg.Logger.LogFile = ""
	return cfg
}

// executeWithConfig runs the command tree with cfg already in the context, so
// the root's config loading is skipped.
func executeWithConfig(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	ctx := context.WithValue(context.Background(), configKey, cfg)
	err := root.ExecuteContext(ctx)
	return buf.String(), err
}

// useFixtureLauncher swaps the browser engine for the in-memory site.
func useFixtureLauncher(t *testing.T, opts browsertest.OrangeHRMOptions) *browsertest.Launcher {
	t.Helper()
	l := &browsertest.Launcher{Site: browsertest.OrangeHRM(opts)}
	prev := newLauncher
	newLauncher = func(context.Context, config.BrowserConfig, *zap.Logger) (browser.Launcher, error) {
		return l, nil
	}
	t.Cleanup(func() { newLauncher = prev })
	return l
}

type fakeStore struct {
	mu      sync.Mutex
	saved   []*suite.RunReport
	infos   []store.RunInfo
	runs    []store.RunRecord
	results map[string][]suite.Result
	err     error
}

func (f *fakeStore) SaveRun(_ context.Context, report *suite.RunReport, info store.RunInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, report)
	f.infos = append(f.infos, info)
	return nil
}

func (f *fakeStore) ListRuns(_ context.Context, limit int) ([]store.RunRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func (f *fakeStore) GetResults(_ context.Context, runID string) ([]suite.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results[runID], nil
}

type fakeStoreProvider struct {
	store     *fakeStore
	err       error
	cleanedUp bool
}

func (p *fakeStoreProvider) Create(context.Context, *config.Config) (runStore, func(), error) {
	if p.err != nil {
		return nil, nil, p.err
	}
	return p.store, func() { p.cleanedUp = true }, nil
}

// mockStore records calls for tests that care about the arguments passed.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) SaveRun(ctx context.Context, report *suite.RunReport, info store.RunInfo) error {
	return m.Called(ctx, report, info).Error(0)
}

func (m *mockStore) ListRuns(ctx context.Context, limit int) ([]store.RunRecord, error) {
	args := m.Called(ctx, limit)
	runs, _ := args.Get(0).([]store.RunRecord)
	return runs, args.Error(1)
}

func (m *mockStore) GetResults(ctx context.Context, runID string) ([]suite.Result, error) {
	args := m.Called(ctx, runID)
	results, _ := args.Get(0).([]suite.Result)
	return results, args.Error(1)
}

type mockStoreProvider struct{ store *mockStore }

func (p mockStoreProvider) Create(context.Context, *config.Config) (runStore, func(), error) {
	return p.store, nil, nil
}
