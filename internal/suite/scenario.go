// Package suite holds the scenario catalog and the runner that executes it.
package suite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/hrmcheck/internal/apiclient"
	"github.com/xkilldash9x/hrmcheck/internal/auth"
	"github.com/xkilldash9x/hrmcheck/internal/browser"
	"github.com/xkilldash9x/hrmcheck/internal/config"
	"github.com/xkilldash9x/hrmcheck/internal/datafactory"
	"github.com/xkilldash9x/hrmcheck/internal/pages"
)

// Group names a family of scenarios.
type Group string

const (
	GroupLogin     Group = "login"
	GroupDashboard Group = "dashboard"
	GroupRoles     Group = "roles"
	GroupAPI       Group = "api"
)

// Fixture is what the runner prepares before a scenario body runs.
type Fixture int

const (
	// FixtureNone gives the scenario only config, logger and data.
	FixtureNone Fixture = iota
	// FixtureBrowser adds a fresh browser session.
	FixtureBrowser
	// FixtureLoginPage adds a session with the login page open.
	FixtureLoginPage
	// FixtureDashboard adds a session logged in as admin.
	FixtureDashboard
	// FixtureAPI adds an initialized API client.
	FixtureAPI
)

func (f Fixture) usesBrowser() bool {
	return f == FixtureBrowser || f == FixtureLoginPage || f == FixtureDashboard
}

// Scenario is one named check.
type Scenario struct {
	Name    string
	Group   Group
	Tags    []string
	Fixture Fixture
	Run     func(ctx context.Context, env *Env) error
}

// ID is the scenario's unique "group/name" key.
func (s Scenario) ID() string { return string(s.Group) + "/" + s.Name }

// NeedsBrowser reports whether the scenario runs in a browser session.
func (s Scenario) NeedsBrowser() bool { return s.Fixture.usesBrowser() }

// Env is everything a scenario body may use. It belongs to a single
// scenario execution and is never shared.
type Env struct {
	Config *config.Config
	Logger *zap.Logger
	Data   *datafactory.Factory
	Auth   *auth.Provider

	Driver    browser.Driver
	Page      *pages.Base
	Login     *pages.LoginPage
	Dashboard *pages.DashboardPage

	API *apiclient.Client
}

// Status is a scenario outcome.
type Status int

const (
	Passed Status = iota
	Failed
	Skipped
)

func (s Status) String() string {
	switch s {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// SkipError marks a scenario as not applicable to the target.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string { return "skipped: " + e.Reason }

// Skip ends a scenario body without failing it.
func Skip(reason string) error { return &SkipError{Reason: reason} }

// Result is the record of one scenario execution.
type Result struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Group      Group         `json:"group"`
	Tags       []string      `json:"tags,omitempty"`
	Status     Status        `json:"-"`
	StatusText string        `json:"status"`
	Message    string        `json:"message,omitempty"`
	Screenshot string        `json:"screenshot,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
}

// Summary counts results by status.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// RunReport is the outcome of one runner invocation, in catalog order.
type RunReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Results    []Result  `json:"results"`
}

func (r *RunReport) Summary() Summary {
	s := Summary{Total: len(r.Results)}
	for _, res := range r.Results {
		switch res.Status {
		case Passed:
			s.Passed++
		case Failed:
			s.Failed++
		case Skipped:
			s.Skipped++
		}
	}
	return s
}

// OK reports whether nothing failed.
func (r *RunReport) OK() bool { return r.Summary().Failed == 0 }

func (r *RunReport) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Select filters scenarios by group (exact, "" for all) and by a glob over
// the scenario ID ("" for all).
func Select(scenarios []Scenario, group, pattern string) []Scenario {
	var m browser.Matcher
	if pattern != "" {
		m = browser.Glob(pattern)
	}
	var out []Scenario
	for _, sc := range scenarios {
		if group != "" && string(sc.Group) != group {
			continue
		}
		if m != nil && !m.Match(sc.ID()) {
			continue
		}
		out = append(out, sc)
	}
	return out
}

// classify maps a scenario error to its status.
func classify(err error) (Status, string) {
	if err == nil {
		return Passed, ""
	}
	var skip *SkipError
	if errors.As(err, &skip) {
		return Skipped, skip.Reason
	}
	return Failed, err.Error()
}
