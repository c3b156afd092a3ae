package suite

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"


	"github.com/xkilldash9x/hrmcheck/internal/auth"
	"github.com/xkilldash9x/hrmcheck/internal/browser"
	"github.com/xkilldash9x/hrmcheck/internal/datafactory"
	"github.com/xkilldash9x/hrmcheck/internal/pages"
)

var (
	landedURL       = browser.MustRegexp("(dashboard|login)")
	adminURL        = browser.MustRegexp("admin")
	loginURL        = browser.MustRegexp("login")
	pageHeading     = browser.Query("h6")
	mobileViewport  = browser.Viewport{Width: 375, Height: 667}
	sqlInjections   = []string{"' OR '1'='1", "admin'--", "admin'/*"}
	expectedModules = []string{"Admin", "PIM", "Leave", "Time", "Recruitment"}
)

// Catalog returns every built-in scenario in execution order.
func Catalog() []Scenario {
	var all []Scenario
	all = append(all, loginScenarios()...)
	all = append(all, dashboardScenarios()...)
	all = append(all, roleScenarios()...)
	all = append(all, apiScenarios()...)
	return all
}

// expectRejected runs a login that must not reach the dashboard.
func expectRejected(ctx context.Context, login *pages.LoginPage, username, password string) error {
	if _, err := login.Login(ctx, username, password); err == nil {
		return fmt.Errorf("login as %q unexpectedly succeeded", username)
	}
	return nil
}

func loginAsRole(ctx context.Context, env *Env, role auth.Role) error {
	creds, err := auth.Resolve(env.Config.Credentials, role)
	if err != nil {
		return err
	}
	dash, err := env.Login.Login(ctx, creds.Username, creds.Password)
	if err != nil {
		return err
	}
	return dash.VerifyLoaded(ctx)
}

func loginScenarios() []Scenario {
	ui := func(name string, tags []string, run func(ctx context.Context, env *Env) error) Scenario {
		return Scenario{Name: name, Group: GroupLogin, Tags: tags, Fixture: FixtureLoginPage, Run: run}
	}
	return []Scenario{
		ui("form-visible", []string{"smoke"}, func(ctx context.Context, env *Env) error {
			if !env.Login.IsLoginFormVisible(ctx) {
				return errors.New("login form is not fully visible")
			}
			return nil
		}),
		ui("forgot-password-link", nil, func(ctx context.Context, env *Env) error {
			if !env.Login.IsForgotPasswordVisible(ctx) {
				return Skip("forgot password link is not offered")
			}
			return nil
		}),
		ui("valid-admin", []string{"smoke"}, func(ctx context.Context, env *Env) error {
			return loginAsRole(ctx, env, auth.RoleAdmin)
		}),
		ui("valid-user", nil, func(ctx context.Context, env *Env) error {
			creds, err := auth.Resolve(env.Config.Credentials, auth.RoleUser)
			if err != nil || creds.Username == "user" {
				return Skip("user credentials are not configured")
			}
			return loginAsRole(ctx, env, auth.RoleUser)
		}),
		ui("invalid-credentials", []string{"negative"}, func(ctx context.Context, env *Env) error {
			bad := datafactory.InvalidCredentials()
			_, err := env.Login.Login(ctx, bad.Username, bad.Password)
			var le *pages.LoginError
			if !errors.As(err, &le) {
				return fmt.Errorf("expected a login error, got %v", err)
			}
			if msg := env.Login.GetErrorMessage(ctx); msg == "" {
				return errors.New("no error message shown for rejected credentials")
			}
			return nil
		}),
		ui("empty-username", []string{"negative"}, func(ctx context.Context, env *Env) error {
			return expectRejected(ctx, env.Login, "", "password123")
		}),
		ui("empty-password", []string{"negative"}, func(ctx context.Context, env *Env) error {
			return expectRejected(ctx, env.Login, "admin", "")
		}),
		ui("empty-credentials", []string{"negative"}, func(ctx context.Context, env *Env) error {
			return expectRejected(ctx, env.Login, "", "")
		}),
		ui("special-characters", []string{"negative"}, func(ctx context.Context, env *Env) error {
			return expectRejected(ctx, env.Login, "user@#$%", "pass!@#$")
		}),
		ui("sql-injection", []string{"negative", "security"}, func(ctx context.Context, env *Env) error {
			for _, attempt := range sqlInjections {
				if err := env.Login.Open(ctx); err != nil {
					return err
				}
				if err := expectRejected(ctx, env.Login, attempt, "password"); err != nil {
					return err
				}
			}
			return nil
		}),
		ui("session-after-reload", nil, func(ctx context.Context, env *Env) error {
			if err := loginAsRole(ctx, env, auth.RoleAdmin); err != nil {
				return err
			}
			if err := env.Page.Reload(ctx); err != nil {
				return err
			}
			return env.Page.AssertURL(ctx, landedURL)
		}),
	}
}

func dashboardScenarios() []Scenario {
	ui := func(name string, tags []string, run func(ctx context.Context, env *Env) error) Scenario {
		return Scenario{Name: name, Group: GroupDashboard, Tags: tags, Fixture: FixtureDashboard, Run: run}
	}
	return []Scenario{
		ui("loaded", []string{"smoke"}, func(ctx context.Context, env *Env) error {
			return env.Dashboard.VerifyLoaded(ctx)
		}),
		ui("main-menu", nil, func(ctx context.Context, env *Env) error {
			items, err := env.Dashboard.ListMainMenuItems(ctx)
			if err != nil {
				return err
			}
			for _, want := range expectedModules {
				if !slices.Contains(items, want) {
					return fmt.Errorf("main menu %v is missing %q", items, want)
				}
			}
			return nil
		}),
		ui("widgets", nil, func(ctx context.Context, env *Env) error {
			if env.Dashboard.IsWidgetVisible(ctx, pages.WidgetTimeAtWork) ||
				env.Dashboard.IsWidgetVisible(ctx, pages.WidgetMyActions) {
				return nil
			}
			return errors.New("no dashboard widget is visible")
		}),
		ui("navigate-admin", nil, func(ctx context.Context, env *Env) error {
			if err := env.Dashboard.NavigateToModule(ctx, pages.ModuleAdmin); err != nil {
				return err
			}
			return env.Page.AssertURL(ctx, adminURL)
		}),
		ui("logout", []string{"smoke"}, func(ctx context.Context, env *Env) error {
			if err := env.Dashboard.Logout(ctx); err != nil {
				return err
			}
			if !env.Login.IsLoginFormVisible(ctx) {
				return errors.New("login form not shown after logout")
			}
			return env.Page.AssertURL(ctx, loginURL)
		}),
		ui("quick-launch", nil, func(ctx context.Context, env *Env) error {
			has, err := env.Dashboard.HasQuickLaunch(ctx)
			if err != nil {
				return err
			}
			if !has {
				return Skip("quick launch is not available")
			}
			items, err := env.Dashboard.ListQuickLaunchItems(ctx)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return errors.New("quick launch has no items")
			}
			return nil
		}),
		ui("mobile-viewport", []string{"responsive"}, func(ctx context.Context, env *Env) error {
			if err := env.Page.SetViewport(ctx, mobileViewport); err != nil {
				return err
			}
			return env.Dashboard.VerifyLoaded(ctx)
		}),
	}
}

func roleScenarios() []Scenario {
	return []Scenario{{
		Name:    "admin-dashboard",
		Group:   GroupRoles,
		Tags:    []string{"smoke"},
		Fixture: FixtureBrowser,
		Run: func(ctx context.Context, env *Env) error {
			session, err := env.Auth.LoginAs(ctx, env.Driver, auth.RoleAdmin)
			if err != nil {
				return err
			}
			heading, err := session.Page.ReadText(ctx, pageHeading)
			if err != nil {
				return err
			}
			if heading != "Dashboard" {
				return fmt.Errorf("expected heading %q, got %q", "Dashboard", heading)
			}
			return nil
		},
	}}
}

func apiScenarios() []Scenario {
	api := func(name string, run func(ctx context.Context, env *Env) error) Scenario {
		return Scenario{Name: name, Group: GroupAPI, Tags: []string{"api"}, Fixture: FixtureAPI, Run: run}
	}
	return []Scenario{
		api("login-page-status", func(ctx context.Context, env *Env) error {
			resp, err := env.API.Get(ctx, "/index.php/auth/login", nil)
			if err != nil {
				return err
			}
			if resp.Status != 200 {
				return fmt.Errorf("expected status 200, got %d", resp.Status)
			}
			return nil
		}),
		api("login-page-headers", func(ctx context.Context, env *Env) error {
			resp, err := env.API.Get(ctx, "/index.php/auth/login", nil)
			if err != nil {
				return err
			}
			if ct := resp.Headers["content-type"]; !strings.Contains(ct, "text/html") {
				return fmt.Errorf("expected an HTML content type, got %q", ct)
			}
			return nil
		}),
		api("invalid-credentials", func(ctx context.Context, env *Env) error {
			bad := datafactory.InvalidCredentials()
			resp, err := env.API.Post(ctx, "/api/auth/login", bad)
			if err != nil {
				return err
			}
			return expectStatus(resp.Status, 400, 401, 404)
		}),
		api("missing-endpoint", func(ctx context.Context, env *Env) error {
			resp, err := env.API.Get(ctx, "/non-existent-endpoint", nil)
			if err != nil {
				return fmt.Errorf("well-formed request failed instead of answering: %w", err)
			}
			return expectStatus(resp.Status, 404, 500)
		}),
	}
}

func expectStatus(got int, allowed ...int) error {
	if slices.Contains(allowed, got) {
		return nil
	}
	return fmt.Errorf("expected status in %v, got %d", allowed, got)
}
