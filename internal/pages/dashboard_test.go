package pages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/hrmcheck/internal/browser"
	"github.com/xkilldash9x/hrmcheck/internal/browser/browsertest"
	"github.com/xkilldash9x/hrmcheck/internal/wait"
)

func loggedIn(t *testing.T, opts browsertest.OrangeHRMOptions) (*fixture, *DashboardPage) {
	t.Helper()
	f := newFixture(t, opts)
	openLogin(t, f)
	dash, err := f.login.Login(context.Background(), "Admin", "admin123")
	require.NoError(t, err)
	return f, dash
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()

	t.Run("MainMenu", func(t *testing.T) {
		_, dash := loggedIn(t, browsertest.OrangeHRMOptions{})
		items, err := dash.ListMainMenuItems(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Admin", "PIM", "Leave", "Time", "Recruitment", "My Info", "Directory"}, items)
	})

	t.Run("Widgets", func(t *testing.T) {
		_, dash := loggedIn(t, browsertest.OrangeHRMOptions{})
		assert.True(t, dash.IsWidgetVisible(ctx, WidgetTimeAtWork))
		assert.True(t, dash.IsWidgetVisible(ctx, WidgetMyActions))
		assert.False(t, dash.IsWidgetVisible(ctx, Widget("Buzz Latest Posts")))
	})

	t.Run("NoQuickLaunch", func(t *testing.T) {
		_, dash := loggedIn(t, browsertest.OrangeHRMOptions{})
		has, err := dash.HasQuickLaunch(ctx)
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("QuickLaunch", func(t *testing.T) {
		f, dash := loggedIn(t, browsertest.OrangeHRMOptions{QuickLaunch: true})
		has, err := dash.HasQuickLaunch(ctx)
		require.NoError(t, err)
		assert.True(t, has)

		items, err := dash.ListQuickLaunchItems(ctx)
		require.NoError(t, err)
		assert.Contains(t, items, "Timesheets")

		require.NoError(t, dash.ClickQuickLaunchItem(ctx, "Timesheets"))
		actions := f.driver.Actions()
		assert.Contains(t, actions[len(actions)-1], "Timesheets")
	})

	t.Run("NavigateToModule", func(t *testing.T) {
		f, dash := loggedIn(t, browsertest.OrangeHRMOptions{})
		require.NoError(t, dash.NavigateToModule(ctx, ModulePIM))
		assert.Contains(t, f.url(t), "/pim/")

		err := dash.VerifyLoaded(ctx)
		assert.True(t, wait.IsTimeout(err), "module page is not the dashboard")
	})

	t.Run("NavigateToModuleWithDifferentHeader", func(t *testing.T) {
		f, dash := loggedIn(t, browsertest.OrangeHRMOptions{})
		require.NoError(t, dash.NavigateToModule(ctx, ModuleMyInfo))
		assert.Contains(t, f.url(t), "/pim/viewPersonalDetails")

		header, err := dash.ReadText(ctx, browser.Query("h6"))
		require.NoError(t, err)
		assert.Equal(t, "PIM", header)
	})

	t.Run("NavigateToMissingModule", func(t *testing.T) {
		_, dash := loggedIn(t, browsertest.OrangeHRMOptions{})
		err := dash.NavigateToModule(ctx, Module("Buzz"))
		assert.ErrorContains(t, err, "open module Buzz")
	})

	t.Run("Logout", func(t *testing.T) {
		f, dash := loggedIn(t, browsertest.OrangeHRMOptions{})
		require.NoError(t, dash.Logout(ctx))
		assert.Equal(t, browsertest.DefaultOrigin+browsertest.LoginPath, f.url(t))
		assert.True(t, f.login.IsLoginFormVisible(ctx))
	})
}
