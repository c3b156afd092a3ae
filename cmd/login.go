package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/hrmcheck/internal/auth"
	"github.com/xkilldash9x/hrmcheck/internal/config"
	"github.com/xkilldash9x/hrmcheck/internal/observability"
	"github.com/xkilldash9x/hrmcheck/internal/pages"
)

func newLoginCmd() *cobra.Command {
	var (
		roleName   string
		screenshot bool
	)

	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Log a browser session in as a role and print the dashboard state",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd, map[string]string{
				"browser.driver":   "driver",
				"browser.headless": "headless",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			role, err := auth.ParseRole(roleName)
			if err != nil {
				return err
			}
			return runLogin(ctx, cmd.OutOrStdout(), observability.GetLogger(), cfg, role, screenshot)
		},
	}

	loginCmd.Flags().StringVarP(&roleName, "role", "r", "admin", "Role to log in as (admin or user)")
	loginCmd.Flags().BoolVar(&screenshot, "screenshot", false, "Save a screenshot of the dashboard")
	loginCmd.Flags().String("driver", config.DriverChromedp, "Browser engine (chromedp or playwright)")
	loginCmd.Flags().Bool("headless", true, "Run the browser without a window")
	return loginCmd
}

func runLogin(ctx context.Context, out io.Writer, logger *zap.Logger, cfg *config.Config, role auth.Role, screenshot bool) error {
	// Fail on missing credentials before paying for a browser start.
	if _, err := auth.Resolve(cfg.Credentials, role); err != nil {
		return err
	}

	launcher, err := newLauncher(ctx, cfg.Browser, logger)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() { _ = launcher.Close() }()

	driver, err := launcher.Launch(ctx)
	if err != nil {
		return fmt.Errorf("failed to open browser session: %w", err)
	}
	defer func() { _ = driver.Close(context.WithoutCancel(ctx)) }()

	provider := auth.NewProvider(cfg.Credentials, pages.SettingsFromConfig(cfg), logger)
	session, err := provider.LoginAs(ctx, driver, role)
	if err != nil {
		return err
	}

	url, err := session.Page.URL(ctx)
	if err != nil {
		return err
	}
	menu, err := session.Dashboard.ListMainMenuItems(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Logged in as %s (%s)\n", session.Role, session.Username)
	fmt.Fprintf(out, "URL:  %s\n", url)
	fmt.Fprintf(out, "Menu: %s\n", strings.Join(menu, ", "))
	for _, w := range []pages.Widget{pages.WidgetTimeAtWork, pages.WidgetMyActions} {
		fmt.Fprintf(out, "Widget %q visible: %t\n", string(w), session.Dashboard.IsWidgetVisible(ctx, w))
	}

	if screenshot {
		path, err := session.Page.CaptureScreenshot(ctx, "login-"+session.Role.String())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Screenshot: %s\n", path)
	}
	return nil
}
