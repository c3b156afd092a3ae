package pages

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/hrmcheck/internal/browser"
)

// Dashboard locators.
var (
	dashboardMarker = browser.Query("h6").WithText("Dashboard")
	userDropdown    = browser.Query(".oxd-userdropdown")
	logoutLink      = browser.Query(".oxd-dropdown-menu a").WithText("Logout")
	mainMenuItem    = browser.Query(".oxd-main-menu-item")
	quickLaunchItem = browser.Query(".oxd-quick-launch-item")
	dashboardWidget = browser.Query(".oxd-dashboard-widget")
)

var (
	titlePattern = browser.MustRegexp("OrangeHRM")
	loggedOutURL = browser.Glob("**/auth/login")
)

// Widget names a dashboard widget by its heading.
type Widget string

const (
	WidgetTimeAtWork Widget = "Time at Work"
	WidgetMyActions  Widget = "My Actions"
)

// Module names an entry in the main menu.
type Module string

const (
	ModuleAdmin       Module = "Admin"
	ModulePIM         Module = "PIM"
	ModuleLeave       Module = "Leave"
	ModuleTime        Module = "Time"
	ModuleRecruitment Module = "Recruitment"
	ModuleMyInfo      Module = "My Info"
	ModuleDirectory   Module = "Directory"
)

// DashboardPage is the landing page after a successful login.
type DashboardPage struct {
	Page
	logger *zap.Logger
}

func NewDashboardPage(page Page, logger *zap.Logger) *DashboardPage {
	return &DashboardPage{Page: page, logger: logger.Named("dashboard_page")}
}

// VerifyLoaded checks the marker, the title and the header text.
func (d *DashboardPage) VerifyLoaded(ctx context.Context) error {
	if err := d.WaitFor(ctx, dashboardMarker, browser.Visible, 0); err != nil {
		return err
	}
	if err := d.AssertTitle(ctx, titlePattern); err != nil {
		return err
	}
	header, err := d.ReadText(ctx, dashboardMarker)
	if err != nil {
		return err
	}
	if header != "Dashboard" {
		return &AssertionError{Subject: "dashboard header", Expected: `"Dashboard"`, Actual: header}
	}
	return nil
}

// Logout opens the user menu, clicks Logout and waits for the login URL.
func (d *DashboardPage) Logout(ctx context.Context) error {
	d.logger.Info("Logging out.")
	if err := d.Interact(ctx, userDropdown, Click()); err != nil {
		return err
	}
	if err := d.Interact(ctx, logoutLink, Click()); err != nil {
		return err
	}
	return d.WaitForURL(ctx, loggedOutURL, d.Settings().NavigationTimeout)
}

// NavigateToModule clicks the main menu entry for module and waits for the
// page to settle. Module pages do not always echo the menu label in their
// header, so callers check the URL.
func (d *DashboardPage) NavigateToModule(ctx context.Context, module Module) error {
	d.logger.Debug("Opening module.", zap.String("module", string(module)))
	if err := d.Interact(ctx, mainMenuItem.WithText(string(module)), Click()); err != nil {
		return fmt.Errorf("open module %s: %w", module, err)
	}
	return d.WaitForReady(ctx)
}

func (d *DashboardPage) ListMainMenuItems(ctx context.Context) ([]string, error) {
	return d.ReadAllTexts(ctx, mainMenuItem)
}

func (d *DashboardPage) HasQuickLaunch(ctx context.Context) (bool, error) {
	n, err := d.Count(ctx, quickLaunchItem)
	return n > 0, err
}

func (d *DashboardPage) ListQuickLaunchItems(ctx context.Context) ([]string, error) {
	return d.ReadAllTexts(ctx, quickLaunchItem)
}

func (d *DashboardPage) ClickQuickLaunchItem(ctx context.Context, name string) error {
	return d.Interact(ctx, quickLaunchItem.WithText(name), Click())
}

// IsWidgetVisible never fails; a missing widget reads as false.
func (d *DashboardPage) IsWidgetVisible(ctx context.Context, w Widget) bool {
	return d.ProbeVisible(ctx, dashboardWidget.WithText(string(w)), 0)
}
