package browsertest

import (
	"fmt"
	"strings"
	"time"

	"github.com/xkilldash9x/hrmcheck/internal/browser"
)

// Paths served by the OrangeHRM fixture, relative to DefaultOrigin.
const (
	BasePath      = "/web"
	LoginPath     = "/web/index.php/auth/login"
	DashboardPath = "/web/index.php/dashboard/index"
)

// InvalidCredentialsText is the alert shown for a rejected login.
const InvalidCredentialsText = "Invalid credentials"

// OrangeHRMOptions shapes the fixture.
type OrangeHRMOptions struct {
	// Accounts maps usernames to passwords. Nil means Admin/admin123 only.
	Accounts map[string]string
	// LoginDelay is how long the dashboard takes to appear after a valid submit.
	LoginDelay time.Duration
	// ErrorDelay is how long the alert takes to appear after a rejected submit.
	ErrorDelay time.Duration
	// QuickLaunch adds the quick launch widget to the dashboard.
	QuickLaunch bool
	// Stall makes valid logins never reach the dashboard.
	Stall bool
}

// modulePaths lists the main menu. The header is the breadcrumb the module
// page renders, which is not always the menu label.
var modulePaths = []struct {
	name   string
	path   string
	header string
}{
	{"Admin", "/web/index.php/admin/viewSystemUsers", "Admin"},
	{"PIM", "/web/index.php/pim/viewEmployeeList", "PIM"},
	{"Leave", "/web/index.php/leave/viewLeaveList", "Leave"},
	{"Time", "/web/index.php/time/viewEmployeeTimesheet", "Time"},
	{"Recruitment", "/web/index.php/recruitment/viewCandidates", "Recruitment"},
	{"My Info", "/web/index.php/pim/viewPersonalDetails/empNumber/7", "PIM"},
	{"Directory", "/web/index.php/directory/viewDirectory", "Directory"},
}

var quickLaunchItems = []string{"Assign Leave", "Leave List", "Timesheets", "Apply Leave", "My Leave", "My Timesheet"}

const loginHTML = `<!DOCTYPE html>
<html><head><title>OrangeHRM</title></head>
<body>
<div class="orangehrm-login-container">
  <h5 class="orangehrm-login-title">Login</h5>
  <div class="oxd-alert oxd-alert--error" role="alert" hidden>
    <p class="oxd-text oxd-alert-content-text"></p>
  </div>
  <form class="oxd-form">
    <div class="oxd-input-group username"><input class="oxd-input" name="username" placeholder="Username"></div>
    <div class="oxd-input-group password"><input class="oxd-input" type="password" name="password" placeholder="Password"></div>
    <button type="submit" class="oxd-button orangehrm-login-button">Login</button>
  </form>
  <div class="orangehrm-login-forgot"><p class="oxd-text orangehrm-login-forgot-header">Forgot your password?</p></div>
</div>
</body></html>`

func dashboardHTML(quickLaunch bool) string {
	var menu strings.Builder
	for _, m := range modulePaths {
		fmt.Fprintf(&menu, `<li class="oxd-main-menu-item-wrapper"><a class="oxd-main-menu-item" href="%s"><span class="oxd-main-menu-item--name">%s</span></a></li>`, m.path, m.name)
	}

	var launch string
	if quickLaunch {
		var items strings.Builder
		for _, item := range quickLaunchItems {
			fmt.Fprintf(&items, `<div class="oxd-quick-launch-item"><p class="oxd-text">%s</p></div>`, item)
		}
		launch = `<div class="oxd-dashboard-widget"><p class="oxd-text">Quick Launch</p>` + items.String() + `</div>`
	}

	return `<!DOCTYPE html>
<html><head><title>OrangeHRM</title></head>
<body>
<aside class="oxd-sidepanel"><ul class="oxd-main-menu">` + menu.String() + `</ul></aside>
<header class="oxd-topbar">
  <span class="oxd-topbar-header-breadcrumb"><h6 class="oxd-text oxd-topbar-header-breadcrumb-module">Dashboard</h6></span>
  <span class="oxd-userdropdown"><p class="oxd-userdropdown-name">Paul Collings</p></span>
  <ul class="oxd-dropdown-menu" role="menu" hidden>
    <li><a class="oxd-userdropdown-link" href="#">About</a></li>
    <li><a class="oxd-userdropdown-link" href="/web/index.php/auth/logout">Logout</a></li>
  </ul>
</header>
<div class="orangehrm-dashboard-grid">
  <div class="oxd-dashboard-widget"><p class="oxd-text">Time at Work</p></div>
  <div class="oxd-dashboard-widget"><p class="oxd-text">My Actions</p></div>
  ` + launch + `
</div>
</body></html>`
}

func moduleHTML(name string) string {
	return `<!DOCTYPE html><html><head><title>OrangeHRM</title></head><body>
<header class="oxd-topbar"><h6 class="oxd-text oxd-topbar-header-breadcrumb-module">` + name + `</h6></header>
</body></html>`
}

// OrangeHRM builds a site that behaves like the OrangeHRM demo for the flows
// the harness drives: login, dashboard, module navigation and logout.
func OrangeHRM(opts OrangeHRMOptions) *Site {
	accounts := opts.Accounts
	if accounts == nil {
		accounts = map[string]string{"Admin": "admin123"}
	}

	s := NewSite().
		Route(BasePath, "").
		Route(BasePath+"/", "").
		Route(LoginPath, loginHTML).
		Route(DashboardPath, dashboardHTML(opts.QuickLaunch))

	redirect := func(p *Page) { p.Go(LoginPath) }
	s.OnLoad(BasePath, redirect)
	s.OnLoad(BasePath+"/", redirect)
	s.OnLoad("/web/index.php/auth/logout", redirect)

	for _, m := range modulePaths {
		path := m.path
		s.Route(path, moduleHTML(m.header))
		s.OnClick(browser.Query(".oxd-main-menu-item").WithText(m.name), func(p *Page) { p.Go(path) })
	}

	s.OnClick(browser.Query(`button[type="submit"]`), func(p *Page) {
		username := p.Value(`input[name="username"]`)
		password := p.Value(`input[name="password"]`)

		if username == "" || password == "" {
			if username == "" {
				p.Append(".oxd-input-group.username", `<span class="oxd-input-field-error-message">Required</span>`)
			}
			if password == "" {
				p.Append(".oxd-input-group.password", `<span class="oxd-input-field-error-message">Required</span>`)
			}
			return
		}

		if want, ok := accounts[username]; ok && want == password {
			if opts.Stall {
				return
			}
			p.After(opts.LoginDelay, func(p *Page) { p.Go(DashboardPath) })
			return
		}

		p.After(opts.ErrorDelay, func(p *Page) {
			p.SetHTML(".oxd-alert-content-text", InvalidCredentialsText)
			p.Show(".oxd-alert")
		})
	})

	s.OnClick(browser.Query(".oxd-userdropdown"), func(p *Page) { p.Show(".oxd-dropdown-menu") })
	s.OnClick(browser.Query(".oxd-dropdown-menu a").WithText("Logout"), func(p *Page) { p.Go(LoginPath) })

	return s
}
