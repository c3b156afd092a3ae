package pages

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/hrmcheck/internal/browser"
	"github.com/xkilldash9x/hrmcheck/internal/wait"
)

// Login form locators.
var (
	usernameInput  = browser.Query(`input[placeholder="Username"]`)
	passwordInput  = browser.Query(`input[placeholder="Password"]`)
	submitButton   = browser.Query(`button[type="submit"]`)
	loginAlert     = browser.Query(".oxd-alert-content-text")
	forgotPassword = browser.Query(".orangehrm-login-forgot-header")
	requiredHint   = browser.Query(".oxd-input-field-error-message")
)

// LoginOutcome is the result of submitting the login form: exactly one of
// LoginSucceeded or LoginFailed.
type LoginOutcome interface {
	// Err is nil for a success and the *LoginError otherwise.
	Err() error
	isLoginOutcome()
}

// LoginSucceeded carries the dashboard the login landed on.
type LoginSucceeded struct {
	Dashboard *DashboardPage
}

func (LoginSucceeded) Err() error { return nil }
func (LoginSucceeded) isLoginOutcome() {}

// LoginFailed carries why the login did not reach the dashboard.
type LoginFailed struct {
	Reason *LoginError
}

func (f LoginFailed) Err() error { return f.Reason }
func (LoginFailed) isLoginOutcome() {}

// LoginPage drives the login form.
type LoginPage struct {
	Page
	root   *zap.Logger
	logger *zap.Logger
}

func NewLoginPage(page Page, logger *zap.Logger) *LoginPage {
	return &LoginPage{Page: page, root: logger, logger: logger.Named("login_page")}
}

// Open navigates to the application root and waits for the page to settle.
func (l *LoginPage) Open(ctx context.Context) error {
	if err := l.Navigate(ctx, ""); err != nil {
		return err
	}
	return l.WaitForReady(ctx)
}

// Login submits the credentials and returns the dashboard, or the
// *LoginError describing the failure.
func (l *LoginPage) Login(ctx context.Context, username, password string) (*DashboardPage, error) {
	outcome, err := l.Submit(ctx, username, password)
	if err != nil {
		return nil, err
	}
	switch o := outcome.(type) {
	case LoginSucceeded:
		return o.Dashboard, nil
	case LoginFailed:
		return nil, o.Reason
	default:
		panic("unreachable login outcome")
	}
}

// Submit fills the form, submits it and races the error alert against the
// dashboard marker. The first one to show decides the outcome; if the alert
// never shows and the dashboard wait expires the outcome is Indeterminate.
// The returned error is reserved for failures to drive the form itself.
func (l *LoginPage) Submit(ctx context.Context, username, password string) (LoginOutcome, error) {
	l.logger.Info("Submitting login form.", zap.String("username", username))
	if err := l.Interact(ctx, usernameInput, Fill(username)); err != nil {
		return nil, err
	}
	if err := l.Interact(ctx, passwordInput, Fill(password)); err != nil {
		return nil, err
	}
	if err := l.Interact(ctx, submitButton, Click()); err != nil {
		return nil, err
	}

	rejected, dashErr := l.race(ctx)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if rejected {
		msg, err := l.ReadText(ctx, loginAlert)
		if err != nil || msg == "" {
			msg = "credentials were rejected"
		}
		l.logger.Info("Login rejected.", zap.String("message", msg))
		return LoginFailed{Reason: &LoginError{Kind: Rejected, Message: msg}}, nil
	}
	if dashErr != nil {
		l.logger.Warn("Login outcome indeterminate.", zap.Error(dashErr))
		return LoginFailed{Reason: &LoginError{
			Kind:    Indeterminate,
			Message: "no error was shown and the dashboard did not load",
			Cause:   dashErr,
		}}, nil
	}

	l.logger.Info("Login succeeded.")
	return LoginSucceeded{Dashboard: NewDashboardPage(l.Page, l.root)}, nil
}

// race runs the error probe and the dashboard wait side by side. It reports
// whether the alert won, or else the dashboard wait's error (nil on success).
// Both goroutines have returned when race does.
func (l *LoginPage) race(ctx context.Context) (rejected bool, dashErr error) {
	settings := l.Settings()
	raceCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	alertCh := make(chan bool, 1)
	dashCh := make(chan error, 1)
	wg.Add(2)
	go func() {
		defer wg.Done()
		alertCh <- l.ProbeVisible(raceCtx, loginAlert, settings.ErrorProbeTimeout)
	}()
	go func() {
		defer wg.Done()
		dashCh <- l.WaitFor(raceCtx, dashboardMarker, browser.Visible, settings.ElementTimeout)
	}()

	alertDone, dashDone := false, false
	for !alertDone || !dashDone {
		select {
		case visible := <-alertCh:
			alertDone = true
			if visible {
				return true, nil
			}
		case err := <-dashCh:
			dashDone = true
			if err == nil {
				return false, nil
			}
			dashErr = err
			if !wait.IsTimeout(err) {
				return false, err
			}
		}
	}
	return false, dashErr
}

// GetErrorMessage returns the login alert text if it is showing, else "".
func (l *LoginPage) GetErrorMessage(ctx context.Context) string {
	if !l.ProbeVisible(ctx, loginAlert, l.Settings().PollInterval) {
		return ""
	}
	msg, err := l.ReadText(ctx, loginAlert)
	if err != nil {
		return ""
	}
	return msg
}

// IsLoginFormVisible reports whether the username, password and submit
// controls are all visible.
func (l *LoginPage) IsLoginFormVisible(ctx context.Context) bool {
	for _, loc := range []browser.Locator{usernameInput, passwordInput, submitButton} {
		if !l.ProbeVisible(ctx, loc, 0) {
			return false
		}
	}
	return true
}

func (l *LoginPage) IsForgotPasswordVisible(ctx context.Context) bool {
	return l.ProbeVisible(ctx, forgotPassword, 0)
}

// RequiredFieldErrors counts the "Required" hints under the form inputs.
func (l *LoginPage) RequiredFieldErrors(ctx context.Context) (int, error) {
	if !l.ProbeVisible(ctx, requiredHint, l.Settings().ErrorProbeTimeout) {
		return 0, nil
	}
	return l.Count(ctx, requiredHint)
}

// IsRejected reports whether err is a login the application refused.
func IsRejected(err error) bool {
	var le *LoginError
	return errors.As(err, &le) && le.Kind == Rejected
}
