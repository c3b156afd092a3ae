package pages

import "fmt"

// LoginErrorKind classifies a failed login.
type LoginErrorKind int

const (
	// Rejected means the application rendered an error for the credentials.
	Rejected LoginErrorKind = iota
	// Indeterminate means neither an error nor the dashboard appeared.
	Indeterminate
)

func (k LoginErrorKind) String() string {
	switch k {
	case Rejected:
		return "rejected"
	case Indeterminate:
		return "indeterminate"
	default:
		return fmt.Sprintf("LoginErrorKind(%d)", int(k))
	}
}

// LoginError is a failed login. Rejected errors carry the server-rendered text.
type LoginError struct {
	Kind    LoginErrorKind
	Message string
	Cause   error
}

func (e *LoginError) Error() string {
	msg := "login " + e.Kind.String() + ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *LoginError) Unwrap() error { return e.Cause }

// AssertionError is a page-level expectation that did not hold in time.
type AssertionError struct {
	Subject  string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("expected %s to match %s, got %q", e.Subject, e.Expected, e.Actual)
}
