// Package auth maps test roles to accounts and logs sessions in as them.
// Nothing else in the harness knows which username belongs to which role.
package auth

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/hrmcheck/internal/browser"
	"github.com/xkilldash9x/hrmcheck/internal/config"
	"github.com/xkilldash9x/hrmcheck/internal/pages"
)

// Role is a test identity.
type Role int

const (
	RoleAdmin Role = iota
	RoleUser
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleUser:
		return "user"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Roles lists every role.
func Roles() []Role { return []Role{RoleAdmin, RoleUser} }

// ParseRole reads a role name from command line input.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "user":
		return RoleUser, nil
	}
	return 0, fmt.Errorf("unknown role %q (want admin or user)", s)
}

// Credentials is one account.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate reports the first missing field, if any.
func (c Credentials) Validate() error {
	switch {
	case c.Username == "":
		return fmt.Errorf("username is empty")
	case c.Password == "":
		return fmt.Errorf("password is empty")
	}
	return nil
}

// ConfigurationError means a role has no usable account configured.
type ConfigurationError struct {
	Role  Role
	Field string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("no %s configured for role %s", e.Field, e.Role)
}

// Resolve returns the configured account for role.
func Resolve(cfg config.CredentialsConfig, role Role) (Credentials, error) {
	var acct config.AccountConfig
	switch role {
	case RoleAdmin:
		acct = cfg.Admin
	case RoleUser:
		acct = cfg.User
	default:
		return Credentials{}, fmt.Errorf("unknown role %d", int(role))
	}

	creds := Credentials{Username: acct.Username, Password: acct.Password}
	if creds.Username == "" {
		return Credentials{}, &ConfigurationError{Role: role, Field: "username"}
	}
	if creds.Password == "" {
		return Credentials{}, &ConfigurationError{Role: role, Field: "password"}
	}
	return creds, nil
}

// Session is a browser logged in as a role.
type Session struct {
	Role      Role
	Username  string
	Page      pages.Page
	Dashboard *pages.DashboardPage
}

// Provider logs browser sessions in by role.
type Provider struct {
	creds    config.CredentialsConfig
	settings pages.Settings
	logger   *zap.Logger
}

func NewProvider(creds config.CredentialsConfig, settings pages.Settings, logger *zap.Logger) *Provider {
	return &Provider{creds: creds, settings: settings, logger: logger.Named("auth")}
}

// LoginAs resolves role, opens the login page on driver and logs in. A role
// without credentials fails before any navigation.
func (p *Provider) LoginAs(ctx context.Context, driver browser.Driver, role Role) (*Session, error) {
	creds, err := Resolve(p.creds, role)
	if err != nil {
		return nil, err
	}

	logger := p.logger.With(zap.Stringer("role", role))
	page := pages.NewBase(driver, p.settings, logger)
	login := pages.NewLoginPage(page, logger)
	if err := login.Open(ctx); err != nil {
		return nil, fmt.Errorf("open login page: %w", err)
	}

	dash, err := login.Login(ctx, creds.Username, creds.Password)
	if err != nil {
		return nil, fmt.Errorf("log in as %s: %w", role, err)
	}
	logger.Info("Session authenticated.", zap.String("username", creds.Username))
	return &Session{Role: role, Username: creds.Username, Page: page, Dashboard: dash}, nil
}
