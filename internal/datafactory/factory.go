// Package datafactory generates synthetic users, employees and dates for
// scenarios. A Factory built with a fixed seed is fully reproducible.
package datafactory

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/xkilldash9x/hrmcheck/internal/auth"
	"github.com/xkilldash9x/hrmcheck/internal/config"
)

// DateLayout is the format of generated dates.
const DateLayout = "2006-01-02"

var (
	// OrangeHRM sub-units; faker has no department generator.
	departments = []string{
		"Administration", "Client Services", "Engineering", "Finance",
		"Human Resources", "Marketing", "Operations", "Quality Assurance", "Sales",
	}
	// Generated mail must never reach a real domain.
	emailDomains = []string{"example.com", "example.org", "example.net"}
)

// UserProfile is a person without employment details.
type UserProfile struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	EmployeeID string `json:"employee_id"`
}

// Employee is a person with employment details.
type Employee struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	EmployeeID string `json:"employee_id"`
	JobTitle   string `json:"job_title"`
	Department string `json:"department"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
}

// RoleCredentials holds the configured account of every role.
type RoleCredentials struct {
	Admin auth.Credentials `json:"admin"`
	User  auth.Credentials `json:"user"`
}

// Factory is safe for concurrent use.
type Factory struct {
	mu   sync.Mutex
	fake *gofakeit.Faker
	now  func() time.Time
}

// NewFactory seeds a factory. A zero seed lets the faker pick one.
func NewFactory(seed int64) *Factory {
	return &Factory{fake: gofakeit.New(uint64(seed)), now: time.Now}
}

// suffix is eight hex digits drawn from the seeded stream.
func (f *Factory) suffix() string {
	return fmt.Sprintf("%08x", f.fake.Uint32())
}

func (f *Factory) employeeID() string {
	return f.fake.Regex("[A-Z0-9]{6}")
}

// UserCredentials returns a freshly generated account for role. It is never a
// configured account; use ValidCredentials for those.
func (f *Factory) UserCredentials(role auth.Role) auth.Credentials {
	f.mu.Lock()
	defer f.mu.Unlock()
	return auth.Credentials{
		Username: role.String() + "_" + localPart(f.fake.FirstName()) + "_" + f.suffix(),
		Password: f.fake.Regex("[A-Za-z0-9]{10}[!@#$%^&*][0-9]"),
	}
}

func (f *Factory) UserProfile() UserProfile {
	f.mu.Lock()
	defer f.mu.Unlock()
	first, last := f.fake.FirstName(), f.fake.LastName()
	return UserProfile{
		FirstName:  first,
		LastName:   last,
		Email:      f.email(first, last),
		EmployeeID: f.employeeID(),
	}
}

func (f *Factory) Employee() Employee {
	f.mu.Lock()
	defer f.mu.Unlock()
	first, last := f.fake.FirstName(), f.fake.LastName()
	return Employee{
		FirstName:  first,
		LastName:   last,
		EmployeeID: f.employeeID(),
		JobTitle:   f.fake.JobTitle(),
		Department: f.fake.RandomString(departments),
		Email:      f.email(first, last),
		Phone:      f.phone(),
	}
}

// RandomString returns n alphanumeric characters; n <= 0 means 10.
func (f *Factory) RandomString(n int) string {
	if n <= 0 {
		n = 10
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fake.Regex(fmt.Sprintf("[A-Za-z0-9]{%d}", n))
}

func (f *Factory) RandomEmail() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.email(f.fake.FirstName(), f.fake.LastName())
}

func (f *Factory) RandomPhoneNumber() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phone()
}

func (f *Factory) email(first, last string) string {
	return fmt.Sprintf("%s.%s.%s@%s",
		localPart(first), localPart(last), f.suffix(), f.fake.RandomString(emailDomains))
}

// phone yields a NANP-shaped number in the reserved 555 exchange.
func (f *Factory) phone() string {
	return fmt.Sprintf("(%03d) 555-%04d", f.fake.Number(200, 999), f.fake.Number(0, 9999))
}

// localPart lower-cases a name and keeps only ASCII letters.
func localPart(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "x"
	}
	return b.String()
}

// FutureDate returns a date 1 to days days after today; days <= 0 means 30.
func (f *Factory) FutureDate(days int) string {
	return f.offsetDate(days, 1)
}

// PastDate returns a date 1 to days days before today; days <= 0 means 30.
func (f *Factory) PastDate(days int) string {
	return f.offsetDate(days, -1)
}

func (f *Factory) offsetDate(days, sign int) string {
	if days <= 0 {
		days = 30
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	today := f.now()
	midnight := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())

	// Any instant inside the window lands on one of its calendar days.
	lo, hi := midnight.AddDate(0, 0, 1), midnight.AddDate(0, 0, days+1).Add(-time.Nanosecond)
	if sign < 0 {
		lo, hi = midnight.AddDate(0, 0, -days), midnight.Add(-time.Nanosecond)
	}
	return f.fake.DateRange(lo, hi).In(today.Location()).Format(DateLayout)
}

// ValidCredentials resolves the configured account of every role.
func ValidCredentials(cfg config.CredentialsConfig) (RoleCredentials, error) {
	admin, err := auth.Resolve(cfg, auth.RoleAdmin)
	if err != nil {
		return RoleCredentials{}, err
	}
	user, err := auth.Resolve(cfg, auth.RoleUser)
	if err != nil {
		return RoleCredentials{}, err
	}
	return RoleCredentials{Admin: admin, User: user}, nil
}

// InvalidCredentials is an account that no deployment accepts.
func InvalidCredentials() auth.Credentials {
	return auth.Credentials{Username: "invalid_user", Password: "invalid_password"}
}
