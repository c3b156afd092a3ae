package browser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// Matcher is an expectation on a string value such as a title or URL.
type Matcher interface {
	Match(s string) bool
	String() string
}

type exactMatcher string

// Exact matches s only when it equals want.
func Exact(want string) Matcher { return exactMatcher(want) }

func (m exactMatcher) Match(s string) bool { return s == string(m) }
func (m exactMatcher) String() string      { return fmt.Sprintf("%q", string(m)) }

type regexpMatcher struct {
	re *regexp.Regexp
}

// Regexp compiles pattern into a Matcher that succeeds on any substring match.
func Regexp(pattern string) (Matcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return regexpMatcher{re: re}, nil
}

// MustRegexp is like Regexp but panics on an invalid pattern.
func MustRegexp(pattern string) Matcher {
	m, err := Regexp(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

func (m regexpMatcher) Match(s string) bool { return m.re.MatchString(s) }
func (m regexpMatcher) String() string      { return "/" + m.re.String() + "/" }

type globMatcher struct {
	pattern string
	g       glob.Glob
}

// Glob builds a URL glob matcher with Playwright semantics: "**" matches any
// run of characters, "*" matches any run except '/', and "{a,b}" matches
// either alternative. "?", "[" and "]" are literal, as they are in URLs. The
// whole string must match. Unbalanced braces are taken literally.
func Glob(pattern string) Matcher {
	g, err := glob.Compile(escapeGlob(pattern, false), '/')
	if err != nil {
		g = glob.MustCompile(escapeGlob(pattern, true), '/')
	}
	return globMatcher{pattern: pattern, g: g}
}

// escapeGlob quotes every glob metacharacter except '*' and, unless braces
// is set, the alternative syntax.
func escapeGlob(pattern string, braces bool) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '?', '[', ']', '\\':
			b.WriteByte('\\')
		case '{', '}', ',':
			if braces {
				b.WriteByte('\\')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (m globMatcher) Match(s string) bool { return m.g.Match(s) }
func (m globMatcher) String() string      { return "glob(" + m.pattern + ")" }
