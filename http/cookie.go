package http

import (
	nethttp "net/http"
	"strconv"
	"strings"

	"gopkg.in/guregu/null.v3"
)

// Cookie is a cookie a response sets.
type Cookie struct {
	Name    string
	Value   string
	Path    null.String
	Domain  null.String
	Comment null.String
	// MaxAge is in seconds. Negative values make it a session cookie and zero
	// deletes the cookie.
	MaxAge   int
	Secure   bool
	HTTPOnly bool
}

// NewCookie returns a session cookie with an empty value.
func NewCookie(name string) *Cookie {
	return &Cookie{Name: name, MaxAge: -1}
}

// HTTPCookie converts the cookie for net/http. Comments aren't supported
// there and are left out.
func (c *Cookie) HTTPCookie() *nethttp.Cookie {
	hc := &nethttp.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path.ValueOrZero(),
		Domain:   c.Domain.ValueOrZero(),
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
	}
	switch {
	case c.MaxAge == 0:
		hc.MaxAge = -1
	case c.MaxAge > 0:
		hc.MaxAge = c.MaxAge
	}
	return hc
}

// String returns the Set-Cookie header value of the cookie, or "" if its name
// is invalid.
func (c *Cookie) String() string {
	s := c.HTTPCookie().String()
	if s == "" || !c.Comment.Valid || c.Comment.String == "" {
		return s
	}
	return s + "; Comment=" + quoteComment(c.Comment.String)
}

func quoteComment(comment string) string {
	var b strings.Builder
	for _, r := range comment {
		if r < 0x20 || r == 0x7f || r == ';' {
			continue
		}
		b.WriteRune(r)
	}
	s := b.String()
	if strings.ContainsAny(s, " ,\"") {
		return strconv.Quote(s)
	}
	return s
}
