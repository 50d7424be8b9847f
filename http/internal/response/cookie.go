package response

import (
	"gopkg.in/guregu/null.v3"

	"github.com/purplejs/purplejs/http"
	"github.com/purplejs/purplejs/js/value"
)

// newCookie builds the cookie named key out of the script value v. Objects
// describe every attribute, anything else is the value of the cookie.
// Attributes that are missing or have the wrong type keep their defaults.
func newCookie(key string, v value.Value) *http.Cookie {
	c := http.NewCookie(key)
	if v == nil {
		return c
	}
	if !v.IsObject() {
		if s, ok := v.ToString(); ok {
			c.Value = s
		}
		return c
	}

	if s, ok := value.MemberString(v, "value"); ok {
		c.Value = s
	}
	c.Path = memberNullString(v, "path")
	c.Domain = memberNullString(v, "domain")
	c.Comment = memberNullString(v, "comment")
	if n, ok := value.MemberInt(v, "maxAge"); ok {
		c.MaxAge = n
	}
	c.Secure = memberFlag(v, "secure")
	c.HTTPOnly = memberFlag(v, "httpOnly")
	return c
}

func memberNullString(v value.Value, name string) null.String {
	s, ok := value.MemberString(v, name)
	return null.NewString(s, ok)
}

func memberFlag(v value.Value, name string) bool {
	b, _ := value.MemberBool(v, name)
	return b
}
