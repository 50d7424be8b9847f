package response

import (
	nethttp "net/http"
	"strconv"

	"github.com/purplejs/purplejs/http"
)

// Write sends res to the client. HEAD requests and statuses that can't
// have one get no body.
func Write(w nethttp.ResponseWriter, req *nethttp.Request, res *http.Response) error {
	header := w.Header()
	for name, values := range res.Headers() {
		header[name] = values
	}
	header.Set("Content-Type", res.ContentType())
	for _, c := range res.Cookies() {
		if s := c.String(); s != "" {
			header.Add("Set-Cookie", s)
		}
	}

	body := res.Body()
	status := res.Status()
	if !bodyAllowed(status) {
		header.Del("Content-Type")
		w.WriteHeader(status)
		return nil
	}
	header.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	if req.Method == nethttp.MethodHead || len(body) == 0 {
		return nil
	}
	_, err := w.Write(body)
	return err
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == nethttp.StatusNoContent, status == nethttp.StatusNotModified:
		return false
	}
	return true
}
