// Package user resolves the caller identity forwarded by the auth proxy in
// front of the service. Authentication itself happens upstream; this is
// only the trust boundary for the forwarded nickname.
package user

import "net/http"

const (
	// Header carries the authenticated nickname, set by the proxy.
	Header = "X-Remote-User"
	// Anonymous is the identity reported when no nickname is forwarded.
	Anonymous = "public"
)

// FromRequest returns the caller's nickname, or Anonymous when the request
// carries none.
func FromRequest(r *http.Request) string {
	if nick := r.Header.Get(Header); nick != "" {
		return nick
	}
	return Anonymous
}
