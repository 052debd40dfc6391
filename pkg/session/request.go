package session

import (
	"context"
	"net/http"
)

type sessionContextKey struct{}

// WithSession returns a context carrying the distributed session.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// FromContext retrieves the distributed session from the context. The
// second return is false for requests the filter did not wrap (excluded
// paths, or the filter not installed).
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(*Session)
	return s, ok
}

// MustFromContext retrieves the session or panics. Use in handlers that
// are only reachable behind the filter.
func MustFromContext(ctx context.Context) *Session {
	s, ok := FromContext(ctx)
	if !ok {
		panic("session: not found in request context")
	}
	return s
}

// WrapRequest returns the request with the session attached to its
// context. The filter uses the presence of a wrapped session to detect
// reentry and pass through.
func WrapRequest(r *http.Request, s *Session) *http.Request {
	return r.WithContext(WithSession(r.Context(), s))
}

// LoggedInUserID returns the user id bound to the request's session, or ""
// when the request is anonymous or unwrapped.
func LoggedInUserID(r *http.Request) string {
	s, ok := FromContext(r.Context())
	if !ok {
		return ""
	}
	uid, _ := s.GetString(r.Context(), UserIDAttribute)
	return uid
}
