package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/sessionkit/pkg/codec"
	"github.com/dmitrymomot/sessionkit/pkg/kvstore"
)

// SessionIDFunc supplies a fresh session id when no valid cookie is
// present. The default mints a UUID; embedding servers with their own
// transport session can supply that id instead.
type SessionIDFunc func(r *http.Request) string

// Filter is the request pipeline: it discovers or mints the session id,
// pins it into the response cookie, wraps the request with a distributed
// session, runs the duplicate-login check before dispatch and persists the
// session after the handler returns.
//
// A Filter is constructed once at startup and shared by all requests; its
// configuration is read-only after NewFilter.
type Filter struct {
	config       Config
	store        kvstore.Store
	codec        codec.Codec
	monitor      *Monitor
	login        *LoginCoordinator
	exclude      *regexp.Regexp
	newSessionID SessionIDFunc
	log          *slog.Logger
}

// FilterOption customizes a Filter.
type FilterOption func(*Filter)

// WithLogger sets the filter logger; slog.Default is used otherwise.
func WithLogger(log *slog.Logger) FilterOption {
	return func(f *Filter) {
		if log != nil {
			f.log = log
		}
	}
}

// WithCodec overrides the codec resolved from configuration.
func WithCodec(c codec.Codec) FilterOption {
	return func(f *Filter) {
		if c != nil {
			f.codec = c
		}
	}
}

// WithMonitor replaces the filter-owned monitor, for callers aggregating
// counters across filters.
func WithMonitor(m *Monitor) FilterOption {
	return func(f *Filter) {
		if m != nil {
			f.monitor = m
		}
	}
}

// WithSessionIDFunc replaces the session id generator.
func WithSessionIDFunc(fn SessionIDFunc) FilterOption {
	return func(f *Filter) {
		if fn != nil {
			f.newSessionID = fn
		}
	}
}

// NewFilter validates the configuration and builds the filter context:
// codec, monitor and login coordinator are constructed here and passed by
// reference to every per-request session.
func NewFilter(cfg Config, store kvstore.Store, opts ...FilterOption) (*Filter, error) {
	if store == nil {
		return nil, errors.New("session: store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f := &Filter{
		config: cfg,
		store:  store,
		newSessionID: func(*http.Request) string {
			return uuid.NewString()
		},
		log: slog.Default(),
	}

	if cfg.ExcludeRegExp != "" {
		re, err := regexp.Compile(cfg.ExcludeRegExp)
		if err != nil {
			return nil, errors.Join(ErrInvalidConfig, err)
		}
		f.exclude = re
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.codec == nil {
		c, err := codec.Resolve(cfg.Codec)
		if err != nil {
			return nil, err
		}
		f.codec = c
	}
	if f.monitor == nil {
		f.monitor = NewMonitor(cfg.EnableStatistics)
	}
	f.login = NewLoginCoordinator(store, cfg.TTL(), f.monitor, f.log)

	return f, nil
}

// Monitor returns the filter's lifecycle counters.
func (f *Filter) Monitor() *Monitor {
	return f.monitor
}

// Store returns the backing session store.
func (f *Filter) Store() kvstore.Store {
	return f.store
}

// LoginCoordinator returns the duplicate-login coordinator; application
// code calls its Login and Logout on sign-in and sign-out.
func (f *Filter) LoginCoordinator() *LoginCoordinator {
	return f.login
}

// Config returns the filter configuration.
func (f *Filter) Config() Config {
	return f.config
}

// Middleware installs the session pipeline around next.
func (f *Filter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Reentry: an inner mount already wrapped this request.
		if _, ok := FromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}

		if f.exclude != nil && f.exclude.MatchString(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()

		sid, fixed := f.resolveSessionID(ctx, r)
		if fixed && !f.config.UseLibraryMode {
			f.emitSessionCookie(w, sid)
		}

		sess, err := f.loadSession(ctx, sid)
		if err != nil {
			// Store down: the request proceeds without a session rather
			// than turning into an HTTP error.
			f.log.ErrorContext(ctx, "session load failed, serving without session",
				slog.String("sid", sid), slog.Any("error", err))
			next.ServeHTTP(w, r)
			return
		}
		if fixed {
			sess.fix()
		}

		wrapped := WrapRequest(r, sess)

		forceLogout := false
		if !f.config.AllowDuplicateLogin {
			forceLogout = f.checkForcedLogout(ctx, sess)
		}

		next.ServeHTTP(w, wrapped)

		sess.Set(SessionIDAttribute, sess.ID())
		if err := sess.ReloadAttributes(ctx); err != nil {
			f.log.ErrorContext(ctx, "session reload failed",
				slog.String("sid", sid), slog.Any("error", err))
		}
		if err := sess.Save(ctx); err != nil {
			f.log.ErrorContext(ctx, "session save failed, state lost for this request",
				slog.String("sid", sid), slog.Any("error", err))
		}

		if forceLogout && f.config.LogoutURL != "" {
			f.forwardToLogout(w, wrapped, next)
		}
	})
}

// resolveSessionID picks the session id for this request: a cookie naming
// a currently valid session wins; otherwise a fresh id is minted and the
// request is marked fixed.
func (f *Filter) resolveSessionID(ctx context.Context, r *http.Request) (sid string, fixed bool) {
	for _, cookie := range r.Cookies() {
		if cookie.Name != f.config.SessionIDKey {
			continue
		}
		value := strings.TrimSpace(cookie.Value)
		if value == "" {
			continue
		}
		if f.isValidSessionID(ctx, value) {
			f.log.DebugContext(ctx, "session cookie adopted", slog.String("sid", value))
			return value, false
		}
		f.log.DebugContext(ctx, "session cookie names an invalid session", slog.String("sid", value))
	}

	sid = f.newSessionID(r)
	f.log.DebugContext(ctx, "session id minted", slog.String("sid", sid))
	return sid, true
}

// isValidSessionID reports whether the store holds live, non-invalidated
// metadata for sid.
func (f *Filter) isValidSessionID(ctx context.Context, sid string) bool {
	metaKey, err := MetadataKey(f.config.Namespace, sid)
	if err != nil {
		return false
	}
	data, err := f.store.Get(ctx, metaKey)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			f.log.ErrorContext(ctx, "session cookie validation failed",
				slog.String("sid", sid), slog.Any("error", err))
		}
		return false
	}
	var meta Metadata
	if err := f.codec.Unmarshal(data, &meta); err != nil {
		return false
	}
	return !meta.Invalidated
}

func (f *Filter) loadSession(ctx context.Context, sid string) (*Session, error) {
	return loadSession(ctx, sessionParams{
		id:        sid,
		namespace: f.config.Namespace,
		ttl:       f.config.TTL(),
		store:     f.store,
		codec:     f.codec,
		monitor:   f.monitor,
		log:       f.log,
	})
}

// checkForcedLogout runs the pre-dispatch duplicate-login step: a session
// whose state record reads DUPLICATED is flagged for the post-chain
// forward; a session holding a user id re-asserts its ownership, which
// refreshes the login record TTLs. Store failures never deny the request.
func (f *Filter) checkForcedLogout(ctx context.Context, sess *Session) bool {
	state, err := f.login.State(ctx, sess.ID())
	if err != nil {
		f.log.ErrorContext(ctx, "login state check failed",
			slog.String("sid", sess.ID()), slog.Any("error", err))
		return false
	}
	if state == StateDuplicated {
		return true
	}

	if uid, ok := sess.GetString(ctx, UserIDAttribute); ok && uid != "" {
		if err := f.login.Login(ctx, sess, uid); err != nil {
			f.log.ErrorContext(ctx, "login refresh failed",
				slog.String("sid", sess.ID()), slog.String("uid", uid), slog.Any("error", err))
		}
	}
	return false
}

// emitSessionCookie pins the session id into the response. When HttpOnly
// is configured the header is composed manually: some embedding servers'
// native cookie type cannot carry the attribute.
func (f *Filter) emitSessionCookie(w http.ResponseWriter, sid string) {
	if f.config.HttpOnly {
		w.Header().Add("Set-Cookie", f.rawCookieHeader(sid))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:   f.config.SessionIDKey,
		Value:  sid,
		Domain: f.config.Domain,
		Path:   f.config.Path,
		Secure: f.config.Secure,
	})
}

func (f *Filter) rawCookieHeader(sid string) string {
	var b strings.Builder
	b.WriteString(f.config.SessionIDKey)
	b.WriteString("=")
	b.WriteString(sid)
	if f.config.Domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(f.config.Domain)
	}
	if f.config.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(f.config.Path)
	}
	if f.config.Secure {
		b.WriteString("; Secure")
	}
	b.WriteString("; HttpOnly")
	return b.String()
}

// forwardToLogout dispatches an internal request to the configured logout
// URL after the original handler has completed. Errors are logged and
// swallowed; the original response stands.
func (f *Filter) forwardToLogout(w http.ResponseWriter, r *http.Request, next http.Handler) {
	defer func() {
		if rec := recover(); rec != nil {
			f.log.ErrorContext(r.Context(), "logout forward failed",
				slog.String("url", f.config.LogoutURL), slog.Any("panic", rec))
		}
	}()

	fwd := r.Clone(r.Context())
	fwd.Method = http.MethodGet
	fwd.URL.Path = f.config.LogoutURL
	fwd.URL.RawQuery = ""
	fwd.RequestURI = f.config.LogoutURL

	f.log.DebugContext(r.Context(), "forwarding superseded session to logout",
		slog.String("url", f.config.LogoutURL))
	next.ServeHTTP(w, fwd)
}
