package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/sessionkit/pkg/kvstore"
)

// StateDuplicated is the sentinel written into a session's login-state
// record when another session takes over its user id. The filter forces a
// logout when it reads this value.
const StateDuplicated = "DUPLICATED"

// LoginCoordinator enforces at most one active session per user id. It
// keeps two records per active user in the login namespace, both carrying
// the session TTL: the user-to-owning-session binding, and per session a
// state record holding either the owning user id or StateDuplicated.
type LoginCoordinator struct {
	store   kvstore.Store
	ttl     time.Duration
	monitor *Monitor
	log     *slog.Logger
}

// NewLoginCoordinator builds a coordinator over the store's login
// namespace. The ttl must match the session TTL so login records shadow
// the sessions they describe.
func NewLoginCoordinator(store kvstore.Store, ttl time.Duration, monitor *Monitor, log *slog.Logger) *LoginCoordinator {
	if log == nil {
		log = slog.Default()
	}
	return &LoginCoordinator{store: store, ttl: ttl, monitor: monitor, log: log}
}

// Login binds uid to the request's session. If another live session owns
// the uid, that session's state record is overwritten with StateDuplicated
// before ownership moves, so a concurrent request on the superseded
// session either already sees the sentinel or still finds its old binding
// and is forced out on the next round. The write order is mandatory.
// Repeated calls with the same uid and session are idempotent.
func (c *LoginCoordinator) Login(ctx context.Context, sess *Session, uid string) error {
	if uid == "" {
		return ErrEmptyUserID
	}

	sess.Set(UserIDAttribute, uid)

	previous, err := c.LoggedInSessionID(ctx, uid)
	if err != nil {
		return err
	}

	if previous != "" && previous != sess.ID() {
		c.monitor.DuplicatedLogin()

		prevKey, err := SessionKey(previous)
		if err != nil {
			return err
		}
		// Repurpose the superseded session's state record as the
		// eviction notice.
		if err := c.store.LoginPut(ctx, prevKey, []byte(StateDuplicated), c.ttl); err != nil {
			return err
		}
		c.log.DebugContext(ctx, "superseded previous login",
			slog.String("uid", uid),
			slog.String("previous_sid", previous),
			slog.String("sid", sess.ID()))
	}

	userKey, err := UserKey(uid)
	if err != nil {
		return err
	}
	if err := c.store.LoginPut(ctx, userKey, []byte(sess.ID()), c.ttl); err != nil {
		return err
	}

	sidKey, err := SessionKey(sess.ID())
	if err != nil {
		return err
	}
	return c.store.LoginPut(ctx, sidKey, []byte(uid), c.ttl)
}

// Logout clears the user binding from the session and deletes the
// session's login-state record. The user-to-session record is deliberately
// left to expire, so a still-live parallel session can be superseded on a
// later login even though it briefly points at a signed-out session. The
// session itself is not invalidated; callers wanting no grace window call
// Session.Invalidate explicitly.
func (c *LoginCoordinator) Logout(ctx context.Context, sess *Session) error {
	sess.Remove(UserIDAttribute)

	sidKey, err := SessionKey(sess.ID())
	if err != nil {
		return err
	}
	return c.store.LoginDelete(ctx, sidKey)
}

// LoggedInSessionID returns the session id currently owning uid, or ""
// when no live session does.
func (c *LoginCoordinator) LoggedInSessionID(ctx context.Context, uid string) (string, error) {
	key, err := UserKey(uid)
	if err != nil {
		return "", err
	}
	value, err := c.store.LoginGet(ctx, key)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return string(value), nil
}

// State returns the login-state record of a session id: the owning user
// id, StateDuplicated for a superseded session, or "" when no record
// exists.
func (c *LoginCoordinator) State(ctx context.Context, sid string) (string, error) {
	key, err := SessionKey(sid)
	if err != nil {
		return "", err
	}
	value, err := c.store.LoginGet(ctx, key)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return string(value), nil
}
