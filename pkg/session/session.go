package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/sessionkit/pkg/codec"
	"github.com/dmitrymomot/sessionkit/pkg/kvstore"
)

// Attribute names the session layer itself reads and writes.
const (
	// UserIDAttribute holds the application-supplied user id of a
	// logged-in session.
	UserIDAttribute = "khan.uid"

	// SessionIDAttribute records the effective session id after the
	// handler chain has run.
	SessionIDAttribute = "khan.session.id"
)

type attrChange struct {
	value   any
	deleted bool
}

// Session is the distributed session as observed during a single request:
// a snapshot of loaded attributes plus a dirty set of pending writes.
// Instances are per-request, short-lived and must not be shared across
// requests. Attribute values are loaded lazily on first Get and persisted
// on Save; concurrent requests on the same session id are reconciled by the
// store, last writer wins per attribute key.
type Session struct {
	id        string
	namespace string
	ttl       time.Duration
	store     kvstore.Store
	codec     codec.Codec
	monitor   *Monitor
	log       *slog.Logger

	meta        *Metadata
	isNew       bool
	invalidated bool
	fixed       bool

	attrs     map[string]any
	attempted map[string]bool
	dirty     map[string]attrChange
	healed    []string

	// PreSave runs at the start of every Save, before any write reaches
	// the store.
	PreSave func(*Session)

	// PostInvalidate runs after Invalidate has removed the session's
	// records.
	PostInvalidate func(*Session)
}

type sessionParams struct {
	id        string
	namespace string
	ttl       time.Duration
	store     kvstore.Store
	codec     codec.Codec
	monitor   *Monitor
	log       *slog.Logger
}

// loadSession materializes the session for one request: it reads the
// metadata record and synthesizes a fresh one when the store has none.
// Attribute values are not read here; they load lazily on first Get.
func loadSession(ctx context.Context, p sessionParams) (*Session, error) {
	s := &Session{
		id:        p.id,
		namespace: p.namespace,
		ttl:       p.ttl,
		store:     p.store,
		codec:     p.codec,
		monitor:   p.monitor,
		log:       p.log,
		attrs:     make(map[string]any),
		attempted: make(map[string]bool),
		dirty:     make(map[string]attrChange),
	}
	if s.log == nil {
		s.log = slog.Default()
	}

	metaKey, err := MetadataKey(p.namespace, p.id)
	if err != nil {
		return nil, err
	}

	data, err := p.store.Get(ctx, metaKey)
	switch {
	case err == nil:
		var meta Metadata
		if err := p.codec.Unmarshal(data, &meta); err != nil {
			// Unreadable metadata is treated as absent; the record will
			// be rewritten on save.
			s.log.ErrorContext(ctx, "session metadata unreadable, starting fresh",
				slog.String("sid", p.id), slog.Any("error", err))
			s.meta = newMetadata(int(p.ttl.Seconds()))
			s.isNew = true
		} else {
			s.meta = &meta
			s.invalidated = meta.Invalidated
		}
	case errors.Is(err, kvstore.ErrNotFound):
		s.meta = newMetadata(int(p.ttl.Seconds()))
		s.isNew = true
	default:
		return nil, err
	}

	return s, nil
}

// ID returns the session id. It never changes during the session lifetime.
func (s *Session) ID() string {
	return s.id
}

// IsNew reports whether no metadata existed in the store at load time.
func (s *Session) IsNew() bool {
	return s.isNew
}

// IsValid reports whether the session is usable: not invalidated, and
// either backed by a stored metadata record or pinned by the filter for
// this request.
func (s *Session) IsValid() bool {
	if s.invalidated {
		return false
	}
	return !s.isNew || s.fixed
}

// MaxInactiveInterval returns the session TTL.
func (s *Session) MaxInactiveInterval() time.Duration {
	return s.ttl
}

// fix pins the session for the current request: the filter has chosen this
// id and emitted the cookie, so the session counts as valid before any
// metadata reaches the store.
func (s *Session) fix() {
	s.fixed = true
}

// Get returns the attribute value under name: the last value written this
// request if any, else the loaded snapshot, else a lazy read from the
// store. Returns false when the attribute is absent or the session is
// invalidated.
func (s *Session) Get(ctx context.Context, name string) (any, bool) {
	if s.invalidated {
		return nil, false
	}

	if ch, ok := s.dirty[name]; ok {
		if ch.deleted {
			return nil, false
		}
		return ch.value, true
	}
	if v, ok := s.attrs[name]; ok {
		return v, true
	}
	if s.attempted[name] {
		return nil, false
	}
	s.attempted[name] = true

	key, err := AttributeKey(s.namespace, s.id, name)
	if err != nil {
		return nil, false
	}

	data, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			s.log.ErrorContext(ctx, "attribute read failed",
				slog.String("sid", s.id), slog.String("name", name), slog.Any("error", err))
		}
		return nil, false
	}

	var value any
	if err := s.codec.Unmarshal(data, &value); err != nil {
		s.log.ErrorContext(ctx, "attribute unreadable, treating as absent",
			slog.String("sid", s.id), slog.String("name", name), slog.Any("error", err))
		return nil, false
	}

	if !s.meta.Has(name) {
		// Attribute record exists but is missing from the metadata index.
		// Self-heal: re-index on the next save.
		s.log.WarnContext(ctx, "attribute missing from metadata index, re-indexing on save",
			slog.String("sid", s.id), slog.String("name", name))
		s.healed = append(s.healed, name)
	}

	s.attrs[name] = value
	return value, true
}

// GetString is a convenience wrapper for string-valued attributes.
func (s *Session) GetString(ctx context.Context, name string) (string, bool) {
	v, ok := s.Get(ctx, name)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// Set stages an attribute write; it reaches the store on Save. No-op on an
// invalidated session.
func (s *Session) Set(name string, value any) {
	if s.invalidated {
		return
	}
	s.dirty[name] = attrChange{value: value}
}

// Remove stages an attribute deletion; the key and its index entry are
// dropped on Save. No-op on an invalidated session.
func (s *Session) Remove(name string) {
	if s.invalidated {
		return
	}
	s.dirty[name] = attrChange{deleted: true}
}

// Names returns the attribute names belonging to the session as currently
// known: the metadata index merged with this request's pending writes.
func (s *Session) Names() []string {
	if s.invalidated {
		return nil
	}

	seen := make(map[string]bool, len(s.meta.AttributeNames)+len(s.dirty))
	var names []string
	for _, n := range s.meta.AttributeNames {
		if ch, ok := s.dirty[n]; ok && ch.deleted {
			continue
		}
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for n, ch := range s.dirty {
		if !ch.deleted && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	return names
}

// ReloadAttributes re-reads the metadata index from the store and fetches
// any referenced attribute not already pending in this request, so reads
// after a delegated chain see writes made concurrently under the same
// session id. Only names present in the stored metadata at this moment
// become visible; a concurrent write racing the metadata update shows up on
// the next request.
func (s *Session) ReloadAttributes(ctx context.Context) error {
	if s.invalidated {
		return nil
	}

	metaKey, err := MetadataKey(s.namespace, s.id)
	if err != nil {
		return err
	}

	data, err := s.store.Get(ctx, metaKey)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil
		}
		return err
	}

	var meta Metadata
	if err := s.codec.Unmarshal(data, &meta); err != nil {
		return err
	}
	if meta.Invalidated {
		s.invalidated = true
		return nil
	}
	s.meta = &meta
	s.isNew = false

	for _, name := range meta.AttributeNames {
		if _, pending := s.dirty[name]; pending {
			continue
		}
		if _, loaded := s.attrs[name]; loaded {
			continue
		}
		delete(s.attempted, name)
		s.Get(ctx, name)
	}
	return nil
}

// Save flushes the dirty set and writes the metadata record, all with the
// configured TTL. The metadata write is the commit point: if it fails the
// session counts as not persisted for this request. Save is a no-op on an
// invalidated session.
func (s *Session) Save(ctx context.Context) error {
	if s.invalidated {
		return nil
	}

	if s.PreSave != nil {
		s.PreSave(s)
	}

	for _, name := range s.healed {
		s.meta.Add(name)
	}
	s.healed = nil

	for name, ch := range s.dirty {
		key, err := AttributeKey(s.namespace, s.id, name)
		if err != nil {
			return fmt.Errorf("session %q attribute %q: %w", s.id, name, err)
		}

		if ch.deleted {
			if err := s.store.Delete(ctx, key); err != nil {
				return fmt.Errorf("session %q delete attribute %q: %w", s.id, name, err)
			}
			s.meta.Remove(name)
			delete(s.attrs, name)
			continue
		}

		data, err := s.codec.Marshal(ch.value)
		if err != nil {
			return fmt.Errorf("session %q marshal attribute %q: %w", s.id, name, err)
		}
		if err := s.store.Put(ctx, key, data, s.ttl); err != nil {
			return fmt.Errorf("session %q write attribute %q: %w", s.id, name, err)
		}
		s.meta.Add(name)
		s.attrs[name] = ch.value
	}

	s.meta.LastAccessedAt = time.Now()
	s.meta.MaxInactiveInterval = int(s.ttl.Seconds())

	metaKey, err := MetadataKey(s.namespace, s.id)
	if err != nil {
		return err
	}
	data, err := s.codec.Marshal(s.meta)
	if err != nil {
		return fmt.Errorf("session %q marshal metadata: %w", s.id, err)
	}
	// Metadata last: its TTL arms after every attribute's, keeping the
	// index alive at least as long as the records it points to.
	if err := s.store.Put(ctx, metaKey, data, s.ttl); err != nil {
		return fmt.Errorf("session %q write metadata: %w", s.id, err)
	}

	if s.isNew {
		s.isNew = false
		s.monitor.SessionCreated()
	}
	s.dirty = make(map[string]attrChange)
	return nil
}

// Invalidate permanently destroys the session: attribute records are
// flushed best-effort, then the metadata record and the login-namespace
// session record are removed. Subsequent operations on the session are
// no-ops and IsValid reports false.
func (s *Session) Invalidate(ctx context.Context) error {
	if s.invalidated {
		return nil
	}
	s.meta.Invalidated = true
	s.invalidated = true

	var errs []error
	names := make(map[string]bool, len(s.meta.AttributeNames)+len(s.dirty))
	for _, n := range s.meta.AttributeNames {
		names[n] = true
	}
	for n := range s.dirty {
		names[n] = true
	}
	for name := range names {
		key, err := AttributeKey(s.namespace, s.id, name)
		if err != nil {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}

	if metaKey, err := MetadataKey(s.namespace, s.id); err == nil {
		if err := s.store.Delete(ctx, metaKey); err != nil {
			errs = append(errs, err)
		}
	}

	if sidKey, err := SessionKey(s.id); err == nil {
		if err := s.store.LoginDelete(ctx, sidKey); err != nil {
			errs = append(errs, err)
		}
	}

	s.dirty = make(map[string]attrChange)
	s.attrs = make(map[string]any)

	s.monitor.SessionDestroyed()
	if s.PostInvalidate != nil {
		s.PostInvalidate(s)
	}
	return errors.Join(errs...)
}
