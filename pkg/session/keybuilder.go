package session

import (
	"fmt"
	"strings"
)

// Separator joins key components. It is reserved: no component may contain
// it, with one exception: the login namespace constant is the separator
// itself.
const Separator = "$"

// GlobalNamespace is the default prefix for attribute-namespace keys.
const GlobalNamespace = "_khan_"

const (
	loginNamespace = Separator
	metadataSubkey = "__metadata__"
	attributeTag   = "attr"
	userTag        = "UID"
	sessionTag     = "SID"
)

// BuildKey joins components into a store key of the form "a$b$c[...]".
// Components must be non-empty and must not contain the separator; a first
// component equal to the separator itself selects the login namespace.
func BuildKey(parts ...string) (string, error) {
	if len(parts) < 3 {
		return "", fmt.Errorf("%w: need namespace, tag and id", ErrEmptyKeyComponent)
	}
	for i, p := range parts {
		if p == "" {
			return "", fmt.Errorf("%w: component %d", ErrEmptyKeyComponent, i)
		}
		if i == 0 && p == loginNamespace {
			continue
		}
		if strings.Contains(p, Separator) {
			return "", fmt.Errorf("%w: component %q", ErrReservedSeparator, p)
		}
	}
	return strings.Join(parts, Separator), nil
}

// MetadataKey returns the key of a session's metadata record:
// "ns$sid$__metadata__".
func MetadataKey(namespace, sid string) (string, error) {
	return BuildKey(namespace, sid, metadataSubkey)
}

// AttributeKey returns the key of one session attribute:
// "ns$sid$attr$name".
func AttributeKey(namespace, sid, name string) (string, error) {
	return BuildKey(namespace, sid, attributeTag, name)
}

// UserKey returns the login-namespace key binding a user id to its owning
// session id: "$$UID$uid".
func UserKey(uid string) (string, error) {
	return BuildKey(loginNamespace, userTag, uid)
}

// SessionKey returns the login-namespace key holding a session's login
// state (the owning user id, or the DUPLICATED sentinel): "$$SID$sid".
func SessionKey(sid string) (string, error) {
	return BuildKey(loginNamespace, sessionTag, sid)
}
