package session

import (
	"slices"
	"time"

	"github.com/dmitrymomot/sessionkit/pkg/codec"
)

func init() {
	// Needed when metadata records travel through the "gob" codec.
	codec.RegisterGobType(Metadata{})
	codec.RegisterGobType(map[string]any{})
}

// Metadata is the per-session header record. It is the authority for which
// attribute keys belong to a session: enumerating attributes means iterating
// AttributeNames and reading each derived key.
type Metadata struct {
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`

	// MaxInactiveInterval mirrors the store TTL, in seconds.
	MaxInactiveInterval int `json:"max_inactive_interval_sec"`

	// Invalidated is a latch: once set the session is permanently invalid.
	Invalidated bool `json:"invalidated"`

	// AttributeNames is the set of attribute names currently belonging to
	// this session. Ordering is irrelevant.
	AttributeNames []string `json:"attribute_names,omitempty"`
}

func newMetadata(ttlSeconds int) *Metadata {
	now := time.Now()
	return &Metadata{
		CreatedAt:           now,
		LastAccessedAt:      now,
		MaxInactiveInterval: ttlSeconds,
	}
}

// Has reports whether name is in the attribute index.
func (m *Metadata) Has(name string) bool {
	return slices.Contains(m.AttributeNames, name)
}

// Add registers name in the attribute index.
func (m *Metadata) Add(name string) {
	if !m.Has(name) {
		m.AttributeNames = append(m.AttributeNames, name)
	}
}

// Remove drops name from the attribute index.
func (m *Metadata) Remove(name string) {
	m.AttributeNames = slices.DeleteFunc(m.AttributeNames, func(n string) bool {
		return n == name
	})
}
