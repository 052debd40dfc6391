// Package kvstore abstracts the TTL key-value store that session state is
// externalized into. The Store interface exposes two logically separate
// namespaces: the attribute namespace holds per-session metadata and
// attribute records, the login namespace holds the duplicate-login protocol
// records (user-to-session and session-state bindings).
//
// Three implementations ship with the package:
//
//   - RedisStore: the canonical backend. The attribute namespace lives in the
//     logical database named by the connection URL and the login namespace in
//     the adjacent database (index D and D+1).
//   - MongoStore: a port for backends without database isolation; each
//     namespace is a collection with a TTL index on expires_at.
//   - MemoryStore: process-local store with disjoint key prefixes, used by
//     tests and single-process embeddings.
//
// All writes take a TTL and atomically set the value and (re)arm expiry.
// Reads return ErrNotFound on miss or expiry. Backend connectivity failures
// surface as errors wrapping ErrUnavailable; callers treat those as
// non-recoverable for the current request.
//
// Values are raw byte strings. The attribute namespace stores codec output;
// the login namespace stores plain UTF-8 strings (session ids, user ids and
// the DUPLICATED sentinel), so its records remain greppable on the server.
package kvstore
