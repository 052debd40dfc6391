// Package session externalizes HTTP sessions into a distributed TTL
// key-value store, so sessions survive process restarts, are shared across a
// cluster, and can enforce at most one active session per user (duplicate
// login detection with forced logout).
//
// # Architecture
//
// A Filter wraps the application handler as net/http middleware. Per
// request it discovers or mints a session id (pinned in a cookie), builds a
// Session (a request-scoped facade over the store with lazy attribute
// loading and a dirty set) and persists changes after the handler returns.
// A LoginCoordinator implements the cross-session duplicate-login protocol
// in a separate store namespace, and a Monitor keeps lifecycle counters.
//
//	┌────────┐  cookie   ┌──────────┐
//	│ Client │ ────────► │  Filter  │
//	└────────┘           └──────────┘
//	                       │      │
//	          ┌────────────┘      └──────────────┐
//	          ▼                                  ▼
//	     ┌─────────┐  attribute ns  ┌──────────────────┐
//	     │ Session │ ─────────────► │  kvstore.Store   │
//	     └─────────┘                │  (redis, mongo,  │
//	  ┌──────────────────┐ login ns │   memory)        │
//	  │ LoginCoordinator │ ───────► └──────────────────┘
//	  └──────────────────┘
//
// # Usage
//
//	store, err := kvstore.ConnectRedis(ctx, redisCfg)
//	if err != nil { ... }
//
//	cfg, err := session.LoadConfig()
//	if err != nil { ... }
//
//	filter, err := session.NewFilter(cfg, store)
//	if err != nil { ... }
//
//	r := chi.NewRouter()
//	r.Use(filter.Middleware)
//	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
//		sess := session.MustFromContext(r.Context())
//		sess.Set("cart", map[string]any{"items": 1})
//	})
//
// Application code signs a user in through the filter's coordinator:
//
//	filter.LoginCoordinator().Login(r.Context(), sess, "alice")
//
// # Concurrency
//
// Session values are per-request and never shared between requests.
// Concurrent requests carrying the same session id read and write the same
// store keys; the store is the only serialization point and attribute
// updates are last-writer-wins per key, not linearized across requests.
// Within one request, ReloadAttributes runs before Save, so a
// handler sees its own writes.
package session
