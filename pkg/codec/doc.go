// Package codec converts attribute values to and from the byte strings that
// get persisted in the session store. The session layer treats values as
// opaque; the only requirement is that the same codec is used for reads and
// writes within a deployment.
//
// Codecs are selected by short name through a process-wide registry:
//
//	c, err := codec.Resolve("json")
//
// Two codecs ship out of the box: "json" (default, values round-trip through
// encoding/json with its usual type mapping) and "gob" (binary, concrete
// types must be registered with RegisterGobType on every process that reads
// or writes them). Custom codecs can be added with Register.
package codec
