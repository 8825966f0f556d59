package plugin

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Params is the "JSON token view" of spec.md §2 item 2: a thin wrapper
// over an external, byte-range-based incremental parser that exposes
// member lookup and path-addressed access without copying the underlying
// buffer. Built on gjson.Result, whose .Raw/.Index fields reference the
// original byte slice rather than an allocated tree — the closest
// real-ecosystem match to what spec.md assumes and explicitly places out
// of scope to build from scratch. Grounded in the pack: gjson is a direct
// dependency of the yukin371-Kore manifest and appears across several
// JSON-RPC/LSP/MCP-adjacent example repos (honganh1206-clue,
// TheApeMachine-a2a-go, Zereker-memory).
type Params struct {
	buf []byte
	res gjson.Result
}

// newJSONView parses buf lazily; gjson defers any real work to first
// access, matching the "incremental" character spec.md assumes of the
// token library.
func newJSONView(buf []byte) Params {
	return Params{buf: buf, res: gjson.ParseBytes(buf)}
}

// Get performs a dotted-path lookup, e.g. "configuration.lightning-dir",
// used directly by rpc_delve (spec.md §4.3) to walk a result object.
func (v Params) Get(path string) Params {
	return Params{buf: v.buf, res: v.res.Get(path)}
}

// Member is a readability alias for Get. It uses the same path syntax, so
// a name containing '.' or a gjson wildcard character is read as a path,
// not as a single literal key.
func (v Params) Member(name string) Params {
	return v.Get(name)
}

// Exists reports whether the path resolved to a present JSON value,
// distinguishing "absent" from "present but null/zero".
func (v Params) Exists() bool { return v.res.Exists() }

// String returns the value as a string (gjson coerces numbers/bools too,
// which is convenient for untyped option values from init's params).
func (v Params) String() string { return v.res.String() }

// Int returns the value as an int64.
func (v Params) Int() int64 { return v.res.Int() }

// Bool returns the value as a bool.
func (v Params) Bool() bool { return v.res.Bool() }

// Raw returns the unparsed JSON text backing this value, a zero-copy slice
// view into the original message buffer.
func (v Params) Raw() string { return v.res.Raw }

// ForEach iterates object members or array elements, matching gjson's
// member-lookup contract from spec.md's token-view description.
func (v Params) ForEach(fn func(key, value Params) bool) {
	v.res.ForEach(func(key, value gjson.Result) bool {
		return fn(Params{buf: v.buf, res: key}, Params{buf: v.buf, res: value})
	})
}

// delvePath walks a dotted path into a result and returns the string found
// there, or an error if any segment is missing — the exact operation
// rpc_delve (spec.md §4.3) performs on a synchronous RPC reply.
func delvePath(result json.RawMessage, path string) (string, error) {
	view := newJSONView(result)
	found := view.Get(path)
	if !found.Exists() {
		return "", fmt.Errorf("path %q not found in result", path)
	}
	return found.String(), nil
}
