package plugin

import (
	"encoding/json"
	"fmt"
)

// CommandResult is the two-valued discriminant every handler must return,
// per spec.md §4.5. In the source (a C plugin library) this was pointer
// identity against two static sentinels; DESIGN NOTES §9 calls for
// re-expressing it as a typed value so a command can't be both finalized
// and continued with by mistake. Go has no sum types, so the compile-time
// half of that guarantee isn't available here, but the type still makes
// "what did my handler decide" an explicit, named return value instead of
// a bool or an untyped pointer comparison, and Host enforces the dynamic
// half (exactly one finalizer call per command) at dispatch time.
type CommandResult int

const (
	// Pending means the command outlives this call: a continuation
	// registered via SendOutReq or a Timer will eventually finalize it.
	Pending CommandResult = iota
	// Complete means a finalizer has already been called inside this
	// handler invocation; the command is done.
	Complete
)

func (r CommandResult) String() string {
	if r == Pending {
		return "pending"
	}
	return "complete"
}

// Command represents one inbound request (or notification) being handled,
// per spec.md §3. Grounded in the teacher's daemon.Request/Response pair
// (internal/daemon/daemon.go), generalized: the teacher replies inline
// within handleConnection's loop, with no notion of a command outliving
// that call; here a Command can be handed off to an OutRequest or a Timer
// and finalized later, which is the entire reason this type exists
// separately from the raw wire Request.
type Command struct {
	id        *int64 // nil for notifications, which expect no reply
	method    string
	usageOnly bool
	host      *Host
	finalized bool
}

// ID returns the inbound request id, or false if this Command is a
// notification and therefore has none.
func (c *Command) ID() (int64, bool) {
	if c.id == nil {
		return 0, false
	}
	return *c.id, true
}

// Method returns the JSON-RPC method name this command was dispatched for.
func (c *Command) Method() string { return c.method }

// UsageOnly reports whether this Command is a synthesized usage probe
// (spec.md §4.5): handlers must call SetUsage and return Complete
// immediately, never touching the wire.
func (c *Command) UsageOnly() bool { return c.usageOnly }

func (c *Command) markFinalized() {
	if c.finalized {
		panic(fmt.Sprintf("command %q (id=%v) finalized more than once", c.method, c.id))
	}
	c.finalized = true
}

// enqueueResponse writes a completed Response onto the outbound queue (or,
// for a notification, does nothing — notifications never get a reply).
func (c *Command) enqueueResponse(resp Response) {
	id, ok := c.ID()
	if !ok {
		return
	}
	resp.ID = id
	resp.Jsonrpc = "2.0"
	c.host.enqueueOutbound(resp)
}

// Success finalizes cmd with a JSON-RPC success response carrying result,
// per spec.md §4.5's command_success.
func Success(cmd *Command, result interface{}) CommandResult {
	cmd.markFinalized()

	raw, err := json.Marshal(result)
	if err != nil {
		cmd.host.log.Error("marshaling success result for %s: %v", cmd.method, err)
		raw = []byte("null")
	}
	cmd.enqueueResponse(Response{Result: raw})
	return Complete
}

// SuccessString finalizes cmd with a bare string result (or an empty
// object if s is empty), per spec.md §4.5's command_success_str.
func SuccessString(cmd *Command, s string) CommandResult {
	if s == "" {
		return Success(cmd, struct{}{})
	}
	return Success(cmd, s)
}

// Fail finalizes cmd with a JSON-RPC error response, per spec.md §4.5's
// command_done_err. The plugin imposes no error-code taxonomy of its own
// (spec.md §6) — code is whatever the handler chooses.
func Fail(cmd *Command, code int, message string, data interface{}) CommandResult {
	cmd.markFinalized()

	rpcErr := &RPCError{Code: code, Message: message}
	if data != nil {
		raw, err := json.Marshal(data)
		if err == nil {
			rpcErr.Data = raw
		}
	}
	cmd.enqueueResponse(Response{Error: rpcErr})
	return Complete
}

// ForwardResult splices a subordinate RPC's raw result verbatim into cmd's
// reply, used to build transparent proxies (spec.md §4.5's forward_result).
func ForwardResult(cmd *Command, result json.RawMessage) CommandResult {
	cmd.markFinalized()
	cmd.enqueueResponse(Response{Result: result})
	return Complete
}

// ForwardError splices a subordinate RPC's raw error verbatim into cmd's
// reply (spec.md §4.5's forward_error).
func ForwardError(cmd *Command, rpcErr *RPCError) CommandResult {
	cmd.markFinalized()
	cmd.enqueueResponse(Response{Error: rpcErr})
	return Complete
}

// SetUsage records the usage string for a usage-probe Command (spec.md
// §4.5). Handlers running in usage-probe mode are contractually required
// to call this exactly once and then return Complete without touching the
// wire (cmd.host is still set, but enqueueResponse no-ops since a usage
// probe command has no id).
func SetUsage(cmd *Command, usage string) CommandResult {
	if !cmd.usageOnly {
		panic("SetUsage called on a non-usage-probe command")
	}
	cmd.host.recordUsage(cmd.method, usage)
	cmd.finalized = true
	return Complete
}
