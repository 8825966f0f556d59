package plugin

import "testing"

func wellBehavedHandler(usage string) CommandHandler {
	return func(cmd *Command, params Params) CommandResult {
		if cmd.UsageOnly() {
			return SetUsage(cmd, usage)
		}
		return Success(cmd, struct{}{})
	}
}

func TestRunUsageProbesSucceeds(t *testing.T) {
	h := newTestHost(t)
	if err := h.RegisterCommand("search", "search <query>", "", wellBehavedHandler("search <query>")); err != nil {
		t.Fatalf("RegisterCommand: %v", err)
	}

	if err := h.runUsageProbes(); err != nil {
		t.Fatalf("runUsageProbes: %v", err)
	}
	assertEqual(t, h.usage["search"], "search <query>", "usage")
}

// TestUsageProbeIdempotence verifies spec.md §8: running the usage probe
// twice yields identical usage strings.
func TestUsageProbeIdempotence(t *testing.T) {
	h := newTestHost(t)
	h.RegisterCommand("search", "search <query>", "", wellBehavedHandler("search <query>"))

	if err := h.runUsageProbes(); err != nil {
		t.Fatalf("first runUsageProbes: %v", err)
	}
	first := h.usage["search"]

	if err := h.runUsageProbes(); err != nil {
		t.Fatalf("second runUsageProbes: %v", err)
	}
	second := h.usage["search"]

	assertEqual(t, first, second, "usage string")
}

func TestRunUsageProbesRejectsHandlerThatForgetsSetUsage(t *testing.T) {
	h := newTestHost(t)
	h.RegisterCommand("broken", "", "", func(cmd *Command, params Params) CommandResult {
		return Success(cmd, struct{}{}) // never calls SetUsage
	})

	if err := h.runUsageProbes(); err == nil {
		t.Fatal("expected an error when a handler does not call SetUsage")
	}
}

func TestRunUsageProbesRejectsHandlerThatReturnsPending(t *testing.T) {
	h := newTestHost(t)
	h.RegisterCommand("broken", "", "", func(cmd *Command, params Params) CommandResult {
		SetUsage(cmd, "broken")
		return Pending
	})

	if err := h.runUsageProbes(); err == nil {
		t.Fatal("expected an error when a handler returns Pending from a usage probe")
	}
}

func TestBuildManifestShape(t *testing.T) {
	h := newTestHost(t)
	h.RegisterCommand("search", "search <query>", "", wellBehavedHandler("search <query>"))
	h.RegisterNotification("connect", func(Params) {})
	h.RegisterHook("rpc_command", func(cmd *Command, params Params) CommandResult {
		return Success(cmd, struct{}{})
	})
	h.restartable = true

	if err := h.runUsageProbes(); err != nil {
		t.Fatalf("runUsageProbes: %v", err)
	}

	m := h.buildManifest()
	assertEqual(t, len(m.RPCMethods), 1, "rpcmethods count")
	assertEqual(t, m.RPCMethods[0].Usage, "search <query>", "usage")
	assertEqual(t, len(m.Subscriptions), 1, "subscriptions count")
	assertEqual(t, len(m.Hooks), 1, "hooks count")
	assertEqual(t, m.Dynamic, "true", "dynamic")
}
