package plugin

import "fmt"

// rpcMethodManifestEntry is one entry of getmanifest's "rpcmethods" array,
// per spec.md §6.
type rpcMethodManifestEntry struct {
	Name            string `json:"name"`
	Usage           string `json:"usage"`
	Description     string `json:"description"`
	LongDescription string `json:"long_description,omitempty"`
}

type manifestResult struct {
	Options       []optionManifestEntry    `json:"options"`
	RPCMethods    []rpcMethodManifestEntry `json:"rpcmethods"`
	Subscriptions []string                 `json:"subscriptions"`
	Hooks         []string                 `json:"hooks"`
	Dynamic       string                   `json:"dynamic"`
}

// runUsageProbes calls every registered command handler once in
// usage-probe mode (spec.md §4.5): the synthesized Command has UsageOnly
// set and carries no params. Handlers are contractually required to call
// SetUsage and return Complete; a handler that instead returns Pending, or
// never calls SetUsage, is a programming error in the plugin and is
// treated as fatal at startup rather than silently producing an empty
// manifest entry.
func (h *Host) runUsageProbes() error {
	for name, reg := range h.commands {
		cmd := &Command{method: name, usageOnly: true, host: h}
		result := reg.Handler(cmd, Params{})

		if result != Complete || !cmd.finalized {
			return fmt.Errorf("command %q: usage probe must call SetUsage and return Complete", name)
		}
		if _, ok := h.usage[name]; !ok {
			return fmt.Errorf("command %q: usage probe did not record a usage string", name)
		}
	}
	return nil
}

// recordUsage stores the usage string gathered for method during the
// usage-probe pass (spec.md §3's "usage map").
func (h *Host) recordUsage(method, usage string) {
	h.usage[method] = usage
}

// buildManifest assembles the getmanifest reply: registered options,
// commands (with their probed usage strings), notification subscriptions,
// hook subscriptions, and the dynamic flag derived from restartability.
// Grounded in the shape of the teacher's daemon.handleStatus
// (internal/daemon/daemon.go), which assembles a diagnostic snapshot of
// host state the same way — enumerate registered/tracked fields into a
// plain result struct.
func (h *Host) buildManifest() manifestResult {
	options := make([]optionManifestEntry, 0, len(h.options))
	for _, opt := range h.options {
		options = append(options, optionManifestEntry{
			Name:        opt.Name,
			Type:        string(opt.Type),
			Default:     opt.Default,
			Description: opt.Description,
		})
	}

	methods := make([]rpcMethodManifestEntry, 0, len(h.commands))
	for name, reg := range h.commands {
		methods = append(methods, rpcMethodManifestEntry{
			Name:            name,
			Usage:           h.usage[name],
			Description:     reg.Description,
			LongDescription: reg.LongDescription,
		})
	}

	subs := make([]string, 0, len(h.notifications))
	for name := range h.notifications {
		subs = append(subs, name)
	}

	hooks := make([]string, 0, len(h.hooks))
	for name := range h.hooks {
		hooks = append(hooks, name)
	}

	dynamic := "false"
	if h.restartable {
		dynamic = "true"
	}

	return manifestResult{
		Options:       options,
		RPCMethods:    methods,
		Subscriptions: subs,
		Hooks:         hooks,
		Dynamic:       dynamic,
	}
}
