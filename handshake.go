package plugin

import (
	"encoding/json"
	"fmt"
	"os"
)

// initParams mirrors init's params object, per spec.md §4.4: the node's
// runtime configuration, the rpc-file to dial, and the plugin's own options
// as configured on the command line.
type initParams struct {
	Options     map[string]json.RawMessage `json:"options"`
	Configuration struct {
		LightningDir string `json:"lightning-dir"`
		RPCFile      string `json:"rpc-file"`
		Network      string `json:"network"`
	} `json:"configuration"`
}

// handleGetManifest answers the manifest handshake request: run every
// command's usage probe, assemble the manifest, reply, and transition to
// awaitingInit. Per spec.md §4.4, getmanifest may only be received once,
// while in awaitingManifest; receiving it in any other state is fatal.
func (h *Host) handleGetManifest(req *Request) {
	if h.state != awaitingManifest {
		h.fatal(fmt.Errorf("getmanifest received in state %s", h.state))
		return
	}

	if err := h.runUsageProbes(); err != nil {
		h.fatal(fmt.Errorf("usage probe: %w", err))
		return
	}

	result := h.buildManifest()
	raw, err := json.Marshal(result)
	if err != nil {
		h.fatal(fmt.Errorf("marshaling manifest: %w", err))
		return
	}

	h.replyTo(req, raw, nil)
	h.state = awaitingInit
}

// handleInit answers the init handshake request: record the node's
// configuration, change into the node's lightning directory, dial the
// rpc-file socket, synchronously read allow-deprecated-apis via
// listconfigs, apply every configured option, invoke the caller's OnInit
// hook, reply, and transition to ready. Per spec.md §4.4, init may only be
// received once, in awaitingInit; any other state is fatal. Any failure
// along this path is also fatal — a plugin that cannot complete init
// cannot safely run.
func (h *Host) handleInit(req *Request) {
	if h.state != awaitingInit {
		h.fatal(fmt.Errorf("init received in state %s", h.state))
		return
	}

	var params initParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		h.fatal(fmt.Errorf("parsing init params: %w", err))
		return
	}

	h.config = HostConfig{
		LightningDir: params.Configuration.LightningDir,
		Network:      params.Configuration.Network,
		RPCFile:      params.Configuration.RPCFile,
	}

	if err := os.Chdir(h.config.LightningDir); err != nil {
		h.fatal(fmt.Errorf("init: changing to lightning-dir %q: %w", h.config.LightningDir, err))
		return
	}

	rpc, err := dialRPCSocket(h.config.RPCFile)
	if err != nil {
		h.fatal(fmt.Errorf("init: %w", err))
		return
	}
	h.rpc = rpc

	allowDeprecated, err := h.Delve("listconfigs", struct{}{}, "allow-deprecated-apis")
	if err != nil {
		h.fatal(fmt.Errorf("init: reading allow-deprecated-apis: %w", err))
		return
	}
	h.config.AllowDeprecatedAPIs = allowDeprecated == "true"

	for _, opt := range h.options {
		raw, ok := params.Options[opt.Name]
		if !ok {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			// Non-string option values (bool/int) still round-trip as their
			// literal JSON text for the Parse callback to interpret.
			value = string(raw)
		}
		if err := opt.Parse(value); err != nil {
			h.fatal(fmt.Errorf("init: option %q rejected %q: %w", opt.Name, value, err))
			return
		}
	}

	if h.onInit != nil {
		if err := h.onInit(h); err != nil {
			h.fatal(fmt.Errorf("init: OnInit: %w", err))
			return
		}
	}

	h.replyTo(req, []byte(`{}`), nil)
	h.state = ready
}

// replyTo writes a JSON-RPC response for req directly to stdout, bypassing
// the outboundQueue, so the reply is written inline and synchronously
// before handleGetManifest/handleInit return. It uses its own FrameWriter;
// under Run the event loop's writer goroutine is already running at this
// point and writes queued payloads through a separate FrameWriter.
func (h *Host) replyTo(req *Request, result json.RawMessage, rpcErr *RPCError) {
	if req.ID == nil {
		return
	}
	resp := Response{Jsonrpc: "2.0", ID: *req.ID, Result: result, Error: rpcErr}
	w := NewFrameWriter(h.stdout)
	if err := w.WriteMessage(resp); err != nil {
		h.fatal(fmt.Errorf("writing handshake reply: %w", err))
	}
}
