package plugin

import (
	"encoding/json"
	"fmt"
)

// dispatchMessage classifies and routes one inbound top-level JSON object
// from the node, per spec.md §4.4's post-handshake dispatch rules:
//
//   - getmanifest/init are only legal during the handshake and are routed
//     there regardless of handshake state (handleGetManifest/handleInit
//     themselves reject being called out of order).
//   - once ready, a message with no id is a notification: looked up in the
//     notifications table, fatal if unregistered.
//   - a message with an id is a hook or a command: hooks are searched
//     first, then commands (spec.md §4.4's stated lookup order), fatal if
//     neither table has it.
func (h *Host) dispatchMessage(raw []byte) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		h.fatal(fmt.Errorf("parsing inbound message: %w", err))
		return
	}

	switch req.Method {
	case "getmanifest":
		h.handleGetManifest(&req)
		return
	case "init":
		h.handleInit(&req)
		return
	}

	if h.state != ready {
		h.fatal(fmt.Errorf("method %q received before handshake completed (state %s)", req.Method, h.state))
		return
	}

	if req.IsNotification() {
		h.dispatchNotification(&req)
		return
	}
	h.dispatchCommandOrHook(&req)
}

func (h *Host) dispatchNotification(req *Request) {
	handler, ok := h.notifications[req.Method]
	if !ok {
		h.fatal(fmt.Errorf("unregistered notification method %q", req.Method))
		return
	}
	handler(newJSONView(req.Params))
	h.stats.notificationsHandled++
}

func (h *Host) dispatchCommandOrHook(req *Request) {
	id := *req.ID

	if handler, ok := h.hooks[req.Method]; ok {
		cmd := &Command{id: &id, method: req.Method, host: h}
		result := handler(cmd, newJSONView(req.Params))
		h.checkFinalizerDiscipline(cmd, result)
		h.stats.hooksHandled++
		return
	}

	reg, ok := h.commands[req.Method]
	if !ok {
		h.fatal(fmt.Errorf("unregistered command method %q", req.Method))
		return
	}
	cmd := &Command{id: &id, method: req.Method, host: h}
	result := reg.Handler(cmd, newJSONView(req.Params))
	h.checkFinalizerDiscipline(cmd, result)
	h.stats.requestsDispatched++
}
