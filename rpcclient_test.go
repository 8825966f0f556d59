package plugin

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

func connectedTestHost(t *testing.T, serverReply []byte) *Host {
	t.Helper()
	h := newTestHost(t)

	path := filepath.Join(t.TempDir(), "lightning-rpc")
	fakeRPCServer(t, path, serverReply)

	rpc, err := dialRPCSocket(path)
	if err != nil {
		t.Fatalf("dialRPCSocket: %v", err)
	}
	h.rpc = rpc
	t.Cleanup(func() { _ = rpc.conn.Close() })
	return h
}

func TestDelveReadsPathFromReply(t *testing.T) {
	h := connectedTestHost(t, []byte(`{"jsonrpc":"2.0","id":0,"result":{"allow-deprecated-apis":"false"}}`))

	got, err := h.Delve("listconfigs", struct{}{}, "allow-deprecated-apis")
	if err != nil {
		t.Fatalf("Delve: %v", err)
	}
	assertEqual(t, got, "false", "allow-deprecated-apis")
}

func TestDelveReturnsRPCError(t *testing.T) {
	h := connectedTestHost(t, []byte(`{"jsonrpc":"2.0","id":0,"error":{"code":-32601,"message":"no such method"}}`))

	_, err := h.Delve("listconfigs", struct{}{}, "x")
	if err == nil {
		t.Fatal("expected Delve to surface the node's error")
	}
}

func TestSendOutReqAlwaysReturnsPending(t *testing.T) {
	h := connectedTestHost(t, []byte(`{"jsonrpc":"2.0","id":0,"result":{}}`))
	id := int64(1)
	cmd := &Command{id: &id, method: "echo", host: h}

	result, err := h.SendOutReq(cmd, "getinfo", func(cmd *Command, result json.RawMessage) CommandResult {
		return ForwardResult(cmd, result)
	}, nil, nil, struct{}{})
	if err != nil {
		t.Fatalf("SendOutReq: %v", err)
	}
	assertEqual(t, result, Pending, "SendOutReq result")
	assertEqual(t, h.outReqs.len(), 1, "outReqs length")
}

func TestHandleRPCReplyDispatchesToOnOk(t *testing.T) {
	h := newTestHost(t)
	id := int64(7)
	cmd := &Command{id: &id, method: "echo", host: h}

	onOkCalled := false
	req := &OutRequest{
		ID:  99,
		Cmd: cmd,
		OnOk: func(cmd *Command, result json.RawMessage) CommandResult {
			onOkCalled = true
			return ForwardResult(cmd, result)
		},
	}
	h.outReqs.insert(req)

	reply, _ := json.Marshal(map[string]interface{}{"id": 99, "result": map[string]string{"alias": "x"}})
	h.handleRPCReply(reply)

	if !onOkCalled {
		t.Fatal("expected OnOk to be invoked")
	}
	if h.outReqs.len() != 0 {
		t.Fatalf("expected the OutRequest to be removed, %d left", h.outReqs.len())
	}

	payload := drainOutbound(h)
	resp, ok := payload.(Response)
	if !ok {
		t.Fatalf("expected a forwarded Response, got %T", payload)
	}
	assertEqual(t, resp.ID, int64(7), "forwarded response id")
}

func TestHandleRPCReplyUnknownIDIsFatal(t *testing.T) {
	h := newTestHost(t)
	reply, _ := json.Marshal(map[string]interface{}{"id": 1, "result": map[string]string{}})
	h.handleRPCReply(reply)

	if h.fatalErr == nil {
		t.Fatal("expected a reply with an unknown id to be fatal")
	}
}

func TestHandleRPCReplyMissingResultAndErrorIsFatal(t *testing.T) {
	h := newTestHost(t)
	h.outReqs.insert(&OutRequest{ID: 1})

	reply, _ := json.Marshal(map[string]interface{}{"id": 1})
	h.handleRPCReply(reply)

	if h.fatalErr == nil {
		t.Fatal("expected a reply with neither result nor error to be fatal")
	}
}
