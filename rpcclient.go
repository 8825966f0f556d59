package plugin

import (
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
)

// rpcSocket bundles the dialed connection to the node's rpc-file together
// with the framed reader/writer pair used to speak JSON-RPC over it.
//
// Grounded in the teacher's daemon/client pairing (internal/client/client.go
// dials the daemon's Unix socket with net.Dial and wraps it with
// json.NewEncoder/json.NewDecoder); here the plugin is itself the dialing
// client, talking to the node's rpc-file instead of to a sibling daemon,
// and framing is the "\n\n" scheme of spec.md §4.2 rather than
// encoding/json's own stream framing.
//
// closed latches the first read/write failure observed on conn. Grounded
// in the teacher's socket.go IsProcessAlive/IsDaemonStale guard against a
// dead-but-locked daemon: there the check is a PID liveness probe before
// trusting a lock file, here it is a latched error flag before trusting a
// connection, but the shape is the same — don't hand a stale handle to a
// new caller once it's known bad.
type rpcSocket struct {
	conn   net.Conn
	reader *FrameReader
	writer *FrameWriter
	closed atomic.Bool
}

// markClosed latches conn as unusable after observing a read or write
// failure on it.
func (s *rpcSocket) markClosed() { s.closed.Store(true) }

func (s *rpcSocket) isClosed() bool { return s.closed.Load() }

// dialRPCSocket opens the Unix-domain stream socket named by the node's
// rpc-file, per spec.md §6.
func dialRPCSocket(path string) (*rpcSocket, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("dialing rpc socket %s: %w", path, err)
	}
	return &rpcSocket{
		conn:   conn,
		reader: NewFrameReader(conn),
		writer: NewFrameWriter(conn),
	}, nil
}

// Delve sends a synchronous request to the node and blocks until a reply
// arrives, asserts the reply is not an error, and walks a dotted path into
// the result. Per spec.md §4.3, this is used only during init handling
// (e.g. to read "allow-deprecated-apis" from listconfigs), before the
// general asynchronous rpc-reply reader goroutine is started, so it is
// safe for Delve to read directly off the shared rpcSocket.reader without
// racing that goroutine.
func (h *Host) Delve(method string, params interface{}, path string) (string, error) {
	if h.rpc == nil || h.rpc.isClosed() {
		return "", fmt.Errorf("delve: rpc socket not connected")
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshaling delve params: %w", err)
	}

	id := int64(0)
	req := Request{Jsonrpc: "2.0", ID: &id, Method: method, Params: paramsJSON}
	if err := h.rpc.writer.WriteMessage(req); err != nil {
		h.rpc.markClosed()
		return "", fmt.Errorf("writing delve request: %w", err)
	}

	raw, err := h.rpc.reader.ReadMessage()
	if err != nil {
		h.rpc.markClosed()
		return "", fmt.Errorf("reading delve reply: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("parsing delve reply: %w", err)
	}
	if resp.ID != id {
		return "", fmt.Errorf("delve reply id %d does not match request id %d", resp.ID, id)
	}
	if resp.Error != nil {
		return "", resp.Error
	}

	return delvePath(resp.Result, path)
}

// SendOutReq mints a new outbound request id, writes the request to the
// node's rpc socket, and registers the callbacks to be invoked when the
// reply arrives. Per spec.md §4.3, it always returns Pending: the inbound
// command that triggered the outbound call is kept alive until the reply
// is matched and a callback finalizes it.
func (h *Host) SendOutReq(cmd *Command, method string, onOk OnOkFunc, onErr OnErrFunc, ctx interface{}, params interface{}) (CommandResult, error) {
	if h.rpc == nil || h.rpc.isClosed() {
		return Pending, fmt.Errorf("send_outreq: rpc socket not connected")
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return Pending, fmt.Errorf("marshaling outreq params: %w", err)
	}

	id := h.outReqs.mintID()
	req := Request{Jsonrpc: "2.0", ID: &id, Method: method, Params: paramsJSON}

	if err := h.rpc.writer.WriteMessage(req); err != nil {
		h.rpc.markClosed()
		return Pending, fmt.Errorf("writing outreq: %w", err)
	}

	h.outReqs.insert(&OutRequest{ID: id, Cmd: cmd, OnOk: onOk, OnErr: onErr, Context: ctx})
	h.stats.outReqsSent++
	return Pending, nil
}

// handleRPCReply parses one reply from the rpc socket, looks up and
// removes its OutRequest, and dispatches to the matching callback. An
// unknown id is a protocol violation per spec.md §7 and is fatal.
func (h *Host) handleRPCReply(raw []byte) {
	var generic struct {
		ID     *int64          `json:"id"`
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.Unmarshal(raw, &generic); err != nil {
		h.fatal(fmt.Errorf("parsing rpc reply: %w", err))
		return
	}
	if generic.ID == nil {
		h.fatal(fmt.Errorf("rpc reply missing id"))
		return
	}
	if generic.Result == nil && generic.Error == nil {
		h.fatal(fmt.Errorf("rpc reply %d has neither result nor error", *generic.ID))
		return
	}

	req, ok := h.outReqs.take(*generic.ID)
	if !ok {
		h.fatal(fmt.Errorf("rpc reply with unknown id %d", *generic.ID))
		return
	}

	var result CommandResult
	if generic.Error != nil {
		if req.OnErr == nil {
			h.log.Debug("outreq %d: no error callback registered, dropping", *generic.ID)
			return
		}
		result = req.OnErr(req.Cmd, generic.Error)
	} else {
		if req.OnOk == nil {
			h.log.Debug("outreq %d: no success callback registered, dropping", *generic.ID)
			return
		}
		result = req.OnOk(req.Cmd, generic.Result)
	}

	h.checkFinalizerDiscipline(req.Cmd, result)
}
