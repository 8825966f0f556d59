package plugin

import "encoding/json"

// OnOkFunc is an outbound RPC's success continuation. It receives the
// owning command (so the continuation can finalize it) and the raw
// "result" member of the node's reply, and reports whether the command is
// now Complete or remains Pending for further async work.
type OnOkFunc func(cmd *Command, result json.RawMessage) CommandResult

// OnErrFunc is an outbound RPC's failure continuation, mirroring OnOkFunc
// for the "error" member of the reply.
type OnErrFunc func(cmd *Command, rpcErr *RPCError) CommandResult

// OutRequest is an outbound RPC awaiting a reply from the node, per
// spec.md §3. It never times out from the core's side; the node is
// trusted to eventually reply (spec.md §5).
type OutRequest struct {
	ID      int64
	Cmd     *Command
	OnOk    OnOkFunc
	OnErr   OnErrFunc
	Context interface{}
}

// outReqTable maps outbound request ids to their pending OutRequest.
// Single-threaded by construction (only ever touched from the event loop
// goroutine, per spec.md §5), so it needs no locking — grounded in
// spec.md §3's "Outbound request table" data model, which explicitly
// calls out that no locking is needed under the single-threaded
// scheduling model.
type outReqTable struct {
	nextID int64
	byID   map[int64]*OutRequest
}

func newOutReqTable() *outReqTable {
	return &outReqTable{byID: make(map[int64]*OutRequest)}
}

// mintID returns the next monotonically increasing request id. Ids are
// never reused within the process lifetime (spec.md §3).
func (t *outReqTable) mintID() int64 {
	t.nextID++
	return t.nextID
}

func (t *outReqTable) insert(req *OutRequest) {
	t.byID[req.ID] = req
}

// take removes and returns the OutRequest for id, if any. The invariant
// from spec.md §3 ("for every id in the table there is exactly one
// outstanding RPC on the wire") means a reply consumes its entry exactly
// once; take enforces that by deleting on lookup.
func (t *outReqTable) take(id int64) (*OutRequest, bool) {
	req, ok := t.byID[id]
	if ok {
		delete(t.byID, id)
	}
	return req, ok
}

func (t *outReqTable) len() int { return len(t.byID) }
