package plugin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// frameTerminator marks the end of one top-level JSON object on the wire.
// Per spec.md §4.1/§4.2, both directions frame with "\n\n" after each
// complete object — unlike the teacher's LSP-style Content-Length framing
// (internal/lsp/jsonrpc.go), which this replaces with the simpler scheme
// the source plugin protocol actually uses.
var frameTerminator = []byte("\n\n")

// Request is an inbound or outbound JSON-RPC 2.0 request. Grounded in the
// teacher's lsp.Request (internal/lsp/jsonrpc.go), generalized from a
// string-only ID (the teacher dodges JSON number ambiguity by minting
// string IDs) to the plugin protocol's numeric IDs, since spec.md §3 fixes
// the request id as a 64-bit integer.
type Request struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether this inbound message carries no id, i.e.
// expects no reply (spec.md §4.4).
func (r Request) IsNotification() bool { return r.ID == nil }

// Response is an outbound (or, for rpc_delve, inbound-from-the-node) reply.
// Exactly one of Result/Error is set, per spec.md §3.
type Response struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Notification is an outbound fire-and-forget message with no id, such as
// the log notification of spec.md §6.
type Notification struct {
	Jsonrpc string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object. Grounded in lsp.Error
// (internal/lsp/jsonrpc.go); the plugin imposes no error-code taxonomy of
// its own (spec.md §6), so Data is left as a raw passthrough.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// FrameReader accumulates bytes from a descriptor into a growable buffer
// and yields one complete "\n\n"-terminated JSON object at a time.
//
// Grounded in the teacher's Transport.readMessage (internal/lsp/jsonrpc.go),
// which reads HTTP-style headers off a bufio.Reader; this reworks the same
// "accumulate until a complete message is present" shape around spec.md
// §4.1's simpler blank-line-terminated framing and an explicit
// caller-visible growable buffer (spec.md: "the buffer doubles when full").
type FrameReader struct {
	src  io.Reader
	buf  []byte
	fill int
}

// NewFrameReader wraps src with an initial 4KiB buffer.
func NewFrameReader(src io.Reader) *FrameReader {
	return &FrameReader{
		src: src,
		buf: make([]byte, 4096),
	}
}

// tryExtract looks for the frame terminator in the filled portion of the
// buffer. On a match it returns the message bytes (without the terminator)
// and compacts the remaining bytes to the front of the buffer.
func (r *FrameReader) tryExtract() ([]byte, bool) {
	idx := bytes.Index(r.buf[:r.fill], frameTerminator)
	if idx < 0 {
		return nil, false
	}

	msg := make([]byte, idx)
	copy(msg, r.buf[:idx])

	consumed := idx + len(frameTerminator)
	remaining := r.fill - consumed
	copy(r.buf, r.buf[consumed:r.fill])
	r.fill = remaining

	return msg, true
}

// growIfFull doubles the buffer when it has no room left for another read,
// per spec.md §4.1 ("The buffer doubles when full").
func (r *FrameReader) growIfFull() {
	if r.fill < len(r.buf) {
		return
	}
	bigger := make([]byte, len(r.buf)*2)
	copy(bigger, r.buf[:r.fill])
	r.buf = bigger
}

// ErrPeerClosed signals a clean EOF on the descriptor: the node has gone
// away and the process should exit 0, per spec.md §4.1/§6.
var ErrPeerClosed = fmt.Errorf("peer closed connection")

// ReadMessage blocks until one complete framed JSON object is available,
// reading and buffering as needed, and returns its raw bytes (without the
// terminator). Returns ErrPeerClosed on a clean EOF with no partial message
// pending; any other read error is returned wrapped, which callers treat
// as fatal per spec.md §7.
func (r *FrameReader) ReadMessage() ([]byte, error) {
	if msg, ok := r.tryExtract(); ok {
		return msg, nil
	}

	for {
		r.growIfFull()

		n, err := r.src.Read(r.buf[r.fill:])
		if n > 0 {
			r.fill += n
			if msg, ok := r.tryExtract(); ok {
				return msg, nil
			}
		}

		if err != nil {
			if err == io.EOF {
				if r.fill == 0 {
					return nil, ErrPeerClosed
				}
				return nil, fmt.Errorf("peer closed mid-message: %w", io.ErrUnexpectedEOF)
			}
			return nil, fmt.Errorf("reading frame: %w", err)
		}
	}
}

// FrameWriter serializes JSON-RPC objects onto an io.Writer, each followed
// by the "\n\n" terminator. Writes are serialized with a mutex so that two
// goroutines producing output concurrently (e.g. a reply from the event
// loop and a log notification from a handler) can never interleave partial
// objects, per spec.md §4.2's atomicity requirement.
type FrameWriter struct {
	mu  sync.Mutex
	dst io.Writer
}

// NewFrameWriter wraps dst.
func NewFrameWriter(dst io.Writer) *FrameWriter {
	return &FrameWriter{dst: dst}
}

// WriteMessage marshals msg to JSON and writes it followed by the frame
// terminator as a single atomic write.
func (w *FrameWriter) WriteMessage(msg interface{}) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling outbound message: %w", err)
	}

	framed := make([]byte, 0, len(body)+len(frameTerminator))
	framed = append(framed, body...)
	framed = append(framed, frameTerminator...)

	w.mu.Lock()
	defer w.mu.Unlock()

	_, err = w.dst.Write(framed)
	return err
}
