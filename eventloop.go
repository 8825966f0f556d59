package plugin

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"
)

// Run drives the host through the handshake and then the ready-state event
// loop until the node closes stdin or a fatal error occurs, per spec.md §5.
// It multiplexes the four I/O sources spec.md calls out — node-stdin,
// node-stdout, the rpc-socket, and timers — as goroutines coordinated
// through channels, rather than literal epoll: idiomatic Go's analogue of
// the source's single-threaded reactor. Only this goroutine (the one
// draining the channels below) ever touches Host/Command state, preserving
// spec.md §5's single-threaded-cooperative discipline even though I/O
// itself happens concurrently.
//
// Grounded in the teacher's daemon.Run (internal/daemon/daemon.go), which
// uses golang.org/x/sync/errgroup to run its listener-accept loop and idle
// timer side by side and tears both down on the first error; generalized
// here from two sources to four.
func (h *Host) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stdinMsgs := make(chan []byte)
	stdinErrs := make(chan error, 1)
	go h.readLoop(h.stdin, stdinMsgs, stdinErrs)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return h.runHandshakeAndDispatch(gctx, stdinMsgs, stdinErrs)
	})

	g.Go(func() error {
		return h.writeLoop(gctx)
	})

	err := g.Wait()
	h.flushLogs()
	if errors.Is(err, errPeerClosedCleanly) {
		return nil
	}
	return err
}

// errPeerClosedCleanly signals a clean shutdown (node closed stdin with no
// partial message pending), per spec.md §6: this is not an error condition,
// Run should return nil.
var errPeerClosedCleanly = errors.New("peer closed cleanly")

// readLoop pumps framed messages from r onto msgs until r is closed or a
// framing error occurs, then reports onto errs exactly once.
func (h *Host) readLoop(r io.Reader, msgs chan<- []byte, errs chan<- error) {
	fr := NewFrameReader(r)
	for {
		raw, err := fr.ReadMessage()
		if err != nil {
			if errors.Is(err, ErrPeerClosed) {
				errs <- errPeerClosedCleanly
			} else {
				errs <- err
			}
			close(msgs)
			return
		}
		msgs <- raw
	}
}

// runHandshakeAndDispatch is the loop's only state-mutating goroutine: it
// consumes one top-level inbound message at a time from stdin and fire
// events from the timer wheel's channel, and once the handshake reaches
// ready, also starts and consumes the rpc-socket's async reply reader. Per spec.md §4.7,
// a buffered rpc reply is drained before polling stdin again when both are
// ready, so outbound correlation doesn't starve behind a burst of inbound
// commands.
func (h *Host) runHandshakeAndDispatch(ctx context.Context, stdinMsgs <-chan []byte, stdinErrs <-chan error) error {
	var rpcMsgs chan []byte
	var rpcErrs chan error

	for {
		if h.state == ready && rpcMsgs == nil && h.rpc != nil {
			rpcMsgs = make(chan []byte)
			rpcErrs = make(chan error, 1)
			go h.readLoop(h.rpc.conn, rpcMsgs, rpcErrs)
		}

		// Priority drain: an already-buffered rpc reply is handled before
		// selecting stdin again, so outbound round-trips don't queue up
		// behind a burst of inbound commands (spec.md §4.7).
		if rpcMsgs != nil {
			select {
			case raw, ok := <-rpcMsgs:
				if ok {
					h.handleRPCReply(raw)
					if h.fatalErr != nil {
						return h.fatalErr
					}
					continue
				}
				rpcMsgs = nil
			default:
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-stdinMsgs:
			if !ok {
				return <-stdinErrs
			}
			h.dispatchMessage(raw)
			if h.fatalErr != nil {
				return h.fatalErr
			}

		case raw, ok := <-rpcMsgs:
			if !ok {
				rpcMsgs = nil
				continue
			}
			h.handleRPCReply(raw)
			if h.fatalErr != nil {
				return h.fatalErr
			}

		case err := <-rpcErrs:
			if err != nil {
				return fmt.Errorf("rpc socket: %w", err)
			}

		case fire := <-h.timers.fireCh:
			fire.cb(h)
			if h.fatalErr != nil {
				return h.fatalErr
			}
		}
	}
}

// writeLoop drains the outbound queue and writes each payload to the
// node's stdout in order, one frame at a time, per spec.md §4.7.
func (h *Host) writeLoop(ctx context.Context) error {
	w := NewFrameWriter(h.stdout)
	for {
		select {
		case <-ctx.Done():
			return nil
		case payload := <-h.outboundQueue:
			if err := w.WriteMessage(payload); err != nil {
				return fmt.Errorf("writing outbound message: %w", err)
			}
		}
	}
}
