// Package plugin is a host library for Core Lightning plugins: a plugin is a
// subprocess the node launches and then speaks JSON-RPC 2.0 with over the
// plugin's stdin/stdout. This package provides the framed transport, the
// getmanifest/init handshake, dispatch to registered command/notification/hook
// handlers, an asynchronous outbound RPC channel back to the node over a
// Unix-domain socket, a timer facility, and the single-threaded event loop
// that ties all of that together.
package plugin
