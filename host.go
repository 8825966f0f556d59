package plugin

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap/zapcore"
)

// handshakeState is the two-phase handshake state machine of spec.md §4.4.
type handshakeState int

const (
	awaitingManifest handshakeState = iota
	awaitingInit
	ready
)

func (s handshakeState) String() string {
	switch s {
	case awaitingManifest:
		return "awaiting_manifest"
	case awaitingInit:
		return "awaiting_init"
	default:
		return "ready"
	}
}

// CommandHandler handles one inbound command or hook request. params is a
// read-only token view over the request's "params" member.
type CommandHandler func(cmd *Command, params Params) CommandResult

// NotificationHandler handles one inbound notification, which expects no
// reply.
type NotificationHandler func(params Params)

// commandRegistration pairs a handler with the manifest metadata surfaced
// for it in getmanifest's rpcmethods entry.
type commandRegistration struct {
	Description     string
	LongDescription string
	Handler         CommandHandler
}

// Stats are host-lifetime diagnostic counters a plugin author can log on
// their own schedule. Not surfaced over the node RPC channel — spec.md's
// wire protocol is closed to getmanifest/init/registered methods — but a
// direct analogue of the teacher's daemon.handleStatus counters
// (internal/daemon/daemon.go: totalRequests, connections, startTime).
type Stats struct {
	startTime             time.Time
	requestsDispatched    int
	notificationsHandled  int
	hooksHandled          int
	outReqsSent           int
}

// Uptime is how long the host has been running.
func (s Stats) Uptime() time.Duration { return time.Since(s.startTime) }

// RequestsDispatched is the number of inbound commands routed to a
// handler so far. Hooks are counted separately and are not included.
func (s Stats) RequestsDispatched() int { return s.requestsDispatched }

// NotificationsHandled is the number of inbound notifications routed so
// far.
func (s Stats) NotificationsHandled() int { return s.notificationsHandled }

// OutReqsSent is the number of outbound RPCs sent to the node so far.
func (s Stats) OutReqsSent() int { return s.outReqsSent }

// HostConfig carries the node's init-time configuration, per spec.md §3's
// "Host state" data model. It is populated during init handling and is
// read-only once the host reaches the ready state.
type HostConfig struct {
	LightningDir        string
	Network             string
	RPCFile             string
	AllowDeprecatedAPIs bool
}

// Config configures a Host at construction time. Per spec.md §9 ("Global
// mutables"), every process-wide mutable the teacher's domain would
// otherwise hold at package scope (outbound table, usage map, the rpc
// connection) is instead a field of this single Host value.
type Config struct {
	// Stdin/Stdout are the node's framed JSON-RPC channel. Default to
	// os.Stdin/os.Stdout; overridable so tests can drive the host over an
	// in-memory pipe.
	Stdin  io.Reader
	Stdout io.Writer

	// Restartable is surfaced as getmanifest's "dynamic" flag.
	Restartable bool

	// Verbose enables debug-level logging.
	Verbose bool

	// Options is the typed, ordered list of startup options this plugin
	// accepts, per spec.md §9 ("Variadic option registration").
	Options []OptionDescriptor

	// OnInit, if set, runs once init's configuration and options have been
	// applied, before the init reply is sent.
	OnInit func(h *Host) error

	// Logger overrides the default zap-backed Logger; primarily for tests
	// that want a nullLogger.
	Logger Logger
}

// Host is the single per-process value that owns every piece of state
// spec.md §9 calls out as otherwise-global: the outbound request table,
// the usage map, the timer wheel, the rpc connection, and the
// deprecated-APIs flag.
type Host struct {
	state handshakeState

	commands      map[string]*commandRegistration
	notifications map[string]NotificationHandler
	hooks         map[string]CommandHandler
	options       []OptionDescriptor
	usage         map[string]string
	restartable   bool
	onInit        func(h *Host) error

	config HostConfig

	outReqs *outReqTable
	rpc     *rpcSocket
	timers  *timerWheel

	log Logger

	stdin  io.Reader
	stdout io.Writer

	outboundQueue chan interface{}

	stats Stats

	fatalErr error
}

// New constructs a Host from cfg. Registrations (RegisterCommand,
// RegisterNotification, RegisterHook) must be made on the returned Host
// before calling Run.
func New(cfg Config) (*Host, error) {
	for _, opt := range cfg.Options {
		if err := opt.validate(); err != nil {
			return nil, fmt.Errorf("invalid option descriptor: %w", err)
		}
	}

	stdin := cfg.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	var log Logger
	if cfg.Logger != nil {
		log = cfg.Logger
	} else {
		pl, err := newPluginLogger(cfg.Verbose)
		if err != nil {
			return nil, err
		}
		log = pl
	}

	h := &Host{
		state:         awaitingManifest,
		commands:      make(map[string]*commandRegistration),
		notifications: make(map[string]NotificationHandler),
		hooks:         make(map[string]CommandHandler),
		options:       cfg.Options,
		usage:         make(map[string]string),
		restartable:   cfg.Restartable,
		onInit:        cfg.OnInit,
		outReqs:       newOutReqTable(),
		timers:        newTimerWheel(),
		log:           log,
		stdin:         stdin,
		stdout:        stdout,
		outboundQueue: make(chan interface{}, 64),
		stats:         Stats{startTime: time.Now()},
	}

	if pl, ok := log.(*pluginLogger); ok {
		pl.onNotify = func(level, message string) {
			h.enqueueOutbound(Notification{
				Jsonrpc: "2.0",
				Method:  "log",
				Params:  map[string]string{"level": level, "message": message},
			})
		}
	}

	return h, nil
}

// RegisterCommand registers a plugin command, surfaced in getmanifest's
// rpcmethods and dispatched in the ready state. Must be called before Run.
func (h *Host) RegisterCommand(name, description, longDescription string, handler CommandHandler) error {
	if _, exists := h.commands[name]; exists {
		return fmt.Errorf("command %q already registered", name)
	}
	h.commands[name] = &commandRegistration{
		Description:     description,
		LongDescription: longDescription,
		Handler:         handler,
	}
	return nil
}

// RegisterNotification subscribes to an inbound notification method. Must
// be called before Run.
func (h *Host) RegisterNotification(method string, handler NotificationHandler) error {
	if _, exists := h.notifications[method]; exists {
		return fmt.Errorf("notification %q already registered", method)
	}
	h.notifications[method] = handler
	return nil
}

// RegisterHook subscribes to a node hook. Hooks are dispatched like
// commands (they carry an id and expect a reply) but are looked up in a
// separate namespace and searched before commands, per spec.md §4.4.
func (h *Host) RegisterHook(method string, handler CommandHandler) error {
	if _, exists := h.hooks[method]; exists {
		return fmt.Errorf("hook %q already registered", method)
	}
	h.hooks[method] = handler
	return nil
}

// Config returns the node's init-time configuration. Only meaningful once
// the handshake has completed (ready state).
func (h *Host) Config() HostConfig { return h.config }

// Stats returns a snapshot of the host's lifetime counters.
func (h *Host) Stats() Stats { return h.stats }

// RecentLogs returns the diagnostic ring buffer's entries at or above
// minLevel, newest last. Grounded in the teacher's FileLogger.GetLogs; a
// plugin author can call this from OnInit or a command handler to inspect
// its own recent log history. Returns nil if the host was built with a
// Logger override that isn't the default zap-backed one.
func (h *Host) RecentLogs(minLevel zapcore.Level) []string {
	pl, ok := h.log.(*pluginLogger)
	if !ok {
		return nil
	}
	return pl.recent(minLevel)
}

// flushLogs flushes the default zap-backed logger's buffered output. Called
// once Run's event loop has stopped, mirroring the teacher's practice of
// flushing the log file before exiting (internal/logger.Logger.sync).
func (h *Host) flushLogs() {
	if pl, ok := h.log.(*pluginLogger); ok {
		pl.sync()
	}
}

// enqueueOutbound appends a payload (Response or Notification) to the
// outbound write queue. The event loop's writer goroutine drains this one
// object at a time (spec.md §4.7); a full queue simply backpressures the
// caller's send, per spec.md §7's "no retry policy... full outbound queue
// simply backpressures".
func (h *Host) enqueueOutbound(payload interface{}) {
	select {
	case h.outboundQueue <- payload:
	default:
		// Queue momentarily full: block rather than drop, preserving the
		// "never lose a response" invariant of spec.md §1.
		h.outboundQueue <- payload
	}
}

// checkFinalizerDiscipline enforces the dynamic half of spec.md §8's
// "Pending/Complete law": a handler returning Pending must not have
// finalized cmd, and one returning Complete must have finalized it exactly
// once.
func (h *Host) checkFinalizerDiscipline(cmd *Command, declared CommandResult) {
	switch declared {
	case Complete:
		if !cmd.finalized {
			h.fatal(fmt.Errorf("handler for %q returned Complete without finalizing the command", cmd.method))
		}
	case Pending:
		if cmd.finalized {
			h.fatal(fmt.Errorf("handler for %q returned Pending after finalizing the command", cmd.method))
		}
	}
}

// fatal records err as the reason Run is about to stop and logs it at
// error level, per spec.md §7's fatal-error tier (protocol violations and
// transport errors log and exit 1). Grounded in the teacher's repeated
// `d.log(...); os.Exit(1)` pattern in daemon.go's Run.
func (h *Host) fatal(err error) {
	if h.fatalErr == nil {
		h.fatalErr = err
	}
	h.log.Error("fatal: %v", err)
}
