// Package uvbridge is the handle/request lifetime and callback dispatch
// bridge between a single-threaded cooperative event loop and a scripting
// host: a loop driver, typed handle and request registries, stream/
// datagram/pipe/tty/process/fs primitives, a thread pool, and the async
// cross-thread signaling handle.
package uvbridge

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/behrlich/uvbridge/internal/envcfg"
	"github.com/behrlich/uvbridge/internal/logging"
	"github.com/behrlich/uvbridge/internal/reactor"
	"github.com/behrlich/uvbridge/internal/registry"
	"github.com/behrlich/uvbridge/internal/workvm"
)

// Mode mirrors spec.md §4.1's run() modes.
type Mode = reactor.Mode

const (
	RunDefault = reactor.ModeDefault
	RunOnce    = reactor.ModeOnce
	RunNoWait  = reactor.ModeNoWait
)

// UncaughtHandler receives an error raised from a loop callback, wrapped
// as ClassUncaught (spec.md §7). The default handler logs the error through
// the Context's logger and returns, so the loop keeps running; install a
// handler via WithUncaughtHandler to route elsewhere.
type UncaughtHandler func(err *Error)

// ContextOption configures a Context at construction.
type ContextOption func(*Context)

// WithUncaughtHandler overrides how panics and errors from loop callbacks
// are surfaced (spec.md §7's ClassUncaught / Main-VM pcall variant).
func WithUncaughtHandler(h UncaughtHandler) ContextOption {
	return func(c *Context) { c.onUncaught = h }
}

// WithLogger overrides the Context's logger.
func WithLogger(l *logging.Logger) ContextOption {
	return func(c *Context) { c.log = l }
}

// WithThreadPoolSize overrides the thread pool size otherwise taken from
// UV_THREADPOOL_SIZE (spec.md §4.10, §6).
func WithThreadPoolSize(n int) ContextOption {
	return func(c *Context) { c.poolSizeOverride = n }
}

// Context is one per script VM (spec.md §3). It owns the loop, the
// request registry, the handle walk table, metrics, and the thread pool.
type Context struct {
	loop     *reactor.Loop
	requests *registry.Requests
	handles  *registry.Arena[*Handle]

	log     *logging.Logger
	metrics *Metrics

	pool *workvm.Pool

	onUncaught UncaughtHandler

	mu              sync.Mutex
	blockedSignal   string
	metricsIdleTime bool

	poolSizeOverride int

	spareFD *spareDescriptor
}

// NewContext constructs a ready-to-run Context (spec.md §3).
func NewContext(opts ...ContextOption) *Context {
	c := &Context{
		loop:     reactor.New(),
		requests: registry.NewRequests(),
		handles:  registry.NewArena[*Handle](),
		log:      logging.Default(),
		metrics:  NewMetrics(),
	}
	for _, opt := range opts {
		opt(c)
	}
	size := c.poolSizeOverride
	if size == 0 {
		size = envcfg.ThreadPoolSize()
	}
	c.pool = workvm.NewPool(size)
	if envcfg.AcceptEMFileTrick() {
		c.spareFD = newSpareDescriptor()
	}
	if c.onUncaught == nil {
		c.onUncaught = func(err *Error) {
			c.log.Errorf("uncaught error in loop callback: %v", err)
		}
	}
	return c
}

// Run drives the loop (spec.md §4.1's run()). Re-entrant calls from within
// a callback already running on this Context are a programming error in
// the embedding host and are not guarded against here, matching the
// source's "forbidden" (not "checked") re-entrancy rule.
func (c *Context) Run(mode Mode) bool {
	return c.loop.Run(mode)
}

// LoopAlive reports spec.md §4.1's loop_alive().
func (c *Context) LoopAlive() bool { return c.loop.Alive() }

// Stop requests the current or next Run to return (spec.md §4.1's stop()).
func (c *Context) Stop() { c.loop.Stop() }

// Now returns the loop's cached time (spec.md §4.1's now()).
func (c *Context) Now() time.Time { return c.loop.Now() }

// UpdateTime refreshes the loop's cached time (spec.md §4.1's
// update_time()).
func (c *Context) UpdateTime() { c.loop.UpdateTime() }

// Mode reports the run mode in effect while Run is active.
func (c *Context) Mode() (Mode, bool) { return c.loop.Mode() }

// Metrics returns a snapshot of this Context's operational counters.
func (c *Context) Metrics() MetricsSnapshot { return c.metrics.Snapshot() }

// Walk invokes fn on every live handle owned by this Context (spec.md
// §4.1's walk()). Handles that are already closed when the walk reaches
// them are skipped by the isClosed check.
func (c *Context) Walk(fn func(h *Handle)) {
	c.handles.Each(func(_ string, h *Handle) {
		if !h.isClosed() {
			fn(h)
		}
	})
}

// LoopClose releases the loop's resources. It is the caller's
// responsibility to ensure no handles remain active; LoopClose does not
// force-close them (spec.md makes forced close a GC-triggered behavior on
// the script side, which this bridge does not perform on the host's
// behalf).
func (c *Context) LoopClose() error {
	var result *multierror.Error
	if n := c.handles.Len(); n > 0 {
		result = multierror.Append(result, NewStateError("loop_close", fmt.Sprintf("%d handles still open", n)))
	}
	if n := c.requests.Count(); n > 0 {
		result = multierror.Append(result, NewStateError("loop_close", fmt.Sprintf("%d requests still pending", n)))
	}
	if result != nil {
		return result.ErrorOrNil()
	}
	if c.spareFD != nil {
		c.spareFD.Close()
	}
	return nil
}

// ConfigureOption is one of spec.md §4.1's configure() keys.
type ConfigureOption string

const (
	ConfigureBlockSignal    ConfigureOption = "block_signal"
	ConfigureMetricsIdle    ConfigureOption = "metrics_idle_time"
)

// Configure applies one of spec.md §4.1's configure() options.
func (c *Context) Configure(option ConfigureOption, value any) error {
	switch option {
	case ConfigureBlockSignal:
		name, ok := value.(string)
		if !ok {
			return NewArgError(2, "string", "block_signal requires a signal name")
		}
		normalized, err := ParseSignalName(name)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.blockedSignal = normalized
		c.mu.Unlock()
		return nil
	case ConfigureMetricsIdle:
		on, ok := value.(bool)
		if !ok {
			return NewArgError(2, "bool", "metrics_idle_time requires a boolean")
		}
		c.mu.Lock()
		c.metricsIdleTime = on
		c.mu.Unlock()
		return nil
	default:
		return NewArgError(1, "configure option", "unknown option "+string(option))
	}
}

// dispatch runs cb through the Main-VM pcall policy: panics are recovered
// and routed to onUncaught rather than crashing the loop goroutine
// (spec.md §4.1's protected-call dispatch, §7's ClassUncaught).
func (c *Context) dispatch(cb func()) {
	defer func() {
		if r := recover(); r != nil {
			c.metrics.RecordError(ClassUncaught)
			c.onUncaught(NewUncaughtError(fmt.Errorf("%v", r)))
		}
	}()
	cb()
}

// registerHandle pins h in the handle arena so Walk and the registry
// invariants in spec.md §8 hold.
func (c *Context) registerHandle(h *Handle) {
	c.handles.Pin(h.id, h)
}

func (c *Context) unregisterHandle(h *Handle) {
	c.handles.Unpin(h.id)
}
