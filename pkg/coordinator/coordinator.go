package coordinator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreweacott/actron-neo-bridge/pkg/logger"
	"github.com/andreweacott/actron-neo-bridge/pkg/neo"
	"github.com/google/uuid"
)

// State is the coordinator's position in the refresh cycle
type State int

const (
	// StateIdle means no refresh has run yet
	StateIdle State = iota
	// StateFetching means a refresh is in flight
	StateFetching
	// StatePublished means the last refresh succeeded
	StatePublished
	// StateDegraded means the last refresh failed transiently; the previous
	// snapshot is still served, flagged stale, while retries back off
	StateDegraded
	// StateFailed means a persistent failure needs external remediation;
	// scheduling is suspended until a manual refresh is requested
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StatePublished:
		return "published"
	case StateDegraded:
		return "degraded"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Listener receives every published snapshot. Listeners are invoked
// synchronously in registration order; a panicking listener is logged and
// does not prevent the others from running.
type Listener func(*Snapshot)

// Observer receives refresh outcomes, success or failure. Used for health
// reporting surfaces (metrics, availability topics).
type Observer interface {
	RefreshSucceeded(duration time.Duration, snap *Snapshot)
	RefreshFailed(duration time.Duration, err error)
}

// Options configures a Coordinator
type Options struct {
	// Serial selects the AC system to bridge. Optional when the account has
	// exactly one system.
	Serial string

	// PollInterval is the gap between scheduled refreshes. Default 30s.
	PollInterval time.Duration

	// RequestTimeout bounds each refresh. Default 30s.
	RequestTimeout time.Duration

	// MaxBackoff caps the retry delay after transient failures. Default 5m.
	MaxBackoff time.Duration

	// FailureThreshold is how many consecutive transient API failures
	// escalate to a persistent failure. Default 5.
	FailureThreshold int

	Logger *logger.Logger
}

func (o *Options) applyDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = 30 * time.Second
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 5 * time.Minute
	}
	if o.MaxBackoff < o.PollInterval {
		o.MaxBackoff = o.PollInterval
	}
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = 5
	}
	if o.Logger == nil {
		o.Logger = logger.Noop()
	}
}

type listenerEntry struct {
	id int
	fn Listener
}

// Coordinator owns the refresh loop for one AC system. It is the single
// writer of the current snapshot; consumers read it via Snapshot() or
// subscribe with AddListener.
type Coordinator struct {
	api  API
	opts Options
	log  *logger.Logger

	system neo.System

	// inFlight is the overlap guard: at most one refresh runs at a time,
	// and an overlapping trigger is coalesced, not queued.
	inFlight atomic.Bool

	// refreshCh carries manual refresh requests; capacity 1 coalesces them
	refreshCh chan struct{}

	mu        sync.RWMutex
	snapshot  *Snapshot
	state     State
	failures  int
	lastErr   error
	delay     time.Duration
	listeners []listenerEntry
	nextID    int
	observers []Observer
}

// New creates a Coordinator. Call Start before reading snapshots.
func New(api API, opts Options) *Coordinator {
	opts.applyDefaults()
	return &Coordinator{
		api:       api,
		opts:      opts,
		log:       opts.Logger,
		refreshCh: make(chan struct{}, 1),
		state:     StateIdle,
		delay:     opts.PollInterval,
	}
}

// AddObserver registers a refresh outcome observer. Not safe to call after
// Start.
func (c *Coordinator) AddObserver(obs Observer) {
	c.observers = append(c.observers, obs)
}

// Start resolves the target system, runs the first refresh synchronously,
// and launches the periodic loop. It does not return success until one
// fetch cycle has completed, so consumers start with valid data. A failure
// of the first cycle is returned as-is; persistent kinds (auth, config)
// require remediation before calling Start again.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.resolveSystem(ctx); err != nil {
		return err
	}
	if err := c.refresh(ctx); err != nil {
		return fmt.Errorf("initial refresh: %w", err)
	}

	go c.run(ctx)
	return nil
}

// resolveSystem picks the AC system this coordinator bridges
func (c *Coordinator) resolveSystem(ctx context.Context) error {
	rctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	systems, err := c.api.ListSystems(rctx)
	if err != nil {
		return err
	}

	if c.opts.Serial != "" {
		for _, sys := range systems {
			if sys.Serial == c.opts.Serial {
				c.system = sys
				return nil
			}
		}
		return &neo.Error{Kind: neo.KindConfig, Op: "resolve system", Msg: fmt.Sprintf("no system with serial %q on this account", c.opts.Serial)}
	}

	switch len(systems) {
	case 0:
		return &neo.Error{Kind: neo.KindConfig, Op: "resolve system", Msg: "no AC systems on this account"}
	case 1:
		c.system = systems[0]
		return nil
	default:
		return &neo.Error{Kind: neo.KindConfig, Op: "resolve system", Msg: "multiple AC systems on this account, set a serial"}
	}
}

// run is the scheduling loop. While failed, scheduling is suspended and
// only a manual refresh (the remediation signal) resumes it.
func (c *Coordinator) run(ctx context.Context) {
	for {
		if c.State() == StateFailed {
			select {
			case <-ctx.Done():
				return
			case <-c.refreshCh:
			}
		} else {
			timer := time.NewTimer(c.nextDelay())
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			case <-c.refreshCh:
				timer.Stop()
			}
		}

		if err := c.refresh(ctx); err != nil {
			c.log.WithSerial(c.system.Serial).Warn("Refresh failed",
				"error", err.Error(),
				"kind", neo.KindOf(err).String(),
				"consecutive_failures", c.ConsecutiveFailures())
		}
	}
}

// refresh runs one fetch-normalize-publish cycle. Returns nil when the
// cycle was coalesced into one already in flight.
func (c *Coordinator) refresh(ctx context.Context) error {
	if !c.inFlight.CompareAndSwap(false, true) {
		c.log.Debug("Refresh already in flight, coalescing")
		return nil
	}
	defer c.inFlight.Store(false)

	c.setState(StateFetching)
	start := time.Now()

	rctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	status, err := c.api.FetchStatus(rctx, c.system.Serial)
	var snap *Snapshot
	if err == nil {
		snap, err = Normalize(c.system, status, time.Now())
	}
	duration := time.Since(start)

	if err != nil {
		c.recordFailure(err)
		for _, obs := range c.observers {
			obs.RefreshFailed(duration, err)
		}
		return err
	}

	c.recordSuccess(snap)
	c.notify(snap)
	for _, obs := range c.observers {
		obs.RefreshSucceeded(duration, snap)
	}
	return nil
}

// recordSuccess publishes the snapshot and resets failure tracking
func (c *Coordinator) recordSuccess(snap *Snapshot) {
	c.mu.Lock()
	c.snapshot = snap
	c.state = StatePublished
	c.failures = 0
	c.lastErr = nil
	c.delay = c.opts.PollInterval
	c.mu.Unlock()
}

// recordFailure classifies the error, keeps the last-known-good snapshot
// (flagged stale) and computes the next delay.
func (c *Coordinator) recordFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastErr = err
	c.snapshot = c.snapshot.markStale()

	if !neo.IsTransient(err) {
		c.state = StateFailed
		return
	}

	c.failures++
	if c.failures >= c.opts.FailureThreshold && neo.KindOf(err) == neo.KindAPI {
		c.log.Error("Transient failures exceeded threshold, treating as persistent",
			"failures", c.failures, "threshold", c.opts.FailureThreshold)
		c.state = StateFailed
		return
	}

	c.state = StateDegraded
	c.delay = c.backoffDelayLocked(err)
}

// backoffDelayLocked doubles the delay per consecutive failure, floors it
// at any vendor Retry-After hint and at the previous delay, and caps it at
// MaxBackoff. The result is non-decreasing across consecutive failures: a
// hinted wait is never undercut by a later hintless failure.
func (c *Coordinator) backoffDelayLocked(err error) time.Duration {
	delay := c.opts.PollInterval
	for i := 1; i < c.failures; i++ {
		delay *= 2
		if delay >= c.opts.MaxBackoff {
			delay = c.opts.MaxBackoff
			break
		}
	}
	if hint := neo.RetryAfterHint(err); hint > delay {
		delay = hint
	}
	if c.delay > delay {
		delay = c.delay
	}
	if delay > c.opts.MaxBackoff {
		delay = c.opts.MaxBackoff
	}
	return delay
}

// notify fans the snapshot out to listeners in registration order. All
// listeners observe the same snapshot reference before the cycle completes.
func (c *Coordinator) notify(snap *Snapshot) {
	c.mu.RLock()
	entries := make([]listenerEntry, len(c.listeners))
	copy(entries, c.listeners)
	c.mu.RUnlock()

	for _, entry := range entries {
		c.invokeListener(entry, snap)
	}
}

func (c *Coordinator) invokeListener(entry listenerEntry, snap *Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Snapshot listener panicked", "listener_id", entry.id, "panic", fmt.Sprintf("%v", r))
		}
	}()
	entry.fn(snap)
}

// Snapshot returns the current snapshot. Between refreshes every call
// returns the identical reference; nil before the first successful cycle.
func (c *Coordinator) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// AddListener registers fn for snapshot notifications and returns a
// function that removes it.
func (c *Coordinator) AddListener(fn Listener) (remove func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners = append(c.listeners, listenerEntry{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, entry := range c.listeners {
			if entry.id == id {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// SendCommand issues a write and requests a follow-up refresh so the
// snapshot reconciles with the device. The snapshot is never updated from
// the write itself. Command errors surface to the caller immediately and do
// not disturb the refresh cycle.
func (c *Coordinator) SendCommand(ctx context.Context, cmd neo.Command) error {
	commandID := uuid.NewString()
	log := c.log.WithCommandID(commandID)

	rctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	if err := c.api.SendCommand(rctx, c.system.Serial, cmd); err != nil {
		log.Warn("Command failed", "serial", c.system.Serial, "error", err.Error(), "kind", neo.KindOf(err).String())
		return err
	}

	log.Debug("Command accepted, requesting refresh", "serial", c.system.Serial)
	c.RequestRefresh()
	return nil
}

// RequestRefresh triggers an out-of-schedule refresh. Requests arriving
// while one is pending or in flight are coalesced.
func (c *Coordinator) RequestRefresh() {
	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
}

// State returns the coordinator's current state
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Err returns the error from the last failed refresh, nil after a success
func (c *Coordinator) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// ConsecutiveFailures returns the transient failure streak length
func (c *Coordinator) ConsecutiveFailures() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.failures
}

// Healthy reports whether the coordinator is serving non-failed data
func (c *Coordinator) Healthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == StatePublished || c.state == StateDegraded
}

// System returns the resolved AC system identity
func (c *Coordinator) System() neo.System {
	return c.system
}

// nextDelay returns the wait before the next scheduled refresh
func (c *Coordinator) nextDelay() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.delay <= 0 {
		return c.opts.PollInterval
	}
	return c.delay
}

// setState transitions the cycle state
func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
