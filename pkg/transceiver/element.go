package transceiver

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is one of the element's three lifecycle states (spec §4.1):
// Inactive, Prepared, Paused ("Paused" is this element's active
// streaming state, per spec's own vocabulary — the pacer only runs
// there).
type State int

const (
	StateInactive State = iota
	StatePrepared
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StatePrepared:
		return "prepared"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// connectWaitTimeout is how long Prepare waits for the WebSocket worker
// to reach Connected before giving up and continuing anyway (spec §4.1:
// "timeout is not fatal").
const connectWaitTimeout = 5 * time.Second

// Element is the transceiver element shell (spec §4.1). It owns the
// WebSocket worker, the receive queue, and the output pacer, and exposes
// a sink (Chain, HandleCaps) and a lifecycle (SetState) to the host
// pipeline.
type Element struct {
	log zerolog.Logger

	// state_lock (spec §5 lock order: state_lock -> queue_lock ->
	// output_lock). Guards state, connPhase, handle, connected,
	// capsReady, params, eosSent, wsRunning, pacerRunning, reconnect.
	stateMu   sync.Mutex
	stateCond *sync.Cond

	state     State
	phase     connPhase
	handle    *connHandle
	connected bool

	capsReady bool
	params    AudioParameters

	eosSent      bool
	wsRunning    bool
	pacerRunning bool

	reconnect *reconnectState

	cfg     Config
	clock   Clock
	source  SourcePort
	metrics *Metrics

	queue *receiveQueue
	pacer *pacer

	wsStopCh     chan struct{}
	wsDoneCh     chan struct{}
	activationID string
}

// New constructs an Element in the Inactive state. clock and source are
// the host pipeline's collaborators (spec §1 "external collaborators");
// metrics may be nil to disable Prometheus instrumentation.
func New(cfg Config, clock Clock, source SourcePort, metrics *Metrics, log zerolog.Logger) *Element {
	if clock == nil {
		clock = NewSystemClock()
	}
	e := &Element{
		log:       log,
		cfg:       cfg,
		clock:     clock,
		source:    source,
		metrics:   metrics,
		reconnect: newReconnectState(),
	}
	e.stateCond = sync.NewCond(&e.stateMu)
	return e
}

// State reports the element's current lifecycle state.
func (e *Element) State() State {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

// StreamID reports the current activation's id, minted fresh on every
// Prepared -> Paused transition (spec §4.1's per-activation stream id). It
// is empty before the element has ever reached Paused.
func (e *Element) StreamID() string {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.activationID
}

// SetState drives the element toward target, one transition at a time,
// in the order spec §4.1 enumerates them. It returns as soon as target
// is reached or a transition fails.
func (e *Element) SetState(target State) error {
	for {
		current := e.State()
		if current == target {
			return nil
		}
		var err error
		switch {
		case current == StateInactive && target != StateInactive:
			err = e.toPrepared()
		case current == StatePrepared && target == StatePaused:
			err = e.toPaused()
		case current == StatePaused:
			err = e.toPreparedFromPaused()
		case current == StatePrepared && target == StateInactive:
			err = e.toInactive()
		}
		if err != nil {
			return err
		}
	}
}

// toPrepared implements Inactive -> Prepared (spec §4.1): validates
// config, resets reconnect counters, starts the WebSocket worker, and
// waits up to connectWaitTimeout for a connection without treating a
// timeout as fatal.
func (e *Element) toPrepared() error {
	if err := ValidateConfig(e.cfg); err != nil {
		return err
	}

	e.stateMu.Lock()
	e.reconnect.reset()
	e.queue = newReceiveQueue(int(e.cfg.MaxQueueSize), e.metrics)
	e.wsStopCh = make(chan struct{})
	e.wsDoneCh = make(chan struct{})
	e.wsRunning = true
	e.stateMu.Unlock()

	go e.runWSWorker()

	connected := e.waitConnectedOrTimeout(connectWaitTimeout)
	if !connected {
		e.log.Info().Dur("timeout", connectWaitTimeout).Msg("prepare: no connection yet, continuing (reconnect loop proceeds in background)")
	}

	e.stateMu.Lock()
	e.state = StatePrepared
	e.stateMu.Unlock()
	e.log.Info().Msg("element: inactive -> prepared")
	return nil
}

func (e *Element) waitConnectedOrTimeout(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	for !e.connected {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		waitOnCondWithTimeout(e.stateCond, &e.stateMu, remaining)
	}
	return true
}

// toPaused implements Prepared -> Paused (spec §4.1): clears eos_sent
// and caps_ready, and starts the output pacer.
func (e *Element) toPaused() error {
	e.stateMu.Lock()
	e.eosSent = false
	e.capsReady = false
	e.activationID = uuid.NewString()
	e.pacerRunning = true
	e.stateMu.Unlock()

	e.pacer = newPacer(e)
	e.pacer.start()

	e.stateMu.Lock()
	e.state = StatePaused
	e.stateMu.Unlock()
	e.log.Info().Str("activation_id", e.activationID).Msg("element: prepared -> paused")
	return nil
}

// toPreparedFromPaused implements Paused -> Prepared (spec §4.1): signals
// the pacer to stop, broadcasts all waiter conditions, joins it, and
// resets timing state.
func (e *Element) toPreparedFromPaused() error {
	e.stateMu.Lock()
	e.pacerRunning = false
	e.stateMu.Unlock()
	e.stateCond.Broadcast()
	e.queue.broadcast()

	if e.pacer != nil {
		e.pacer.stopAndJoin()
		e.pacer = nil
	}

	e.stateMu.Lock()
	e.state = StatePrepared
	e.stateMu.Unlock()
	e.log.Info().Msg("element: paused -> prepared")
	return nil
}

// toInactive implements Prepared -> Inactive (spec §4.1): signals the
// WebSocket worker to stop, joins it, drains the receive queue, and
// clears connection flags.
func (e *Element) toInactive() error {
	e.stateMu.Lock()
	e.wsRunning = false
	close(e.wsStopCh)
	// A blocked ReadMessage on the worker goroutine only returns once
	// the socket itself is closed; the stop channel alone only aborts
	// waits between connections (spec §5: no asynchronous cancellation,
	// so we close the resource the worker is blocked on rather than
	// interrupting it).
	handle := e.handle
	e.stateMu.Unlock()
	if handle != nil {
		_ = handle.conn.Close()
	}
	e.stateCond.Broadcast()

	<-e.wsDoneCh

	if e.queue != nil {
		e.queue.flush()
	}

	e.stateMu.Lock()
	e.connected = false
	e.phase = phaseDisconnected
	e.handle = nil
	e.state = StateInactive
	e.stateMu.Unlock()
	e.log.Info().Msg("element: prepared -> inactive")
	return nil
}

// waitOnCondWithTimeout waits on cond for at most d, releasing and
// re-acquiring the associated lock the same way sync.Cond.Wait does.
// sync.Cond has no native deadline, so a helper goroutine broadcasts
// once the timer fires (grounded on the teacher's own polling discipline
// in speakers_client.go's playerMonitorRoutine, which re-checks state on
// a fixed interval rather than blocking indefinitely).
func waitOnCondWithTimeout(cond *sync.Cond, mu *sync.Mutex, d time.Duration) {
	timer := time.AfterFunc(d, func() {
		mu.Lock()
		cond.Broadcast()
		mu.Unlock()
	})
	defer timer.Stop()
	cond.Wait()
}
