package transceiver

import (
	"sync"
	"time"
)

// clockPollInterval bounds each short wait in sleepUntil (and, times
// five, in waitCapsReady), so the pacer rechecks its running flag and
// pending flushes while it waits on the pipeline clock.
const clockPollInterval = 20 * time.Millisecond

// timingState is the pacer-private guarded state from spec §3:
// base_timestamp, next_timestamp, need_segment. It lives behind its own
// mutex, the "output_lock" in the lock order from spec §5.
type timingState struct {
	mu                sync.Mutex
	baseTimestamp     time.Duration
	nextTimestamp     time.Duration
	needSegment       bool
	firstTimestampSet bool
}

func (t *timingState) reset() {
	t.mu.Lock()
	t.nextTimestamp = 0
	t.firstTimestampSet = false
	t.mu.Unlock()
}

// pacer is the output pacer worker from spec §4.5: a single goroutine
// that emits stream-start/caps/segment, accumulates the initial jitter
// reserve, and paces delivery of queued frames downstream to a monotonic
// cadence.
type pacer struct {
	e      *Element
	timing timingState
	stopCh chan struct{}
	doneCh chan struct{}

	flushMu      sync.Mutex
	flushPending bool

	frameDuration  time.Duration
	nextOutputTime time.Duration
}

func newPacer(e *Element) *pacer {
	return &pacer{
		e:      e,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

func (p *pacer) start() {
	go p.run()
}

func (p *pacer) stopAndJoin() {
	close(p.stopCh)
	<-p.doneCh
}

// requestFlush marks a flush as pending; the next loop iteration carries
// it out in order on the pacer's own goroutine (spec §4.5.1), and wakes
// the pacer immediately if it is blocked in a wait.
func (p *pacer) requestFlush() {
	p.flushMu.Lock()
	p.flushPending = true
	p.flushMu.Unlock()
	p.e.queue.broadcast()
}

func (p *pacer) takeFlushPending() bool {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()
	pending := p.flushPending
	p.flushPending = false
	return pending
}

func (p *pacer) isRunning() bool {
	p.e.stateMu.Lock()
	defer p.e.stateMu.Unlock()
	return p.e.pacerRunning
}

func (p *pacer) isConnected() bool {
	p.e.stateMu.Lock()
	defer p.e.stateMu.Unlock()
	return p.e.connected
}

func (p *pacer) markEOSOnce() bool {
	p.e.stateMu.Lock()
	defer p.e.stateMu.Unlock()
	if p.e.eosSent {
		return false
	}
	p.e.eosSent = true
	return true
}

func (p *pacer) alreadyEOS() bool {
	p.e.stateMu.Lock()
	defer p.e.stateMu.Unlock()
	return p.e.eosSent
}

func (p *pacer) waitCapsReady() bool {
	deadline := time.Now().Add(2 * time.Second)
	p.e.stateMu.Lock()
	defer p.e.stateMu.Unlock()
	for !p.e.capsReady {
		if !p.e.pacerRunning {
			return false
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		waitOnCondWithTimeout(p.e.stateCond, &p.e.stateMu, minDuration(remaining, clockPollInterval*5))
	}
	return true
}

func (p *pacer) currentCaps() AudioParameters {
	p.e.stateMu.Lock()
	defer p.e.stateMu.Unlock()
	return p.e.params
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// run is the pacer's single-threaded state machine (spec §4.5 Phase A-F).
func (p *pacer) run() {
	defer close(p.doneCh)
	log := p.e.log

	// Phase A: open stream.
	p.e.source.PushEvent(Event{Kind: EventStreamStart, StreamID: p.e.activationID})

	// Phase B: acquire clock & base time. New always installs a Clock
	// (SystemClock when none is given), so the base time is read once,
	// directly, without polling.
	clock := p.e.clock
	p.timing.mu.Lock()
	p.timing.baseTimestamp = clock.Now()
	p.timing.nextTimestamp = 0
	p.timing.mu.Unlock()
	p.nextOutputTime = p.timing.baseTimestamp + p.frameDurationOrDefault()

	// Phase C: initial jitter reserve.
	if p.e.cfg.InitialBufferCount > 0 {
		if !p.e.queue.waitAtLeast(int(p.e.cfg.InitialBufferCount), p.stopCh) {
			log.Debug().Msg("pacer: stopped while waiting for jitter reserve")
		}
	}

	// Phase D: emit caps.
	if p.waitCapsReady() {
		p.e.source.PushEvent(Event{Kind: EventCaps, Caps: p.currentCaps()})
		p.frameDuration = time.Duration(p.currentCaps().FrameDurationMs) * time.Millisecond
	} else {
		p.frameDuration = p.frameDurationOrDefault()
	}
	p.nextOutputTime = p.timing.baseTimestamp + p.frameDuration

	// Phase E: emit segment.
	p.e.source.PushEvent(Event{Kind: EventSegment})

	p.steadyState()
}

func (p *pacer) frameDurationOrDefault() time.Duration {
	ms := p.e.cfg.FrameDurationMs
	if ms == 0 {
		ms = DefaultConfig().FrameDurationMs
	}
	return time.Duration(ms) * time.Millisecond
}

// steadyState is Phase F: the main emission loop.
func (p *pacer) steadyState() {
	for {
		if p.alreadyEOS() {
			return
		}
		if !p.isRunning() {
			return
		}

		if p.takeFlushPending() {
			p.doFlush()
			continue
		}

		p.sleepUntil(p.nextOutputTime)

		if !p.isRunning() {
			return
		}
		if p.takeFlushPending() {
			p.doFlush()
			continue
		}

		p.timing.mu.Lock()
		needSegment := p.timing.needSegment
		p.timing.needSegment = false
		p.timing.mu.Unlock()
		if needSegment {
			p.e.source.PushEvent(Event{Kind: EventSegment})
		}

		frame, ok := p.e.queue.pop()
		if ok {
			p.pushFrame(frame)
			p.advance()
			continue
		}

		if !p.isConnected() {
			if p.markEOSOnce() {
				p.e.source.PushEvent(Event{Kind: EventEOS})
				p.e.metrics.incEOSEmitted()
				p.e.log.Info().Msg("pacer: permanent disconnect, emitted eos")
			}
			return
		}

		// No frame available but still connected: keep the monotonic
		// schedule intact across the gap (spec §4.5 Phase F.4).
		p.advance()
	}
}

func (p *pacer) pushFrame(frame AudioFrame) {
	p.timing.mu.Lock()
	frame.PTS = p.timing.baseTimestamp + p.timing.nextTimestamp
	frame.Dur = p.frameDuration
	p.timing.mu.Unlock()

	result := p.e.source.PushBuffer(frame)
	switch result {
	case PushOK:
	case PushFlushing:
		p.e.log.Debug().Msg("pacer: downstream push returned flushing")
		if !p.isRunning() {
			return
		}
	case PushEOS:
		p.e.log.Info().Msg("pacer: downstream push returned eos")
		p.markEOSOnce()
	default:
		p.e.log.Warn().Str("result", result.String()).Msg("pacer: unexpected downstream push result")
	}
}

func (p *pacer) advance() {
	p.timing.mu.Lock()
	p.timing.nextTimestamp += p.frameDuration
	p.timing.mu.Unlock()
	p.nextOutputTime += p.frameDuration
}

// sleepUntil blocks until the clock reaches deadline or the pacer is
// told to stop; early wake is permitted (spec §4.5 Phase F.2).
func (p *pacer) sleepUntil(deadline time.Duration) {
	for {
		now := p.e.clock.Now()
		remaining := deadline - now
		if remaining <= 0 {
			return
		}
		if !p.isRunning() {
			return
		}
		if p.peekFlushPending() {
			return
		}
		wait := remaining
		if wait > clockPollInterval {
			wait = clockPollInterval
		}
		select {
		case <-p.stopCh:
			return
		case <-time.After(wait):
		}
	}
}

func (p *pacer) peekFlushPending() bool {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()
	return p.flushPending
}

// doFlush implements the barge-in / flush protocol from spec §4.5.1:
// drain the receive queue, reset timing, push flush-start then
// flush-stop, and mark need_segment so the next buffer is preceded by a
// fresh segment.
func (p *pacer) doFlush() {
	p.e.queue.flush()

	p.timing.mu.Lock()
	p.timing.nextTimestamp = 0
	p.timing.firstTimestampSet = false
	p.timing.mu.Unlock()
	p.nextOutputTime = p.e.clock.Now() + p.frameDuration

	p.e.source.PushEvent(Event{Kind: EventFlushStart})
	p.e.source.PushEvent(Event{Kind: EventFlushStop})

	p.timing.mu.Lock()
	p.timing.needSegment = true
	p.timing.mu.Unlock()

	p.e.log.Info().Msg("pacer: flush complete, segment will re-emit before next buffer")
}
