package transceiver

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// newPacerTestElement builds an Element in the shape toPaused() leaves it,
// without dialing any real connection — the pacer only touches
// queue/source/clock/cfg/caps state, never the WebSocket worker directly.
func newPacerTestElement(cfg Config, source SourcePort) *Element {
	e := New(cfg, NewSystemClock(), source, nil, zerolog.Nop())
	e.queue = newReceiveQueue(int(cfg.MaxQueueSize), nil)
	e.pacerRunning = true
	e.connected = true
	return e
}

func stopPacerRunning(e *Element) {
	e.stateMu.Lock()
	e.pacerRunning = false
	e.stateMu.Unlock()
}

func TestPacerEmitsStreamStartCapsSegmentInOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URI = "ws://example.invalid/ws"
	cfg.InitialBufferCount = 0
	cfg.FrameDurationMs = 10

	source := &fakeSource{}
	e := newPacerTestElement(cfg, source)
	e.capsReady = true
	e.params = AudioParameters{SampleRate: 16000, Channels: 1, BytesPerSample: 2, FrameDurationMs: 10}

	p := newPacer(e)
	p.start()
	time.Sleep(50 * time.Millisecond)
	stopPacerRunning(e)
	p.stopAndJoin()

	source.mu.Lock()
	defer source.mu.Unlock()
	if len(source.events) < 3 {
		t.Fatalf("events = %d, want at least 3 (stream-start, caps, segment)", len(source.events))
	}
	wantKinds := []EventKind{EventStreamStart, EventCaps, EventSegment}
	for i, want := range wantKinds {
		if source.events[i].Kind != want {
			t.Fatalf("events[%d].Kind = %v, want %v", i, source.events[i].Kind, want)
		}
	}
}

func TestPacerPacesQueuedFramesInOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URI = "ws://example.invalid/ws"
	cfg.InitialBufferCount = 0
	cfg.FrameDurationMs = 10

	source := &fakeSource{}
	e := newPacerTestElement(cfg, source)
	e.capsReady = true
	e.params = AudioParameters{SampleRate: 16000, Channels: 1, BytesPerSample: 2, FrameDurationMs: 10}

	e.queue.push(newAudioFrame([]byte("1")))
	e.queue.push(newAudioFrame([]byte("2")))
	e.queue.push(newAudioFrame([]byte("3")))

	p := newPacer(e)
	p.start()
	time.Sleep(200 * time.Millisecond)
	stopPacerRunning(e)
	p.stopAndJoin()

	source.mu.Lock()
	defer source.mu.Unlock()
	if len(source.buffers) != 3 {
		t.Fatalf("buffers pushed = %d, want 3", len(source.buffers))
	}
	for i, want := range []string{"1", "2", "3"} {
		if string(source.buffers[i].Data) != want {
			t.Fatalf("buffers[%d].Data = %q, want %q", i, source.buffers[i].Data, want)
		}
	}
	for i := 1; i < len(source.buffers); i++ {
		gap := source.buffers[i].PTS - source.buffers[i-1].PTS
		if gap <= 0 {
			t.Fatalf("buffers[%d].PTS did not advance past buffers[%d].PTS (%v <= %v)", i, i-1, source.buffers[i].PTS, source.buffers[i-1].PTS)
		}
	}
}

func TestPacerFlushEmitsFlushStartStopAndResegments(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URI = "ws://example.invalid/ws"
	cfg.InitialBufferCount = 0
	cfg.FrameDurationMs = 10

	source := &fakeSource{}
	e := newPacerTestElement(cfg, source)
	e.capsReady = true
	e.params = AudioParameters{SampleRate: 16000, Channels: 1, BytesPerSample: 2, FrameDurationMs: 10}

	e.queue.push(newAudioFrame([]byte("pre-flush")))

	p := newPacer(e)
	p.start()
	time.Sleep(30 * time.Millisecond)

	p.requestFlush()
	e.queue.push(newAudioFrame([]byte("post-flush")))
	time.Sleep(100 * time.Millisecond)

	stopPacerRunning(e)
	p.stopAndJoin()

	source.mu.Lock()
	defer source.mu.Unlock()

	sawFlushStart, sawFlushStop := false, false
	flushStartIdx := -1
	for i, ev := range source.events {
		if ev.Kind == EventFlushStart {
			sawFlushStart = true
			flushStartIdx = i
		}
		if ev.Kind == EventFlushStop {
			sawFlushStop = true
		}
	}
	if !sawFlushStart || !sawFlushStop {
		t.Fatalf("events = %v, want flush-start and flush-stop present", source.events)
	}

	sawSegmentAfterFlush := false
	for i := flushStartIdx; i < len(source.events); i++ {
		if source.events[i].Kind == EventSegment && i > flushStartIdx {
			sawSegmentAfterFlush = true
		}
	}
	if !sawSegmentAfterFlush {
		t.Fatal("no segment event re-emitted after flush, want one before the next buffer")
	}
}

func TestPacerEmitsEOSOnceDisconnectedAndDrained(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URI = "ws://example.invalid/ws"
	cfg.InitialBufferCount = 0
	cfg.FrameDurationMs = 10

	source := &fakeSource{}
	e := newPacerTestElement(cfg, source)
	e.capsReady = true
	e.params = AudioParameters{SampleRate: 16000, Channels: 1, BytesPerSample: 2, FrameDurationMs: 10}
	e.connected = false

	p := newPacer(e)
	p.start()
	time.Sleep(100 * time.Millisecond)
	p.stopAndJoin()

	source.mu.Lock()
	defer source.mu.Unlock()
	eosCount := 0
	for _, ev := range source.events {
		if ev.Kind == EventEOS {
			eosCount++
		}
	}
	if eosCount != 1 {
		t.Fatalf("eos events = %d after permanent disconnect with an empty queue, want exactly 1", eosCount)
	}
}
