package transceiver

import "time"

// HandleCaps implements the caps adapter from spec §4.2: it extracts
// rate and channels from a negotiated caps event, fails with CapsError
// if either is absent, derives bytes-per-sample from the format tag,
// recomputes frame_size_bytes, mirrors the caps onto the source caps,
// and sets caps_ready.
func (e *Element) HandleCaps(format Format, sampleRate, channels uint) (AudioParameters, error) {
	params, known, err := resolveCaps(format, sampleRate, channels, e.cfg.FrameDurationMs)
	if err != nil {
		return AudioParameters{}, err
	}
	if !known {
		e.log.Warn().Str("format", string(format)).Msg("caps: unrecognized format, assuming 1 byte per sample")
	}

	e.stateMu.Lock()
	e.params = params
	e.capsReady = true
	e.stateMu.Unlock()
	e.stateCond.Broadcast()

	e.log.Info().
		Str("format", string(params.Format)).
		Uint("sample_rate", params.SampleRate).
		Uint("channels", params.Channels).
		Int("frame_size_bytes", params.FrameSizeBytes()).
		Msg("caps: negotiated")
	return params, nil
}

// Chain is the sink-chain contract from spec §4.3.1: it accepts one
// audio unit, acquires a reference to the connection handle under the
// state lock, releases the lock before any I/O, sends a binary frame,
// and releases the handle. Dropping when disconnected is non-fatal and
// returns success to upstream — there is no outbound backpressure.
func (e *Element) Chain(data []byte) error {
	e.stateMu.Lock()
	handle := e.handle
	connected := e.connected
	e.stateMu.Unlock()

	if !connected || handle == nil {
		e.log.Debug().Int("bytes", len(data)).Msg("chain: dropping outbound buffer, not connected")
		return nil
	}

	handle.acquire()
	defer handle.release()

	if err := handle.conn.WriteMessage(binaryMessageType, data); err != nil {
		e.log.Warn().Err(err).Msg("chain: outbound send failed, dropping (non-fatal)")
		return nil
	}
	e.metrics.incFramesSent()
	return nil
}

// HandleSinkEOS absorbs an end-of-stream event arriving on the sink.
// Per spec §4.3.1 and P6, sink-EOS never causes source-EOS on its own;
// the transport's own close is the sole trigger for downstream EOS.
func (e *Element) HandleSinkEOS() {
	e.log.Debug().Msg("chain: sink eos absorbed, transport close remains the only source-eos trigger")
}

// LatencyMin and LatencyMax answer the live-source latency query from
// spec §4.1: min = frame_duration, max = frame_duration * max_queue_size.
func (e *Element) LatencyMin() time.Duration {
	return time.Duration(e.cfg.FrameDurationMs) * time.Millisecond
}

func (e *Element) LatencyMax() time.Duration {
	return e.LatencyMin() * time.Duration(e.cfg.MaxQueueSize)
}

// IsLive reports that the source port is a live source (spec §4.1): its
// output cannot be prerolled.
func (e *Element) IsLive() bool { return true }
