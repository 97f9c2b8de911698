package transceiver

import "time"

// reconnectState tracks attempts_made and current_backoff_ms (spec §3,
// §4.6). attempts_made is monotonic for the lifetime of a connection
// attempt sequence: a successful handshake does not reset it mid-session
// (spec §9 Open Question — this module preserves that ambiguity as
// documented behavior; see DESIGN.md).
type reconnectState struct {
	attemptsMade     uint
	currentBackoffMs uint
}

func newReconnectState() *reconnectState {
	return &reconnectState{}
}

func (r *reconnectState) reset() {
	r.attemptsMade = 0
	r.currentBackoffMs = 0
}

// decision is what the reconnect controller tells the WebSocket worker
// to do after a failed connection attempt.
type decision struct {
	retry   bool
	backoff time.Duration
}

// next applies the policy from spec §4.6: if reconnect is disabled, or
// max_reconnects is set and already reached, stop permanently; otherwise
// double the backoff (seeded at initial_reconnect_delay_ms, clamped at
// max_backoff_ms) and report it should retry after that delay.
func (r *reconnectState) next(cfg Config) decision {
	if !cfg.ReconnectEnabled {
		return decision{retry: false}
	}
	if cfg.MaxReconnects > 0 && r.attemptsMade >= cfg.MaxReconnects {
		return decision{retry: false}
	}

	if r.currentBackoffMs == 0 {
		r.currentBackoffMs = cfg.InitialReconnectDelayMs
	} else {
		doubled := r.currentBackoffMs * 2
		if doubled > cfg.MaxBackoffMs {
			doubled = cfg.MaxBackoffMs
		}
		if doubled < cfg.InitialReconnectDelayMs {
			doubled = cfg.InitialReconnectDelayMs
		}
		r.currentBackoffMs = doubled
	}
	r.attemptsMade++

	return decision{
		retry:   true,
		backoff: time.Duration(r.currentBackoffMs) * time.Millisecond,
	}
}
