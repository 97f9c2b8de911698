package transceiver

import "testing"

func baseReconnectConfig() Config {
	cfg := DefaultConfig()
	cfg.URI = "ws://example.invalid/ws"
	cfg.InitialReconnectDelayMs = 100
	cfg.MaxBackoffMs = 800
	cfg.MaxReconnects = 3
	return cfg
}

func TestReconnectDisabledNeverRetries(t *testing.T) {
	cfg := baseReconnectConfig()
	cfg.ReconnectEnabled = false

	r := newReconnectState()
	d := r.next(cfg)
	if d.retry {
		t.Fatal("next() retry = true with ReconnectEnabled = false")
	}
}

func TestReconnectBackoffDoublesAndClamps(t *testing.T) {
	cfg := baseReconnectConfig()
	cfg.MaxReconnects = 0 // unlimited, isolate the backoff math

	r := newReconnectState()

	want := []uint{100, 200, 400, 800, 800, 800}
	for i, w := range want {
		d := r.next(cfg)
		if !d.retry {
			t.Fatalf("attempt %d: retry = false, want true", i)
		}
		if got := uint(d.backoff.Milliseconds()); got != w {
			t.Fatalf("attempt %d: backoff = %dms, want %dms", i, got, w)
		}
	}
}

func TestReconnectMaxReconnectsStopsPermanently(t *testing.T) {
	cfg := baseReconnectConfig()

	r := newReconnectState()
	for i := uint(0); i < cfg.MaxReconnects; i++ {
		if d := r.next(cfg); !d.retry {
			t.Fatalf("attempt %d: retry = false before reaching MaxReconnects", i)
		}
	}

	d := r.next(cfg)
	if d.retry {
		t.Fatal("retry = true after attemptsMade reached MaxReconnects")
	}
}

func TestReconnectAttemptsMadeMonotonicUntilReset(t *testing.T) {
	cfg := baseReconnectConfig()
	cfg.MaxReconnects = 0

	r := newReconnectState()
	r.next(cfg)
	r.next(cfg)
	if r.attemptsMade != 2 {
		t.Fatalf("attemptsMade = %d, want 2", r.attemptsMade)
	}

	r.reset()
	if r.attemptsMade != 0 || r.currentBackoffMs != 0 {
		t.Fatalf("reset() left attemptsMade=%d currentBackoffMs=%d, want 0,0", r.attemptsMade, r.currentBackoffMs)
	}

	d := r.next(cfg)
	if got := uint(d.backoff.Milliseconds()); got != cfg.InitialReconnectDelayMs {
		t.Fatalf("backoff after reset = %dms, want initial %dms", got, cfg.InitialReconnectDelayMs)
	}
}
