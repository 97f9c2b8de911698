package transceiver

import (
	"testing"
	"time"
)

func TestReceiveQueuePushPop(t *testing.T) {
	q := newReceiveQueue(4, nil)

	q.push(newAudioFrame([]byte("a")))
	q.push(newAudioFrame([]byte("b")))

	if got := q.len(); got != 2 {
		t.Fatalf("len() = %d, want 2", got)
	}

	f, ok := q.pop()
	if !ok {
		t.Fatal("pop() = false, want true")
	}
	if string(f.Data) != "a" {
		t.Fatalf("pop() data = %q, want %q", f.Data, "a")
	}
}

func TestReceiveQueuePopEmpty(t *testing.T) {
	q := newReceiveQueue(4, nil)
	if _, ok := q.pop(); ok {
		t.Fatal("pop() on empty queue = true, want false")
	}
}

func TestReceiveQueueDropOldest(t *testing.T) {
	q := newReceiveQueue(2, nil)

	q.push(newAudioFrame([]byte("1")))
	q.push(newAudioFrame([]byte("2")))
	q.push(newAudioFrame([]byte("3")))

	if got := q.len(); got != 2 {
		t.Fatalf("len() = %d, want 2", got)
	}

	f, _ := q.pop()
	if string(f.Data) != "2" {
		t.Fatalf("oldest surviving frame = %q, want %q (frame \"1\" should have been dropped)", f.Data, "2")
	}
}

func TestReceiveQueueFlush(t *testing.T) {
	q := newReceiveQueue(4, nil)
	q.push(newAudioFrame([]byte("a")))
	q.push(newAudioFrame([]byte("b")))

	q.flush()

	if got := q.len(); got != 0 {
		t.Fatalf("len() after flush = %d, want 0", got)
	}
}

func TestReceiveQueueWaitAtLeastSatisfiedImmediately(t *testing.T) {
	q := newReceiveQueue(4, nil)
	q.push(newAudioFrame([]byte("a")))
	q.push(newAudioFrame([]byte("b")))

	stop := make(chan struct{})
	if !q.waitAtLeast(2, stop) {
		t.Fatal("waitAtLeast(2) = false, want true (already satisfied)")
	}
}

func TestReceiveQueueWaitAtLeastStops(t *testing.T) {
	q := newReceiveQueue(4, nil)
	stop := make(chan struct{})

	done := make(chan bool, 1)
	go func() { done <- q.waitAtLeast(10, stop) }()

	close(stop)

	select {
	case result := <-done:
		if result {
			t.Fatal("waitAtLeast(10) = true, want false after stop closed")
		}
	case <-time.After(time.Second):
		t.Fatal("waitAtLeast did not return after stop was closed")
	}
}

func TestReceiveQueueWaitAtLeastWakesOnArrival(t *testing.T) {
	q := newReceiveQueue(4, nil)
	stop := make(chan struct{})

	done := make(chan bool, 1)
	go func() { done <- q.waitAtLeast(1, stop) }()

	time.Sleep(10 * time.Millisecond)
	q.push(newAudioFrame([]byte("a")))

	select {
	case result := <-done:
		if !result {
			t.Fatal("waitAtLeast(1) = false, want true once a frame arrived")
		}
	case <-time.After(time.Second):
		t.Fatal("waitAtLeast did not wake up after push")
	}
}
