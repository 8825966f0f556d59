package plugin

import (
	"testing"
	"time"
)

func TestPlugTimerFiresAndCompletes(t *testing.T) {
	h := newTestHost(t)

	fired := make(chan struct{}, 1)
	h.PlugTimer(10*time.Millisecond, func(h *Host) {
		fired <- struct{}{}
		h.TimerComplete()
	})

	select {
	case fire := <-h.timers.fireCh:
		if h.timers.InFlight() != 1 {
			t.Fatalf("expected in-flight count 1 once fired, got %d", h.timers.InFlight())
		}
		fire.cb(h)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timer did not fire within 200ms")
	}

	<-fired
	if h.timers.InFlight() != 0 {
		t.Fatalf("expected in-flight count 0 after TimerComplete, got %d", h.timers.InFlight())
	}
}

func TestTimerStopBeforeFireCancelsIt(t *testing.T) {
	h := newTestHost(t)

	timer := h.PlugTimer(50*time.Millisecond, func(h *Host) {
		t.Fatal("canceled timer must not fire")
	})
	timer.Stop()

	select {
	case <-h.timers.fireCh:
		t.Fatal("expected no fire event for a stopped timer")
	case <-time.After(150 * time.Millisecond):
		// Expected: the timer never fired.
	}
}

func TestTimerStopIsIdempotent(t *testing.T) {
	h := newTestHost(t)
	timer := h.PlugTimer(time.Hour, func(h *Host) {})
	timer.Stop()
	timer.Stop() // must not panic
}
