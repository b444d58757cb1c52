package debounce_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/designtrail/internal/debounce"
	"github.com/starford/designtrail/internal/testutil"
)

func TestTrigger_CoalescesBurst(t *testing.T) {
	clock := &testutil.FakeClock{}
	var fired []time.Duration
	d := debounce.New(time.Second, func() { fired = append(fired, clock.Now()) }, clock.AfterFunc)

	d.Trigger() // t=0
	clock.Advance(200 * time.Millisecond)
	d.Trigger() // t=200
	clock.Advance(200 * time.Millisecond)
	d.Trigger() // t=400

	clock.Advance(999 * time.Millisecond)
	if len(fired) != 0 {
		t.Fatalf("fired early at %v", fired)
	}
	clock.Advance(time.Millisecond)
	if len(fired) != 1 || fired[0] != 1400*time.Millisecond {
		t.Fatalf("fired = %v, want one call at 1.4s", fired)
	}
	if clock.Pending() != 0 || d.Pending() {
		t.Errorf("timers left after fire")
	}
}

func TestCancel(t *testing.T) {
	clock := &testutil.FakeClock{}
	calls := 0
	d := debounce.New(time.Second, func() { calls++ }, clock.AfterFunc)

	if d.Cancel() {
		t.Error("Cancel reported pending on idle debouncer")
	}
	d.Trigger()
	if !d.Cancel() {
		t.Error("Cancel did not report pending call")
	}
	clock.Advance(2 * time.Second)
	if calls != 0 {
		t.Errorf("calls = %d after cancel", calls)
	}
}

func TestFlush(t *testing.T) {
	clock := &testutil.FakeClock{}
	calls := 0
	d := debounce.New(time.Second, func() { calls++ }, clock.AfterFunc)

	if d.Flush() {
		t.Error("Flush ran with nothing pending")
	}
	d.Trigger()
	if !d.Flush() || calls != 1 {
		t.Fatalf("Flush: calls = %d", calls)
	}
	clock.Advance(2 * time.Second)
	if calls != 1 {
		t.Errorf("stale timer fired after flush: calls = %d", calls)
	}
}

func TestRealClock(t *testing.T) {
	var calls atomic.Int32
	d := debounce.New(20*time.Millisecond, func() { calls.Add(1) }, nil)
	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(2 * time.Millisecond)
	}
	deadline := time.Now().Add(time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}
