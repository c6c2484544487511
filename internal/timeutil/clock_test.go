package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_NewTicker(t *testing.T) {
	clock := RealClock{}
	ticker := clock.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Error("ticker did not fire")
	}
}

func TestMockClock_SetAndAdvance(t *testing.T) {
	start := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	clock := NewMockClock(start)
	if !clock.Now().Equal(start) {
		t.Fatalf("got %v, want %v", clock.Now(), start)
	}

	clock.Advance(5 * time.Second)
	if want := start.Add(5 * time.Second); !clock.Now().Equal(want) {
		t.Errorf("after Advance got %v, want %v", clock.Now(), want)
	}

	// Set may move backwards.
	clock.Set(start.Add(-time.Hour))
	if want := start.Add(-time.Hour); !clock.Now().Equal(want) {
		t.Errorf("after Set got %v, want %v", clock.Now(), want)
	}
}

func TestMockClock_TickerFiresOnAdvance(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	ticker := clock.NewTicker(time.Second)

	clock.Advance(500 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired early")
	default:
	}

	clock.Advance(500 * time.Millisecond)
	select {
	case got := <-ticker.C():
		if !got.Equal(time.Unix(1, 0)) {
			t.Errorf("tick time = %v, want %v", got, time.Unix(1, 0))
		}
	default:
		t.Fatal("ticker did not fire when due")
	}

	ticker.Stop()
	clock.Advance(time.Hour)
	select {
	case <-ticker.C():
		t.Error("stopped ticker fired")
	default:
	}
}

func TestMockTicker_TriggerDropsWhenFull(t *testing.T) {
	ticker := NewMockTicker()
	ticker.Trigger(time.Unix(1, 0))
	ticker.Trigger(time.Unix(2, 0))

	if got := <-ticker.C(); !got.Equal(time.Unix(1, 0)) {
		t.Errorf("got %v, want the first tick", got)
	}
	select {
	case <-ticker.C():
		t.Error("second tick should have been dropped")
	default:
	}

	if ticker.Stopped() {
		t.Error("ticker reported stopped before Stop")
	}
	ticker.Stop()
	if !ticker.Stopped() {
		t.Error("ticker not stopped after Stop")
	}
}
