package autosave

import (
	"errors"
	"sync"
	"testing"
	"time"

	"ikk-backend/internal/config"
)

func testConfig() *config.AutosaveConfig {
	return &config.AutosaveConfig{
		QuietPeriod:  30 * time.Millisecond,
		MaxRetries:   2,
		RetryBackoff: 1 * time.Millisecond,
	}
}

type flushRecorder struct {
	mu      sync.Mutex
	calls   []Patch
	userIDs []uint
	fail    int // fail this many calls before succeeding
}

func (f *flushRecorder) flush(policyID, userID uint, patch Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail > 0 {
		f.fail--
		return errors.New("write failed")
	}
	f.calls = append(f.calls, patch)
	f.userIDs = append(f.userIDs, userID)
	return nil
}

func (f *flushRecorder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestRapidEditsCoalesceIntoOneWrite(t *testing.T) {
	recorder := &flushRecorder{}
	d := NewDebouncer(testConfig(), recorder.flush)

	// Three edits inside the quiet period, the second overwriting the first
	d.Queue(1, 10, Patch{Scores: map[string]int64{"a1": 10}})
	d.Queue(1, 10, Patch{Scores: map[string]int64{"a1": 20}})
	d.Queue(1, 10, Patch{Notes: map[string]string{"a": "catatan"}})

	if state := d.State(1); state != StateSaving {
		t.Errorf("state during quiet period = %s, want saving", state)
	}

	d.Flush()

	if recorder.callCount() != 1 {
		t.Fatalf("expected 1 coalesced write, got %d", recorder.callCount())
	}

	patch := recorder.calls[0]
	if patch.Scores["a1"] != 20 {
		t.Errorf("a1 score = %d, want last-written 20", patch.Scores["a1"])
	}
	if patch.Notes["a"] != "catatan" {
		t.Errorf("dimension a note = %q, want %q", patch.Notes["a"], "catatan")
	}

	if state := d.State(1); state != StateSaved {
		t.Errorf("state after flush = %s, want saved", state)
	}
}

func TestPoliciesDebounceIndependently(t *testing.T) {
	recorder := &flushRecorder{}
	d := NewDebouncer(testConfig(), recorder.flush)

	d.Queue(1, 10, Patch{Scores: map[string]int64{"a1": 10}})
	d.Queue(2, 11, Patch{Scores: map[string]int64{"b1": 30}})

	d.Flush()

	if recorder.callCount() != 2 {
		t.Fatalf("expected one write per policy, got %d", recorder.callCount())
	}
}

func TestFlushRetriesBeforeSucceeding(t *testing.T) {
	recorder := &flushRecorder{fail: 2}
	d := NewDebouncer(testConfig(), recorder.flush)

	d.Queue(1, 10, Patch{Scores: map[string]int64{"c2": 20}})
	d.Flush()

	if recorder.callCount() != 1 {
		t.Fatalf("expected the write to land after retries, got %d writes", recorder.callCount())
	}
	if state := d.State(1); state != StateSaved {
		t.Errorf("state after successful retry = %s, want saved", state)
	}
}

func TestFlushMarksFailedAfterRetriesExhausted(t *testing.T) {
	recorder := &flushRecorder{fail: 10}
	d := NewDebouncer(testConfig(), recorder.flush)

	d.Queue(1, 10, Patch{Scores: map[string]int64{"d1": 0}})
	d.Flush()

	if recorder.callCount() != 0 {
		t.Fatalf("expected no successful writes, got %d", recorder.callCount())
	}
	if state := d.State(1); state != StateFailed {
		t.Errorf("state after exhausted retries = %s, want failed", state)
	}
}

func TestEmptyPatchIsIgnored(t *testing.T) {
	recorder := &flushRecorder{}
	d := NewDebouncer(testConfig(), recorder.flush)

	d.Queue(1, 10, Patch{})
	d.Flush()

	if recorder.callCount() != 0 {
		t.Fatalf("empty patch should not be written, got %d writes", recorder.callCount())
	}
	if state := d.State(1); state != StateSaved {
		t.Errorf("state for untouched policy = %s, want saved", state)
	}
}

func TestFlushWaitsForInFlightTimerWrite(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	flush := func(policyID, userID uint, patch Patch) error {
		close(started)
		<-release
		close(done)
		return nil
	}

	d := NewDebouncer(testConfig(), flush)
	d.Queue(1, 10, Patch{Scores: map[string]int64{"a1": 20}})

	// Wait for the quiet-period timer to fire and start the write, then let
	// it finish while a shutdown Flush is already waiting
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("timer-fired flush never started")
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	d.Flush()

	select {
	case <-done:
	default:
		t.Fatal("Flush returned while the timer-fired write was still in flight")
	}
}

func TestTimerFiresWithoutExplicitFlush(t *testing.T) {
	recorder := &flushRecorder{}
	d := NewDebouncer(testConfig(), recorder.flush)

	jf := true
	d.Queue(1, 10, Patch{JF: &jf})

	deadline := time.Now().Add(2 * time.Second)
	for recorder.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if recorder.callCount() != 1 {
		t.Fatalf("expected the quiet period timer to trigger the write, got %d writes", recorder.callCount())
	}
	if recorder.calls[0].JF == nil || !*recorder.calls[0].JF {
		t.Errorf("jf answer lost in flush")
	}
}
