package autosave

import (
	"log/slog"
	"sync"
	"time"

	"ikk-backend/internal/config"
)

// SaveState is the client-visible state of a policy's pending edits
type SaveState string

const (
	StateSaved  SaveState = "saved"
	StateSaving SaveState = "saving"
	StateFailed SaveState = "failed"
)

// Patch is a partial questionnaire edit. Maps are keyed by column code
// (scores, files) or dimension (notes). Later edits to the same key replace
// earlier ones; everything else is untouched.
type Patch struct {
	Scores map[string]int64
	Notes  map[string]string
	Files  map[string]string
	JF     *bool
}

// merge folds a newer patch into p, last write wins per key
func (p *Patch) merge(newer Patch) {
	if len(newer.Scores) > 0 {
		if p.Scores == nil {
			p.Scores = make(map[string]int64)
		}
		for code, score := range newer.Scores {
			p.Scores[code] = score
		}
	}
	if len(newer.Notes) > 0 {
		if p.Notes == nil {
			p.Notes = make(map[string]string)
		}
		for dimension, note := range newer.Notes {
			p.Notes[dimension] = note
		}
	}
	if len(newer.Files) > 0 {
		if p.Files == nil {
			p.Files = make(map[string]string)
		}
		for code, link := range newer.Files {
			p.Files[code] = link
		}
	}
	if newer.JF != nil {
		p.JF = newer.JF
	}
}

func (p Patch) isEmpty() bool {
	return len(p.Scores) == 0 && len(p.Notes) == 0 && len(p.Files) == 0 && p.JF == nil
}

// FlushFunc persists a coalesced patch for one policy
type FlushFunc func(policyID, userID uint, patch Patch) error

type pending struct {
	timer  *time.Timer
	patch  Patch
	userID uint
}

// Debouncer coalesces rapid questionnaire edits per policy and persists them
// once a quiet period has passed since the last edit. Failed flushes are
// retried with doubling backoff before the policy is marked failed.
type Debouncer struct {
	quietPeriod  time.Duration
	maxRetries   int
	retryBackoff time.Duration
	flush        FlushFunc

	mu      sync.Mutex
	pending map[uint]*pending
	states  map[uint]SaveState
	wg      sync.WaitGroup
}

// NewDebouncer creates a debouncer that persists patches through flush
func NewDebouncer(cfg *config.AutosaveConfig, flush FlushFunc) *Debouncer {
	return &Debouncer{
		quietPeriod:  cfg.QuietPeriod,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		flush:        flush,
		pending:      make(map[uint]*pending),
		states:       make(map[uint]SaveState),
	}
}

// Queue records an edit for a policy and (re)starts its quiet period.
// Edits arriving before the quiet period elapses are merged into one write.
func (d *Debouncer) Queue(policyID, userID uint, patch Patch) {
	if patch.isEmpty() {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.states[policyID] = StateSaving

	if entry, ok := d.pending[policyID]; ok {
		entry.patch.merge(patch)
		entry.userID = userID
		entry.timer.Reset(d.quietPeriod)
		return
	}

	entry := &pending{patch: patch, userID: userID}
	entry.timer = time.AfterFunc(d.quietPeriod, func() {
		d.flushPolicy(policyID)
	})
	d.pending[policyID] = entry
}

// State reports the save state of a policy's questionnaire edits
func (d *Debouncer) State(policyID uint) SaveState {
	d.mu.Lock()
	defer d.mu.Unlock()

	if state, ok := d.states[policyID]; ok {
		return state
	}
	return StateSaved
}

// Flush synchronously persists all pending edits. Called on shutdown so
// debounced writes are not lost.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	ids := make([]uint, 0, len(d.pending))
	for policyID, entry := range d.pending {
		entry.timer.Stop()
		ids = append(ids, policyID)
	}
	d.mu.Unlock()

	for _, policyID := range ids {
		d.flushPolicy(policyID)
	}
	d.wg.Wait()
}

func (d *Debouncer) flushPolicy(policyID uint) {
	d.mu.Lock()
	entry, ok := d.pending[policyID]
	if !ok {
		d.mu.Unlock()
		return
	}
	delete(d.pending, policyID)
	// Registered under the lock so a concurrent Flush that no longer sees
	// the pending entry still waits for this write
	d.wg.Add(1)
	d.mu.Unlock()

	defer d.wg.Done()

	var err error
	backoff := d.retryBackoff
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}
		if err = d.flush(policyID, entry.userID, entry.patch); err == nil {
			break
		}
		slog.Warn("Autosave flush failed",
			"policy_id", policyID,
			"attempt", attempt+1,
			"error", err,
		)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// An edit that arrived during the flush keeps the state at saving
	if _, stillPending := d.pending[policyID]; stillPending {
		return
	}

	if err != nil {
		d.states[policyID] = StateFailed
		slog.Error("Autosave gave up after retries", "policy_id", policyID, "error", err)
		return
	}
	d.states[policyID] = StateSaved
}
