package oracle

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

const (
	testPeriod = int64(43200) // 12h
	testPhase  = int64(1800)
	testWindow = 14
)

// t0 is an exact period boundary.
const t0 = int64(40000) * testPeriod

type fakeClock struct{ now int64 }

func (c *fakeClock) Now() time.Time { return time.Unix(c.now, 0) }

type fakeSource struct {
	prices map[string]int64
	err    error
}

func (s *fakeSource) GetPrice(instrument string) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.prices[instrument], nil
}

type allowlist map[string]bool

func (a allowlist) Authorize(caller string) bool { return a[caller] }

func newTestOracle(t *testing.T) (*Oracle, *fakeClock, *fakeSource) {
	t.Helper()
	clock := &fakeClock{now: t0}
	source := &fakeSource{prices: map[string]int64{}}
	o, err := New(Config{
		Period:              testPeriod,
		CommitPhaseDuration: testPhase,
		WindowSize:          testWindow,
	}, source)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	o.SetClock(clock)
	if err := o.Initialize("ETH-USDC"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return o, clock, source
}

func TestNew_Validation(t *testing.T) {
	src := &fakeSource{}
	if _, err := New(Config{Period: 0, CommitPhaseDuration: 1, WindowSize: 1}, src); err == nil {
		t.Error("expected error for zero period")
	}
	if _, err := New(Config{Period: 100, CommitPhaseDuration: 60, WindowSize: 1}, src); err == nil {
		t.Error("expected error for commit phase over half the period")
	}
	if _, err := New(Config{Period: 100, CommitPhaseDuration: 10, WindowSize: 0}, src); err == nil {
		t.Error("expected error for zero window size")
	}
	if _, err := New(Config{Period: 100, CommitPhaseDuration: 10, WindowSize: 1}, nil); err == nil {
		t.Error("expected error for nil source")
	}
}

func TestAnnualizationConstant(t *testing.T) {
	o, _, _ := newTestOracle(t)
	// isqrt(31536000 / 43200) = isqrt(730) = 27
	if got := o.AnnualizationConstant(); got != 27 {
		t.Fatalf("annualization constant = %d, want 27", got)
	}
}

func TestInitialize_Twice(t *testing.T) {
	o, _, _ := newTestOracle(t)
	if err := o.Initialize("ETH-USDC"); err != ErrAlreadyInitialized {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestCommit_NotInitialized(t *testing.T) {
	o, _, _ := newTestOracle(t)
	if err := o.Commit("BTC-USDC", "keeper"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

// The reference scenario: 12h period, 14-slot window, a rising then falling
// price path. Each commit must reproduce the documented stdev exactly.
func TestCommit_ReferenceStdevSequence(t *testing.T) {
	o, clock, source := newTestOracle(t)

	prices := []int64{2000000000, 2100000000, 2200000000, 2150000000}
	wantVols := []int64{0, 2439508, 2248393, 3068199}

	for i, p := range prices {
		clock.now = t0 + int64(i)*testPeriod
		source.prices["ETH-USDC"] = p
		if err := o.Commit("ETH-USDC", "keeper"); err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
		vol, err := o.Vol("ETH-USDC")
		if err != nil {
			t.Fatalf("vol %d: %v", i, err)
		}
		if vol != wantVols[i] {
			t.Errorf("after commit %d: vol = %d, want %d", i, vol, wantVols[i])
		}
	}

	annualized, err := o.AnnualizedVol("ETH-USDC")
	if err != nil {
		t.Fatalf("AnnualizedVol: %v", err)
	}
	if want := wantVols[3] * 27; annualized != want {
		t.Errorf("annualized vol = %d, want %d", annualized, want)
	}
}

func TestCommit_NotCommitPhase(t *testing.T) {
	o, clock, source := newTestOracle(t)
	source.prices["ETH-USDC"] = 2000000000

	clock.now = t0 + 10000 // mid-period, far from both boundaries
	if err := o.Commit("ETH-USDC", "keeper"); !errors.Is(err, ErrNotCommitPhase) {
		t.Fatalf("expected ErrNotCommitPhase, got %v", err)
	}

	// Just inside the phase on either side of a boundary is accepted.
	clock.now = t0 + testPhase - 1
	if err := o.Commit("ETH-USDC", "keeper"); err != nil {
		t.Fatalf("commit inside leading phase: %v", err)
	}
	clock.now = t0 + testPeriod - testPhase + 1
	if err := o.Commit("ETH-USDC", "keeper"); err != nil {
		t.Fatalf("commit inside trailing phase: %v", err)
	}
}

func TestSetCommitPhaseDuration(t *testing.T) {
	o, clock, source := newTestOracle(t)
	source.prices["ETH-USDC"] = 2000000000

	if err := o.SetCommitPhaseDuration(0); err == nil {
		t.Error("expected error for zero phase")
	}
	if err := o.SetCommitPhaseDuration(testPeriod/2 + 1); err == nil {
		t.Error("expected error for phase over half the period")
	}

	// Shrink the phase: an offset inside the old window is now rejected.
	if err := o.SetCommitPhaseDuration(600); err != nil {
		t.Fatal(err)
	}
	clock.now = t0 + 900
	if err := o.Commit("ETH-USDC", "keeper"); !errors.Is(err, ErrNotCommitPhase) {
		t.Fatalf("expected ErrNotCommitPhase with shrunk phase, got %v", err)
	}
	clock.now = t0 + 599
	if err := o.Commit("ETH-USDC", "keeper"); err != nil {
		t.Fatalf("commit inside shrunk phase: %v", err)
	}
}

func TestCommit_IdempotentPerPeriod(t *testing.T) {
	o, clock, source := newTestOracle(t)
	source.prices["ETH-USDC"] = 2000000000

	if err := o.Commit("ETH-USDC", "keeper"); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	before, err := o.Snapshot("ETH-USDC")
	if err != nil {
		t.Fatal(err)
	}

	clock.now = t0 + 90 // still in the same commit phase
	source.prices["ETH-USDC"] = 2100000000
	if err := o.Commit("ETH-USDC", "keeper"); !errors.Is(err, ErrAlreadyCommitted) {
		t.Fatalf("expected ErrAlreadyCommitted, got %v", err)
	}

	after, err := o.Snapshot("ETH-USDC")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Errorf("rejected commit mutated state:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestCommit_PriceErrorLeavesStateUntouched(t *testing.T) {
	o, clock, source := newTestOracle(t)
	source.prices["ETH-USDC"] = 2000000000
	if err := o.Commit("ETH-USDC", "keeper"); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	before, _ := o.Snapshot("ETH-USDC")

	clock.now = t0 + testPeriod
	source.err = errors.New("feed down")
	if err := o.Commit("ETH-USDC", "keeper"); !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable, got %v", err)
	}
	after, _ := o.Snapshot("ETH-USDC")
	if !reflect.DeepEqual(before, after) {
		t.Error("failed commit mutated state")
	}
}

func TestCommit_EmitsAuditEvent(t *testing.T) {
	o, _, source := newTestOracle(t)
	source.prices["ETH-USDC"] = 2000000000

	var gotEvent string
	var gotFields map[string]interface{}
	o.SetEventSink(func(event string, fields map[string]interface{}) {
		gotEvent = event
		gotFields = fields
	})

	if err := o.Commit("ETH-USDC", "keeper-7"); err != nil {
		t.Fatal(err)
	}
	if gotEvent != "commit" {
		t.Fatalf("event = %q, want commit", gotEvent)
	}
	if gotFields["caller"] != "keeper-7" {
		t.Errorf("caller field = %v", gotFields["caller"])
	}
	if gotFields["price"] != int64(2000000000) {
		t.Errorf("price field = %v", gotFields["price"])
	}
	if _, ok := gotFields["mean"]; !ok {
		t.Error("mean field missing")
	}
	if _, ok := gotFields["dsq"]; !ok {
		t.Error("dsq field missing")
	}
}

func TestSetAnnualizedVol_GuardRails(t *testing.T) {
	o, _, _ := newTestOracle(t)
	o.SetAuthorizer(allowlist{"admin": true})

	if err := o.SetAnnualizedVol("intruder", "ETH-USDC", 100_000_000); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	// Exactly at the rails is accepted.
	if err := o.SetAnnualizedVol("admin", "ETH-USDC", MinManualVol); err != nil {
		t.Fatalf("vol at 50%% rail: %v", err)
	}
	if err := o.SetAnnualizedVol("admin", "ETH-USDC", MaxManualVol); err != nil {
		t.Fatalf("vol at 400%% rail: %v", err)
	}
	// Outside is rejected.
	if err := o.SetAnnualizedVol("admin", "ETH-USDC", MinManualVol-1); !errors.Is(err, ErrVolOutOfBounds) {
		t.Fatalf("expected ErrVolOutOfBounds below rail, got %v", err)
	}
	if err := o.SetAnnualizedVol("admin", "ETH-USDC", MaxManualVol+1); !errors.Is(err, ErrVolOutOfBounds) {
		t.Fatalf("expected ErrVolOutOfBounds above rail, got %v", err)
	}
}

func TestSetAnnualizedVol_OverriddenUntilNextCommit(t *testing.T) {
	o, clock, source := newTestOracle(t)
	o.SetAuthorizer(allowlist{"admin": true})
	source.prices["ETH-USDC"] = 2000000000

	if err := o.SetAnnualizedVol("admin", "ETH-USDC", 120_000_000); err != nil {
		t.Fatal(err)
	}
	got, err := o.AnnualizedVol("ETH-USDC")
	if err != nil || got != 120_000_000 {
		t.Fatalf("AnnualizedVol = %d, %v; want the override", got, err)
	}

	clock.now = t0
	if err := o.Commit("ETH-USDC", "keeper"); err != nil {
		t.Fatal(err)
	}
	got, err = o.AnnualizedVol("ETH-USDC")
	if err != nil {
		t.Fatal(err)
	}
	if got == 120_000_000 {
		t.Error("override survived an accepted commit")
	}
}

func TestCommit_RecorderLabels(t *testing.T) {
	o, clock, source := newTestOracle(t)
	source.prices["ETH-USDC"] = 2000000000

	rec := &captureRecorder{}
	o.SetRecorder(rec)

	if err := o.Commit("ETH-USDC", "keeper"); err != nil {
		t.Fatal(err)
	}
	if rec.accepted != 1 {
		t.Fatalf("accepted = %d, want 1", rec.accepted)
	}

	clock.now = t0 + 10 // same period
	if err := o.Commit("ETH-USDC", "keeper"); err == nil {
		t.Fatal("expected rejection")
	}
	if rec.lastReason != "already_committed" {
		t.Errorf("reason = %q, want already_committed", rec.lastReason)
	}
}

type captureRecorder struct {
	accepted   int
	lastReason string
}

func (r *captureRecorder) CommitAccepted(string, int64, int64) { r.accepted++ }
func (r *captureRecorder) CommitRejected(_, reason string)     { r.lastReason = reason }
