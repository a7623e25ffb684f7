package model

import (
	"testing"
	"time"
)

func TestActionOpens(t *testing.T) {
	if !ActionLong.Opens() || !ActionShort.Opens() {
		t.Error("long/short must open positions")
	}
	if ActionWait.Opens() {
		t.Error("wait must not open a position")
	}
}

func TestActionValid(t *testing.T) {
	for _, a := range []Action{ActionLong, ActionShort, ActionWait} {
		if !a.Valid() {
			t.Errorf("%q.Valid() = false", a)
		}
	}
	if Action("hold").Valid() {
		t.Error(`Action("hold").Valid() = true, want false`)
	}
}

func TestBarWindows(t *testing.T) {
	open := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	bar := Bar{Timestamp: open, Timeframe: TF5m}

	if got := bar.WindowClose(); !got.Equal(open.Add(5 * time.Minute)) {
		t.Errorf("WindowClose() = %v, want open+5m", got)
	}
	if got := bar.ImmutableAt(); !got.Equal(open.Add(5*time.Minute + 10*time.Second)) {
		t.Errorf("ImmutableAt() = %v, want window close + 10s", got)
	}
}

func TestTimeframeDuration(t *testing.T) {
	tests := []struct {
		tf   Timeframe
		want time.Duration
	}{
		{TF1m, time.Minute},
		{TF5m, 5 * time.Minute},
		{TF15m, 15 * time.Minute},
		{Timeframe("1h"), 0},
	}
	for _, tt := range tests {
		if got := tt.tf.Duration(); got != tt.want {
			t.Errorf("Duration(%q) = %v, want %v", tt.tf, got, tt.want)
		}
	}
}

func TestPrimaryReason(t *testing.T) {
	d := Decision{Action: ActionWait, Reasons: []string{"TimeCutoff", "extra"}}
	if got := d.PrimaryReason(); got != "TimeCutoff" {
		t.Errorf("PrimaryReason() = %q, want TimeCutoff", got)
	}

	d = Decision{Action: ActionLong, ChosenStrategy: "orb_breakout"}
	if got := d.PrimaryReason(); got != "orb_breakout" {
		t.Errorf("PrimaryReason() = %q, want orb_breakout", got)
	}

	d = Decision{Action: ActionWait}
	if got := d.PrimaryReason(); got != "wait" {
		t.Errorf("PrimaryReason() = %q, want wait", got)
	}
}

func TestWaitProposal(t *testing.T) {
	p := WaitProposal("mixed evidence")
	if p.Action != ActionWait {
		t.Errorf("Action = %q, want wait", p.Action)
	}
	if len(p.Reasons) != 1 || p.Reasons[0] != "mixed evidence" {
		t.Errorf("Reasons = %v", p.Reasons)
	}
}
