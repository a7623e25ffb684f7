package session

import (
	"testing"
	"time"

	"github.com/pulsar-neuron/gate/internal/config"
)

func ist(t *testing.T, hour, min int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return time.Date(2025, 6, 2, hour, min, 0, 0, loc)
}

func TestPhaseAt(t *testing.T) {
	cal := Default()

	tests := []struct {
		name string
		at   time.Time
		want Phase
	}{
		{"before open", ist(t, 9, 0), PhaseClosed},
		{"at open", ist(t, 9, 15), PhaseInitialBalance},
		{"mid IB", ist(t, 9, 45), PhaseInitialBalance},
		{"at IB end", ist(t, 10, 15), PhaseMidday},
		{"midday", ist(t, 12, 30), PhaseMidday},
		{"at cutoff", ist(t, 14, 45), PhaseLate},
		{"late", ist(t, 15, 0), PhaseLate},
		{"at close", ist(t, 15, 30), PhaseClosed},
		{"evening", ist(t, 18, 0), PhaseClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cal.PhaseAt(tt.at); got != tt.want {
				t.Errorf("PhaseAt(%s) = %v, want %v", tt.at.Format("15:04"), got, tt.want)
			}
		})
	}
}

func TestPastNoNew(t *testing.T) {
	cal := Default()

	if cal.PastNoNew(ist(t, 14, 44)) {
		t.Errorf("PastNoNew(14:44) = true, want false")
	}
	// The cutoff minute itself blocks new positions.
	if !cal.PastNoNew(ist(t, 14, 45)) {
		t.Errorf("PastNoNew(14:45) = false, want true")
	}
	if !cal.PastNoNew(ist(t, 15, 10)) {
		t.Errorf("PastNoNew(15:10) = false, want true")
	}
}

func TestNewCalendar(t *testing.T) {
	cal, err := NewCalendar(config.SessionConfig{
		Timezone:       "Asia/Kolkata",
		Open:           "09:15",
		IBEnd:          "10:15",
		NoNewAfter:     "14:45",
		Close:          "15:30",
		BaselineCutoff: "09:20",
	})
	if err != nil {
		t.Fatalf("NewCalendar() error = %v", err)
	}
	if cal.Open != 9*60+15 {
		t.Errorf("Open = %d, want %d", cal.Open, 9*60+15)
	}
	if cal.NoNewAfter != 14*60+45 {
		t.Errorf("NoNewAfter = %d, want %d", cal.NoNewAfter, 14*60+45)
	}
}

func TestNewCalendarInvalid(t *testing.T) {
	if _, err := NewCalendar(config.SessionConfig{Timezone: "Nowhere/Nohow"}); err == nil {
		t.Error("NewCalendar() with bad timezone expected error, got nil")
	}
	if _, err := NewCalendar(config.SessionConfig{
		Timezone: "Asia/Kolkata",
		Open:     "9 o'clock",
	}); err == nil {
		t.Error("NewCalendar() with bad time expected error, got nil")
	}
}

func TestTradingDay(t *testing.T) {
	cal := Default()
	if got := cal.TradingDay(ist(t, 11, 0)); got != "2025-06-02" {
		t.Errorf("TradingDay() = %q, want %q", got, "2025-06-02")
	}
}

func TestNextOpen(t *testing.T) {
	cal := Default()

	early := ist(t, 8, 0)
	if got := cal.NextOpen(early); !got.Equal(ist(t, 9, 15)) {
		t.Errorf("NextOpen(08:00) = %v, want same-day open", got)
	}

	evening := ist(t, 17, 0)
	want := ist(t, 9, 15).Add(24 * time.Hour)
	if got := cal.NextOpen(evening); !got.Equal(want) {
		t.Errorf("NextOpen(17:00) = %v, want %v", got, want)
	}
}

func TestSessionInstants(t *testing.T) {
	cal := Default()
	at := ist(t, 12, 0)

	if got := cal.OpenAt(at); !got.Equal(ist(t, 9, 15)) {
		t.Errorf("OpenAt() = %v, want 09:15", got)
	}
	if got := cal.IBEndAt(at); !got.Equal(ist(t, 10, 15)) {
		t.Errorf("IBEndAt() = %v, want 10:15", got)
	}
	if got := cal.BaselineCutoffAt(at); !got.Equal(ist(t, 9, 20)) {
		t.Errorf("BaselineCutoffAt() = %v, want 09:20", got)
	}
}
