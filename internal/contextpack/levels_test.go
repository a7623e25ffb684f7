package contextpack

import (
	"testing"
	"time"

	"github.com/pulsar-neuron/gate/internal/model"
)

func TestChainLevels(t *testing.T) {
	ts := time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC)
	chain := []model.OptionChainRow{
		{Timestamp: ts, Strike: 22400, Side: model.SideCE, LastPrice: 160, OpenInterest: 300},
		{Timestamp: ts, Strike: 22400, Side: model.SidePE, LastPrice: 60, OpenInterest: 400},
		{Timestamp: ts, Strike: 22500, Side: model.SideCE, LastPrice: 120, OpenInterest: 200},
		{Timestamp: ts, Strike: 22500, Side: model.SidePE, LastPrice: 110, OpenInterest: 250},
		{Timestamp: ts, Strike: 22600, Side: model.SideCE, LastPrice: 70, OpenInterest: 950},
		{Timestamp: ts, Strike: 22600, Side: model.SidePE, LastPrice: 180, OpenInterest: 100},
		{Timestamp: ts, Strike: 22300, Side: model.SidePE, LastPrice: 30, OpenInterest: 700},
	}

	lv := ChainLevels{}.Levels(chain, 22510)
	if !lv.OK {
		t.Fatalf("Levels() OK = false, want true")
	}
	// ATM is the 22500 strike: straddle 120 + 110.
	if lv.ExpectedMove != 230 {
		t.Errorf("ExpectedMove = %v, want 230", lv.ExpectedMove)
	}
	if lv.WallAbove != 22600 {
		t.Errorf("WallAbove = %v, want 22600", lv.WallAbove)
	}
	if lv.WallBelow != 22300 {
		t.Errorf("WallBelow = %v, want 22300", lv.WallBelow)
	}
}

func TestChainLevelsEmpty(t *testing.T) {
	if lv := (ChainLevels{}).Levels(nil, 22500); lv.OK {
		t.Errorf("Levels(nil) OK = true, want false")
	}
	chain := []model.OptionChainRow{{Strike: 22500, Side: model.SideCE, LastPrice: 100}}
	if lv := (ChainLevels{}).Levels(chain, 0); lv.OK {
		t.Errorf("Levels() with zero spot OK = true, want false")
	}
}
