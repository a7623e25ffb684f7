package contextpack

import (
	"math"

	"github.com/pulsar-neuron/gate/internal/model"
)

// Levels is the chain-derived geometry attached to a pack's hints.
// OK is false when the chain is too thin to derive anything; rails
// treat unknown geometry as "no known wall".
type Levels struct {
	ExpectedMove float64 // points, from the ATM straddle
	WallAbove    float64 // max-OI strike above spot, 0 if none
	WallBelow    float64 // max-OI strike below spot, 0 if none
	OK           bool
}

// LevelSource derives wall levels and expected move for a symbol. The
// formula is a pluggable seam: the production math lives with the
// feature library, and tests inject fixed levels.
type LevelSource interface {
	Levels(chain []model.OptionChainRow, spot float64) Levels
}

// LevelSourceFunc adapts a function to a LevelSource.
type LevelSourceFunc func(chain []model.OptionChainRow, spot float64) Levels

func (f LevelSourceFunc) Levels(chain []model.OptionChainRow, spot float64) Levels {
	return f(chain, spot)
}

// ChainLevels is the default LevelSource: expected move is the ATM
// straddle price, walls are the max open-interest strikes on either
// side of spot.
type ChainLevels struct{}

func (ChainLevels) Levels(chain []model.OptionChainRow, spot float64) Levels {
	if len(chain) == 0 || spot <= 0 {
		return Levels{}
	}

	// Nearest strike to spot.
	atm := chain[0].Strike
	for _, r := range chain {
		if math.Abs(r.Strike-spot) < math.Abs(atm-spot) {
			atm = r.Strike
		}
	}

	var em float64
	for _, r := range chain {
		if r.Strike == atm {
			em += r.LastPrice
		}
	}

	var wallAbove, wallBelow float64
	var oiAbove, oiBelow int64
	for _, r := range chain {
		switch {
		case r.Strike > spot && r.OpenInterest > oiAbove:
			wallAbove, oiAbove = r.Strike, r.OpenInterest
		case r.Strike < spot && r.OpenInterest > oiBelow:
			wallBelow, oiBelow = r.Strike, r.OpenInterest
		}
	}

	return Levels{
		ExpectedMove: em,
		WallAbove:    wallAbove,
		WallBelow:    wallBelow,
		OK:           em > 0,
	}
}
