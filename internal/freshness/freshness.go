package freshness

import (
	"time"

	"github.com/pulsar-neuron/gate/internal/model"
)

// Default SLA thresholds per category.
const (
	DefaultBarsBudget         = 90 * time.Second
	DefaultOpenInterestBudget = 120 * time.Second
	DefaultOptionChainBudget  = 180 * time.Second
	DefaultBreadthVIXBudget   = 300 * time.Second
)

// Budgets holds the maximum tolerated age per data category.
type Budgets struct {
	Bars         time.Duration
	OpenInterest time.Duration
	OptionChain  time.Duration
	BreadthVIX   time.Duration
}

// DefaultBudgets returns the standard SLA thresholds.
func DefaultBudgets() Budgets {
	return Budgets{
		Bars:         DefaultBarsBudget,
		OpenInterest: DefaultOpenInterestBudget,
		OptionChain:  DefaultOptionChainBudget,
		BreadthVIX:   DefaultBreadthVIXBudget,
	}
}

// Threshold returns the budget for a category. Unknown categories get a
// zero budget, which can never be satisfied.
func (b Budgets) Threshold(cat model.Category) time.Duration {
	switch cat {
	case model.CategoryBars:
		return b.Bars
	case model.CategoryOpenInterest:
		return b.OpenInterest
	case model.CategoryOptionChain:
		return b.OptionChain
	case model.CategoryBreadthVIX:
		return b.BreadthVIX
	}
	return 0
}

// Report is the verdict for one category at one evaluation instant.
type Report struct {
	Category  model.Category
	Age       time.Duration // meaningless when Missing
	Threshold time.Duration
	Missing   bool
	OK        bool
}

// Evaluate compares the latest record timestamp for a category against
// the evaluation instant. A zero latest timestamp means no record exists:
// the category is reported missing and not fresh. The age boundary is
// inclusive: age == threshold is still fresh.
func (b Budgets) Evaluate(cat model.Category, latest, now time.Time) Report {
	threshold := b.Threshold(cat)
	if latest.IsZero() {
		return Report{Category: cat, Threshold: threshold, Missing: true}
	}

	age := now.Sub(latest)
	return Report{
		Category:  cat,
		Age:       age,
		Threshold: threshold,
		OK:        age <= threshold,
	}
}

// CategoryAge converts a report to its persisted payload form.
func (r Report) CategoryAge() model.CategoryAge {
	if r.Missing {
		return model.CategoryAge{Missing: true}
	}
	return model.CategoryAge{AgeSeconds: r.Age.Seconds(), OK: r.OK}
}
