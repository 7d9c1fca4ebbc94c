// Package latefee isolates the late-fee and interest formula behind a
// strategy interface. The statutory schedule varies by jurisdiction, so the
// default is a deliberately simple stand-in.
package latefee

import (
	"math"
	"time"

	"github.com/complyops/taxtrail/internal/config"
	"go.uber.org/fx"
)

// Module provides the default calculator.
var Module = fx.Provide(NewFlatRateCalculator)

// Charge is the outcome of one late-fee computation.
type Charge struct {
	LateFee  int64
	Interest int64
}

// Calculator computes the late fee and interest owed for a summary return
// filed at filedAt against a dueDate, on taxDue minor units.
type Calculator interface {
	Calculate(taxDue int64, dueDate, filedAt time.Time) Charge
}

type flatRateCalculator struct {
	perDay     int64
	annualRate float64
}

func NewFlatRateCalculator(cfg config.Config) Calculator {
	return &flatRateCalculator{
		perDay:     cfg.Filing.LateFeePerDay,
		annualRate: cfg.Filing.InterestAnnualRate,
	}
}

func (c *flatRateCalculator) Calculate(taxDue int64, dueDate, filedAt time.Time) Charge {
	if !filedAt.After(dueDate) {
		return Charge{}
	}

	daysLate := int64(math.Ceil(filedAt.Sub(dueDate).Hours() / 24))
	if daysLate < 1 {
		daysLate = 1
	}

	var interest int64
	if taxDue > 0 && c.annualRate > 0 {
		interest = int64(math.Round(float64(taxDue) * c.annualRate * float64(daysLate) / 365))
	}

	return Charge{
		LateFee:  c.perDay * daysLate,
		Interest: interest,
	}
}
