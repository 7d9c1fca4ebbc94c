package latefee

import (
	"testing"
	"time"

	"github.com/complyops/taxtrail/internal/config"
	"github.com/stretchr/testify/assert"
)

func testCalculator() Calculator {
	return NewFlatRateCalculator(config.Config{
		Filing: config.FilingConfig{
			LateFeePerDay:      50,
			InterestAnnualRate: 0.18,
		},
	})
}

func TestCalculateOnTime(t *testing.T) {
	calc := testCalculator()
	due := time.Date(2024, time.May, 20, 23, 59, 59, 0, time.UTC)

	assert.Equal(t, Charge{}, calc.Calculate(100000, due, due.AddDate(0, 0, -3)))
	assert.Equal(t, Charge{}, calc.Calculate(100000, due, due))
}

func TestCalculateLate(t *testing.T) {
	calc := testCalculator()
	due := time.Date(2024, time.May, 20, 23, 59, 59, 0, time.UTC)

	charge := calc.Calculate(100000, due, due.AddDate(0, 0, 10))
	assert.Equal(t, int64(500), charge.LateFee)
	// 100000 * 0.18 * 10 / 365, rounded.
	assert.Equal(t, int64(493), charge.Interest)
}

func TestCalculatePartialDayCountsAsFull(t *testing.T) {
	calc := testCalculator()
	due := time.Date(2024, time.May, 20, 23, 59, 59, 0, time.UTC)

	charge := calc.Calculate(0, due, due.Add(2*time.Hour))
	assert.Equal(t, int64(50), charge.LateFee)
	assert.Equal(t, int64(0), charge.Interest)
}
