// Package period defines the natural key shared by filing and
// reconciliation state: client + calendar month + fiscal year.
package period

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidClient     = errors.New("invalid_client")
	ErrInvalidPeriod     = errors.New("invalid_period")
	ErrInvalidFiscalYear = errors.New("invalid_fiscal_year")
)

// PeriodLayout is the calendar-month token format, e.g. "2024-04".
const PeriodLayout = "2006-01"

// Key identifies one client-month of compliance state. At most one filing
// record and one reconciliation record exist per key.
type Key struct {
	OrgID      snowflake.ID
	ClientID   snowflake.ID
	Period     string // calendar month, PeriodLayout
	FiscalYear string // e.g. "2024-25", spans April through March
}

func (k Key) Validate() error {
	if k.OrgID == 0 || k.ClientID == 0 {
		return ErrInvalidClient
	}
	month, err := ParsePeriod(k.Period)
	if err != nil {
		return err
	}
	if k.FiscalYear == "" {
		return ErrInvalidFiscalYear
	}
	if k.FiscalYear != FiscalYearOf(month) {
		return ErrInvalidFiscalYear
	}
	return nil
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.OrgID, k.ClientID, k.Period, k.FiscalYear)
}

// ParsePeriod parses a calendar-month token into the first instant of that
// month in UTC.
func ParsePeriod(token string) (time.Time, error) {
	month, err := time.ParseInLocation(PeriodLayout, token, time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidPeriod
	}
	return month, nil
}

// FiscalYearOf returns the April–March fiscal-year token containing the
// given month, e.g. 2024-04 through 2025-03 → "2024-25".
func FiscalYearOf(month time.Time) string {
	year := month.Year()
	if month.Month() < time.April {
		year--
	}
	return fmt.Sprintf("%d-%02d", year, (year+1)%100)
}

// KeyFor builds a key with the fiscal year derived from the period token.
func KeyFor(orgID, clientID snowflake.ID, periodToken string) (Key, error) {
	month, err := ParsePeriod(periodToken)
	if err != nil {
		return Key{}, err
	}
	key := Key{
		OrgID:      orgID,
		ClientID:   clientID,
		Period:     periodToken,
		FiscalYear: FiscalYearOf(month),
	}
	if key.OrgID == 0 || key.ClientID == 0 {
		return Key{}, ErrInvalidClient
	}
	return key, nil
}

// MonthsOf lists the twelve period tokens of a fiscal year in order,
// starting at April.
func MonthsOf(fiscalYear string) ([]string, error) {
	var startYear int
	var suffix int
	if _, err := fmt.Sscanf(fiscalYear, "%d-%d", &startYear, &suffix); err != nil {
		return nil, ErrInvalidFiscalYear
	}
	if (startYear+1)%100 != suffix {
		return nil, ErrInvalidFiscalYear
	}
	months := make([]string, 0, 12)
	cursor := time.Date(startYear, time.April, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		months = append(months, cursor.Format(PeriodLayout))
		cursor = cursor.AddDate(0, 1, 0)
	}
	return months, nil
}
