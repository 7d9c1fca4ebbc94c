package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to WorkflowStatus
		ok       bool
	}{
		{StatusDraft, StatusSubReturnAFiled, true},
		{StatusSubReturnAFiled, StatusSubReturnBFiled, true},
		{StatusSubReturnBFiled, StatusLocked, true},
		{StatusLocked, StatusAmendmentInProgress, true},
		{StatusAmendmentInProgress, StatusDraft, true},

		// No skipping, no reversing outside the amendment edge.
		{StatusDraft, StatusSubReturnBFiled, false},
		{StatusDraft, StatusLocked, false},
		{StatusSubReturnAFiled, StatusDraft, false},
		{StatusSubReturnBFiled, StatusSubReturnAFiled, false},
		{StatusLocked, StatusDraft, false},
		{StatusLocked, StatusLocked, false},
		{StatusAmendmentInProgress, StatusLocked, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestDueDates(t *testing.T) {
	month := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	aDue, bDue := DueDates(month, 11, 20)
	assert.Equal(t, time.Date(2024, time.May, 11, 23, 59, 59, 0, time.UTC), aDue)
	assert.Equal(t, time.Date(2024, time.May, 20, 23, 59, 59, 0, time.UTC), bDue)

	// December periods roll over the year boundary.
	aDue, bDue = DueDates(time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC), 11, 20)
	assert.Equal(t, 2025, aDue.Year())
	assert.Equal(t, time.January, bDue.Month())
}

func TestRecomputeFilingStatus(t *testing.T) {
	aDue := time.Date(2024, time.May, 11, 23, 59, 59, 0, time.UTC)
	bDue := time.Date(2024, time.May, 20, 23, 59, 59, 0, time.UTC)
	early := time.Date(2024, time.May, 5, 0, 0, 0, 0, time.UTC)
	past := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	t.Run("pending before due dates", func(t *testing.T) {
		f := Filing{SubReturnA: SubReturn{DueDate: aDue}, SubReturnB: SubReturn{DueDate: bDue}}
		f.RecomputeFilingStatus(early)
		assert.Equal(t, FilingStatusPending, f.FilingStatus)
	})

	t.Run("overdue when unfiled past due", func(t *testing.T) {
		f := Filing{SubReturnA: SubReturn{DueDate: aDue}, SubReturnB: SubReturn{DueDate: bDue}}
		f.RecomputeFilingStatus(past)
		assert.Equal(t, FilingStatusOverdue, f.FilingStatus)
	})

	t.Run("filed on time", func(t *testing.T) {
		onTime := aDue.AddDate(0, 0, -2)
		f := Filing{
			SubReturnA: SubReturn{Filed: true, FiledDate: &onTime, DueDate: aDue},
			SubReturnB: SubReturn{Filed: true, FiledDate: &onTime, DueDate: bDue},
		}
		f.RecomputeFilingStatus(past)
		assert.Equal(t, FilingStatusFiled, f.FilingStatus)
	})

	t.Run("late when filed past due", func(t *testing.T) {
		onTime := aDue.AddDate(0, 0, -2)
		lateFiled := bDue.AddDate(0, 0, 3)
		f := Filing{
			SubReturnA: SubReturn{Filed: true, FiledDate: &onTime, DueDate: aDue},
			SubReturnB: SubReturn{Filed: true, FiledDate: &lateFiled, DueDate: bDue},
		}
		f.RecomputeFilingStatus(past)
		assert.Equal(t, FilingStatusLate, f.FilingStatus)
	})

	t.Run("overdue dominates late", func(t *testing.T) {
		lateFiled := aDue.AddDate(0, 0, 2)
		f := Filing{
			SubReturnA: SubReturn{Filed: true, FiledDate: &lateFiled, DueDate: aDue},
			SubReturnB: SubReturn{DueDate: bDue},
		}
		f.RecomputeFilingStatus(past)
		assert.Equal(t, FilingStatusOverdue, f.FilingStatus)
	})
}
