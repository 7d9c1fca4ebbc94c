package domain

import "time"

// forward edges plus the single admin-gated back-edge out of locked.
var transitions = map[WorkflowStatus][]WorkflowStatus{
	StatusDraft:               {StatusSubReturnAFiled},
	StatusSubReturnAFiled:     {StatusSubReturnBFiled},
	StatusSubReturnBFiled:     {StatusLocked},
	StatusLocked:              {StatusAmendmentInProgress},
	StatusAmendmentInProgress: {StatusDraft},
}

// CanTransition reports whether the state machine permits from → to.
func CanTransition(from, to WorkflowStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RecomputeFilingStatus derives the timeliness projection from the two
// sub-returns and the current time. Overdue (unfiled past due) dominates
// late, which dominates filed.
func (f *Filing) RecomputeFilingStatus(now time.Time) {
	if (!f.SubReturnA.Filed && now.After(f.SubReturnA.DueDate)) ||
		(!f.SubReturnB.Filed && now.After(f.SubReturnB.DueDate)) {
		f.FilingStatus = FilingStatusOverdue
		return
	}
	if f.SubReturnA.FiledLate() || f.SubReturnB.FiledLate() {
		f.FilingStatus = FilingStatusLate
		return
	}
	if f.SubReturnA.Filed && f.SubReturnB.Filed {
		f.FilingStatus = FilingStatusFiled
		return
	}
	f.FilingStatus = FilingStatusPending
}

// DueDates derives the two statutory due dates for a period month. Each
// sub-return falls due in the month following the period.
func DueDates(periodMonth time.Time, aDay, bDay int) (time.Time, time.Time) {
	next := periodMonth.AddDate(0, 1, 0)
	aDue := time.Date(next.Year(), next.Month(), aDay, 23, 59, 59, 0, time.UTC)
	bDue := time.Date(next.Year(), next.Month(), bDay, 23, 59, 59, 0, time.UTC)
	return aDue, bDue
}
