package service

import (
	"context"
	"fmt"
	"math"

	"github.com/bwmarrin/snowflake"
	"github.com/complyops/taxtrail/internal/period"
	recondomain "github.com/complyops/taxtrail/internal/reconciliation/domain"
)

// Recommendation templates, keyed off which conditions the year exhibits.
// Deterministic text, no generation.
const (
	recExcessClaimed  = "Verify that all claimed source records were reported by counterparties within the filing window."
	recUnclaimed      = "Review counterparty-reported credit not present in the source ledger; eligible credit may be unclaimed."
	recPendingCredit  = "Follow up on pending acceptances with counterparties before the period closes."
	recRejectedCredit = "Investigate rejected credit lines and file corrections with the counterparties."
	recHighAverage    = "Schedule a detailed reconciliation review; the average discrepancy exceeds the review threshold."
	recAllReconciled  = "No action required; claimed and reported figures reconcile across the year."
)

// GenerateFYReport is a read-only aggregate over one client's fiscal year.
func (s *Service) GenerateFYReport(ctx context.Context, orgID, clientID snowflake.ID, fiscalYear string) (*recondomain.FYReport, error) {
	if orgID == 0 || clientID == 0 {
		return nil, fmt.Errorf("%w: org and client are required", recondomain.ErrValidation)
	}
	if _, err := period.MonthsOf(fiscalYear); err != nil {
		return nil, fmt.Errorf("%w: %s", recondomain.ErrValidation, err)
	}

	recs, err := s.repo.ListByClientFY(ctx, s.db, orgID, clientID, fiscalYear)
	if err != nil {
		return nil, s.classify(err, "list reconciliations")
	}

	report := &recondomain.FYReport{
		ClientID:   clientID,
		FiscalYear: fiscalYear,
		ByReason:   map[recondomain.DiscrepancyReason]int{},
	}

	var pctSum float64
	var pctCount int
	var pendingSeen, rejectedSeen bool
	for _, rec := range recs {
		report.MonthsTracked++
		report.TotalClaimed += rec.ClaimedCredit
		if rec.CounterpartyReportedCredit != nil {
			report.TotalReported += *rec.CounterpartyReportedCredit
			pctSum += rec.DiscrepancyPct
			pctCount++
		}
		if rec.HasDiscrepancy {
			report.MonthsWithDiscrepancy++
		}
		if rec.PendingCredit != nil && *rec.PendingCredit > 0 {
			pendingSeen = true
		}
		if rec.RejectedCredit != nil && *rec.RejectedCredit > 0 {
			rejectedSeen = true
		}
		report.ByReason[rec.DiscrepancyReason]++
	}
	if pctCount > 0 {
		report.AvgDiscrepancyPct = pctSum / float64(pctCount)
	}

	report.Recommendations = s.recommend(report, pendingSeen, rejectedSeen)
	return report, nil
}

func (s *Service) recommend(report *recondomain.FYReport, pendingSeen, rejectedSeen bool) []string {
	var recommendations []string
	if report.ByReason[recondomain.ReasonExcessClaimed] > 0 {
		recommendations = append(recommendations, recExcessClaimed)
	}
	if report.ByReason[recondomain.ReasonUnclaimed] > 0 {
		recommendations = append(recommendations, recUnclaimed)
	}
	if pendingSeen {
		recommendations = append(recommendations, recPendingCredit)
	}
	if rejectedSeen {
		recommendations = append(recommendations, recRejectedCredit)
	}
	if math.Abs(report.AvgDiscrepancyPct) > s.thresholds.MaxDiscrepancyPct {
		recommendations = append(recommendations, recHighAverage)
	}
	if len(recommendations) == 0 {
		recommendations = append(recommendations, recAllReconciled)
	}
	return recommendations
}
