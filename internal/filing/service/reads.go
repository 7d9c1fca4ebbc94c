package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	filingdomain "github.com/complyops/taxtrail/internal/filing/domain"
	"github.com/complyops/taxtrail/internal/period"
)

func (s *Service) GetByID(ctx context.Context, orgID, filingID snowflake.ID) (*filingdomain.Filing, error) {
	if orgID == 0 || filingID == 0 {
		return nil, fmt.Errorf("%w: filing id is required", filingdomain.ErrValidation)
	}
	filing, err := s.repo.FindByID(ctx, s.db, orgID, filingID)
	if err != nil {
		return nil, s.classify(err, "load filing")
	}
	if filing == nil {
		return nil, fmt.Errorf("%w: filing %s", filingdomain.ErrNotFound, filingID)
	}
	return filing, nil
}

func (s *Service) GetByPeriod(ctx context.Context, key period.Key) (*filingdomain.Filing, error) {
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", filingdomain.ErrValidation, err)
	}
	filing, err := s.repo.FindByPeriodKey(ctx, s.db, key)
	if err != nil {
		return nil, s.classify(err, "load filing")
	}
	if filing == nil {
		return nil, fmt.Errorf("%w: filing for %s", filingdomain.ErrNotFound, key.Period)
	}
	return filing, nil
}

func (s *Service) ListByClientFY(ctx context.Context, orgID, clientID snowflake.ID, fiscalYear string) ([]filingdomain.Filing, error) {
	if orgID == 0 || clientID == 0 {
		return nil, fmt.Errorf("%w: org and client are required", filingdomain.ErrValidation)
	}
	if _, err := period.MonthsOf(fiscalYear); err != nil {
		return nil, fmt.Errorf("%w: %s", filingdomain.ErrValidation, err)
	}
	return s.repo.ListByClientFY(ctx, s.db, orgID, clientID, fiscalYear)
}

func (s *Service) ListOverdue(ctx context.Context, orgID snowflake.ID) ([]filingdomain.Filing, error) {
	if orgID == 0 {
		return nil, fmt.Errorf("%w: org is required", filingdomain.ErrValidation)
	}
	return s.repo.ListOverdue(ctx, s.db, orgID, s.clock.Now())
}

func (s *Service) ListDueWithin(ctx context.Context, orgID snowflake.ID, days int) ([]filingdomain.Filing, error) {
	if orgID == 0 {
		return nil, fmt.Errorf("%w: org is required", filingdomain.ErrValidation)
	}
	if days < 0 {
		return nil, fmt.Errorf("%w: days must not be negative", filingdomain.ErrValidation)
	}
	return s.repo.ListDueWithin(ctx, s.db, orgID, s.clock.Now(), days)
}
