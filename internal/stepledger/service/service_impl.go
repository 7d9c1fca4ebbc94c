package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/complyops/taxtrail/internal/clock"
	"github.com/complyops/taxtrail/internal/stepledger/domain"
	"github.com/complyops/taxtrail/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("stepledger.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Begin(ctx context.Context, orgID, filingID snowflake.ID, stepType domain.StepType, performedBy string) (*domain.FilingStep, error) {
	if filingID == 0 || orgID == 0 {
		return nil, domain.ErrInvalidFiling
	}
	if !domain.ValidStepType(stepType) {
		return nil, domain.ErrInvalidStepType
	}
	performedBy = strings.TrimSpace(performedBy)
	if performedBy == "" {
		return nil, domain.ErrInvalidActor
	}

	now := s.clock.Now()
	step := &domain.FilingStep{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		FilingID:    filingID,
		StepType:    stepType,
		Status:      domain.StepStatusInProgress,
		PerformedBy: performedBy,
		StartedAt:   now,
		CreatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, step); err != nil {
		return nil, err
	}
	return step, nil
}

func (s *Service) Complete(ctx context.Context, stepID snowflake.ID, changes map[string]domain.Change, comments string) error {
	return s.finish(ctx, stepID, func(step *domain.FilingStep) {
		step.Status = domain.StepStatusCompleted
		step.Changes = domain.ChangeSet(changes)
		if trimmed := strings.TrimSpace(comments); trimmed != "" {
			step.Comments = &trimmed
		}
	})
}

func (s *Service) Fail(ctx context.Context, stepID snowflake.ID, errorCode, errorMessage string) error {
	return s.finish(ctx, stepID, func(step *domain.FilingStep) {
		step.Status = domain.StepStatusFailed
		if errorCode != "" {
			step.ErrorCode = &errorCode
		}
		if errorMessage != "" {
			step.ErrorMessage = &errorMessage
		}
	})
}

func (s *Service) Skip(ctx context.Context, stepID snowflake.ID, comments string) error {
	return s.finish(ctx, stepID, func(step *domain.FilingStep) {
		step.Status = domain.StepStatusSkipped
		if trimmed := strings.TrimSpace(comments); trimmed != "" {
			step.Comments = &trimmed
		}
	})
}

func (s *Service) finish(ctx context.Context, stepID snowflake.ID, mutate func(*domain.FilingStep)) error {
	step, err := s.repo.FindByID(ctx, s.db, stepID)
	if err != nil {
		return err
	}
	if step == nil {
		return domain.ErrNotFound
	}
	if step.Status.Terminal() {
		return domain.ErrEntryImmutable
	}

	mutate(step)
	now := s.clock.Now()
	step.CompletedAt = &now

	affected, err := s.repo.FinishOpen(ctx, s.db, step)
	if err != nil {
		return err
	}
	if affected == 0 {
		// Lost the race against another writer closing the same entry.
		return domain.ErrEntryImmutable
	}
	return nil
}

func (s *Service) ListByFiling(ctx context.Context, orgID, filingID snowflake.ID) ([]domain.FilingStep, error) {
	if orgID == 0 || filingID == 0 {
		return nil, domain.ErrInvalidFiling
	}
	return s.repo.ListByFiling(ctx, s.db, orgID, filingID)
}

func (s *Service) ListByFilingPage(ctx context.Context, orgID, filingID snowflake.ID, pageToken string, pageSize int) ([]*domain.FilingStep, *pagination.PageInfo, error) {
	if orgID == 0 || filingID == 0 {
		return nil, nil, domain.ErrInvalidFiling
	}
	if pageSize <= 0 {
		pageSize = 50
	}

	var cursor *pagination.Cursor
	if pageToken != "" {
		decoded, err := pagination.DecodeCursor(pageToken)
		if err != nil {
			return nil, nil, domain.ErrInvalidPageToken
		}
		cursor = decoded
	}

	steps, err := s.repo.ListByFilingPage(ctx, s.db, orgID, filingID, cursor, pageSize)
	if err != nil {
		return nil, nil, err
	}

	pageInfo := pagination.BuildCursorPageInfo(steps, int32(pageSize), func(step *domain.FilingStep) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{
			ID:        step.ID.String(),
			CreatedAt: step.CreatedAt.Format(time.RFC3339Nano),
		})
		return token
	})
	if len(steps) > pageSize {
		steps = steps[:pageSize]
	}
	return steps, pageInfo, nil
}
