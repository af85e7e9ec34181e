package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"obra-data/internal/domain"
	"obra-data/internal/repository"
)

// ResponsibleService is the worker registry.
type ResponsibleService interface {
	CreateResponsible(ctx context.Context, req CreateResponsibleRequest) (*domain.Responsible, error)
	GetResponsible(ctx context.Context, id int64) (*domain.Responsible, error)
	ListResponsibles(ctx context.Context, req ListResponsiblesRequest) ([]*domain.Responsible, error)
}

type CreateResponsibleRequest struct {
	Name          string           // required, unique
	Registration  *decimal.Decimal // optional
	Role          *string          // optional
	AdmissionDate *time.Time       // optional
	Status        *string          // optional
	SalaryTier    *decimal.Decimal // optional, >= 0
	SiteID        *int64           // optional
}

type ListResponsiblesRequest struct {
	SiteID *int64 // optional, nil lists every site
}

type responsibleService struct {
	repo   repository.ResponsiblesRepository
	logger *zap.Logger
}

func NewResponsibleService(repo repository.ResponsiblesRepository, logger *zap.Logger) ResponsibleService {
	return &responsibleService{repo: repo, logger: logger}
}

func (s *responsibleService) CreateResponsible(ctx context.Context, req CreateResponsibleRequest) (*domain.Responsible, error) {
	r := &domain.Responsible{
		Name:          strings.TrimSpace(req.Name),
		Registration:  nullDecimal(req.Registration),
		Role:          nullString(req.Role),
		AdmissionDate: nullDay(req.AdmissionDate),
		Status:        nullString(req.Status),
		SalaryTier:    nullDecimal(req.SalaryTier),
		SiteID:        nullInt64(req.SiteID),
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	out, err := s.repo.CreateResponsible(ctx, r)
	if err != nil {
		logFailure(s.logger, "CreateResponsible failed", err, zap.String("name", r.Name))
		return nil, err
	}
	return out, nil
}

func (s *responsibleService) GetResponsible(ctx context.Context, id int64) (*domain.Responsible, error) {
	if err := requireID("responsible_id", id); err != nil {
		return nil, err
	}
	out, err := s.repo.GetResponsible(ctx, id)
	if err != nil {
		logFailure(s.logger, "GetResponsible failed", err, zap.Int64("responsible_id", id))
		return nil, err
	}
	return out, nil
}

func (s *responsibleService) ListResponsibles(ctx context.Context, req ListResponsiblesRequest) ([]*domain.Responsible, error) {
	var site sql.NullInt64
	if req.SiteID != nil {
		if err := requireID("site_id", *req.SiteID); err != nil {
			return nil, err
		}
		site = nullInt64(req.SiteID)
	}
	out, err := s.repo.ListResponsibles(ctx, site)
	if err != nil {
		logFailure(s.logger, "ListResponsibles failed", err)
		return nil, err
	}
	return out, nil
}
