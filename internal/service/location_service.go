package service

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"go.uber.org/zap"

	"obra-data/internal/domain"
	"obra-data/internal/repository"
)

// LocationService manages the polymorphic location catalog.
type LocationService interface {
	CreateLocation(ctx context.Context, req CreateLocationRequest) (*domain.Location, error)
	GetLocation(ctx context.Context, id int64) (*domain.Location, error)
	// ListLocationsByKind returns a restartable sequence ordered by id.
	ListLocationsByKind(ctx context.Context, siteID int64, kind domain.LocationKind) (iter.Seq2[*domain.Location, error], error)
	DeleteLocation(ctx context.Context, id int64) error
}

type CreateLocationRequest struct {
	Kind        domain.LocationKind
	DisplayName string
	SiteID      int64
	Attachment  domain.Attachment
}

type locationService struct {
	locations repository.LocationsRepository
	hierarchy repository.HierarchyRepository
	publisher EventPublisher
	logger    *zap.Logger
}

func NewLocationService(locations repository.LocationsRepository, hierarchy repository.HierarchyRepository, publisher EventPublisher, logger *zap.Logger) LocationService {
	return &locationService{locations: locations, hierarchy: hierarchy, publisher: publisher, logger: logger}
}

func (s *locationService) CreateLocation(ctx context.Context, req CreateLocationRequest) (*domain.Location, error) {
	loc := &domain.Location{
		Kind:        req.Kind,
		DisplayName: strings.TrimSpace(req.DisplayName),
		SiteID:      req.SiteID,
		Attachment:  req.Attachment,
	}
	if err := loc.Validate(); err != nil {
		s.logger.Warn("CreateLocation rejected",
			zap.String("kind", string(req.Kind)),
			zap.Int64("site_id", req.SiteID),
			zap.Error(err),
		)
		return nil, err
	}

	created, err := s.locations.CreateLocation(ctx, loc)
	if err != nil {
		logFailure(s.logger, "CreateLocation failed", err,
			zap.String("kind", string(req.Kind)),
			zap.Int64("site_id", req.SiteID),
		)
		return nil, err
	}

	publish(ctx, s.publisher, s.logger, domain.NewEvent(domain.EventLocationCreated, created.ID, map[string]any{
		"kind":    string(created.Kind),
		"site_id": created.SiteID,
	}))
	return created, nil
}

func (s *locationService) GetLocation(ctx context.Context, id int64) (*domain.Location, error) {
	if err := requireID("location_id", id); err != nil {
		return nil, err
	}
	loc, err := s.locations.GetLocation(ctx, id)
	if err != nil {
		logFailure(s.logger, "GetLocation failed", err, zap.Int64("location_id", id))
		return nil, err
	}
	return loc, nil
}

func (s *locationService) ListLocationsByKind(ctx context.Context, siteID int64, kind domain.LocationKind) (iter.Seq2[*domain.Location, error], error) {
	if err := requireID("site_id", siteID); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown location kind %q: %w", kind, domain.ErrInvalidVariant)
	}
	if _, err := s.hierarchy.GetSite(ctx, siteID); err != nil {
		logFailure(s.logger, "ListLocationsByKind failed", err, zap.Int64("site_id", siteID))
		return nil, err
	}
	seq := s.locations.ListLocationsByKind(ctx, siteID, kind)
	return func(yield func(*domain.Location, error) bool) {
		for loc, err := range seq {
			if err != nil {
				logFailure(s.logger, "ListLocationsByKind failed", err,
					zap.Int64("site_id", siteID),
					zap.String("kind", string(kind)),
				)
			}
			if !yield(loc, err) {
				return
			}
		}
	}, nil
}

func (s *locationService) DeleteLocation(ctx context.Context, id int64) error {
	if err := requireID("location_id", id); err != nil {
		return err
	}
	deleted, err := s.locations.DeleteLocation(ctx, id)
	if err != nil {
		logFailure(s.logger, "DeleteLocation failed", err, zap.Int64("location_id", id))
		return err
	}
	publish(ctx, s.publisher, s.logger, domain.NewEvent(domain.EventLocationDeleted, deleted.ID, map[string]any{
		"kind":    string(deleted.Kind),
		"site_id": deleted.SiteID,
	}))
	return nil
}
