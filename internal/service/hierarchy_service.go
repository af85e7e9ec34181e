package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"obra-data/internal/domain"
	"obra-data/internal/repository"
)

// HierarchyService manages the Site > Module > Block > Floor > Apartment tree.
type HierarchyService interface {
	CreateSite(ctx context.Context, req CreateNodeRequest) (*domain.Site, error)
	GetSite(ctx context.Context, id int64) (*domain.Site, error)
	ListSites(ctx context.Context) ([]*domain.Site, error)
	RenameSite(ctx context.Context, req RenameNodeRequest) (*domain.Site, error)
	DeleteSite(ctx context.Context, id int64) error

	CreateModule(ctx context.Context, req CreateNodeRequest) (*domain.Module, error)
	GetModule(ctx context.Context, id int64) (*domain.Module, error)
	ListModules(ctx context.Context, siteID int64) ([]*domain.Module, error)
	RenameModule(ctx context.Context, req RenameNodeRequest) (*domain.Module, error)
	DeleteModule(ctx context.Context, id int64) error

	CreateBlock(ctx context.Context, req CreateNodeRequest) (*domain.Block, error)
	GetBlock(ctx context.Context, id int64) (*domain.Block, error)
	ListBlocks(ctx context.Context, moduleID int64) ([]*domain.Block, error)
	RenameBlock(ctx context.Context, req RenameNodeRequest) (*domain.Block, error)
	DeleteBlock(ctx context.Context, id int64) error

	CreateFloor(ctx context.Context, req CreateNodeRequest) (*domain.Floor, error)
	GetFloor(ctx context.Context, id int64) (*domain.Floor, error)
	ListFloors(ctx context.Context, blockID int64) ([]*domain.Floor, error)
	RenameFloor(ctx context.Context, req RenameNodeRequest) (*domain.Floor, error)
	DeleteFloor(ctx context.Context, id int64) error

	CreateApartment(ctx context.Context, req CreateNodeRequest) (*domain.Apartment, error)
	GetApartment(ctx context.Context, id int64) (*domain.Apartment, error)
	ListApartments(ctx context.Context, floorID int64) ([]*domain.Apartment, error)
	RenameApartment(ctx context.Context, req RenameNodeRequest) (*domain.Apartment, error)
	DeleteApartment(ctx context.Context, id int64) error

	ResolveApartmentPath(ctx context.Context, apartmentID int64) (*domain.ApartmentPath, error)
}

// CreateNodeRequest creates a node under ParentID (ignored for sites).
type CreateNodeRequest struct {
	ParentID int64
	Name     string
}

type RenameNodeRequest struct {
	ID   int64
	Name string
}

type hierarchyService struct {
	repo      repository.HierarchyRepository
	publisher EventPublisher
	logger    *zap.Logger
}

func NewHierarchyService(repo repository.HierarchyRepository, publisher EventPublisher, logger *zap.Logger) HierarchyService {
	return &hierarchyService{repo: repo, publisher: publisher, logger: logger}
}

func requireID(field string, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%s is required: %w", field, domain.ErrInvalidArgument)
	}
	return nil
}

func createNode[T any](ctx context.Context, s *hierarchyService, level domain.Level, req CreateNodeRequest,
	create func(ctx context.Context, parentID int64, name string) (T, error)) (T, error) {
	var zero T
	name := strings.TrimSpace(req.Name)
	if err := domain.ValidateName(level, name); err != nil {
		return zero, err
	}
	if parent, ok := level.Parent(); ok {
		if err := requireID(string(parent)+"_id", req.ParentID); err != nil {
			return zero, err
		}
	}
	out, err := create(ctx, req.ParentID, name)
	if err != nil {
		logFailure(s.logger, "Create "+string(level)+" failed", err,
			zap.Int64("parent_id", req.ParentID),
			zap.String("name", name),
		)
		return zero, err
	}
	return out, nil
}

func getNode[T any](ctx context.Context, s *hierarchyService, level domain.Level, id int64,
	get func(ctx context.Context, id int64) (T, error)) (T, error) {
	var zero T
	if err := requireID(string(level)+"_id", id); err != nil {
		return zero, err
	}
	out, err := get(ctx, id)
	if err != nil {
		logFailure(s.logger, "Get "+string(level)+" failed", err, zap.Int64("id", id))
		return zero, err
	}
	return out, nil
}

// listChildren 404s on an unknown parent instead of returning an empty list.
func listChildren[T any](ctx context.Context, s *hierarchyService, level domain.Level, parentID int64,
	list func(ctx context.Context, parentID int64) ([]T, error)) ([]T, error) {
	parent, _ := level.Parent()
	if err := requireID(string(parent)+"_id", parentID); err != nil {
		return nil, err
	}
	if parent == domain.LevelSite {
		if _, err := s.repo.GetSite(ctx, parentID); err != nil {
			logFailure(s.logger, "List "+string(level)+" failed", err, zap.Int64("parent_id", parentID))
			return nil, err
		}
	} else if _, err := s.repo.SiteOf(ctx, parent, parentID); err != nil {
		logFailure(s.logger, "List "+string(level)+" failed", err, zap.Int64("parent_id", parentID))
		return nil, err
	}
	out, err := list(ctx, parentID)
	if err != nil {
		logFailure(s.logger, "List "+string(level)+" failed", err, zap.Int64("parent_id", parentID))
		return nil, err
	}
	return out, nil
}

func renameNode[T any](ctx context.Context, s *hierarchyService, level domain.Level, req RenameNodeRequest,
	rename func(ctx context.Context, id int64, name string) (T, error)) (T, error) {
	var zero T
	if err := requireID(string(level)+"_id", req.ID); err != nil {
		return zero, err
	}
	name := strings.TrimSpace(req.Name)
	if err := domain.ValidateName(level, name); err != nil {
		return zero, err
	}
	out, err := rename(ctx, req.ID, name)
	if err != nil {
		logFailure(s.logger, "Rename "+string(level)+" failed", err,
			zap.Int64("id", req.ID),
			zap.String("name", name),
		)
		return zero, err
	}
	return out, nil
}

func (s *hierarchyService) deleteNode(ctx context.Context, level domain.Level, id int64, del func(ctx context.Context, id int64) error) error {
	if err := requireID(string(level)+"_id", id); err != nil {
		return err
	}
	if err := del(ctx, id); err != nil {
		logFailure(s.logger, "Delete "+string(level)+" failed", err, zap.Int64("id", id))
		return err
	}
	return nil
}

// ============================================
// Site
// ============================================

func (s *hierarchyService) CreateSite(ctx context.Context, req CreateNodeRequest) (*domain.Site, error) {
	site, err := createNode(ctx, s, domain.LevelSite, req, func(ctx context.Context, _ int64, name string) (*domain.Site, error) {
		return s.repo.CreateSite(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, s.publisher, s.logger, domain.NewEvent(domain.EventSiteCreated, site.ID, map[string]any{"name": site.Name}))
	return site, nil
}

func (s *hierarchyService) GetSite(ctx context.Context, id int64) (*domain.Site, error) {
	return getNode(ctx, s, domain.LevelSite, id, s.repo.GetSite)
}

func (s *hierarchyService) ListSites(ctx context.Context) ([]*domain.Site, error) {
	sites, err := s.repo.ListSites(ctx)
	if err != nil {
		s.logger.Error("ListSites failed", zap.Error(err))
		return nil, err
	}
	return sites, nil
}

func (s *hierarchyService) RenameSite(ctx context.Context, req RenameNodeRequest) (*domain.Site, error) {
	return renameNode(ctx, s, domain.LevelSite, req, s.repo.RenameSite)
}

func (s *hierarchyService) DeleteSite(ctx context.Context, id int64) error {
	return s.deleteNode(ctx, domain.LevelSite, id, s.repo.DeleteSite)
}

// ============================================
// Module
// ============================================

func (s *hierarchyService) CreateModule(ctx context.Context, req CreateNodeRequest) (*domain.Module, error) {
	return createNode(ctx, s, domain.LevelModule, req, s.repo.CreateModule)
}

func (s *hierarchyService) GetModule(ctx context.Context, id int64) (*domain.Module, error) {
	return getNode(ctx, s, domain.LevelModule, id, s.repo.GetModule)
}

func (s *hierarchyService) ListModules(ctx context.Context, siteID int64) ([]*domain.Module, error) {
	return listChildren(ctx, s, domain.LevelModule, siteID, s.repo.ListModules)
}

func (s *hierarchyService) RenameModule(ctx context.Context, req RenameNodeRequest) (*domain.Module, error) {
	return renameNode(ctx, s, domain.LevelModule, req, s.repo.RenameModule)
}

func (s *hierarchyService) DeleteModule(ctx context.Context, id int64) error {
	return s.deleteNode(ctx, domain.LevelModule, id, s.repo.DeleteModule)
}

// ============================================
// Block
// ============================================

func (s *hierarchyService) CreateBlock(ctx context.Context, req CreateNodeRequest) (*domain.Block, error) {
	return createNode(ctx, s, domain.LevelBlock, req, s.repo.CreateBlock)
}

func (s *hierarchyService) GetBlock(ctx context.Context, id int64) (*domain.Block, error) {
	return getNode(ctx, s, domain.LevelBlock, id, s.repo.GetBlock)
}

func (s *hierarchyService) ListBlocks(ctx context.Context, moduleID int64) ([]*domain.Block, error) {
	return listChildren(ctx, s, domain.LevelBlock, moduleID, s.repo.ListBlocks)
}

func (s *hierarchyService) RenameBlock(ctx context.Context, req RenameNodeRequest) (*domain.Block, error) {
	return renameNode(ctx, s, domain.LevelBlock, req, s.repo.RenameBlock)
}

func (s *hierarchyService) DeleteBlock(ctx context.Context, id int64) error {
	return s.deleteNode(ctx, domain.LevelBlock, id, s.repo.DeleteBlock)
}

// ============================================
// Floor
// ============================================

func (s *hierarchyService) CreateFloor(ctx context.Context, req CreateNodeRequest) (*domain.Floor, error) {
	return createNode(ctx, s, domain.LevelFloor, req, s.repo.CreateFloor)
}

func (s *hierarchyService) GetFloor(ctx context.Context, id int64) (*domain.Floor, error) {
	return getNode(ctx, s, domain.LevelFloor, id, s.repo.GetFloor)
}

func (s *hierarchyService) ListFloors(ctx context.Context, blockID int64) ([]*domain.Floor, error) {
	return listChildren(ctx, s, domain.LevelFloor, blockID, s.repo.ListFloors)
}

func (s *hierarchyService) RenameFloor(ctx context.Context, req RenameNodeRequest) (*domain.Floor, error) {
	return renameNode(ctx, s, domain.LevelFloor, req, s.repo.RenameFloor)
}

func (s *hierarchyService) DeleteFloor(ctx context.Context, id int64) error {
	return s.deleteNode(ctx, domain.LevelFloor, id, s.repo.DeleteFloor)
}

// ============================================
// Apartment
// ============================================

func (s *hierarchyService) CreateApartment(ctx context.Context, req CreateNodeRequest) (*domain.Apartment, error) {
	return createNode(ctx, s, domain.LevelApartment, req, s.repo.CreateApartment)
}

func (s *hierarchyService) GetApartment(ctx context.Context, id int64) (*domain.Apartment, error) {
	return getNode(ctx, s, domain.LevelApartment, id, s.repo.GetApartment)
}

func (s *hierarchyService) ListApartments(ctx context.Context, floorID int64) ([]*domain.Apartment, error) {
	return listChildren(ctx, s, domain.LevelApartment, floorID, s.repo.ListApartments)
}

func (s *hierarchyService) RenameApartment(ctx context.Context, req RenameNodeRequest) (*domain.Apartment, error) {
	return renameNode(ctx, s, domain.LevelApartment, req, s.repo.RenameApartment)
}

func (s *hierarchyService) DeleteApartment(ctx context.Context, id int64) error {
	return s.deleteNode(ctx, domain.LevelApartment, id, s.repo.DeleteApartment)
}

func (s *hierarchyService) ResolveApartmentPath(ctx context.Context, apartmentID int64) (*domain.ApartmentPath, error) {
	return getNode(ctx, s, domain.LevelApartment, apartmentID, s.repo.ResolveApartmentPath)
}
