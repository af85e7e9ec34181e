package repository

import (
	"context"
	"database/sql"
	"iter"
	"time"

	"github.com/shopspring/decimal"

	"obra-data/internal/domain"
)

// HierarchyRepository stores the Site > Module > Block > Floor > Apartment tree.
type HierarchyRepository interface {
	CreateSite(ctx context.Context, name string) (*domain.Site, error)
	GetSite(ctx context.Context, id int64) (*domain.Site, error)
	ListSites(ctx context.Context) ([]*domain.Site, error)
	RenameSite(ctx context.Context, id int64, name string) (*domain.Site, error)
	DeleteSite(ctx context.Context, id int64) error

	CreateModule(ctx context.Context, siteID int64, name string) (*domain.Module, error)
	GetModule(ctx context.Context, id int64) (*domain.Module, error)
	ListModules(ctx context.Context, siteID int64) ([]*domain.Module, error)
	RenameModule(ctx context.Context, id int64, name string) (*domain.Module, error)
	DeleteModule(ctx context.Context, id int64) error

	CreateBlock(ctx context.Context, moduleID int64, name string) (*domain.Block, error)
	GetBlock(ctx context.Context, id int64) (*domain.Block, error)
	ListBlocks(ctx context.Context, moduleID int64) ([]*domain.Block, error)
	RenameBlock(ctx context.Context, id int64, name string) (*domain.Block, error)
	DeleteBlock(ctx context.Context, id int64) error

	CreateFloor(ctx context.Context, blockID int64, name string) (*domain.Floor, error)
	GetFloor(ctx context.Context, id int64) (*domain.Floor, error)
	ListFloors(ctx context.Context, blockID int64) ([]*domain.Floor, error)
	RenameFloor(ctx context.Context, id int64, name string) (*domain.Floor, error)
	DeleteFloor(ctx context.Context, id int64) error

	CreateApartment(ctx context.Context, floorID int64, name string) (*domain.Apartment, error)
	GetApartment(ctx context.Context, id int64) (*domain.Apartment, error)
	ListApartments(ctx context.Context, floorID int64) ([]*domain.Apartment, error)
	RenameApartment(ctx context.Context, id int64, name string) (*domain.Apartment, error)
	DeleteApartment(ctx context.Context, id int64) error

	ResolveApartmentPath(ctx context.Context, apartmentID int64) (*domain.ApartmentPath, error)
	// SiteOf returns the site a module, block, floor or apartment belongs to.
	SiteOf(ctx context.Context, level domain.Level, id int64) (int64, error)
}

// LocationsRepository stores Locations as a base row plus one extension row.
type LocationsRepository interface {
	// CreateLocation checks the attachment belongs to loc.SiteID and inserts
	// both rows atomically.
	CreateLocation(ctx context.Context, loc *domain.Location) (*domain.Location, error)
	GetLocation(ctx context.Context, id int64) (*domain.Location, error)
	// ListLocationsByKind yields full locations ordered by id. Each range over
	// the sequence re-reads the store from the start.
	ListLocationsByKind(ctx context.Context, siteID int64, kind domain.LocationKind) iter.Seq2[*domain.Location, error]
	DeleteLocation(ctx context.Context, id int64) (*domain.Location, error)
}

type ResponsiblesRepository interface {
	CreateResponsible(ctx context.Context, r *domain.Responsible) (*domain.Responsible, error)
	GetResponsible(ctx context.Context, id int64) (*domain.Responsible, error)
	ListResponsibles(ctx context.Context, siteID sql.NullInt64) ([]*domain.Responsible, error)
}

type TaskTypesRepository interface {
	CreateTaskType(ctx context.Context, t *domain.TaskType) (*domain.TaskType, error)
	GetTaskType(ctx context.Context, id int64) (*domain.TaskType, error)
	ListTaskTypes(ctx context.Context) ([]*domain.TaskType, error)
}

// SetPriceParams is one price change for a key, effective from a day on.
type SetPriceParams struct {
	Key       domain.PriceKey
	Amount    decimal.Decimal
	Effective time.Time
}

// SetPriceResult is the inserted price and the rows it closed.
type SetPriceResult struct {
	Price      *domain.Price
	Superseded []*domain.Price
}

type PricesRepository interface {
	SetPrice(ctx context.Context, p SetPriceParams) (*SetPriceResult, error)
	PriceAt(ctx context.Context, key domain.PriceKey, on time.Time) (*domain.Price, error)
	GetPrice(ctx context.Context, id int64) (*domain.Price, error)
	ListPrices(ctx context.Context, taskTypeID, locationID int64) ([]*domain.Price, error)
}

// AllocationCheck runs inside an assignment transaction after the change;
// a non-nil error rolls the change back.
type AllocationCheck func(domain.AllocationStatus) error

type TasksRepository interface {
	CreateTask(ctx context.Context, t *domain.Task) (*domain.Task, error)
	GetTask(ctx context.Context, id int64) (*domain.Task, error)
	ListTasks(ctx context.Context, locationID sql.NullInt64) ([]*domain.Task, error)

	ListAssignments(ctx context.Context, taskID int64) ([]domain.Assignment, error)
	AssignResponsible(ctx context.Context, a domain.Assignment, check AllocationCheck) (domain.AllocationStatus, error)
	RemoveResponsible(ctx context.Context, taskID, responsibleID int64, check AllocationCheck) (domain.AllocationStatus, error)
	ReplaceAssignments(ctx context.Context, taskID int64, as []domain.Assignment, check AllocationCheck) (domain.AllocationStatus, error)
	AllocationStatus(ctx context.Context, taskID int64) (domain.AllocationStatus, error)
}
