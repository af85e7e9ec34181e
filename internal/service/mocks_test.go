package service

import (
	"context"
	"database/sql"
	"iter"
	"time"

	"github.com/stretchr/testify/mock"

	"obra-data/internal/domain"
	"obra-data/internal/repository"
)

// MockHierarchyRepository only implements what the service tests call; the
// embedded interface panics on anything else.
type MockHierarchyRepository struct {
	repository.HierarchyRepository
	mock.Mock
}

func (m *MockHierarchyRepository) CreateSite(ctx context.Context, name string) (*domain.Site, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Site), args.Error(1)
}

func (m *MockHierarchyRepository) GetSite(ctx context.Context, id int64) (*domain.Site, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Site), args.Error(1)
}

func (m *MockHierarchyRepository) SiteOf(ctx context.Context, level domain.Level, id int64) (int64, error) {
	args := m.Called(ctx, level, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockHierarchyRepository) CreateModule(ctx context.Context, siteID int64, name string) (*domain.Module, error) {
	args := m.Called(ctx, siteID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Module), args.Error(1)
}

func (m *MockHierarchyRepository) ListModules(ctx context.Context, siteID int64) ([]*domain.Module, error) {
	args := m.Called(ctx, siteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Module), args.Error(1)
}

func (m *MockHierarchyRepository) RenameModule(ctx context.Context, id int64, name string) (*domain.Module, error) {
	args := m.Called(ctx, id, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Module), args.Error(1)
}

func (m *MockHierarchyRepository) CreateBlock(ctx context.Context, moduleID int64, name string) (*domain.Block, error) {
	args := m.Called(ctx, moduleID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Block), args.Error(1)
}

func (m *MockHierarchyRepository) ListBlocks(ctx context.Context, moduleID int64) ([]*domain.Block, error) {
	args := m.Called(ctx, moduleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Block), args.Error(1)
}

func (m *MockHierarchyRepository) CreateFloor(ctx context.Context, blockID int64, name string) (*domain.Floor, error) {
	args := m.Called(ctx, blockID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Floor), args.Error(1)
}

func (m *MockHierarchyRepository) ListFloors(ctx context.Context, blockID int64) ([]*domain.Floor, error) {
	args := m.Called(ctx, blockID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Floor), args.Error(1)
}

func (m *MockHierarchyRepository) CreateApartment(ctx context.Context, floorID int64, name string) (*domain.Apartment, error) {
	args := m.Called(ctx, floorID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Apartment), args.Error(1)
}

func (m *MockHierarchyRepository) ListApartments(ctx context.Context, floorID int64) ([]*domain.Apartment, error) {
	args := m.Called(ctx, floorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Apartment), args.Error(1)
}

func (m *MockHierarchyRepository) ResolveApartmentPath(ctx context.Context, apartmentID int64) (*domain.ApartmentPath, error) {
	args := m.Called(ctx, apartmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ApartmentPath), args.Error(1)
}

func (m *MockHierarchyRepository) DeleteBlock(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type MockLocationsRepository struct {
	mock.Mock
}

func (m *MockLocationsRepository) CreateLocation(ctx context.Context, loc *domain.Location) (*domain.Location, error) {
	args := m.Called(ctx, loc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Location), args.Error(1)
}

func (m *MockLocationsRepository) GetLocation(ctx context.Context, id int64) (*domain.Location, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Location), args.Error(1)
}

func (m *MockLocationsRepository) ListLocationsByKind(ctx context.Context, siteID int64, kind domain.LocationKind) iter.Seq2[*domain.Location, error] {
	args := m.Called(ctx, siteID, kind)
	return args.Get(0).(iter.Seq2[*domain.Location, error])
}

func (m *MockLocationsRepository) DeleteLocation(ctx context.Context, id int64) (*domain.Location, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Location), args.Error(1)
}

type MockTaskTypesRepository struct {
	mock.Mock
}

func (m *MockTaskTypesRepository) CreateTaskType(ctx context.Context, t *domain.TaskType) (*domain.TaskType, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TaskType), args.Error(1)
}

func (m *MockTaskTypesRepository) GetTaskType(ctx context.Context, id int64) (*domain.TaskType, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TaskType), args.Error(1)
}

func (m *MockTaskTypesRepository) ListTaskTypes(ctx context.Context) ([]*domain.TaskType, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.TaskType), args.Error(1)
}

type MockPricesRepository struct {
	mock.Mock
}

func (m *MockPricesRepository) SetPrice(ctx context.Context, p repository.SetPriceParams) (*repository.SetPriceResult, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.SetPriceResult), args.Error(1)
}

func (m *MockPricesRepository) PriceAt(ctx context.Context, key domain.PriceKey, on time.Time) (*domain.Price, error) {
	args := m.Called(ctx, key, on)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Price), args.Error(1)
}

func (m *MockPricesRepository) GetPrice(ctx context.Context, id int64) (*domain.Price, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Price), args.Error(1)
}

func (m *MockPricesRepository) ListPrices(ctx context.Context, taskTypeID, locationID int64) ([]*domain.Price, error) {
	args := m.Called(ctx, taskTypeID, locationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Price), args.Error(1)
}

type MockResponsiblesRepository struct {
	mock.Mock
}

func (m *MockResponsiblesRepository) CreateResponsible(ctx context.Context, r *domain.Responsible) (*domain.Responsible, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Responsible), args.Error(1)
}

func (m *MockResponsiblesRepository) GetResponsible(ctx context.Context, id int64) (*domain.Responsible, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Responsible), args.Error(1)
}

func (m *MockResponsiblesRepository) ListResponsibles(ctx context.Context, siteID sql.NullInt64) ([]*domain.Responsible, error) {
	args := m.Called(ctx, siteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Responsible), args.Error(1)
}

// MockTasksRepository applies the allocation check it is handed to the
// status it is told to return, like the Postgres implementation does.
type MockTasksRepository struct {
	mock.Mock
}

func (m *MockTasksRepository) CreateTask(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Task), args.Error(1)
}

func (m *MockTasksRepository) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Task), args.Error(1)
}

func (m *MockTasksRepository) ListTasks(ctx context.Context, locationID sql.NullInt64) ([]*domain.Task, error) {
	args := m.Called(ctx, locationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Task), args.Error(1)
}

func (m *MockTasksRepository) ListAssignments(ctx context.Context, taskID int64) ([]domain.Assignment, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Assignment), args.Error(1)
}

func settleMock(args mock.Arguments, check repository.AllocationCheck) (domain.AllocationStatus, error) {
	st := args.Get(0).(domain.AllocationStatus)
	if err := args.Error(1); err != nil {
		return domain.AllocationStatus{}, err
	}
	if check != nil {
		if err := check(st); err != nil {
			return domain.AllocationStatus{}, err
		}
	}
	return st, nil
}

func (m *MockTasksRepository) AssignResponsible(ctx context.Context, a domain.Assignment, check repository.AllocationCheck) (domain.AllocationStatus, error) {
	return settleMock(m.Called(ctx, a), check)
}

func (m *MockTasksRepository) RemoveResponsible(ctx context.Context, taskID, responsibleID int64, check repository.AllocationCheck) (domain.AllocationStatus, error) {
	return settleMock(m.Called(ctx, taskID, responsibleID), check)
}

func (m *MockTasksRepository) ReplaceAssignments(ctx context.Context, taskID int64, as []domain.Assignment, check repository.AllocationCheck) (domain.AllocationStatus, error) {
	return settleMock(m.Called(ctx, taskID, as), check)
}

func (m *MockTasksRepository) AllocationStatus(ctx context.Context, taskID int64) (domain.AllocationStatus, error) {
	args := m.Called(ctx, taskID)
	return args.Get(0).(domain.AllocationStatus), args.Error(1)
}

// recordingPublisher keeps published events in order.
type recordingPublisher struct {
	events []domain.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.Event) error {
	p.events = append(p.events, ev)
	return p.err
}
