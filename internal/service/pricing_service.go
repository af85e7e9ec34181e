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

// PricingService owns task types and their location-scoped price history.
type PricingService interface {
	CreateTaskType(ctx context.Context, req CreateTaskTypeRequest) (*domain.TaskType, error)
	GetTaskType(ctx context.Context, id int64) (*domain.TaskType, error)
	ListTaskTypes(ctx context.Context) ([]*domain.TaskType, error)

	SetPrice(ctx context.Context, req SetPriceRequest) (*SetPriceResponse, error)
	PriceAt(ctx context.Context, req PriceAtRequest) (*PriceView, error)
	ListPrices(ctx context.Context, taskTypeID, locationID int64) ([]PriceView, error)
}

type CreateTaskTypeRequest struct {
	Name string  // required, unique
	Role *string // optional
}

// SetPriceRequest supersedes the active price of (TaskTypeID, LocationID, Unit).
// An empty Unit is the "no unit" series; a nil EffectiveDate means today.
type SetPriceRequest struct {
	TaskTypeID    int64
	LocationID    int64
	Unit          string
	Amount        decimal.Decimal
	EffectiveDate *time.Time
}

type SetPriceResponse struct {
	Price      PriceView
	Superseded []PriceView
}

type PriceAtRequest struct {
	TaskTypeID int64
	LocationID int64
	Unit       string
	On         *time.Time // nil means today
}

// PriceView is a price with its state as of the request day.
type PriceView struct {
	*domain.Price
	State domain.PriceState
}

type PricingOption func(*pricingService)

// WithClock replaces time.Now for default dates and price states.
func WithClock(now func() time.Time) PricingOption {
	return func(s *pricingService) { s.now = now }
}

type pricingService struct {
	taskTypes repository.TaskTypesRepository
	prices    repository.PricesRepository
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewPricingService(taskTypes repository.TaskTypesRepository, prices repository.PricesRepository, publisher EventPublisher, logger *zap.Logger, opts ...PricingOption) PricingService {
	s := &pricingService{
		taskTypes: taskTypes,
		prices:    prices,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *pricingService) today() time.Time { return domain.Day(s.now()) }

func (s *pricingService) view(p *domain.Price) PriceView {
	return PriceView{Price: p, State: p.State(s.today())}
}

func priceKey(taskTypeID, locationID int64, unit string) (domain.PriceKey, error) {
	if err := requireID("task_type_id", taskTypeID); err != nil {
		return domain.PriceKey{}, err
	}
	if err := requireID("location_id", locationID); err != nil {
		return domain.PriceKey{}, err
	}
	unit = strings.TrimSpace(unit)
	key := domain.PriceKey{
		TaskTypeID: taskTypeID,
		LocationID: locationID,
		Unit:       sql.NullString{String: unit, Valid: unit != ""},
	}
	return key, domain.ValidateUnit(key.Unit)
}

// ============================================
// Task types
// ============================================

func (s *pricingService) CreateTaskType(ctx context.Context, req CreateTaskTypeRequest) (*domain.TaskType, error) {
	tt := &domain.TaskType{Name: strings.TrimSpace(req.Name), Role: nullString(req.Role)}
	if err := tt.Validate(); err != nil {
		return nil, err
	}
	out, err := s.taskTypes.CreateTaskType(ctx, tt)
	if err != nil {
		logFailure(s.logger, "CreateTaskType failed", err, zap.String("name", tt.Name))
		return nil, err
	}
	return out, nil
}

func (s *pricingService) GetTaskType(ctx context.Context, id int64) (*domain.TaskType, error) {
	if err := requireID("task_type_id", id); err != nil {
		return nil, err
	}
	out, err := s.taskTypes.GetTaskType(ctx, id)
	if err != nil {
		logFailure(s.logger, "GetTaskType failed", err, zap.Int64("task_type_id", id))
		return nil, err
	}
	return out, nil
}

func (s *pricingService) ListTaskTypes(ctx context.Context) ([]*domain.TaskType, error) {
	out, err := s.taskTypes.ListTaskTypes(ctx)
	if err != nil {
		s.logger.Error("ListTaskTypes failed", zap.Error(err))
		return nil, err
	}
	return out, nil
}

// ============================================
// Prices
// ============================================

func (s *pricingService) SetPrice(ctx context.Context, req SetPriceRequest) (*SetPriceResponse, error) {
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	key, err := priceKey(req.TaskTypeID, req.LocationID, req.Unit)
	if err != nil {
		return nil, err
	}
	eff := s.today()
	if req.EffectiveDate != nil {
		eff = domain.Day(*req.EffectiveDate)
	}

	res, err := s.prices.SetPrice(ctx, repository.SetPriceParams{Key: key, Amount: req.Amount, Effective: eff})
	if err != nil {
		logFailure(s.logger, "SetPrice failed", err,
			zap.Stringer("key", key),
			zap.String("amount", req.Amount.String()),
			zap.String("effective", eff.Format(domain.DateLayout)),
		)
		return nil, err
	}

	out := &SetPriceResponse{Price: s.view(res.Price)}
	superseded := make([]int64, 0, len(res.Superseded))
	for _, p := range res.Superseded {
		out.Superseded = append(out.Superseded, s.view(p))
		superseded = append(superseded, p.ID)
	}
	publish(ctx, s.publisher, s.logger, domain.NewEvent(domain.EventPriceSet, res.Price.ID, map[string]any{
		"task_type_id": key.TaskTypeID,
		"location_id":  key.LocationID,
		"unit":         key.Unit.String,
		"amount":       res.Price.Amount.StringFixed(2),
		"valid_from":   eff.Format(domain.DateLayout),
		"superseded":   superseded,
	}))
	return out, nil
}

func (s *pricingService) PriceAt(ctx context.Context, req PriceAtRequest) (*PriceView, error) {
	key, err := priceKey(req.TaskTypeID, req.LocationID, req.Unit)
	if err != nil {
		return nil, err
	}
	on := s.today()
	if req.On != nil {
		on = domain.Day(*req.On)
	}
	p, err := s.prices.PriceAt(ctx, key, on)
	if err != nil {
		logFailure(s.logger, "PriceAt failed", err,
			zap.Stringer("key", key),
			zap.String("on", on.Format(domain.DateLayout)),
		)
		return nil, err
	}
	v := s.view(p)
	return &v, nil
}

func (s *pricingService) ListPrices(ctx context.Context, taskTypeID, locationID int64) ([]PriceView, error) {
	if err := requireID("task_type_id", taskTypeID); err != nil {
		return nil, err
	}
	if err := requireID("location_id", locationID); err != nil {
		return nil, err
	}
	prices, err := s.prices.ListPrices(ctx, taskTypeID, locationID)
	if err != nil {
		logFailure(s.logger, "ListPrices failed", err,
			zap.Int64("task_type_id", taskTypeID),
			zap.Int64("location_id", locationID),
		)
		return nil, err
	}
	out := make([]PriceView, 0, len(prices))
	for _, p := range prices {
		out = append(out, s.view(p))
	}
	return out, nil
}
