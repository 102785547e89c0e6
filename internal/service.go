package internal

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/DrGermanius/orderingest/internal/ingest"
	"github.com/DrGermanius/orderingest/internal/model"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

type IService interface {
	Ingest(context.Context, ingest.Payload) (model.IngestionResult, error)
	GetOrder(context.Context, string) (model.Order, error)
	GetOrders(context.Context, model.OrderFilter) ([]model.Order, error)
	Ready(context.Context) error
}

type Ingester interface {
	Ingest(context.Context, ingest.Payload) (model.IngestionResult, error)
}

type Service struct {
	Repository IRepository
	Ingester   Ingester
	logger     *zap.SugaredLogger
}

func NewService(repository IRepository, ingester Ingester, logger *zap.SugaredLogger) *Service {
	return &Service{Repository: repository, Ingester: ingester, logger: logger}
}

func (s Service) Ingest(ctx context.Context, p ingest.Payload) (model.IngestionResult, error) {
	return s.Ingester.Ingest(ctx, p)
}

func (s Service) GetOrder(ctx context.Context, orderID string) (model.Order, error) {
	return s.Repository.GetOrderByOrderID(ctx, orderID)
}

func (s Service) GetOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error) {
	if f.Skip < 0 {
		return nil, fmt.Errorf("%w: skip must not be negative", ErrInvalidFilter)
	}
	if f.Limit < 0 || f.Limit > maxListLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidFilter, maxListLimit)
	}
	if f.Limit == 0 {
		f.Limit = defaultListLimit
	}
	if f.Status != "" && !model.IsValidStatus(f.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, f.Status)
	}

	orders, err := s.Repository.ListOrders(ctx, f)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}

func (s Service) Ready(ctx context.Context) error {
	if err := s.Repository.Ping(ctx); err != nil {
		s.logger.Warnf("store is not ready: %s", err.Error())
		return err
	}
	return nil
}
