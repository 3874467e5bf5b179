package app

import (
	"context"
	"strings"

	"github.com/example/dispatch/internal/models"
	"github.com/example/dispatch/internal/ports/primary"
	"github.com/example/dispatch/internal/ports/secondary"
)

// DirectoryServiceImpl implements the DirectoryService interface.
type DirectoryServiceImpl struct {
	orderRepo    secondary.ServiceOrderRepository
	operatorRepo secondary.OperatorRepository
}

// NewDirectoryService creates a new DirectoryService with injected dependencies.
func NewDirectoryService(orderRepo secondary.ServiceOrderRepository, operatorRepo secondary.OperatorRepository) *DirectoryServiceImpl {
	return &DirectoryServiceImpl{orderRepo: orderRepo, operatorRepo: operatorRepo}
}

// Ensure DirectoryServiceImpl implements the interface
var _ primary.DirectoryService = (*DirectoryServiceImpl)(nil)

// RegisterServiceOrder adds or refreshes a service order.
func (s *DirectoryServiceImpl) RegisterServiceOrder(ctx context.Context, req primary.RegisterServiceOrderRequest) error {
	id := strings.TrimSpace(req.ServiceOrderID)
	if id == "" {
		return models.NewValidationError("serviceOrderId", "is required")
	}
	country, err := parseCountry(req.CountryCode)
	if err != nil {
		return err
	}
	return s.orderRepo.Upsert(ctx, &secondary.ServiceOrderRecord{
		ID:           id,
		CountryCode:  country,
		BusinessUnit: strings.TrimSpace(req.BusinessUnit),
	})
}

// RegisterOperator adds or refreshes an operator.
func (s *DirectoryServiceImpl) RegisterOperator(ctx context.Context, req primary.RegisterOperatorRequest) error {
	id := strings.TrimSpace(req.OperatorID)
	if id == "" {
		return models.NewValidationError("operatorId", "is required")
	}
	if strings.EqualFold(id, models.SystemActorID) {
		return models.NewValidationError("operatorId", "SYSTEM is reserved")
	}
	country, err := parseCountry(req.CountryCode)
	if err != nil {
		return err
	}
	types := make([]models.TaskType, 0, len(req.TaskTypes))
	for _, t := range req.TaskTypes {
		parsed, err := models.ParseTaskType(string(t))
		if err != nil {
			return err
		}
		types = append(types, parsed)
	}
	return s.operatorRepo.Upsert(ctx, &secondary.OperatorRecord{
		ID:          id,
		Name:        strings.TrimSpace(req.Name),
		CountryCode: country,
		TaskTypes:   types,
		Active:      !req.Inactive,
	})
}

// ListOperators returns the operators of a country.
func (s *DirectoryServiceImpl) ListOperators(ctx context.Context, countryCode string) ([]*primary.Operator, error) {
	country, err := parseCountry(countryCode)
	if err != nil {
		return nil, err
	}
	records, err := s.operatorRepo.ListByCountry(ctx, country)
	if err != nil {
		return nil, err
	}
	operators := make([]*primary.Operator, len(records))
	for i, r := range records {
		operators[i] = &primary.Operator{
			ID:          r.ID,
			Name:        r.Name,
			CountryCode: r.CountryCode,
			TaskTypes:   r.TaskTypes,
			Active:      r.Active,
		}
	}
	return operators, nil
}

func parseCountry(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 || code[0] < 'A' || code[0] > 'Z' || code[1] < 'A' || code[1] > 'Z' {
		return "", models.NewValidationError("countryCode", "must be a two-letter country code")
	}
	return code, nil
}
