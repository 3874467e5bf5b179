package primary

import (
	"context"

	"github.com/example/dispatch/internal/models"
)

// DirectoryService defines the primary port for maintaining the service order
// mirror and the operator directory.
type DirectoryService interface {
	// RegisterServiceOrder adds or refreshes a service order.
	RegisterServiceOrder(ctx context.Context, req RegisterServiceOrderRequest) error

	// RegisterOperator adds or refreshes an operator.
	RegisterOperator(ctx context.Context, req RegisterOperatorRequest) error

	// ListOperators returns the operators of a country.
	ListOperators(ctx context.Context, countryCode string) ([]*Operator, error)
}

// RegisterServiceOrderRequest contains parameters for registering a service order.
type RegisterServiceOrderRequest struct {
	ServiceOrderID string
	CountryCode    string
	BusinessUnit   string
}

// RegisterOperatorRequest contains parameters for registering an operator.
type RegisterOperatorRequest struct {
	OperatorID  string
	Name        string
	CountryCode string
	TaskTypes   []models.TaskType // Empty means every type
	Inactive    bool
}

// Operator represents an operator at the port boundary.
type Operator struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	CountryCode string            `json:"countryCode"`
	TaskTypes   []models.TaskType `json:"taskTypes,omitempty"`
	Active      bool              `json:"active"`
}
