package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/dispatch/internal/models"
	"github.com/example/dispatch/internal/ports/secondary"
)

// ServiceOrderRepository implements secondary.ServiceOrderRepository with SQLite.
type ServiceOrderRepository struct {
	db *sql.DB
}

// NewServiceOrderRepository creates a new SQLite service order repository.
func NewServiceOrderRepository(db *sql.DB) *ServiceOrderRepository {
	return &ServiceOrderRepository{db: db}
}

var _ secondary.ServiceOrderRepository = (*ServiceOrderRepository)(nil)

// GetByID retrieves an order from the mirror.
func (r *ServiceOrderRepository) GetByID(ctx context.Context, id string) (*secondary.ServiceOrderRecord, error) {
	var order secondary.ServiceOrderRecord
	err := conn(ctx, r.db).QueryRowContext(ctx,
		"SELECT id, country_code, business_unit FROM service_orders WHERE id = ?", id,
	).Scan(&order.ID, &order.CountryCode, &order.BusinessUnit)
	if err == sql.ErrNoRows {
		return nil, models.NewNotFoundError("service order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service order: %w", err)
	}
	return &order, nil
}

// Upsert registers or refreshes an order.
func (r *ServiceOrderRepository) Upsert(ctx context.Context, order *secondary.ServiceOrderRecord) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO service_orders (id, country_code, business_unit, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			country_code = excluded.country_code,
			business_unit = excluded.business_unit,
			updated_at = excluded.updated_at`,
		order.ID, order.CountryCode, order.BusinessUnit, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert service order: %w", err)
	}
	return nil
}

// OperatorRepository implements secondary.OperatorRepository with SQLite.
type OperatorRepository struct {
	db *sql.DB
}

// NewOperatorRepository creates a new SQLite operator repository.
func NewOperatorRepository(db *sql.DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

var _ secondary.OperatorRepository = (*OperatorRepository)(nil)

// ListByCountry returns operators scoped to a country, ordered by id.
func (r *OperatorRepository) ListByCountry(ctx context.Context, countryCode string) ([]*secondary.OperatorRecord, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		"SELECT id, name, country_code, task_types, active FROM operators WHERE country_code = ? ORDER BY id",
		countryCode,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list operators: %w", err)
	}
	defer rows.Close()

	var operators []*secondary.OperatorRecord
	for rows.Next() {
		var (
			op        secondary.OperatorRecord
			taskTypes string
		)
		if err := rows.Scan(&op.ID, &op.Name, &op.CountryCode, &taskTypes, &op.Active); err != nil {
			return nil, fmt.Errorf("failed to scan operator: %w", err)
		}
		op.TaskTypes = splitTaskTypes(taskTypes)
		operators = append(operators, &op)
	}
	return operators, rows.Err()
}

// Upsert registers or refreshes an operator.
func (r *OperatorRepository) Upsert(ctx context.Context, op *secondary.OperatorRecord) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO operators (id, name, country_code, task_types, active, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			country_code = excluded.country_code,
			task_types = excluded.task_types,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		op.ID, op.Name, op.CountryCode, joinTaskTypes(op.TaskTypes), op.Active, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert operator: %w", err)
	}
	return nil
}

func joinTaskTypes(types []models.TaskType) string {
	return strings.Join(stringsOf(types), ",")
}

func splitTaskTypes(s string) []models.TaskType {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	types := make([]models.TaskType, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			types = append(types, models.TaskType(p))
		}
	}
	return types
}
