package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/dispatch/internal/models"
	"github.com/example/dispatch/internal/ports/secondary"
)

// ServiceOrderRepository implements secondary.ServiceOrderRepository with PostgreSQL.
type ServiceOrderRepository struct {
	pool *pgxpool.Pool
}

// NewServiceOrderRepository creates a new PostgreSQL service order repository.
func NewServiceOrderRepository(pool *pgxpool.Pool) *ServiceOrderRepository {
	return &ServiceOrderRepository{pool: pool}
}

var _ secondary.ServiceOrderRepository = (*ServiceOrderRepository)(nil)

// GetByID retrieves an order from the mirror.
func (r *ServiceOrderRepository) GetByID(ctx context.Context, id string) (*secondary.ServiceOrderRecord, error) {
	var order secondary.ServiceOrderRecord
	err := conn(ctx, r.pool).QueryRow(ctx,
		"SELECT id, country_code, business_unit FROM service_orders WHERE id = $1", id,
	).Scan(&order.ID, &order.CountryCode, &order.BusinessUnit)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.NewNotFoundError("service order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service order: %w", err)
	}
	return &order, nil
}

// Upsert registers or refreshes an order.
func (r *ServiceOrderRepository) Upsert(ctx context.Context, order *secondary.ServiceOrderRecord) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO service_orders (id, country_code, business_unit, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET
			country_code = EXCLUDED.country_code,
			business_unit = EXCLUDED.business_unit,
			updated_at = EXCLUDED.updated_at`,
		order.ID, order.CountryCode, order.BusinessUnit,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert service order: %w", err)
	}
	return nil
}

// OperatorRepository implements secondary.OperatorRepository with PostgreSQL.
type OperatorRepository struct {
	pool *pgxpool.Pool
}

// NewOperatorRepository creates a new PostgreSQL operator repository.
func NewOperatorRepository(pool *pgxpool.Pool) *OperatorRepository {
	return &OperatorRepository{pool: pool}
}

var _ secondary.OperatorRepository = (*OperatorRepository)(nil)

// ListByCountry returns operators scoped to a country, ordered by id.
func (r *OperatorRepository) ListByCountry(ctx context.Context, countryCode string) ([]*secondary.OperatorRecord, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		"SELECT id, name, country_code, task_types, active FROM operators WHERE country_code = $1 ORDER BY id",
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
			taskTypes []string
		)
		if err := rows.Scan(&op.ID, &op.Name, &op.CountryCode, &taskTypes, &op.Active); err != nil {
			return nil, fmt.Errorf("failed to scan operator: %w", err)
		}
		for _, t := range taskTypes {
			op.TaskTypes = append(op.TaskTypes, models.TaskType(t))
		}
		operators = append(operators, &op)
	}
	return operators, rows.Err()
}

// Upsert registers or refreshes an operator.
func (r *OperatorRepository) Upsert(ctx context.Context, op *secondary.OperatorRecord) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO operators (id, name, country_code, task_types, active, updated_at) VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			country_code = EXCLUDED.country_code,
			task_types = EXCLUDED.task_types,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at`,
		op.ID, op.Name, op.CountryCode, stringsOf(op.TaskTypes), op.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert operator: %w", err)
	}
	return nil
}
