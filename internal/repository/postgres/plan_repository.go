package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/andresuchdata/chainplan/internal/domain"
	"github.com/andresuchdata/chainplan/internal/repository"
)

type planRepository struct {
	db *DB
}

func NewPlanRepository(db *DB) *planRepository {
	return &planRepository{db: db}
}

// SavePlan writes the run header, its full payload and the flattened order and
// transfer rows in one transaction. Saving the same id again replaces the run.
func (r *planRepository) SavePlan(ctx context.Context, run *domain.PlanRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("plan id is required")
	}
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	orders, transfers := run.Rows()

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO plan_runs (
				id, target_date, status, created_at, order_count, transfer_count,
				total_order_cost, total_transfer_cost, export_key, payload
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET
				status = EXCLUDED.status,
				order_count = EXCLUDED.order_count,
				transfer_count = EXCLUDED.transfer_count,
				total_order_cost = EXCLUDED.total_order_cost,
				total_transfer_cost = EXCLUDED.total_transfer_cost,
				export_key = EXCLUDED.export_key,
				payload = EXCLUDED.payload
		`
		if _, err := tx.ExecContext(ctx, query,
			run.ID, run.TargetDate, string(run.Status), run.CreatedAt,
			run.OrderCount, run.TransferCount,
			run.TotalOrderCost, run.TotalTransferCost,
			run.ExportKey, payload,
		); err != nil {
			return fmt.Errorf("failed to upsert plan run: %w", err)
		}

		for _, table := range []string{"plan_orders", "plan_transfers"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_id = $1", run.ID); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}

		if err := insertOrders(ctx, tx, run.ID, orders); err != nil {
			return err
		}
		return insertTransfers(ctx, tx, run.ID, transfers)
	})
}

func insertOrders(ctx context.Context, tx *sql.Tx, runID string, orders []domain.PlannedOrder) error {
	if len(orders) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO plan_orders (
			run_id, location, item_id, quantity, priority, reason, estimated_cost, suggested_order_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, o := range orders {
		if _, err := stmt.ExecContext(ctx,
			runID, o.Location, o.ItemID, o.Quantity, string(o.Priority), o.Reason, o.EstimatedCost, o.SuggestedOrderDate,
		); err != nil {
			return fmt.Errorf("failed to insert plan order: %w", err)
		}
	}
	return nil
}

func insertTransfers(ctx context.Context, tx *sql.Tx, runID string, transfers []domain.PlannedTransfer) error {
	if len(transfers) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO plan_transfers (
			run_id, from_location, to_location, item_id, quantity, transport_cost, total_cost
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, t := range transfers {
		if _, err := stmt.ExecContext(ctx,
			runID, t.FromLocation, t.ToLocation, t.ItemID, t.Quantity, t.TransportCost, t.TotalCost,
		); err != nil {
			return fmt.Errorf("failed to insert plan transfer: %w", err)
		}
	}
	return nil
}

func (r *planRepository) GetPlan(ctx context.Context, id string) (*domain.PlanRun, error) {
	var payload []byte
	err := r.db.QueryRowxContext(ctx, `SELECT payload FROM plan_runs WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan %s: %w", id, err)
	}

	var run domain.PlanRun
	if err := json.Unmarshal(payload, &run); err != nil {
		return nil, fmt.Errorf("decode plan %s: %w", id, err)
	}
	return &run, nil
}

func (r *planRepository) ListPlans(ctx context.Context, limit int) ([]domain.PlanSummary, error) {
	query := `
		SELECT id, target_date, status, created_at, order_count, transfer_count,
			total_order_cost, total_transfer_cost
		FROM plan_runs
		ORDER BY created_at DESC, id ASC
		LIMIT $1
	`

	var plans []domain.PlanSummary
	if err := sqlx.SelectContext(ctx, r.db, &plans, query, repository.ClampLimit(limit)); err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}
