package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/andresuchdata/chainplan/internal/domain"
)

type snapshotRepository struct {
	db *DB
}

func NewSnapshotRepository(db *DB) *snapshotRepository {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) ListItems(ctx context.Context) ([]domain.InventoryItem, error) {
	query := `
		SELECT id, name, category, storage, unit, min_level, max_level, reorder_point,
			lead_time_days, shelf_life_days, cost_per_unit, supplier_id
		FROM inventory_items
		ORDER BY id
	`

	var items []domain.InventoryItem
	if err := sqlx.SelectContext(ctx, r.db, &items, query); err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

type recipeRow struct {
	ProductID string  `db:"product_id"`
	ItemID    string  `db:"item_id"`
	Quantity  float64 `db:"quantity"`
}

func (r *snapshotRepository) ListRecipes(ctx context.Context) ([]domain.Recipe, error) {
	query := `
		SELECT product_id, item_id, quantity
		FROM recipes
		ORDER BY product_id, item_id
	`

	var rows []recipeRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}

	byProduct := make(map[string]map[string]float64)
	for _, row := range rows {
		if byProduct[row.ProductID] == nil {
			byProduct[row.ProductID] = make(map[string]float64)
		}
		byProduct[row.ProductID][row.ItemID] = row.Quantity
	}

	recipes := make([]domain.Recipe, 0, len(byProduct))
	for id, ing := range byProduct {
		recipes = append(recipes, domain.Recipe{ProductID: id, Ingredients: ing})
	}
	sort.Slice(recipes, func(i, j int) bool { return recipes[i].ProductID < recipes[j].ProductID })
	return recipes, nil
}

func (r *snapshotRepository) ListLevels(ctx context.Context, locations []string) ([]domain.InventoryLevel, error) {
	query := `
		SELECT location, item_id, current_quantity, reserved_quantity, last_updated
		FROM inventory_levels
		WHERE cardinality($1::text[]) = 0 OR location = ANY($1::text[])
		ORDER BY location, item_id
	`

	var levels []domain.InventoryLevel
	if err := sqlx.SelectContext(ctx, r.db, &levels, query, pq.Array(nonNil(locations))); err != nil {
		return nil, fmt.Errorf("failed to list inventory levels: %w", err)
	}
	return levels, nil
}

func (r *snapshotRepository) ListSales(ctx context.Context, locations []string, since, until time.Time) ([]domain.HistoricalSalesRecord, error) {
	query := `
		SELECT sale_date, location, item_id, units_sold, waste_units
		FROM sales_history
		WHERE (cardinality($1::text[]) = 0 OR location = ANY($1::text[]))
			AND ($2::date IS NULL OR sale_date >= $2::date)
			AND ($3::date IS NULL OR sale_date < $3::date)
		ORDER BY sale_date, location, item_id
	`

	var sinceArg, untilArg any
	if !since.IsZero() {
		sinceArg = since
	}
	if !until.IsZero() {
		untilArg = until
	}

	var sales []domain.HistoricalSalesRecord
	if err := sqlx.SelectContext(ctx, r.db, &sales, query, pq.Array(nonNil(locations)), sinceArg, untilArg); err != nil {
		return nil, fmt.Errorf("failed to list sales history: %w", err)
	}
	return sales, nil
}

func (r *snapshotRepository) UpsertItems(ctx context.Context, items []domain.InventoryItem) error {
	query := `
		INSERT INTO inventory_items (
			id, name, category, storage, unit, min_level, max_level, reorder_point,
			lead_time_days, shelf_life_days, cost_per_unit, supplier_id, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			storage = EXCLUDED.storage,
			unit = EXCLUDED.unit,
			min_level = EXCLUDED.min_level,
			max_level = EXCLUDED.max_level,
			reorder_point = EXCLUDED.reorder_point,
			lead_time_days = EXCLUDED.lead_time_days,
			shelf_life_days = EXCLUDED.shelf_life_days,
			cost_per_unit = EXCLUDED.cost_per_unit,
			supplier_id = EXCLUDED.supplier_id,
			updated_at = NOW()
	`
	return r.execEach(ctx, query, len(items), func(stmt *sql.Stmt, i int) error {
		it := items[i]
		_, err := stmt.ExecContext(ctx,
			it.ID, it.Name, string(it.Category), string(it.Storage), it.Unit,
			it.MinLevel, it.MaxLevel, it.ReorderPoint, it.LeadTimeDays,
			it.ShelfLifeDays, it.CostPerUnit, it.SupplierID,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert item %s: %w", it.ID, err)
		}
		return nil
	})
}

// UpsertRecipes replaces the ingredient list of every given product.
func (r *snapshotRepository) UpsertRecipes(ctx context.Context, recipes []domain.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		products := make([]string, 0, len(recipes))
		for _, rec := range recipes {
			products = append(products, rec.ProductID)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM recipes WHERE product_id = ANY($1::text[])`, pq.Array(products)); err != nil {
			return fmt.Errorf("failed to clear recipes: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO recipes (product_id, item_id, quantity) VALUES ($1, $2, $3)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, rec := range recipes {
			for itemID, qty := range rec.Ingredients {
				if _, err := stmt.ExecContext(ctx, rec.ProductID, itemID, qty); err != nil {
					return fmt.Errorf("failed to insert recipe %s/%s: %w", rec.ProductID, itemID, err)
				}
			}
		}
		return nil
	})
}

func (r *snapshotRepository) UpsertLevels(ctx context.Context, levels []domain.InventoryLevel) error {
	query := `
		INSERT INTO inventory_levels (location, item_id, current_quantity, reserved_quantity, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (location, item_id) DO UPDATE SET
			current_quantity = EXCLUDED.current_quantity,
			reserved_quantity = EXCLUDED.reserved_quantity,
			last_updated = EXCLUDED.last_updated
	`
	return r.execEach(ctx, query, len(levels), func(stmt *sql.Stmt, i int) error {
		l := levels[i]
		if _, err := stmt.ExecContext(ctx, l.Location, l.ItemID, l.CurrentQuantity, l.ReservedQuantity, l.LastUpdated); err != nil {
			return fmt.Errorf("failed to upsert level %s/%s: %w", l.Location, l.ItemID, err)
		}
		return nil
	})
}

func (r *snapshotRepository) UpsertSales(ctx context.Context, sales []domain.HistoricalSalesRecord) error {
	query := `
		INSERT INTO sales_history (sale_date, location, item_id, units_sold, waste_units)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (sale_date, location, item_id) DO UPDATE SET
			units_sold = EXCLUDED.units_sold,
			waste_units = EXCLUDED.waste_units
	`
	return r.execEach(ctx, query, len(sales), func(stmt *sql.Stmt, i int) error {
		s := sales[i]
		if _, err := stmt.ExecContext(ctx, s.Date, s.Location, s.ItemID, s.UnitsSold, s.WasteUnits); err != nil {
			return fmt.Errorf("failed to upsert sale %s/%s: %w", s.Location, s.ItemID, err)
		}
		return nil
	})
}

// execEach runs fn for n rows against one prepared statement in a single transaction.
func (r *snapshotRepository) execEach(ctx context.Context, query string, n int, fn func(stmt *sql.Stmt, i int) error) error {
	if n == 0 {
		return nil
	}
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for i := 0; i < n; i++ {
			if err := fn(stmt, i); err != nil {
				return err
			}
		}
		return nil
	})
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
