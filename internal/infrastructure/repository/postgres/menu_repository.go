package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

type MenuItemRepository struct {
	db *sql.DB
}

func NewMenuItemRepository(db *sql.DB) *MenuItemRepository {
	return &MenuItemRepository{db: db}
}

func (r *MenuItemRepository) SaveItems(ctx context.Context, jobID string, items []domain.FinalMenuItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin items tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, item := range items {
		sizesJSON, err := json.Marshal(item.Sizes)
		if err != nil {
			return fmt.Errorf("marshal sizes: %w", err)
		}
		modifiersJSON, err := json.Marshal(item.ModifierGroups)
		if err != nil {
			return fmt.Errorf("marshal modifier groups: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO menu_items (job_id, name, description, category, section, sizes, modifier_groups, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, jobID, item.Name, item.Description, item.Category, item.Section, sizesJSON, modifiersJSON, now)
		if err != nil {
			return fmt.Errorf("insert menu item %q: %w", item.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit items tx: %w", err)
	}
	return nil
}

func (r *MenuItemRepository) ListItems(ctx context.Context, jobID string) ([]domain.FinalMenuItem, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT name, description, category, section, sizes, modifier_groups
FROM menu_items
WHERE job_id = $1
ORDER BY id
`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query menu items: %w", err)
	}
	defer rows.Close()

	var items []domain.FinalMenuItem
	for rows.Next() {
		var item domain.FinalMenuItem
		var sizesRaw, modifiersRaw []byte
		if err := rows.Scan(&item.Name, &item.Description, &item.Category, &item.Section, &sizesRaw, &modifiersRaw); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		if err := json.Unmarshal(sizesRaw, &item.Sizes); err != nil {
			return nil, fmt.Errorf("unmarshal sizes: %w", err)
		}
		if err := json.Unmarshal(modifiersRaw, &item.ModifierGroups); err != nil {
			return nil, fmt.Errorf("unmarshal modifier groups: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate menu items: %w", err)
	}
	return items, nil
}

func (r *MenuItemRepository) AppendLedger(ctx context.Context, jobID string, entries []domain.CostLedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, e := range entries {
		_, err := tx.ExecContext(ctx, `
INSERT INTO cost_ledger (job_id, phase, api_call_index, model, input_tokens, output_tokens, cost_usd, timestamp_ms)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, jobID, string(e.Phase), e.APICallIndex, e.Model, e.InputTokens, e.OutputTokens, e.CostUSD, e.TimestampMs)
		if err != nil {
			return fmt.Errorf("insert ledger entry %d: %w", e.APICallIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}
