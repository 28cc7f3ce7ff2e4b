package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/plasmarag/plasmarag/internal/paper"
)

const selectForceFields = `id, paper_id, name, formula, meaning, computational_hint, formula_hash, status`

// GetForceModel retrieves a force model by id. Returns nil, nil if not found.
func (d *DB) GetForceModel(ctx context.Context, id string) (*paper.ForceModel, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+selectForceFields+` FROM force_models WHERE id = ?`, id)
	return scanForceModel(row)
}

// ListForceModels returns force models in the given status, ordered by name.
func (d *DB) ListForceModels(ctx context.Context, status paper.Status, limit int) ([]paper.ForceModel, error) {
	query := `SELECT ` + selectForceFields + ` FROM force_models WHERE status = ? ORDER BY name, id`
	args := []interface{}{status}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing force models: %w", err)
	}
	defer rows.Close()
	return scanForceModels(rows)
}

func (d *DB) forceModelsOf(ctx context.Context, paperID string) ([]paper.ForceModel, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+selectForceFields+` FROM force_models WHERE paper_id = ? ORDER BY rowid`, paperID)
	if err != nil {
		return nil, fmt.Errorf("loading force models: %w", err)
	}
	defer rows.Close()
	return scanForceModels(rows)
}

func scanForceModel(s scanner) (*paper.ForceModel, error) {
	var f paper.ForceModel
	var meaning, hint sql.NullString
	var status string

	err := s.Scan(&f.ID, &f.PaperID, &f.Name, &f.Formula, &meaning, &hint, &f.FormulaHash, &status)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	f.Meaning = meaning.String
	f.ComputationalHint = hint.String
	f.Status = paper.Status(status)
	return &f, nil
}

func scanForceModels(rows *sql.Rows) ([]paper.ForceModel, error) {
	var out []paper.ForceModel
	for rows.Next() {
		f, err := scanForceModel(rows)
		if err != nil {
			return nil, err
		}
		if f != nil {
			out = append(out, *f)
		}
	}
	return out, rows.Err()
}
