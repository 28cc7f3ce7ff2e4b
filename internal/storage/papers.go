package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/plasmarag/plasmarag/internal/paper"
)

// selectPaperFields contains the standard field list for paper SELECT queries.
const selectPaperFields = `id, title, journal, pub_year, doi, title_hash,
	source_path, source_hash, status, supersedes, body_json, created_at`

// paperBody holds the descriptive fields stored as one JSON column.
type paperBody struct {
	Innovations       []string `json:"innovations,omitempty"`
	Environment       string   `json:"environment,omitempty"`
	Background        string   `json:"background,omitempty"`
	Phenomena         []string `json:"phenomena,omitempty"`
	SimulationResults string   `json:"simulation_results,omitempty"`
	Keywords          []string `json:"keywords,omitempty"`
	ExperimentSetup   string   `json:"experiment_setup,omitempty"`
}

// ListOptions filters ListPapers.
type ListOptions struct {
	Status paper.Status // empty means active
	Limit  int          // 0 means no limit
}

// Stats summarizes the store.
type Stats struct {
	Papers      map[paper.Status]int `json:"papers"`
	ForceModels int                  `json:"force_models"`
	Parameters  int                  `json:"parameters"`
	Figures     int                  `json:"figures"`
}

// InsertPending writes p and its children with status pending. If
// supersedes is non-empty, that paper and its force models are marked
// superseded in the same transaction. A live paper with the same title
// hash yields ErrDuplicateTitle.
func (d *DB) InsertPending(ctx context.Context, p *paper.Paper, supersedes string) error {
	body, err := json.Marshal(paperBody{
		Innovations:       p.Innovations,
		Environment:       p.Environment,
		Background:        p.Background,
		Phenomena:         p.Phenomena,
		SimulationResults: p.SimulationResults,
		Keywords:          p.Keywords,
		ExperimentSetup:   p.ExperimentSetup,
	})
	if err != nil {
		return fmt.Errorf("encoding paper body: %w", err)
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	now := time.Now().Unix()

	err = d.withTx(ctx, func(tx *sql.Tx) error {
		if supersedes != "" {
			if err := setStatus(ctx, tx, supersedes, paper.StatusSuperseded, paper.StatusActive, paper.StatusPending); err != nil {
				return err
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO papers (
				id, title, journal, pub_year, doi, title_hash,
				source_path, source_hash, status, supersedes, body_json,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Title, nullableStringValue(p.Journal), p.Year, nullableStringValue(p.DOI), p.TitleHash,
			nullableStringValue(p.SourcePath), nullableStringValue(p.SourceHash), paper.StatusPending,
			nullableStringValue(supersedes), string(body), p.CreatedAt.Unix(), now)
		if err != nil {
			if isUniqueViolation(err) && strings.Contains(err.Error(), "title_hash") {
				return ErrDuplicateTitle
			}
			return fmt.Errorf("inserting paper %s: %w", p.ID, err)
		}

		for _, f := range p.ForceModels {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO force_models (id, paper_id, name, formula, meaning, computational_hint, formula_hash, status)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				f.ID, p.ID, f.Name, f.Formula, nullableStringValue(f.Meaning),
				nullableStringValue(f.ComputationalHint), f.FormulaHash, paper.StatusPending)
			if err != nil {
				return fmt.Errorf("inserting force model %s: %w", f.Name, err)
			}
		}

		for i, param := range p.Parameters {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO parameters (paper_id, position, category, name, symbol, value, unit, meaning, enriched_physics, source)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				p.ID, i, string(param.Category), param.Name, nullableStringValue(param.Symbol),
				nullableStringValue(param.Value), nullableStringValue(param.Unit), nullableStringValue(param.Meaning),
				nullableStringValue(param.EnrichedPhysics), nullableStringValue(param.Source))
			if err != nil {
				return fmt.Errorf("inserting parameter %s: %w", param.Name, err)
			}
		}

		for _, fig := range p.Figures {
			linked, err := json.Marshal(fig.LinkedParameters)
			if err != nil {
				return fmt.Errorf("encoding linked parameters: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO figures (paper_id, page, image_path, caption, linked_json)
				VALUES (?, ?, ?, ?, ?)`,
				p.ID, fig.Page, fig.ImagePath, fig.Caption, string(linked))
			if err != nil {
				return fmt.Errorf("inserting figure page %d: %w", fig.Page, err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO papers_fts (id, title, background, phenomena, keywords)
			VALUES (?, ?, ?, ?, ?)`,
			p.ID, p.Title, p.Background, strings.Join(p.Phenomena, " "), strings.Join(p.Keywords, " "))
		if err != nil {
			return fmt.Errorf("inserting fts for %s: %w", p.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	p.Status = paper.StatusPending
	p.Supersedes = supersedes
	for i := range p.ForceModels {
		p.ForceModels[i].PaperID = p.ID
		p.ForceModels[i].Status = paper.StatusPending
	}
	return nil
}

// Activate flips a pending paper and its pending force models to active.
func (d *DB) Activate(ctx context.Context, paperID string) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		return setStatus(ctx, tx, paperID, paper.StatusActive, paper.StatusPending)
	})
}

// Retract soft-deletes a paper and its force models. Their vectors remain
// in the indices but no longer resolve.
func (d *DB) Retract(ctx context.Context, paperID string) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		return setStatus(ctx, tx, paperID, paper.StatusRetracted, paper.StatusActive, paper.StatusPending)
	})
}

// DeletePending removes a paper that never became active. A paper it was
// superseding is restored to active.
func (d *DB) DeletePending(ctx context.Context, paperID string) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		var supersedes sql.NullString
		err := tx.QueryRowContext(ctx,
			`SELECT supersedes FROM papers WHERE id = ? AND status = ?`, paperID, paper.StatusPending,
		).Scan(&supersedes)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM papers WHERE id = ?`, paperID); err != nil {
			return fmt.Errorf("deleting paper %s: %w", paperID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM papers_fts WHERE id = ?`, paperID); err != nil {
			return fmt.Errorf("deleting fts for %s: %w", paperID, err)
		}
		if supersedes.Valid {
			if err := setStatus(ctx, tx, supersedes.String, paper.StatusActive, paper.StatusSuperseded); err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
		}
		return nil
	})
}

// setStatus moves a paper and its force models to status, but only from
// one of the listed states. Returns ErrNotFound if the paper is not in any.
func setStatus(ctx context.Context, tx *sql.Tx, paperID string, to paper.Status, from ...paper.Status) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(from)), ",")
	args := []interface{}{to, time.Now().Unix(), paperID}
	for _, s := range from {
		args = append(args, s)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE papers SET status = ?, updated_at = ? WHERE id = ? AND status IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("updating paper %s: %w", paperID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, paperID)
	}

	fargs := []interface{}{to, paperID}
	for _, s := range from {
		fargs = append(fargs, s)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE force_models SET status = ? WHERE paper_id = ? AND status IN (`+placeholders+`)`, fargs...); err != nil {
		return fmt.Errorf("updating force models of %s: %w", paperID, err)
	}
	return nil
}

// GetPaper retrieves a paper with its force models, parameters and figures.
// Returns nil, nil if not found.
func (d *DB) GetPaper(ctx context.Context, id string) (*paper.Paper, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+selectPaperFields+` FROM papers WHERE id = ?`, id)
	p, err := scanPaper(row)
	if err != nil || p == nil {
		return p, err
	}
	if err := d.loadChildren(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// FindLiveByTitleHash returns the pending or active paper with the title
// hash, without children. Returns nil, nil if none.
func (d *DB) FindLiveByTitleHash(ctx context.Context, titleHash string) (*paper.Paper, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT `+selectPaperFields+` FROM papers
		WHERE title_hash = ? AND status IN (?, ?)`,
		titleHash, paper.StatusPending, paper.StatusActive)
	return scanPaper(row)
}

// FindLiveBySourceHash returns a pending or active paper ingested from
// identical bytes. Returns nil, nil if none.
func (d *DB) FindLiveBySourceHash(ctx context.Context, sourceHash string) (*paper.Paper, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT `+selectPaperFields+` FROM papers
		WHERE source_hash = ? AND status IN (?, ?)
		LIMIT 1`,
		sourceHash, paper.StatusPending, paper.StatusActive)
	return scanPaper(row)
}

// ListPending returns ids of papers left pending by interrupted writers,
// oldest first.
func (d *DB) ListPending(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id FROM papers WHERE status = ? ORDER BY created_at, id`, paper.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("listing pending papers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListPapers returns papers without children, newest first.
func (d *DB) ListPapers(ctx context.Context, opts ListOptions) ([]paper.Paper, error) {
	status := opts.Status
	if status == "" {
		status = paper.StatusActive
	}

	query := `SELECT ` + selectPaperFields + ` FROM papers WHERE status = ? ORDER BY created_at DESC, id`
	args := []interface{}{status}
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing papers: %w", err)
	}
	defer rows.Close()

	return scanPapers(rows)
}

// KeywordSearch runs a full-text query over active papers.
func (d *DB) KeywordSearch(ctx context.Context, query string, limit int) ([]paper.Paper, error) {
	ftsQuery := prepareFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT `+selectPaperFields+`
		FROM papers
		WHERE status = ? AND id IN (SELECT id FROM papers_fts WHERE papers_fts MATCH ?)
		ORDER BY created_at DESC
		LIMIT ?`, paper.StatusActive, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	defer rows.Close()

	return scanPapers(rows)
}

// Stats returns row counts.
func (d *DB) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Papers: make(map[paper.Status]int)}

	rows, err := d.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM papers GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("counting papers: %w", err)
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return stats, err
		}
		stats.Papers[paper.Status(status)] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, err
	}

	counts := []struct {
		table string
		dest  *int
	}{
		{"force_models", &stats.ForceModels},
		{"parameters", &stats.Parameters},
		{"figures", &stats.Figures},
	}
	for _, c := range counts {
		if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+c.table).Scan(c.dest); err != nil {
			return stats, fmt.Errorf("counting %s: %w", c.table, err)
		}
	}
	return stats, nil
}

func (d *DB) loadChildren(ctx context.Context, p *paper.Paper) error {
	forces, err := d.forceModelsOf(ctx, p.ID)
	if err != nil {
		return err
	}
	p.ForceModels = forces

	rows, err := d.db.QueryContext(ctx, `
		SELECT category, name, symbol, value, unit, meaning, enriched_physics, source
		FROM parameters WHERE paper_id = ? ORDER BY position`, p.ID)
	if err != nil {
		return fmt.Errorf("loading parameters: %w", err)
	}
	for rows.Next() {
		var param paper.Parameter
		var category string
		var symbol, value, unit, meaning, enriched, source sql.NullString
		if err := rows.Scan(&category, &param.Name, &symbol, &value, &unit, &meaning, &enriched, &source); err != nil {
			rows.Close()
			return err
		}
		param.Category = paper.Category(category)
		param.Symbol = symbol.String
		param.Value = value.String
		param.Unit = unit.String
		param.Meaning = meaning.String
		param.EnrichedPhysics = enriched.String
		param.Source = source.String
		p.Parameters = append(p.Parameters, param)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = d.db.QueryContext(ctx, `
		SELECT page, image_path, caption, linked_json
		FROM figures WHERE paper_id = ? ORDER BY page`, p.ID)
	if err != nil {
		return fmt.Errorf("loading figures: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var fig paper.Figure
		var linked sql.NullString
		if err := rows.Scan(&fig.Page, &fig.ImagePath, &fig.Caption, &linked); err != nil {
			return err
		}
		if linked.Valid && linked.String != "" && linked.String != "null" {
			if err := json.Unmarshal([]byte(linked.String), &fig.LinkedParameters); err != nil {
				return fmt.Errorf("parsing linked parameters for %s page %d: %w", p.ID, fig.Page, err)
			}
		}
		p.Figures = append(p.Figures, fig)
	}
	return rows.Err()
}

func scanPaper(s scanner) (*paper.Paper, error) {
	var p paper.Paper
	var journal, doi, sourcePath, sourceHash, supersedes sql.NullString
	var year sql.NullInt64
	var status, body string
	var createdAt int64

	err := s.Scan(
		&p.ID, &p.Title, &journal, &year, &doi, &p.TitleHash,
		&sourcePath, &sourceHash, &status, &supersedes, &body, &createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	p.Journal = journal.String
	p.DOI = doi.String
	p.SourcePath = sourcePath.String
	p.SourceHash = sourceHash.String
	p.Supersedes = supersedes.String
	p.Status = paper.Status(status)
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	if year.Valid {
		p.Year = int(year.Int64)
	}

	var b paperBody
	if err := json.Unmarshal([]byte(body), &b); err != nil {
		return nil, fmt.Errorf("parsing body JSON for %s: %w", p.ID, err)
	}
	p.Innovations = b.Innovations
	p.Environment = b.Environment
	p.Background = b.Background
	p.Phenomena = b.Phenomena
	p.SimulationResults = b.SimulationResults
	p.Keywords = b.Keywords
	p.ExperimentSetup = b.ExperimentSetup

	return &p, nil
}

func scanPapers(rows *sql.Rows) ([]paper.Paper, error) {
	var papers []paper.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		if p != nil {
			papers = append(papers, *p)
		}
	}
	return papers, rows.Err()
}
