package duckdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/tinytelemetry/vxlview/internal/entrycache"
	"github.com/tinytelemetry/vxlview/internal/export"
	"github.com/tinytelemetry/vxlview/internal/logparse"
	"github.com/tinytelemetry/vxlview/internal/render"
	"github.com/tinytelemetry/vxlview/internal/session"
)

// ExportResult describes one finished export.
type ExportResult struct {
	ID      int64
	Entries int64
	Dropped int64
}

// ExportSession copies the filtered view described by snap into store as a
// new export. Rows of a failed export are removed again.
func ExportSession(ctx context.Context, snap session.Snapshot, store *Store, batchSize int) (ExportResult, error) {
	id, err := store.beginExport(ctx, snap)
	if err != nil {
		return ExportResult{}, fmt.Errorf("duckdb: begin export: %w", err)
	}

	loader := NewLoader(store, LoaderConfig{BatchSize: batchSize})
	display := 0
	skipped, err := export.Each(ctx, snap, func(e *entrycache.Entry, names render.Names) error {
		loader.Add(RowFromEntry(id, display, e, names))
		display++
		return nil
	})
	inserted, dropped := loader.Close()
	if err != nil {
		if derr := store.DeleteExport(id); derr != nil {
			log.Printf("duckdb: removing failed export %d: %v", id, derr)
		}
		return ExportResult{}, err
	}

	if err := store.finishExport(ctx, id, inserted); err != nil {
		return ExportResult{}, fmt.Errorf("duckdb: finish export: %w", err)
	}
	log.Printf("duckdb: export %d of %s: %d entries (%d dropped, %d unreadable)", id, snap.Path, inserted, dropped, skipped)
	return ExportResult{ID: id, Entries: inserted, Dropped: dropped}, nil
}

func (s *Store) beginExport(ctx context.Context, snap session.Snapshot) (int64, error) {
	criteria, err := json.Marshal(snap.Criteria)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.QueryTimeout)
	defer cancel()

	var id int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO exports (source_path, source_app, criteria) VALUES (?, ?, ?) RETURNING id`,
		snap.Path, snap.SourceApplication, string(criteria),
	).Scan(&id)
	return id, err
}

func (s *Store) finishExport(ctx context.Context, id, count int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.QueryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `UPDATE exports SET entry_count = ? WHERE id = ?`, count, id)
	return err
}

// DeleteExport removes an export and its rows.
func (s *Store) DeleteExport(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE export_id = ?`, id); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM exports WHERE id = ?`, id); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// severityNum maps a severity name to its VXL level; unknown names sort last.
func severityNum(name string) uint8 {
	sev, ok := logparse.ParseSeverity(name)
	if !ok {
		return 255
	}
	return uint8(sev)
}
