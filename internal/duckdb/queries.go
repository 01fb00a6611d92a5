package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"
)

// dangerousKeywordPattern matches SQL keywords that modify data or state, at
// word boundaries so that "RESET" does not match "SET".
var dangerousKeywordPattern = regexp.MustCompile(
	`(?i)\b(INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|TRUNCATE|COPY|ATTACH|LOAD|EXPORT|IMPORT|INSTALL|CALL|EXECUTE|PRAGMA|SET)\b`,
)

// blockCommentPattern matches C-style block comments (/* ... */).
var blockCommentPattern = regexp.MustCompile(`/\*[\s\S]*?\*/`)

// maxQueryRows caps ExecuteQuery results.
const maxQueryRows = 1000

// stripSQLComments removes -- line comments and /* */ block comments from a query.
func stripSQLComments(query string) string {
	cleaned := blockCommentPattern.ReplaceAllString(query, " ")
	var result strings.Builder
	for _, line := range strings.Split(cleaned, "\n") {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		result.WriteString(line)
		result.WriteByte('\n')
	}
	return result.String()
}

// queryCtx returns a context with the store's configured query timeout.
func (s *Store) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.QueryTimeout)
}

// ExportInfo describes a stored export.
type ExportInfo struct {
	ID         int64
	SourcePath string
	SourceApp  string
	Criteria   string
	StartedAt  time.Time
	// Entries is -1 for an export that never finished.
	Entries int64
}

// Exports lists stored exports, newest first.
func (s *Store) Exports() ([]ExportInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_path, source_app, COALESCE(CAST(criteria AS VARCHAR), ''), started_at, entry_count
		FROM exports
		ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ExportInfo
	for rows.Next() {
		var (
			info  ExportInfo
			count sql.NullInt64
		)
		if err := rows.Scan(&info.ID, &info.SourcePath, &info.SourceApp, &info.Criteria, &info.StartedAt, &count); err != nil {
			log.Printf("duckdb scan error (Exports): %v", err)
			continue
		}
		info.Entries = -1
		if count.Valid {
			info.Entries = count.Int64
		}
		results = append(results, info)
	}
	return results, rows.Err()
}

// EntryCount returns the number of rows stored for an export.
func (s *Store) EntryCount(exportID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE export_id = ?`, exportID).Scan(&n)
	return n, err
}

// SeverityCounts returns entry counts per severity name for an export.
func (s *Store) SeverityCounts(exportID int64) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT severity, COUNT(*)
		FROM entries
		WHERE export_id = ?
		GROUP BY severity`, exportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			sev string
			n   int64
		)
		if err := rows.Scan(&sev, &n); err != nil {
			log.Printf("duckdb scan error (SeverityCounts): %v", err)
			continue
		}
		counts[sev] = n
	}
	return counts, rows.Err()
}

// Entries returns up to limit rows of an export in display order, starting
// at display index offset.
func (s *Store) Entries(exportID int64, offset, limit int) ([]EntryRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT export_id, display_idx, raw_idx, severity, ts, pid, tid, component, file, func, line, header, body
		FROM entries
		WHERE export_id = ? AND display_idx >= ?
		ORDER BY display_idx
		LIMIT ?`, exportID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []EntryRow
	for rows.Next() {
		var r EntryRow
		if err := rows.Scan(&r.ExportID, &r.Display, &r.Raw, &r.Severity, &r.Time, &r.PID, &r.TID,
			&r.Component, &r.File, &r.Function, &r.Line, &r.Header, &r.Body); err != nil {
			log.Printf("duckdb scan error (Entries): %v", err)
			continue
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ExecuteQuery runs a read-only SQL query and returns at most 1000 rows.
func (s *Store) ExecuteQuery(query string) ([]map[string]any, error) {
	trimmed := strings.TrimSpace(query)

	// Reject semicolons to prevent statement chaining.
	if strings.Contains(trimmed, ";") {
		return nil, fmt.Errorf("query must not contain semicolons")
	}

	// Keywords hidden in comments still count.
	stripped := strings.TrimSpace(stripSQLComments(trimmed))
	upper := strings.ToUpper(stripped)

	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return nil, fmt.Errorf("only SELECT/WITH queries are allowed")
	}
	if match := dangerousKeywordPattern.FindString(stripped); match != "" {
		return nil, fmt.Errorf("query contains disallowed keyword: %s", strings.ToUpper(match))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()
	rows, err := s.db.QueryContext(ctx, trimmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]any
	for rows.Next() && len(results) < maxQueryRows {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			log.Printf("duckdb scan error (ExecuteQuery): %v", err)
			continue
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// TableRowCounts returns the row count of each table the store owns.
func (s *Store) TableRowCounts() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	counts := make(map[string]int64, 2)
	for _, table := range []string{"entries", "exports"} {
		var n int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}
