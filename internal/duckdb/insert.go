package duckdb

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinytelemetry/vxlview/internal/entrycache"
	"github.com/tinytelemetry/vxlview/internal/render"
)

// DefaultBatchSize is the number of rows per insert transaction.
const DefaultBatchSize = 2000

// DefaultFlushQueueSize is the number of batches that can wait for the
// flush goroutine.
const DefaultFlushQueueSize = 16

// EntryRow is one exported entry.
type EntryRow struct {
	ExportID  int64
	Display   int64
	Raw       int64
	Severity  string
	Time      time.Time
	PID       uint32
	TID       uint32
	Component string
	File      string
	Function  string
	Line      uint32
	Header    string
	Body      string
}

// RowFromEntry builds the row for e at display position display.
func RowFromEntry(exportID int64, display int, e *entrycache.Entry, names render.Names) EntryRow {
	return EntryRow{
		ExportID:  exportID,
		Display:   int64(display),
		Raw:       int64(e.Raw),
		Severity:  e.Severity.String(),
		Time:      e.Time.UTC(),
		PID:       e.PID,
		TID:       e.TID,
		Component: names.Component(e.Component),
		File:      names.File(e.File),
		Function:  names.Function(e.Function),
		Line:      e.Line,
		Header:    e.Header,
		Body:      e.Body,
	}
}

// Loader batches rows and inserts them on a flush goroutine, so the caller
// walking the log is not held up by DuckDB writes.
type Loader struct {
	store     *Store
	mu        sync.Mutex
	pending   []EntryRow
	flushChan chan []EntryRow
	maxBatch  int
	wg        sync.WaitGroup
	closeOnce sync.Once

	inserted atomic.Int64
	dropped  atomic.Int64

	// backpressureCount tracks inline flushes for throttled logging.
	backpressureCount atomic.Int64
	lastBPLog         atomic.Int64
}

// LoaderConfig holds tunable parameters for a Loader.
type LoaderConfig struct {
	BatchSize      int
	FlushQueueSize int
}

// NewLoader starts a loader writing to store.
func NewLoader(store *Store, conf ...LoaderConfig) *Loader {
	batchSize := DefaultBatchSize
	queueSize := DefaultFlushQueueSize
	if len(conf) > 0 {
		if conf[0].BatchSize > 0 {
			batchSize = conf[0].BatchSize
		}
		if conf[0].FlushQueueSize > 0 {
			queueSize = conf[0].FlushQueueSize
		}
	}

	l := &Loader{
		store:     store,
		pending:   make([]EntryRow, 0, batchSize),
		flushChan: make(chan []EntryRow, queueSize),
		maxBatch:  batchSize,
	}
	l.wg.Add(1)
	go l.flushWorker()
	return l
}

func (l *Loader) flushWorker() {
	defer l.wg.Done()
	for batch := range l.flushChan {
		l.flush(batch)
	}
}

func (l *Loader) flush(batch []EntryRow) {
	n, err := l.store.InsertEntries(batch)
	l.inserted.Add(int64(n))
	l.dropped.Add(int64(len(batch) - n))
	if err != nil {
		log.Printf("duckdb: flush error: %v", err)
	}
}

// logBackpressure emits a throttled warning (at most once per 10 seconds)
// when the flush queue is full and a batch is flushed inline.
func (l *Loader) logBackpressure() {
	count := l.backpressureCount.Add(1)
	now := time.Now().Unix()
	last := l.lastBPLog.Load()
	if now-last >= 10 && l.lastBPLog.CompareAndSwap(last, now) {
		log.Printf("duckdb: backpressure, %d inline flushes", count)
	}
}

// Add queues a row.
func (l *Loader) Add(row EntryRow) {
	l.mu.Lock()
	l.pending = append(l.pending, row)
	var batch []EntryRow
	if len(l.pending) >= l.maxBatch {
		batch = l.pending
		l.pending = make([]EntryRow, 0, l.maxBatch)
	}
	l.mu.Unlock()

	if batch == nil {
		return
	}
	select {
	case l.flushChan <- batch:
	default:
		l.logBackpressure()
		l.flush(batch)
	}
}

// Close flushes the remaining rows, waits for every insert to finish and
// returns how many rows were inserted and dropped.
func (l *Loader) Close() (inserted, dropped int64) {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		batch := l.pending
		l.pending = nil
		l.mu.Unlock()
		if len(batch) > 0 {
			l.flushChan <- batch
		}
		close(l.flushChan)
		l.wg.Wait()
	})
	return l.inserted.Load(), l.dropped.Load()
}

// InsertEntries appends rows in a single transaction. If the batch fails it
// is rolled back and retried row by row to salvage what it can; the number
// of rows inserted is returned.
func (s *Store) InsertEntries(rows []EntryRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.insertBatchTx(ctx, rows)
	if err == nil {
		return len(rows), nil
	}

	inserted := 0
	for _, r := range rows {
		if rerr := s.insertBatchTx(ctx, []EntryRow{r}); rerr != nil {
			log.Printf("duckdb: dropping entry (export=%d raw=%d): %v", r.ExportID, r.Raw, rerr)
			continue
		}
		inserted++
	}
	if inserted < len(rows) {
		return inserted, fmt.Errorf("duckdb: %d/%d entries dropped: %w", len(rows)-inserted, len(rows), err)
	}
	return inserted, nil
}

func (s *Store) insertBatchTx(ctx context.Context, rows []EntryRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entries (export_id, display_idx, raw_idx, severity, severity_num, ts, pid, tid, component, file, func, line, header, body) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			r.ExportID, r.Display, r.Raw, r.Severity, severityNum(r.Severity), r.Time,
			r.PID, r.TID, r.Component, r.File, r.Function, r.Line, r.Header, r.Body,
		); err != nil {
			return fmt.Errorf("entry insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
