package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"stockperf/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ Warehouse = (*SQLiteWarehouse)(nil)

var tableNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteWarehouse implements Warehouse on a SQLite database. Load jobs read
// their Parquet artifact back through the ObjectStore it was staged in and
// record their outcome in the load_jobs ledger.
type SQLiteWarehouse struct {
	db      *sql.DB
	objects ObjectStore

	mu      sync.Mutex
	ensured map[string]bool
}

// NewSQLiteWarehouse opens (or creates) a SQLite database at dbPath and
// returns a ready-to-use SQLiteWarehouse.
func NewSQLiteWarehouse(dbPath string, objects ObjectStore) (*SQLiteWarehouse, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating warehouse dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: the load job and the ledger never contend for locks.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS load_jobs (
		id          TEXT PRIMARY KEY,
		source_uri  TEXT NOT NULL,
		target      TEXT NOT NULL,
		status      TEXT NOT NULL,
		rows        INTEGER NOT NULL DEFAULT 0,
		error       TEXT,
		started_at  TEXT NOT NULL,
		finished_at TEXT
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create load_jobs: %w", err)
	}

	return &SQLiteWarehouse{db: db, objects: objects, ensured: make(map[string]bool)}, nil
}

// Close closes the underlying database connection.
func (w *SQLiteWarehouse) Close() error {
	return w.db.Close()
}

// EnsureTable creates the bar table and its lookup index if missing.
func (w *SQLiteWarehouse) EnsureTable(ctx context.Context, table string) error {
	if !tableNameRE.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ensured[table] {
		return nil
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + table + ` (
			date       TEXT    NOT NULL,
			stock_code TEXT    NOT NULL,
			open       REAL,
			high       REAL,
			low        REAL,
			close      REAL,
			adj_close  REAL,
			volume     INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_` + table + `_code_date ON ` + table + `(stock_code, date)`,
	}
	for _, stmt := range stmts {
		if _, err := w.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure table %s: %w", table, err)
		}
	}
	w.ensured[table] = true
	return nil
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// MaxDate returns MAX(date) of table.
func (w *SQLiteWarehouse) MaxDate(ctx context.Context, table string) (time.Time, bool, error) {
	if err := w.EnsureTable(ctx, table); err != nil {
		return time.Time{}, false, err
	}

	var max sql.NullString
	if err := w.db.QueryRowContext(ctx, `SELECT MAX(date) FROM `+table).Scan(&max); err != nil {
		return time.Time{}, false, err
	}
	if !max.Valid || max.String == "" {
		return time.Time{}, false, nil
	}
	d, err := domain.ParseDate(max.String)
	if err != nil {
		return time.Time{}, false, err
	}
	return d, true, nil
}

// QueryBars selects bars for codes within [start, end], ordered by date and
// load order (rowid).
func (w *SQLiteWarehouse) QueryBars(ctx context.Context, table string, codes []string, start, end time.Time) ([]domain.DailyBar, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	if err := w.EnsureTable(ctx, table); err != nil {
		return nil, err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(codes)), ",")
	query := `SELECT rowid, date, stock_code, open, high, low, close, adj_close, volume
		FROM ` + table + `
		WHERE stock_code IN (` + placeholders + `)
		  AND date BETWEEN ? AND ?
		ORDER BY date ASC, rowid ASC`

	args := make([]any, 0, len(codes)+2)
	for _, c := range codes {
		args = append(args, c)
	}
	args = append(args, domain.FormatDate(start), domain.FormatDate(end))

	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []domain.DailyBar
	for rows.Next() {
		var (
			seq                                int64
			date, code                         string
			open, high, low, closePx, adjClose sql.NullFloat64
			volume                             sql.NullInt64
		)
		if err := rows.Scan(&seq, &date, &code, &open, &high, &low, &closePx, &adjClose, &volume); err != nil {
			return nil, err
		}
		d, err := domain.ParseDate(date)
		if err != nil {
			return nil, err
		}
		bars = append(bars, domain.DailyBar{
			Date:          d,
			StockCode:     code,
			Open:          decimal.NewFromFloat(open.Float64),
			High:          decimal.NewFromFloat(high.Float64),
			Low:           decimal.NewFromFloat(low.Float64),
			Close:         decimal.NewFromFloat(closePx.Float64),
			AdjustedClose: decimal.NewFromFloat(adjClose.Float64),
			Volume:        volume.Int64,
			Seq:           seq,
		})
	}
	return bars, rows.Err()
}

// ---------------------------------------------------------------------------
// Load jobs
// ---------------------------------------------------------------------------

// LoadStatus is the ledger state of a load job.
type LoadStatus string

const (
	LoadRunning   LoadStatus = "running"
	LoadSucceeded LoadStatus = "succeeded"
	LoadFailed    LoadStatus = "failed"
)

// LoadRecord is one row of the load_jobs ledger.
type LoadRecord struct {
	ID        string
	SourceURI string
	Target    string
	Status    LoadStatus
	Rows      int64
	Error     string
}

type sqliteLoadJob struct {
	id   string
	done chan struct{}
	rows int64
	err  error
}

func (j *sqliteLoadJob) ID() string { return j.id }

func (j *sqliteLoadJob) Wait(ctx context.Context) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-j.done:
		return j.rows, j.err
	}
}

// LoadAppend records a running job in the ledger and appends the artifact's
// rows to table in a single transaction in the background. The artifact must
// live in the warehouse's object store.
func (w *SQLiteWarehouse) LoadAppend(ctx context.Context, sourceURI, table string) (LoadJob, error) {
	if err := w.EnsureTable(ctx, table); err != nil {
		return nil, err
	}
	if w.objects == nil {
		return nil, errors.New("warehouse has no object store to load from")
	}
	root := strings.TrimSuffix(w.objects.URI(""), "/") + "/"
	if !strings.HasPrefix(sourceURI, root) || len(sourceURI) == len(root) {
		return nil, fmt.Errorf("source %s is not in object store %s", sourceURI, root)
	}
	key := strings.TrimPrefix(sourceURI, root)

	job := &sqliteLoadJob{id: uuid.NewString(), done: make(chan struct{})}
	_, err := w.db.ExecContext(ctx,
		`INSERT INTO load_jobs (id, source_uri, target, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		job.id, sourceURI, table, LoadRunning, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("recording load job: %w", err)
	}

	go func() {
		defer close(job.done)
		job.rows, job.err = w.appendArtifact(ctx, key, table)
		w.finishJob(job)
	}()
	return job, nil
}

func (w *SQLiteWarehouse) appendArtifact(ctx context.Context, key, table string) (int64, error) {
	rc, err := w.objects.Open(ctx, key)
	if err != nil {
		return 0, err
	}
	bars, err := ReadArtifact(rc)
	rc.Close()
	if err != nil {
		return 0, fmt.Errorf("decoding artifact: %w", err)
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+table+
		` (date, stock_code, open, high, low, close, adj_close, volume) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx,
			domain.FormatDate(b.Date), b.StockCode,
			b.Open.InexactFloat64(), b.High.InexactFloat64(), b.Low.InexactFloat64(),
			b.Close.InexactFloat64(), b.AdjustedClose.InexactFloat64(), b.Volume,
		); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int64(len(bars)), nil
}

func (w *SQLiteWarehouse) finishJob(job *sqliteLoadJob) {
	status, msg := LoadSucceeded, ""
	if job.err != nil {
		status, msg = LoadFailed, job.err.Error()
	}
	// The caller's context may be gone by now; the ledger update must land.
	_, err := w.db.Exec(
		`UPDATE load_jobs SET status = ?, rows = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, job.rows, msg, time.Now().UTC().Format(time.RFC3339), job.id)
	if err != nil && job.err == nil {
		job.err = fmt.Errorf("updating load ledger: %w", err)
	}
}

// LoadJobs returns the ledger, newest first.
func (w *SQLiteWarehouse) LoadJobs(ctx context.Context) ([]LoadRecord, error) {
	rows, err := w.db.QueryContext(ctx,
		`SELECT id, source_uri, target, status, rows, COALESCE(error, '') FROM load_jobs ORDER BY started_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LoadRecord
	for rows.Next() {
		var r LoadRecord
		if err := rows.Scan(&r.ID, &r.SourceURI, &r.Target, &r.Status, &r.Rows, &r.Error); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
