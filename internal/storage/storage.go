// Package storage keeps a history of analysis runs in a SQL database and provides
// atomic file writes for exported results.
//
// The driver is chosen from the DSN: postgres:// and postgresql:// URLs use pgx,
// mysql:// and mariadb:// URLs use the MySQL driver, and anything else is treated as
// a SQLite path (":memory:" included). Each run stores its summary numbers in columns
// and the full result as a JSON payload.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/chatconv/internal/logger"
	"github.com/rewired-gh/chatconv/internal/models"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get when no run has the requested id.
var ErrNotFound = errors.New("run not found")

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
	dialectMySQL
)

func (d dialect) String() string {
	switch d {
	case dialectPostgres:
		return "postgres"
	case dialectMySQL:
		return "mysql"
	default:
		return "sqlite"
	}
}

// Run is one stored analysis. List leaves Result empty.
type Run struct {
	ID             string                `json:"id"`
	CreatedAt      time.Time             `json:"created_at"`
	ChatUsers      int                   `json:"chat_users"`
	Conversions    int                   `json:"conversions"`
	Registrations  int                   `json:"registrations"`
	ConversionRate float64               `json:"conversion_rate"`
	Result         models.AnalysisResult `json:"result"`
}

// Store persists analysis runs
type Store struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

// New opens the database behind dsn and creates the runs table if needed.
func New(dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("storage dsn is empty")
	}

	driver, source, d, err := resolveDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", d, err)
	}
	switch d {
	case dialectSQLite:
		// One connection, otherwise every pooled connection to ":memory:" sees its own database.
		db.SetMaxOpenConns(1)
	default:
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	s := &Store{db: db, dialect: d, now: time.Now}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach %s database: %w", d, err)
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate %s database: %w", d, err)
	}

	logger.Debug("Run store opened (%s)", d)
	return s, nil
}

// Close releases the database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	payloadType := "TEXT"
	idType := "TEXT"
	if s.dialect == dialectMySQL {
		payloadType = "LONGTEXT"
		idType = "VARCHAR(36)"
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS runs (
			id %s PRIMARY KEY,
			created_at BIGINT NOT NULL,
			chat_users INTEGER NOT NULL,
			conversions INTEGER NOT NULL,
			registrations INTEGER NOT NULL,
			conversion_rate DOUBLE PRECISION NOT NULL,
			payload %s NOT NULL
		)`, idType, payloadType),
	}
	if s.dialect != dialectMySQL {
		stmts = append(stmts, `CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`)
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Save stores result under a new run id.
func (s *Store) Save(ctx context.Context, result models.AnalysisResult) (Run, error) {
	if err := result.Validate(); err != nil {
		return Run{}, fmt.Errorf("invalid result: %w", err)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return Run{}, fmt.Errorf("failed to marshal result: %w", err)
	}

	run := Run{
		ID:             uuid.NewString(),
		CreatedAt:      s.now().UTC(),
		ChatUsers:      result.Global.TotalChatUsers,
		Conversions:    result.Global.TotalConversions,
		Registrations:  result.Global.TotalRegistrations,
		ConversionRate: result.Global.GlobalConversionRate,
		Result:         result,
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO runs
		(id, created_at, chat_users, conversions, registrations, conversion_rate, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		run.ID, run.CreatedAt.UnixNano(), run.ChatUsers, run.Conversions,
		run.Registrations, run.ConversionRate, string(payload))
	if err != nil {
		return Run{}, fmt.Errorf("failed to insert run: %w", err)
	}

	logger.Debug("Stored run %s", run.ID)
	return run, nil
}

// Get loads a run with its full result.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT
		id, created_at, chat_users, conversions, registrations, conversion_rate, payload
		FROM runs WHERE id = ?`), id)

	var (
		run     Run
		created int64
		payload string
	)
	err := row.Scan(&run.ID, &created, &run.ChatUsers, &run.Conversions,
		&run.Registrations, &run.ConversionRate, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to read run %s: %w", id, err)
	}

	run.CreatedAt = time.Unix(0, created).UTC()
	if err := json.Unmarshal([]byte(payload), &run.Result); err != nil {
		return Run{}, fmt.Errorf("failed to decode run %s: %w", id, err)
	}
	return run, nil
}

// List returns run summaries newest first. A limit <= 0 returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, created_at, chat_users, conversions, registrations, conversion_rate
		FROM runs ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var (
			run     Run
			created int64
		)
		if err := rows.Scan(&run.ID, &created, &run.ChatUsers, &run.Conversions,
			&run.Registrations, &run.ConversionRate); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.CreatedAt = time.Unix(0, created).UTC()
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Rotate deletes all but the newest keep runs and returns how many were removed.
// A keep <= 0 keeps everything.
func (s *Store) Rotate(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	runs, err := s.List(ctx, 0)
	if err != nil {
		return 0, err
	}
	if len(runs) <= keep {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin rotation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	del := s.rebind(`DELETE FROM runs WHERE id = ?`)
	for _, run := range runs[keep:] {
		if _, err := tx.ExecContext(ctx, del, run.ID); err != nil {
			return 0, fmt.Errorf("failed to delete run %s: %w", run.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit rotation: %w", err)
	}

	removed := len(runs) - keep
	logger.Debug("Rotated %d old runs", removed)
	return removed, nil
}

// rebind rewrites ? placeholders as $1, $2, ... for postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func resolveDSN(dsn string) (driver, source string, d dialect, err error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "pgx", dsn, dialectPostgres, nil
	case strings.HasPrefix(dsn, "mysql://"), strings.HasPrefix(dsn, "mariadb://"):
		source, err = toMySQLDSN(dsn)
		if err != nil {
			return "", "", 0, err
		}
		return "mysql", source, dialectMySQL, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite", strings.TrimPrefix(dsn, "sqlite://"), dialectSQLite, nil
	default:
		return "sqlite", dsn, dialectSQLite, nil
	}
}

// toMySQLDSN converts a mysql:// or mariadb:// URL into the driver's
// user:pass@tcp(host)/db form.
func toMySQLDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("failed to parse dsn: %w", err)
	}

	user, pass := "", ""
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
	}
	host := u.Host
	db := strings.TrimPrefix(u.Path, "/")
	if user == "" || host == "" || db == "" {
		return "", errors.New("mysql dsn must include user, host and database")
	}

	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC&interpolateParams=true",
		user, pass, host, db), nil
}

// WriteFile writes data to path through a temporary file and a rename, so readers
// never see a partial file. Missing directories are created.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
