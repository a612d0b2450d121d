package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	msqlite "modernc.org/sqlite"                         // Local SQLite driver
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/wadjakorntonsri/go-shortlinks/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/ports"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbURL string) (*SQLiteRepository, error) {
	driverName := "sqlite"
	if strings.Contains(dbURL, "libsql://") || strings.Contains(dbURL, "wss://") {
		driverName = "libsql"
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, err
	}

	// A single local connection serialises writers instead of surfacing SQLITE_BUSY
	if driverName == "sqlite" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{db: db}, nil
}

func migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		destination_url TEXT NOT NULL,
		is_custom_alias BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS clicks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL,
		occurred_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		requester_ip TEXT NOT NULL,
		user_agent TEXT,
		referrer TEXT,
		country TEXT,
		city TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_clicks_code_occurred_at ON clicks(code, occurred_at);
	`
	_, err := db.Exec(query)
	return err
}

func (r *SQLiteRepository) Create(ctx context.Context, link *domain.ShortLink) error {
	query := `INSERT INTO links (code, destination_url, is_custom_alias, created_at) VALUES (?, ?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query, link.Code, link.DestinationURL, link.IsCustomAlias, link.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrCodeTaken
		}
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	link.ID = id
	return nil
}

func (r *SQLiteRepository) GetByCode(ctx context.Context, code string) (*domain.ShortLink, error) {
	query := `SELECT id, code, destination_url, is_custom_alias, created_at FROM links WHERE code = ?`

	var link domain.ShortLink
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&link.ID, &link.Code, &link.DestinationURL, &link.IsCustomAlias, &link.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *SQLiteRepository) List(ctx context.Context, limit, offset int, search string) ([]domain.ShortLink, error) {
	query := `SELECT id, code, destination_url, is_custom_alias, created_at FROM links`
	args := []interface{}{}

	if search != "" {
		query += ` WHERE code LIKE ? ESCAPE '\' OR destination_url LIKE ? ESCAPE '\'`
		args = append(args, likePattern(search), likePattern(search))
	}

	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	return r.queryLinks(ctx, query, args...)
}

func (r *SQLiteRepository) Count(ctx context.Context, search string) (int64, error) {
	query := `SELECT COUNT(*) FROM links`
	args := []interface{}{}

	if search != "" {
		query += ` WHERE code LIKE ? ESCAPE '\' OR destination_url LIKE ? ESCAPE '\'`
		args = append(args, likePattern(search), likePattern(search))
	}

	var count int64
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

func (r *SQLiteRepository) TopLinks(ctx context.Context, limit int) ([]domain.ShortLink, error) {
	query := `
		SELECT l.id, l.code, l.destination_url, l.is_custom_alias, l.created_at,
		(SELECT COUNT(*) FROM clicks c WHERE c.code = l.code) AS click_count
		FROM links l
		ORDER BY click_count DESC, l.id ASC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []domain.ShortLink
	for rows.Next() {
		var l domain.ShortLink
		if err := rows.Scan(&l.ID, &l.Code, &l.DestinationURL, &l.IsCustomAlias, &l.CreatedAt, &l.Clicks); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (r *SQLiteRepository) Dump(ctx context.Context) ([]domain.ShortLink, error) {
	return r.queryLinks(ctx, `SELECT id, code, destination_url, is_custom_alias, created_at FROM links ORDER BY id ASC`)
}

func (r *SQLiteRepository) Record(ctx context.Context, click *domain.ClickEvent) error {
	query := `INSERT INTO clicks (code, occurred_at, requester_ip, user_agent, referrer, country, city)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query,
		click.Code, click.OccurredAt, click.RequesterIP,
		toNull(click.UserAgent), toNull(click.Referrer), toNull(click.Country), toNull(click.City),
	)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	click.ID = id
	return nil
}

func (r *SQLiteRepository) CountByCode(ctx context.Context, code string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clicks WHERE code = ?`, code).Scan(&count)
	return count, err
}

func (r *SQLiteRepository) RecentByCode(ctx context.Context, code string, limit int) ([]domain.ClickEvent, error) {
	query := `SELECT id, code, occurred_at, requester_ip, user_agent, referrer, country, city
			  FROM clicks WHERE code = ?
			  ORDER BY occurred_at DESC, id DESC
			  LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, code, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clicks []domain.ClickEvent
	for rows.Next() {
		var c domain.ClickEvent
		var userAgent, referrer, country, city sql.NullString
		if err := rows.Scan(&c.ID, &c.Code, &c.OccurredAt, &c.RequesterIP, &userAgent, &referrer, &country, &city); err != nil {
			return nil, err
		}
		c.UserAgent = nullable(userAgent)
		c.Referrer = nullable(referrer)
		c.Country = nullable(country)
		c.City = nullable(city)
		clicks = append(clicks, c)
	}
	return clicks, rows.Err()
}

func (r *SQLiteRepository) TotalClicks(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clicks`).Scan(&count)
	return count, err
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) queryLinks(ctx context.Context, query string, args ...interface{}) ([]domain.ShortLink, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []domain.ShortLink
	for rows.Next() {
		var l domain.ShortLink
		if err := rows.Scan(&l.ID, &l.Code, &l.DestinationURL, &l.IsCustomAlias, &l.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// isUniqueViolation recognises both drivers: modernc reports an extended
// result code, the libsql client only a message.
func isUniqueViolation(err error) bool {
	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern matches search as a literal substring. SQLite LIKE folds
// ASCII case.
func likePattern(search string) string {
	return "%" + likeEscaper.Replace(search) + "%"
}

func toNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// Ensure interface compliance
var _ ports.Store = (*SQLiteRepository)(nil)
