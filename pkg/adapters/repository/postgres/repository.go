package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/wadjakorntonsri/go-shortlinks/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/ports"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation
const uniqueViolation = "23505"

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(ctx context.Context, dbURL string) (*PostgresRepository, error) {
	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(10 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgresRepository{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS links (
			id BIGSERIAL PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			destination_url TEXT NOT NULL,
			is_custom_alias BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS clicks (
			id BIGSERIAL PRIMARY KEY,
			code TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			requester_ip TEXT NOT NULL,
			user_agent TEXT,
			referrer TEXT,
			country TEXT,
			city TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_clicks_code_occurred_at ON clicks(code, occurred_at DESC)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) Create(ctx context.Context, link *domain.ShortLink) error {
	query := `INSERT INTO links (code, destination_url, is_custom_alias, created_at)
			  VALUES ($1, $2, $3, $4) RETURNING id`

	err := r.db.QueryRowContext(ctx, query, link.Code, link.DestinationURL, link.IsCustomAlias, link.CreatedAt).Scan(&link.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrCodeTaken
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) GetByCode(ctx context.Context, code string) (*domain.ShortLink, error) {
	query := `SELECT id, code, destination_url, is_custom_alias, created_at FROM links WHERE code = $1`

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

func (r *PostgresRepository) List(ctx context.Context, limit, offset int, search string) ([]domain.ShortLink, error) {
	if search == "" {
		return r.queryLinks(ctx, `SELECT id, code, destination_url, is_custom_alias, created_at
			FROM links ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	}
	return r.queryLinks(ctx, `SELECT id, code, destination_url, is_custom_alias, created_at
		FROM links WHERE code ILIKE $1 ESCAPE '\' OR destination_url ILIKE $1 ESCAPE '\'
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, likePattern(search), limit, offset)
}

func (r *PostgresRepository) Count(ctx context.Context, search string) (int64, error) {
	var count int64
	var err error
	if search == "" {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM links`).Scan(&count)
	} else {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM links WHERE code ILIKE $1 ESCAPE '\' OR destination_url ILIKE $1 ESCAPE '\'`, likePattern(search)).Scan(&count)
	}
	return count, err
}

func (r *PostgresRepository) TopLinks(ctx context.Context, limit int) ([]domain.ShortLink, error) {
	query := `
		SELECT l.id, l.code, l.destination_url, l.is_custom_alias, l.created_at, COUNT(c.id) AS click_count
		FROM links l
		LEFT JOIN clicks c ON c.code = l.code
		GROUP BY l.id
		ORDER BY click_count DESC, l.id ASC
		LIMIT $1`

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

func (r *PostgresRepository) Dump(ctx context.Context) ([]domain.ShortLink, error) {
	return r.queryLinks(ctx, `SELECT id, code, destination_url, is_custom_alias, created_at FROM links ORDER BY id ASC`)
}

func (r *PostgresRepository) Record(ctx context.Context, click *domain.ClickEvent) error {
	query := `INSERT INTO clicks (code, occurred_at, requester_ip, user_agent, referrer, country, city)
			  VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

	return r.db.QueryRowContext(ctx, query,
		click.Code, click.OccurredAt, click.RequesterIP,
		click.UserAgent, click.Referrer, click.Country, click.City,
	).Scan(&click.ID)
}

func (r *PostgresRepository) CountByCode(ctx context.Context, code string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clicks WHERE code = $1`, code).Scan(&count)
	return count, err
}

func (r *PostgresRepository) RecentByCode(ctx context.Context, code string, limit int) ([]domain.ClickEvent, error) {
	query := `SELECT id, code, occurred_at, requester_ip, user_agent, referrer, country, city
			  FROM clicks WHERE code = $1
			  ORDER BY occurred_at DESC, id DESC
			  LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, code, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clicks []domain.ClickEvent
	for rows.Next() {
		var c domain.ClickEvent
		// NULL columns scan into nil pointers
		if err := rows.Scan(&c.ID, &c.Code, &c.OccurredAt, &c.RequesterIP, &c.UserAgent, &c.Referrer, &c.Country, &c.City); err != nil {
			return nil, err
		}
		clicks = append(clicks, c)
	}
	return clicks, rows.Err()
}

func (r *PostgresRepository) TotalClicks(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clicks`).Scan(&count)
	return count, err
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern matches search as a literal, case-insensitive substring
func likePattern(search string) string {
	return "%" + likeEscaper.Replace(search) + "%"
}

func (r *PostgresRepository) queryLinks(ctx context.Context, query string, args ...interface{}) ([]domain.ShortLink, error) {
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

// Ensure interface compliance
var _ ports.Store = (*PostgresRepository)(nil)
