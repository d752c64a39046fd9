package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/care-contact/directory-cli/internal/db"
	"github.com/care-contact/directory-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_practice":  `SELECT slug, name, website, phone, email, address, city, state, zip, logo_url, description, services, source FROM providers WHERE slug = $1`,
	"get_practices": `SELECT slug, name, website, phone, email, address, city, state, zip, logo_url, description, services, source FROM providers WHERE slug = ANY($1)`,
	"get_clinicians_by_practices": `SELECT practice_slug, slug, name, role, profile_url, photo_url, specialties, languages, accepting, booking_url, education, source_url, last_seen_at FROM clinicians WHERE practice_slug = ANY($1)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool, used by tests.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS providers (
	slug        TEXT PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	website     TEXT NOT NULL DEFAULT '',
	phone       TEXT NOT NULL DEFAULT '',
	email       TEXT NOT NULL DEFAULT '',
	address     TEXT NOT NULL DEFAULT '',
	city        TEXT NOT NULL DEFAULT '',
	state       TEXT NOT NULL DEFAULT '',
	zip         TEXT NOT NULL DEFAULT '',
	logo_url    TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	services    TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL DEFAULT 'crawl',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS clinicians (
	practice_slug TEXT NOT NULL,
	slug          TEXT NOT NULL,
	name          TEXT NOT NULL DEFAULT '',
	role          TEXT NOT NULL DEFAULT '',
	profile_url   TEXT NOT NULL DEFAULT '',
	photo_url     TEXT NOT NULL DEFAULT '',
	specialties   JSONB,
	languages     JSONB,
	accepting     BOOLEAN,
	booking_url   TEXT NOT NULL DEFAULT '',
	education     JSONB,
	source_url    TEXT NOT NULL DEFAULT '',
	last_seen_at  TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (practice_slug, slug)
);

CREATE INDEX IF NOT EXISTS idx_providers_city_state ON providers(city, state);
CREATE INDEX IF NOT EXISTS idx_providers_name ON providers(name);
CREATE INDEX IF NOT EXISTS idx_clinicians_practice_slug ON clinicians(practice_slug);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const practiceColumns = `slug, name, website, phone, email, address, city, state, zip, logo_url, description, services, source`

func (s *PostgresStore) GetPractice(ctx context.Context, slug string) (*model.Practice, error) {
	var p model.Practice
	err := s.pool.QueryRow(ctx,
		`SELECT `+practiceColumns+` FROM providers WHERE slug = $1`,
		slug,
	).Scan(&p.Slug, &p.Name, &p.Website, &p.Phone, &p.Email, &p.Address,
		&p.City, &p.State, &p.Zip, &p.LogoURL, &p.Description, &p.Services, &p.Source)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get practice %s", slug)
	}
	return &p, nil
}

func (s *PostgresStore) GetPractices(ctx context.Context, slugs []string) (map[string]model.Practice, error) {
	out := make(map[string]model.Practice, len(slugs))
	if len(slugs) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+practiceColumns+` FROM providers WHERE slug = ANY($1)`,
		slugs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get practices")
	}
	defer rows.Close()

	for rows.Next() {
		var p model.Practice
		if err := rows.Scan(&p.Slug, &p.Name, &p.Website, &p.Phone, &p.Email, &p.Address,
			&p.City, &p.State, &p.Zip, &p.LogoURL, &p.Description, &p.Services, &p.Source); err != nil {
			return nil, eris.Wrap(err, "postgres: scan practice")
		}
		out[p.Slug] = p
	}
	return out, eris.Wrap(rows.Err(), "postgres: get practices iterate")
}

func (s *PostgresStore) UpsertPractices(ctx context.Context, practices []model.Practice) (int, error) {
	if len(practices) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(practices))
	for _, p := range practices {
		rows = append(rows, []any{
			p.Slug, p.Name, p.Website, p.Phone, p.Email, p.Address,
			p.City, p.State, p.Zip, p.LogoURL, p.Description, p.Services,
			string(p.Source), now,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "providers",
		Columns: []string{
			"slug", "name", "website", "phone", "email", "address",
			"city", "state", "zip", "logo_url", "description", "services",
			"source", "updated_at",
		},
		ConflictKeys: []string{"slug"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert practices")
	}
	return int(n), nil
}

func (s *PostgresStore) SearchPractices(ctx context.Context, filter SearchFilter) ([]model.Practice, error) {
	query := `SELECT ` + practiceColumns + ` FROM providers WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Query != "" {
		query += fmt.Sprintf(` AND (name ILIKE $%d OR city ILIKE $%d)`, argIdx, argIdx)
		args = append(args, "%"+filter.Query+"%")
		argIdx++
	}
	if filter.City != "" {
		query += fmt.Sprintf(` AND city ILIKE $%d`, argIdx)
		args = append(args, filter.City)
		argIdx++
	}
	if filter.State != "" {
		query += fmt.Sprintf(` AND state = $%d`, argIdx)
		args = append(args, filter.State)
		argIdx++
	}
	if filter.Service != "" {
		query += fmt.Sprintf(` AND services ILIKE $%d`, argIdx)
		args = append(args, "%"+filter.Service+"%")
		argIdx++
	}
	query += ` ORDER BY name ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search practices")
	}
	defer rows.Close()

	var practices []model.Practice
	for rows.Next() {
		var p model.Practice
		if err := rows.Scan(&p.Slug, &p.Name, &p.Website, &p.Phone, &p.Email, &p.Address,
			&p.City, &p.State, &p.Zip, &p.LogoURL, &p.Description, &p.Services, &p.Source); err != nil {
			return nil, eris.Wrap(err, "postgres: scan practice")
		}
		practices = append(practices, p)
	}
	return practices, eris.Wrap(rows.Err(), "postgres: search practices iterate")
}

const clinicianColumns = `practice_slug, slug, name, role, profile_url, photo_url, specialties, languages, accepting, booking_url, education, source_url, last_seen_at`

func (s *PostgresStore) GetCliniciansByPractices(ctx context.Context, practiceSlugs []string) (map[string]model.Clinician, error) {
	out := make(map[string]model.Clinician)
	if len(practiceSlugs) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+clinicianColumns+` FROM clinicians WHERE practice_slug = ANY($1)`,
		practiceSlugs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get clinicians")
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanClinician(rows)
		if err != nil {
			return nil, err
		}
		out[c.Key()] = c
	}
	return out, eris.Wrap(rows.Err(), "postgres: get clinicians iterate")
}

func (s *PostgresStore) UpsertClinicians(ctx context.Context, clinicians []model.Clinician) (int, error) {
	if len(clinicians) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(clinicians))
	for _, c := range clinicians {
		specialties, err := marshalList(c.Specialties)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal specialties")
		}
		languages, err := marshalList(c.Languages)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal languages")
		}
		education, err := marshalList(c.Education)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal education")
		}
		var lastSeen any
		if !c.LastSeenAt.IsZero() {
			lastSeen = c.LastSeenAt
		}
		rows = append(rows, []any{
			c.PracticeSlug, c.Slug, c.Name, c.Role, c.ProfileURL, c.PhotoURL,
			specialties, languages, c.Accepting, c.BookingURL, education,
			c.SourceURL, lastSeen, now,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "clinicians",
		Columns: []string{
			"practice_slug", "slug", "name", "role", "profile_url", "photo_url",
			"specialties", "languages", "accepting", "booking_url", "education",
			"source_url", "last_seen_at", "updated_at",
		},
		ConflictKeys: []string{"practice_slug", "slug"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert clinicians")
	}
	return int(n), nil
}

// rowScanner lets scanClinician serve both QueryRow and Query results.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanClinician(row rowScanner) (model.Clinician, error) {
	var c model.Clinician
	var specialties, languages, education []byte
	var lastSeen *time.Time

	if err := row.Scan(&c.PracticeSlug, &c.Slug, &c.Name, &c.Role, &c.ProfileURL,
		&c.PhotoURL, &specialties, &languages, &c.Accepting, &c.BookingURL,
		&education, &c.SourceURL, &lastSeen); err != nil {
		return c, eris.Wrap(err, "postgres: scan clinician")
	}

	if err := unmarshalList(specialties, &c.Specialties); err != nil {
		return c, eris.Wrap(err, "postgres: unmarshal specialties")
	}
	if err := unmarshalList(languages, &c.Languages); err != nil {
		return c, eris.Wrap(err, "postgres: unmarshal languages")
	}
	if err := unmarshalList(education, &c.Education); err != nil {
		return c, eris.Wrap(err, "postgres: unmarshal education")
	}
	if lastSeen != nil {
		c.LastSeenAt = *lastSeen
	}
	return c, nil
}

func marshalList(items []string) (any, error) {
	if len(items) == 0 {
		return nil, nil
	}
	return json.Marshal(items)
}

func unmarshalList(raw []byte, dest *[]string) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
