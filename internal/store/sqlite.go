package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/care-contact/directory-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the local
// development backend; production runs on Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS clinicians (
	practice_slug TEXT NOT NULL,
	slug          TEXT NOT NULL,
	name          TEXT NOT NULL DEFAULT '',
	role          TEXT NOT NULL DEFAULT '',
	profile_url   TEXT NOT NULL DEFAULT '',
	photo_url     TEXT NOT NULL DEFAULT '',
	specialties   TEXT,
	languages     TEXT,
	accepting     INTEGER,
	booking_url   TEXT NOT NULL DEFAULT '',
	education     TEXT,
	source_url    TEXT NOT NULL DEFAULT '',
	last_seen_at  DATETIME,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (practice_slug, slug)
);

CREATE INDEX IF NOT EXISTS idx_providers_city_state ON providers(city, state);
CREATE INDEX IF NOT EXISTS idx_clinicians_practice_slug ON clinicians(practice_slug);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqlitePracticeColumns = `slug, name, website, phone, email, address, city, state, zip, logo_url, description, services, source`

func (s *SQLiteStore) GetPractice(ctx context.Context, slug string) (*model.Practice, error) {
	var p model.Practice
	err := s.db.QueryRowContext(ctx,
		`SELECT `+sqlitePracticeColumns+` FROM providers WHERE slug = ?`,
		slug,
	).Scan(&p.Slug, &p.Name, &p.Website, &p.Phone, &p.Email, &p.Address,
		&p.City, &p.State, &p.Zip, &p.LogoURL, &p.Description, &p.Services, &p.Source)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get practice %s", slug)
	}
	return &p, nil
}

func (s *SQLiteStore) GetPractices(ctx context.Context, slugs []string) (map[string]model.Practice, error) {
	out := make(map[string]model.Practice, len(slugs))
	if len(slugs) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(slugs)), ",")
	args := make([]any, len(slugs))
	for i, s := range slugs {
		args[i] = s
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqlitePracticeColumns+` FROM providers WHERE slug IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get practices")
	}
	defer rows.Close()

	for rows.Next() {
		var p model.Practice
		if err := rows.Scan(&p.Slug, &p.Name, &p.Website, &p.Phone, &p.Email, &p.Address,
			&p.City, &p.State, &p.Zip, &p.LogoURL, &p.Description, &p.Services, &p.Source); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan practice")
		}
		out[p.Slug] = p
	}
	return out, eris.Wrap(rows.Err(), "sqlite: get practices iterate")
}

func (s *SQLiteStore) UpsertPractices(ctx context.Context, practices []model.Practice) (int, error) {
	if len(practices) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert practices begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO providers (slug, name, website, phone, email, address, city, state, zip, logo_url, description, services, source, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (slug) DO UPDATE SET
			name = excluded.name, website = excluded.website, phone = excluded.phone,
			email = excluded.email, address = excluded.address, city = excluded.city,
			state = excluded.state, zip = excluded.zip, logo_url = excluded.logo_url,
			description = excluded.description, services = excluded.services,
			source = excluded.source, updated_at = excluded.updated_at`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert practice")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, p := range practices {
		if _, err := stmt.ExecContext(ctx,
			p.Slug, p.Name, p.Website, p.Phone, p.Email, p.Address,
			p.City, p.State, p.Zip, p.LogoURL, p.Description, p.Services,
			string(p.Source), now,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert practice %s", p.Slug)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert practices commit")
	}
	return len(practices), nil
}

func (s *SQLiteStore) SearchPractices(ctx context.Context, filter SearchFilter) ([]model.Practice, error) {
	query := `SELECT ` + sqlitePracticeColumns + ` FROM providers WHERE 1=1`
	var args []any

	if filter.Query != "" {
		query += ` AND (name LIKE ? OR city LIKE ?)`
		pattern := "%" + filter.Query + "%"
		args = append(args, pattern, pattern)
	}
	if filter.City != "" {
		query += ` AND city = ? COLLATE NOCASE`
		args = append(args, filter.City)
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, filter.State)
	}
	if filter.Service != "" {
		query += ` AND services LIKE ?`
		args = append(args, "%"+filter.Service+"%")
	}
	query += ` ORDER BY name ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search practices")
	}
	defer rows.Close()

	var practices []model.Practice
	for rows.Next() {
		var p model.Practice
		if err := rows.Scan(&p.Slug, &p.Name, &p.Website, &p.Phone, &p.Email, &p.Address,
			&p.City, &p.State, &p.Zip, &p.LogoURL, &p.Description, &p.Services, &p.Source); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan practice")
		}
		practices = append(practices, p)
	}
	return practices, eris.Wrap(rows.Err(), "sqlite: search practices iterate")
}

func (s *SQLiteStore) GetCliniciansByPractices(ctx context.Context, practiceSlugs []string) (map[string]model.Clinician, error) {
	out := make(map[string]model.Clinician)
	if len(practiceSlugs) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(practiceSlugs)), ",")
	args := make([]any, len(practiceSlugs))
	for i, s := range practiceSlugs {
		args[i] = s
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT practice_slug, slug, name, role, profile_url, photo_url, specialties,
		       languages, accepting, booking_url, education, source_url, last_seen_at
		FROM clinicians WHERE practice_slug IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get clinicians")
	}
	defer rows.Close()

	for rows.Next() {
		var c model.Clinician
		var specialties, languages, education sql.NullString
		var accepting sql.NullBool
		var lastSeen sql.NullTime

		if err := rows.Scan(&c.PracticeSlug, &c.Slug, &c.Name, &c.Role, &c.ProfileURL,
			&c.PhotoURL, &specialties, &languages, &accepting, &c.BookingURL,
			&education, &c.SourceURL, &lastSeen); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan clinician")
		}

		if err := unmarshalNullList(specialties, &c.Specialties); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal specialties")
		}
		if err := unmarshalNullList(languages, &c.Languages); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal languages")
		}
		if err := unmarshalNullList(education, &c.Education); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal education")
		}
		if accepting.Valid {
			c.Accepting = &accepting.Bool
		}
		if lastSeen.Valid {
			c.LastSeenAt = lastSeen.Time
		}
		out[c.Key()] = c
	}
	return out, eris.Wrap(rows.Err(), "sqlite: get clinicians iterate")
}

func (s *SQLiteStore) UpsertClinicians(ctx context.Context, clinicians []model.Clinician) (int, error) {
	if len(clinicians) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert clinicians begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO clinicians (practice_slug, slug, name, role, profile_url, photo_url,
			specialties, languages, accepting, booking_url, education, source_url, last_seen_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (practice_slug, slug) DO UPDATE SET
			name = excluded.name, role = excluded.role, profile_url = excluded.profile_url,
			photo_url = excluded.photo_url, specialties = excluded.specialties,
			languages = excluded.languages, accepting = excluded.accepting,
			booking_url = excluded.booking_url, education = excluded.education,
			source_url = excluded.source_url, last_seen_at = excluded.last_seen_at,
			updated_at = excluded.updated_at`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert clinician")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, c := range clinicians {
		specialties, err := marshalNullList(c.Specialties)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal specialties")
		}
		languages, err := marshalNullList(c.Languages)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal languages")
		}
		education, err := marshalNullList(c.Education)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal education")
		}

		var accepting any
		if c.Accepting != nil {
			accepting = *c.Accepting
		}
		var lastSeen any
		if !c.LastSeenAt.IsZero() {
			lastSeen = c.LastSeenAt
		}

		if _, err := stmt.ExecContext(ctx,
			c.PracticeSlug, c.Slug, c.Name, c.Role, c.ProfileURL, c.PhotoURL,
			specialties, languages, accepting, c.BookingURL, education,
			c.SourceURL, lastSeen, now,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert clinician %s", c.Key())
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert clinicians commit")
	}
	return len(clinicians), nil
}

func marshalNullList(items []string) (any, error) {
	if len(items) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func unmarshalNullList(raw sql.NullString, dest *[]string) error {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw.String), dest)
}
