package trendengine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v4/stdlib"
	_ "modernc.org/sqlite"

	"github.com/eringen/trendengine/content"
)

// Dialect selects the SQL flavour of the backing database.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

var (
	trendColumnList = []string{
		"slug", "title", "teaser", "spike", "category", "is_hero", "content",
		"related_topics", "related_queries", "image", "trended_at",
		"created_at", "updated_at", "version",
	}
	trendColumns = strings.Join(trendColumnList, ", ")
)

// Store is the SQL implementation of Repository.
type Store struct {
	db      *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
	now     func() time.Time
}

var _ Repository = (*Store)(nil)

// OpenStore opens the database for dialect and prepares the schema. For
// SQLite, dsn is a file path whose directory is created if needed.
func OpenStore(dialect Dialect, dsn string) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch dialect {
	case DialectSQLite, "":
		dialect = DialectSQLite
		if dir := filepath.Dir(dsn); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		db, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, err
		}
		// WAL lets readers run alongside the single writer; busy_timeout makes
		// writers wait instead of failing with SQLITE_BUSY.
		if _, err := db.Exec(`
			PRAGMA journal_mode=WAL;
			PRAGMA busy_timeout=5000;
			PRAGMA synchronous=NORMAL;
			PRAGMA cache_size=-8000;
		`); err != nil {
			db.Close()
			return nil, err
		}
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
	case DialectPostgres:
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", dialect)
	}
	s, err := NewStore(db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an open pool and ensures the schema exists.
func NewStore(db *sql.DB, dialect Dialect) (*Store, error) {
	var format sq.PlaceholderFormat = sq.Question
	if dialect == DialectPostgres {
		format = sq.Dollar
	}
	s := &Store{
		db:      db,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(format),
		now:     time.Now,
	}
	if err := s.ensureSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{`
CREATE TABLE IF NOT EXISTS trends (
    slug TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    teaser TEXT NOT NULL,
    spike TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL,
    is_hero INTEGER NOT NULL DEFAULT 0,
    content TEXT NOT NULL,
    related_topics TEXT NOT NULL DEFAULT '[]',
    related_queries TEXT NOT NULL DEFAULT '[]',
    image TEXT NOT NULL,
    trended_at TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    version BIGINT NOT NULL DEFAULT 1
)`,
		`CREATE INDEX IF NOT EXISTS trends_updated_at_idx ON trends (updated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS trends_category_idx ON trends (category, updated_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrend(row rowScanner) (Trend, error) {
	var (
		t                     Trend
		isHero                int
		body, topics, queries string
		createdAt, updatedAt  int64
	)
	err := row.Scan(&t.Slug, &t.Title, &t.Teaser, &t.Spike, &t.Category, &isHero,
		&body, &topics, &queries, &t.Image, &t.Timestamp, &createdAt, &updatedAt, &t.Version)
	if err != nil {
		return Trend{}, err
	}
	t.IsHero = isHero == 1
	if t.Content, err = content.Parse([]byte(body)); err != nil {
		return Trend{}, fmt.Errorf("decode content of %s: %w", t.Slug, err)
	}
	if err := json.Unmarshal([]byte(topics), &t.RelatedTopics); err != nil {
		return Trend{}, fmt.Errorf("decode related topics of %s: %w", t.Slug, err)
	}
	if err := json.Unmarshal([]byte(queries), &t.RelatedQueries); err != nil {
		return Trend{}, fmt.Errorf("decode related queries of %s: %w", t.Slug, err)
	}
	t.CreatedAt = time.Unix(0, createdAt).UTC()
	t.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return t, nil
}

// encoded holds the JSON columns of a trend.
type encoded struct {
	content, topics, queries string
}

func encode(t Trend) (encoded, error) {
	var e encoded
	b, err := json.Marshal(t.Content)
	if err != nil {
		return e, err
	}
	e.content = string(b)
	if b, err = json.Marshal(t.RelatedTopics); err != nil {
		return e, err
	}
	e.topics = string(b)
	if b, err = json.Marshal(t.RelatedQueries); err != nil {
		return e, err
	}
	e.queries = string(b)
	return e, nil
}

// prepare applies the write-time normalization shared by create and update.
func prepare(t *Trend) error {
	t.Title = strings.TrimSpace(t.Title)
	t.Teaser = strings.TrimSpace(t.Teaser)
	t.Spike = strings.TrimSpace(t.Spike)
	if err := validate(t); err != nil {
		return err
	}
	t.Content = content.Normalize(t.Content)
	t.RelatedTopics = nonNil(FilterEmpty(t.RelatedTopics))
	t.RelatedQueries = nonNil(FilterEmpty(t.RelatedQueries))
	if strings.TrimSpace(t.Image) == "" {
		t.Image = DefaultImage
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Create inserts t. The slug must be unused.
func (s *Store) Create(ctx context.Context, t Trend) (Trend, error) {
	if err := prepare(&t); err != nil {
		return Trend{}, err
	}
	now := s.now().UTC()
	t.CreatedAt, t.UpdatedAt, t.Version = now, now, 1
	enc, err := encode(t)
	if err != nil {
		return Trend{}, err
	}
	query, args, err := s.sb.Insert("trends").
		Columns(trendColumnList...).
		Values(t.Slug, t.Title, t.Teaser, t.Spike, t.Category, boolInt(t.IsHero),
			enc.content, enc.topics, enc.queries, t.Image, t.Timestamp,
			t.CreatedAt.UnixNano(), t.UpdatedAt.UnixNano(), t.Version).
		Suffix("ON CONFLICT (slug) DO NOTHING").
		ToSql()
	if err != nil {
		return Trend{}, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return Trend{}, fmt.Errorf("insert trend %s: %w", t.Slug, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return Trend{}, err
	} else if n == 0 {
		return Trend{}, ErrDuplicateSlug
	}
	return t, nil
}

// Get returns the trend with slug.
func (s *Store) Get(ctx context.Context, slug string) (Trend, error) {
	query, args, err := s.sb.Select(trendColumns).From("trends").Where(sq.Eq{"slug": slug}).ToSql()
	if err != nil {
		return Trend{}, err
	}
	t, err := scanTrend(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Trend{}, ErrNotFound
	}
	return t, err
}

// Exists reports whether a trend with slug is stored.
func (s *Store) Exists(ctx context.Context, slug string) (bool, error) {
	query, args, err := s.sb.Select("1").From("trends").Where(sq.Eq{"slug": slug}).ToSql()
	if err != nil {
		return false, err
	}
	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// List returns one page of trends, most recently updated first.
func (s *Store) List(ctx context.Context, q ListQuery) (Page, error) {
	q = q.normalized()
	where := sq.And{}
	if q.Category != "" {
		where = append(where, sq.Eq{"category": q.Category})
	}

	countQuery, args, err := s.sb.Select("COUNT(*)").From("trends").Where(where).ToSql()
	if err != nil {
		return Page{}, err
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return Page{}, fmt.Errorf("count trends: %w", err)
	}

	page := Page{
		Items:      []Trend{},
		Total:      total,
		TotalPages: (total + q.Limit - 1) / q.Limit,
		Page:       q.Page,
		Limit:      q.Limit,
	}
	if total == 0 || q.Page > page.TotalPages {
		return page, nil
	}

	query, args, err := s.sb.Select(trendColumns).From("trends").Where(where).
		OrderBy("updated_at DESC", "slug ASC").
		Limit(uint64(q.Limit)).
		Offset(uint64((q.Page - 1) * q.Limit)).
		ToSql()
	if err != nil {
		return Page{}, err
	}
	items, err := s.queryTrends(ctx, query, args...)
	if err != nil {
		return Page{}, err
	}
	page.Items = items
	return page, nil
}

// Hero returns the most recently updated trend flagged as hero, falling back
// to the most recently updated trend overall.
func (s *Store) Hero(ctx context.Context) (Trend, error) {
	for _, where := range []sq.Sqlizer{sq.Eq{"is_hero": 1}, sq.And{}} {
		query, args, err := s.sb.Select(trendColumns).From("trends").Where(where).
			OrderBy("updated_at DESC", "slug ASC").Limit(1).ToSql()
		if err != nil {
			return Trend{}, err
		}
		t, err := scanTrend(s.db.QueryRowContext(ctx, query, args...))
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return Trend{}, err
		}
	}
	return Trend{}, ErrNotFound
}

// Related returns up to limit trends in the same category as slug,
// excluding slug itself.
func (s *Store) Related(ctx context.Context, slug, category string, limit int) ([]Trend, error) {
	query, args, err := s.sb.Select(trendColumns).From("trends").
		Where(sq.Eq{"category": category}).
		Where(sq.NotEq{"slug": slug}).
		OrderBy("updated_at DESC", "slug ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}
	return s.queryTrends(ctx, query, args...)
}

// All returns every trend, most recently updated first.
func (s *Store) All(ctx context.Context) ([]Trend, error) {
	query, args, err := s.sb.Select(trendColumns).From("trends").
		OrderBy("updated_at DESC", "slug ASC").ToSql()
	if err != nil {
		return nil, err
	}
	return s.queryTrends(ctx, query, args...)
}

func (s *Store) queryTrends(ctx context.Context, query string, args ...any) ([]Trend, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trends := []Trend{}
	for rows.Next() {
		t, err := scanTrend(rows)
		if err != nil {
			return nil, err
		}
		trends = append(trends, t)
	}
	return trends, rows.Err()
}

// Update merges p into the stored trend. The write only succeeds if the
// stored version is still the one that was read. When p carries an expected
// version a concurrent change is reported as ErrVersionConflict; without one
// the merge is retried once against the newer row.
func (s *Store) Update(ctx context.Context, slug string, p Patch) (Trend, error) {
	t, err := s.update(ctx, slug, p)
	if errors.Is(err, ErrVersionConflict) && p.ExpectedVersion == nil {
		t, err = s.update(ctx, slug, p)
	}
	return t, err
}

func (s *Store) update(ctx context.Context, slug string, p Patch) (Trend, error) {
	cur, err := s.Get(ctx, slug)
	if err != nil {
		return Trend{}, err
	}
	if p.ExpectedVersion != nil && *p.ExpectedVersion != cur.Version {
		return Trend{}, ErrVersionConflict
	}
	next := cur
	p.apply(&next)
	next.Slug = cur.Slug
	if err := prepare(&next); err != nil {
		return Trend{}, err
	}
	next.UpdatedAt = s.now().UTC()
	if !next.UpdatedAt.After(cur.UpdatedAt) {
		next.UpdatedAt = cur.UpdatedAt.Add(time.Nanosecond)
	}
	next.Version = cur.Version + 1

	enc, err := encode(next)
	if err != nil {
		return Trend{}, err
	}
	query, args, err := s.sb.Update("trends").SetMap(map[string]any{
		"title":           next.Title,
		"teaser":          next.Teaser,
		"spike":           next.Spike,
		"category":        next.Category,
		"is_hero":         boolInt(next.IsHero),
		"content":         enc.content,
		"related_topics":  enc.topics,
		"related_queries": enc.queries,
		"image":           next.Image,
		"trended_at":      next.Timestamp,
		"updated_at":      next.UpdatedAt.UnixNano(),
		"version":         next.Version,
	}).Where(sq.Eq{"slug": slug, "version": cur.Version}).ToSql()
	if err != nil {
		return Trend{}, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return Trend{}, fmt.Errorf("update trend %s: %w", slug, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Trend{}, err
	}
	if n == 0 {
		if ok, err := s.Exists(ctx, slug); err == nil && !ok {
			return Trend{}, ErrNotFound
		}
		return Trend{}, ErrVersionConflict
	}
	return next, nil
}

// Delete removes the trend with slug.
func (s *Store) Delete(ctx context.Context, slug string) error {
	query, args, err := s.sb.Delete("trends").Where(sq.Eq{"slug": slug}).ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete trend %s: %w", slug, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
