package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/dawitel/optimetricsapi/internal/db"
	"github.com/dawitel/optimetricsapi/internal/model"
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

// preparedStatements lists queries to prepare on each new connection. Task
// status updates are the hottest path: the engine persists a transition
// before and after every stage.
var preparedStatements = map[string]string{
	"get_task": `SELECT id, type, domain_id, status, stage, payload, priority, retry_count, max_retries, processing_at, completed_at, last_error, created_at, updated_at FROM tasks WHERE id = $1`,
	"update_task_status": `UPDATE tasks SET
		status = $1,
		stage = CASE WHEN $2 = '' THEN stage ELSE $2 END,
		last_error = NULLIF($3, ''),
		processing_at = CASE WHEN $1 = 'PROCESSING' AND processing_at IS NULL THEN now() ELSE processing_at END,
		completed_at = CASE WHEN $1 = 'COMPLETED' THEN now() ELSE completed_at END,
		updated_at = now()
	WHERE id = $4`,
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

const postgresMigration = `
CREATE TABLE IF NOT EXISTS domains (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	url        TEXT NOT NULL UNIQUE,
	project_id TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tasks (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	type          TEXT NOT NULL,
	domain_id     TEXT NOT NULL REFERENCES domains(id),
	status        TEXT NOT NULL DEFAULT 'PENDING',
	stage         TEXT NOT NULL,
	payload       JSONB NOT NULL,
	priority      INTEGER NOT NULL DEFAULT 0,
	retry_count   INTEGER NOT NULL DEFAULT 0,
	max_retries   INTEGER NOT NULL DEFAULT 3,
	processing_at TIMESTAMPTZ,
	completed_at  TIMESTAMPTZ,
	last_error    TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS reports (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	type       TEXT NOT NULL,
	title      TEXT NOT NULL,
	domain_id  TEXT NOT NULL REFERENCES domains(id),
	user_id    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS seo_reports (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	report_id         TEXT NOT NULL REFERENCES reports(id),
	domain_id         TEXT NOT NULL,
	user_id           TEXT NOT NULL,
	organic_traffic   INTEGER NOT NULL DEFAULT 0,
	organic_keywords  INTEGER NOT NULL DEFAULT 0,
	site_audit_score  INTEGER NOT NULL DEFAULT 0,
	site_audit_issues INTEGER NOT NULL DEFAULT 0,
	backlinks         INTEGER NOT NULL DEFAULT 0,
	referring_domains INTEGER NOT NULL DEFAULT 0,
	authority_score   INTEGER NOT NULL DEFAULT 0,
	page_load_time    DOUBLE PRECISION NOT NULL DEFAULT 0,
	mobile_friendly   BOOLEAN NOT NULL DEFAULT false,
	data              JSONB,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS keywords (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	domain_id     TEXT NOT NULL,
	term          TEXT NOT NULL,
	search_volume INTEGER NOT NULL DEFAULT 0,
	efficiency    INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (domain_id, term)
);

CREATE TABLE IF NOT EXISTS keyword_rankings (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	keyword_id    TEXT NOT NULL REFERENCES keywords(id),
	seo_report_id TEXT NOT NULL REFERENCES seo_reports(id),
	position      INTEGER NOT NULL,
	region        TEXT NOT NULL DEFAULT 'US',
	date          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS reviews (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	domain_id   TEXT NOT NULL,
	report_id   TEXT NOT NULL REFERENCES reports(id),
	source      TEXT NOT NULL,
	external_id TEXT,
	rating      DOUBLE PRECISION NOT NULL DEFAULT 0,
	title       TEXT,
	content     TEXT,
	author_name TEXT,
	review_date TIMESTAMPTZ,
	data        JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_domain_id ON tasks(domain_id);
CREATE INDEX IF NOT EXISTS idx_reports_domain_id ON reports(domain_id);
CREATE INDEX IF NOT EXISTS idx_keywords_domain_term ON keywords(domain_id, term);
CREATE INDEX IF NOT EXISTS idx_keyword_rankings_report ON keyword_rankings(seo_report_id);
CREATE INDEX IF NOT EXISTS idx_reviews_report_id ON reviews(report_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetDomain(ctx context.Context, id string) (*model.Domain, error) {
	var d model.Domain
	var projectID *string

	err := s.pool.QueryRow(ctx,
		`SELECT id, url, project_id, created_at FROM domains WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.URL, &projectID, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: domain %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get domain %s", id)
	}
	if projectID != nil {
		d.ProjectID = *projectID
	}
	return &d, nil
}

func (s *PostgresStore) CreateDomain(ctx context.Context, d *model.Domain) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO domains (id, url, project_id, created_at) VALUES ($1, $2, NULLIF($3, ''), $4)`,
		d.ID, d.URL, d.ProjectID, d.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert domain")
}

func (s *PostgresStore) CreateTask(ctx context.Context, t *model.Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO tasks (id, type, domain_id, status, stage, payload, priority, retry_count, max_retries, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, string(t.Type), t.DomainID, string(t.Status), string(t.Stage),
		[]byte(t.Payload), t.Priority, t.RetryCount, t.MaxRetries, t.CreatedAt, t.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert task")
}

func (s *PostgresStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	var t model.Task
	var payload []byte
	var lastError *string

	err := s.pool.QueryRow(ctx, "get_task", id).Scan(
		&t.ID, &t.Type, &t.DomainID, &t.Status, &t.Stage, &payload,
		&t.Priority, &t.RetryCount, &t.MaxRetries,
		&t.ProcessingAt, &t.CompletedAt, &lastError, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: task %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get task %s", id)
	}
	t.Payload = json.RawMessage(payload)
	if lastError != nil {
		t.LastError = *lastError
	}
	return &t, nil
}

func (s *PostgresStore) UpdateTaskStatus(ctx context.Context, id string, status model.TaskStatus, stage model.TaskStage, lastErr string) error {
	tag, err := s.pool.Exec(ctx, "update_task_status", string(status), string(stage), lastErr, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: update task status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: task %s", id)
	}
	return nil
}

func (s *PostgresStore) RetryTask(ctx context.Context, id string) (*model.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status != model.TaskStatusFailed {
		return nil, eris.Wrapf(ErrInvalidState, "postgres: task %s is %s", id, task.Status)
	}

	// The status guard in the WHERE clause keeps a concurrent retry from
	// double-incrementing; the stage is reset so observability reflects the
	// restart-from-scratch semantics.
	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks SET status = $1, stage = $2, retry_count = retry_count + 1, last_error = NULL, updated_at = now()
		 WHERE id = $3 AND status = $4`,
		string(model.TaskStatusPending), string(model.FirstStage(task.Type)), id, string(model.TaskStatusFailed),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: retry task %s", id)
	}
	if tag.RowsAffected() == 0 {
		return nil, eris.Wrapf(ErrInvalidState, "postgres: task %s changed state", id)
	}

	return s.GetTask(ctx, id)
}

func (s *PostgresStore) ListTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	query := `SELECT id, type, domain_id, status, stage, payload, priority, retry_count, max_retries, processing_at, completed_at, last_error, created_at, updated_at FROM tasks WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(` AND type = $%d`, argIdx)
		args = append(args, string(filter.Type))
		argIdx++
	}
	if filter.DomainID != "" {
		query += fmt.Sprintf(` AND domain_id = $%d`, argIdx)
		args = append(args, filter.DomainID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

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
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list tasks")
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		var t model.Task
		var payload []byte
		var lastError *string

		if err := rows.Scan(&t.ID, &t.Type, &t.DomainID, &t.Status, &t.Stage, &payload,
			&t.Priority, &t.RetryCount, &t.MaxRetries,
			&t.ProcessingAt, &t.CompletedAt, &lastError, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan task")
		}
		t.Payload = json.RawMessage(payload)
		if lastError != nil {
			t.LastError = *lastError
		}
		tasks = append(tasks, t)
	}
	return tasks, eris.Wrap(rows.Err(), "postgres: list tasks iterate")
}

func (s *PostgresStore) CreateReport(ctx context.Context, r *model.Report) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO reports (id, type, title, domain_id, user_id, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, string(r.Type), r.Title, r.DomainID, r.UserID, r.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert report")
}

func (s *PostgresStore) CreateSeoReport(ctx context.Context, r *model.SeoReport) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO seo_reports (id, report_id, domain_id, user_id, organic_traffic, organic_keywords, site_audit_score, site_audit_issues, backlinks, referring_domains, authority_score, page_load_time, mobile_friendly, data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		r.ID, r.ReportID, r.DomainID, r.UserID,
		r.OrganicTraffic, r.OrganicKeywords, r.SiteAuditScore, r.SiteAuditIssues,
		r.Backlinks, r.ReferringDomains, r.AuthorityScore, r.PageLoadTime, r.MobileFriendly,
		[]byte(r.Data), r.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert seo report")
}

func (s *PostgresStore) UpsertKeyword(ctx context.Context, k *model.Keyword) error {
	if k.ID == "" {
		k.ID = uuid.New().String()
	}
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC()
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO keywords (id, domain_id, term, search_volume, efficiency, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (domain_id, term) DO UPDATE SET search_volume = $4, efficiency = $5
		 RETURNING id`,
		k.ID, k.DomainID, k.Term, k.SearchVolume, k.Efficiency, k.CreatedAt,
	).Scan(&k.ID)
	return eris.Wrap(err, "postgres: upsert keyword")
}

func (s *PostgresStore) CreateKeywordRanking(ctx context.Context, kr *model.KeywordRanking) error {
	if kr.ID == "" {
		kr.ID = uuid.New().String()
	}
	if kr.Date.IsZero() {
		kr.Date = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO keyword_rankings (id, keyword_id, seo_report_id, position, region, date) VALUES ($1, $2, $3, $4, $5, $6)`,
		kr.ID, kr.KeywordID, kr.SeoReportID, kr.Position, kr.Region, kr.Date,
	)
	return eris.Wrap(err, "postgres: insert keyword ranking")
}

func (s *PostgresStore) CreateReview(ctx context.Context, rv *model.Review) error {
	if rv.ID == "" {
		rv.ID = uuid.New().String()
	}
	if rv.CreatedAt.IsZero() {
		rv.CreatedAt = time.Now().UTC()
	}

	dataJSON, err := json.Marshal(rv.Data)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal review data")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO reviews (id, domain_id, report_id, source, external_id, rating, title, content, author_name, review_date, data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rv.ID, rv.DomainID, rv.ReportID, string(rv.Source), rv.ExternalID,
		rv.Rating, rv.Title, rv.Content, rv.AuthorName, rv.ReviewDate, dataJSON, rv.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert review")
}
