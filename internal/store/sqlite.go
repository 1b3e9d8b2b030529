package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/dawitel/optimetricsapi/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Useful for local
// development and single-node deployments where postgres is overkill.
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
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS domains (
	id         TEXT PRIMARY KEY,
	url        TEXT NOT NULL UNIQUE,
	project_id TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS tasks (
	id            TEXT PRIMARY KEY,
	type          TEXT NOT NULL,
	domain_id     TEXT NOT NULL REFERENCES domains(id),
	status        TEXT NOT NULL DEFAULT 'PENDING',
	stage         TEXT NOT NULL,
	payload       TEXT NOT NULL,
	priority      INTEGER NOT NULL DEFAULT 0,
	retry_count   INTEGER NOT NULL DEFAULT 0,
	max_retries   INTEGER NOT NULL DEFAULT 3,
	processing_at DATETIME,
	completed_at  DATETIME,
	last_error    TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS reports (
	id         TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	title      TEXT NOT NULL,
	domain_id  TEXT NOT NULL REFERENCES domains(id),
	user_id    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS seo_reports (
	id                TEXT PRIMARY KEY,
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
	page_load_time    REAL NOT NULL DEFAULT 0,
	mobile_friendly   INTEGER NOT NULL DEFAULT 0,
	data              TEXT,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS keywords (
	id            TEXT PRIMARY KEY,
	domain_id     TEXT NOT NULL,
	term          TEXT NOT NULL,
	search_volume INTEGER NOT NULL DEFAULT 0,
	efficiency    INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (domain_id, term)
);

CREATE TABLE IF NOT EXISTS keyword_rankings (
	id            TEXT PRIMARY KEY,
	keyword_id    TEXT NOT NULL REFERENCES keywords(id),
	seo_report_id TEXT NOT NULL REFERENCES seo_reports(id),
	position      INTEGER NOT NULL,
	region        TEXT NOT NULL DEFAULT 'US',
	date          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS reviews (
	id          TEXT PRIMARY KEY,
	domain_id   TEXT NOT NULL,
	report_id   TEXT NOT NULL REFERENCES reports(id),
	source      TEXT NOT NULL,
	external_id TEXT,
	rating      REAL NOT NULL DEFAULT 0,
	title       TEXT,
	content     TEXT,
	author_name TEXT,
	review_date DATETIME,
	data        TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_domain_id ON tasks(domain_id);
CREATE INDEX IF NOT EXISTS idx_reports_domain_id ON reports(domain_id);
CREATE INDEX IF NOT EXISTS idx_keyword_rankings_report ON keyword_rankings(seo_report_id);
CREATE INDEX IF NOT EXISTS idx_reviews_report_id ON reviews(report_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetDomain(ctx context.Context, id string) (*model.Domain, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, project_id, created_at FROM domains WHERE id = ?`,
		id,
	)

	var d model.Domain
	var projectID sql.NullString
	err := row.Scan(&d.ID, &d.URL, &projectID, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: domain %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get domain %s", id)
	}
	d.ProjectID = projectID.String
	return &d, nil
}

func (s *SQLiteStore) CreateDomain(ctx context.Context, d *model.Domain) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO domains (id, url, project_id, created_at) VALUES (?, ?, NULLIF(?, ''), ?)`,
		d.ID, d.URL, d.ProjectID, d.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert domain")
}

func (s *SQLiteStore) CreateTask(ctx context.Context, t *model.Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, type, domain_id, status, stage, payload, priority, retry_count, max_retries, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Type), t.DomainID, string(t.Status), string(t.Stage),
		string(t.Payload), t.Priority, t.RetryCount, t.MaxRetries, t.CreatedAt, t.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert task")
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, type, domain_id, status, stage, payload, priority, retry_count, max_retries, processing_at, completed_at, last_error, created_at, updated_at FROM tasks WHERE id = ?`,
		id,
	)
	t, err := scanTask(row)
	if err != nil {
		if eris.Is(err, ErrNotFound) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: task %s", id)
		}
		return nil, err
	}
	return t, nil
}

func (s *SQLiteStore) UpdateTaskStatus(ctx context.Context, id string, status model.TaskStatus, stage model.TaskStage, lastErr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET
			status = ?1,
			stage = CASE WHEN ?2 = '' THEN stage ELSE ?2 END,
			last_error = NULLIF(?3, ''),
			processing_at = CASE WHEN ?1 = 'PROCESSING' AND processing_at IS NULL THEN datetime('now') ELSE processing_at END,
			completed_at = CASE WHEN ?1 = 'COMPLETED' THEN datetime('now') ELSE completed_at END,
			updated_at = datetime('now')
		WHERE id = ?4`,
		string(status), string(stage), lastErr, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update task status %s", id)
	}
	return checkRowsAffected(res, "task", id)
}

func (s *SQLiteStore) RetryTask(ctx context.Context, id string) (*model.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status != model.TaskStatusFailed {
		return nil, eris.Wrapf(ErrInvalidState, "sqlite: task %s is %s", id, task.Status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, stage = ?, retry_count = retry_count + 1, last_error = NULL, updated_at = datetime('now')
		 WHERE id = ? AND status = ?`,
		string(model.TaskStatusPending), string(model.FirstStage(task.Type)), id, string(model.TaskStatusFailed),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: retry task %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return nil, eris.Wrapf(ErrInvalidState, "sqlite: task %s changed state", id)
	}

	return s.GetTask(ctx, id)
}

func (s *SQLiteStore) ListTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	query := `SELECT id, type, domain_id, status, stage, payload, priority, retry_count, max_retries, processing_at, completed_at, last_error, created_at, updated_at FROM tasks WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	if filter.DomainID != "" {
		query += ` AND domain_id = ?`
		args = append(args, filter.DomainID)
	}
	query += ` ORDER BY created_at DESC`

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
		return nil, eris.Wrap(err, "sqlite: list tasks")
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, eris.Wrap(rows.Err(), "sqlite: list tasks iterate")
}

func (s *SQLiteStore) CreateReport(ctx context.Context, r *model.Report) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (id, type, title, domain_id, user_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Type), r.Title, r.DomainID, r.UserID, r.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert report")
}

func (s *SQLiteStore) CreateSeoReport(ctx context.Context, r *model.SeoReport) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO seo_reports (id, report_id, domain_id, user_id, organic_traffic, organic_keywords, site_audit_score, site_audit_issues, backlinks, referring_domains, authority_score, page_load_time, mobile_friendly, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ReportID, r.DomainID, r.UserID,
		r.OrganicTraffic, r.OrganicKeywords, r.SiteAuditScore, r.SiteAuditIssues,
		r.Backlinks, r.ReferringDomains, r.AuthorityScore, r.PageLoadTime, r.MobileFriendly,
		string(r.Data), r.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert seo report")
}

func (s *SQLiteStore) UpsertKeyword(ctx context.Context, k *model.Keyword) error {
	if k.ID == "" {
		k.ID = uuid.New().String()
	}
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC()
	}

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO keywords (id, domain_id, term, search_volume, efficiency, created_at)
		 VALUES (?1, ?2, ?3, ?4, ?5, ?6)
		 ON CONFLICT (domain_id, term) DO UPDATE SET search_volume = ?4, efficiency = ?5
		 RETURNING id`,
		k.ID, k.DomainID, k.Term, k.SearchVolume, k.Efficiency, k.CreatedAt,
	)
	return eris.Wrap(row.Scan(&k.ID), "sqlite: upsert keyword")
}

func (s *SQLiteStore) CreateKeywordRanking(ctx context.Context, kr *model.KeywordRanking) error {
	if kr.ID == "" {
		kr.ID = uuid.New().String()
	}
	if kr.Date.IsZero() {
		kr.Date = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO keyword_rankings (id, keyword_id, seo_report_id, position, region, date) VALUES (?, ?, ?, ?, ?, ?)`,
		kr.ID, kr.KeywordID, kr.SeoReportID, kr.Position, kr.Region, kr.Date,
	)
	return eris.Wrap(err, "sqlite: insert keyword ranking")
}

func (s *SQLiteStore) CreateReview(ctx context.Context, rv *model.Review) error {
	if rv.ID == "" {
		rv.ID = uuid.New().String()
	}
	if rv.CreatedAt.IsZero() {
		rv.CreatedAt = time.Now().UTC()
	}

	dataJSON, err := json.Marshal(rv.Data)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal review data")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reviews (id, domain_id, report_id, source, external_id, rating, title, content, author_name, review_date, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rv.ID, rv.DomainID, rv.ReportID, string(rv.Source), rv.ExternalID,
		rv.Rating, rv.Title, rv.Content, rv.AuthorName, rv.ReviewDate, string(dataJSON), rv.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert review")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTask(row scannable) (*model.Task, error) {
	var t model.Task
	var payload string
	var lastError sql.NullString

	err := row.Scan(&t.ID, &t.Type, &t.DomainID, &t.Status, &t.Stage, &payload,
		&t.Priority, &t.RetryCount, &t.MaxRetries,
		&t.ProcessingAt, &t.CompletedAt, &lastError, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan task")
	}
	t.Payload = json.RawMessage(payload)
	t.LastError = lastError.String
	return &t, nil
}
