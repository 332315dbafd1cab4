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

	"github.com/sells-group/tendersync/internal/db"
	"github.com/sells-group/tendersync/internal/model"
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

// preparedStatements lists per-record hot-path queries prepared on each new
// connection so repeated batch execution skips the parse step.
var preparedStatements = map[string]string{
	"touch_contact":    `UPDATE contacts SET last_seen_at = $1, opportunity_count = opportunity_count + $2 WHERE id = $3`,
	"has_contact_link": `SELECT EXISTS(SELECT 1 FROM opportunity_contacts WHERE opportunity_id = $1 AND contact_id = $2)`,
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

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS opportunities (
	id             TEXT PRIMARY KEY,
	tenant_id      TEXT NOT NULL,
	external_ref   TEXT NOT NULL,
	title          TEXT NOT NULL DEFAULT '',
	buyer_entity   TEXT NOT NULL DEFAULT '',
	category       TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	published_at   TIMESTAMPTZ,
	closes_at      TIMESTAMPTZ,
	status         TEXT NOT NULL DEFAULT 'Open',
	contact_text   TEXT NOT NULL DEFAULT '',
	attachments    JSONB,
	content_hash   TEXT NOT NULL DEFAULT '',
	sync_job_id    TEXT,
	last_synced_at TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (tenant_id, external_ref)
);

CREATE INDEX IF NOT EXISTS idx_opportunities_tenant ON opportunities(tenant_id);
CREATE INDEX IF NOT EXISTS idx_opportunities_buyer ON opportunities(tenant_id, buyer_entity);
CREATE INDEX IF NOT EXISTS idx_opportunities_status ON opportunities(tenant_id, status);

CREATE TABLE IF NOT EXISTS contacts (
	id                TEXT PRIMARY KEY,
	tenant_id         TEXT NOT NULL,
	email             TEXT NOT NULL,
	name              TEXT NOT NULL DEFAULT '',
	phone             TEXT NOT NULL DEFAULT '',
	departments       JSONB,
	opportunity_count INTEGER NOT NULL DEFAULT 0,
	first_seen_at     TIMESTAMPTZ NOT NULL,
	last_seen_at      TIMESTAMPTZ NOT NULL,
	UNIQUE (tenant_id, email)
);

CREATE INDEX IF NOT EXISTS idx_contacts_tenant ON contacts(tenant_id);

CREATE TABLE IF NOT EXISTS opportunity_contacts (
	id             TEXT PRIMARY KEY,
	opportunity_id TEXT NOT NULL REFERENCES opportunities(id),
	contact_id     TEXT NOT NULL REFERENCES contacts(id),
	source_type    TEXT NOT NULL,
	source_detail  TEXT NOT NULL DEFAULT '',
	confidence     DOUBLE PRECISION NOT NULL DEFAULT 0,
	role           TEXT NOT NULL DEFAULT '',
	first_seen_at  TIMESTAMPTZ NOT NULL,
	last_seen_at   TIMESTAMPTZ NOT NULL,
	UNIQUE (opportunity_id, contact_id, source_type)
);

CREATE INDEX IF NOT EXISTS idx_opp_contacts_contact ON opportunity_contacts(contact_id);

CREATE TABLE IF NOT EXISTS department_mappings (
	id             TEXT PRIMARY KEY,
	tenant_id      TEXT NOT NULL,
	source_pattern TEXT NOT NULL,
	match_type     TEXT NOT NULL DEFAULT 'contains',
	department     TEXT NOT NULL,
	agency         TEXT NOT NULL DEFAULT '',
	confidence     DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	approved       BOOLEAN NOT NULL DEFAULT false,
	auto_generated BOOLEAN NOT NULL DEFAULT false,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (tenant_id, source_pattern, match_type)
);

CREATE INDEX IF NOT EXISTS idx_mappings_tenant ON department_mappings(tenant_id);

CREATE TABLE IF NOT EXISTS sync_jobs (
	id             TEXT PRIMARY KEY,
	tenant_id      TEXT NOT NULL,
	integration_id TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'pending',
	sync_type      TEXT NOT NULL DEFAULT 'incremental',
	stats          JSONB,
	error          TEXT,
	started_at     TIMESTAMPTZ NOT NULL,
	completed_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_sync_jobs_tenant ON sync_jobs(tenant_id, started_at DESC);

CREATE TABLE IF NOT EXISTS integrations (
	id             TEXT NOT NULL,
	tenant_id      TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'connected',
	last_synced_at TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tenant_id, id)
);
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

const opportunityColumns = `id, tenant_id, external_ref, title, buyer_entity, category, description,
	published_at, closes_at, status, contact_text, attachments, content_hash,
	sync_job_id, last_synced_at, created_at, updated_at`

func (s *PostgresStore) GetOpportunityByRef(ctx context.Context, tenantID, externalRef string) (*model.Opportunity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+opportunityColumns+` FROM opportunities WHERE tenant_id = $1 AND external_ref = $2`,
		tenantID, externalRef,
	)
	opp, err := scanOpportunity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get opportunity %s", externalRef)
	}
	return opp, nil
}

func (s *PostgresStore) InsertOpportunity(ctx context.Context, opp *model.Opportunity) error {
	attachmentsJSON, err := marshalAttachments(opp.Attachments)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal attachments")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO opportunities
		 (id, tenant_id, external_ref, title, buyer_entity, category, description,
		  published_at, closes_at, status, contact_text, attachments, content_hash,
		  sync_job_id, last_synced_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		opp.ID, opp.TenantID, opp.ExternalRef, opp.Title, opp.BuyerEntity, opp.Category,
		opp.Description, opp.PublishedAt, opp.ClosesAt, opp.Status, opp.ContactText,
		attachmentsJSON, opp.ContentHash, nullString(opp.SyncJobID), opp.LastSyncedAt,
		opp.CreatedAt, opp.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: insert opportunity %s", opp.ExternalRef)
}

// UpdateOpportunity overwrites every mutable field: last write wins, and a
// field absent in the new payload clears the stored value.
func (s *PostgresStore) UpdateOpportunity(ctx context.Context, opp *model.Opportunity) error {
	attachmentsJSON, err := marshalAttachments(opp.Attachments)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal attachments")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE opportunities SET
		   title = $1, buyer_entity = $2, category = $3, description = $4,
		   published_at = $5, closes_at = $6, status = $7, contact_text = $8,
		   attachments = $9, content_hash = $10, sync_job_id = $11,
		   last_synced_at = $12, updated_at = $13
		 WHERE id = $14`,
		opp.Title, opp.BuyerEntity, opp.Category, opp.Description,
		opp.PublishedAt, opp.ClosesAt, opp.Status, opp.ContactText,
		attachmentsJSON, opp.ContentHash, nullString(opp.SyncJobID),
		opp.LastSyncedAt, opp.UpdatedAt, opp.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update opportunity %s", opp.ExternalRef)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("opportunity not found: %s", opp.ID)
	}
	return nil
}

func (s *PostgresStore) ListOpportunities(ctx context.Context, filter OpportunityFilter) ([]model.Opportunity, error) {
	query := `SELECT ` + opportunityColumns + ` FROM opportunities WHERE tenant_id = $1`
	args := []any{filter.TenantID}
	argIdx := 2

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.BuyerEntity != "" {
		query += fmt.Sprintf(` AND buyer_entity = $%d`, argIdx)
		args = append(args, filter.BuyerEntity)
		argIdx++
	}
	query += ` ORDER BY last_synced_at DESC`

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
		return nil, eris.Wrap(err, "postgres: list opportunities")
	}
	defer rows.Close()

	var opps []model.Opportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan opportunity")
		}
		opps = append(opps, *opp)
	}
	return opps, eris.Wrap(rows.Err(), "postgres: list opportunities iterate")
}

func (s *PostgresStore) DistinctBuyerEntities(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT buyer_entity FROM opportunities
		 WHERE tenant_id = $1 AND buyer_entity != '' ORDER BY buyer_entity`,
		tenantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: distinct buyer entities")
	}
	defer rows.Close()

	var buyers []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, eris.Wrap(err, "postgres: scan buyer entity")
		}
		buyers = append(buyers, b)
	}
	return buyers, eris.Wrap(rows.Err(), "postgres: distinct buyer entities iterate")
}

func (s *PostgresStore) CountOpportunities(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM opportunities`).Scan(&count)
	return count, eris.Wrap(err, "postgres: count opportunities")
}

func (s *PostgresStore) GetContactByEmail(ctx context.Context, tenantID, email string) (*model.Contact, error) {
	var c model.Contact
	var departmentsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, email, name, phone, departments, opportunity_count, first_seen_at, last_seen_at
		 FROM contacts WHERE tenant_id = $1 AND email = $2`,
		tenantID, email,
	).Scan(&c.ID, &c.TenantID, &c.Email, &c.Name, &c.Phone, &departmentsJSON,
		&c.OpportunityCount, &c.FirstSeenAt, &c.LastSeenAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get contact %s", email)
	}
	if departmentsJSON != nil {
		if err := json.Unmarshal(departmentsJSON, &c.Departments); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal departments")
		}
	}
	return &c, nil
}

func (s *PostgresStore) InsertContact(ctx context.Context, c *model.Contact) error {
	departmentsJSON, err := marshalStrings(c.Departments)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal departments")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO contacts (id, tenant_id, email, name, phone, departments, opportunity_count, first_seen_at, last_seen_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.TenantID, c.Email, c.Name, c.Phone, departmentsJSON,
		c.OpportunityCount, c.FirstSeenAt, c.LastSeenAt,
	)
	return eris.Wrapf(err, "postgres: insert contact %s", c.Email)
}

func (s *PostgresStore) TouchContact(ctx context.Context, contactID string, seenAt time.Time, increment bool) error {
	delta := 0
	if increment {
		delta = 1
	}
	tag, err := s.pool.Exec(ctx, "touch_contact", seenAt, delta, contactID)
	if err != nil {
		return eris.Wrapf(err, "postgres: touch contact %s", contactID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("contact not found: %s", contactID)
	}
	return nil
}

func (s *PostgresStore) HasContactLink(ctx context.Context, opportunityID, contactID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, "has_contact_link", opportunityID, contactID).Scan(&exists)
	return exists, eris.Wrap(err, "postgres: has contact link")
}

// UpsertContactLink refreshes only last_seen_at when the
// (opportunity, contact, source_type) link already exists.
func (s *PostgresStore) UpsertContactLink(ctx context.Context, link *model.ContactLink) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO opportunity_contacts
		 (id, opportunity_id, contact_id, source_type, source_detail, confidence, role, first_seen_at, last_seen_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (opportunity_id, contact_id, source_type)
		 DO UPDATE SET last_seen_at = EXCLUDED.last_seen_at`,
		link.ID, link.OpportunityID, link.ContactID, link.SourceType, link.SourceDetail,
		link.Confidence, link.Role, link.FirstSeenAt, link.LastSeenAt,
	)
	return eris.Wrap(err, "postgres: upsert contact link")
}

func (s *PostgresStore) ListContacts(ctx context.Context, tenantID string, limit, offset int) ([]model.ContactWithLinks, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, email, name, phone, departments, opportunity_count, first_seen_at, last_seen_at
		 FROM contacts WHERE tenant_id = $1
		 ORDER BY last_seen_at DESC LIMIT $2 OFFSET $3`,
		tenantID, limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list contacts")
	}
	defer rows.Close()

	var contacts []model.ContactWithLinks
	ids := make([]string, 0)
	for rows.Next() {
		var c model.ContactWithLinks
		var departmentsJSON []byte
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Email, &c.Name, &c.Phone, &departmentsJSON,
			&c.OpportunityCount, &c.FirstSeenAt, &c.LastSeenAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan contact")
		}
		if departmentsJSON != nil {
			if err := json.Unmarshal(departmentsJSON, &c.Departments); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal departments")
			}
		}
		contacts = append(contacts, c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list contacts iterate")
	}
	if len(contacts) == 0 {
		return contacts, nil
	}

	linkRows, err := s.pool.Query(ctx,
		`SELECT oc.contact_id, oc.opportunity_id, o.title, oc.source_type, oc.confidence, oc.last_seen_at
		 FROM opportunity_contacts oc
		 JOIN opportunities o ON o.id = oc.opportunity_id
		 WHERE oc.contact_id = ANY($1)
		 ORDER BY oc.last_seen_at DESC`,
		ids,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list contact links")
	}
	defer linkRows.Close()

	linksByContact := make(map[string][]model.LinkedOpportunity)
	for linkRows.Next() {
		var contactID string
		var lo model.LinkedOpportunity
		if err := linkRows.Scan(&contactID, &lo.OpportunityID, &lo.Title, &lo.SourceType, &lo.Confidence, &lo.LastSeenAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan contact link")
		}
		linksByContact[contactID] = append(linksByContact[contactID], lo)
	}
	if err := linkRows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list contact links iterate")
	}

	for i := range contacts {
		contacts[i].Opportunities = linksByContact[contacts[i].ID]
	}
	return contacts, nil
}

func (s *PostgresStore) CountContacts(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&count)
	return count, eris.Wrap(err, "postgres: count contacts")
}

const mappingColumns = `id, tenant_id, source_pattern, match_type, department, agency, confidence, approved, auto_generated, created_at, updated_at`

func (s *PostgresStore) ListMappings(ctx context.Context, tenantID string) ([]model.DepartmentMapping, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+mappingColumns+` FROM department_mappings WHERE tenant_id = $1 ORDER BY source_pattern, match_type`,
		tenantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list mappings")
	}
	defer rows.Close()

	var mappings []model.DepartmentMapping
	for rows.Next() {
		var m model.DepartmentMapping
		if err := rows.Scan(&m.ID, &m.TenantID, &m.SourcePattern, &m.MatchType, &m.Department,
			&m.Agency, &m.Confidence, &m.Approved, &m.AutoGenerated, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan mapping")
		}
		mappings = append(mappings, m)
	}
	return mappings, eris.Wrap(rows.Err(), "postgres: list mappings iterate")
}

func (s *PostgresStore) CreateMapping(ctx context.Context, m *model.DepartmentMapping) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO department_mappings (`+mappingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		m.ID, m.TenantID, m.SourcePattern, m.MatchType, m.Department, m.Agency,
		m.Confidence, m.Approved, m.AutoGenerated, m.CreatedAt, m.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: create mapping %s", m.SourcePattern)
}

func (s *PostgresStore) UpdateMapping(ctx context.Context, m *model.DepartmentMapping) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE department_mappings SET
		   source_pattern = $1, match_type = $2, department = $3, agency = $4,
		   confidence = $5, approved = $6, auto_generated = $7, updated_at = $8
		 WHERE tenant_id = $9 AND id = $10`,
		m.SourcePattern, m.MatchType, m.Department, m.Agency,
		m.Confidence, m.Approved, m.AutoGenerated, m.UpdatedAt,
		m.TenantID, m.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update mapping %s", m.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("mapping not found: %s", m.ID)
	}
	return nil
}

func (s *PostgresStore) DeleteMapping(ctx context.Context, tenantID, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM department_mappings WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete mapping %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("mapping not found: %s", id)
	}
	return nil
}

// ImportMappings bulk-upserts operator-supplied rules via a temp table and
// INSERT ... ON CONFLICT, keyed on (tenant_id, source_pattern, match_type).
func (s *PostgresStore) ImportMappings(ctx context.Context, mappings []model.DepartmentMapping) (int64, error) {
	rows := make([][]any, 0, len(mappings))
	for _, m := range mappings {
		rows = append(rows, []any{
			m.ID, m.TenantID, m.SourcePattern, string(m.MatchType), m.Department,
			m.Agency, m.Confidence, m.Approved, m.AutoGenerated, m.CreatedAt, m.UpdatedAt,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "department_mappings",
		Columns: []string{"id", "tenant_id", "source_pattern", "match_type", "department",
			"agency", "confidence", "approved", "auto_generated", "created_at", "updated_at"},
		ConflictKeys: []string{"tenant_id", "source_pattern", "match_type"},
		UpdateCols: []string{"department", "agency", "confidence", "approved",
			"auto_generated", "updated_at"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import mappings")
	}
	return n, nil
}

func (s *PostgresStore) CreateSyncJob(ctx context.Context, job *model.SyncJob) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_jobs (id, tenant_id, integration_id, status, sync_type, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID, job.TenantID, job.IntegrationID, string(job.Status), string(job.SyncType), job.StartedAt,
	)
	return eris.Wrapf(err, "postgres: create sync job %s", job.ID)
}

// FinishSyncJob moves a job to its terminal status. Status only moves
// forward: a job already completed or failed is never rewritten.
func (s *PostgresStore) FinishSyncJob(ctx context.Context, jobID string, status model.JobStatus, stats *model.SyncStats, errMsg string) error {
	var statsJSON []byte
	if stats != nil {
		var err error
		statsJSON, err = json.Marshal(stats)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal job stats")
		}
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE sync_jobs
		 SET status = $1, stats = $2, error = NULLIF($3, ''), completed_at = now()
		 WHERE id = $4 AND status IN ('pending', 'running')`,
		string(status), statsJSON, errMsg, jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish sync job %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("sync_job not found or already terminal: %s", jobID)
	}
	return nil
}

func (s *PostgresStore) ListSyncJobs(ctx context.Context, tenantID string, limit int) ([]model.SyncJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, integration_id, status, sync_type, stats, error, started_at, completed_at
		 FROM sync_jobs
		 WHERE ($1 = '' OR tenant_id = $1)
		 ORDER BY started_at DESC LIMIT $2`,
		tenantID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sync jobs")
	}
	defer rows.Close()

	var jobs []model.SyncJob
	for rows.Next() {
		var j model.SyncJob
		var statsJSON []byte
		var errStr *string
		if err := rows.Scan(&j.ID, &j.TenantID, &j.IntegrationID, &j.Status, &j.SyncType,
			&statsJSON, &errStr, &j.StartedAt, &j.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sync job")
		}
		if errStr != nil {
			j.Error = *errStr
		}
		if statsJSON != nil {
			j.Stats = &model.SyncStats{}
			if err := json.Unmarshal(statsJSON, j.Stats); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal job stats")
			}
		}
		jobs = append(jobs, j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list sync jobs iterate")
}

func (s *PostgresStore) EnsureIntegration(ctx context.Context, tenantID, integrationID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO integrations (id, tenant_id, status, created_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (tenant_id, id) DO NOTHING`,
		integrationID, tenantID, model.IntegrationConnected,
	)
	return eris.Wrap(err, "postgres: ensure integration")
}

func (s *PostgresStore) TouchIntegration(ctx context.Context, tenantID, integrationID string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE integrations SET status = $1, last_synced_at = $2 WHERE tenant_id = $3 AND id = $4`,
		model.IntegrationConnected, at, tenantID, integrationID,
	)
	return eris.Wrap(err, "postgres: touch integration")
}

// scanOpportunity reads one opportunity row from a pgx row or rows cursor.
func scanOpportunity(row pgx.Row) (*model.Opportunity, error) {
	var opp model.Opportunity
	var attachmentsJSON []byte
	var syncJobID *string

	if err := row.Scan(&opp.ID, &opp.TenantID, &opp.ExternalRef, &opp.Title, &opp.BuyerEntity,
		&opp.Category, &opp.Description, &opp.PublishedAt, &opp.ClosesAt, &opp.Status,
		&opp.ContactText, &attachmentsJSON, &opp.ContentHash, &syncJobID,
		&opp.LastSyncedAt, &opp.CreatedAt, &opp.UpdatedAt); err != nil {
		return nil, err
	}
	if syncJobID != nil {
		opp.SyncJobID = *syncJobID
	}
	if attachmentsJSON != nil {
		if err := json.Unmarshal(attachmentsJSON, &opp.Attachments); err != nil {
			return nil, err
		}
	}
	return &opp, nil
}

func marshalAttachments(attachments []model.Attachment) ([]byte, error) {
	if attachments == nil {
		return nil, nil
	}
	return json.Marshal(attachments)
}

func marshalStrings(values []string) ([]byte, error) {
	if values == nil {
		return nil, nil
	}
	return json.Marshal(values)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
