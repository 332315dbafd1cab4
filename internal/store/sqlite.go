package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/tendersync/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Used for local
// development and single-node deployments.
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
CREATE TABLE IF NOT EXISTS opportunities (
	id             TEXT PRIMARY KEY,
	tenant_id      TEXT NOT NULL,
	external_ref   TEXT NOT NULL,
	title          TEXT NOT NULL DEFAULT '',
	buyer_entity   TEXT NOT NULL DEFAULT '',
	category       TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	published_at   DATETIME,
	closes_at      DATETIME,
	status         TEXT NOT NULL DEFAULT 'Open',
	contact_text   TEXT NOT NULL DEFAULT '',
	attachments    TEXT,
	content_hash   TEXT NOT NULL DEFAULT '',
	sync_job_id    TEXT,
	last_synced_at DATETIME NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (tenant_id, external_ref)
);

CREATE INDEX IF NOT EXISTS idx_opportunities_tenant ON opportunities(tenant_id);
CREATE INDEX IF NOT EXISTS idx_opportunities_buyer ON opportunities(tenant_id, buyer_entity);

CREATE TABLE IF NOT EXISTS contacts (
	id                TEXT PRIMARY KEY,
	tenant_id         TEXT NOT NULL,
	email             TEXT NOT NULL,
	name              TEXT NOT NULL DEFAULT '',
	phone             TEXT NOT NULL DEFAULT '',
	departments       TEXT,
	opportunity_count INTEGER NOT NULL DEFAULT 0,
	first_seen_at     DATETIME NOT NULL,
	last_seen_at      DATETIME NOT NULL,
	UNIQUE (tenant_id, email)
);

CREATE TABLE IF NOT EXISTS opportunity_contacts (
	id             TEXT PRIMARY KEY,
	opportunity_id TEXT NOT NULL REFERENCES opportunities(id),
	contact_id     TEXT NOT NULL REFERENCES contacts(id),
	source_type    TEXT NOT NULL,
	source_detail  TEXT NOT NULL DEFAULT '',
	confidence     REAL NOT NULL DEFAULT 0,
	role           TEXT NOT NULL DEFAULT '',
	first_seen_at  DATETIME NOT NULL,
	last_seen_at   DATETIME NOT NULL,
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
	confidence     REAL NOT NULL DEFAULT 1.0,
	approved       INTEGER NOT NULL DEFAULT 0,
	auto_generated INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (tenant_id, source_pattern, match_type)
);

CREATE TABLE IF NOT EXISTS sync_jobs (
	id             TEXT PRIMARY KEY,
	tenant_id      TEXT NOT NULL,
	integration_id TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'pending',
	sync_type      TEXT NOT NULL DEFAULT 'incremental',
	stats          TEXT,
	error          TEXT,
	started_at     DATETIME NOT NULL,
	completed_at   DATETIME
);

CREATE INDEX IF NOT EXISTS idx_sync_jobs_tenant ON sync_jobs(tenant_id, started_at);

CREATE TABLE IF NOT EXISTS integrations (
	id             TEXT NOT NULL,
	tenant_id      TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'connected',
	last_synced_at DATETIME,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (tenant_id, id)
);
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

func (s *SQLiteStore) GetOpportunityByRef(ctx context.Context, tenantID, externalRef string) (*model.Opportunity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+opportunityColumns+` FROM opportunities WHERE tenant_id = ? AND external_ref = ?`,
		tenantID, externalRef,
	)
	opp, err := scanOpportunitySQL(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get opportunity %s", externalRef)
	}
	return opp, nil
}

func (s *SQLiteStore) InsertOpportunity(ctx context.Context, opp *model.Opportunity) error {
	attachmentsJSON, err := marshalAttachments(opp.Attachments)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal attachments")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO opportunities
		 (id, tenant_id, external_ref, title, buyer_entity, category, description,
		  published_at, closes_at, status, contact_text, attachments, content_hash,
		  sync_job_id, last_synced_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		opp.ID, opp.TenantID, opp.ExternalRef, opp.Title, opp.BuyerEntity, opp.Category,
		opp.Description, opp.PublishedAt, opp.ClosesAt, opp.Status, opp.ContactText,
		nullBytes(attachmentsJSON), opp.ContentHash, nullString(opp.SyncJobID),
		opp.LastSyncedAt, opp.CreatedAt, opp.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert opportunity %s", opp.ExternalRef)
}

func (s *SQLiteStore) UpdateOpportunity(ctx context.Context, opp *model.Opportunity) error {
	attachmentsJSON, err := marshalAttachments(opp.Attachments)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal attachments")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE opportunities SET
		   title = ?, buyer_entity = ?, category = ?, description = ?,
		   published_at = ?, closes_at = ?, status = ?, contact_text = ?,
		   attachments = ?, content_hash = ?, sync_job_id = ?,
		   last_synced_at = ?, updated_at = ?
		 WHERE id = ?`,
		opp.Title, opp.BuyerEntity, opp.Category, opp.Description,
		opp.PublishedAt, opp.ClosesAt, opp.Status, opp.ContactText,
		nullBytes(attachmentsJSON), opp.ContentHash, nullString(opp.SyncJobID),
		opp.LastSyncedAt, opp.UpdatedAt, opp.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update opportunity %s", opp.ExternalRef)
	}
	return checkRowsAffected(res, "opportunity", opp.ID)
}

func (s *SQLiteStore) ListOpportunities(ctx context.Context, filter OpportunityFilter) ([]model.Opportunity, error) {
	query := `SELECT ` + opportunityColumns + ` FROM opportunities WHERE tenant_id = ?`
	args := []any{filter.TenantID}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.BuyerEntity != "" {
		query += ` AND buyer_entity = ?`
		args = append(args, filter.BuyerEntity)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY last_synced_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list opportunities")
	}
	defer rows.Close()

	var opps []model.Opportunity
	for rows.Next() {
		opp, err := scanOpportunitySQL(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan opportunity")
		}
		opps = append(opps, *opp)
	}
	return opps, eris.Wrap(rows.Err(), "sqlite: list opportunities iterate")
}

func (s *SQLiteStore) DistinctBuyerEntities(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT buyer_entity FROM opportunities
		 WHERE tenant_id = ? AND buyer_entity != '' ORDER BY buyer_entity`,
		tenantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: distinct buyer entities")
	}
	defer rows.Close()

	var buyers []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan buyer entity")
		}
		buyers = append(buyers, b)
	}
	return buyers, eris.Wrap(rows.Err(), "sqlite: distinct buyer entities iterate")
}

func (s *SQLiteStore) CountOpportunities(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM opportunities`).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count opportunities")
}

func (s *SQLiteStore) GetContactByEmail(ctx context.Context, tenantID, email string) (*model.Contact, error) {
	var c model.Contact
	var departmentsJSON []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, email, name, phone, departments, opportunity_count, first_seen_at, last_seen_at
		 FROM contacts WHERE tenant_id = ? AND email = ?`,
		tenantID, email,
	).Scan(&c.ID, &c.TenantID, &c.Email, &c.Name, &c.Phone, &departmentsJSON,
		&c.OpportunityCount, &c.FirstSeenAt, &c.LastSeenAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get contact %s", email)
	}
	if departmentsJSON != nil {
		if err := json.Unmarshal(departmentsJSON, &c.Departments); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal departments")
		}
	}
	return &c, nil
}

func (s *SQLiteStore) InsertContact(ctx context.Context, c *model.Contact) error {
	departmentsJSON, err := marshalStrings(c.Departments)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal departments")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO contacts (id, tenant_id, email, name, phone, departments, opportunity_count, first_seen_at, last_seen_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TenantID, c.Email, c.Name, c.Phone, nullBytes(departmentsJSON),
		c.OpportunityCount, c.FirstSeenAt, c.LastSeenAt,
	)
	return eris.Wrapf(err, "sqlite: insert contact %s", c.Email)
}

func (s *SQLiteStore) TouchContact(ctx context.Context, contactID string, seenAt time.Time, increment bool) error {
	delta := 0
	if increment {
		delta = 1
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET last_seen_at = ?, opportunity_count = opportunity_count + ? WHERE id = ?`,
		seenAt, delta, contactID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: touch contact %s", contactID)
	}
	return checkRowsAffected(res, "contact", contactID)
}

func (s *SQLiteStore) HasContactLink(ctx context.Context, opportunityID, contactID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM opportunity_contacts WHERE opportunity_id = ? AND contact_id = ?)`,
		opportunityID, contactID,
	).Scan(&exists)
	return exists, eris.Wrap(err, "sqlite: has contact link")
}

func (s *SQLiteStore) UpsertContactLink(ctx context.Context, link *model.ContactLink) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO opportunity_contacts
		 (id, opportunity_id, contact_id, source_type, source_detail, confidence, role, first_seen_at, last_seen_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (opportunity_id, contact_id, source_type)
		 DO UPDATE SET last_seen_at = excluded.last_seen_at`,
		link.ID, link.OpportunityID, link.ContactID, link.SourceType, link.SourceDetail,
		link.Confidence, link.Role, link.FirstSeenAt, link.LastSeenAt,
	)
	return eris.Wrap(err, "sqlite: upsert contact link")
}

func (s *SQLiteStore) ListContacts(ctx context.Context, tenantID string, limit, offset int) ([]model.ContactWithLinks, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, email, name, phone, departments, opportunity_count, first_seen_at, last_seen_at
		 FROM contacts WHERE tenant_id = ?
		 ORDER BY last_seen_at DESC LIMIT ? OFFSET ?`,
		tenantID, limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list contacts")
	}
	defer rows.Close()

	var contacts []model.ContactWithLinks
	for rows.Next() {
		var c model.ContactWithLinks
		var departmentsJSON []byte
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Email, &c.Name, &c.Phone, &departmentsJSON,
			&c.OpportunityCount, &c.FirstSeenAt, &c.LastSeenAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contact")
		}
		if departmentsJSON != nil {
			if err := json.Unmarshal(departmentsJSON, &c.Departments); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal departments")
			}
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list contacts iterate")
	}

	for i := range contacts {
		links, err := s.contactLinks(ctx, contacts[i].ID)
		if err != nil {
			return nil, err
		}
		contacts[i].Opportunities = links
	}
	return contacts, nil
}

func (s *SQLiteStore) contactLinks(ctx context.Context, contactID string) ([]model.LinkedOpportunity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT oc.opportunity_id, o.title, oc.source_type, oc.confidence, oc.last_seen_at
		 FROM opportunity_contacts oc
		 JOIN opportunities o ON o.id = oc.opportunity_id
		 WHERE oc.contact_id = ?
		 ORDER BY oc.last_seen_at DESC`,
		contactID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list contact links")
	}
	defer rows.Close()

	var links []model.LinkedOpportunity
	for rows.Next() {
		var lo model.LinkedOpportunity
		if err := rows.Scan(&lo.OpportunityID, &lo.Title, &lo.SourceType, &lo.Confidence, &lo.LastSeenAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contact link")
		}
		links = append(links, lo)
	}
	return links, eris.Wrap(rows.Err(), "sqlite: list contact links iterate")
}

func (s *SQLiteStore) CountContacts(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count contacts")
}

func (s *SQLiteStore) ListMappings(ctx context.Context, tenantID string) ([]model.DepartmentMapping, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+mappingColumns+` FROM department_mappings WHERE tenant_id = ? ORDER BY source_pattern, match_type`,
		tenantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list mappings")
	}
	defer rows.Close()

	var mappings []model.DepartmentMapping
	for rows.Next() {
		var m model.DepartmentMapping
		if err := rows.Scan(&m.ID, &m.TenantID, &m.SourcePattern, &m.MatchType, &m.Department,
			&m.Agency, &m.Confidence, &m.Approved, &m.AutoGenerated, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan mapping")
		}
		mappings = append(mappings, m)
	}
	return mappings, eris.Wrap(rows.Err(), "sqlite: list mappings iterate")
}

func (s *SQLiteStore) CreateMapping(ctx context.Context, m *model.DepartmentMapping) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO department_mappings (`+mappingColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.TenantID, m.SourcePattern, string(m.MatchType), m.Department, m.Agency,
		m.Confidence, m.Approved, m.AutoGenerated, m.CreatedAt, m.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: create mapping %s", m.SourcePattern)
}

func (s *SQLiteStore) UpdateMapping(ctx context.Context, m *model.DepartmentMapping) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE department_mappings SET
		   source_pattern = ?, match_type = ?, department = ?, agency = ?,
		   confidence = ?, approved = ?, auto_generated = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ?`,
		m.SourcePattern, string(m.MatchType), m.Department, m.Agency,
		m.Confidence, m.Approved, m.AutoGenerated, m.UpdatedAt,
		m.TenantID, m.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update mapping %s", m.ID)
	}
	return checkRowsAffected(res, "mapping", m.ID)
}

func (s *SQLiteStore) DeleteMapping(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM department_mappings WHERE tenant_id = ? AND id = ?`,
		tenantID, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete mapping %s", id)
	}
	return checkRowsAffected(res, "mapping", id)
}

// ImportMappings upserts rule rows one at a time inside a transaction.
// SQLite has no COPY protocol, so the Postgres bulk path does not apply.
func (s *SQLiteStore) ImportMappings(ctx context.Context, mappings []model.DepartmentMapping) (int64, error) {
	if len(mappings) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import mappings begin tx")
	}
	defer tx.Rollback()

	var total int64
	for _, m := range mappings {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO department_mappings (`+mappingColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (tenant_id, source_pattern, match_type)
			 DO UPDATE SET department = excluded.department, agency = excluded.agency,
			   confidence = excluded.confidence, approved = excluded.approved,
			   auto_generated = excluded.auto_generated, updated_at = excluded.updated_at`,
			m.ID, m.TenantID, m.SourcePattern, string(m.MatchType), m.Department, m.Agency,
			m.Confidence, m.Approved, m.AutoGenerated, m.CreatedAt, m.UpdatedAt,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: import mapping %s", m.SourcePattern)
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: import mappings commit")
	}
	return total, nil
}

func (s *SQLiteStore) CreateSyncJob(ctx context.Context, job *model.SyncJob) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_jobs (id, tenant_id, integration_id, status, sync_type, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.TenantID, job.IntegrationID, string(job.Status), string(job.SyncType), job.StartedAt,
	)
	return eris.Wrapf(err, "sqlite: create sync job %s", job.ID)
}

func (s *SQLiteStore) FinishSyncJob(ctx context.Context, jobID string, status model.JobStatus, stats *model.SyncStats, errMsg string) error {
	var statsJSON []byte
	if stats != nil {
		var err error
		statsJSON, err = json.Marshal(stats)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal job stats")
		}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_jobs
		 SET status = ?, stats = ?, error = NULLIF(?, ''), completed_at = ?
		 WHERE id = ? AND status IN ('pending', 'running')`,
		string(status), nullBytes(statsJSON), errMsg, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish sync job %s", jobID)
	}
	return checkRowsAffected(res, "sync_job", jobID)
}

func (s *SQLiteStore) ListSyncJobs(ctx context.Context, tenantID string, limit int) ([]model.SyncJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, integration_id, status, sync_type, stats, error, started_at, completed_at
		 FROM sync_jobs
		 WHERE (? = '' OR tenant_id = ?)
		 ORDER BY started_at DESC LIMIT ?`,
		tenantID, tenantID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sync jobs")
	}
	defer rows.Close()

	var jobs []model.SyncJob
	for rows.Next() {
		var j model.SyncJob
		var statsJSON []byte
		var errStr sql.NullString
		if err := rows.Scan(&j.ID, &j.TenantID, &j.IntegrationID, &j.Status, &j.SyncType,
			&statsJSON, &errStr, &j.StartedAt, &j.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sync job")
		}
		if errStr.Valid {
			j.Error = errStr.String
		}
		if statsJSON != nil {
			j.Stats = &model.SyncStats{}
			if err := json.Unmarshal(statsJSON, j.Stats); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal job stats")
			}
		}
		jobs = append(jobs, j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list sync jobs iterate")
}

func (s *SQLiteStore) EnsureIntegration(ctx context.Context, tenantID, integrationID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO integrations (id, tenant_id, status, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (tenant_id, id) DO NOTHING`,
		integrationID, tenantID, model.IntegrationConnected, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: ensure integration")
}

func (s *SQLiteStore) TouchIntegration(ctx context.Context, tenantID, integrationID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE integrations SET status = ?, last_synced_at = ? WHERE tenant_id = ? AND id = ?`,
		model.IntegrationConnected, at, tenantID, integrationID,
	)
	return eris.Wrap(err, "sqlite: touch integration")
}

// scanOpportunitySQL reads one opportunity row via a database/sql Scan func.
func scanOpportunitySQL(scan func(dest ...any) error) (*model.Opportunity, error) {
	var opp model.Opportunity
	var attachmentsJSON []byte
	var syncJobID sql.NullString

	if err := scan(&opp.ID, &opp.TenantID, &opp.ExternalRef, &opp.Title, &opp.BuyerEntity,
		&opp.Category, &opp.Description, &opp.PublishedAt, &opp.ClosesAt, &opp.Status,
		&opp.ContactText, &attachmentsJSON, &opp.ContentHash, &syncJobID,
		&opp.LastSyncedAt, &opp.CreatedAt, &opp.UpdatedAt); err != nil {
		return nil, err
	}
	if syncJobID.Valid {
		opp.SyncJobID = syncJobID.String
	}
	if attachmentsJSON != nil {
		if err := json.Unmarshal(attachmentsJSON, &opp.Attachments); err != nil {
			return nil, err
		}
	}
	return &opp, nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func nullBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}
