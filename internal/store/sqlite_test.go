package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tendersync/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testOpportunity(tenantID, ref string) *model.Opportunity {
	now := time.Now().UTC().Truncate(time.Second)
	published := now.Add(-48 * time.Hour)
	return &model.Opportunity{
		ID:           "opp-" + ref,
		TenantID:     tenantID,
		ExternalRef:  ref,
		Title:        "Road resurfacing " + ref,
		BuyerEntity:  "Department of Transport",
		Category:     "works",
		Description:  "Resurfacing of arterial roads.",
		PublishedAt:  &published,
		Status:       model.StatusOpen,
		ContactText:  "Jane Doe jane.doe@gov.example",
		Attachments:  []model.Attachment{{Name: "tender.pdf", URL: "https://portal.example/tender.pdf"}},
		ContentHash:  "hash-" + ref,
		LastSyncedAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestSQLite_Opportunity_InsertAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	opp := testOpportunity("tenant-a", "RFQ-1")
	require.NoError(t, st.InsertOpportunity(ctx, opp))

	got, err := st.GetOpportunityByRef(ctx, "tenant-a", "RFQ-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, opp.ID, got.ID)
	assert.Equal(t, opp.Title, got.Title)
	assert.Equal(t, model.StatusOpen, got.Status)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "tender.pdf", got.Attachments[0].Name)
	require.NotNil(t, got.PublishedAt)
	assert.Nil(t, got.ClosesAt)
}

func TestSQLite_Opportunity_GetMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetOpportunityByRef(context.Background(), "tenant-a", "RFQ-404")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_Opportunity_TenantIsolation(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertOpportunity(ctx, testOpportunity("tenant-a", "RFQ-1")))

	// Same external ref under another tenant is a distinct record.
	other := testOpportunity("tenant-b", "RFQ-1")
	other.ID = "opp-b-RFQ-1"
	require.NoError(t, st.InsertOpportunity(ctx, other))

	got, err := st.GetOpportunityByRef(ctx, "tenant-b", "RFQ-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "opp-b-RFQ-1", got.ID)
}

func TestSQLite_Opportunity_Update(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	opp := testOpportunity("tenant-a", "RFQ-1")
	require.NoError(t, st.InsertOpportunity(ctx, opp))

	opp.Title = "Road resurfacing (amended)"
	opp.Status = "Closed"
	opp.Attachments = nil
	require.NoError(t, st.UpdateOpportunity(ctx, opp))

	got, err := st.GetOpportunityByRef(ctx, "tenant-a", "RFQ-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Road resurfacing (amended)", got.Title)
	assert.Equal(t, "Closed", got.Status)
	assert.Nil(t, got.Attachments)
}

func TestSQLite_ListOpportunities_Filtered(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := testOpportunity("tenant-a", "RFQ-1")
	b := testOpportunity("tenant-a", "RFQ-2")
	b.ID = "opp-RFQ-2b"
	b.Status = "Closed"
	b.BuyerEntity = "Department of Health"
	require.NoError(t, st.InsertOpportunity(ctx, a))
	require.NoError(t, st.InsertOpportunity(ctx, b))

	open, err := st.ListOpportunities(ctx, OpportunityFilter{TenantID: "tenant-a", Status: "Open"})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "RFQ-1", open[0].ExternalRef)

	health, err := st.ListOpportunities(ctx, OpportunityFilter{TenantID: "tenant-a", BuyerEntity: "Department of Health"})
	require.NoError(t, err)
	require.Len(t, health, 1)
	assert.Equal(t, "RFQ-2", health[0].ExternalRef)
}

func TestSQLite_DistinctBuyerEntities(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := testOpportunity("tenant-a", "RFQ-1")
	b := testOpportunity("tenant-a", "RFQ-2")
	b.ID = "opp-2"
	c := testOpportunity("tenant-a", "RFQ-3")
	c.ID = "opp-3"
	c.BuyerEntity = "Agency of Works"
	require.NoError(t, st.InsertOpportunity(ctx, a))
	require.NoError(t, st.InsertOpportunity(ctx, b))
	require.NoError(t, st.InsertOpportunity(ctx, c))

	buyers, err := st.DistinctBuyerEntities(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"Agency of Works", "Department of Transport"}, buyers)
}

func TestSQLite_Contact_RoundtripAndTouch(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	c := &model.Contact{
		ID:               "contact-1",
		TenantID:         "tenant-a",
		Email:            "jane.doe@gov.example",
		OpportunityCount: 1,
		FirstSeenAt:      now,
		LastSeenAt:       now,
	}
	require.NoError(t, st.InsertContact(ctx, c))

	got, err := st.GetContactByEmail(ctx, "tenant-a", "jane.doe@gov.example")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.OpportunityCount)

	later := now.Add(time.Hour)
	require.NoError(t, st.TouchContact(ctx, "contact-1", later, true))
	require.NoError(t, st.TouchContact(ctx, "contact-1", later, false))

	got, err = st.GetContactByEmail(ctx, "tenant-a", "jane.doe@gov.example")
	require.NoError(t, err)
	assert.Equal(t, 2, got.OpportunityCount)
}

func TestSQLite_Contact_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetContactByEmail(context.Background(), "tenant-a", "nobody@gov.example")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_ContactLink_UpsertRefreshesLastSeen(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, st.InsertOpportunity(ctx, testOpportunity("tenant-a", "RFQ-1")))
	require.NoError(t, st.InsertContact(ctx, &model.Contact{
		ID: "contact-1", TenantID: "tenant-a", Email: "jane.doe@gov.example",
		FirstSeenAt: now, LastSeenAt: now,
	}))

	link := &model.ContactLink{
		ID: "link-1", OpportunityID: "opp-RFQ-1", ContactID: "contact-1",
		SourceType: model.SourceContactField, SourceDetail: "jane.doe@gov.example",
		Confidence: 0.9, FirstSeenAt: now, LastSeenAt: now,
	}
	require.NoError(t, st.UpsertContactLink(ctx, link))

	has, err := st.HasContactLink(ctx, "opp-RFQ-1", "contact-1")
	require.NoError(t, err)
	assert.True(t, has)

	// Re-upserting the same (opportunity, contact, source) does not add a row.
	link.ID = "link-2"
	link.LastSeenAt = now.Add(time.Hour)
	require.NoError(t, st.UpsertContactLink(ctx, link))

	contacts, err := st.ListContacts(ctx, "tenant-a", 10, 0)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	require.Len(t, contacts[0].Opportunities, 1)
	assert.Equal(t, "opp-RFQ-1", contacts[0].Opportunities[0].OpportunityID)
}

func TestSQLite_ContactLink_DistinctSources(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, st.InsertOpportunity(ctx, testOpportunity("tenant-a", "RFQ-1")))
	require.NoError(t, st.InsertContact(ctx, &model.Contact{
		ID: "contact-1", TenantID: "tenant-a", Email: "jane.doe@gov.example",
		FirstSeenAt: now, LastSeenAt: now,
	}))

	for i, src := range []string{model.SourceContactField, model.SourceDescription} {
		require.NoError(t, st.UpsertContactLink(ctx, &model.ContactLink{
			ID: "link-" + src, OpportunityID: "opp-RFQ-1", ContactID: "contact-1",
			SourceType: src, Confidence: 0.9 - float64(i)*0.3,
			FirstSeenAt: now, LastSeenAt: now,
		}))
	}

	contacts, err := st.ListContacts(ctx, "tenant-a", 10, 0)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Len(t, contacts[0].Opportunities, 2)
}

func TestSQLite_Mappings_CRUD(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	m := &model.DepartmentMapping{
		ID: "m-1", TenantID: "tenant-a", SourcePattern: "Dept of Transport",
		MatchType: model.MatchExact, Department: "Transport", Confidence: 1.0,
		Approved: true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, st.CreateMapping(ctx, m))

	mappings, err := st.ListMappings(ctx, "tenant-a")
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, model.MatchExact, mappings[0].MatchType)
	assert.True(t, mappings[0].Approved)

	m.Department = "Transport & Infrastructure"
	require.NoError(t, st.UpdateMapping(ctx, m))

	mappings, err = st.ListMappings(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, "Transport & Infrastructure", mappings[0].Department)

	require.NoError(t, st.DeleteMapping(ctx, "tenant-a", "m-1"))
	mappings, err = st.ListMappings(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Empty(t, mappings)
}

func TestSQLite_Mappings_DeleteMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.DeleteMapping(context.Background(), "tenant-a", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_ImportMappings_UpsertsOnPatternKey(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	first := []model.DepartmentMapping{
		{ID: "m-1", TenantID: "tenant-a", SourcePattern: "transport", MatchType: model.MatchContains,
			Department: "Transport", Confidence: 0.8, CreatedAt: now, UpdatedAt: now},
	}
	n, err := st.ImportMappings(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Same (tenant, pattern, match_type) updates in place rather than duplicating.
	second := []model.DepartmentMapping{
		{ID: "m-2", TenantID: "tenant-a", SourcePattern: "transport", MatchType: model.MatchContains,
			Department: "Transport & Roads", Confidence: 0.9, Approved: true, CreatedAt: now, UpdatedAt: now.Add(time.Hour)},
	}
	_, err = st.ImportMappings(ctx, second)
	require.NoError(t, err)

	mappings, err := st.ListMappings(ctx, "tenant-a")
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, "m-1", mappings[0].ID)
	assert.Equal(t, "Transport & Roads", mappings[0].Department)
	assert.True(t, mappings[0].Approved)
}

func TestSQLite_SyncJob_Lifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	job := &model.SyncJob{
		ID: "job-1", TenantID: "tenant-a", IntegrationID: "int-1",
		Status: model.JobRunning, SyncType: model.SyncIncremental, StartedAt: now,
	}
	require.NoError(t, st.CreateSyncJob(ctx, job))

	stats := &model.SyncStats{OpportunitiesAdded: 3, ContactsFound: 2}
	require.NoError(t, st.FinishSyncJob(ctx, "job-1", model.JobCompleted, stats, ""))

	jobs, err := st.ListSyncJobs(ctx, "tenant-a", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, model.JobCompleted, jobs[0].Status)
	require.NotNil(t, jobs[0].Stats)
	assert.Equal(t, 3, jobs[0].Stats.OpportunitiesAdded)
	assert.Empty(t, jobs[0].Error)
	require.NotNil(t, jobs[0].CompletedAt)
}

func TestSQLite_SyncJob_TerminalStatusIsFinal(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, st.CreateSyncJob(ctx, &model.SyncJob{
		ID: "job-1", TenantID: "tenant-a", Status: model.JobRunning,
		SyncType: model.SyncFull, StartedAt: now,
	}))
	require.NoError(t, st.FinishSyncJob(ctx, "job-1", model.JobFailed, nil, "all 2 records failed"))

	// A second finish must not rewrite the terminal status.
	err := st.FinishSyncJob(ctx, "job-1", model.JobCompleted, nil, "")
	require.Error(t, err)

	jobs, err := st.ListSyncJobs(ctx, "tenant-a", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, model.JobFailed, jobs[0].Status)
	assert.Equal(t, "all 2 records failed", jobs[0].Error)
}

func TestSQLite_Integration_EnsureAndTouch(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.EnsureIntegration(ctx, "tenant-a", "int-1"))
	require.NoError(t, st.EnsureIntegration(ctx, "tenant-a", "int-1")) // idempotent

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.TouchIntegration(ctx, "tenant-a", "int-1", at))
}

func TestSQLite_Counts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, st.InsertOpportunity(ctx, testOpportunity("tenant-a", "RFQ-1")))
	require.NoError(t, st.InsertContact(ctx, &model.Contact{
		ID: "contact-1", TenantID: "tenant-a", Email: "jane.doe@gov.example",
		FirstSeenAt: now, LastSeenAt: now,
	}))

	opps, err := st.CountOpportunities(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, opps)

	contacts, err := st.CountContacts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, contacts)
}
