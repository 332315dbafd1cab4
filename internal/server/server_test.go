package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tendersync/internal/config"
	"github.com/sells-group/tendersync/internal/ingest"
	"github.com/sells-group/tendersync/internal/model"
	"github.com/sells-group/tendersync/internal/store"
)

// fakeStore is an in-memory store.Store for handler tests.
type fakeStore struct {
	opportunities []model.Opportunity
	contacts      []model.ContactWithLinks
	mappings      map[string]*model.DepartmentMapping
	jobs          []model.SyncJob
	pingErr       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{mappings: make(map[string]*model.DepartmentMapping)}
}

func (f *fakeStore) GetOpportunityByRef(context.Context, string, string) (*model.Opportunity, error) {
	return nil, nil
}
func (f *fakeStore) InsertOpportunity(context.Context, *model.Opportunity) error { return nil }
func (f *fakeStore) UpdateOpportunity(context.Context, *model.Opportunity) error { return nil }
func (f *fakeStore) ListOpportunities(_ context.Context, filter store.OpportunityFilter) ([]model.Opportunity, error) {
	var out []model.Opportunity
	for _, opp := range f.opportunities {
		if opp.TenantID != filter.TenantID {
			continue
		}
		if filter.Status != "" && opp.Status != filter.Status {
			continue
		}
		out = append(out, opp)
	}
	return out, nil
}
func (f *fakeStore) DistinctBuyerEntities(context.Context, string) ([]string, error) {
	return nil, nil
}
func (f *fakeStore) CountOpportunities(context.Context) (int, error) {
	return len(f.opportunities), nil
}
func (f *fakeStore) GetContactByEmail(context.Context, string, string) (*model.Contact, error) {
	return nil, nil
}
func (f *fakeStore) InsertContact(context.Context, *model.Contact) error          { return nil }
func (f *fakeStore) TouchContact(context.Context, string, time.Time, bool) error  { return nil }
func (f *fakeStore) HasContactLink(context.Context, string, string) (bool, error) { return false, nil }
func (f *fakeStore) UpsertContactLink(context.Context, *model.ContactLink) error  { return nil }
func (f *fakeStore) ListContacts(context.Context, string, int, int) ([]model.ContactWithLinks, error) {
	return f.contacts, nil
}
func (f *fakeStore) CountContacts(context.Context) (int, error) { return len(f.contacts), nil }
func (f *fakeStore) ListMappings(context.Context, string) ([]model.DepartmentMapping, error) {
	var out []model.DepartmentMapping
	for _, m := range f.mappings {
		out = append(out, *m)
	}
	return out, nil
}
func (f *fakeStore) CreateMapping(_ context.Context, m *model.DepartmentMapping) error {
	f.mappings[m.ID] = m
	return nil
}
func (f *fakeStore) UpdateMapping(_ context.Context, m *model.DepartmentMapping) error {
	if _, ok := f.mappings[m.ID]; !ok {
		return errNotFound
	}
	f.mappings[m.ID] = m
	return nil
}
func (f *fakeStore) DeleteMapping(_ context.Context, _ string, id string) error {
	if _, ok := f.mappings[id]; !ok {
		return errNotFound
	}
	delete(f.mappings, id)
	return nil
}
func (f *fakeStore) ImportMappings(context.Context, []model.DepartmentMapping) (int64, error) {
	return 0, nil
}
func (f *fakeStore) CreateSyncJob(context.Context, *model.SyncJob) error { return nil }
func (f *fakeStore) FinishSyncJob(context.Context, string, model.JobStatus, *model.SyncStats, string) error {
	return nil
}
func (f *fakeStore) ListSyncJobs(context.Context, string, int) ([]model.SyncJob, error) {
	return f.jobs, nil
}
func (f *fakeStore) EnsureIntegration(context.Context, string, string) error { return nil }
func (f *fakeStore) TouchIntegration(context.Context, string, string, time.Time) error {
	return nil
}
func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Ping(context.Context) error    { return f.pingErr }
func (f *fakeStore) Close() error                  { return nil }

var errNotFound = &notFoundErr{}

type notFoundErr struct{}

func (*notFoundErr) Error() string { return "mapping not found: x" }

// fakePipeline records the last request and returns a canned report.
type fakePipeline struct {
	lastReq ingest.Request
	report  *ingest.Report
	err     error
}

func (f *fakePipeline) Run(_ context.Context, req ingest.Request) (*ingest.Report, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	if f.report != nil {
		return f.report, nil
	}
	return &ingest.Report{
		JobID:   "job-1",
		Status:  model.JobCompleted,
		Stats:   model.SyncStats{OpportunitiesAdded: len(req.Records)},
		Success: true,
	}, nil
}

type fakeResolver struct {
	resolutions map[string]*model.Resolution
	unmapped    []string
}

func (f *fakeResolver) ResolveAll(_ context.Context, _ string, _ []string) (map[string]*model.Resolution, error) {
	return f.resolutions, nil
}
func (f *fakeResolver) Unmapped(context.Context, string) ([]string, error) {
	return f.unmapped, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.CORSOrigins = []string{"*"}
	cfg.Ingest.MaxBatch = 100
	cfg.Upload.MaxRows = 1000
	return cfg
}

func newTestServer(t *testing.T, st store.Store, p SyncRunner, res BuyerResolver) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(st, p, res, nil, testConfig()).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, newFakeStore(), &fakePipeline{}, nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestHealth_StoreDown(t *testing.T) {
	st := newFakeStore()
	st.pingErr = assert.AnError
	srv := newTestServer(t, st, &fakePipeline{}, nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSync_MissingTenant(t *testing.T) {
	srv := newTestServer(t, newFakeStore(), &fakePipeline{}, nil)

	resp := postJSON(t, srv.URL+"/api/sync", map[string]any{
		"opportunities": []map[string]string{{"externalRef": "RFQ-1"}},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSync_EmptyBatch(t *testing.T) {
	srv := newTestServer(t, newFakeStore(), &fakePipeline{}, nil)

	resp := postJSON(t, srv.URL+"/api/sync", map[string]any{
		"tenantId":      "tenant-a",
		"opportunities": []any{},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSync_BatchTooLarge(t *testing.T) {
	srv := newTestServer(t, newFakeStore(), &fakePipeline{}, nil)

	records := make([]map[string]string, 101)
	for i := range records {
		records[i] = map[string]string{"externalRef": "RFQ"}
	}
	resp := postJSON(t, srv.URL+"/api/sync", map[string]any{
		"tenantId":      "tenant-a",
		"opportunities": records,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestSync_Success(t *testing.T) {
	p := &fakePipeline{}
	srv := newTestServer(t, newFakeStore(), p, nil)

	resp := postJSON(t, srv.URL+"/api/sync", map[string]any{
		"tenantId": "tenant-a",
		"syncType": "full",
		"opportunities": []map[string]string{
			{"externalRef": "RFQ-1", "title": "Road resurfacing"},
			{"externalRef": "RFQ-2", "title": "Fleet maintenance"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body syncResponse
	decodeBody(t, resp, &body)
	assert.True(t, body.Success)
	assert.Equal(t, "job-1", body.SyncJobID)
	assert.Equal(t, 2, body.Stats.OpportunitiesAdded)

	assert.Equal(t, "tenant-a", p.lastReq.TenantID)
	assert.Equal(t, model.SyncFull, p.lastReq.SyncType)
	require.Len(t, p.lastReq.Records, 2)
}

func TestSync_PipelineError(t *testing.T) {
	p := &fakePipeline{err: assert.AnError}
	srv := newTestServer(t, newFakeStore(), p, nil)

	resp := postJSON(t, srv.URL+"/api/sync", map[string]any{
		"tenantId":      "tenant-a",
		"opportunities": []map[string]string{{"externalRef": "RFQ-1"}},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestSyncUpload_CSV(t *testing.T) {
	p := &fakePipeline{}
	srv := newTestServer(t, newFakeStore(), p, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("tenantId", "tenant-a"))
	fw, err := mw.CreateFormFile("file", "export.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Reference,Title\nRFQ-1,Road resurfacing\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/sync/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body syncResponse
	decodeBody(t, resp, &body)
	assert.True(t, body.Success)

	assert.Equal(t, model.SyncUpload, p.lastReq.SyncType)
	require.Len(t, p.lastReq.Records, 1)
	assert.Equal(t, "RFQ-1", p.lastReq.Records[0].ExternalRef)
}

func TestSyncUpload_UnsupportedType(t *testing.T) {
	srv := newTestServer(t, newFakeStore(), &fakePipeline{}, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("tenantId", "tenant-a"))
	fw, err := mw.CreateFormFile("file", "export.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/sync/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListOpportunities_Annotated(t *testing.T) {
	st := newFakeStore()
	st.opportunities = []model.Opportunity{
		{ID: "opp-1", TenantID: "tenant-a", ExternalRef: "RFQ-1", BuyerEntity: "Dept of Transport", Status: "Open"},
		{ID: "opp-2", TenantID: "tenant-a", ExternalRef: "RFQ-2", BuyerEntity: "Mystery Agency", Status: "Open"},
	}
	res := &fakeResolver{resolutions: map[string]*model.Resolution{
		"Dept of Transport": {Department: "Transport", Confidence: 1.0, Approved: true},
	}}
	srv := newTestServer(t, st, &fakePipeline{}, res)

	resp, err := http.Get(srv.URL + "/api/opportunities?tenantId=tenant-a")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Opportunities []opportunityView `json:"opportunities"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Opportunities, 2)
	require.NotNil(t, body.Opportunities[0].Resolution)
	assert.Equal(t, "Transport", body.Opportunities[0].Resolution.Department)
	assert.Nil(t, body.Opportunities[1].Resolution)
}

func TestListOpportunities_MissingTenant(t *testing.T) {
	srv := newTestServer(t, newFakeStore(), &fakePipeline{}, nil)

	resp, err := http.Get(srv.URL + "/api/opportunities")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMappings_CreateValidation(t *testing.T) {
	srv := newTestServer(t, newFakeStore(), &fakePipeline{}, nil)

	resp := postJSON(t, srv.URL+"/api/mappings", map[string]any{
		"tenantId":      "tenant-a",
		"sourcePattern": "transport",
		"department":    "Transport",
		"matchType":     "soundex",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMappings_CreateAndList(t *testing.T) {
	st := newFakeStore()
	srv := newTestServer(t, st, &fakePipeline{}, nil)

	resp := postJSON(t, srv.URL+"/api/mappings", map[string]any{
		"tenantId":      "tenant-a",
		"sourcePattern": "transport",
		"department":    "Transport",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created model.DepartmentMapping
	decodeBody(t, resp, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, model.MatchContains, created.MatchType) // default
	assert.InDelta(t, 1.0, created.Confidence, 0.001)       // default

	listResp, err := http.Get(srv.URL + "/api/mappings?tenantId=tenant-a")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, listResp.StatusCode)

	var body struct {
		Mappings []model.DepartmentMapping `json:"mappings"`
	}
	decodeBody(t, listResp, &body)
	assert.Len(t, body.Mappings, 1)
}

func TestMappings_UpdateNotFound(t *testing.T) {
	srv := newTestServer(t, newFakeStore(), &fakePipeline{}, nil)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/mappings/nope",
		strings.NewReader(`{"tenantId":"tenant-a","sourcePattern":"x","department":"X"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMappings_Delete(t *testing.T) {
	st := newFakeStore()
	st.mappings["m-1"] = &model.DepartmentMapping{ID: "m-1", TenantID: "tenant-a"}
	srv := newTestServer(t, st, &fakePipeline{}, nil)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/mappings/m-1?tenantId=tenant-a", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, st.mappings)
}

func TestMappings_Unmapped(t *testing.T) {
	res := &fakeResolver{unmapped: []string{"Agency X", "Dept Y"}}
	srv := newTestServer(t, newFakeStore(), &fakePipeline{}, res)

	resp, err := http.Get(srv.URL + "/api/mappings/unmapped?tenantId=tenant-a")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Unmapped []string `json:"unmapped"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, []string{"Agency X", "Dept Y"}, body.Unmapped)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RatePerSecond = 1
	cfg.Server.RateBurst = 1
	srv := httptest.NewServer(New(newFakeStore(), &fakePipeline{}, nil, nil, cfg).Routes())
	t.Cleanup(srv.Close)

	first, err := http.Get(srv.URL + "/api/jobs?tenantId=tenant-a")
	require.NoError(t, err)
	first.Body.Close()
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second, err := http.Get(srv.URL + "/api/jobs?tenantId=tenant-a")
	require.NoError(t, err)
	second.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
}
