package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/tendersync/internal/ingest"
	"github.com/sells-group/tendersync/internal/model"
	"github.com/sells-group/tendersync/internal/store"
	"github.com/sells-group/tendersync/internal/upload"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	snap, err := s.collector.Collect(r.Context(), 24)
	if err != nil {
		zap.L().Error("status collection failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to collect metrics")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// syncRequest is the webhook payload posted by the scraper.
type syncRequest struct {
	TenantID      string                    `json:"tenantId"`
	IntegrationID string                    `json:"integrationId,omitempty"`
	SyncType      string                    `json:"syncType,omitempty"`
	Opportunities []model.OpportunityRecord `json:"opportunities"`
}

type syncResponse struct {
	Success   bool            `json:"success"`
	SyncJobID string          `json:"syncJobId,omitempty"`
	Stats     model.SyncStats `json:"stats"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TenantID == "" {
		respondError(w, http.StatusBadRequest, "tenantId is required")
		return
	}
	if len(req.Opportunities) == 0 {
		respondError(w, http.StatusBadRequest, "opportunities must not be empty")
		return
	}
	if s.maxBatch > 0 && len(req.Opportunities) > s.maxBatch {
		respondError(w, http.StatusRequestEntityTooLarge, "batch exceeds maximum size")
		return
	}

	s.runSync(w, r, ingest.Request{
		TenantID:      req.TenantID,
		IntegrationID: req.IntegrationID,
		SyncType:      model.SyncType(req.SyncType),
		Records:       req.Opportunities,
	})
}

// handleSyncUpload ingests a multipart CSV or XLSX export. Form fields:
// tenantId (required), file (required), charset, delimiter.
func (s *Server) handleSyncUpload(w http.ResponseWriter, r *http.Request) {
	maxBody := s.upload.MaxBodyMB
	if maxBody <= 0 {
		maxBody = 32
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBody<<20)

	if err := r.ParseMultipartForm(maxBody << 20); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	tenantID := r.FormValue("tenantId")
	if tenantID == "" {
		respondError(w, http.StatusBadRequest, "tenantId is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close() //nolint:errcheck

	var records []model.OpportunityRecord
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".csv":
		charset := r.FormValue("charset")
		if charset == "" {
			charset = s.upload.CSVCharset
		}
		var delim rune
		if d := r.FormValue("delimiter"); d != "" {
			delim = rune(d[0])
		}
		records, err = upload.ParseCSV(r.Context(), file, upload.CSVOptions{
			Delimiter: delim,
			Charset:   charset,
			MaxRows:   s.upload.MaxRows,
		})
	case ".xlsx":
		var data []byte
		data, err = io.ReadAll(file)
		if err == nil {
			records, err = upload.ParseXLSXBytes(data, upload.XLSXOptions{MaxRows: s.upload.MaxRows})
		}
	default:
		respondError(w, http.StatusBadRequest, "unsupported file type, expected .csv or .xlsx")
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(records) == 0 {
		respondError(w, http.StatusBadRequest, "no records found in file")
		return
	}

	s.runSync(w, r, ingest.Request{
		TenantID:      tenantID,
		IntegrationID: r.FormValue("integrationId"),
		SyncType:      model.SyncUpload,
		Records:       records,
	})
}

func (s *Server) runSync(w http.ResponseWriter, r *http.Request, req ingest.Request) {
	report, err := s.pipeline.Run(r.Context(), req)
	if err != nil {
		if errors.Is(err, ingest.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		zap.L().Error("sync failed before job start", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "sync failed")
		return
	}
	respondJSON(w, http.StatusOK, syncResponse{
		Success:   report.Success,
		SyncJobID: report.JobID,
		Stats:     report.Stats,
	})
}

// opportunityView is an opportunity annotated with its resolved department.
type opportunityView struct {
	model.Opportunity
	Resolution *model.Resolution `json:"resolution,omitempty"`
}

func (s *Server) handleListOpportunities(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenantId")
	if tenantID == "" {
		respondError(w, http.StatusBadRequest, "tenantId is required")
		return
	}

	limit, offset := pagination(r)
	opps, err := s.store.ListOpportunities(r.Context(), store.OpportunityFilter{
		TenantID:    tenantID,
		Status:      r.URL.Query().Get("status"),
		BuyerEntity: r.URL.Query().Get("buyer"),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		zap.L().Error("list opportunities failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}

	views := make([]opportunityView, len(opps))
	for i, opp := range opps {
		views[i] = opportunityView{Opportunity: opp}
	}

	if s.resolver != nil && len(opps) > 0 {
		buyers := make([]string, 0, len(opps))
		seen := make(map[string]bool, len(opps))
		for _, opp := range opps {
			if opp.BuyerEntity != "" && !seen[opp.BuyerEntity] {
				seen[opp.BuyerEntity] = true
				buyers = append(buyers, opp.BuyerEntity)
			}
		}
		resolutions, err := s.resolver.ResolveAll(r.Context(), tenantID, buyers)
		if err != nil {
			zap.L().Warn("buyer resolution failed, returning unannotated listing", zap.Error(err))
		} else {
			for i := range views {
				views[i].Resolution = resolutions[views[i].BuyerEntity]
			}
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{"opportunities": views})
}

func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenantId")
	if tenantID == "" {
		respondError(w, http.StatusBadRequest, "tenantId is required")
		return
	}

	limit, offset := pagination(r)
	contacts, err := s.store.ListContacts(r.Context(), tenantID, limit, offset)
	if err != nil {
		zap.L().Error("list contacts failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list contacts")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"contacts": contacts})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenantId")
	limit, _ := pagination(r)

	jobs, err := s.store.ListSyncJobs(r.Context(), tenantID, limit)
	if err != nil {
		zap.L().Error("list jobs failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handleListMappings(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenantId")
	if tenantID == "" {
		respondError(w, http.StatusBadRequest, "tenantId is required")
		return
	}

	mappings, err := s.store.ListMappings(r.Context(), tenantID)
	if err != nil {
		zap.L().Error("list mappings failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list mappings")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"mappings": mappings})
}

// mappingRequest is the create/update payload for one rule.
type mappingRequest struct {
	TenantID      string  `json:"tenantId"`
	SourcePattern string  `json:"sourcePattern"`
	MatchType     string  `json:"matchType,omitempty"`
	Department    string  `json:"department"`
	Agency        string  `json:"agency,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
	Approved      bool    `json:"approved,omitempty"`
}

func (req *mappingRequest) validate() string {
	if req.TenantID == "" {
		return "tenantId is required"
	}
	if req.SourcePattern == "" {
		return "sourcePattern is required"
	}
	if req.Department == "" {
		return "department is required"
	}
	if req.MatchType != "" && !model.MatchType(req.MatchType).Valid() {
		return "matchType must be exact, contains, regex, or fuzzy"
	}
	return ""
}

func (req *mappingRequest) toModel(id string, now time.Time) *model.DepartmentMapping {
	matchType := model.MatchType(req.MatchType)
	if matchType == "" {
		matchType = model.MatchContains
	}
	confidence := req.Confidence
	if confidence == 0 {
		confidence = 1.0
	}
	return &model.DepartmentMapping{
		ID:            id,
		TenantID:      req.TenantID,
		SourcePattern: req.SourcePattern,
		MatchType:     matchType,
		Department:    req.Department,
		Agency:        req.Agency,
		Confidence:    confidence,
		Approved:      req.Approved,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *Server) handleCreateMapping(w http.ResponseWriter, r *http.Request) {
	var req mappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	m := req.toModel(uuid.New().String(), time.Now().UTC())
	if err := s.store.CreateMapping(r.Context(), m); err != nil {
		zap.L().Error("create mapping failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create mapping")
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

func (s *Server) handleUpdateMapping(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req mappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	m := req.toModel(id, time.Now().UTC())
	if err := s.store.UpdateMapping(r.Context(), m); err != nil {
		if strings.Contains(err.Error(), "not found") {
			respondError(w, http.StatusNotFound, "mapping not found")
			return
		}
		zap.L().Error("update mapping failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to update mapping")
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteMapping(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenantId")
	if tenantID == "" {
		respondError(w, http.StatusBadRequest, "tenantId is required")
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.store.DeleteMapping(r.Context(), tenantID, id); err != nil {
		if strings.Contains(err.Error(), "not found") {
			respondError(w, http.StatusNotFound, "mapping not found")
			return
		}
		zap.L().Error("delete mapping failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to delete mapping")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleUnmapped(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenantId")
	if tenantID == "" {
		respondError(w, http.StatusBadRequest, "tenantId is required")
		return
	}
	if s.resolver == nil {
		respondError(w, http.StatusServiceUnavailable, "resolver not configured")
		return
	}

	buyers, err := s.resolver.Unmapped(r.Context(), tenantID)
	if err != nil {
		zap.L().Error("unmapped listing failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list unmapped buyers")
		return
	}
	if buyers == nil {
		buyers = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"unmapped": buyers})
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
