//go:build !integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutbase/curator/internal/directory"
	"github.com/scoutbase/curator/internal/importer"
	"github.com/scoutbase/curator/internal/model"
	"github.com/scoutbase/curator/internal/review"
	"github.com/scoutbase/curator/internal/store"
	"github.com/scoutbase/curator/pkg/enrich"
)

type stubEnricher struct{}

func (stubEnricher) Enrich(_ context.Context, req enrich.Request) (*enrich.Result, error) {
	return &enrich.Result{NormalizedName: req.Name, Tagline: "stub"}, nil
}

// newTestAPI builds the full router over a real SQLite store.
func newTestAPI(t *testing.T) (http.Handler, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	api := &apiServer{
		directory: directory.New(st),
		review:    review.New(st),
		importer:  importer.New(st, stubEnricher{}, 2),
		store:     st,
		pageSize:  25,
	}
	return buildRouter(api), st
}

func seedPending(t *testing.T, st *store.SQLiteStore, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, st.CreateStartup(context.Background(), &model.Startup{
			ID:     id,
			Name:   "Startup " + id,
			Status: model.StatusPending,
		}))
	}
}

func doJSON(t *testing.T, mux http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestServeHealth(t *testing.T) {
	mux, _ := newTestAPI(t)

	rr := doJSON(t, mux, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
}

func TestServeListStartups(t *testing.T) {
	mux, st := newTestAPI(t)
	seedPending(t, st, "a", "b", "c")

	rr := doJSON(t, mux, http.MethodGet, "/api/startups?page=0&page_size=2", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var page directory.Page
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Rows, 2)
}

func TestServeListStartups_BadParams(t *testing.T) {
	mux, _ := newTestAPI(t)

	rr := doJSON(t, mux, http.MethodGet, "/api/startups?status=archived", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, mux, http.MethodGet, "/api/startups?page=-1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, mux, http.MethodGet, "/api/startups?page_size=zero", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServeTransition(t *testing.T) {
	mux, st := newTestAPI(t)
	seedPending(t, st, "a", "b")

	rr := doJSON(t, mux, http.MethodPost, "/api/startups/transition",
		map[string]any{"ids": []string{"a", "b"}, "action": "approve"},
		map[string]string{"X-Actor": "alice"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"count":2`)

	got, err := st.GetStartups(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	for _, s := range got {
		assert.Equal(t, model.StatusApproved, s.Status)
	}
}

func TestServeTransition_DuplicateIDs(t *testing.T) {
	mux, st := newTestAPI(t)
	seedPending(t, st, "a")

	rr := doJSON(t, mux, http.MethodPost, "/api/startups/transition",
		map[string]any{"ids": []string{"a", "a"}, "action": "approve"},
		map[string]string{"X-Actor": "alice"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"count":1`)

	// One mutation, one audit record.
	recs, err := st.ListAudit(context.Background(), "a")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestServeTransition_RequiresActor(t *testing.T) {
	mux, st := newTestAPI(t)
	seedPending(t, st, "a")

	rr := doJSON(t, mux, http.MethodPost, "/api/startups/transition",
		map[string]any{"ids": []string{"a"}, "action": "approve"}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "X-Actor header is required")
}

func TestServeTransition_Conflict(t *testing.T) {
	mux, st := newTestAPI(t)
	seedPending(t, st, "a")

	rr := doJSON(t, mux, http.MethodPost, "/api/startups/transition",
		map[string]any{"ids": []string{"a", "ghost"}, "action": "reject"},
		map[string]string{"X-Actor": "alice"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	var resp struct {
		OffendingIDs []string `json:"offending_ids"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, []string{"ghost"}, resp.OffendingIDs)

	// Conflict means nothing changed.
	got, err := st.GetStartups(context.Background(), []string{"a"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.StatusPending, got[0].Status)
}

func TestServeTransition_BadAction(t *testing.T) {
	mux, _ := newTestAPI(t)

	rr := doJSON(t, mux, http.MethodPost, "/api/startups/transition",
		map[string]any{"ids": []string{"a"}, "action": "archive"},
		map[string]string{"X-Actor": "alice"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServePreview(t *testing.T) {
	mux, st := newTestAPI(t)
	seedPending(t, st, "a")

	rr := doJSON(t, mux, http.MethodPost, "/api/startups/preview",
		map[string]any{"ids": []string{"a", "ghost"}, "action": "approve"}, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Items []review.PreviewItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 2)
	assert.True(t, resp.Items[0].Eligible)
	assert.False(t, resp.Items[1].Eligible)

	// Preview never mutates.
	got, err := st.GetStartups(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got[0].Status)
}

func TestServeImport(t *testing.T) {
	mux, st := newTestAPI(t)
	ctx := context.Background()

	_, err := st.BulkInsertCandidates(ctx, []model.Candidate{
		{Name: "Acme", Source: "feed"},
		{Name: "Beta", Source: "feed"},
	})
	require.NoError(t, err)

	rr := doJSON(t, mux, http.MethodPost, "/api/imports",
		map[string]any{"ids": []int64{1, 2, 99}},
		map[string]string{"X-Actor": "alice"})
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Outcomes  []model.ImportOutcome `json:"outcomes"`
		Succeeded int                   `json:"succeeded"`
		Failed    int                   `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Succeeded)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Outcomes, 3)
	assert.Equal(t, model.ReasonNotFound, resp.Outcomes[2].Reason)

	// The created startups are pending and visible in the directory.
	page, total, err := st.ListStartups(ctx, store.DirectoryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, s := range page {
		assert.Equal(t, model.StatusPending, s.Status)
	}
}

func TestServeAudit(t *testing.T) {
	mux, st := newTestAPI(t)
	seedPending(t, st, "a")

	rr := doJSON(t, mux, http.MethodPost, "/api/startups/transition",
		map[string]any{"ids": []string{"a"}, "action": "approve"},
		map[string]string{"X-Actor": "alice"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, mux, http.MethodGet, "/api/audit/a", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Records []model.AuditRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "alice", resp.Records[0].Actor)
	assert.Equal(t, string(model.StatusApproved), resp.Records[0].NewStatus)

	rr = doJSON(t, mux, http.MethodGet, "/api/audit/nope?candidate=true", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServeInvalidBody(t *testing.T) {
	mux, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/startups/transition", bytes.NewReader([]byte("not json")))
	req.Header.Set("X-Actor", "alice")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid request body")
}
