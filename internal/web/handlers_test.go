package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsualexotake/inseam-sub000/internal/config"
	"github.com/hsualexotake/inseam-sub000/internal/store/memory"
	"github.com/hsualexotake/inseam-sub000/internal/tracker"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Engine: config.EngineConfig{
			MaxBatchRows:    100,
			MaxCellLength:   100,
			MaxCSVBytes:     4096,
			DefaultPageSize: 10,
			MaxPageSize:     50,
		},
	}
	svc := tracker.NewService(memory.New(), cfg)
	return NewServer(svc, cfg)
}

func doJSON(t *testing.T, srv *Server, method, path, actor string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(actorHeader, actor)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func createTestTracker(t *testing.T, srv *Server) string {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/trackers", "user-1", map[string]any{
		"name": "Shipments",
		"slug": "shipments",
		"columns": []map[string]any{
			{"key": "sku", "name": "SKU", "type": "text", "required": true},
			{"key": "qty", "name": "Quantity", "type": "number"},
		},
		"primaryKeyColumn": "sku",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	return created.ID
}

func TestMissingActorHeader(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/trackers", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTrackerRowRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	id := createTestTracker(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/trackers/"+id+"/rows", "user-1",
		map[string]any{"sku": "SKU-1", "qty": "3"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Duplicate insert maps to 409.
	rec = doJSON(t, srv, http.MethodPost, "/api/trackers/"+id+"/rows", "user-1",
		map[string]any{"sku": "SKU-1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/trackers/"+id+"/rows", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Rows []struct {
			RowID string `json:"rowId"`
		} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "SKU-1", page.Rows[0].RowID)
}

func TestValidationFailureMapsTo422(t *testing.T) {
	srv := newTestServer(t)
	id := createTestTracker(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/trackers/"+id+"/rows", "user-1",
		map[string]any{"sku": "SKU-1", "qty": "not a number"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation_failed", resp.Code)
	assert.NotEmpty(t, resp.Fields)
}

func TestForeignTrackerMapsTo403(t *testing.T) {
	srv := newTestServer(t)
	id := createTestTracker(t, srv)

	rec := doJSON(t, srv, http.MethodGet, "/api/trackers/"+id, "user-2", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The row and alias read paths are owner-scoped too.
	rec = doJSON(t, srv, http.MethodGet, "/api/trackers/"+id+"/rows", "user-2", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/trackers/"+id+"/aliases/unit%20one", "user-2", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUnknownTrackerMapsTo404(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/trackers/missing", "user-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBulkImportEndpoint(t *testing.T) {
	srv := newTestServer(t)
	id := createTestTracker(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/trackers/"+id+"/import", "user-1", map[string]any{
		"mode": "append",
		"rows": []map[string]any{
			{"sku": "SKU-1"},
			{"qty": 2},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var sum tracker.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, 1, sum.Imported)
	require.Len(t, sum.Failed, 1)
	assert.Equal(t, 1, sum.Failed[0].Index)
}

func TestImportCSVEndpoint(t *testing.T) {
	srv := newTestServer(t)
	id := createTestTracker(t, srv)

	req := httptest.NewRequest(http.MethodPost, "/api/trackers/"+id+"/import/csv?mode=append",
		strings.NewReader("SKU,Quantity\nSKU-1,4\n"))
	req.Header.Set(actorHeader, "user-1")
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sum tracker.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, 1, sum.Imported)
}

func TestOversizedBatchMapsTo413(t *testing.T) {
	srv := newTestServer(t)
	id := createTestTracker(t, srv)

	rows := make([]map[string]any, 101)
	for i := range rows {
		rows[i] = map[string]any{"sku": "SKU"}
	}
	rec := doJSON(t, srv, http.MethodPost, "/api/trackers/"+id+"/import", "user-1", map[string]any{
		"mode": "append",
		"rows": rows,
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestMalformedBodyMapsTo400(t *testing.T) {
	srv := newTestServer(t)
	id := createTestTracker(t, srv)

	req := httptest.NewRequest(http.MethodPost, "/api/trackers/"+id+"/rows",
		strings.NewReader("{not json"))
	req.Header.Set(actorHeader, "user-1")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAliasEndpoints(t *testing.T) {
	srv := newTestServer(t)
	id := createTestTracker(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/trackers/"+id+"/rows", "user-1",
		map[string]any{"sku": "SKU-1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/trackers/"+id+"/aliases", "user-1",
		map[string]any{"alias": "Unit One", "rowId": "SKU-1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, srv, http.MethodGet, "/api/trackers/"+id+"/aliases/unit%20one", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resolved map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resolved))
	assert.Equal(t, "SKU-1", resolved["rowId"])
}

func TestShutdownStopsRateLimiterCleanup(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Rate:   config.RateLimitConfig{Enabled: true, RequestsPerMinute: 10},
	}
	svc := tracker.NewService(memory.New(), cfg)
	srv := NewServer(svc, cfg)
	require.NotNil(t, srv.limiter)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case <-srv.limiter.done:
	default:
		t.Fatal("shutdown left the cleanup goroutine running")
	}

	// A second shutdown must not panic on the already-closed channel.
	require.NoError(t, srv.Shutdown(ctx))
}
