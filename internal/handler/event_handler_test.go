package handler

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/crimecity3k/crimemap-backend-go/internal/database"
	"github.com/crimecity3k/crimemap-backend-go/internal/models"
	"github.com/crimecity3k/crimemap-backend-go/internal/repository"
	"github.com/crimecity3k/crimemap-backend-go/internal/service"
	"github.com/crimecity3k/crimemap-backend-go/internal/taxonomy"
)

const testDefinition = `
version: 1
types:
  "Stöld":
    category: property
  "Misshandel":
    category: violence
  "Rattfylleri":
    category: traffic
  "Narkotikabrott":
    category: narcotics
  "Bedrägeri":
    category: fraud
  "Ordningslagen":
    category: public_order
  "Vapenlagen":
    category: weapons
`

func testRouter(t *testing.T, db *sql.DB) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tax, err := taxonomy.Parse([]byte(testDefinition))
	require.NoError(t, err)
	h := NewEventHandler(service.NewEventService(repository.NewEventRepository(db), tax, 3))

	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/api/v1/events", h.GetEvents)
	r.GET("/api/v1/types", h.GetTypes)
	return r
}

func seededRouter(t *testing.T, events int) *gin.Engine {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	for i := 0; i < events; i++ {
		_, err := db.Exec(`
			INSERT INTO events (event_id, datetime, type, summary, url, location_name)
			VALUES (?, ?, 'Stöld', 'Stöld anmäld', '/handelse', 'Stockholm')
		`, fmt.Sprintf("e%03d", i), fmt.Sprintf("2026-08-01 %02d:00:00 +02:00", i%24))
		require.NoError(t, err)
	}
	return testRouter(t, db)
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestGetEvents(t *testing.T) {
	r := seededRouter(t, 5)
	w := get(r, "/api/v1/events?location=Stockholm")
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.EventsListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp.Total)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, models.DefaultPerPage, resp.PerPage)
	require.Len(t, resp.Events, 5)
	assert.Equal(t, "property", resp.Events[0].Category)
	assert.Equal(t, "https://polisen.se/handelse", resp.Events[0].SourceURL)
}

func TestGetEvents_Suppressed(t *testing.T) {
	r := seededRouter(t, 2)
	w := get(r, "/api/v1/events?location=Stockholm")
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.EventsListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Empty(t, resp.Events)
}

func TestGetEvents_BadRequest(t *testing.T) {
	r := seededRouter(t, 5)

	for _, path := range []string{
		"/api/v1/events",                                       // no scope
		"/api/v1/events?location=Stockholm&cell=85089a17fffffff", // both scopes
		"/api/v1/events?cell=not-a-cell",
		"/api/v1/events?location=Stockholm&start_date=01/08/2026",
		"/api/v1/events?location=Stockholm&categories=burglary",
		"/api/v1/events?location=Stockholm&per_page=9999",
		"/api/v1/events?location=Stockholm&page=-2",
	} {
		w := get(r, path)
		assert.Equal(t, http.StatusBadRequest, w.Code, "path %s", path)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp["error"])
	}
}

func TestGetEvents_Pagination(t *testing.T) {
	r := seededRouter(t, 12)
	w := get(r, "/api/v1/events?location=Stockholm&page=2&per_page=10")
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.EventsListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 12, resp.Total)
	assert.Equal(t, 2, resp.Page)
	assert.Len(t, resp.Events, 2)
}

func TestGetEvents_NotReady(t *testing.T) {
	r := testRouter(t, nil)
	w := get(r, "/api/v1/events?location=Stockholm")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetTypes(t *testing.T) {
	r := seededRouter(t, 1)
	w := get(r, "/api/v1/types")
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.TypeHierarchy
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Categories, "property")
	assert.Contains(t, resp.Categories, "other")
	assert.Contains(t, resp.Categories["property"], "Stöld")
}

func TestHealth(t *testing.T) {
	r := seededRouter(t, 3)
	w := get(r, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.EqualValues(t, 3, resp["events_count"])
}

func TestHealth_DegradedStore(t *testing.T) {
	// no event store yet: still healthy, zero events
	r := testRouter(t, nil)
	w := get(r, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.EqualValues(t, 0, resp["events_count"])
}
