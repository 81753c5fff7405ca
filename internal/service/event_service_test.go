package service

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/crimecity3k/crimemap-backend-go/internal/database"
	"github.com/crimecity3k/crimemap-backend-go/internal/models"
	"github.com/crimecity3k/crimemap-backend-go/internal/repository"
	"github.com/crimecity3k/crimemap-backend-go/internal/spatial"
	"github.com/crimecity3k/crimemap-backend-go/internal/taxonomy"
)

const testDefinition = `
version: 1
types:
  "Stöld":
    category: property
  "Inbrott":
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

// testCell is the r5 cell over central Stockholm.
func testCell(t *testing.T) string {
	t.Helper()
	cell, err := spatial.CellFromLatLng(59.3293, 18.0686, 5)
	require.NoError(t, err)
	return cell
}

func testService(t *testing.T, threshold int, seed int) *EventService {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	for i := 0; i < seed; i++ {
		id := fmt.Sprintf("e%03d", i)
		_, err := db.Exec(`
			INSERT INTO events (event_id, datetime, type, summary, url, location_name)
			VALUES (?, ?, 'Stöld', 'Stöld anmäld', '/handelse', 'Stockholm')
		`, id, fmt.Sprintf("2026-08-01 %02d:00:00 +02:00", i%24))
		require.NoError(t, err)
		_, err = db.Exec(
			"INSERT INTO event_cells (event_id, resolution, h3_cell) VALUES (?, 5, ?)",
			id, testCell(t))
		require.NoError(t, err)
	}

	tax, err := taxonomy.Parse([]byte(testDefinition))
	require.NoError(t, err)
	return NewEventService(repository.NewEventRepository(db), tax, threshold)
}

func TestQuery_ScopeValidation(t *testing.T) {
	svc := testService(t, 3, 0)

	_, err := svc.Query(models.EventFilter{})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = svc.Query(models.EventFilter{Cell: testCell(t), Location: "Stockholm"})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = svc.Query(models.EventFilter{Cell: "not-a-cell"})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestQuery_DateValidation(t *testing.T) {
	svc := testService(t, 3, 0)

	_, err := svc.Query(models.EventFilter{Location: "Stockholm", StartDate: "01/08/2026"})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = svc.Query(models.EventFilter{Location: "Stockholm", EndDate: "2026-13-40"})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = svc.Query(models.EventFilter{Location: "Stockholm", StartDate: "2026-08-01", EndDate: "2026-09-01"})
	assert.NoError(t, err)
}

func TestQuery_CategoryValidation(t *testing.T) {
	svc := testService(t, 3, 0)

	_, err := svc.Query(models.EventFilter{Location: "Stockholm", Categories: []string{"burglary"}})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = svc.Query(models.EventFilter{Location: "Stockholm", Categories: []string{"property", "other"}})
	assert.NoError(t, err)
}

func TestQuery_PaginationValidation(t *testing.T) {
	svc := testService(t, 3, 0)

	_, err := svc.Query(models.EventFilter{Location: "Stockholm", Page: -1})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = svc.Query(models.EventFilter{Location: "Stockholm", PerPage: models.MaxPerPage + 1})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = svc.Query(models.EventFilter{Location: "Stockholm", PerPage: -5})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestQuery_Defaults(t *testing.T) {
	svc := testService(t, 3, 10)

	resp, err := svc.Query(models.EventFilter{Location: "Stockholm"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, models.DefaultPerPage, resp.PerPage)
	assert.Equal(t, 10, resp.Total)
	assert.Len(t, resp.Events, 10)
}

func TestQuery_PrivacySuppression(t *testing.T) {
	tests := []struct {
		seed      int
		wantShown int
	}{
		{0, 0}, // empty result, nothing to suppress
		{1, 0}, // below threshold: count reported, events withheld
		{2, 0},
		{3, 3}, // at threshold: events returned
		{4, 4},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("total=%d", tt.seed), func(t *testing.T) {
			svc := testService(t, 3, tt.seed)
			resp, err := svc.Query(models.EventFilter{Location: "Stockholm"})
			require.NoError(t, err)
			assert.Equal(t, tt.seed, resp.Total, "true count is always reported")
			assert.Len(t, resp.Events, tt.wantShown)
		})
	}
}

func TestQuery_SuppressionAppliesToFilteredTotal(t *testing.T) {
	// five events overall, but a narrowing search leaves two matches:
	// the threshold applies to the two, not the five
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	summaries := []string{
		"Cykel stulen vid stationen",
		"Cykel stulen ur garage",
		"Inbrott i villa",
		"Inbrott i lägenhet",
		"Inbrott i förråd",
	}
	for i, s := range summaries {
		_, err := db.Exec(`
			INSERT INTO events (event_id, datetime, type, summary, url, location_name)
			VALUES (?, '2026-08-01 12:00:00 +02:00', 'Stöld', ?, '', 'Stockholm')
		`, fmt.Sprintf("e%d", i), s)
		require.NoError(t, err)
	}

	tax, err := taxonomy.Parse([]byte(testDefinition))
	require.NoError(t, err)
	svc := NewEventService(repository.NewEventRepository(db), tax, 3)

	resp, err := svc.Query(models.EventFilter{Location: "Stockholm"})
	require.NoError(t, err)
	assert.Len(t, resp.Events, 5)

	resp, err = svc.Query(models.EventFilter{Location: "Stockholm", Search: "cykel"})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
	assert.Empty(t, resp.Events)
}

func TestQuery_CellScope(t *testing.T) {
	svc := testService(t, 3, 5)

	resp, err := svc.Query(models.EventFilter{Cell: testCell(t)})
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Total)

	// uppercase cell ids are accepted and normalized
	resp, err = svc.Query(models.EventFilter{Cell: strings.ToUpper(testCell(t))})
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Total)
}

func TestQuery_PageBeyondEnd(t *testing.T) {
	svc := testService(t, 3, 5)

	resp, err := svc.Query(models.EventFilter{Location: "Stockholm", Page: 10, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Total)
	assert.Empty(t, resp.Events)
	assert.NotNil(t, resp.Events, "empty page is [], not null")
}

func TestQuery_ResponseShape(t *testing.T) {
	svc := testService(t, 3, 3)

	resp, err := svc.Query(models.EventFilter{Location: "Stockholm"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Events)

	ev := resp.Events[0]
	assert.Equal(t, "Stöld", ev.Type)
	assert.Equal(t, "property", ev.Category)
	assert.Equal(t, "https://polisen.se/handelse", ev.SourceURL)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestParseEventTime(t *testing.T) {
	got := parseEventTime("2026-08-01 12:30:00 +02:00")
	require.False(t, got.IsZero())
	assert.Equal(t, 12, got.Hour())

	got = parseEventTime("2026-08-01T12:30:00+02:00")
	assert.False(t, got.IsZero())

	got = parseEventTime("2026-08-01")
	assert.False(t, got.IsZero())

	assert.True(t, parseEventTime("garbage").IsZero())
}

func TestTypeHierarchy(t *testing.T) {
	svc := testService(t, 3, 1)

	h, err := svc.TypeHierarchy()
	require.NoError(t, err)
	assert.Equal(t, []string{"Inbrott", "Stöld"}, h.Categories["property"])
	assert.Empty(t, h.Categories["other"])
}

func TestTypeHierarchy_ObservedTypesUnderOther(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "events.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	for i, typ := range []string{"Stöld", "Fjällräddning", "Sammanfattning natt", "Brand"} {
		_, err := db.Exec(`
			INSERT INTO events (event_id, datetime, type, summary, url, location_name)
			VALUES (?, '2026-08-01 12:00:00 +02:00', ?, '', '', 'Stockholm')
		`, fmt.Sprintf("e%d", i), typ)
		require.NoError(t, err)
	}

	tax, err := taxonomy.Parse([]byte(testDefinition))
	require.NoError(t, err)
	svc := NewEventService(repository.NewEventRepository(db), tax, 3)

	h, err := svc.TypeHierarchy()
	require.NoError(t, err)
	// digest rows never surface; unknown observed types land under "other"
	assert.Equal(t, []string{"Brand", "Fjällräddning"}, h.Categories["other"])
}

func TestEventCount(t *testing.T) {
	svc := testService(t, 3, 7)
	n, err := svc.EventCount()
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	empty := NewEventService(repository.NewEventRepository(nil), svc.tax, 3)
	_, err = empty.EventCount()
	assert.ErrorIs(t, err, database.ErrNotInitialized)
}
