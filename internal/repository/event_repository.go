package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/crimecity3k/crimemap-backend-go/internal/database"
	"github.com/crimecity3k/crimemap-backend-go/internal/models"
)

// EventQuery is the rendered form of a validated drill-down filter. The
// service builds it from the caller's parameters and the taxonomy; the
// repository turns it into SQL exactly once.
type EventQuery struct {
	// scope: exactly one of Cell / Location is set
	Cell           string
	CellResolution int
	Location       string

	StartDate string // YYYY-MM-DD, inclusive
	EndDate   string // YYYY-MM-DD, last included day

	// CategoryTypes is the union of member types of the selected
	// categories. CategoryOther widens that union to everything outside
	// KnownTypes (the catch-all category has no static members).
	CategoryTypes []string
	CategoryOther bool
	KnownTypes    []string

	// Types is the caller's explicit type set; it intersects with the
	// category constraint rather than widening it.
	Types []string

	Search string
}

// EventRepository handles read-only queries against the event store
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// buildConditions renders the query into WHERE conditions and args.
func buildConditions(q EventQuery) ([]string, []interface{}) {
	var conditions []string
	var args []interface{}

	if q.Cell != "" {
		conditions = append(conditions,
			"event_id IN (SELECT event_id FROM event_cells WHERE resolution = ? AND h3_cell = ?)")
		args = append(args, q.CellResolution, q.Cell)
	} else if q.Location != "" {
		conditions = append(conditions, "LOWER(location_name) = LOWER(?)")
		args = append(args, q.Location)
	}

	if q.StartDate != "" {
		conditions = append(conditions, "datetime >= ?")
		args = append(args, q.StartDate)
	}
	if q.EndDate != "" {
		// the whole end day is included: compare against the next day
		conditions = append(conditions, "datetime < date(?, '+1 day')")
		args = append(args, q.EndDate)
	}

	if len(q.CategoryTypes) > 0 || q.CategoryOther {
		var parts []string
		if len(q.CategoryTypes) > 0 {
			parts = append(parts, "type IN ("+placeholders(len(q.CategoryTypes))+")")
			for _, t := range q.CategoryTypes {
				args = append(args, t)
			}
		}
		if q.CategoryOther && len(q.KnownTypes) > 0 {
			parts = append(parts, "type NOT IN ("+placeholders(len(q.KnownTypes))+")")
			for _, t := range q.KnownTypes {
				args = append(args, t)
			}
		}
		if len(parts) > 0 {
			conditions = append(conditions, "("+strings.Join(parts, " OR ")+")")
		}
	}

	if len(q.Types) > 0 {
		conditions = append(conditions, "type IN ("+placeholders(len(q.Types))+")")
		for _, t := range q.Types {
			args = append(args, t)
		}
	}

	if q.Search != "" {
		// the FTS match restricts the candidate set; ordering stays
		// recency-based
		conditions = append(conditions,
			"rowid IN (SELECT rowid FROM events_fts WHERE events_fts MATCH ?)")
		args = append(args, ftsMatchQuery(q.Search))
	}

	return conditions, args
}

// ready guards every query: a repository constructed before the data
// handle exists must fail with a not-ready condition, not crash.
func (r *EventRepository) ready() error {
	if r.db == nil {
		return database.ErrNotInitialized
	}
	return nil
}

// CountEvents returns the total number of events matching the query.
func (r *EventRepository) CountEvents(q EventQuery) (int, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}

	query := "SELECT COUNT(*) FROM events"
	conditions, args := buildConditions(q)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return total, nil
}

// QueryEvents returns one page of events matching the query, most
// recent first with a deterministic id tie-break.
func (r *EventRepository) QueryEvents(q EventQuery, limit, offset int) ([]models.Event, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	query := `SELECT event_id, datetime, type, summary, body, url,
		location_name, latitude, longitude
		FROM events`

	conditions, args := buildConditions(q)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY datetime DESC, event_id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var e models.Event
		err := rows.Scan(
			&e.ID, &e.Datetime, &e.Type, &e.Summary, &e.Body, &e.URL,
			&e.LocationName, &e.Latitude, &e.Longitude,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	return events, nil
}

// DistinctTypes returns every type label observed in the event store.
func (r *EventRepository) DistinctTypes() ([]string, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	rows, err := r.db.Query("SELECT DISTINCT type FROM events")
	if err != nil {
		return nil, fmt.Errorf("failed to query types: %w", err)
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan type: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// CountAll returns the total event count in the store.
func (r *EventRepository) CountAll() (int, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return total, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// ftsMatchQuery sanitizes free text into an FTS5 match expression:
// every whitespace-separated token becomes a quoted phrase, combined
// with implicit AND. Keeps user input from being parsed as FTS syntax.
func ftsMatchQuery(search string) string {
	fields := strings.Fields(search)
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		quoted = append(quoted, `"`+strings.ReplaceAll(f, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " ")
}
