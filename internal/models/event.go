package models

import "time"

// Event represents one raw police event as stored in the event store.
// Events are immutable once ingested; the pipeline and the query engine
// only ever read them.
type Event struct {
	ID           string   `json:"id" db:"event_id"`
	Datetime     string   `json:"datetime" db:"datetime"` // ISO 8601, local Swedish time
	Type         string   `json:"type" db:"type"`         // Swedish type label, e.g. "Stöld"
	Summary      string   `json:"summary" db:"summary"`
	Body         *string  `json:"body" db:"body"` // long-form description, often absent
	URL          string   `json:"url" db:"url"`   // polisen.se path or full URL
	LocationName string   `json:"location_name" db:"location_name"`
	Latitude     *float64 `json:"latitude" db:"latitude"`
	Longitude    *float64 `json:"longitude" db:"longitude"`
}

// HasCoordinates reports whether the event carries a usable lat/lon pair.
func (e *Event) HasCoordinates() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// EventResponse is a single event in the drill-down API response,
// with the resolved category attached.
type EventResponse struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Type         string    `json:"type"`
	Category     string    `json:"category"`
	LocationName string    `json:"location_name"`
	Summary      string    `json:"summary"`
	Body         *string   `json:"body"`
	SourceURL    string    `json:"source_url"`
	Latitude     *float64  `json:"latitude"`
	Longitude    *float64  `json:"longitude"`
}

// EventsListResponse is the paginated drill-down response envelope.
type EventsListResponse struct {
	Total   int             `json:"total"`
	Page    int             `json:"page"`
	PerPage int             `json:"per_page"`
	Events  []EventResponse `json:"events"`
}

// TypeHierarchy maps category names to their member event types,
// including types only observed in data (reported under "other").
type TypeHierarchy struct {
	Categories map[string][]string `json:"categories"`
}
