package models

// EventFilter represents the drill-down query parameters. Exactly one of
// Cell / Location must be set (scope); the remaining fields compose with
// AND semantics. The service validates the filter before it is rendered
// into SQL by the repository.
type EventFilter struct {
	Cell     string `form:"cell"`     // H3 cell id, 15 hex characters
	Location string `form:"location"` // municipality name, case-insensitive

	StartDate string `form:"start_date"` // YYYY-MM-DD, inclusive
	EndDate   string `form:"end_date"`   // YYYY-MM-DD, last included day

	Categories []string `form:"categories"` // resolved to member type sets
	Types      []string `form:"types"`      // explicit type labels

	Search string `form:"search"` // full-text query, restricts candidates

	Page    int `form:"page"`
	PerPage int `form:"per_page"`
}

// MaxPerPage bounds the page size of drill-down queries.
const MaxPerPage = 100

// DefaultPerPage is applied when the caller omits per_page.
const DefaultPerPage = 50
