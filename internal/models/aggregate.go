package models

// TypeCount is one entry of the sparse per-cell type breakdown.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// AggregateRecord is one per-cell statistical record produced by an
// aggregation run. Exactly one of H3Cell / KommunKod is set depending on
// the partition scheme. CategoryCounts always carries all 8 categories.
//
// Invariants (checked before publish):
//   - sum(CategoryCounts) == TotalCount
//   - sum(tc.Count for tc in TypeCounts) == TotalCount
//   - TypeCounts sorted by count descending, ties by type ascending
type AggregateRecord struct {
	H3Cell     string `json:"h3_cell,omitempty"`
	KommunKod  string `json:"kommun_kod,omitempty"`
	KommunNamn string `json:"kommun_namn,omitempty"`

	TotalCount     int            `json:"total_count"`
	CategoryCounts map[string]int `json:"category_counts"`
	TypeCounts     []TypeCount    `json:"type_counts"`

	// Population is 0 when no population row exists for the cell.
	// That is a valid state, not an error; the rate is 0 in that case.
	Population   int     `json:"population"`
	RatePer10000 float64 `json:"rate_per_10000"`
}

// CellKey returns the spatial key of the record under its scheme.
func (r *AggregateRecord) CellKey() string {
	if r.H3Cell != "" {
		return r.H3Cell
	}
	return r.KommunKod
}

// PopulationCell is one population row keyed by H3 cell.
type PopulationCell struct {
	H3Cell     string `json:"h3_cell"`
	Population int    `json:"population"`
	Female     int    `json:"female"`
	Male       int    `json:"male"`
}

// Municipality is one register row from the municipality population file.
// Kod is the 4-digit SCB municipality code ("0114" for Upplands Väsby).
type Municipality struct {
	Kod        string `json:"kommun_kod"`
	Namn       string `json:"kommun_namn"`
	Population int    `json:"population"`
}
