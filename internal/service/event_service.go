package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/crimecity3k/crimemap-backend-go/internal/metrics"
	"github.com/crimecity3k/crimemap-backend-go/internal/models"
	"github.com/crimecity3k/crimemap-backend-go/internal/repository"
	"github.com/crimecity3k/crimemap-backend-go/internal/spatial"
	"github.com/crimecity3k/crimemap-backend-go/internal/taxonomy"
)

// ErrInvalidQuery marks caller errors: malformed scope, dual or missing
// scope, out-of-range pagination, bad dates. Detected before any data
// access and never retried.
var ErrInvalidQuery = errors.New("invalid query")

// policeBaseURL prefixes relative source paths from the raw feed.
const policeBaseURL = "https://polisen.se"

// EventService is the drill-down query engine: it validates filters,
// renders them once into a repository query, and applies the privacy
// suppression rule to the result.
type EventService struct {
	repo             *repository.EventRepository
	tax              *taxonomy.Taxonomy
	privacyThreshold int
}

// NewEventService creates a new event service. The taxonomy instance is
// the same one the pipeline classifies with, so drill-down categories
// can never disagree with the aggregates.
func NewEventService(repo *repository.EventRepository, tax *taxonomy.Taxonomy, privacyThreshold int) *EventService {
	return &EventService{
		repo:             repo,
		tax:              tax,
		privacyThreshold: privacyThreshold,
	}
}

// Query answers one drill-down request. The privacy threshold is
// evaluated against the final filtered total, after search narrows the
// candidate set: when 0 < total < threshold the count is reported but
// the events are withheld.
func (s *EventService) Query(f models.EventFilter) (*models.EventsListResponse, error) {
	q, err := s.buildQuery(f)
	if err != nil {
		return nil, err
	}

	page := f.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be >= 1", ErrInvalidQuery)
	}
	perPage := f.PerPage
	if perPage == 0 {
		perPage = models.DefaultPerPage
	}
	if perPage < 1 || perPage > models.MaxPerPage {
		return nil, fmt.Errorf("%w: per_page must be between 1 and %d", ErrInvalidQuery, models.MaxPerPage)
	}

	total, err := s.repo.CountEvents(q)
	if err != nil {
		return nil, err
	}

	resp := &models.EventsListResponse{
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Events:  []models.EventResponse{},
	}

	// privacy suppression: report the count, withhold the events
	if total > 0 && total < s.privacyThreshold {
		metrics.QueriesSuppressedTotal.Inc()
		return resp, nil
	}
	if total == 0 {
		return resp, nil
	}

	events, err := s.repo.QueryEvents(q, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}
	for i := range events {
		resp.Events = append(resp.Events, s.toResponse(&events[i]))
	}
	return resp, nil
}

// buildQuery validates the filter and renders it into a repository
// query. All caller errors surface here, before any data access.
func (s *EventService) buildQuery(f models.EventFilter) (repository.EventQuery, error) {
	var q repository.EventQuery

	hasCell := f.Cell != ""
	hasLocation := f.Location != ""
	if hasCell && hasLocation {
		return q, fmt.Errorf("%w: cannot specify both cell and location", ErrInvalidQuery)
	}
	if !hasCell && !hasLocation {
		return q, fmt.Errorf("%w: must specify either cell or location", ErrInvalidQuery)
	}

	if hasCell {
		if !spatial.IsValidCellID(f.Cell) {
			return q, fmt.Errorf("%w: invalid H3 cell id: %s", ErrInvalidQuery, f.Cell)
		}
		resolution, err := spatial.CellResolution(f.Cell)
		if err != nil {
			return q, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		q.Cell = strings.ToLower(f.Cell)
		q.CellResolution = resolution
	} else {
		q.Location = f.Location
	}

	if f.StartDate != "" {
		if _, err := time.Parse("2006-01-02", f.StartDate); err != nil {
			return q, fmt.Errorf("%w: invalid start_date: %s", ErrInvalidQuery, f.StartDate)
		}
		q.StartDate = f.StartDate
	}
	if f.EndDate != "" {
		if _, err := time.Parse("2006-01-02", f.EndDate); err != nil {
			return q, fmt.Errorf("%w: invalid end_date: %s", ErrInvalidQuery, f.EndDate)
		}
		q.EndDate = f.EndDate
	}

	if len(f.Categories) > 0 {
		known := map[string]bool{}
		for _, c := range taxonomy.Categories() {
			known[c] = true
		}
		seen := map[string]bool{}
		for _, c := range f.Categories {
			if !known[c] {
				return q, fmt.Errorf("%w: unknown category: %s", ErrInvalidQuery, c)
			}
			if seen[c] {
				continue
			}
			seen[c] = true
			if c == taxonomy.CategoryOther {
				// the catch-all matches everything outside the mapping
				q.CategoryOther = true
				q.KnownTypes = s.tax.KnownTypes()
			} else {
				q.CategoryTypes = append(q.CategoryTypes, s.tax.TypesFor(c)...)
			}
		}
	}

	q.Types = f.Types
	q.Search = strings.TrimSpace(f.Search)
	return q, nil
}

// toResponse attaches the resolved category and normalizes the source
// URL and timestamp.
func (s *EventService) toResponse(e *models.Event) models.EventResponse {
	url := e.URL
	if url != "" && strings.HasPrefix(url, "/") {
		url = policeBaseURL + url
	}
	return models.EventResponse{
		ID:           e.ID,
		Timestamp:    parseEventTime(e.Datetime),
		Type:         e.Type,
		Category:     s.tax.Classify(e.Type),
		LocationName: e.LocationName,
		Summary:      e.Summary,
		Body:         e.Body,
		SourceURL:    url,
		Latitude:     e.Latitude,
		Longitude:    e.Longitude,
	}
}

// eventTimeLayouts covers the timestamp shapes seen in the raw feed.
var eventTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseEventTime(raw string) time.Time {
	for _, layout := range eventTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// TypeHierarchy merges the static taxonomy with types only observed in
// the event store; those report under "other".
func (s *EventService) TypeHierarchy() (*models.TypeHierarchy, error) {
	hierarchy := s.tax.CategoryTypes()

	observed, err := s.repo.DistinctTypes()
	if err != nil {
		return nil, err
	}
	var other []string
	for _, t := range observed {
		if strings.HasPrefix(t, "Sammanfattning") {
			continue
		}
		if s.tax.Classify(t) == taxonomy.CategoryOther {
			other = append(other, t)
		}
	}
	sort.Strings(other)
	hierarchy[taxonomy.CategoryOther] = other

	return &models.TypeHierarchy{Categories: hierarchy}, nil
}

// EventCount returns the total event count in the store.
func (s *EventService) EventCount() (int, error) {
	return s.repo.CountAll()
}
