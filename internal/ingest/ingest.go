// Package ingest bulk-loads scraped police events into the event store.
// A load is all-or-nothing: one transaction covers the events, their FTS
// rows (via triggers) and their precomputed grid cell memberships.
package ingest

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/crimecity3k/crimemap-backend-go/internal/models"
	"github.com/crimecity3k/crimemap-backend-go/internal/spatial"
)

// maxLineBytes bounds a single NDJSON line; event bodies are long but
// bounded.
const maxLineBytes = 4 * 1024 * 1024

// Summary reports what one load produced.
type Summary struct {
	Events   int // events inserted or replaced
	Located  int // events with coordinates inside Sweden
	CellRows int // event_cells rows written
}

// LoadFile reads an NDJSON events file and loads every event in one
// transaction. Existing events with the same id are replaced, so re-running
// a load with a newer scrape of the same window is safe. For each located
// event a cell membership row is written per resolution.
func LoadFile(db *sql.DB, path string, resolutions []int) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to open events file: %w", err)
	}
	defer f.Close()

	tx, err := db.Begin()
	if err != nil {
		return Summary{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Replacing an event is an explicit delete plus insert: the FTS
	// index is kept in sync by the delete trigger, which REPLACE would
	// bypass, and cell rows from a previous load never linger.
	deleteEvent, err := tx.Prepare("DELETE FROM events WHERE event_id = ?")
	if err != nil {
		return Summary{}, fmt.Errorf("failed to prepare event delete: %w", err)
	}
	defer deleteEvent.Close()

	deleteCells, err := tx.Prepare("DELETE FROM event_cells WHERE event_id = ?")
	if err != nil {
		return Summary{}, fmt.Errorf("failed to prepare cell delete: %w", err)
	}
	defer deleteCells.Close()

	insertEvent, err := tx.Prepare(`
		INSERT INTO events
			(event_id, datetime, type, summary, body, url, location_name, latitude, longitude)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer insertEvent.Close()

	insertCell, err := tx.Prepare(`
		INSERT INTO event_cells (event_id, resolution, h3_cell)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to prepare cell insert: %w", err)
	}
	defer insertCell.Close()

	var sum Summary
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var ev models.Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return Summary{}, fmt.Errorf("line %d: invalid event: %w", line, err)
		}
		if err := validate(&ev); err != nil {
			return Summary{}, fmt.Errorf("line %d: %w", line, err)
		}

		if _, err := deleteEvent.Exec(ev.ID); err != nil {
			return Summary{}, fmt.Errorf("line %d: failed to replace event: %w", line, err)
		}
		if _, err := deleteCells.Exec(ev.ID); err != nil {
			return Summary{}, fmt.Errorf("line %d: failed to replace cell rows: %w", line, err)
		}
		if _, err := insertEvent.Exec(
			ev.ID, ev.Datetime, ev.Type, ev.Summary, ev.Body,
			ev.URL, ev.LocationName, ev.Latitude, ev.Longitude,
		); err != nil {
			return Summary{}, fmt.Errorf("line %d: failed to insert event: %w", line, err)
		}
		sum.Events++

		if !ev.HasCoordinates() || !spatial.InSweden(*ev.Latitude, *ev.Longitude) {
			continue
		}
		sum.Located++
		for _, res := range resolutions {
			cell, err := spatial.CellFromLatLng(*ev.Latitude, *ev.Longitude, res)
			if err != nil {
				return Summary{}, fmt.Errorf("line %d: %w", line, err)
			}
			if _, err := insertCell.Exec(ev.ID, res, cell); err != nil {
				return Summary{}, fmt.Errorf("line %d: failed to insert cell row: %w", line, err)
			}
			sum.CellRows++
		}
	}
	if err := scanner.Err(); err != nil {
		return Summary{}, fmt.Errorf("failed to read events file: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Summary{}, fmt.Errorf("failed to commit load: %w", err)
	}
	return sum, nil
}

func validate(ev *models.Event) error {
	if ev.ID == "" {
		return fmt.Errorf("event without id")
	}
	if ev.Datetime == "" {
		return fmt.Errorf("event %s without datetime", ev.ID)
	}
	if ev.Type == "" {
		return fmt.Errorf("event %s without type", ev.ID)
	}
	if (ev.Latitude == nil) != (ev.Longitude == nil) {
		return fmt.Errorf("event %s with half a coordinate pair", ev.ID)
	}
	return nil
}
