// Package population produces the population-per-cell artifacts the
// aggregation pipeline joins against. Inputs are extracted CSVs (the SCB
// download itself is out of scope); outputs are gzip-compressed NDJSON
// published atomically, one per partition scheme.
package population

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"

	"github.com/crimecity3k/crimemap-backend-go/internal/models"
)

// ReadGridPopulation loads a published grid population artifact into a
// cell-keyed lookup.
func ReadGridPopulation(path string) (map[string]int, error) {
	out := make(map[string]int)
	err := readNDJSON(path, func(line []byte) error {
		var cell models.PopulationCell
		if err := json.Unmarshal(line, &cell); err != nil {
			return err
		}
		out[cell.H3Cell] = cell.Population
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadMunicipalities loads the published municipality register artifact.
func ReadMunicipalities(path string) ([]models.Municipality, error) {
	var out []models.Municipality
	err := readNDJSON(path, func(line []byte) error {
		var m models.Municipality
		if err := json.Unmarshal(line, &m); err != nil {
			return err
		}
		out = append(out, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// readNDJSON streams a gzip NDJSON artifact line by line.
func readNDJSON(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("population file not found: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	return scanner.Err()
}
