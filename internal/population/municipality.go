package population

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strconv"

	"github.com/crimecity3k/crimemap-backend-go/internal/fileutil"
	"github.com/crimecity3k/crimemap-backend-go/internal/models"
)

// SCB municipality codes are four digits ("0114" .. "2584").
var kommunKodPattern = regexp.MustCompile(`^\d{4}$`)

// ConvertMunicipalityPopulation validates the SCB municipality CSV
// (columns kommun_kod,kommun_namn,population) and publishes it as the
// municipality register artifact. Duplicate or malformed codes fail the
// run before anything is written.
func ConvertMunicipalityPopulation(inputPath, outputPath string) (int, error) {
	f, err := os.Open(inputPath)
	if err != nil {
		return 0, fmt.Errorf("input file not found: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", inputPath, err)
	}
	col, err := columnIndex(header, "kommun_kod", "kommun_namn", "population")
	if err != nil {
		return 0, fmt.Errorf("%s: %w", inputPath, err)
	}

	seen := make(map[string]bool)
	var municipalities []models.Municipality
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read %s: %w", inputPath, err)
		}

		kod := record[col["kommun_kod"]]
		if !kommunKodPattern.MatchString(kod) {
			return 0, fmt.Errorf("malformed municipality code %q in %s", kod, inputPath)
		}
		if seen[kod] {
			return 0, fmt.Errorf("duplicate municipality code %q in %s", kod, inputPath)
		}
		seen[kod] = true

		pop, err := strconv.Atoi(record[col["population"]])
		if err != nil || pop < 0 {
			return 0, fmt.Errorf("invalid population for municipality %q in %s", kod, inputPath)
		}

		municipalities = append(municipalities, models.Municipality{
			Kod:        kod,
			Namn:       record[col["kommun_namn"]],
			Population: pop,
		})
	}

	if len(municipalities) == 0 {
		return 0, fmt.Errorf("no municipalities found in %s", inputPath)
	}
	sort.Slice(municipalities, func(i, j int) bool {
		return municipalities[i].Kod < municipalities[j].Kod
	})

	sf, err := fileutil.NewStaged(outputPath, true)
	if err != nil {
		return 0, err
	}
	defer sf.Abort()

	enc := json.NewEncoder(sf)
	for i := range municipalities {
		if err := enc.Encode(&municipalities[i]); err != nil {
			return 0, fmt.Errorf("failed to write municipality row: %w", err)
		}
	}
	if err := sf.Commit(); err != nil {
		return 0, err
	}

	slog.Info("published municipality register", "municipalities", len(municipalities))
	return len(municipalities), nil
}
