// Command genmock reads a CSV of station observations and writes two JSON
// fixtures: the raw readings, in the shape producers publish to the source
// topic, and the enriched readings the pipeline would publish for them. It
// uses the actual domain package under a frozen clock, so the enriched file
// matches pipeline output byte for byte and can seed a local Kafka or check a
// downstream consumer.
//
// Expected CSV header:
//
//	station_id,observed_at,dry_bulb_temperature,relative_humidity,wind_speed
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -csv data/mock/observations.csv \
//	  -raw-out data/mock/raw_readings.json \
//	  -enriched-out data/mock/apparent_readings.json
package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/feels-like-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// processedAt is the frozen clock used for reproducible ProcessedAt timestamps.
var processedAt = time.Date(2024, time.January, 16, 0, 0, 0, 0, time.UTC)

var requiredColumns = []string{
	"station_id",
	"observed_at",
	domain.FieldDryBulbTemperature,
	domain.FieldRelativeHumidity,
	domain.FieldWindSpeed,
}

// rowError records a CSV row that was skipped.
type rowError struct {
	line int
	err  error
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	csvPath := flag.String("csv", "", "CSV file of station observations")
	rawOut := flag.String("raw-out", "", "output path for the raw readings fixture")
	enrichedOut := flag.String("enriched-out", "", "output path for the enriched readings fixture")
	flag.Parse()

	if *csvPath == "" || *rawOut == "" || *enrichedOut == "" {
		flag.Usage()
		return errors.New("missing required flags: -csv, -raw-out, -enriched-out")
	}

	domain.SetClock(clockwork.NewFakeClockAt(processedAt))
	defer domain.SetClock(nil)

	f, err := os.Open(*csvPath)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	raws, events, skipped, err := processCSV(f)
	if err != nil {
		return fmt.Errorf("processing %s: %w", *csvPath, err)
	}
	for _, s := range skipped {
		log.Printf("skipped line %d: %v", s.line, s.err)
	}
	log.Printf("total: %d readings, %d skipped", len(raws), len(skipped))

	if err := writeJSON(*rawOut, raws); err != nil {
		return fmt.Errorf("writing raw fixture: %w", err)
	}
	log.Printf("wrote raw fixture: %s", *rawOut)

	if err := writeJSON(*enrichedOut, events); err != nil {
		return fmt.Errorf("writing enriched fixture: %w", err)
	}
	log.Printf("wrote enriched fixture: %s", *enrichedOut)

	printStats(events)
	return nil
}

// processCSV parses observations and runs each through the same parse and
// enrich steps as the pipeline. Rows that fail are returned in skipped.
func processCSV(r io.Reader) ([]domain.RawReading, []domain.ReadingEvent, []rowError, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil, nil, errors.New("no data rows")
	}

	colIdx := map[string]int{}
	for i, h := range rows[0] {
		colIdx[strings.TrimSpace(h)] = i
	}
	for _, col := range requiredColumns {
		if _, ok := colIdx[col]; !ok {
			return nil, nil, nil, fmt.Errorf("missing column %q", col)
		}
	}

	var (
		raws    []domain.RawReading
		events  []domain.ReadingEvent
		skipped []rowError
	)

	for i, row := range rows[1:] {
		line := i + 2

		rec, err := toRawReading(row, colIdx)
		if err != nil {
			skipped = append(skipped, rowError{line: line, err: err})
			continue
		}

		payload, err := json.Marshal(rec)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshal line %d: %w", line, err)
		}

		parsed, err := domain.ParseRawEvent(domain.RawEvent{Value: payload})
		if err != nil {
			skipped = append(skipped, rowError{line: line, err: err})
			continue
		}
		enriched, err := domain.EnrichReadingEvent(parsed)
		if err != nil {
			skipped = append(skipped, rowError{line: line, err: err})
			continue
		}

		raws = append(raws, rec)
		events = append(events, enriched)
	}

	return raws, events, skipped, nil
}

func toRawReading(row []string, idx map[string]int) (domain.RawReading, error) {
	rec := domain.RawReading{
		StationID:  get(row, idx, "station_id"),
		ObservedAt: get(row, idx, "observed_at"),
	}

	fields := []struct {
		col string
		dst **float64
	}{
		{domain.FieldDryBulbTemperature, &rec.DryBulbTemperature},
		{domain.FieldRelativeHumidity, &rec.RelativeHumidity},
		{domain.FieldWindSpeed, &rec.WindSpeed},
	}
	for _, f := range fields {
		s := get(row, idx, f.col)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.RawReading{}, fmt.Errorf("%s: %w", f.col, err)
		}
		*f.dst = &v
	}
	return rec, nil
}

func get(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

type bandCount struct {
	band  string
	count int
}

func printStats(events []domain.ReadingEvent) {
	if len(events) == 0 {
		fmt.Println("\nno readings")
		return
	}

	bands := map[string]int{}
	stations := map[string]int{}
	coldest, warmest := events[0], events[0]
	for i := range events {
		e := &events[i]
		bands[e.Comfort]++
		stations[e.StationID]++
		if e.ApparentTemperature < coldest.ApparentTemperature {
			coldest = *e
		}
		if e.ApparentTemperature > warmest.ApparentTemperature {
			warmest = *e
		}
	}

	bc := make([]bandCount, 0, len(bands))
	for b, c := range bands {
		bc = append(bc, bandCount{b, c})
	}
	sort.Slice(bc, func(i, j int) bool {
		if bc[i].count != bc[j].count {
			return bc[i].count > bc[j].count
		}
		return bc[i].band < bc[j].band
	})

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d across %d stations\n", len(events), len(stations))
	fmt.Print("By comfort band:")
	for _, b := range bc {
		fmt.Printf(" %s=%d", b.band, b.count)
	}
	fmt.Println()
	fmt.Printf("Coldest: %s %.2f°C (T=%g RH=%g W=%g)\n", coldest.ID, coldest.ApparentTemperature,
		coldest.DryBulbTemperature, coldest.RelativeHumidity, coldest.WindSpeed)
	fmt.Printf("Warmest: %s %.2f°C (T=%g RH=%g W=%g)\n", warmest.ID, warmest.ApparentTemperature,
		warmest.DryBulbTemperature, warmest.RelativeHumidity, warmest.WindSpeed)
}
