// Command genfixtures reads weather observation CSV files and generates the
// prediction request fixtures used by the pipeline and integration test
// suites. It runs the real fire risk model so the expected TTF values match
// pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genfixtures \
//	  -out internal/pipeline/testdata/requests.json \
//	  data/weather/bergen_2026_01_09.csv data/weather/oslo_2026_07_01.csv
//
// Each file becomes one fixture; its base name (without extension) is used as
// the fixture name and the request location.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/frcm-service/internal/adapter/csvio"
	"github.com/couchcryptid/frcm-service/internal/domain"
	"github.com/couchcryptid/frcm-service/internal/firerisk"
)

// fixture mirrors the layout of internal/pipeline/testdata/requests.json.
type fixture struct {
	Name            string                   `json:"name"`
	WantDangerLevel domain.DangerLevel       `json:"want_danger_level"`
	WantTTF         []float64                `json:"want_ttf"`
	Request         domain.PredictionRequest `json:"request"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the request fixture JSON")
	flag.Parse()

	if *out == "" || flag.NArg() == 0 {
		flag.Usage()
		return fmt.Errorf("missing required flag -out or input CSV files")
	}

	model := firerisk.NewDefault()

	fixtures := make([]fixture, 0, flag.NArg())
	for _, path := range flag.Args() {
		fx, err := processCSV(model, path)
		if err != nil {
			return fmt.Errorf("processing %s: %w", path, err)
		}
		fixtures = append(fixtures, fx)
		log.Printf("%s: %d observations", fx.Name, len(fx.WantTTF))
	}

	if err := writeJSON(*out, fixtures); err != nil {
		return fmt.Errorf("writing fixtures: %w", err)
	}
	log.Printf("wrote fixtures: %s", *out)

	printStats(fixtures)
	return nil
}

func processCSV(model *firerisk.Model, path string) (fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return fixture{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	raw, err := csvio.ReadObservations(f)
	if err != nil {
		return fixture{}, err
	}

	series, err := domain.NewWeatherSeries(raw)
	if err != nil {
		return fixture{}, err
	}

	risks, err := model.Compute(series)
	if err != nil {
		return fixture{}, fmt.Errorf("compute: %w", err)
	}

	latest, _ := risks.Latest()
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	want := make([]float64, len(risks))
	for i, p := range risks {
		want[i] = round6(p.TTF)
	}

	return fixture{
		Name:            name,
		WantDangerLevel: domain.DangerLevelFromTTF(latest.TTF),
		WantTTF:         want,
		Request:         domain.PredictionRequest{Location: name, Observations: raw},
	}, nil
}

// round6 rounds to six decimals.
func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
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

func printStats(fixtures []fixture) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	levels := map[domain.DangerLevel]int{}
	for _, fx := range fixtures {
		levels[fx.WantDangerLevel]++

		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range fx.WantTTF {
			lo, hi = min(lo, v), max(hi, v)
		}
		fmt.Printf("  %-32s n=%-4d ttf=[%g, %g] latest=%g %s\n",
			fx.Name, len(fx.WantTTF), lo, hi, fx.WantTTF[len(fx.WantTTF)-1], fx.WantDangerLevel)
	}
	fmt.Printf("By danger level: low=%d, moderate=%d, high=%d, very_high=%d\n",
		levels[domain.DangerLow], levels[domain.DangerModerate], levels[domain.DangerHigh], levels[domain.DangerVeryHigh])
}
