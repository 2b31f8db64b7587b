// Command genmock writes synthetic NOAA ISD-Lite feeds and a matching station
// list for local runs and demos. Each station-year follows a seasonal and
// diurnal cycle with a reproducible set of gaps: short ones that interpolate,
// longer ones that impute, and optionally one that cannot be repaired.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out-dir data/mock \
//	  -stations 725300-94846,722950-23174 \
//	  -years 2019,2020 \
//	  -unrepairable 722950
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/amy-epw-etl/internal/adapter/isdlite"
	"github.com/couchcryptid/amy-epw-etl/internal/domain"
)

type station struct {
	usaf string
	wban string
}

// gap is a run of hours during which one field is not reported.
type gap struct {
	field  domain.Field
	start  int
	length int
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "", "directory to write feeds and files_to_convert.csv into")
	stationsFlag := flag.String("stations", "725300-94846", "comma-separated USAF-WBAN station identifiers")
	yearsFlag := flag.String("years", "2019,2020", "comma-separated consecutive years to generate")
	unrepairable := flag.String("unrepairable", "", "USAF id of a station that gets a gap too long to repair")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out-dir")
	}

	stations, err := parseStations(*stationsFlag)
	if err != nil {
		return err
	}
	years, err := parseYears(*yearsFlag)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	var refs []string
	for _, st := range stations {
		for i, year := range years {
			gaps := plannedGaps(rng, year, st.usaf == *unrepairable && i == 0)
			sy, err := synthesize(rng, st, year, gaps)
			if err != nil {
				return fmt.Errorf("synthesize %s/%d: %w", st.usaf, year, err)
			}
			path := filepath.Join(*outDir, strconv.Itoa(year), isdlite.FileName(st.usaf, st.wban, year))
			if err := isdlite.WriteFile(path, sy); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			log.Printf("%s: %d gaps", path, len(gaps))
			// The final year only serves as repair context.
			if i < len(years)-1 {
				refs = append(refs, path)
			}
		}
	}

	listPath := filepath.Join(*outDir, "files_to_convert.csv")
	if err := writeStationList(listPath, refs); err != nil {
		return err
	}
	log.Printf("wrote station list: %s (%d station-years)", listPath, len(refs))
	return nil
}

func parseStations(s string) ([]station, error) {
	var out []station
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		usaf, wban, ok := strings.Cut(part, "-")
		if !ok || usaf == "" || wban == "" {
			return nil, fmt.Errorf("invalid station %q: want USAF-WBAN", part)
		}
		out = append(out, station{usaf: usaf, wban: wban})
	}
	return out, nil
}

func parseYears(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		y, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid year %q: %w", part, err)
		}
		if len(out) > 0 && y != out[len(out)-1]+1 {
			return nil, fmt.Errorf("years must be consecutive, got %d after %d", y, out[len(out)-1])
		}
		out = append(out, y)
	}
	return out, nil
}

// plannedGaps places gaps away from the first and last two weeks of the year
// so imputation always has both reference hours.
func plannedGaps(rng *rand.Rand, year int, withUnrepairable bool) []gap {
	n := domain.HoursInYear(year)
	margin := domain.ImputationLag + 48
	pick := func() int { return margin + rng.IntN(n-2*margin) }

	gaps := make([]gap, 0, 12)
	for _, f := range domain.TrackedFields {
		gaps = append(gaps,
			gap{field: f, start: pick(), length: 1 + rng.IntN(domain.DefaultMaxInterpolate)},
			gap{field: f, start: pick(), length: domain.DefaultMaxInterpolate + 1 + rng.IntN(domain.DefaultMaxImpute-domain.DefaultMaxInterpolate)},
		)
	}
	if withUnrepairable {
		gaps = append(gaps, gap{field: domain.WindSpeed, start: pick(), length: 5 * domain.DefaultMaxImpute})
	}
	return gaps
}

func synthesize(rng *rand.Rand, st station, year int, gaps []gap) (*domain.StationYear, error) {
	n := domain.HoursInYear(year)
	skip := make(map[domain.Field][]bool, len(domain.TrackedFields))
	for _, f := range domain.TrackedFields {
		skip[f] = make([]bool, n)
	}
	for _, g := range gaps {
		for h := g.start; h < g.start+g.length && h < n; h++ {
			skip[g.field][h] = true
		}
	}

	b := domain.NewSeriesBuilder(st.usaf, year)
	for h := 0; h < n; h++ {
		season := math.Cos(2 * math.Pi * float64(h-4800) / float64(n))
		diurnal := math.Cos(2 * math.Pi * float64(h%24-15) / 24)
		temp := 10 + 14*season + 5*diurnal + rng.NormFloat64()
		values := map[domain.Field]float64{
			domain.DryBulbTemperature:  tenth(temp),
			domain.DewPointTemperature: tenth(temp - 4 - 3*rng.Float64()),
			domain.AtmosphericPressure: 10 * math.Round(10130+60*math.Sin(float64(h)/90)+rng.NormFloat64()*3),
			domain.WindDirection:       float64(rng.IntN(36) * 10),
			domain.WindSpeed:           tenth(math.Max(0, 4+2*math.Sin(float64(h)/30)+rng.NormFloat64())),
		}
		ts := domain.TimeOfHour(year, h)
		for _, f := range domain.TrackedFields {
			if skip[f][h] {
				continue
			}
			if err := b.Set(f, ts, domain.Present(values[f])); err != nil {
				return nil, err
			}
		}
	}
	return b.Build()
}

func tenth(v float64) float64 {
	return math.Round(v*10) / 10
}

func writeStationList(path string, refs []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create station list dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create station list: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"file"}); err != nil {
		return err
	}
	for _, r := range refs {
		if err := w.Write([]string{r}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write station list: %w", err)
	}
	return f.Close()
}
