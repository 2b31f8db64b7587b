// Command validate re-checks a directory of generated EPW files: header
// layout, hourly record schedule, and value ranges. It also cross-checks each
// file name against the year its rows carry.
//
// Usage:
//
//	go run ./cmd/validate -epw-dir outputs/create_amy_epw_files_output/epw
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/couchcryptid/amy-epw-etl/internal/adapter/epw"
	"github.com/couchcryptid/amy-epw-etl/internal/domain"
)

// maxErrorsPerPhase caps the detail printed for a failing phase.
const maxErrorsPerPhase = 20

var fileNamePattern = regexp.MustCompile(`^(\d+)_AMY_(\d{4})\.epw$`)

var headerPrefixes = []string{
	"LOCATION,",
	"DESIGN CONDITIONS,",
	"TYPICAL/EXTREME PERIODS,",
	"GROUND TEMPERATURES,",
	"HOLIDAYS/DAYLIGHT SAVINGS,",
	"COMMENTS 1,",
	"COMMENTS 2,",
	"DATA PERIODS,",
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type loadedFile struct {
	name    string
	station string
	year    int
	file    *epw.File
}

func main() {
	dir := flag.String("epw-dir", "", "directory containing generated EPW files")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dir); code != 0 {
		os.Exit(code)
	}
}

func run(dir string) int {
	fmt.Println("=== AMY EPW Validation ===")
	fmt.Println()

	files, load := loadAll(dir)
	if files == nil && !load.passed() {
		fmt.Fprintf(os.Stderr, "FATAL: %s\n", load.errors[0])
		return 1
	}

	phases := []*phase{
		load,
		validateNames(files),
		validateHeaders(files),
		validateRecords(files),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Files: %d\n", len(files))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == maxErrorsPerPhase {
				fmt.Printf("  ... and %d more\n", len(p.errors)-i)
				break
			}
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	fmt.Println("\nAll phases passed.")
	return 0
}

func loadAll(dir string) ([]loadedFile, *phase) {
	p := &phase{name: "Load EPW files"}
	paths, err := filepath.Glob(filepath.Join(dir, "*.epw"))
	if err != nil {
		p.errorf("glob %s: %v", dir, err)
		return nil, p
	}
	if len(paths) == 0 {
		p.errorf("no .epw files in %s", dir)
		return nil, p
	}
	sort.Strings(paths)

	files := make([]loadedFile, 0, len(paths))
	for _, path := range paths {
		f, err := epw.ReadFile(path)
		if err != nil {
			p.errorf("%v", err)
			continue
		}
		files = append(files, loadedFile{name: filepath.Base(path), file: f})
	}
	return files, p
}

func validateNames(files []loadedFile) *phase {
	p := &phase{name: "File names match contents"}
	for i := range files {
		lf := &files[i]
		m := fileNamePattern.FindStringSubmatch(lf.name)
		if m == nil {
			p.errorf("%s: name does not match <station>_AMY_<year>.epw", lf.name)
			continue
		}
		lf.station = m[1]
		lf.year, _ = strconv.Atoi(m[2])
		if got := lf.file.Year(); got != lf.year {
			p.errorf("%s: rows carry year %d", lf.name, got)
		}
		if !strings.HasPrefix(lf.file.Header[0], "LOCATION,"+lf.station+",") {
			p.errorf("%s: LOCATION line does not name station %s", lf.name, lf.station)
		}
	}
	return p
}

func validateHeaders(files []loadedFile) *phase {
	p := &phase{name: "Header layout"}
	for _, lf := range files {
		for i, prefix := range headerPrefixes {
			if !strings.HasPrefix(lf.file.Header[i], prefix) {
				p.errorf("%s: header line %d should start with %q", lf.name, i+1, strings.TrimSuffix(prefix, ","))
			}
		}
		if lf.year == 0 {
			continue
		}
		leap := "No"
		if domain.HoursInYear(lf.year) == domain.HoursPerLeapYear {
			leap = "Yes"
		}
		if !strings.HasPrefix(lf.file.Header[4], "HOLIDAYS/DAYLIGHT SAVINGS,"+leap+",") {
			p.errorf("%s: leap year flag should be %s", lf.name, leap)
		}
	}
	return p
}

func validateRecords(files []loadedFile) *phase {
	p := &phase{name: "Hourly records and value ranges"}
	for _, lf := range files {
		year := lf.year
		if year == 0 {
			year = lf.file.Year()
		}
		for _, v := range epw.ValidateRecords(year, lf.file.Records) {
			p.errorf("%s: %s", lf.name, v)
		}
	}
	return p
}
