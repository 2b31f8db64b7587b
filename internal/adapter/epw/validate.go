package epw

import (
	"fmt"

	"github.com/couchcryptid/amy-epw-etl/internal/domain"
)

// valueRange is an inclusive bound from the EPW data dictionary.
type valueRange struct {
	field    string
	min, max float64
	missing  float64
}

var (
	dryBulbRange   = valueRange{"dry_bulb_temperature", -70, 70, missingTemperature}
	dewPointRange  = valueRange{"dew_point_temperature", -70, 70, missingTemperature}
	humidityRange  = valueRange{"relative_humidity", 0, 110, missingHumidity}
	pressureRange  = valueRange{"atmospheric_pressure", 31000, 120000, missingPressure}
	directionRange = valueRange{"wind_direction", 0, 360, missingDirection}
	speedRange     = valueRange{"wind_speed", 0, 40, missingSpeed}
)

// ValidateRecords checks that recs form a complete, ordered year of hourly
// rows and that every populated value lies within its EPW range.
func ValidateRecords(year int, recs []Record) []domain.Violation {
	var out []domain.Violation

	want := domain.HoursInYear(year)
	if len(recs) != want {
		out = append(out, domain.Violation{Hour: -1, Message: fmt.Sprintf("expected %d hourly records for %d, got %d", want, year, len(recs))})
	}

	for h, r := range recs {
		if h < want {
			ts := domain.TimeOfHour(year, h)
			if r.Year != ts.Year() || r.Month != int(ts.Month()) || r.Day != ts.Day() || r.Hour != ts.Hour()+1 {
				out = append(out, domain.Violation{Hour: h, Field: "timestamp", Message: fmt.Sprintf(
					"got %04d-%02d-%02d hour %d, want %04d-%02d-%02d hour %d",
					r.Year, r.Month, r.Day, r.Hour, ts.Year(), int(ts.Month()), ts.Day(), ts.Hour()+1)})
			}
		}
		out = checkRange(out, h, dryBulbRange, r.DryBulb)
		out = checkRange(out, h, dewPointRange, r.DewPoint)
		out = checkRange(out, h, humidityRange, float64(r.RelHumidity))
		out = checkRange(out, h, pressureRange, float64(r.Pressure))
		out = checkRange(out, h, directionRange, float64(r.WindDir))
		out = checkRange(out, h, speedRange, r.WindSpeed)
	}
	return out
}

func checkRange(out []domain.Violation, h int, vr valueRange, v float64) []domain.Violation {
	if v == vr.missing {
		return append(out, domain.Violation{Hour: h, Field: vr.field, Message: "missing value"})
	}
	if v < vr.min || v > vr.max {
		return append(out, domain.Violation{Hour: h, Field: vr.field, Message: fmt.Sprintf("value %g outside [%g, %g]", v, vr.min, vr.max)})
	}
	return out
}
