// Package domain models a station's Actual Meteorological Year (AMY) and the
// rules for repairing it into a complete annual record.
//
// # Data Source
//
// Hourly observations come from NOAA Integrated Surface Database "Lite"
// (ISD-Lite) files, one file per station per year, organised on disk as
//
//	<root>/<YEAR>/<USAF>-<WBAN>-<YEAR>.gz
//
// The directory name carries the year and the filename prefix (the portion
// before the first hyphen) carries the station identifier. The file for the
// following year is found by swapping the year in both places. See
// [ParseReference].
//
// # Annual Series
//
// Each tracked [Field] is held as an [AnnualSeries] with exactly one slot per
// hour of the year:
//
//	8760 slots for a common year, 8784 for a leap year
//	index 0 = January 1, 00:00 UTC
//
// A slot is either present (a value) or absent. Feeds omit rows for hours
// that were never reported and use the sentinel -9999 for unreported columns;
// both end up as absent slots. See [ParseObservation] and [SeriesBuilder].
//
// # Repair Policy
//
// Gaps are maximal runs of absent slots ([FindGaps]). Each gap is classified
// by its length against a [RepairPolicy]:
//
//	length <= max_interpolate, both neighbours known  -> Interpolated
//	length <= max_impute                              -> Imputed
//	otherwise                                         -> Unrepairable
//
// Interpolation draws a straight line between the last known value before
// the gap and the first known value after it. A gap that runs into the end
// of the year takes its right-hand neighbour from the following year.
//
// Imputation sets each missing hour to the mean of the observations exactly
// 14 days (336 hours) before and after it. Only original observations are
// used as references: a reference hour that is itself missing makes the gap
// unrepairable. Lookups after year end read the following year; lookups
// before January 1 have no prior-year source and fail.
//
// A station-year is usable only when every gap of every field is repaired.
package domain
