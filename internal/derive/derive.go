// Package derive computes presentation values from raw catalog fields:
// durations, market flags, musical key and mode names and percentages.
// Every function is pure.
package derive

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// NotAvailable is shown for absent optional values.
const NotAvailable = "N/A"

// regionalIndicatorA is the code point of REGIONAL INDICATOR SYMBOL LETTER A.
const regionalIndicatorA = 0x1F1E6

// Duration formats milliseconds as M:SS, truncating sub-second remainders.
func Duration(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	minutes := ms / 60000
	seconds := (ms / 1000) % 60
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// Flag maps a two-letter market code to its pair of regional indicator
// symbols. Codes that are not two ASCII letters are returned unchanged.
func Flag(code string) string {
	code = strings.ToUpper(code)
	if len(code) != 2 {
		return code
	}
	var b strings.Builder
	for i := 0; i < len(code); i++ {
		c := code[i]
		if c < 'A' || c > 'Z' {
			return code
		}
		b.WriteRune(rune(regionalIndicatorA + int(c-'A')))
	}
	return b.String()
}

// Market is one decoded market code.
type Market struct {
	Code string
	Flag string
}

// DecodeMarkets splits a comma-joined market list, sorts the codes and maps
// each to its flag. Empty entries are skipped.
func DecodeMarkets(joined string) []Market {
	var codes []string
	for _, code := range strings.Split(joined, ",") {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code != "" {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)

	markets := make([]Market, 0, len(codes))
	for _, code := range codes {
		markets = append(markets, Market{Code: code, Flag: Flag(code)})
	}
	return markets
}

var keyNames = [...]string{
	"C", "C♯/D♭", "D", "D♯/E♭", "E", "F",
	"F♯/G♭", "G", "G♯/A♭", "A", "A♯/B♭", "B",
}

// KeyName returns the pitch class for a key index, or N/A outside 0..11.
func KeyName(key int) string {
	if key < 0 || key >= len(keyNames) {
		return NotAvailable
	}
	return keyNames[key]
}

// ModeName returns Major for 1 and Minor for 0.
func ModeName(mode int) string {
	switch mode {
	case 1:
		return "Major"
	case 0:
		return "Minor"
	default:
		return NotAvailable
	}
}

// Percent scales a [0,1] value to a percentage with three significant
// digits, e.g. 0.123 -> "12.3 %", 0.005 -> "0.500 %", 1 -> "100 %".
func Percent(v float64) string {
	x := v * 100
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return NotAvailable
	}

	// Round to three significant digits first so the exponent reflects
	// carries such as 99.96 -> 100.
	e := strconv.FormatFloat(x, 'e', 2, 64)
	exp, err := strconv.Atoi(e[strings.IndexByte(e, 'e')+1:])
	if err != nil {
		return NotAvailable
	}
	decimals := 2 - exp
	if decimals < 0 {
		decimals = 0
	}
	rounded, _ := strconv.ParseFloat(e, 64)
	return strconv.FormatFloat(rounded, 'f', decimals, 64) + " %"
}

// Unit clamps v to [0,1] for progress indicators.
func Unit(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Number formats a float without trailing zeros.
func Number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// TimeSignature formats beats per bar as "N/4".
func TimeSignature(beats int) string {
	return strconv.Itoa(beats) + "/4"
}

// Tempo formats beats per minute.
func Tempo(bpm float64) string {
	return Number(bpm) + " BPM"
}

// Loudness formats decibels.
func Loudness(db float64) string {
	return Number(db) + " dB"
}

// Grouped formats an integer with thousands separators.
func Grouped(n int64) string {
	return message.NewPrinter(language.English).Sprintf("%d", n)
}

// Title title-cases a word such as an album type.
func Title(s string) string {
	return cases.Title(language.English).String(s)
}

// FetchedAt formats a millisecond epoch timestamp in UTC.
func FetchedAt(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04 MST")
}

// ReleaseYear returns the year part of a release date.
func ReleaseYear(date string) string {
	if len(date) < 4 {
		return date
	}
	return date[:4]
}

// Optional returns *s or N/A.
func Optional(s *string) string {
	if s == nil || *s == "" {
		return NotAvailable
	}
	return *s
}
