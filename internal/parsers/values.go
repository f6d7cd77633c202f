// Package parsers provides cell value parsing for iFood spreadsheet exports.
//
// Every parser is a total function: any input, valid or garbage, produces a
// canonical value or nil, never an error. A failed cell is a data quality
// signal recorded as null, not a reason to abort a row or a file. This is
// the primary defense against a single malformed cell corrupting an entire
// batch import.
//
// The exports mix three monetary encodings (Brazilian decimal-with-comma,
// plain decimal-with-dot, and bare integer cents), so the monetary parsers
// are selectable per column rather than guessing from the value alone.
package parsers

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Currency parses a Brazilian-format monetary value: optional "R$" prefix,
// "." as thousands separator and "," as decimal separator. Plain numeric
// values pass through. Non-finite results and unparseable input yield nil.
func Currency(v interface{}) *float64 {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		return finite(t)
	case float32:
		return finite(float64(t))
	case int:
		return finite(float64(t))
	case int64:
		return finite(float64(t))
	case string:
		return parseBRLString(t)
	default:
		return nil
	}
}

// CurrencyCents parses a monetary value encoded as integer cents, dividing
// by 100. Some export revisions ship "12600" meaning 126.00; callers opt in
// per column.
func CurrencyCents(v interface{}) *float64 {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		return finite(t / 100)
	case float32:
		return finite(float64(t) / 100)
	case int:
		return finite(float64(t) / 100)
	case int64:
		return finite(float64(t) / 100)
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, "R$", ""))
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return finite(f / 100)
	default:
		return nil
	}
}

// OrderTotal disambiguates the three encodings observed historically for
// the total_do_pedido column:
//
//   - comma present: Brazilian decimal ("126,00", "1.234,56")
//   - dot with exactly two decimals: plain decimal ("126.00")
//   - bare integer with magnitude above 99: integer cents ("12600")
//
// Anything else parses as a plain number, and unrecognizable shapes yield
// nil so they surface as a data quality flag instead of a silent guess.
func OrderTotal(v interface{}) *float64 {
	s, ok := stringify(v)
	if !ok {
		return Currency(v)
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, "R$", ""))
	if s == "" {
		return nil
	}

	if strings.Contains(s, ",") {
		cleaned := strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil
		}
		return finite(f)
	}

	if strings.Contains(s, ".") {
		parts := strings.Split(s, ".")
		if len(parts[len(parts)-1]) == 2 {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil
			}
			return finite(f)
		}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	if f == math.Trunc(f) && math.Abs(f) > 99 {
		return finite(f / 100)
	}
	return finite(f)
}

// Percent parses a percentage cell: strips "%", converts comma to decimal
// point; a magnitude within (0, 1] is assumed to be a fraction and rescaled
// to a percentage. The result is rounded to one decimal place.
func Percent(v interface{}) *float64 {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		return scalePercent(t)
	case float32:
		return scalePercent(float64(t))
	case int:
		return scalePercent(float64(t))
	case int64:
		return scalePercent(float64(t))
	case string:
		s = t
	default:
		return nil
	}

	s = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(s, "%", ""), ",", "."))
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return scalePercent(f)
}

func scalePercent(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	if f > 0 && f <= 1 {
		f *= 100
	}
	// Round(f*10) overflows to Inf near the float64 limit.
	return finite(math.Round(f*10) / 10)
}

// dateLayouts covers the formats observed across export revisions: ISO
// date/datetime, Brazilian dd/mm/yyyy with and without time, and the
// slash-separated ISO variant.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2006/01/02",
	"02-01-2006",
}

// Date attempts flexible date parsing; unparseable or missing input yields
// nil. Results are timezone-naive unless the source carries an offset.
func Date(v interface{}) *time.Time {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		if t.IsZero() {
			return nil
		}
		return &t
	case string:
		s := strings.TrimSpace(t)
		if s == "" || isNullLiteral(s) {
			return nil
		}
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return &parsed
			}
		}
		return nil
	default:
		return nil
	}
}

// ISODate formats a parsed date as an ISO-8601 string for storage, nil in
// nil out.
func ISODate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02T15:04:05")
	if _, offset := t.Zone(); offset != 0 {
		s = t.Format(time.RFC3339)
	}
	return &s
}

// Identifier casts a cell to a string identifier, stripping the trailing
// ".0" artifact produced when numeric-looking ids are read as floating
// point. Literal null markers ("None", "nan") and empty strings yield nil.
func Identifier(v interface{}) *string {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s = strings.TrimSpace(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	default:
		return nil
	}

	s = strings.TrimSuffix(s, ".0")
	if s == "" || isNullLiteral(s) {
		return nil
	}
	return &s
}

func parseBRLString(s string) *float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, "R$", ""))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	if s == "" {
		return nil
	}

	hasDot := strings.Contains(s, ".")
	hasComma := strings.Contains(s, ",")
	switch {
	case hasDot && hasComma:
		// dot is the thousands separator, comma the decimal point
		s = strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
	case hasComma:
		s = strings.ReplaceAll(s, ",", ".")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return finite(f)
}

// finite normalizes non-finite values to nil; strict JSON serialization and
// the database both reject NaN and infinities.
func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func stringify(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func isNullLiteral(s string) bool {
	switch strings.ToLower(s) {
	case "none", "nan", "nat", "null":
		return true
	}
	return false
}
