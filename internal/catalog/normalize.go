package catalog

// normalize.go converts single raw cell values into canonical scalars.
//
// Every function here is total: unparseable input yields the zero/invalid
// form of the result instead of an error, so the converter can decide whether
// a missing value is fatal for the row.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Number is an optional numeric value. Valid is false when the input was
// empty or could not be parsed.
type Number struct {
	Value float64
	Valid bool
}

// Ptr returns a pointer to the value, or nil when invalid.
func (n Number) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

var (
	nonNumericChars = regexp.MustCompile(`[^0-9.,\-]`)
	textDisallowed  = regexp.MustCompile(`[^\p{Latin}\p{N}_\s.,()%\-]`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	nonDigits       = regexp.MustCompile(`[^0-9]`)
	quantityShape   = regexp.MustCompile(`^[0-9][0-9.,]*$`)
	groupedInteger  = regexp.MustCompile(`^[0-9]{1,3}(?:([.,])[0-9]{3})(?:[.,][0-9]{3})*$`)
)

// NormalizeNumber parses a locale-formatted number such as "R$ 1.234,56",
// "18,90" or "$1,234.56".
//
// When both separators are present the rightmost one is the decimal mark and
// the other is thousands grouping. A lone comma is a decimal comma.
func NormalizeNumber(raw string) Number {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Number{}
	}

	// Currency symbols, letters and spaces all fall outside the kept set.
	s = nonNumericChars.ReplaceAllString(s, "")
	if s == "" {
		return Number{}
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Number{}
	}
	return Number{Value: f, Valid: true}
}

// NormalizeText trims, collapses whitespace runs and drops characters outside
// letters, digits, spaces and the punctuation set .,-()%.
func NormalizeText(raw string) string {
	s := textDisallowed.ReplaceAllString(raw, "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizeBoolean reports whether raw is an affirmative token.
func NormalizeBoolean(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "sim", "yes", "s", "y":
		return true
	default:
		return false
	}
}

// NormalizeBarcode reduces raw to a GTIN-shaped digit string: 8 and 13 digit
// codes pass through, shorter codes are left-padded to 13 digits, and inputs
// with no digits or more than 13 digits yield "". Check digits are not verified.
func NormalizeBarcode(raw string) string {
	digits := nonDigits.ReplaceAllString(raw, "")
	switch n := len(digits); {
	case n == 0:
		return ""
	case n == 8 || n == 13:
		return digits
	case n < 13:
		return strings.Repeat("0", 13-n) + digits
	default:
		return ""
	}
}

// NormalizeQuantity parses a stock quantity. Thousands-grouped integers such
// as "1.000" or "1,000" are read as grouping, never as decimals. Integral
// decimals such as "10.0" are accepted; fractions, negatives and garbage are
// rejected.
func NormalizeQuantity(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, false
		}
		return n, true
	}

	if !quantityShape.MatchString(s) {
		return 0, false
	}
	if m := groupedInteger.FindStringSubmatch(s); m != nil && strings.Count(s, m[1]) == strings.Count(s, ".")+strings.Count(s, ",") {
		n, err := strconv.Atoi(strings.ReplaceAll(s, m[1], ""))
		if err != nil || n > math.MaxInt32 {
			return 0, false
		}
		return n, true
	}
	num := NormalizeNumber(s)
	if !num.Valid || num.Value < 0 || num.Value != math.Trunc(num.Value) || num.Value > math.MaxInt32 {
		return 0, false
	}
	return int(num.Value), true
}
