package ibkr

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// percentRegex matches a signed decimal immediately followed by a percent sign
	percentRegex = regexp.MustCompile(`[+\-−]?\d+(?:\.\d+)?%`)

	// numberRegex matches any signed decimal
	numberRegex = regexp.MustCompile(`[+\-−]?\d+(?:\.\d+)?`)

	// tierNumberRegex matches unsigned decimals with optional thousands separators
	tierNumberRegex = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

	// interestBenchmarkRegex matches "BM - 0.5%" style spreads below benchmark
	interestBenchmarkRegex = regexp.MustCompile(`(?i)BM\s*[-−–]\s*(\d+(?:\.\d+)?)\s*%`)

	// marginBenchmarkRegex matches "BM + 1.5%" style spreads around benchmark
	marginBenchmarkRegex = regexp.MustCompile(`(?i)BM\s*[+\-−–]\s*(\d+(?:\.\d+)?)\s*%`)
)

var (
	greaterThanMarkers = []string{">", "≥"}
	rangeMarkers       = []string{"≤", "<=", "<", "-", "–", "—"}
)

// cleanText normalizes the text content of a cell:
// non-breaking spaces become spaces, whitespace runs collapse to one space
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")

	return strings.Join(strings.Fields(s), " ")
}

// parseRate extracts the signed rate from the rate cell text.
// A percent-suffixed number wins over a bare number
func parseRate(text string) (decimal.Decimal, bool) {
	match := percentRegex.FindString(text)
	if match == "" {
		match = numberRegex.FindString(text)
	}

	if match == "" {
		return decimal.Decimal{}, false
	}

	return parseSigned(strings.TrimSuffix(match, "%"))
}

// parseBenchmarkDiff extracts the magnitude of the benchmark spread, if any
func parseBenchmarkDiff(text string, pattern *regexp.Regexp) decimal.NullDecimal {
	if pattern == nil {
		return decimal.NullDecimal{}
	}

	match := pattern.FindStringSubmatch(text)
	if len(match) < 2 {
		return decimal.NullDecimal{}
	}

	d, err := decimal.NewFromString(match[1])
	if err != nil {
		return decimal.NullDecimal{}
	}

	return decimal.NewNullDecimal(d)
}

// parseTier splits the tier cell text into its lower and upper bounds
func parseTier(text string) (decimal.NullDecimal, decimal.NullDecimal) {
	var (
		low  decimal.NullDecimal
		high decimal.NullDecimal
	)

	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(text, "all") {
		return low, high
	}

	numbers := tierNumbers(text)
	if len(numbers) == 0 {
		return low, high
	}

	switch {
	case containsAny(text, greaterThanMarkers):
		low = decimal.NewNullDecimal(numbers[0])
	case containsAny(text, rangeMarkers):
		if len(numbers) >= 2 {
			low = decimal.NewNullDecimal(numbers[0])
			high = decimal.NewNullDecimal(numbers[1])

			break
		}

		low = decimal.NewNullDecimal(decimal.Zero)
		high = decimal.NewNullDecimal(numbers[0])
	default:
		// Unrecognized phrasing, the lone number is taken as the lower bound
		low = decimal.NewNullDecimal(numbers[0])
	}

	return low, high
}

// tierNumbers collects up to the first two numbers in the tier text
func tierNumbers(text string) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, 2)

	for _, raw := range tierNumberRegex.FindAllString(text, -1) {
		d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
		if err != nil {
			continue
		}

		out = append(out, d)

		if len(out) == 2 {
			break
		}
	}

	return out
}

// parseSigned parses a decimal that may carry an ASCII or unicode sign
func parseSigned(s string) (decimal.Decimal, bool) {
	s = strings.Replace(s, "−", "-", 1)
	s = strings.TrimPrefix(s, "+")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}

	return d, true
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}

	return false
}
