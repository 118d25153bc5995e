package extractor

import (
	"regexp"
	"strconv"
	"strings"
)

// Budget figures the parser accepts as plausible for the current market.
// Bare numbers below the floor (e.g. "3 bedrooms") are not budgets.
const (
	minPlausibleBudget = 10_000
	maxPlausibleBudget = 1_000_000_000
)

var budgetToken = regexp.MustCompile(`(?i)(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?)\s*([km])?`)

// ParseBudget extracts a budget figure or range from free text. It
// accepts digit groupings ("500,000"), k/m shorthand ("750k", "1.2m")
// and ranges ("700-900k", "between 500k and 700k"). Two plausible
// figures become min/max; one becomes min only.
func ParseBudget(text string) (min, max string, ok bool) {
	matches := budgetToken.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return "", "", false
	}

	// A trailing suffix distributes left across a range: in "700-900k"
	// both figures are thousands.
	var values []int64
	var sharedSuffix string
	for i := len(matches) - 1; i >= 0; i-- {
		if matches[i][2] != "" {
			sharedSuffix = strings.ToLower(matches[i][2])
			break
		}
	}

	for _, m := range matches {
		v, parsed := parseFigure(m[1], strings.ToLower(m[2]), sharedSuffix)
		if !parsed {
			continue
		}
		if v < minPlausibleBudget || v > maxPlausibleBudget {
			continue
		}
		values = append(values, v)
		if len(values) == 2 {
			break
		}
	}

	if len(values) == 0 {
		return "", "", false
	}
	if len(values) == 2 {
		lo, hi := values[0], values[1]
		if lo > hi {
			lo, hi = hi, lo
		}
		return strconv.FormatInt(lo, 10), strconv.FormatInt(hi, 10), true
	}
	return strconv.FormatInt(values[0], 10), "", true
}

func parseFigure(number, suffix, sharedSuffix string) (int64, bool) {
	cleaned := strings.ReplaceAll(number, ",", "")
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	if suffix == "" {
		suffix = sharedSuffix
	}
	switch suffix {
	case "k":
		f *= 1_000
	case "m":
		f *= 1_000_000
	}
	return int64(f), true
}
