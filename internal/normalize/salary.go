package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// salaryRe matches currency-amount pairs and ranges like "$65,000 - $80,000
// per year" or "USD 70000". Groups: currency marker, low, high, period.
var salaryRe = regexp.MustCompile(`(?i)(\$|USD\s*)\s*(\d{2,3}(?:[,.]\d{3})*(?:\.\d+)?)(?:\s*(?:[-–]|to)\s*\$?\s*(\d{2,3}(?:[,.]\d{3})*(?:\.\d+)?))?(?:\s*(?:per|/)\s*(year|yr|annum|hour|hr))?`)

const hoursPerYear = 2080

// Salary holds extracted salary bounds. Nil pointers mean no confident match.
type Salary struct {
	Min      *float64
	Max      *float64
	Currency *string
}

// ExtractSalary scans description text for a salary or salary range. Hourly
// rates are annualized. On no confident match every field stays nil; this
// never fails, only degrades.
func ExtractSalary(text string) Salary {
	if text == "" {
		return Salary{}
	}
	m := salaryRe.FindStringSubmatch(text)
	if m == nil {
		return Salary{}
	}

	low, err := parseAmount(m[2])
	if err != nil {
		return Salary{}
	}
	var high *float64
	if m[3] != "" {
		h, err := parseAmount(m[3])
		if err == nil {
			high = &h
		}
	}

	period := strings.ToLower(m[4])
	if period == "hour" || period == "hr" {
		low *= hoursPerYear
		if high != nil {
			*high *= hoursPerYear
		}
	} else if period == "" && low < 200 {
		// A bare small number with no period marker is too ambiguous to trust.
		return Salary{}
	}

	cur := "USD"
	return Salary{Min: &low, Max: high, Currency: &cur}
}

func parseAmount(s string) (float64, error) {
	s = strings.ReplaceAll(s, ",", "")
	// European-style thousands separators ("65.000") collapse too.
	if strings.Count(s, ".") == 1 {
		if i := strings.Index(s, "."); len(s)-i-1 == 3 {
			s = strings.Replace(s, ".", "", 1)
		}
	}
	return strconv.ParseFloat(s, 64)
}
