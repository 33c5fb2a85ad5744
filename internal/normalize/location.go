package normalize

import (
	"regexp"
	"strings"
)

// stateNames maps full US state names (lowercased) to postal codes.
var stateNames = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"florida": "FL", "georgia": "GA", "hawaii": "HI", "idaho": "ID",
	"illinois": "IL", "indiana": "IN", "iowa": "IA", "kansas": "KS",
	"kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS",
	"missouri": "MO", "montana": "MT", "nebraska": "NE", "nevada": "NV",
	"new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM", "new york": "NY",
	"north carolina": "NC", "north dakota": "ND", "ohio": "OH", "oklahoma": "OK",
	"oregon": "OR", "pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC",
	"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT",
	"vermont": "VT", "virginia": "VA", "washington": "WA", "west virginia": "WV",
	"wisconsin": "WI", "wyoming": "WY", "district of columbia": "DC",
}

var statePostal = func() map[string]bool {
	m := make(map[string]bool, len(stateNames))
	for _, code := range stateNames {
		m[code] = true
	}
	return m
}()

var zipSuffixRe = regexp.MustCompile(`\s+\d{5}(?:-\d{4})?$`)

// ParseLocation best-effort splits free location text into city and state.
// Recognized shapes: "City, ST", "City, State Name", "City, ST 12345",
// "City, ST, USA". Anything else leaves both nil; the raw text is retained
// on the posting either way.
func ParseLocation(raw string) (city, state *string) {
	s := CleanText(raw)
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	// Drop a trailing country token.
	if n := len(parts); n > 1 {
		last := strings.ToLower(parts[n-1])
		if last == "usa" || last == "us" || last == "united states" {
			parts = parts[:n-1]
		}
	}
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, nil
	}

	st := zipSuffixRe.ReplaceAllString(parts[1], "")
	st = strings.TrimSpace(st)

	var code string
	if up := strings.ToUpper(st); len(st) == 2 && statePostal[up] {
		code = up
	} else if c, ok := stateNames[strings.ToLower(st)]; ok {
		code = c
	} else {
		return nil, nil
	}

	c := parts[0]
	return &c, &code
}
