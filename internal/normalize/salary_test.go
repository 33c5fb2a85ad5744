package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSalaryRange(t *testing.T) {
	s := ExtractSalary("Compensation: $65,000 - $80,000 per year plus benefits.")
	require.NotNil(t, s.Min)
	require.NotNil(t, s.Max)
	require.NotNil(t, s.Currency)
	assert.InDelta(t, 65000, *s.Min, 0.01)
	assert.InDelta(t, 80000, *s.Max, 0.01)
	assert.Equal(t, "USD", *s.Currency)
}

func TestExtractSalarySingle(t *testing.T) {
	s := ExtractSalary("Starting salary USD 52,500 per annum.")
	require.NotNil(t, s.Min)
	assert.InDelta(t, 52500, *s.Min, 0.01)
	assert.Nil(t, s.Max)
}

func TestExtractSalaryHourlyAnnualized(t *testing.T) {
	s := ExtractSalary("Pay rate is $25 per hour, 40 hrs/week.")
	require.NotNil(t, s.Min)
	assert.InDelta(t, 25*2080, *s.Min, 0.01)
}

func TestExtractSalaryNoMatch(t *testing.T) {
	for _, text := range []string{
		"",
		"Competitive salary commensurate with experience.",
		"Join our team of 50 archaeologists working on 12 projects.",
	} {
		s := ExtractSalary(text)
		assert.Nil(t, s.Min, "text: %q", text)
		assert.Nil(t, s.Max, "text: %q", text)
		assert.Nil(t, s.Currency, "text: %q", text)
	}
}

func TestExtractSalaryAmbiguousSmallNumber(t *testing.T) {
	// "$40" with no period marker is too ambiguous to record.
	s := ExtractSalary("Submit a $40 application fee.")
	assert.Nil(t, s.Min)
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantCity  string
		wantState string
	}{
		{"city comma code", "Tucson, AZ", "Tucson", "AZ"},
		{"lowercase code", "tucson, az", "tucson", "AZ"},
		{"full state name", "Sacramento, California", "Sacramento", "CA"},
		{"zip suffix", "Reno, NV 89501", "Reno", "NV"},
		{"trailing country", "Santa Fe, NM, USA", "Santa Fe", "NM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			city, state := ParseLocation(tt.in)
			require.NotNil(t, city)
			require.NotNil(t, state)
			assert.Equal(t, tt.wantCity, *city)
			assert.Equal(t, tt.wantState, *state)
		})
	}
}

func TestParseLocationUnrecognized(t *testing.T) {
	for _, in := range []string{
		"",
		"Remote",
		"Multiple locations across the Southwest",
		"Lyon, France",
	} {
		city, state := ParseLocation(in)
		assert.Nil(t, city, "input: %q", in)
		assert.Nil(t, state, "input: %q", in)
	}
}
