package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternRecognizerOrgs(t *testing.T) {
	r := NewPatternRecognizer()
	ents, err := r.Recognize(context.Background(),
		"High Desert Consultants is hiring for projects with the National Park Service and Northern Arizona University.")
	require.NoError(t, err)

	var orgs []string
	for _, e := range ents {
		if e.Label == LabelOrg {
			orgs = append(orgs, e.Text)
		}
	}
	assert.Contains(t, orgs, "High Desert Consultants")
	assert.Contains(t, orgs, "Northern Arizona University")
	assert.NotContains(t, orgs, "National Park Service and Northern Arizona University")
}

func TestPatternRecognizerPlaces(t *testing.T) {
	r := NewPatternRecognizer()
	ents, err := r.Recognize(context.Background(),
		"Fieldwork in the Coconino National Forest and across Yavapai County.")
	require.NoError(t, err)

	var places []string
	for _, e := range ents {
		if e.Label == LabelPlace {
			places = append(places, e.Text)
		}
	}
	assert.Contains(t, places, "Coconino National Forest")
	assert.Contains(t, places, "Yavapai County")
}

func TestPatternRecognizerDedupes(t *testing.T) {
	r := NewPatternRecognizer()
	ents, err := r.Recognize(context.Background(),
		"Acme Group projects. Acme Group is an equal opportunity employer.")
	require.NoError(t, err)

	count := 0
	for _, e := range ents {
		if e.Text == "Acme Group" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestPatternRecognizerEmpty(t *testing.T) {
	r := NewPatternRecognizer()
	ents, err := r.Recognize(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, ents)

	ents, err = r.Recognize(context.Background(), "no capitalized spans of interest here")
	require.NoError(t, err)
	assert.Empty(t, ents)
}

func TestTopEntities(t *testing.T) {
	ents := []Entity{
		{Text: "Acme Group", Label: LabelOrg},
		{Text: "Acme Group", Label: LabelOrg},
		{Text: "Pima County", Label: LabelPlace},
		{Text: "Desert Museum", Label: LabelOrg},
		{Text: "Pima County", Label: LabelPlace},
		{Text: "Pima County", Label: LabelPlace},
	}
	top := TopEntities(ents, 2)
	assert.Equal(t, []string{"Pima County", "Acme Group"}, top)

	// Ties break alphabetically for stable output.
	top = TopEntities([]Entity{{Text: "B Corp"}, {Text: "A Corp"}}, 5)
	assert.Equal(t, []string{"A Corp", "B Corp"}, top)

	assert.Empty(t, TopEntities(nil, 3))
}

func TestSentiment(t *testing.T) {
	assert.Zero(t, Sentiment(""))
	assert.Zero(t, Sentiment("the position involves survey and mapping"))

	pos := Sentiment("Excellent benefits and a supportive, collaborative team. A rewarding opportunity.")
	assert.Greater(t, pos, 0.0)
	assert.LessOrEqual(t, pos, 1.0)

	neg := Sentiment("Strenuous work in hazardous and harsh conditions with significant stress.")
	assert.Less(t, neg, 0.0)
	assert.GreaterOrEqual(t, neg, -1.0)

	// Negation flips valence even past filler words, but not indefinitely.
	assert.Less(t, Sentiment("not a great fit"), Sentiment("a great fit"))
	assert.Less(t, Sentiment("not a very great fit"), 0.0)
	assert.Greater(t, Sentiment("not only will you do excellent work"), 0.0)
}

func TestSentimentStable(t *testing.T) {
	text := "Great team, excellent benefits, demanding fieldwork."
	first := Sentiment(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Sentiment(text))
	}
}
