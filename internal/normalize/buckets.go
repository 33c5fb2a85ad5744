package normalize

import (
	"strings"

	"github.com/charm-heritage/market-cli/internal/model"
)

// BucketJobType assigns the employment-arrangement bucket from title and
// description keywords. First confident match wins; order runs from the most
// specific arrangement to the most common.
func BucketJobType(title, description string) model.JobType {
	text := strings.ToLower(title + " " + description)
	switch {
	case containsAny(text, "intern ", "internship"):
		return model.JobTypeInternship
	case containsAny(text, "seasonal", "field season"):
		return model.JobTypeSeasonal
	case containsAny(text, "temporary", "temp position", "short-term", "short term"):
		return model.JobTypeTemporary
	case containsAny(text, "contract", "contractor", "on-call", "on call", "per diem"):
		return model.JobTypeContract
	case containsAny(text, "part-time", "part time"):
		return model.JobTypePartTime
	case containsAny(text, "full-time", "full time", "permanent"):
		return model.JobTypeFullTime
	}
	return model.JobTypeUnknown
}

// BucketSeniority assigns the experience-level bucket from the title, falling
// back to description phrases about required experience.
func BucketSeniority(title, description string) model.Seniority {
	t := strings.ToLower(title)
	switch {
	case containsAny(t, "principal", "director", "chief", "head of"):
		return model.SeniorityPrincipal
	case containsAny(t, "senior", "sr.", "sr ", "lead ", "manager", "supervisor"):
		return model.SenioritySenior
	case containsAny(t, "junior", "jr.", "jr ", "entry", "assistant", "technician", "tech ", "aide", "intern"):
		return model.SeniorityEntry
	case containsAny(t, "mid-level", "mid level", "associate", "specialist", "coordinator"):
		return model.SeniorityMid
	}

	d := strings.ToLower(description)
	switch {
	case containsAny(d, "10+ years", "ten years", "extensive experience"):
		return model.SenioritySenior
	case containsAny(d, "no experience required", "entry-level", "entry level", "0-2 years"):
		return model.SeniorityEntry
	case containsAny(d, "3-5 years", "3+ years", "5+ years"):
		return model.SeniorityMid
	}
	return model.SeniorityUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
