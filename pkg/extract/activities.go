package extract

import (
	"regexp"
	"strings"
)

const confidenceActivity = 0.85

// Activity buckets, in the order their hits are reported.
const (
	CategorySports     = "sports"
	CategoryMedical    = "medical"
	CategorySchool     = "school"
	CategoryActivities = "activities"
	CategoryHousehold  = "household"
	CategorySocial     = "social"
)

type activityBucket struct {
	category string
	re       *regexp.Regexp
}

func bucket(category string, words ...string) activityBucket {
	return activityBucket{
		category: category,
		re:       regexp.MustCompile(`\b(` + strings.Join(words, "|") + `)\b`),
	}
}

var activityBuckets = []activityBucket{
	bucket(CategorySports,
		"soccer", "football", "basketball", "baseball", "softball", "hockey", "tennis",
		"swimming", "swim", "volleyball", "lacrosse", "gymnastics", "track", "practice",
		"game", "match", "tournament", "scrimmage", "karate"),
	bucket(CategoryMedical,
		"doctor", "dentist", "orthodontist", "pediatrician", "checkup", "check-up",
		"vaccination", "vaccine", "physical", "therapy", "prescription", "pharmacy",
		"clinic", "appointment"),
	bucket(CategorySchool,
		"school", "homework", "teacher", "class", "parent-teacher", "conference",
		"field trip", "permission slip", "report card", "exam", "test", "quiz",
		"project", "pta", "pickup", "drop-off", "drop off"),
	bucket(CategoryActivities,
		"piano", "guitar", "violin", "music", "dance", "ballet", "art", "drawing",
		"lesson", "lessons", "recital", "rehearsal", "scouts", "camp", "club", "tutoring"),
	bucket(CategoryHousehold,
		"groceries", "grocery", "shopping", "laundry", "dishes", "clean", "cleaning",
		"vacuum", "trash", "garbage", "recycling", "bills", "repair", "fix", "yard",
		"mow", "cook", "dinner", "lunch", "breakfast"),
	bucket(CategorySocial,
		"party", "birthday", "playdate", "sleepover", "dinner party", "bbq", "barbecue",
		"wedding", "visit", "friends", "family", "grandma", "grandpa", "reunion"),
}

func extractActivities(norm string) []ActivityEntity {
	var out []ActivityEntity
	for _, b := range activityBuckets {
		for _, m := range findAll(b.re, norm) {
			out = append(out, ActivityEntity{
				Activity:   m.groups[1],
				Category:   b.category,
				Raw:        m.text,
				Confidence: confidenceActivity,
				Source:     SourceDictionary,
			})
		}
	}
	return out
}
