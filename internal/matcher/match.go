package matcher

import (
	"strings"

	"farewatch/internal/constants"
	"farewatch/pkg/models"
)

type Options struct {
	// NotifyPer is constants.NotifyPerPreference (one match per matching
	// preference) or constants.NotifyPerUser (at most one match per user).
	NotifyPer           string
	RequireSameCurrency bool
}

// Match pairs a user with the preference that selected them.
type Match struct {
	User       models.User
	Preference models.AlertPreference
}

// FindMatches returns, in user then preference order, every preference that
// the event satisfies. It depends only on its arguments.
func FindMatches(event models.PriceEvent, users []models.User, opts Options) []Match {
	perUser := strings.EqualFold(opts.NotifyPer, constants.NotifyPerUser)

	var matches []Match
	for _, user := range users {
		for _, pref := range user.AlertPreferences {
			if !pref.Matches(event) {
				continue
			}
			if opts.RequireSameCurrency && !pref.SameCurrency(event) {
				continue
			}

			matches = append(matches, Match{User: user, Preference: pref})
			if perUser {
				break
			}
		}
	}
	return matches
}
