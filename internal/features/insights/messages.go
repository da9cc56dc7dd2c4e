package insights

// Тон недельной сводки.
const (
	ToneBoost   = "boost"
	ToneSupport = "support"
)

// Пороги тона boost.
const (
	boostMoodThreshold       = 7
	boostEcoActionsThreshold = 3
)

var messagePools = map[string][]string{
	ToneBoost: {
		"Amazing week! Your actions are making a real difference for the planet.",
		"You're on a roll. Keep that green energy going!",
		"Great balance this week: a happy mind and a healthier planet.",
		"Your eco habits are inspiring. Share one with a friend this week!",
	},
	ToneSupport: {
		"Every small step counts. Try a short walk outside this week.",
		"Tough weeks happen. A few minutes in nature can lift your mood.",
		"Start small: switch off one unused light today and notice the win.",
		"You're not alone. Check in with a friend and plan one green action together.",
	},
}

// toneFor выбирает пул сообщений по настроению и числу эко-действий.
func toneFor(avgMood float64, ecoActions int) string {
	if avgMood >= boostMoodThreshold || ecoActions >= boostEcoActionsThreshold {
		return ToneBoost
	}
	return ToneSupport
}
