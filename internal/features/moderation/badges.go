package moderation

// Badge — награда за количество одобренных добрых дел.
type Badge struct {
	Name      string
	Threshold int
}

// Badges упорядочены по порогу.
var Badges = []Badge{
	{Name: "Animal Ally", Threshold: 5},
	{Name: "Kindness Hero", Threshold: 20},
}

// EarnedBadges возвращает все бейджи, заработанные при approved одобренных заявках.
func EarnedBadges(approved int) []string {
	var out []string
	for _, b := range Badges {
		if approved >= b.Threshold {
			out = append(out, b.Name)
		}
	}
	return out
}
