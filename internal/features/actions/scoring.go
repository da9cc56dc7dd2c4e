package actions

import (
	"math"
	"strings"
)

// KindnessPoints — очки доброты за каждое дело.
var KindnessPoints = map[string]float64{
	"feed_stray":        5,
	"water_bowl":        3,
	"rescue":            15,
	"vet_visit":         10,
	"adopt":             25,
	"shelter_volunteer": 8,
	"donate":            6,
	"report_cruelty":    7,
}

// ecoActivities — занятия, которые повышают eco-mind оценку.
var ecoActivities = map[string]struct{}{
	"walk":             {},
	"cycling":          {},
	"gardening":        {},
	"plant_tree":       {},
	"recycling":        {},
	"composting":       {},
	"nature_time":      {},
	"public_transport": {},
	"meditation":       {},
	"cleanup_drive":    {},
}

// ecoActivityBonus — сколько добавляет каждое эко-занятие.
const ecoActivityBonus = 2

// Coins считает награду: max(1, floor(|impact| * weight)).
// Любое принятое действие приносит минимум одну монету.
func Coins(impact, weight float64) int64 {
	c := math.Floor(math.Abs(impact) * weight)
	if math.IsNaN(c) || c < 1 {
		return 1
	}
	if c > math.MaxInt32 {
		return math.MaxInt32
	}
	return int64(c)
}

// EcoMindScore = настроение + бонус за каждое уникальное эко-занятие.
func EcoMindScore(mood int, activities []string) float64 {
	seen := make(map[string]struct{})
	for _, a := range activities {
		a = normalizeActivity(a)
		if _, ok := ecoActivities[a]; ok {
			seen[a] = struct{}{}
		}
	}
	return float64(mood + ecoActivityBonus*len(seen))
}

// KindnessScore — сумма очков доброты.
func KindnessScore(actions []string) float64 {
	var sum float64
	for _, a := range actions {
		sum += KindnessPoints[a]
	}
	return sum
}

func normalizeActivity(a string) string {
	a = strings.ToLower(strings.TrimSpace(a))
	return strings.ReplaceAll(a, " ", "_")
}
