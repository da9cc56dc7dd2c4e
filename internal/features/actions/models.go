// Package actions — логирование действий пользователя: эко-действия,
// чекины настроения и добрые дела для животных.
// models.go описывает входные данные и ответы операций.
package actions

import "healcoins.app/ledger/internal/features/ledger"

// CarbonInput — запрос logCarbonAction.
type CarbonInput struct {
	UserID     string  `json:"userId"`
	ActionType string  `json:"actionType"`
	Value      float64 `json:"value"`
	Location   string  `json:"location,omitempty"`
}

// MoodInput — запрос logMoodCheckin.
type MoodInput struct {
	UserID     string   `json:"userId"`
	Mood       int      `json:"mood"`
	Activities []string `json:"activities,omitempty"`
}

// AnimalInput — запрос logAnimalAction.
type AnimalInput struct {
	UserID  string   `json:"userId"`
	Actions []string `json:"actions"`
}

// CarbonResult — ответ logCarbonAction.
type CarbonResult struct {
	CoinsAwarded int64             `json:"coinsAwarded"`
	CO2Saved     float64           `json:"co2Saved"`
	FactorSource string            `json:"factorSource"`
	IsAuditable  bool              `json:"isAuditable"`
	Log          *ledger.CarbonLog `json:"log"`
	Wallet       *ledger.Wallet    `json:"wallet"`
}

// MoodResult — ответ logMoodCheckin.
type MoodResult struct {
	CoinsAwarded int64           `json:"coinsAwarded"`
	EcoMindScore float64         `json:"ecoMindScore"`
	Log          *ledger.MoodLog `json:"log"`
	Wallet       *ledger.Wallet  `json:"wallet"`
}

// AnimalResult — ответ logAnimalAction. Монеты начисляются после модерации.
type AnimalResult struct {
	CoinsAwarded int64                   `json:"coinsAwarded"`
	Status       ledger.ModerationStatus `json:"status"`
	ModerationID string                  `json:"moderationId"`
	CoinsToAward int64                   `json:"coinsToAward"`
	Log          *ledger.AnimalLog       `json:"log"`
}
