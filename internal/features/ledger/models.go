// Package ledger — модель данных начислений и атомарное обновление кошельков.
// models.go описывает записи действий, кошельки, очередь модерации,
// профили и недельные отчёты.
package ledger

import "time"

// Category — дискриминант записи действия.
type Category string

const (
	CategoryCarbon Category = "carbon"
	CategoryMood   Category = "mood"
	CategoryAnimal Category = "animal_welfare"
)

// Источник данных записи. Только api-записи пригодны для внешнего аудита.
const (
	SourceAPI  = "api"
	SourceMock = "mock"
)

// Log — запись одного действия пользователя.
// Закрытый набор вариантов: *CarbonLog, *MoodLog, *AnimalLog.
type Log interface {
	Category() Category
	base() *LogBase
}

// LogBase — общие поля всех вариантов.
type LogBase struct {
	ID          string    `json:"id"`
	Kind        Category  `json:"category"`
	UserID      string    `json:"userId"`
	Coins       int64     `json:"coins"`
	Source      string    `json:"source"`
	IsAuditable bool      `json:"isAuditable"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (b *LogBase) base() *LogBase { return b }

// BaseOf возвращает общие поля записи.
func BaseOf(l Log) *LogBase { return l.base() }

// CarbonLog — сэкономленный CO₂.
type CarbonLog struct {
	LogBase
	ActionType string  `json:"actionType"`
	Value      float64 `json:"value"`
	Location   string  `json:"location,omitempty"`
	Region     string  `json:"region,omitempty"`
	Factor     float64 `json:"factor"`
	CO2Saved   float64 `json:"co2Saved"` // кг
}

func (*CarbonLog) Category() Category { return CategoryCarbon }

// MoodLog — ежедневный чекин настроения.
type MoodLog struct {
	LogBase
	Mood         int      `json:"mood"`
	Activities   []string `json:"activities"`
	EcoMindScore float64  `json:"ecoMindScore"`
}

func (*MoodLog) Category() Category { return CategoryMood }

// AnimalLog — добрые дела для животных. Монеты начисляются только после модерации,
// Coins хранит сумму к начислению.
type AnimalLog struct {
	LogBase
	Actions       []string   `json:"actions"`
	KindnessScore float64    `json:"kindnessScore"`
	ModerationID  string     `json:"moderationId"`
	Verified      bool       `json:"verified"`
	Moderated     bool       `json:"moderated"`
	VerifiedAt    *time.Time `json:"verifiedAt,omitempty"`
	ProofPaths    []string   `json:"proofPaths"`
}

func (*AnimalLog) Category() Category { return CategoryAnimal }

// Wallet — кошелёк пользователя. Создаётся при первом начислении.
type Wallet struct {
	UserID         string    `json:"userId"`
	HealCoins      int64     `json:"healCoins"`
	INRBalance     float64   `json:"inrBalance"`
	DailyEarnLimit int64     `json:"dailyEarnLimit"`
	RedeemLimit    int64     `json:"redeemLimit"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// EntryKind — чем вызвано начисление.
type EntryKind string

const (
	EntryCarbon             EntryKind = "carbon"
	EntryMood               EntryKind = "mood"
	EntryModerationApproval EntryKind = "moderation_approval"
)

// LedgerEntry — одно начисление в кошелёк. Ровно одна запись на лог или заявку модерации.
type LedgerEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Amount    int64     `json:"amount"`
	Kind      EntryKind `json:"kind"`
	RefID     string    `json:"refId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ModerationStatus — состояние заявки. approved терминальный.
type ModerationStatus string

const (
	StatusPending  ModerationStatus = "pending"
	StatusApproved ModerationStatus = "approved"
)

// ModerationEntry — награда, удержанная до ручной проверки.
type ModerationEntry struct {
	ID           string           `json:"id"`
	Type         Category         `json:"type"`
	LogID        string           `json:"logId"`
	UserID       string           `json:"userId"`
	Status       ModerationStatus `json:"status"`
	CoinsToAward int64            `json:"coinsToAward"`
	ApprovedBy   string           `json:"approvedBy,omitempty"`
	ApprovedAt   *time.Time       `json:"approvedAt,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// Profile — школьная принадлежность и набор бейджей.
type Profile struct {
	UserID    string    `json:"userId"`
	SchoolID  string    `json:"schoolId"`
	ClassID   string    `json:"classId"`
	Section   string    `json:"section"`
	Badges    []string  `json:"badges"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// GroupKey — ключ группировки в отчётах по школе, например "10-A".
func (p *Profile) GroupKey() string {
	return p.ClassID + "-" + p.Section
}

// WeeklyInsight — недельная сводка пользователя. Перезаписывается при каждой генерации.
type WeeklyInsight struct {
	Key           string    `json:"key"`
	UserID        string    `json:"userId"`
	WeekStart     time.Time `json:"weekStart"`
	WeekEnd       time.Time `json:"weekEnd"`
	AvgMood       float64   `json:"avgMood"`
	AvgEcoMind    float64   `json:"avgEcoMind"`
	MoodCheckins  int       `json:"moodCheckins"`
	EcoActions    int       `json:"ecoActions"`
	TotalCO2Saved float64   `json:"totalCo2Saved"`
	Tone          string    `json:"tone"`
	Message       string    `json:"message"`
	CreatedAt     time.Time `json:"createdAt"`
}

// SchoolMood — чекин настроения вместе с классом автора.
type SchoolMood struct {
	UserID       string
	ClassID      string
	Section      string
	Mood         int
	EcoMindScore float64
	CreatedAt    time.Time
}
