package actions

import (
	"context"
	"strings"

	"healcoins.app/ledger/internal/common"
	"healcoins.app/ledger/internal/config"
	"healcoins.app/ledger/internal/events"
	"healcoins.app/ledger/internal/features/emission"
	"healcoins.app/ledger/internal/features/ledger"
)

// FactorResolver — источник коэффициентов выбросов.
type FactorResolver interface {
	Resolve(ctx context.Context, actionType, location string) emission.Factor
}

// ActivitySink принимает события активности. Ошибки не возвращает.
type ActivitySink interface {
	Activity(ctx context.Context, eventType, userID string, payload any)
}

// PendingNotifier сообщает модераторам о новой заявке.
type PendingNotifier interface {
	NotifyPending(ctx context.Context, entry *ledger.ModerationEntry, log *ledger.AnimalLog)
}

// Service записывает действия и начисляет монеты.
type Service struct {
	ledger   *ledger.Ledger
	resolver FactorResolver
	activity ActivitySink
	notifier PendingNotifier
	cfg      *config.Config
}

// NewService создаёт сервис действий.
func NewService(l *ledger.Ledger, resolver FactorResolver, activity ActivitySink, notifier PendingNotifier, cfg *config.Config) *Service {
	return &Service{ledger: l, resolver: resolver, activity: activity, notifier: notifier, cfg: cfg}
}

// LogCarbonAction: валидация → коэффициент → транзакция (кулдаун 5 мин, дневной лимит, лог, кошелёк).
func (s *Service) LogCarbonAction(ctx context.Context, callerID string, in CarbonInput) (*CarbonResult, error) {
	in.Location = strings.TrimSpace(in.Location)
	if err := ValidateCarbon(callerID, in); err != nil {
		return nil, err
	}

	factor := s.resolver.Resolve(ctx, in.ActionType, in.Location)
	co2 := in.Value * factor.Value
	coins := Coins(co2, s.cfg.CoinsPerKgCO2)

	entry := &ledger.CarbonLog{
		LogBase: ledger.LogBase{
			Coins:       coins,
			Source:      factor.Source,
			IsAuditable: factor.Auditable(),
		},
		ActionType: in.ActionType,
		Value:      in.Value,
		Location:   in.Location,
		Region:     factor.Region,
		Factor:     factor.Value,
		CO2Saved:   co2,
	}

	res, err := s.ledger.Credit(ctx, ledger.CreditRequest{
		UserID: in.UserID,
		Amount: coins,
		Kind:   ledger.EntryCarbon,
		Log:    entry,
		Guards: []ledger.Guard{
			s.ledger.Cooldown(ledger.CategoryCarbon, s.cfg.CarbonCooldown),
			s.ledger.DailyCap(),
		},
	})
	if err != nil {
		return nil, err
	}

	s.activity.Activity(ctx, events.TypeCarbonLogged, in.UserID, map[string]any{
		"logId":      entry.ID,
		"actionType": entry.ActionType,
		"co2Saved":   common.Round2(co2),
		"coins":      coins,
		"source":     entry.Source,
	})

	return &CarbonResult{
		CoinsAwarded: coins,
		CO2Saved:     common.Round2(co2),
		FactorSource: factor.Source,
		IsAuditable:  entry.IsAuditable,
		Log:          entry,
		Wallet:       res.Wallet,
	}, nil
}

// LogMoodCheckin: один чекин в календарный день.
func (s *Service) LogMoodCheckin(ctx context.Context, callerID string, in MoodInput) (*MoodResult, error) {
	if err := ValidateMood(callerID, in); err != nil {
		return nil, err
	}

	activities := make([]string, 0, len(in.Activities))
	for _, a := range in.Activities {
		activities = append(activities, strings.TrimSpace(a))
	}
	score := EcoMindScore(in.Mood, activities)
	coins := Coins(score, s.cfg.CoinsPerEcoMindPoint)

	entry := &ledger.MoodLog{
		LogBase: ledger.LogBase{
			Coins:       coins,
			Source:      ledger.SourceAPI,
			IsAuditable: true,
		},
		Mood:         in.Mood,
		Activities:   activities,
		EcoMindScore: score,
	}

	res, err := s.ledger.Credit(ctx, ledger.CreditRequest{
		UserID: in.UserID,
		Amount: coins,
		Kind:   ledger.EntryMood,
		Log:    entry,
		Guards: []ledger.Guard{
			s.ledger.OncePerDay(ledger.CategoryMood, common.ErrMoodAlreadyLogged),
			s.ledger.DailyCap(),
		},
	})
	if err != nil {
		return nil, err
	}

	s.activity.Activity(ctx, events.TypeMoodLogged, in.UserID, map[string]any{
		"logId":        entry.ID,
		"mood":         entry.Mood,
		"ecoMindScore": score,
		"coins":        coins,
	})

	return &MoodResult{
		CoinsAwarded: coins,
		EcoMindScore: score,
		Log:          entry,
		Wallet:       res.Wallet,
	}, nil
}

// LogAnimalAction записывает добрые дела и ставит награду в очередь модерации.
// Кошелёк не меняется до одобрения.
func (s *Service) LogAnimalAction(ctx context.Context, callerID string, in AnimalInput) (*AnimalResult, error) {
	if err := ValidateAnimal(callerID, in); err != nil {
		return nil, err
	}

	kindness := KindnessScore(in.Actions)
	coinsToAward := Coins(kindness, s.cfg.CoinsPerKindnessPoint)

	entry := &ledger.AnimalLog{
		LogBase: ledger.LogBase{
			Coins:       coinsToAward,
			Source:      ledger.SourceAPI,
			IsAuditable: true,
		},
		Actions:       append([]string(nil), in.Actions...),
		KindnessScore: kindness,
		ProofPaths:    []string{},
	}
	pending := &ledger.ModerationEntry{CoinsToAward: coinsToAward}

	_, err := s.ledger.Credit(ctx, ledger.CreditRequest{
		UserID:     in.UserID,
		Log:        entry,
		Moderation: pending,
		Guards: []ledger.Guard{
			s.ledger.Cooldown(ledger.CategoryAnimal, s.cfg.AnimalCooldown),
		},
	})
	if err != nil {
		return nil, err
	}

	s.activity.Activity(ctx, events.TypeAnimalLogged, in.UserID, map[string]any{
		"logId":        entry.ID,
		"moderationId": pending.ID,
		"actions":      entry.Actions,
		"coinsToAward": coinsToAward,
	})
	s.notifier.NotifyPending(ctx, pending, entry)

	return &AnimalResult{
		CoinsAwarded: 0,
		Status:       pending.Status,
		ModerationID: pending.ID,
		CoinsToAward: coinsToAward,
		Log:          entry,
	}, nil
}
