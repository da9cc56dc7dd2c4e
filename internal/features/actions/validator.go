package actions

import (
	"math"
	"strings"

	"google.golang.org/grpc/codes"

	"healcoins.app/ledger/internal/common"
)

// Потолки значений по типу эко-действия.
var carbonCeilings = map[string]struct {
	max  float64
	unit string
}{
	"transport": {2000, "km"},
	"energy":    {5000, "kWh"},
	"waste":     {10000, "kg"},
	"water":     {1_000_000, "L"},
}

const (
	maxLocationLen   = 120
	maxActivities    = 20
	maxActivityLen   = 64
	maxAnimalActions = 10
)

// ValidateIdentity проверяет, что вызывающий действует от своего имени.
func ValidateIdentity(callerID, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return common.ErrUserIDRequired
	}
	if callerID != userID {
		return common.ErrIdentityMismatch
	}
	return nil
}

// ValidateCarbon проверяет запрос эко-действия до любых обращений к хранилищу.
func ValidateCarbon(callerID string, in CarbonInput) error {
	if err := ValidateIdentity(callerID, in.UserID); err != nil {
		return err
	}
	ceiling, ok := carbonCeilings[in.ActionType]
	if !ok {
		return common.ErrUnknownActionType
	}
	if math.IsNaN(in.Value) || math.IsInf(in.Value, 0) || in.Value <= 0 {
		return common.ErrInvalidValue
	}
	if in.Value > ceiling.max {
		return common.Errorf(codes.InvalidArgument, "%s value must not exceed %g %s", in.ActionType, ceiling.max, ceiling.unit)
	}
	if len([]rune(in.Location)) > maxLocationLen {
		return common.Errorf(codes.InvalidArgument, "location must be at most %d characters", maxLocationLen)
	}
	return nil
}

// ValidateMood проверяет чекин настроения.
func ValidateMood(callerID string, in MoodInput) error {
	if err := ValidateIdentity(callerID, in.UserID); err != nil {
		return err
	}
	if in.Mood < 1 || in.Mood > 10 {
		return common.ErrMoodOutOfRange
	}
	if len(in.Activities) > maxActivities {
		return common.Errorf(codes.InvalidArgument, "at most %d activities allowed", maxActivities)
	}
	for _, a := range in.Activities {
		a = strings.TrimSpace(a)
		if a == "" || len([]rune(a)) > maxActivityLen {
			return common.Errorf(codes.InvalidArgument, "activities must be non-empty and at most %d characters", maxActivityLen)
		}
	}
	return nil
}

// ValidateAnimal проверяет список добрых дел.
func ValidateAnimal(callerID string, in AnimalInput) error {
	if err := ValidateIdentity(callerID, in.UserID); err != nil {
		return err
	}
	if len(in.Actions) == 0 {
		return common.ErrNoAnimalActions
	}
	if len(in.Actions) > maxAnimalActions {
		return common.Errorf(codes.InvalidArgument, "at most %d actions allowed", maxAnimalActions)
	}
	seen := make(map[string]struct{}, len(in.Actions))
	for _, a := range in.Actions {
		if _, ok := KindnessPoints[a]; !ok {
			return common.Errorf(codes.InvalidArgument, "unknown animal action %q", a)
		}
		if _, dup := seen[a]; dup {
			return common.Errorf(codes.InvalidArgument, "duplicate animal action %q", a)
		}
		seen[a] = struct{}{}
	}
	return nil
}
