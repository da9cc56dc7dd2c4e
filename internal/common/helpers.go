// Package common содержит общие утилиты, используемые во всём проекте:
// работа с часовым поясом, границы дня и недели, округление.
package common

import (
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// DateLayout — формат дат в API и в ключах недельных отчётов.
const DateLayout = "2006-01-02"

// LoadLocation загружает часовой пояс сервиса.
// Если tzdata недоступна — используем фиксированный IST (UTC+5:30).
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.WithError(err).Warnf("Не удалось загрузить %s, используем UTC+5:30", name)
		return time.FixedZone("IST", 5*60*60+30*60)
	}
	return loc
}

// StartOfDay возвращает полночь того же календарного дня в loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// StartOfWeek возвращает понедельник 00:00 недели, в которую попадает t.
//
// Пример (среда 2026-10-14 15:00) → понедельник 2026-10-12 00:00.
// Воскресенье относится к неделе, начавшейся шесть дней назад.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	day := StartOfDay(t, loc)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

// ParseDate разбирает дату YYYY-MM-DD в часовом поясе loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, ErrInvalidWeekStart
	}
	return t, nil
}

// Round2 округляет до двух знаков после запятой (half away from zero).
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// Average возвращает среднее, округлённое до двух знаков. Для пустого набора — 0.
func Average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	f, _ := sum.Div(decimal.NewFromInt(int64(len(values)))).Round(2).Float64()
	return f
}

// Sum складывает значения без накопления ошибки float и округляет до двух знаков.
func Sum(values []float64) float64 {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	f, _ := sum.Round(2).Float64()
	return f
}
