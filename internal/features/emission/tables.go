// Package emission переводит тип действия и место в коэффициент выбросов.
// tables.go — локальные таблицы коэффициентов (fallback), их загрузка из YAML
// и определение региона по свободному тексту.
package emission

import (
	"fmt"
	"strings"
	"unicode"

	uberconfig "go.uber.org/config"
)

// Tables — локальные коэффициенты. Передаются в Resolver как данные конфигурации.
type Tables struct {
	// Factors — кг CO₂ на единицу действия (км, кг, литр) по типу действия
	Factors map[string]float64 `yaml:"factors"`
	// GridIntensity — кг CO₂ на кВт·ч по двухбуквенному коду региона
	GridIntensity map[string]float64 `yaml:"gridIntensity"`
	// RegionNames — названия штатов и городов (в нижнем регистре) → код региона
	RegionNames map[string]string `yaml:"regionNames"`
	// NationalAverage — интенсивность сети, если регион не распознан
	NationalAverage float64 `yaml:"nationalAverage"`
	NationalCode    string  `yaml:"nationalCode"`
}

// DefaultTables — встроенные коэффициенты для Индии.
func DefaultTables() Tables {
	return Tables{
		Factors: map[string]float64{
			"transport": 0.192,    // легковой автомобиль, на км
			"waste":     0.45,     // переработка, на кг
			"water":     0.000344, // очистка и подача, на литр
		},
		GridIntensity: map[string]float64{
			"AP": 0.76, "AS": 0.65, "BR": 0.95, "CG": 0.99, "DL": 0.70,
			"GA": 0.70, "GJ": 0.86, "HP": 0.18, "HR": 0.82, "JH": 1.02,
			"KA": 0.58, "KL": 0.38, "MH": 0.79, "MP": 0.91, "OR": 0.98,
			"PB": 0.74, "RJ": 0.89, "TG": 0.80, "TN": 0.62, "UK": 0.33,
			"UP": 0.93, "WB": 0.96,
		},
		RegionNames: map[string]string{
			"andhra pradesh": "AP", "assam": "AS", "bihar": "BR", "chhattisgarh": "CG",
			"delhi": "DL", "new delhi": "DL", "goa": "GA", "gujarat": "GJ", "ahmedabad": "GJ",
			"himachal pradesh": "HP", "haryana": "HR", "gurugram": "HR", "jharkhand": "JH",
			"karnataka": "KA", "bengaluru": "KA", "bangalore": "KA", "kerala": "KL", "kochi": "KL",
			"maharashtra": "MH", "mumbai": "MH", "pune": "MH", "madhya pradesh": "MP", "bhopal": "MP",
			"odisha": "OR", "punjab": "PB", "rajasthan": "RJ", "jaipur": "RJ",
			"telangana": "TG", "hyderabad": "TG", "tamil nadu": "TN", "chennai": "TN",
			"uttarakhand": "UK", "uttar pradesh": "UP", "lucknow": "UP",
			"west bengal": "WB", "kolkata": "WB",
		},
		NationalAverage: 0.82,
		NationalCode:    "IN",
	}
}

// LoadTables читает таблицы из YAML-файла. Разделы, отсутствующие в файле,
// берутся из DefaultTables.
func LoadTables(path string) (Tables, error) {
	provider, err := uberconfig.NewYAML(uberconfig.File(path))
	if err != nil {
		return Tables{}, fmt.Errorf("ошибка чтения таблиц коэффициентов %s: %w", path, err)
	}

	var loaded Tables
	if err := provider.Get(uberconfig.Root).Populate(&loaded); err != nil {
		return Tables{}, fmt.Errorf("ошибка разбора таблиц коэффициентов: %w", err)
	}

	t := DefaultTables()
	if len(loaded.Factors) > 0 {
		t.Factors = loaded.Factors
	}
	if len(loaded.GridIntensity) > 0 {
		t.GridIntensity = upperKeys(loaded.GridIntensity)
	}
	if len(loaded.RegionNames) > 0 {
		t.RegionNames = make(map[string]string, len(loaded.RegionNames))
		for name, code := range loaded.RegionNames {
			t.RegionNames[strings.ToLower(name)] = strings.ToUpper(code)
		}
	}
	if loaded.NationalAverage > 0 {
		t.NationalAverage = loaded.NationalAverage
	}
	if loaded.NationalCode != "" {
		t.NationalCode = strings.ToUpper(loaded.NationalCode)
	}
	return t, nil
}

// regionNameMaxWords — самое длинное название региона в словах ("andhra pradesh").
const regionNameMaxWords = 3

// RegionFor извлекает код региона из строки вроде "Pune, Maharashtra",
// "Indore, Madhya Pradesh 452001" или "Andheri MH 400053".
// Части проверяются справа налево: сначала целиком по названиям, затем по
// словам с конца. Цифры отбрасываются, на каждой позиции сначала ищется
// самое длинное название из нескольких слов, потом двухбуквенный код.
// Если ничего не найдено — национальный код.
func (t Tables) RegionFor(location string) string {
	parts := strings.Split(location, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		part := strings.ToLower(strings.TrimSpace(parts[i]))
		if part == "" {
			continue
		}
		if code, ok := t.RegionNames[part]; ok {
			return code
		}
		words := strings.FieldsFunc(part, func(r rune) bool {
			return !unicode.IsLetter(r)
		})
		for j := len(words) - 1; j >= 0; j-- {
			if code, ok := t.regionEndingAt(words, j); ok {
				return code
			}
			w := strings.ToUpper(words[j])
			if len(w) == 2 {
				if _, ok := t.GridIntensity[w]; ok {
					return w
				}
			}
		}
	}
	return t.NationalCode
}

// regionEndingAt ищет название, последнее слово которого — words[end].
func (t Tables) regionEndingAt(words []string, end int) (string, bool) {
	for n := min(regionNameMaxWords, end+1); n >= 1; n-- {
		name := strings.Join(words[end-n+1:end+1], " ")
		if code, ok := t.RegionNames[name]; ok {
			return code, true
		}
	}
	return "", false
}

// Fallback возвращает локальный коэффициент. Для энергии — интенсивность сети региона.
func (t Tables) Fallback(actionType, region string) float64 {
	if actionType == "energy" {
		if v, ok := t.GridIntensity[region]; ok {
			return v
		}
		return t.NationalAverage
	}
	return t.Factors[actionType]
}

func upperKeys(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[strings.ToUpper(k)] = v
	}
	return out
}
