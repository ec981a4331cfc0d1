package formula

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"www.velocidex.com/golang/tabular/types"
)

// Locale carries the syntax knobs that vary between regions: the
// decimal and grouping separators of numeric literals, the argument
// separator of function calls, and the postfix unit multipliers
// (suffix to scale factor).
type Locale struct {
	DecimalSeparator  rune
	GroupSeparator    rune
	ArgumentSeparator rune
	Units             map[string]float64
}

func DefaultLocale() Locale {
	return Locale{
		DecimalSeparator:  '.',
		GroupSeparator:    ',',
		ArgumentSeparator: ';',
		Units: map[string]float64{
			"%": 0.01,
		},
	}
}

// A continental European style locale, mostly useful in tests.
func EuropeanLocale() Locale {
	return Locale{
		DecimalSeparator:  ',',
		GroupSeparator:    '.',
		ArgumentSeparator: ';',
		Units: map[string]float64{
			"%": 0.01,
		},
	}
}

// unitNames returns the suffixes longest first so lexing never stops
// at a proper prefix of a longer suffix.
func (self Locale) unitNames() []string {
	names := make([]string, 0, len(self.Units))
	for name := range self.Units {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}

// cacheKey identifies a locale's parser in the parser cache.
func (self Locale) cacheKey() string {
	return string(self.DecimalSeparator) + string(self.GroupSeparator) +
		string(self.ArgumentSeparator) + strings.Join(self.unitNames(), "\x00")
}

// ParseNumber converts a numeric literal lexed under this locale.
// Grouping separators are stripped, the locale decimal separator
// becomes the machine one. A literal without a fraction or exponent
// becomes an Integer, everything else a Double.
func (self Locale) ParseNumber(text string) (types.Value, error) {
	cleaned := strings.Replace(text, string(self.GroupSeparator), "", -1)
	isDouble := false
	if strings.ContainsRune(cleaned, self.DecimalSeparator) {
		cleaned = strings.Replace(
			cleaned, string(self.DecimalSeparator), ".", 1)
		isDouble = true
	}
	if strings.ContainsAny(cleaned, "eE") {
		isDouble = true
	}

	if !isDouble {
		i, err := strconv.ParseInt(cleaned, 10, 64)
		if err == nil {
			return types.Int(i), nil
		}
		// Fall through for very large literals.
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return types.Invalid(), errors.Wrapf(err, "numeric literal %q", text)
	}
	return types.Double(f), nil
}
