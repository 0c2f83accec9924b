package resolver

import (
	"errors"
	"regexp"
	"strings"

	"github.com/mmeshcher/pizzaorder-system/internal/model"
)

// ErrUnparsableAddress возвращается, когда свободная форма адреса
// не поддаётся эвристическому разбору.
var ErrUnparsableAddress = errors.New("combined address cannot be parsed")

var zipRun = regexp.MustCompile(`[0-9]{5}`)

// ParseCombined разбирает адрес в свободной форме вида
// "123 Main St, Springfield, IL 62704", разрезая его по пятизначному
// индексу. Унаследованный разбор: при более чем одной запятой перед
// индексом город склеивается из второго и третьего фрагментов.
// Поведение сохранено для совместимости и корректным парсером адресов
// общего вида не является; результат — максимум приближение.
// Страна всегда USA, способ получения — доставка.
func ParseCombined(combined string) (model.Address, error) {
	zip := zipRun.FindString(combined)
	if zip == "" {
		return model.Address{}, ErrUnparsableAddress
	}

	prefix := zipRun.Split(combined, 2)[0]
	parts := strings.Split(prefix, ",")
	if len(parts) < 2 {
		return model.Address{}, ErrUnparsableAddress
	}

	city := strings.TrimSpace(parts[1])
	if len(parts) > 2 {
		city += strings.TrimRight(","+parts[2], " \t")
	}

	return model.Address{
		Street:     strings.TrimSpace(parts[0]),
		City:       city,
		PostalCode: zip,
		Country:    model.CountryUSA,
		Method:     model.MethodDelivery,
	}, nil
}
