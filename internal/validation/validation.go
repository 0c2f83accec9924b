// Package validation содержит функции валидации входных данных.
package validation

import "unicode"

// IsValidPhone проверяет номер телефона клиента: ровно десять цифр,
// как того требует индекс трекинга удалённого API.
func IsValidPhone(phone string) bool {
	if len(phone) != 10 {
		return false
	}
	for _, ch := range phone {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}

// IsValidQuantity проверяет количество для позиции корзины.
func IsValidQuantity(quantity int) bool {
	return quantity >= 1 && quantity <= 25
}
