package order

import "github.com/mmeshcher/pizzaorder-system/internal/gateway"

// Слоты двух последних ответов удалённой системы. Каждый шаг перезаписывает
// свой слот целиком, история ответов не накапливается.

// SetValidation сохраняет ответ шага проверки заказа.
func (o *Order) SetValidation(resp *gateway.StepResponse) {
	o.validation = resp
}

// Validation возвращает последний ответ шага проверки, nil до его выполнения.
func (o *Order) Validation() *gateway.StepResponse {
	return o.validation
}

// SetPricing сохраняет снимок ответа шага цены. Снимок нужен шагу
// размещения: к нему прикрепляется запись об оплате.
func (o *Order) SetPricing(resp *gateway.StepResponse) {
	o.pricing = resp
}

// Pricing возвращает кэшированный снимок цены, nil до шага цены.
func (o *Order) Pricing() *gateway.StepResponse {
	return o.pricing
}
