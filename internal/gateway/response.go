package gateway

import "encoding/json"

// StepResponse описывает ответ удалённого API на шаг validate/price/place.
// Поле Order хранится в исходном виде: удалённая система возвращает в нём
// поля, которые клиент не моделирует, а шаг размещения обязан отправить
// этот снимок обратно без потерь.
type StepResponse struct {
	Status int             `json:"Status"`
	Order  json.RawMessage `json:"Order"`
}

// Rejected сообщает, считается ли ответ отрицательным.
// Отрицательным признаётся ровно значение Status == -1.
func (r *StepResponse) Rejected() bool {
	return r == nil || r.Status == StatusSentinel
}

type orderAmounts struct {
	Amounts struct {
		Payment  float64 `json:"Payment"`
		Customer float64 `json:"Customer"`
	} `json:"Amounts"`
}

// PaymentAmount извлекает сумму к оплате из снимка Order.
func (r *StepResponse) PaymentAmount() (float64, bool) {
	if r == nil || len(r.Order) == 0 {
		return 0, false
	}
	var parsed orderAmounts
	if err := json.Unmarshal(r.Order, &parsed); err != nil {
		return 0, false
	}
	return parsed.Amounts.Payment, true
}

type orderStatusItems struct {
	StatusItems []struct {
		Code string `json:"Code"`
	} `json:"StatusItems"`
}

// RejectReason извлекает человекочитаемый код причины отказа из снимка Order.
// Код последнего элемента StatusItems достоверен только когда элементов
// больше двух; в остальных случаях причина недоступна и ok равен false.
func (r *StepResponse) RejectReason() (string, bool) {
	if r == nil || len(r.Order) == 0 {
		return "", false
	}
	var parsed orderStatusItems
	if err := json.Unmarshal(r.Order, &parsed); err != nil {
		return "", false
	}
	if len(parsed.StatusItems) <= 2 {
		return "", false
	}
	return parsed.StatusItems[len(parsed.StatusItems)-1].Code, true
}
