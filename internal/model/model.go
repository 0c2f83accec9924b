// Package model содержит доменные сущности клиента службы заказа пиццы.
package model

// Country обозначает рынок, в котором работает удалённый API.
type Country string

const (
	CountryUSA    Country = "USA"
	CountryCanada Country = "CANADA"
)

// FulfillmentMethod описывает способ получения заказа.
type FulfillmentMethod string

const (
	MethodDelivery FulfillmentMethod = "Delivery"
	MethodTakeout  FulfillmentMethod = "Takeout"
)

// Address представляет почтовый адрес клиента вместе со способом получения.
// Страна определяется по формату почтового индекса и фиксируется при создании.
type Address struct {
	Street     string
	City       string
	Region     string
	PostalCode string
	Country    Country
	Method     FulfillmentMethod
}

// Customer представляет неизменяемые данные клиента, которыми подписывается заказ.
type Customer struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   Address
}

// ServiceHours содержит флаги доступности способов получения для точки выдачи.
// Ключи ответа локатора совпадают с именами способов получения.
type ServiceHours struct {
	Delivery bool `json:"Delivery"`
	Takeout  bool `json:"Takeout"`
}

// CanFulfill сообщает, открыта ли точка для указанного способа получения.
func (s ServiceHours) CanFulfill(method FulfillmentMethod) bool {
	if method == MethodTakeout {
		return s.Takeout
	}
	return s.Delivery
}

// Location описывает найденную точку выдачи. После резолюции не изменяется.
type Location struct {
	StoreID            string       `json:"StoreID"`
	IsOnlineNow        bool         `json:"IsOnlineNow"`
	ServiceIsOpen      ServiceHours `json:"ServiceIsOpen"`
	AddressDescription string       `json:"AddressDescription"`

	Country Country `json:"-"`
}

// IsOpenFor сообщает, принимает ли точка заказы указанным способом прямо сейчас.
func (l *Location) IsOpenFor(method FulfillmentMethod) bool {
	return l.IsOnlineNow && l.ServiceIsOpen.CanFulfill(method)
}

// PaymentType описывает выбранный способ оплаты заказа.
type PaymentType int

const (
	PaymentCash PaymentType = iota
	PaymentDebit
	PaymentCredit
	// PaymentInvalid — сентинел для нераспознанного способа оплаты.
	PaymentInvalid
)

// String возвращает значение способа оплаты в формате удалённого API.
func (p PaymentType) String() string {
	switch p {
	case PaymentCash:
		return "Cash"
	case PaymentDebit:
		return "DoorDebit"
	case PaymentCredit:
		return "DoorCredit"
	default:
		return "Invalid"
	}
}

// ResolvePayment выбирает способ оплаты с учётом способа получения заказа:
// самовывоз всегда оплачивается наличными при получении.
func ResolvePayment(method FulfillmentMethod, requested PaymentType) PaymentType {
	if method == MethodTakeout {
		return PaymentCash
	}
	if requested < PaymentCash || requested > PaymentCredit {
		return PaymentInvalid
	}
	return requested
}
