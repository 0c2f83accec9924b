package order

import (
	"github.com/mmeshcher/pizzaorder-system/internal/model"
)

// AddressFields — адресная часть документа заказа в формате удалённого API.
type AddressFields struct {
	Street     string `json:"Street"`
	City       string `json:"City"`
	Region     string `json:"Region"`
	PostalCode string `json:"PostalCode"`
	Type       string `json:"Type"`
}

// LineItem — позиция корзины документа заказа. Теги isNew и qty
// в нижнем регистре: именно такую форму ожидает удалённый API.
type LineItem struct {
	Code       string `json:"Code"`
	ID         int    `json:"ID"`
	IsNew      bool   `json:"isNew"`
	Quantity   int    `json:"qty"`
	AutoRemove bool   `json:"AutoRemove"`
}

// PaymentEntry — запись об оплате, добавляемая в документ перед размещением.
type PaymentEntry struct {
	Type string `json:"Type"`
}

// Document — документ заказа в точной форме, которую ожидает удалённый API.
// Накапливает позиции, купоны, адрес и данные клиента; изменяется на месте.
type Document struct {
	Address               AddressFields  `json:"Address"`
	Coupons               []LineItem     `json:"Coupons"`
	CustomerID            string         `json:"CustomerID"`
	Email                 string         `json:"Email"`
	Extension             string         `json:"Extension"`
	FirstName             string         `json:"FirstName"`
	LastName              string         `json:"LastName"`
	LanguageCode          string         `json:"LanguageCode"`
	OrderChannel          string         `json:"OrderChannel"`
	OrderID               string         `json:"OrderID"`
	OrderMethod           string         `json:"OrderMethod"`
	Payments              []PaymentEntry `json:"Payments"`
	Phone                 string         `json:"Phone"`
	Products              []LineItem     `json:"Products"`
	ServiceMethod         string         `json:"ServiceMethod"`
	SourceOrganizationURI string         `json:"SourceOrganizationURI"`
	StoreID               string         `json:"StoreID"`
	Version               string         `json:"Version"`
	NoCombine             bool           `json:"NoCombine"`
	NewUser               bool           `json:"NewUser"`
}

// serviceMethodWire переводит способ получения в значение поля ServiceMethod.
// Удалённый API называет самовывоз Carryout.
func serviceMethodWire(method model.FulfillmentMethod) string {
	if method == model.MethodTakeout {
		return "Carryout"
	}
	return "Delivery"
}

// newDocument создаёт документ заказа, проштампованный данными точки и клиента.
func newDocument(location *model.Location, customer model.Customer) *Document {
	addr := customer.Address
	return &Document{
		Address: AddressFields{
			Street:     addr.Street,
			City:       addr.City,
			Region:     addr.Region,
			PostalCode: addr.PostalCode,
			Type:       "House",
		},
		Coupons:               []LineItem{},
		Email:                 customer.Email,
		FirstName:             customer.FirstName,
		LastName:              customer.LastName,
		LanguageCode:          "en",
		OrderChannel:          "OLO",
		OrderMethod:           "Web",
		Payments:              []PaymentEntry{},
		Phone:                 customer.Phone,
		Products:              []LineItem{},
		ServiceMethod:         serviceMethodWire(addr.Method),
		SourceOrganizationURI: "order.dominos.com",
		StoreID:               location.StoreID,
		Version:               "1.0",
		NoCombine:             true,
		NewUser:               true,
	}
}
