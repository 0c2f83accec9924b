// Package order реализует изменяемый документ одного заказа:
// корзину позиций и купонов в форме, ожидаемой удалённым API.
package order

import (
	"errors"
	"fmt"

	"github.com/mmeshcher/pizzaorder-system/internal/catalog"
	"github.com/mmeshcher/pizzaorder-system/internal/gateway"
	"github.com/mmeshcher/pizzaorder-system/internal/model"
)

var (
	// ErrUnknownItemCode возвращается при добавлении кода,
	// отсутствующего в каталоге точки выдачи.
	ErrUnknownItemCode = errors.New("item code is not in the catalog")
	// ErrUnknownCouponCode возвращается при добавлении купона,
	// отсутствующего в каталоге точки выдачи.
	ErrUnknownCouponCode = errors.New("coupon code is not in the catalog")
)

// Order владеет документом одного заказа и каталогом, из которого
// разрешаются коды позиций. Все мутаторы пишут в единственный
// документ на месте, без копирования.
type Order struct {
	doc      *Document
	catalog  *catalog.Catalog
	location *model.Location
	customer model.Customer

	validation *gateway.StepResponse
	pricing    *gateway.StepResponse
}

// New создаёт заказ для найденной точки выдачи, клиента и каталога точки.
func New(location *model.Location, customer model.Customer, cat *catalog.Catalog) *Order {
	return &Order{
		doc:      newDocument(location, customer),
		catalog:  cat,
		location: location,
		customer: customer,
	}
}

// Location возвращает точку выдачи заказа.
func (o *Order) Location() *model.Location {
	return o.location
}

// Customer возвращает клиента заказа.
func (o *Order) Customer() model.Customer {
	return o.customer
}

// Catalog возвращает каталог, из которого разрешаются коды заказа.
func (o *Order) Catalog() *catalog.Catalog {
	return o.catalog
}

// Document возвращает документ заказа для сериализации на провод.
func (o *Order) Document() *Document {
	return o.doc
}

// Method возвращает способ получения заказа.
func (o *Order) Method() model.FulfillmentMethod {
	return o.customer.Address.Method
}

// AddItem добавляет новую позицию с указанным кодом и количеством.
// Дубликаты не схлопываются: повторный вызов с тем же кодом даёт
// вторую позицию. При неизвестном коде документ не изменяется.
func (o *Order) AddItem(code string, quantity int) error {
	if !o.catalog.HasVariant(code) {
		return fmt.Errorf("add item %q: %w", code, ErrUnknownItemCode)
	}
	o.doc.Products = append(o.doc.Products, LineItem{
		Code:     code,
		ID:       1,
		IsNew:    true,
		Quantity: quantity,
	})
	return nil
}

// RemoveItem удаляет все позиции с указанным кодом.
// Отсутствие совпадений не является ошибкой.
func (o *Order) RemoveItem(code string) {
	o.doc.Products = removeByCode(o.doc.Products, code)
}

// RemoveItems удаляет все позиции с каждым из указанных кодов.
func (o *Order) RemoveItems(codes []string) {
	for _, code := range codes {
		o.RemoveItem(code)
	}
}

// AddCoupon применяет купон с указанным кодом к заказу.
// При неизвестном коде документ не изменяется.
func (o *Order) AddCoupon(code string) error {
	if !o.catalog.HasCoupon(code) {
		return fmt.Errorf("add coupon %q: %w", code, ErrUnknownCouponCode)
	}
	o.doc.Coupons = append(o.doc.Coupons, LineItem{
		Code:     code,
		ID:       1,
		IsNew:    true,
		Quantity: 1,
	})
	return nil
}

// AddCoupons применяет купоны по порядку. Первый неизвестный код
// прерывает добавление; ранее добавленные купоны остаются.
func (o *Order) AddCoupons(codes []string) error {
	for _, code := range codes {
		if err := o.AddCoupon(code); err != nil {
			return err
		}
	}
	return nil
}

// RemoveCoupon удаляет все применённые купоны с указанным кодом.
func (o *Order) RemoveCoupon(code string) {
	o.doc.Coupons = removeByCode(o.doc.Coupons, code)
}

// RemoveCoupons удаляет все купоны с каждым из указанных кодов.
func (o *Order) RemoveCoupons(codes []string) {
	for _, code := range codes {
		o.RemoveCoupon(code)
	}
}

// CurrentItems возвращает живой список позиций заказа в порядке добавления.
// Снимком не является: последующие мутации видны через него.
func (o *Order) CurrentItems() []LineItem {
	return o.doc.Products
}

// CurrentCoupons возвращает живой список применённых купонов.
func (o *Order) CurrentCoupons() []LineItem {
	return o.doc.Coupons
}

func removeByCode(items []LineItem, code string) []LineItem {
	kept := items[:0]
	for _, item := range items {
		if item.Code != code {
			kept = append(kept, item)
		}
	}
	return kept
}
