// Package catalog разбирает ответ меню точки выдачи в таблицы
// товаров, вариантов и купонов с поиском по ним.
package catalog

import (
	"sort"
	"strings"
)

// Variant описывает один приобретаемый артикул меню вместе с его
// исходными атрибутами из ответа удалённого API.
type Variant struct {
	Code        string         `json:"Code"`
	Name        string         `json:"Name"`
	Price       string         `json:"Price"`
	ProductCode string         `json:"ProductCode"`
	Tags        map[string]any `json:"Tags"`
}

// DefaultToppings возвращает тег DefaultToppings варианта, если он задан.
func (v Variant) DefaultToppings() string {
	s, _ := v.Tags["DefaultToppings"].(string)
	return s
}

// Product описывает товар, группирующий варианты, с его типом.
type Product struct {
	Code        string `json:"Code"`
	Name        string `json:"Name"`
	ProductType string `json:"ProductType"`
}

// Coupon описывает определение купона из меню.
type Coupon struct {
	Code  string `json:"Code"`
	Name  string `json:"Name"`
	Price string `json:"Price"`
}

// Entry — денормализованное представление одного варианта для результатов
// поиска. Производное значение, изменять независимо от каталога нельзя.
type Entry struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

// MenuResponse описывает разделы ответа меню удалённого API.
// Отсутствующие разделы допустимы и дают пустые таблицы.
type MenuResponse struct {
	Variants              map[string]Variant `json:"Variants"`
	Products              map[string]Product `json:"Products"`
	Coupons               map[string]Coupon  `json:"Coupons"`
	PreconfiguredProducts map[string]Variant `json:"PreconfiguredProducts"`
}

// Catalog — таблицы меню одной точки выдачи. Строится один раз на резолюцию
// и после построения только читается.
type Catalog struct {
	variants map[string]Variant
	products map[string]Product
	coupons  map[string]Coupon

	// Коды вариантов в фиксированном порядке для детерминированного обхода.
	variantCodes []string
}

// Build строит каталог из ответа меню. Никогда не завершается ошибкой:
// отсутствующие разделы заменяются пустыми таблицами.
func Build(menu MenuResponse) *Catalog {
	c := &Catalog{
		variants: menu.Variants,
		products: menu.Products,
		coupons:  menu.Coupons,
	}
	if c.variants == nil {
		c.variants = map[string]Variant{}
	}
	if c.products == nil {
		c.products = map[string]Product{}
	}
	if c.coupons == nil {
		c.coupons = map[string]Coupon{}
	}

	c.variantCodes = make([]string, 0, len(c.variants))
	for code := range c.variants {
		c.variantCodes = append(c.variantCodes, code)
	}
	sort.Strings(c.variantCodes)

	return c
}

// HasVariant сообщает, существует ли вариант с указанным кодом.
func (c *Catalog) HasVariant(code string) bool {
	_, ok := c.variants[code]
	return ok
}

// HasCoupon сообщает, существует ли купон с указанным кодом.
func (c *Catalog) HasCoupon(code string) bool {
	_, ok := c.coupons[code]
	return ok
}

// Product возвращает товар по коду.
func (c *Catalog) Product(code string) (Product, bool) {
	p, ok := c.products[code]
	return p, ok
}

// Search ищет варианты, отображаемое имя которых содержит подстроку
// без учёта регистра.
func (c *Catalog) Search(substring string) []Entry {
	needle := strings.ToLower(substring)
	return c.SearchFunc(func(v Variant) bool {
		return strings.Contains(strings.ToLower(v.Name), needle)
	})
}

// SearchFunc ищет варианты, удовлетворяющие произвольному предикату
// над исходными атрибутами варианта.
func (c *Catalog) SearchFunc(predicate func(Variant) bool) []Entry {
	var entries []Entry
	for _, code := range c.variantCodes {
		v := c.variants[code]
		if predicate(v) {
			entries = append(entries, Entry{
				Code:  v.Code,
				Name:  v.Name,
				Price: v.Price,
			})
		}
	}
	return entries
}

// Pizzas возвращает варианты пицц со стандартными топпингами:
// тег DefaultToppings непуст, а тип владеющего товара — Pizza.
func (c *Catalog) Pizzas() []Entry {
	return c.SearchFunc(func(v Variant) bool {
		if v.DefaultToppings() == "" {
			return false
		}
		product, ok := c.products[v.ProductCode]
		return ok && product.ProductType == "Pizza"
	})
}
