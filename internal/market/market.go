// Package market содержит определение рынка по почтовому индексу
// и адресные шаблоны конечных точек удалённого API для каждого рынка.
package market

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/mmeshcher/pizzaorder-system/internal/model"
)

// ErrMalformedPostalCode возвращается, когда индекс не подходит
// ни под один из поддерживаемых форматов.
var ErrMalformedPostalCode = errors.New("postal code matches no supported market")

var (
	usPostalPattern = regexp.MustCompile(`^\d{5}$`)
	caPostalPattern = regexp.MustCompile(`(?i)^[ABCEGHJ-NPRSTVXY]\d[ABCEGHJ-NPRSTV-Z]\d[ABCEGHJ-NPRSTV-Z]\d$`)
)

// DetectCountry определяет рынок по формату почтового индекса.
// Форматы двух рынков не пересекаются, поэтому выбор однозначен.
func DetectCountry(postalCode string) (model.Country, error) {
	code := strings.TrimSpace(postalCode)
	switch {
	case usPostalPattern.MatchString(code):
		return model.CountryUSA, nil
	case caPostalPattern.MatchString(code):
		return model.CountryCanada, nil
	default:
		return "", ErrMalformedPostalCode
	}
}

// Endpoints содержит конечные точки удалённого API одного рынка.
// Поля Locator, Menu и TrackIndex являются шаблонами с подстановками
// {street}, {city}, {region}, {method}, {store_id}, {lang}, {phone}.
type Endpoints struct {
	Locator    string
	Menu       string
	Validate   string
	Price      string
	Place      string
	Referer    string
	TrackIndex string
	TrackBase  string
}

// Directory возвращает конечные точки для указанного рынка.
// В тестах подменяется функцией, указывающей на локальный сервер.
type Directory func(country model.Country) Endpoints

var endpointsByCountry = map[model.Country]Endpoints{
	model.CountryUSA: {
		Locator:    "https://order.dominos.com/power/store-locator?s={street}&c={city},{region}&type={method}",
		Menu:       "https://order.dominos.com/power/store/{store_id}/menu?lang={lang}&structured=true",
		Validate:   "https://order.dominos.com/power/validate-order",
		Price:      "https://order.dominos.com/power/price-order",
		Place:      "https://order.dominos.com/power/place-order",
		Referer:    "https://order.dominos.com/en/pages/order/",
		TrackIndex: "https://tracker.dominos.com/tracker-presentation-service/v2/orders?phonenumber={phone}",
		TrackBase:  "https://tracker.dominos.com",
	},
	model.CountryCanada: {
		Locator:    "https://order.dominos.ca/power/store-locator?s={street}&c={city},{region}&type={method}",
		Menu:       "https://order.dominos.ca/power/store/{store_id}/menu?lang={lang}&structured=true",
		Validate:   "https://order.dominos.ca/power/validate-order",
		Price:      "https://order.dominos.ca/power/price-order",
		Place:      "https://order.dominos.ca/power/place-order",
		Referer:    "https://order.dominos.ca/en/pages/order/",
		TrackIndex: "https://tracker.dominos.ca/tracker-presentation-service/v2/orders?phonenumber={phone}",
		TrackBase:  "https://tracker.dominos.ca",
	},
}

// ForCountry возвращает конечные точки рынка. Directory по умолчанию.
func ForCountry(country model.Country) Endpoints {
	return endpointsByCountry[country]
}

// LocatorURL подставляет адресные поля в шаблон локатора.
func (e Endpoints) LocatorURL(addr model.Address) string {
	r := strings.NewReplacer(
		"{street}", url.QueryEscape(addr.Street),
		"{city}", url.QueryEscape(addr.City),
		"{region}", url.QueryEscape(addr.Region),
		"{method}", url.QueryEscape(string(addr.Method)),
	)
	return r.Replace(e.Locator)
}

// MenuURL подставляет идентификатор точки и язык в шаблон меню.
func (e Endpoints) MenuURL(storeID, lang string) string {
	r := strings.NewReplacer(
		"{store_id}", url.PathEscape(storeID),
		"{lang}", url.QueryEscape(lang),
	)
	return r.Replace(e.Menu)
}

// TrackIndexURL подставляет номер телефона в шаблон индекса трекинга.
func (e Endpoints) TrackIndexURL(phone string) string {
	return strings.ReplaceAll(e.TrackIndex, "{phone}", url.QueryEscape(phone))
}

// TrackActionURL присоединяет относительный URL действия трекинга к базе рынка.
func (e Endpoints) TrackActionURL(relative string) string {
	return strings.TrimRight(e.TrackBase, "/") + "/" + strings.TrimLeft(relative, "/")
}

// MarketHeader возвращает значение заголовка DPZ-Market для рынка.
func MarketHeader(country model.Country) string {
	if country == model.CountryCanada {
		return "CANADA"
	}
	return "UNITED_STATES"
}
