// Package tracking опрашивает статус размещённого заказа
// по двухшаговому протоколу трекинга удалённого API.
package tracking

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/pizzaorder-system/internal/gateway"
	"github.com/mmeshcher/pizzaorder-system/internal/market"
	"github.com/mmeshcher/pizzaorder-system/internal/model"
)

// Status — приведённый статус заказа из фиксированного словаря.
// Нераспознанные значения удалённой системы проходят без изменений.
type Status string

const (
	StatusBeingPrepared   Status = "Being Prepared"
	StatusInOven          Status = "In the oven"
	StatusAwaitingCourier Status = "Waiting for Delivery"
	StatusReadyForPickup  Status = "Ready for Pickup"
	StatusOutForDelivery  Status = "Out for Delivery"
	StatusDelivered       Status = "Delivered"
	StatusInvalid         Status = "Invalid or Cancelled Order"
	StatusUnknown         Status = "Unknown"
)

// rawRoutingStation — сырое состояние, значение которого зависит от способа
// получения: для самовывоза оно означает готовность к выдаче, а не ожидание
// курьера.
const rawRoutingStation = "routing station"

// Неизменяемый словарь сырых состояний трекинга. Строится один раз
// при загрузке пакета и далее только читается.
var trackingStates = map[string]Status{
	"makeline":        StatusBeingPrepared,
	"oven":            StatusInOven,
	rawRoutingStation: StatusAwaitingCourier,
	"out the door":    StatusOutForDelivery,
	"complete":        StatusDelivered,
	"bad":             StatusInvalid,
}

// MapStatus приводит сырое состояние трекинга к словарному статусу.
// Отображение идемпотентно; единственный случай, зависящий от способа
// получения, — rawRoutingStation при самовывозе.
func MapStatus(raw string, method model.FulfillmentMethod) Status {
	if raw == rawRoutingStation && method == model.MethodTakeout {
		return StatusReadyForPickup
	}
	if mapped, ok := trackingStates[raw]; ok {
		return mapped
	}
	return Status(raw)
}

// trackIndexEntry — элемент индекса трекинга по номеру телефона.
type trackIndexEntry struct {
	Actions struct {
		Track string `json:"Track"`
	} `json:"Actions"`
}

// liveStatus — ответ ресурса живого трекинга.
type liveStatus struct {
	OrderStatus string `json:"OrderStatus"`
}

// Client опрашивает трекинг удалённого API.
type Client struct {
	gw        *gateway.Client
	endpoints market.Directory
	logger    *zap.Logger
}

// NewClient создаёт клиент трекинга.
func NewClient(gw *gateway.Client, endpoints market.Directory, logger *zap.Logger) *Client {
	return &Client{
		gw:        gw,
		endpoints: endpoints,
		logger:    logger,
	}
}

func trackerHeaders(country model.Country) http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("DPZ-Language", "en")
	h.Set("DPZ-Market", market.MarketHeader(country))
	return h
}

// Poll запрашивает индекс трекинга по номеру телефона и, если заказ найден,
// переходит по URL действия Track за живым статусом. Опрос выполняется
// по возможности: любой транспортный сбой, пустой индекс или ошибка разбора
// дают StatusUnknown, а не ошибку.
func (c *Client) Poll(ctx context.Context, phone string, country model.Country, method model.FulfillmentMethod) Status {
	endpoints := c.endpoints(country)
	headers := trackerHeaders(country)

	var index []trackIndexEntry
	if err := c.gw.GetJSON(ctx, endpoints.TrackIndexURL(phone), headers, &index); err != nil {
		c.logger.Debug("tracking index unavailable", zap.Error(err))
		return StatusUnknown
	}
	if len(index) == 0 || index[0].Actions.Track == "" {
		return StatusUnknown
	}

	var live liveStatus
	actionURL := endpoints.TrackActionURL(index[0].Actions.Track)
	if err := c.gw.GetJSON(ctx, actionURL, headers, &live); err != nil {
		c.logger.Debug("live tracking unavailable", zap.Error(err))
		return StatusUnknown
	}
	if live.OrderStatus == "" {
		return StatusUnknown
	}

	return MapStatus(live.OrderStatus, method)
}
