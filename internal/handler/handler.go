// Package handler содержит HTTP-обработчики хост-поверхности заказа.
// Поверхность — тонкий потребитель конечного автомата: она выдаёт события
// и отображает возвращённое состояние, не изменяя его напрямую.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/pizzaorder-system/internal/catalog"
	"github.com/mmeshcher/pizzaorder-system/internal/market"
	"github.com/mmeshcher/pizzaorder-system/internal/model"
	"github.com/mmeshcher/pizzaorder-system/internal/order"
	"github.com/mmeshcher/pizzaorder-system/internal/resolver"
	"github.com/mmeshcher/pizzaorder-system/internal/service"
	"github.com/mmeshcher/pizzaorder-system/internal/tracking"
	"github.com/mmeshcher/pizzaorder-system/internal/validation"
	"github.com/mmeshcher/pizzaorder-system/internal/workflow"
)

// Service определяет контракт сервиса сессий, используемый обработчиками.
type Service interface {
	StartOrder(ctx context.Context, addr model.Address, customer model.Customer) (string, *model.Location, error)
	SearchMenu(id, query string) ([]catalog.Entry, error)
	ListPizzas(id string) ([]catalog.Entry, error)
	AddItem(id, code string, quantity int) error
	RemoveItem(id, code string) error
	AddCoupon(id, code string) error
	RemoveCoupon(id, code string) error
	Checkout(ctx context.Context, id string) (float64, error)
	Place(ctx context.Context, id string, payment model.PaymentType) error
	Track(ctx context.Context, id string) (tracking.Status, error)
	Status(id string) (workflow.State, *workflow.Failure, error)
	Abort(id string) error
}

// Handler реализует HTTP-обработчики хост-поверхности.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

type startOrderRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`

	Street     string `json:"street"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	// Combined — адрес одной строкой; разбирается унаследованным
	// парсером вместо структурированных полей.
	Combined string `json:"combined,omitempty"`

	Method string `json:"method"`
}

type startOrderResponse struct {
	OrderID      string `json:"order_id"`
	StoreID      string `json:"store_id"`
	StoreAddress string `json:"store_address"`
}

// StartOrder создаёт сессию заказа: резолюция адреса в открытую точку выдачи.
func (h *Handler) StartOrder(w http.ResponseWriter, r *http.Request) {
	var req startOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.FirstName == "" || req.LastName == "" || req.Email == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if !validation.IsValidPhone(req.Phone) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	addr, err := h.buildAddress(req)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	customer := model.Customer{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   addr,
	}

	id, location, err := h.service.StartOrder(r.Context(), addr, customer)
	if err != nil {
		h.writeError(w, err, "start order")
		return
	}

	resp := startOrderResponse{
		OrderID:      id,
		StoreID:      location.StoreID,
		StoreAddress: firstLine(location.AddressDescription),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) buildAddress(req startOrderRequest) (model.Address, error) {
	method := model.MethodDelivery
	// Carryout — имя самовывоза в документе заказа, принимается как синоним.
	if strings.EqualFold(req.Method, string(model.MethodTakeout)) || strings.EqualFold(req.Method, "Carryout") {
		method = model.MethodTakeout
	}

	if req.Combined != "" {
		addr, err := resolver.ParseCombined(req.Combined)
		if err != nil {
			return model.Address{}, err
		}
		addr.Method = method
		return addr, nil
	}

	country, err := market.DetectCountry(req.PostalCode)
	if err != nil {
		return model.Address{}, err
	}

	return model.Address{
		Street:     strings.TrimSpace(req.Street),
		City:       strings.TrimSpace(req.City),
		Region:     strings.TrimSpace(req.Region),
		PostalCode: strings.TrimSpace(req.PostalCode),
		Country:    country,
		Method:     method,
	}, nil
}

// SearchMenu ищет в каталоге сессии по подстроке из параметра q.
func (h *Handler) SearchMenu(w http.ResponseWriter, r *http.Request) {
	id := orderID(r)
	entries, err := h.service.SearchMenu(id, r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, err, "search menu")
		return
	}
	h.writeEntries(w, entries)
}

// ListPizzas возвращает пиццы со стандартными топпингами из каталога сессии.
func (h *Handler) ListPizzas(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListPizzas(orderID(r))
	if err != nil {
		h.writeError(w, err, "list pizzas")
		return
	}
	h.writeEntries(w, entries)
}

func (h *Handler) writeEntries(w http.ResponseWriter, entries []catalog.Entry) {
	if entries == nil {
		entries = []catalog.Entry{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type itemRequest struct {
	Code     string `json:"code"`
	Quantity int    `json:"qty"`
}

// AddItem добавляет позицию в корзину сессии.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Code == "" || !validation.IsValidQuantity(req.Quantity) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.AddItem(orderID(r), req.Code, req.Quantity); err != nil {
		h.writeError(w, err, "add item")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// RemoveItem удаляет из корзины все позиции с кодом из пути запроса.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveItem(orderID(r), itemCode(r)); err != nil {
		h.writeError(w, err, "remove item")
		return
	}
	w.WriteHeader(http.StatusOK)
}

type couponRequest struct {
	Code string `json:"code"`
}

// AddCoupon применяет купон к заказу сессии.
func (h *Handler) AddCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.AddCoupon(orderID(r), req.Code); err != nil {
		h.writeError(w, err, "add coupon")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// RemoveCoupon удаляет купон с кодом из пути запроса.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveCoupon(orderID(r), itemCode(r)); err != nil {
		h.writeError(w, err, "remove coupon")
		return
	}
	w.WriteHeader(http.StatusOK)
}

type checkoutResponse struct {
	Amount float64 `json:"amount"`
}

// Checkout проводит заказ через удалённые шаги проверки и цены.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	amount, err := h.service.Checkout(r.Context(), orderID(r))
	if err != nil {
		h.writeError(w, err, "checkout")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(checkoutResponse{Amount: amount}); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type placeRequest struct {
	Payment string `json:"payment"`
}

func parsePayment(s string) model.PaymentType {
	switch strings.ToLower(s) {
	case "", "cash":
		return model.PaymentCash
	case "debit":
		return model.PaymentDebit
	case "credit":
		return model.PaymentCredit
	default:
		return model.PaymentInvalid
	}
}

// PlaceOrder размещает заказ сессии с выбранным способом оплаты.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.Place(r.Context(), orderID(r), parsePayment(req.Payment)); err != nil {
		h.writeError(w, err, "place order")
		return
	}
	w.WriteHeader(http.StatusOK)
}

type trackResponse struct {
	Status string `json:"status"`
}

// Track возвращает статус размещённого заказа.
func (h *Handler) Track(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Track(r.Context(), orderID(r))
	if err != nil {
		h.writeError(w, err, "track order")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(trackResponse{Status: string(status)}); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type statusResponse struct {
	State   string `json:"state"`
	Failure *struct {
		Step   string `json:"step"`
		Kind   string `json:"kind"`
		Reason string `json:"reason,omitempty"`
	} `json:"failure,omitempty"`
}

// Status возвращает состояние конечного автомата сессии
// и, для терминального отказа, его подробности.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	state, failure, err := h.service.Status(orderID(r))
	if err != nil {
		h.writeError(w, err, "order status")
		return
	}

	resp := statusResponse{State: string(state)}
	if failure != nil {
		resp.Failure = &struct {
			Step   string `json:"step"`
			Kind   string `json:"kind"`
			Reason string `json:"reason,omitempty"`
		}{
			Step:   string(failure.State),
			Kind:   string(failure.Kind),
			Reason: failure.Reason,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

// Abort отменяет сессию заказа по запросу клиента.
func (h *Handler) Abort(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Abort(orderID(r)); err != nil {
		h.writeError(w, err, "abort order")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// writeError переводит доменные ошибки в HTTP-статусы.
func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, resolver.ErrNoOpenLocation):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, market.ErrMalformedPostalCode),
		errors.Is(err, resolver.ErrUnparsableAddress),
		errors.Is(err, order.ErrUnknownItemCode),
		errors.Is(err, order.ErrUnknownCouponCode):
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
	case errors.Is(err, workflow.ErrInvalidPayment):
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
	case errors.Is(err, workflow.ErrPrematureAction):
		http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
	case errors.Is(err, workflow.ErrRemoteRejected):
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, http.StatusText(http.StatusGatewayTimeout), http.StatusGatewayTimeout)
	default:
		h.logger.Error(op+" error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
