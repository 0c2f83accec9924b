// Package workflow реализует конечный автомат заказа: последовательность
// удалённых вызовов validate -> price -> place с классификацией отказов.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/pizzaorder-system/internal/gateway"
	"github.com/mmeshcher/pizzaorder-system/internal/market"
	"github.com/mmeshcher/pizzaorder-system/internal/model"
	"github.com/mmeshcher/pizzaorder-system/internal/order"
	"github.com/mmeshcher/pizzaorder-system/internal/resolver"
	"github.com/mmeshcher/pizzaorder-system/internal/tracking"
)

// State — состояние конечного автомата заказа.
type State string

const (
	StateAddressEntered    State = "ADDRESS_ENTERED"
	StateLocationResolving State = "LOCATION_RESOLVING"
	StateLocationResolved  State = "LOCATION_RESOLVED"
	StateItemSelection     State = "ITEM_SELECTION"
	StateValidating        State = "VALIDATING"
	StatePricing           State = "PRICING"
	StatePriceReady        State = "PRICE_READY"
	StatePlacing           State = "PLACING"
	StatePlaced            State = "PLACED"
	StateFailed            State = "FAILED"
)

// FailureKind классифицирует причину перехода в StateFailed.
type FailureKind string

const (
	FailureMalformedAddress FailureKind = "MALFORMED_ADDRESS"
	FailureNoOpenLocation   FailureKind = "NO_OPEN_LOCATION"
	FailureRemoteRejected   FailureKind = "REMOTE_REJECTED"
	FailureTransport        FailureKind = "TRANSPORT_FAILURE"
	FailureTimeout          FailureKind = "TIMEOUT"
	FailureAborted          FailureKind = "ABORTED"
)

var (
	// ErrPrematureAction возвращается, когда шаг вызван до того,
	// как завершился его обязательный предшественник.
	ErrPrematureAction = errors.New("step invoked before its prerequisite completed")
	// ErrRemoteRejected возвращается, когда удалённый API ответил
	// отрицательным статусом, включая сентинел шлюза.
	ErrRemoteRejected = errors.New("remote API rejected the step")
	// ErrInvalidPayment возвращается при недопустимом способе оплаты.
	ErrInvalidPayment = errors.New("payment type is not valid for this order")
)

// Failure описывает терминальный отказ: на каком шаге, какого рода
// и с какой причиной, сообщённой удалённой системой.
type Failure struct {
	State  State
	Kind   FailureKind
	Reason string
}

// Config — зависимости и параметры конечного автомата заказа.
type Config struct {
	Resolver  *resolver.Resolver
	Gateway   *gateway.Client
	Tracker   *tracking.Client
	Endpoints market.Directory
	Logger    *zap.Logger
	// StepTimeout ограничивает время одного удалённого вызова.
	StepTimeout time.Duration
	// Language — язык меню, по умолчанию en.
	Language string
}

// Workflow последовательно проводит один заказ через удалённые шаги.
// Экземпляр обслуживает ровно один документ заказа и не рассчитан
// на конкурентное использование: встраивающее приложение обязано
// сериализовать вызовы, пока удалённый вызов не завершён.
type Workflow struct {
	cfg   Config
	state State

	order   *order.Order
	failure *Failure
}

// New создаёт конечный автомат в начальном состоянии.
func New(cfg Config) *Workflow {
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 30 * time.Second
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	return &Workflow{
		cfg:   cfg,
		state: StateAddressEntered,
	}
}

// State возвращает текущее состояние конечного автомата.
func (w *Workflow) State() State {
	return w.state
}

// Failure возвращает сведения о терминальном отказе, nil вне StateFailed.
func (w *Workflow) Failure() *Failure {
	return w.failure
}

// Order возвращает документ заказа; nil до завершения резолюции.
func (w *Workflow) Order() *order.Order {
	return w.order
}

// Start выполняет резолюцию адреса в точку выдачи и её каталог
// и создаёт документ заказа. Успех переводит автомат в выбор позиций.
func (w *Workflow) Start(ctx context.Context, addr model.Address, customer model.Customer) error {
	if w.state != StateAddressEntered {
		return fmt.Errorf("start in state %s: %w", w.state, ErrPrematureAction)
	}
	w.state = StateLocationResolving

	stepCtx, cancel := context.WithTimeout(ctx, w.cfg.StepTimeout)
	defer cancel()

	location, err := w.cfg.Resolver.Resolve(stepCtx, addr)
	if err != nil {
		w.fail(StateLocationResolving, w.classifyResolveErr(err), "")
		return err
	}

	cat, err := w.cfg.Resolver.Menu(stepCtx, location, w.cfg.Language)
	if err != nil {
		w.fail(StateLocationResolving, w.classifyResolveErr(err), "")
		return err
	}

	w.state = StateLocationResolved
	customer.Address = addr
	w.order = order.New(location, customer, cat)
	w.state = StateItemSelection

	w.cfg.Logger.Info("order started",
		zap.String("storeID", location.StoreID),
		zap.String("method", string(addr.Method)))
	return nil
}

// Validate отправляет документ на проверку удалённой системе.
// Положительный ответ — только пропуск к шагу цены, сам он заказ не оценивает.
func (w *Workflow) Validate(ctx context.Context) error {
	if w.state != StateItemSelection {
		return fmt.Errorf("validate in state %s: %w", w.state, ErrPrematureAction)
	}
	w.state = StateValidating

	endpoints := w.endpoints()
	resp, err := w.send(ctx, StateValidating, endpoints.Validate, endpoints.Referer, w.order.Document())
	if err != nil {
		return err
	}

	w.order.SetValidation(resp)
	w.state = StatePricing
	return nil
}

// Price запрашивает авторитетную цену заказа и кэширует снимок ответа:
// его сумма и содержимое нужны шагу размещения.
func (w *Workflow) Price(ctx context.Context) error {
	if w.state != StatePricing {
		return fmt.Errorf("price in state %s: %w", w.state, ErrPrematureAction)
	}

	endpoints := w.endpoints()
	resp, err := w.send(ctx, StatePricing, endpoints.Price, endpoints.Referer, w.order.Document())
	if err != nil {
		return err
	}

	w.order.SetPricing(resp)
	w.state = StatePriceReady

	if amount, ok := resp.PaymentAmount(); ok {
		w.cfg.Logger.Info("order priced", zap.Float64("amount", amount))
	}
	return nil
}

// PaymentAmount возвращает сумму к оплате из кэшированного снимка цены.
func (w *Workflow) PaymentAmount() (float64, error) {
	pricing := w.pricingSnapshot()
	if pricing == nil {
		return 0, fmt.Errorf("payment amount before pricing: %w", ErrPrematureAction)
	}
	amount, ok := pricing.PaymentAmount()
	if !ok {
		return 0, fmt.Errorf("pricing snapshot carries no payment amount")
	}
	return amount, nil
}

// Place прикрепляет запись об оплате к кэшированному снимку цены
// и размещает заказ. Выбор оплаты до завершения шага цены недопустим.
func (w *Workflow) Place(ctx context.Context, requested model.PaymentType) error {
	if w.state != StatePriceReady || w.pricingSnapshot() == nil {
		return fmt.Errorf("place in state %s: %w", w.state, ErrPrematureAction)
	}

	payment := model.ResolvePayment(w.order.Method(), requested)
	if payment == model.PaymentInvalid {
		return ErrInvalidPayment
	}

	snapshot, err := attachPayment(w.pricingSnapshot().Order, payment.String())
	if err != nil {
		return fmt.Errorf("attach payment: %w", err)
	}

	w.state = StatePlacing
	endpoints := w.endpoints()
	if _, err := w.send(ctx, StatePlacing, endpoints.Place, endpoints.Referer, snapshot); err != nil {
		return err
	}

	w.state = StatePlaced
	w.cfg.Logger.Info("order placed",
		zap.String("storeID", w.order.Location().StoreID),
		zap.String("payment", payment.String()))
	return nil
}

// Track опрашивает статус размещённого заказа. Доступен только после
// успешного размещения.
func (w *Workflow) Track(ctx context.Context) (tracking.Status, error) {
	if w.state != StatePlaced {
		return "", fmt.Errorf("track in state %s: %w", w.state, ErrPrematureAction)
	}

	stepCtx, cancel := context.WithTimeout(ctx, w.cfg.StepTimeout)
	defer cancel()

	customer := w.order.Customer()
	location := w.order.Location()
	return w.cfg.Tracker.Poll(stepCtx, customer.Phone, location.Country, w.order.Method()), nil
}

// Abort переводит автомат в терминальный отказ по запросу вызывающей стороны.
// В терминальных состояниях не делает ничего.
func (w *Workflow) Abort() {
	if w.state == StatePlaced || w.state == StateFailed {
		return
	}
	w.fail(w.state, FailureAborted, "")
}

// Reopen возвращает автомат из отказа на удалённом шаге к выбору позиций,
// позволяя исправить документ и повторить шаг явно. Повторы никогда
// не выполняются автоматически.
func (w *Workflow) Reopen() error {
	if w.state != StateFailed || w.order == nil {
		return fmt.Errorf("reopen in state %s: %w", w.state, ErrPrematureAction)
	}
	switch w.failure.Kind {
	case FailureRemoteRejected, FailureTransport, FailureTimeout:
	default:
		return fmt.Errorf("reopen after %s: %w", w.failure.Kind, ErrPrematureAction)
	}

	w.failure = nil
	w.state = StateItemSelection
	return nil
}

// send выполняет один удалённый POST-шаг с ограничением времени
// и единообразной обработкой отрицательного ответа.
func (w *Workflow) send(ctx context.Context, at State, url, referer string, body any) (*gateway.StepResponse, error) {
	stepCtx, cancel := context.WithTimeout(ctx, w.cfg.StepTimeout)
	defer cancel()

	resp, err := w.cfg.Gateway.PostOrder(stepCtx, url, referer, body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			w.fail(at, FailureTimeout, "")
		} else {
			w.fail(at, FailureTransport, "")
		}
		return nil, err
	}

	if resp.Rejected() {
		reason, _ := resp.RejectReason()
		w.fail(at, FailureRemoteRejected, reason)
		if reason != "" {
			return nil, fmt.Errorf("%w: %s", ErrRemoteRejected, reason)
		}
		return nil, ErrRemoteRejected
	}

	return resp, nil
}

func (w *Workflow) endpoints() market.Endpoints {
	return w.cfg.Endpoints(w.order.Location().Country)
}

func (w *Workflow) pricingSnapshot() *gateway.StepResponse {
	if w.order == nil {
		return nil
	}
	return w.order.Pricing()
}

func (w *Workflow) classifyResolveErr(err error) FailureKind {
	switch {
	case errors.Is(err, market.ErrMalformedPostalCode):
		return FailureMalformedAddress
	case errors.Is(err, resolver.ErrNoOpenLocation):
		return FailureNoOpenLocation
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	default:
		return FailureTransport
	}
}

func (w *Workflow) fail(at State, kind FailureKind, reason string) {
	w.failure = &Failure{State: at, Kind: kind, Reason: reason}
	w.state = StateFailed
	w.cfg.Logger.Warn("order failed",
		zap.String("step", string(at)),
		zap.String("kind", string(kind)),
		zap.String("reason", reason))
}

// attachPayment добавляет запись об оплате в список Payments снимка цены,
// не трогая остальные поля, которые клиент не моделирует.
func attachPayment(raw json.RawMessage, paymentType string) (json.RawMessage, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	payments, _ := doc["Payments"].([]any)
	doc["Payments"] = append(payments, map[string]any{"Type": paymentType})

	return json.Marshal(doc)
}
