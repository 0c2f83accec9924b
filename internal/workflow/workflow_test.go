package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/pizzaorder-system/internal/gateway"
	"github.com/mmeshcher/pizzaorder-system/internal/market"
	"github.com/mmeshcher/pizzaorder-system/internal/model"
	"github.com/mmeshcher/pizzaorder-system/internal/resolver"
	"github.com/mmeshcher/pizzaorder-system/internal/tracking"
)

const (
	locatorBody = `{"Stores":[{"StoreID":"8244","IsOnlineNow":true,"ServiceIsOpen":{"Delivery":true,"Takeout":true},"AddressDescription":"5038 Ave\nSpringfield"}]}`
	menuBody    = `{"Variants":{"B8PCPT":{"Code":"B8PCPT","Name":"Bread Twists","Price":"5.99"}},"Coupons":{"9193":{"Code":"9193","Name":"3 Medium Pizzas"}}}`
)

// fakeRemote поднимает тестовый сервер со всеми конечными точками
// удалённого API одного рынка.
type fakeRemote struct {
	mux *http.ServeMux
	ts  *httptest.Server
}

func newFakeRemote(t *testing.T) *fakeRemote {
	t.Helper()

	f := &fakeRemote{mux: http.NewServeMux()}
	f.mux.HandleFunc("/store-locator", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(locatorBody))
	})
	f.mux.HandleFunc("/store/8244/menu", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(menuBody))
	})

	f.ts = httptest.NewServer(f.mux)
	t.Cleanup(f.ts.Close)
	return f
}

func (f *fakeRemote) directory(model.Country) market.Endpoints {
	return market.Endpoints{
		Locator:    f.ts.URL + "/store-locator?s={street}&c={city},{region}&type={method}",
		Menu:       f.ts.URL + "/store/{store_id}/menu?lang={lang}",
		Validate:   f.ts.URL + "/validate-order",
		Price:      f.ts.URL + "/price-order",
		Place:      f.ts.URL + "/place-order",
		Referer:    f.ts.URL + "/pages/order/",
		TrackIndex: f.ts.URL + "/orders?phonenumber={phone}",
		TrackBase:  f.ts.URL,
	}
}

func (f *fakeRemote) handle(path, body string) {
	f.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	})
}

func newTestWorkflow(t *testing.T, f *fakeRemote) *Workflow {
	t.Helper()

	gw := gateway.NewClient(time.Second)
	logger := zap.NewNop()
	return New(Config{
		Resolver:    resolver.New(gw, f.directory, logger),
		Gateway:     gw,
		Tracker:     tracking.NewClient(gw, f.directory, logger),
		Endpoints:   f.directory,
		Logger:      logger,
		StepTimeout: time.Second,
	})
}

func testAddress(method model.FulfillmentMethod) model.Address {
	return model.Address{
		Street:     "123 Main St",
		City:       "Springfield",
		Region:     "IL",
		PostalCode: "62704",
		Country:    model.CountryUSA,
		Method:     method,
	}
}

func testCustomer() model.Customer {
	return model.Customer{
		FirstName: "Pizza",
		LastName:  "President",
		Email:     "pizza@example.com",
		Phone:     "2175551234",
	}
}

func startWorkflow(t *testing.T, f *fakeRemote, method model.FulfillmentMethod) *Workflow {
	t.Helper()

	w := newTestWorkflow(t, f)
	if err := w.Start(context.Background(), testAddress(method), testCustomer()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if w.State() != StateItemSelection {
		t.Fatalf("state after Start = %s, want %s", w.State(), StateItemSelection)
	}
	return w
}

func TestHappyPathToPlaced(t *testing.T) {
	f := newFakeRemote(t)
	f.handle("/validate-order", `{"Status":0,"Order":{}}`)
	f.handle("/price-order", `{"Status":0,"Order":{"Amounts":{"Payment":12.99},"Payments":[]}}`)
	f.handle("/place-order", `{"Status":0,"Order":{}}`)

	w := startWorkflow(t, f, model.MethodDelivery)

	if err := w.Order().AddItem("B8PCPT", 1); err != nil {
		t.Fatalf("AddItem error: %v", err)
	}

	if err := w.Validate(context.Background()); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if w.State() != StatePricing {
		t.Fatalf("state after Validate = %s, want %s", w.State(), StatePricing)
	}

	if err := w.Price(context.Background()); err != nil {
		t.Fatalf("Price error: %v", err)
	}
	if w.State() != StatePriceReady {
		t.Fatalf("state after Price = %s, want %s", w.State(), StatePriceReady)
	}

	amount, err := w.PaymentAmount()
	if err != nil || amount != 12.99 {
		t.Fatalf("PaymentAmount = %v, %v, want 12.99", amount, err)
	}

	if err := w.Place(context.Background(), model.PaymentCash); err != nil {
		t.Fatalf("Place error: %v", err)
	}
	if w.State() != StatePlaced {
		t.Fatalf("state after Place = %s, want %s", w.State(), StatePlaced)
	}
}

func TestPriceCachesPaymentAmount(t *testing.T) {
	f := newFakeRemote(t)
	f.handle("/validate-order", `{"Status":0,"Order":{}}`)
	f.handle("/price-order", `{"Status":0,"Order":{"Amounts":{"Payment":12.99}}}`)

	w := startWorkflow(t, f, model.MethodDelivery)
	_ = w.Order().AddItem("B8PCPT", 1)

	if err := w.Validate(context.Background()); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if err := w.Price(context.Background()); err != nil {
		t.Fatalf("Price error: %v", err)
	}

	if w.State() != StatePriceReady {
		t.Fatalf("state = %s, want %s", w.State(), StatePriceReady)
	}
	amount, err := w.PaymentAmount()
	if err != nil {
		t.Fatalf("PaymentAmount error: %v", err)
	}
	if amount != 12.99 {
		t.Fatalf("cached amount = %v, want 12.99", amount)
	}
}

func TestValidateIsOnlyAGate(t *testing.T) {
	f := newFakeRemote(t)
	f.handle("/validate-order", `{"Status":0,"Order":{}}`)

	w := startWorkflow(t, f, model.MethodDelivery)
	_ = w.Order().AddItem("B8PCPT", 1)

	if err := w.Validate(context.Background()); err != nil {
		t.Fatalf("Validate error: %v", err)
	}

	// Проверка не оценивает заказ: суммы нет, пока не выполнен шаг цены.
	if _, err := w.PaymentAmount(); !errors.Is(err, ErrPrematureAction) {
		t.Fatalf("PaymentAmount before Price: error = %v, want ErrPrematureAction", err)
	}
}

func TestAnyNegativeStatusFails(t *testing.T) {
	tests := []struct {
		name string
		step func(w *Workflow) error
		prep func(f *fakeRemote)
		at   State
	}{
		{
			name: "validate rejected",
			prep: func(f *fakeRemote) {
				f.handle("/validate-order", `{"Status":-1,"Order":{}}`)
			},
			step: func(w *Workflow) error { return w.Validate(context.Background()) },
			at:   StateValidating,
		},
		{
			name: "price rejected",
			prep: func(f *fakeRemote) {
				f.handle("/validate-order", `{"Status":0,"Order":{}}`)
				f.handle("/price-order", `{"Status":-1,"Order":{}}`)
			},
			step: func(w *Workflow) error {
				if err := w.Validate(context.Background()); err != nil {
					return err
				}
				return w.Price(context.Background())
			},
			at: StatePricing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeRemote(t)
			tt.prep(f)

			w := startWorkflow(t, f, model.MethodDelivery)
			_ = w.Order().AddItem("B8PCPT", 1)

			err := tt.step(w)
			if !errors.Is(err, ErrRemoteRejected) {
				t.Fatalf("error = %v, want ErrRemoteRejected", err)
			}
			if w.State() != StateFailed {
				t.Fatalf("state = %s, want %s", w.State(), StateFailed)
			}

			failure := w.Failure()
			if failure == nil || failure.Kind != FailureRemoteRejected || failure.State != tt.at {
				t.Fatalf("failure = %+v", failure)
			}
		})
	}
}

func TestPlaceRejectionReasonFromThirdStatusItem(t *testing.T) {
	f := newFakeRemote(t)
	f.handle("/validate-order", `{"Status":0,"Order":{}}`)
	f.handle("/price-order", `{"Status":0,"Order":{"Amounts":{"Payment":12.99}}}`)
	f.handle("/place-order", `{"Status":-1,"Order":{"StatusItems":[{"Code":"a"},{"Code":"b"},{"Code":"CardDeclined"}]}}`)

	w := startWorkflow(t, f, model.MethodDelivery)
	_ = w.Order().AddItem("B8PCPT", 1)
	_ = w.Validate(context.Background())
	_ = w.Price(context.Background())

	err := w.Place(context.Background(), model.PaymentCash)
	if !errors.Is(err, ErrRemoteRejected) {
		t.Fatalf("error = %v, want ErrRemoteRejected", err)
	}

	failure := w.Failure()
	if failure == nil || failure.Kind != FailureRemoteRejected {
		t.Fatalf("failure = %+v", failure)
	}
	if failure.Reason != "CardDeclined" {
		t.Fatalf("reason = %q, want code of the last status item", failure.Reason)
	}
}

func TestPlaceSendsPricedSnapshotWithPayment(t *testing.T) {
	f := newFakeRemote(t)
	f.handle("/validate-order", `{"Status":0,"Order":{}}`)
	// Снимок цены несёт поле, которое клиент не моделирует.
	f.handle("/price-order", `{"Status":0,"Order":{"Amounts":{"Payment":12.99},"Payments":[],"EstimatedWaitMinutes":"23-33"}}`)

	var placed map[string]any
	f.mux.HandleFunc("/place-order", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var wrapper struct {
			Order map[string]any `json:"Order"`
		}
		if err := json.Unmarshal(body, &wrapper); err != nil {
			t.Fatalf("unmarshal place body: %v", err)
		}
		placed = wrapper.Order
		_, _ = w.Write([]byte(`{"Status":0,"Order":{}}`))
	})

	w := startWorkflow(t, f, model.MethodDelivery)
	_ = w.Order().AddItem("B8PCPT", 1)
	_ = w.Validate(context.Background())
	_ = w.Price(context.Background())

	if err := w.Place(context.Background(), model.PaymentCash); err != nil {
		t.Fatalf("Place error: %v", err)
	}

	if placed["EstimatedWaitMinutes"] != "23-33" {
		t.Fatalf("placed body must echo the priced snapshot, got %v", placed)
	}
	payments, ok := placed["Payments"].([]any)
	if !ok || len(payments) != 1 {
		t.Fatalf("Payments = %v, want one entry", placed["Payments"])
	}
	entry := payments[0].(map[string]any)
	if entry["Type"] != "Cash" {
		t.Fatalf("payment type = %v, want Cash", entry["Type"])
	}
}

func TestTakeoutForcesCashPayment(t *testing.T) {
	f := newFakeRemote(t)
	f.handle("/validate-order", `{"Status":0,"Order":{}}`)
	f.handle("/price-order", `{"Status":0,"Order":{"Amounts":{"Payment":9.99}}}`)

	var placed map[string]any
	f.mux.HandleFunc("/place-order", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var wrapper struct {
			Order map[string]any `json:"Order"`
		}
		_ = json.Unmarshal(body, &wrapper)
		placed = wrapper.Order
		_, _ = w.Write([]byte(`{"Status":0,"Order":{}}`))
	})

	w := startWorkflow(t, f, model.MethodTakeout)
	_ = w.Order().AddItem("B8PCPT", 1)
	_ = w.Validate(context.Background())
	_ = w.Price(context.Background())

	if err := w.Place(context.Background(), model.PaymentCredit); err != nil {
		t.Fatalf("Place error: %v", err)
	}

	payments := placed["Payments"].([]any)
	entry := payments[0].(map[string]any)
	if entry["Type"] != "Cash" {
		t.Fatalf("takeout payment = %v, want forced Cash", entry["Type"])
	}
}

func TestPrematureSteps(t *testing.T) {
	f := newFakeRemote(t)
	f.handle("/validate-order", `{"Status":0,"Order":{}}`)

	w := startWorkflow(t, f, model.MethodDelivery)
	_ = w.Order().AddItem("B8PCPT", 1)

	// Цена до проверки.
	if err := w.Price(context.Background()); !errors.Is(err, ErrPrematureAction) {
		t.Fatalf("Price before Validate: error = %v, want ErrPrematureAction", err)
	}
	// Размещение до цены: снимка цены ещё нет.
	if err := w.Place(context.Background(), model.PaymentCash); !errors.Is(err, ErrPrematureAction) {
		t.Fatalf("Place before Price: error = %v, want ErrPrematureAction", err)
	}
	// Трекинг до размещения.
	if _, err := w.Track(context.Background()); !errors.Is(err, ErrPrematureAction) {
		t.Fatalf("Track before Placed: error = %v, want ErrPrematureAction", err)
	}
	// Ошибки преждевременных шагов не теряют состояние.
	if w.State() != StateItemSelection {
		t.Fatalf("state = %s, premature steps must not move the machine", w.State())
	}
}

func TestStartFailures(t *testing.T) {
	t.Run("malformed address", func(t *testing.T) {
		f := newFakeRemote(t)
		w := newTestWorkflow(t, f)

		addr := testAddress(model.MethodDelivery)
		addr.Country = ""
		addr.PostalCode = "whatever"

		if err := w.Start(context.Background(), addr, testCustomer()); err == nil {
			t.Fatalf("expected error for malformed postal code")
		}
		failure := w.Failure()
		if failure == nil || failure.Kind != FailureMalformedAddress {
			t.Fatalf("failure = %+v, want MALFORMED_ADDRESS", failure)
		}
	})

	t.Run("no open location", func(t *testing.T) {
		// Локатор возвращает только закрытые точки.
		f := &fakeRemote{mux: http.NewServeMux()}
		f.mux.HandleFunc("/store-locator", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"Stores":[{"StoreID":"1","IsOnlineNow":false,"ServiceIsOpen":{"Delivery":true,"Takeout":true}}]}`))
		})
		f.ts = httptest.NewServer(f.mux)
		t.Cleanup(f.ts.Close)

		w := newTestWorkflow(t, f)
		err := w.Start(context.Background(), testAddress(model.MethodDelivery), testCustomer())
		if !errors.Is(err, resolver.ErrNoOpenLocation) {
			t.Fatalf("error = %v, want ErrNoOpenLocation", err)
		}
		failure := w.Failure()
		if failure == nil || failure.Kind != FailureNoOpenLocation {
			t.Fatalf("failure = %+v, want NO_OPEN_LOCATION", failure)
		}
	})
}

func TestReopenAfterRemoteRejection(t *testing.T) {
	f := newFakeRemote(t)
	rejected := true
	f.mux.HandleFunc("/validate-order", func(w http.ResponseWriter, r *http.Request) {
		if rejected {
			_, _ = w.Write([]byte(`{"Status":-1,"Order":{}}`))
			return
		}
		_, _ = w.Write([]byte(`{"Status":0,"Order":{}}`))
	})

	w := startWorkflow(t, f, model.MethodDelivery)
	_ = w.Order().AddItem("B8PCPT", 1)

	if err := w.Validate(context.Background()); !errors.Is(err, ErrRemoteRejected) {
		t.Fatalf("error = %v, want ErrRemoteRejected", err)
	}

	if err := w.Reopen(); err != nil {
		t.Fatalf("Reopen error: %v", err)
	}
	if w.State() != StateItemSelection {
		t.Fatalf("state after Reopen = %s, want %s", w.State(), StateItemSelection)
	}

	// Повтор шага выполняется только явным вызовом.
	rejected = false
	if err := w.Validate(context.Background()); err != nil {
		t.Fatalf("Validate after Reopen error: %v", err)
	}
}

func TestAbortIsTerminal(t *testing.T) {
	f := newFakeRemote(t)
	w := startWorkflow(t, f, model.MethodDelivery)

	w.Abort()
	if w.State() != StateFailed {
		t.Fatalf("state after Abort = %s, want %s", w.State(), StateFailed)
	}
	failure := w.Failure()
	if failure == nil || failure.Kind != FailureAborted {
		t.Fatalf("failure = %+v, want ABORTED", failure)
	}

	if err := w.Validate(context.Background()); !errors.Is(err, ErrPrematureAction) {
		t.Fatalf("Validate after Abort: error = %v, want ErrPrematureAction", err)
	}
}

func TestTrackAfterPlaced(t *testing.T) {
	f := newFakeRemote(t)
	f.handle("/validate-order", `{"Status":0,"Order":{}}`)
	f.handle("/price-order", `{"Status":0,"Order":{"Amounts":{"Payment":12.99}}}`)
	f.handle("/place-order", `{"Status":0,"Order":{}}`)
	f.handle("/orders", `[{"Actions":{"Track":"/orders/1/track"}}]`)
	f.handle("/orders/1/track", `{"OrderStatus":"routing station"}`)

	w := startWorkflow(t, f, model.MethodTakeout)
	_ = w.Order().AddItem("B8PCPT", 1)
	_ = w.Validate(context.Background())
	_ = w.Price(context.Background())
	if err := w.Place(context.Background(), model.PaymentCash); err != nil {
		t.Fatalf("Place error: %v", err)
	}

	status, err := w.Track(context.Background())
	if err != nil {
		t.Fatalf("Track error: %v", err)
	}
	if status != tracking.StatusReadyForPickup {
		t.Fatalf("takeout at routing station = %q, want %q", status, tracking.StatusReadyForPickup)
	}
}
