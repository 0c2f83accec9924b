// Package service реализует реестр сессий заказа поверх конечного автомата.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/pizzaorder-system/internal/catalog"
	"github.com/mmeshcher/pizzaorder-system/internal/gateway"
	"github.com/mmeshcher/pizzaorder-system/internal/market"
	"github.com/mmeshcher/pizzaorder-system/internal/model"
	"github.com/mmeshcher/pizzaorder-system/internal/resolver"
	"github.com/mmeshcher/pizzaorder-system/internal/tracking"
	"github.com/mmeshcher/pizzaorder-system/internal/workflow"
)

// ErrSessionNotFound возвращается при обращении к неизвестной сессии заказа.
var ErrSessionNotFound = errors.New("order session not found")

// Session связывает идентификатор с конечным автоматом одного заказа.
// Мьютекс сериализует работу с сессией: пока удалённый вызов не завершён,
// документ заказа изменять нельзя.
type Session struct {
	ID       string
	Workflow *workflow.Workflow

	mu sync.Mutex
}

// Service хранит независимые сессии заказов. Сессии разных клиентов
// продвигаются конкурентно и не разделяют изменяемого состояния.
type Service struct {
	gw       *gateway.Client
	resolver *resolver.Resolver
	tracker  *tracking.Client
	logger   *zap.Logger

	endpoints   market.Directory
	stepTimeout time.Duration
	language    string

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Config — параметры создания сервиса сессий.
type Config struct {
	Gateway     *gateway.Client
	Endpoints   market.Directory
	Logger      *zap.Logger
	StepTimeout time.Duration
	Language    string
}

// NewService создаёт сервис сессий заказа.
func NewService(cfg Config) *Service {
	return &Service{
		gw:          cfg.Gateway,
		resolver:    resolver.New(cfg.Gateway, cfg.Endpoints, cfg.Logger),
		tracker:     tracking.NewClient(cfg.Gateway, cfg.Endpoints, cfg.Logger),
		logger:      cfg.Logger,
		endpoints:   cfg.Endpoints,
		stepTimeout: cfg.StepTimeout,
		language:    cfg.Language,
		sessions:    make(map[string]*Session),
	}
}

// StartOrder создаёт сессию, выполняет резолюцию адреса и возвращает
// идентификатор сессии вместе с найденной точкой выдачи.
func (s *Service) StartOrder(ctx context.Context, addr model.Address, customer model.Customer) (string, *model.Location, error) {
	wf := workflow.New(workflow.Config{
		Resolver:    s.resolver,
		Gateway:     s.gw,
		Tracker:     s.tracker,
		Endpoints:   s.endpoints,
		Logger:      s.logger,
		StepTimeout: s.stepTimeout,
		Language:    s.language,
	})

	if err := wf.Start(ctx, addr, customer); err != nil {
		return "", nil, err
	}

	session := &Session{
		ID:       uuid.NewString(),
		Workflow: wf,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session.ID, wf.Order().Location(), nil
}

// session возвращает сессию по идентификатору.
func (s *Service) session(id string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// withSession выполняет fn под мьютексом сессии.
func (s *Service) withSession(id string, fn func(*workflow.Workflow) error) error {
	session, err := s.session(id)
	if err != nil {
		return err
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	return fn(session.Workflow)
}

// SearchMenu ищет в каталоге сессии варианты по подстроке имени.
func (s *Service) SearchMenu(id, query string) ([]catalog.Entry, error) {
	var entries []catalog.Entry
	err := s.withSession(id, func(wf *workflow.Workflow) error {
		ord := wf.Order()
		if ord == nil {
			return workflow.ErrPrematureAction
		}
		entries = ord.Catalog().Search(query)
		return nil
	})
	return entries, err
}

// ListPizzas возвращает пиццы со стандартными топпингами из каталога сессии.
func (s *Service) ListPizzas(id string) ([]catalog.Entry, error) {
	var entries []catalog.Entry
	err := s.withSession(id, func(wf *workflow.Workflow) error {
		ord := wf.Order()
		if ord == nil {
			return workflow.ErrPrematureAction
		}
		entries = ord.Catalog().Pizzas()
		return nil
	})
	return entries, err
}

// AddItem добавляет позицию в корзину сессии.
func (s *Service) AddItem(id, code string, quantity int) error {
	return s.withSession(id, func(wf *workflow.Workflow) error {
		ord := wf.Order()
		if ord == nil {
			return workflow.ErrPrematureAction
		}
		return ord.AddItem(code, quantity)
	})
}

// RemoveItem удаляет из корзины сессии все позиции с указанным кодом.
func (s *Service) RemoveItem(id, code string) error {
	return s.withSession(id, func(wf *workflow.Workflow) error {
		ord := wf.Order()
		if ord == nil {
			return workflow.ErrPrematureAction
		}
		ord.RemoveItem(code)
		return nil
	})
}

// AddCoupon применяет купон к заказу сессии.
func (s *Service) AddCoupon(id, code string) error {
	return s.withSession(id, func(wf *workflow.Workflow) error {
		ord := wf.Order()
		if ord == nil {
			return workflow.ErrPrematureAction
		}
		return ord.AddCoupon(code)
	})
}

// RemoveCoupon удаляет купон из заказа сессии.
func (s *Service) RemoveCoupon(id, code string) error {
	return s.withSession(id, func(wf *workflow.Workflow) error {
		ord := wf.Order()
		if ord == nil {
			return workflow.ErrPrematureAction
		}
		ord.RemoveCoupon(code)
		return nil
	})
}

// Checkout проводит заказ через проверку и цену, возвращая сумму к оплате.
func (s *Service) Checkout(ctx context.Context, id string) (float64, error) {
	var amount float64
	err := s.withSession(id, func(wf *workflow.Workflow) error {
		if err := wf.Validate(ctx); err != nil {
			return err
		}
		if err := wf.Price(ctx); err != nil {
			return err
		}
		var err error
		amount, err = wf.PaymentAmount()
		return err
	})
	return amount, err
}

// Place размещает заказ сессии с указанным способом оплаты.
func (s *Service) Place(ctx context.Context, id string, payment model.PaymentType) error {
	return s.withSession(id, func(wf *workflow.Workflow) error {
		return wf.Place(ctx, payment)
	})
}

// Track возвращает статус размещённого заказа сессии.
func (s *Service) Track(ctx context.Context, id string) (tracking.Status, error) {
	var status tracking.Status
	err := s.withSession(id, func(wf *workflow.Workflow) error {
		var err error
		status, err = wf.Track(ctx)
		return err
	})
	return status, err
}

// Status возвращает состояние автомата сессии и сведения об отказе.
func (s *Service) Status(id string) (workflow.State, *workflow.Failure, error) {
	session, err := s.session(id)
	if err != nil {
		return "", nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	return session.Workflow.State(), session.Workflow.Failure(), nil
}

// Abort переводит сессию в терминальный отказ по запросу клиента.
// Завершённую сессию можно удалить из реестра.
func (s *Service) Abort(id string) error {
	if err := s.withSession(id, func(wf *workflow.Workflow) error {
		wf.Abort()
		return nil
	}); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}
