// Package resolver находит ближайшую открытую точку выдачи по адресу клиента
// и загружает её каталог.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/pizzaorder-system/internal/catalog"
	"github.com/mmeshcher/pizzaorder-system/internal/gateway"
	"github.com/mmeshcher/pizzaorder-system/internal/market"
	"github.com/mmeshcher/pizzaorder-system/internal/model"
)

// ErrNoOpenLocation возвращается, когда ни одна из найденных точек
// не в сети или не открыта для запрошенного способа получения.
var ErrNoOpenLocation = errors.New("no nearby location is open for the requested method")

// locatorResponse описывает ответ локатора удалённого API.
type locatorResponse struct {
	Stores []model.Location `json:"Stores"`
}

// Resolver выполняет резолюцию адреса в точку выдачи и её каталог.
type Resolver struct {
	gw        *gateway.Client
	endpoints market.Directory
	logger    *zap.Logger
}

// New создаёт резолвер с указанным шлюзом и справочником конечных точек.
func New(gw *gateway.Client, endpoints market.Directory, logger *zap.Logger) *Resolver {
	return &Resolver{
		gw:        gw,
		endpoints: endpoints,
		logger:    logger,
	}
}

// Resolve нормализует адрес, запрашивает локатор и возвращает первую точку,
// которая в сети и открыта для запрошенного способа получения. Удалённый API
// возвращает кандидатов отсортированными по близости, поэтому собственного
// ранжирования по расстоянию клиент не выполняет.
func (r *Resolver) Resolve(ctx context.Context, addr model.Address) (*model.Location, error) {
	country := addr.Country
	if country == "" {
		detected, err := market.DetectCountry(addr.PostalCode)
		if err != nil {
			return nil, err
		}
		country = detected
	}

	endpoints := r.endpoints(country)
	locatorURL := endpoints.LocatorURL(addr)

	var resp locatorResponse
	if err := r.gw.GetJSON(ctx, locatorURL, nil, &resp); err != nil {
		return nil, fmt.Errorf("query locator: %w", err)
	}

	for i := range resp.Stores {
		store := resp.Stores[i]
		if !store.IsOpenFor(addr.Method) {
			continue
		}
		store.Country = country
		r.logger.Info("location resolved",
			zap.String("storeID", store.StoreID),
			zap.String("country", string(country)))
		return &store, nil
	}

	return nil, ErrNoOpenLocation
}

// Menu загружает меню точки выдачи и строит её каталог.
func (r *Resolver) Menu(ctx context.Context, location *model.Location, lang string) (*catalog.Catalog, error) {
	endpoints := r.endpoints(location.Country)
	menuURL := endpoints.MenuURL(location.StoreID, lang)

	var menu catalog.MenuResponse
	if err := r.gw.GetJSON(ctx, menuURL, http.Header{"Accept": []string{"application/json"}}, &menu); err != nil {
		return nil, fmt.Errorf("fetch menu: %w", err)
	}

	return catalog.Build(menu), nil
}
