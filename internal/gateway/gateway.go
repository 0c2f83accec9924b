// Package gateway инкапсулирует HTTP-взаимодействие с удалённым API заказа.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// StatusSentinel — общее для удалённого API и шлюза значение Status,
// обозначающее отказ шага. Транспортный сбой на этом уровне
// неотличим от отрицательного ответа удалённой системы.
const StatusSentinel = -1

// Client выполняет запросы к удалённому API заказа.
type Client struct {
	httpClient *http.Client
}

// NewClient создаёт HTTP-клиент удалённого API с ограничением времени запроса.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetJSON выполняет GET-запрос и декодирует тело ответа в out.
// Дополнительные заголовки передаются через headers, nil допустим.
func (c *Client) GetJSON(ctx context.Context, url string, headers http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// PostOrder отправляет тело {"Order": order} на указанную конечную точку.
// Тело сериализуется без пробелов вне строковых литералов, как того
// ожидает удалённый API. При HTTP-статусе, отличном от 200, возвращается
// сентинел-ответ со Status = -1, без ошибки: вызывающая сторона обязана
// обрабатывать его так же, как отрицательный ответ удалённой системы.
func (c *Client) PostOrder(ctx context.Context, url, referer string, order any) (*StepResponse, error) {
	body, err := json.Marshal(map[string]any{"Order": order})
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", referer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("do request: %w", ctx.Err())
		}
		return &StepResponse{Status: StatusSentinel}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StepResponse{Status: StatusSentinel}, nil
	}

	var step StepResponse
	if err := json.NewDecoder(resp.Body).Decode(&step); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &step, nil
}
