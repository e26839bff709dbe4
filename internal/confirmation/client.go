// Package confirmation отправляет заказ во внешнюю систему подтверждения.
package confirmation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// maxDrainBytes ограничивает дочитывание тела ответа перед закрытием.
const maxDrainBytes = 64 << 10

// Client выполняет POST на фиксированный адрес. Повторов нет.
type Client struct {
	url        string
	httpClient *http.Client
}

// Option настраивает Client.
type Option func(*Client)

// WithTimeout задаёт таймаут запроса. Ноль означает отсутствие таймаута уровня приложения.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient подменяет HTTP-клиент (тесты, прокси).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient создаёт клиента для адреса подтверждения.
func NewClient(url string, opts ...Option) (*Client, error) {
	if url == "" {
		return nil, errors.New("confirmation url is required")
	}

	c := &Client{
		url:        url,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Send отправляет тело как application/json и возвращает HTTP-статус.
// Ошибка транспорта оборачивает domain.ErrConfirmationTransport.
func (c *Client) Send(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", domain.ErrConfirmationTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrConfirmationTransport, err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	return resp.StatusCode, nil
}

// URL возвращает адрес подтверждения.
func (c *Client) URL() string {
	return c.url
}

var _ domain.ConfirmationSender = (*Client)(nil)
