package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/utafrali/promarket/internal/checkoutform"
	"github.com/utafrali/promarket/internal/domain"
	"github.com/utafrali/promarket/pkg/httpclient"
)

// OrderLine is one cart entry in the checkout request.
type OrderLine struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// Order is the checkout request body.
type Order struct {
	Name           string      `json:"name"`
	Address        string      `json:"address"`
	City           string      `json:"city"`
	PostalCode     string      `json:"postal_code"`
	Email          string      `json:"email"`
	CardNumber     string      `json:"card_number"`
	Expiry         string      `json:"expiry"`
	CVV            string      `json:"cvv"`
	CardholderName string      `json:"cardholder_name"`
	Cart           []OrderLine `json:"cart"`
}

// NewOrder builds the request from the draft and the cart. The card number
// goes out as digits only; every other field as entered.
func NewOrder(d checkoutform.Draft, snap domain.Snapshot) Order {
	lines := make([]OrderLine, 0, len(snap.Items))
	for _, item := range snap.Items {
		lines = append(lines, OrderLine{
			ID:       item.ID,
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
		})
	}
	return Order{
		Name:           d.Name.Raw,
		Address:        d.Address.Raw,
		City:           d.City.Raw,
		PostalCode:     d.PostalCode.Raw,
		Email:          d.Email.Raw,
		CardNumber:     d.CardNumber.Raw,
		Expiry:         d.Expiry.Formatted,
		CVV:            d.SecurityCode.Raw,
		CardholderName: d.CardholderName.Raw,
		Cart:           lines,
	}
}

// Backend places orders.
type Backend interface {
	PlaceOrder(ctx context.Context, order Order) (orderID string, err error)
}

// RejectedError is a non-2xx answer from the checkout backend.
type RejectedError struct {
	StatusCode int
	// Message is the backend's error string, empty when it sent none.
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("checkout rejected with status %d", e.StatusCode)
	}
	return fmt.Sprintf("checkout rejected with status %d: %s", e.StatusCode, e.Message)
}

// HTTPBackend posts orders to the checkout endpoint.
type HTTPBackend struct {
	client httpclient.Doer
	url    string
	logger *slog.Logger
}

// NewHTTPBackend creates a backend for the checkout endpoint at url. client
// should not retry: an order is placed at most once per submission.
func NewHTTPBackend(client httpclient.Doer, url string, logger *slog.Logger) *HTTPBackend {
	return &HTTPBackend{client: client, url: url, logger: logger}
}

type placeOrderResponse struct {
	OrderID domain.ID `json:"order_id"`
}

// PlaceOrder sends order and returns the backend's order id. The status code
// alone decides success: a 2xx whose body carries no readable order id still
// means the order was placed, and yields an empty id.
func (b *HTTPBackend) PlaceOrder(ctx context.Context, order Order) (string, error) {
	req, err := httpclient.NewJSONRequest(ctx, http.MethodPost, b.url, order)
	if err != nil {
		return "", err
	}

	resp, err := b.client.Do(ctx, req)
	if err != nil {
		var serverErr *httpclient.ServerError
		if errors.As(err, &serverErr) {
			return "", &RejectedError{
				StatusCode: serverErr.StatusCode,
				Message:    httpclient.ErrorMessage(serverErr.Body),
			}
		}
		return "", fmt.Errorf("call checkout backend: %w", err)
	}

	if !httpclient.IsSuccess(resp.StatusCode) {
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return "", &RejectedError{
			StatusCode: resp.StatusCode,
			Message:    httpclient.ErrorMessage(body),
		}
	}

	return b.orderID(ctx, resp), nil
}

// orderID reads the order id from a successful response and closes its body.
func (b *HTTPBackend) orderID(ctx context.Context, resp *http.Response) string {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		b.logger.WarnContext(ctx, "order placed but response unreadable",
			slog.Int("status", resp.StatusCode),
			slog.String("error", err.Error()),
		)
		return ""
	}

	var out placeOrderResponse
	if err := json.Unmarshal(body, &out); err != nil || out.OrderID == "" {
		attrs := []any{slog.Int("status", resp.StatusCode), slog.Int("body_bytes", len(body))}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		b.logger.WarnContext(ctx, "order placed without an order id", attrs...)
		return ""
	}
	return string(out.OrderID)
}
