package http

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/promarket/internal/checkoutform"
	"github.com/utafrali/promarket/internal/domain"
	"github.com/utafrali/promarket/internal/render"
	"github.com/utafrali/promarket/internal/session"
	"github.com/utafrali/promarket/internal/submission"
	apperrors "github.com/utafrali/promarket/pkg/errors"
	"github.com/utafrali/promarket/pkg/httputil"
	"github.com/utafrali/promarket/pkg/validator"
)

// Catalog resolves products by id.
type Catalog interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id string) (domain.Product, error)
}

// StorefrontHandler serves the cart, checkout and catalog endpoints for the
// session stored in the request context.
type StorefrontHandler struct {
	catalog Catalog
	html    *render.HTML
	logger  *slog.Logger
}

// NewStorefrontHandler creates a new storefront HTTP handler.
func NewStorefrontHandler(catalog Catalog, html *render.HTML, logger *slog.Logger) *StorefrontHandler {
	return &StorefrontHandler{
		catalog: catalog,
		html:    html,
		logger:  logger,
	}
}

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding a product to the cart.
type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"notblank"`
}

// FieldInputRequest carries what the shopper typed into a checkout field.
type FieldInputRequest struct {
	Value string `json:"value"`
}

// --- Responses ---

// CartResponse is the cart as drawn on the requested surfaces.
type CartResponse struct {
	ItemCount int         `json:"item_count"`
	Subtotal  float64     `json:"subtotal"`
	View      render.View `json:"view"`
}

// CheckoutFormResponse is the checkout page's form and submit control.
type CheckoutFormResponse struct {
	Form    checkoutform.State `json:"form"`
	Control submission.Control `json:"control"`
	Status  submission.Status  `json:"status"`
	Notices []string           `json:"notices,omitempty"`
}

// CheckoutResponse is returned when an order has been placed.
type CheckoutResponse struct {
	Status   submission.Status `json:"status"`
	OrderID  string            `json:"order_id"`
	Redirect string            `json:"redirect"`
}

// --- Cart handlers ---

// GetCart handles GET /api/v1/storefront/cart?surfaces=drawer,badge
func (h *StorefrontHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w, r, sessionFromContext(r.Context()))
}

// GetFragment handles GET /api/v1/storefront/cart/fragments/{surface}
func (h *StorefrontHandler) GetFragment(w http.ResponseWriter, r *http.Request) {
	surface, err := render.ParseSurface(chi.URLParam(r, "surface"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	sess := sessionFromContext(r.Context())
	var buf bytes.Buffer
	if err := h.html.WriteSurface(&buf, surface, sess.Display.View()); err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteHTML(w, http.StatusOK, buf.Bytes())
}

// AddItem handles POST /api/v1/storefront/cart/items
func (h *StorefrontHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	product, err := h.catalog.Get(r.Context(), req.ProductID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	sess := sessionFromContext(r.Context())
	sess.Store.Add(r.Context(), product)
	h.writeCart(w, r, sess)
}

// IncrementItem handles POST /api/v1/storefront/cart/items/{id}/increment
func (h *StorefrontHandler) IncrementItem(w http.ResponseWriter, r *http.Request) {
	h.changeQuantity(w, r, 1)
}

// DecrementItem handles POST /api/v1/storefront/cart/items/{id}/decrement
func (h *StorefrontHandler) DecrementItem(w http.ResponseWriter, r *http.Request) {
	h.changeQuantity(w, r, -1)
}

func (h *StorefrontHandler) changeQuantity(w http.ResponseWriter, r *http.Request, delta int) {
	id := chi.URLParam(r, "id")
	sess := sessionFromContext(r.Context())
	if _, ok := sess.Store.ChangeQuantity(r.Context(), id, delta); !ok {
		h.writeError(w, r, apperrors.NotFound("cart item", id))
		return
	}
	h.writeCart(w, r, sess)
}

// RemoveItem handles DELETE /api/v1/storefront/cart/items/{id}
func (h *StorefrontHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess := sessionFromContext(r.Context())
	if _, ok := sess.Store.Remove(r.Context(), id); !ok {
		h.writeError(w, r, apperrors.NotFound("cart item", id))
		return
	}
	h.writeCart(w, r, sess)
}

// ClearCart handles DELETE /api/v1/storefront/cart
func (h *StorefrontHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	sess.Store.Clear(r.Context())
	h.writeCart(w, r, sess)
}

// writeCart answers with the session's current view, narrowed to the
// surfaces named in the query.
func (h *StorefrontHandler) writeCart(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	surfaces, err := render.ParseSurfaces(r.URL.Query().Get("surfaces"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	snap := sess.Store.Snapshot()
	httputil.WriteData(w, http.StatusOK, CartResponse{
		ItemCount: snap.ItemCount,
		Subtotal:  snap.Subtotal,
		View:      sess.Display.View().Only(surfaces),
	})
}

// --- Checkout handlers ---

// GetCheckoutForm handles GET /api/v1/storefront/checkout/form
func (h *StorefrontHandler) GetCheckoutForm(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	h.writeForm(w, sess, sess.Form.State())
}

// InputField handles PUT /api/v1/storefront/checkout/form/{field}
func (h *StorefrontHandler) InputField(w http.ResponseWriter, r *http.Request) {
	field, err := checkoutform.ParseField(chi.URLParam(r, "field"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req FieldInputRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	sess := sessionFromContext(r.Context())
	state, err := sess.Form.Input(field, req.Value)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeForm(w, sess, state)
}

func (h *StorefrontHandler) writeForm(w http.ResponseWriter, sess *session.Session, state checkoutform.State) {
	notices, _ := sess.Outbox.Drain()
	httputil.WriteData(w, http.StatusOK, CheckoutFormResponse{
		Form:    state,
		Control: sess.Workflow.Control(),
		Status:  sess.Workflow.Status(),
		Notices: notices,
	})
}

// Submit handles POST /api/v1/storefront/checkout
func (h *StorefrontHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	result, err := sess.Workflow.Submit(r.Context())

	// The response itself carries the outcome, so queued notices and the
	// redirect are consumed here.
	sess.Outbox.Drain()

	if err != nil {
		if errors.Is(err, apperrors.ErrCheckoutRejected) {
			h.logger.InfoContext(r.Context(), "checkout rejected", slog.String("message", result.Message))
		}
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, CheckoutResponse{
		Status:   result.Status,
		OrderID:  result.OrderID,
		Redirect: result.Redirect,
	})
}

// --- Catalog handlers ---

// ListCatalog handles GET /api/v1/storefront/catalog
func (h *StorefrontHandler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	httputil.WriteData(w, http.StatusOK, products)
}

func (h *StorefrontHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteError(w, r, err, h.logger)
}
