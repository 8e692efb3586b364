// Package submission places the order for a session's cart and moves the
// checkout page between its idle, submitting, success and failure states.
package submission

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/promarket/internal/checkoutform"
	"github.com/utafrali/promarket/internal/editable"
	"github.com/utafrali/promarket/internal/store"
	apperrors "github.com/utafrali/promarket/pkg/errors"
	"github.com/utafrali/promarket/pkg/tracing"
)

// Status is the workflow state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusSubmitting Status = "submitting"
	StatusSuccess    Status = "success"
	StatusFailure    Status = "failure"
)

// Submit control labels.
const (
	LabelReady      = "Complete Order"
	LabelProcessing = "Processing..."
)

// Messages shown when the backend gives no reason.
const (
	MessageRejected = "Checkout failed"
	MessageError    = "An error occurred"
)

// ConfirmationPath is the page shown after a placed order.
const ConfirmationPath = "/confirmation/"

var (
	// ErrSubmitDisabled is returned when the form is invalid or the cart empty.
	ErrSubmitDisabled = apperrors.New("SUBMIT_DISABLED", apperrors.ErrUnprocessable,
		"checkout form is incomplete or the cart is empty")

	// ErrSubmitInProgress is returned while a submission is outstanding.
	ErrSubmitInProgress = apperrors.New("SUBMIT_IN_PROGRESS", apperrors.ErrConflict,
		"an order is already being placed")
)

var submissionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_checkout_submissions_total",
		Help: "Total number of checkout submissions by outcome",
	},
	[]string{"outcome"},
)

// Notifier shows a transient message to the shopper.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// Navigator moves the shopper to another page.
type Navigator interface {
	Navigate(ctx context.Context, path string)
}

// Control is the submit button as displayed.
type Control struct {
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
}

// Result describes how a submission ended.
type Result struct {
	Status   Status `json:"status"`
	OrderID  string `json:"order_id,omitempty"`
	Redirect string `json:"redirect,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Workflow submits one session's checkout.
type Workflow struct {
	store     *store.Store
	form      *checkoutform.Controller
	backend   Backend
	notifier  Notifier
	navigator Navigator
	logger    *slog.Logger

	mu     sync.Mutex
	status Status
	label  *editable.Field[string]
}

// New creates a workflow in the idle state.
func New(
	s *store.Store,
	form *checkoutform.Controller,
	backend Backend,
	notifier Notifier,
	navigator Navigator,
	logger *slog.Logger,
) *Workflow {
	return &Workflow{
		store:     s,
		form:      form,
		backend:   backend,
		notifier:  notifier,
		navigator: navigator,
		logger:    logger,
		status:    StatusIdle,
		label:     editable.NewField(LabelReady),
	}
}

// Status returns the current state.
func (w *Workflow) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Control returns the submit button's label and whether it can be pressed.
func (w *Workflow) Control() Control {
	w.mu.Lock()
	submitting := w.status == StatusSubmitting
	w.mu.Unlock()

	return Control{
		Label:   w.label.Get(),
		Enabled: !submitting && w.form.SubmitEnabled(w.store.Snapshot().IsEmpty()),
	}
}

// Submit places the order. It refuses to start while the control is
// disabled. A rejected or failed request notifies the shopper, leaves the
// cart untouched and returns the error; the workflow can then be submitted
// again. Cancelling ctx does not abandon a request already sent.
func (w *Workflow) Submit(ctx context.Context) (Result, error) {
	w.mu.Lock()
	if w.status == StatusSubmitting {
		w.mu.Unlock()
		submissionsTotal.WithLabelValues("in_progress").Inc()
		return Result{Status: StatusSubmitting}, ErrSubmitInProgress
	}
	snap := w.store.Snapshot()
	if !w.form.SubmitEnabled(snap.IsEmpty()) {
		status := w.status
		w.mu.Unlock()
		submissionsTotal.WithLabelValues("disabled").Inc()
		return Result{Status: status}, ErrSubmitDisabled
	}
	w.status = StatusSubmitting
	w.mu.Unlock()

	ctx, span := tracing.Start(context.WithoutCancel(ctx), "checkout.submit",
		attribute.Int("cart.item_count", snap.ItemCount),
		attribute.Float64("cart.subtotal", snap.Subtotal),
	)
	order := NewOrder(w.form.Draft(), snap)

	var orderID string
	err := w.label.Apply(ctx, LabelProcessing, func(ctx context.Context) error {
		id, err := w.backend.PlaceOrder(ctx, order)
		orderID = id
		return err
	})
	if err != nil {
		tracing.End(span, err)
		return w.fail(ctx, err)
	}
	span.SetAttributes(attribute.String("order.id", orderID))
	tracing.End(span, nil)

	w.store.Clear(ctx)
	w.form.Reset()
	w.label.Set(LabelReady)

	w.mu.Lock()
	w.status = StatusSuccess
	w.mu.Unlock()

	submissionsTotal.WithLabelValues("success").Inc()
	w.logger.InfoContext(ctx, "order placed",
		slog.String("order_id", orderID),
		slog.Int("item_count", snap.ItemCount),
		slog.Float64("subtotal", snap.Subtotal),
	)

	redirect := confirmationPath(orderID)
	w.navigator.Navigate(ctx, redirect)
	return Result{Status: StatusSuccess, OrderID: orderID, Redirect: redirect}, nil
}

// confirmationPath is the redirect after a placed order. Without an id the
// shopper still leaves the checkout page.
func confirmationPath(orderID string) string {
	if orderID == "" {
		return strings.TrimSuffix(ConfirmationPath, "/")
	}
	return ConfirmationPath + url.PathEscape(orderID)
}

func (w *Workflow) fail(ctx context.Context, err error) (Result, error) {
	message := MessageError
	outcome := "error"
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		outcome = "rejected"
		message = MessageRejected
		if rejected.Message != "" {
			message = rejected.Message
		}
	}

	w.mu.Lock()
	w.status = StatusFailure
	w.mu.Unlock()

	submissionsTotal.WithLabelValues(outcome).Inc()
	w.logger.WarnContext(ctx, "checkout submission failed",
		slog.String("outcome", outcome),
		slog.String("error", err.Error()),
	)
	w.notifier.Notify(ctx, message)

	return Result{Status: StatusFailure, Message: message}, apperrors.CheckoutRejected(message)
}
