// Package checkoutform formats checkout input as it is typed and decides
// whether the order can be submitted.
package checkoutform

import (
	"errors"
	"fmt"
	"sync"

	apperrors "github.com/utafrali/promarket/pkg/errors"
	"github.com/utafrali/promarket/pkg/validator"
)

// Field names a checkout input. Values match the checkout request's JSON keys.
type Field string

const (
	FieldName           Field = "name"
	FieldAddress        Field = "address"
	FieldCity           Field = "city"
	FieldPostalCode     Field = "postal_code"
	FieldEmail          Field = "email"
	FieldCardNumber     Field = "card_number"
	FieldExpiry         Field = "expiry"
	FieldSecurityCode   Field = "cvv"
	FieldCardholderName Field = "cardholder_name"
)

// Fields lists every checkout input in form order.
func Fields() []Field {
	return []Field{
		FieldName, FieldAddress, FieldCity, FieldPostalCode, FieldEmail,
		FieldCardNumber, FieldExpiry, FieldSecurityCode, FieldCardholderName,
	}
}

// ParseField maps a field name to a Field.
func ParseField(name string) (Field, error) {
	for _, f := range Fields() {
		if string(f) == name {
			return f, nil
		}
	}
	return "", apperrors.InvalidInput(fmt.Sprintf("unknown checkout field %q", name))
}

// Value is one input's normalized value and its display form. Raw is what
// is validated and submitted.
type Value struct {
	Raw       string `json:"raw"`
	Formatted string `json:"formatted"`
}

// Draft is the checkout input being edited. It is never persisted.
type Draft struct {
	Name           Value `json:"name"`
	Address        Value `json:"address"`
	City           Value `json:"city"`
	PostalCode     Value `json:"postal_code"`
	Email          Value `json:"email"`
	CardNumber     Value `json:"card_number"`
	Expiry         Value `json:"expiry"`
	SecurityCode   Value `json:"cvv"`
	CardholderName Value `json:"cardholder_name"`
}

func (d *Draft) field(f Field) *Value {
	switch f {
	case FieldName:
		return &d.Name
	case FieldAddress:
		return &d.Address
	case FieldCity:
		return &d.City
	case FieldPostalCode:
		return &d.PostalCode
	case FieldEmail:
		return &d.Email
	case FieldCardNumber:
		return &d.CardNumber
	case FieldExpiry:
		return &d.Expiry
	case FieldSecurityCode:
		return &d.SecurityCode
	case FieldCardholderName:
		return &d.CardholderName
	default:
		return nil
	}
}

// Get returns the value of f.
func (d Draft) Get(f Field) Value {
	if v := d.field(f); v != nil {
		return *v
	}
	return Value{}
}

// requirements is the validated view of a draft.
type requirements struct {
	Name           string `json:"name" validate:"notblank"`
	Address        string `json:"address" validate:"notblank"`
	City           string `json:"city" validate:"notblank"`
	PostalCode     string `json:"postal_code" validate:"notblank"`
	Email          string `json:"email" validate:"notblank"`
	CardNumber     string `json:"card_number" validate:"min=15"`
	Expiry         string `json:"expiry" validate:"min=5"`
	SecurityCode   string `json:"cvv" validate:"min=3"`
	CardholderName string `json:"cardholder_name" validate:"notblank"`
}

func requirementsOf(d Draft) requirements {
	return requirements{
		Name:           d.Name.Raw,
		Address:        d.Address.Raw,
		City:           d.City.Raw,
		PostalCode:     d.PostalCode.Raw,
		Email:          d.Email.Raw,
		CardNumber:     d.CardNumber.Raw,
		Expiry:         d.Expiry.Formatted,
		SecurityCode:   d.SecurityCode.Raw,
		CardholderName: d.CardholderName.Raw,
	}
}

// State is the form as the page shows it.
type State struct {
	Draft  Draft             `json:"draft"`
	Brand  string            `json:"brand"`
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Controller owns a checkout draft and recomputes its validity on every
// input.
type Controller struct {
	mu     sync.RWMutex
	draft  Draft
	valid  bool
	errors map[string]string
}

// NewController creates a controller over an empty draft.
func NewController() *Controller {
	c := &Controller{}
	c.revalidate()
	return c
}

// Input sets field f from the user's input, applying its formatting rule.
func (c *Controller) Input(f Field, input string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.draft.field(f)
	if v == nil {
		return c.stateLocked(), apperrors.InvalidInput(fmt.Sprintf("unknown checkout field %q", f))
	}
	*v = format(f, input)
	c.revalidate()
	return c.stateLocked(), nil
}

func format(f Field, input string) Value {
	switch f {
	case FieldCardNumber:
		digits, display := FormatCardNumber(input)
		return Value{Raw: digits, Formatted: display}
	case FieldExpiry:
		digits, display := FormatExpiry(input)
		return Value{Raw: digits, Formatted: display}
	case FieldSecurityCode:
		code := FormatSecurityCode(input)
		return Value{Raw: code, Formatted: code}
	default:
		return Value{Raw: input, Formatted: input}
	}
}

// revalidate recomputes validity. Callers hold c.mu or own c exclusively.
func (c *Controller) revalidate() {
	err := validator.Validate(requirementsOf(c.draft))
	if err == nil {
		c.valid, c.errors = true, nil
		return
	}
	c.valid = false
	var verr *validator.ValidationError
	if errors.As(err, &verr) {
		c.errors = verr.Fields()
		return
	}
	c.errors = map[string]string{"form": err.Error()}
}

// State returns the current draft, brand and validity.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	var errs map[string]string
	if len(c.errors) > 0 {
		errs = make(map[string]string, len(c.errors))
		for k, v := range c.errors {
			errs[k] = v
		}
	}
	return State{
		Draft:  c.draft,
		Brand:  CardBrand(c.draft.CardNumber.Raw),
		Valid:  c.valid,
		Errors: errs,
	}
}

// Draft returns a copy of the current draft.
func (c *Controller) Draft() Draft {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.draft
}

// Valid reports whether every field passes its rule.
func (c *Controller) Valid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.valid
}

// SubmitEnabled reports whether the order may be submitted: the form is
// valid and the cart has items.
func (c *Controller) SubmitEnabled(cartEmpty bool) bool {
	return c.Valid() && !cartEmpty
}

// Reset empties the draft.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = Draft{}
	c.revalidate()
}
