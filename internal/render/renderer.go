// Package render projects cart snapshots onto the storefront's display
// surfaces. Projection is pure: the same snapshot always yields the same
// view, and the renderer keeps no state of its own.
package render

import (
	"fmt"

	"github.com/utafrali/promarket/internal/domain"
)

// Rendering defaults.
const (
	DefaultTaxRate        = 0.08
	DefaultCurrencySymbol = "$"
	DefaultEmptyMessage   = "Your cart is empty."
)

// Config controls money formatting and the page surface's tax.
type Config struct {
	TaxRate        float64
	CurrencySymbol string
	EmptyMessage   string
}

// DefaultConfig returns the storefront's standard rendering settings.
func DefaultConfig() Config {
	return Config{
		TaxRate:        DefaultTaxRate,
		CurrencySymbol: DefaultCurrencySymbol,
		EmptyMessage:   DefaultEmptyMessage,
	}
}

// Money is an amount together with its display string.
type Money struct {
	Amount  float64 `json:"amount"`
	Display string  `json:"display"`
}

// Control is an action offered on an editable row.
type Control struct {
	Action string `json:"action"`
	Label  string `json:"label"`
	// Delta is the quantity change for increment and decrement, zero for remove.
	Delta int `json:"delta,omitempty"`
}

// Row is one line item as shown on a surface.
type Row struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Image     string    `json:"image"`
	UnitPrice Money     `json:"unit_price"`
	Quantity  int       `json:"quantity"`
	LineTotal Money     `json:"line_total"`
	Controls  []Control `json:"controls,omitempty"`
}

// List is the part shared by every list surface.
type List struct {
	Empty        bool   `json:"empty"`
	EmptyMessage string `json:"empty_message,omitempty"`
	Rows         []Row  `json:"rows"`
	Subtotal     Money  `json:"subtotal"`
}

// DrawerView is the slide-out summary.
type DrawerView struct {
	List
}

// PageView is the full-page cart, the only surface that shows tax.
type PageView struct {
	List
	Tax   Money `json:"tax"`
	Total Money `json:"total"`
}

// CheckoutView is the read-only summary beside the checkout form. Its total
// does not include tax.
type CheckoutView struct {
	List
	Total Money `json:"total"`
}

// BadgeView is the item counter in the header.
type BadgeView struct {
	Count int `json:"count"`
}

// View holds one projection per surface. Surfaces not present on the page
// are nil.
type View struct {
	Drawer   *DrawerView   `json:"drawer,omitempty"`
	Page     *PageView     `json:"page,omitempty"`
	Checkout *CheckoutView `json:"checkout,omitempty"`
	Badge    *BadgeView    `json:"badge,omitempty"`
}

// Only returns v restricted to the surfaces in s.
func (v View) Only(s Surface) View {
	var out View
	if s.Has(Drawer) {
		out.Drawer = v.Drawer
	}
	if s.Has(Page) {
		out.Page = v.Page
	}
	if s.Has(Checkout) {
		out.Checkout = v.Checkout
	}
	if s.Has(Badge) {
		out.Badge = v.Badge
	}
	return out
}

// Renderer turns snapshots into views.
type Renderer struct {
	cfg Config
}

// New creates a Renderer. Empty strings in cfg fall back to the defaults.
func New(cfg Config) *Renderer {
	if cfg.TaxRate < 0 {
		cfg.TaxRate = 0
	}
	if cfg.CurrencySymbol == "" {
		cfg.CurrencySymbol = DefaultCurrencySymbol
	}
	if cfg.EmptyMessage == "" {
		cfg.EmptyMessage = DefaultEmptyMessage
	}
	return &Renderer{cfg: cfg}
}

// Money formats an amount with the configured currency symbol.
func (r *Renderer) Money(amount float64) Money {
	return Money{
		Amount:  amount,
		Display: fmt.Sprintf("%s%.2f", r.cfg.CurrencySymbol, amount),
	}
}

// Project renders snap onto every surface in present.
func (r *Renderer) Project(snap domain.Snapshot, present Surface) View {
	var v View
	if present.Has(Drawer) {
		v.Drawer = &DrawerView{List: r.list(snap, true)}
	}
	if present.Has(Page) {
		tax := snap.Subtotal * r.cfg.TaxRate
		v.Page = &PageView{
			List:  r.list(snap, true),
			Tax:   r.Money(tax),
			Total: r.Money(snap.Subtotal + tax),
		}
	}
	if present.Has(Checkout) {
		v.Checkout = &CheckoutView{
			List:  r.list(snap, false),
			Total: r.Money(snap.Subtotal),
		}
	}
	if present.Has(Badge) {
		v.Badge = &BadgeView{Count: snap.ItemCount}
	}
	return v
}

func (r *Renderer) list(snap domain.Snapshot, editable bool) List {
	l := List{
		Rows:     make([]Row, 0, len(snap.Items)),
		Subtotal: r.Money(snap.Subtotal),
	}
	if snap.IsEmpty() {
		l.Empty = true
		l.EmptyMessage = r.cfg.EmptyMessage
		return l
	}
	for _, item := range snap.Items {
		row := Row{
			ID:        item.ID,
			Name:      item.Name,
			Image:     item.Image,
			UnitPrice: r.Money(item.Price),
			Quantity:  item.Quantity,
			LineTotal: r.Money(item.LineTotal()),
		}
		if editable {
			row.Controls = rowControls()
		}
		l.Rows = append(l.Rows, row)
	}
	return l
}

func rowControls() []Control {
	return []Control{
		{Action: "decrement", Label: "-", Delta: -1},
		{Action: "increment", Label: "+", Delta: 1},
		{Action: "remove", Label: "Remove"},
	}
}
