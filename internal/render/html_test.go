package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/promarket/internal/domain"
)

func newTestHTML(t *testing.T) *HTML {
	t.Helper()
	h, err := NewHTML()
	require.NoError(t, err)
	return h
}

func TestHTML_PageFragment(t *testing.T) {
	h := newTestHTML(t)
	v := New(DefaultConfig()).Project(twoItemSnapshot(), Page)

	var buf bytes.Buffer
	require.NoError(t, h.WriteSurface(&buf, Page, v))

	out := buf.String()
	assert.Contains(t, out, `<dd id="cart-page-subtotal">$25.00</dd>`)
	assert.Contains(t, out, `<dd id="cart-page-tax">$2.00</dd>`)
	assert.Contains(t, out, `<dd id="cart-page-total">$27.00</dd>`)
	assert.Contains(t, out, `data-action="increment" data-id="1"`)
	assert.Contains(t, out, `data-action="remove" data-id="2"`)
}

func TestHTML_QuantitySitsBetweenSteppers(t *testing.T) {
	h := newTestHTML(t)
	snap := domain.NewSnapshot([]domain.LineItem{
		{ID: "1", Name: "Headphones", Price: 10, Image: "/img/1.jpg", Quantity: 3},
	})
	v := New(DefaultConfig()).Project(snap, Drawer)

	var buf bytes.Buffer
	require.NoError(t, h.WriteSurface(&buf, Drawer, v))

	out := buf.String()
	dec := strings.Index(out, `data-action="decrement"`)
	qty := strings.Index(out, `<span class="cart-item-count">3</span>`)
	inc := strings.Index(out, `data-action="increment"`)
	rm := strings.Index(out, `data-action="remove"`)
	require.True(t, dec >= 0 && qty >= 0 && inc >= 0 && rm >= 0, out)
	assert.Less(t, dec, qty)
	assert.Less(t, qty, inc)
	assert.Less(t, inc, rm)
}

func TestHTML_CheckoutFragmentHasNoControls(t *testing.T) {
	h := newTestHTML(t)
	v := New(DefaultConfig()).Project(twoItemSnapshot(), Checkout)

	var buf bytes.Buffer
	require.NoError(t, h.WriteSurface(&buf, Checkout, v))

	out := buf.String()
	assert.Contains(t, out, `<dd id="checkout-total">$25.00</dd>`)
	assert.NotContains(t, out, "data-action")
}

func TestHTML_EmptyDrawer(t *testing.T) {
	h := newTestHTML(t)
	v := New(DefaultConfig()).Project(domain.NewSnapshot(nil), Drawer)

	var buf bytes.Buffer
	require.NoError(t, h.WriteSurface(&buf, Drawer, v))

	assert.Contains(t, buf.String(), "Your cart is empty.")
	assert.Contains(t, buf.String(), `<span id="cart-subtotal">$0.00</span>`)
}

func TestHTML_Badge(t *testing.T) {
	h := newTestHTML(t)
	v := New(DefaultConfig()).Project(domain.NewSnapshot(nil), Badge)

	var buf bytes.Buffer
	require.NoError(t, h.WriteSurface(&buf, Badge, v))

	assert.Equal(t, `<span id="cart-badge">0</span>`, buf.String())
}

func TestHTML_EscapesItemFields(t *testing.T) {
	h := newTestHTML(t)
	snap := domain.NewSnapshot([]domain.LineItem{
		{ID: "x", Name: `<script>alert(1)</script>`, Price: 1, Image: `javascript:alert(1)`, Quantity: 1},
	})
	v := New(DefaultConfig()).Project(snap, Drawer)

	var buf bytes.Buffer
	require.NoError(t, h.WriteSurface(&buf, Drawer, v))

	out := buf.String()
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, `src="javascript:`)
}

func TestHTML_AbsentSurfaceWritesNothing(t *testing.T) {
	h := newTestHTML(t)
	v := New(DefaultConfig()).Project(twoItemSnapshot(), Badge)

	var buf bytes.Buffer
	require.NoError(t, h.WriteSurface(&buf, Page, v))

	assert.Zero(t, buf.Len())
}

func TestHTML_RejectsSurfaceSets(t *testing.T) {
	h := newTestHTML(t)

	err := h.WriteSurface(&bytes.Buffer{}, Drawer|Page, View{})

	assert.Error(t, err)
}
