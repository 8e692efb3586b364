package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/promarket/internal/domain"
)

func twoItemSnapshot() domain.Snapshot {
	return domain.NewSnapshot([]domain.LineItem{
		{ID: "1", Name: "Headphones", Price: 10.00, Image: "/img/1.jpg", Quantity: 2},
		{ID: "2", Name: "Cable", Price: 5.00, Image: "/img/2.jpg", Quantity: 1},
	})
}

// ============================================================================
// Project Tests
// ============================================================================

func TestProject_PageTotalsIncludeTax(t *testing.T) {
	r := New(DefaultConfig())

	v := r.Project(twoItemSnapshot(), Page)

	require.NotNil(t, v.Page)
	assert.Equal(t, "$25.00", v.Page.Subtotal.Display)
	assert.Equal(t, "$2.00", v.Page.Tax.Display)
	assert.Equal(t, "$27.00", v.Page.Total.Display)
}

func TestProject_CheckoutTotalExcludesTax(t *testing.T) {
	r := New(DefaultConfig())

	v := r.Project(twoItemSnapshot(), Checkout)

	require.NotNil(t, v.Checkout)
	assert.Equal(t, "$25.00", v.Checkout.Subtotal.Display)
	assert.Equal(t, "$25.00", v.Checkout.Total.Display)
}

func TestProject_DrawerShowsSubtotal(t *testing.T) {
	r := New(DefaultConfig())

	v := r.Project(twoItemSnapshot(), Drawer)

	require.NotNil(t, v.Drawer)
	assert.Equal(t, "$25.00", v.Drawer.Subtotal.Display)
	require.Len(t, v.Drawer.Rows, 2)
	row := v.Drawer.Rows[0]
	assert.Equal(t, "Headphones", row.Name)
	assert.Equal(t, "$10.00", row.UnitPrice.Display)
	assert.Equal(t, 2, row.Quantity)
	assert.Equal(t, "$20.00", row.LineTotal.Display)
}

func TestProject_RowsKeepInsertionOrder(t *testing.T) {
	r := New(DefaultConfig())

	v := r.Project(twoItemSnapshot(), Page)

	require.Len(t, v.Page.Rows, 2)
	assert.Equal(t, "1", v.Page.Rows[0].ID)
	assert.Equal(t, "2", v.Page.Rows[1].ID)
}

func TestProject_ControlsOnlyOnDrawerAndPage(t *testing.T) {
	r := New(DefaultConfig())

	v := r.Project(twoItemSnapshot(), AllSurfaces)

	for _, row := range v.Drawer.Rows {
		assert.Len(t, row.Controls, 3)
	}
	for _, row := range v.Page.Rows {
		assert.Len(t, row.Controls, 3)
	}
	for _, row := range v.Checkout.Rows {
		assert.Empty(t, row.Controls, "checkout rows are read-only")
	}

	actions := make([]string, 0, 3)
	for _, c := range v.Drawer.Rows[0].Controls {
		actions = append(actions, c.Action)
	}
	assert.ElementsMatch(t, []string{"increment", "decrement", "remove"}, actions)
}

func TestProject_EmptyCart(t *testing.T) {
	r := New(DefaultConfig())

	v := r.Project(domain.NewSnapshot(nil), AllSurfaces)

	for _, l := range []List{v.Drawer.List, v.Page.List, v.Checkout.List} {
		assert.True(t, l.Empty)
		assert.Equal(t, DefaultEmptyMessage, l.EmptyMessage)
		assert.Empty(t, l.Rows)
		assert.Equal(t, "$0.00", l.Subtotal.Display)
	}
	assert.Equal(t, "$0.00", v.Page.Tax.Display)
	assert.Equal(t, "$0.00", v.Page.Total.Display)
	require.NotNil(t, v.Badge)
	assert.Equal(t, 0, v.Badge.Count)
}

func TestProject_AbsentSurfacesAreNil(t *testing.T) {
	r := New(DefaultConfig())

	v := r.Project(twoItemSnapshot(), Drawer|Badge)

	assert.NotNil(t, v.Drawer)
	assert.NotNil(t, v.Badge)
	assert.Nil(t, v.Page)
	assert.Nil(t, v.Checkout)

	none := r.Project(twoItemSnapshot(), 0)
	assert.Equal(t, View{}, none)
}

func TestProject_BadgeCountsQuantities(t *testing.T) {
	r := New(DefaultConfig())

	v := r.Project(twoItemSnapshot(), Badge)

	assert.Equal(t, 3, v.Badge.Count)
}

func TestProject_Idempotent(t *testing.T) {
	r := New(DefaultConfig())
	snap := twoItemSnapshot()

	assert.Equal(t, r.Project(snap, AllSurfaces), r.Project(snap, AllSurfaces))
}

func TestProject_CustomConfig(t *testing.T) {
	r := New(Config{TaxRate: 0.2, CurrencySymbol: "€", EmptyMessage: "Nothing here"})

	v := r.Project(twoItemSnapshot(), Page)
	assert.Equal(t, "€5.00", v.Page.Tax.Display)
	assert.Equal(t, "€30.00", v.Page.Total.Display)

	empty := r.Project(domain.NewSnapshot(nil), Drawer)
	assert.Equal(t, "Nothing here", empty.Drawer.EmptyMessage)
}

func TestNew_FillsDefaults(t *testing.T) {
	r := New(Config{TaxRate: -1})

	assert.Equal(t, "$1.50", r.Money(1.5).Display)
	v := r.Project(twoItemSnapshot(), Page)
	assert.Equal(t, "$0.00", v.Page.Tax.Display)
}

func TestMoney_Rounding(t *testing.T) {
	r := New(DefaultConfig())

	assert.Equal(t, "$0.30", r.Money(0.1+0.2).Display)
	assert.Equal(t, "$19.99", r.Money(19.99).Display)
	assert.Equal(t, "$1000.00", r.Money(1000).Display)
}

// ============================================================================
// Surface Tests
// ============================================================================

func TestParseSurfaces(t *testing.T) {
	tests := []struct {
		in      string
		want    Surface
		wantErr bool
	}{
		{"", AllSurfaces, false},
		{"drawer", Drawer, false},
		{"drawer,badge", Drawer | Badge, false},
		{" Page , checkout ,", Page | Checkout, false},
		{"drawer,sidebar", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSurfaces(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSurface_String(t *testing.T) {
	assert.Equal(t, "drawer,badge", (Drawer | Badge).String())
	assert.Equal(t, "none", Surface(0).String())
	assert.Equal(t, "drawer,page,checkout,badge", AllSurfaces.String())
}

func TestSurface_Has(t *testing.T) {
	assert.True(t, AllSurfaces.Has(Checkout))
	assert.False(t, Drawer.Has(Page))
	assert.False(t, Drawer.Has(0))
}

func TestView_Only(t *testing.T) {
	full := New(DefaultConfig()).Project(twoItemSnapshot(), AllSurfaces)

	v := full.Only(Badge | Checkout)
	assert.Nil(t, v.Drawer)
	assert.Nil(t, v.Page)
	require.NotNil(t, v.Badge)
	require.NotNil(t, v.Checkout)
	assert.Same(t, full.Badge, v.Badge)

	assert.Equal(t, View{}, full.Only(0))
	assert.Equal(t, full, full.Only(AllSurfaces))
}
