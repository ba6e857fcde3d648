package stock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

func qty(s string) types.Quantity { return types.MustQuantity(s) }

func allocationFor(t *testing.T, plan []Allocation, loc id.ID, ref string) types.Quantity {
	t.Helper()
	for _, a := range plan {
		if a.LocationID == loc && a.ProductRef == ref {
			return a.Quantity
		}
	}
	t.Fatalf("no allocation for %s/%s", loc, ref)
	return types.Zero()
}

func TestRedistribute_Proportional(t *testing.T) {
	item, a, b := id.New(), id.New(), id.New()
	rows := []LocationInventory{
		{ItemID: item, LocationID: a, ProductRef: "pa", Quantity: qty("60")},
		{ItemID: item, LocationID: b, ProductRef: "pb", Quantity: qty("40")},
	}

	plan := Redistribute(qty("150"), rows, nil, DefaultScale)

	require.Len(t, plan, 2)
	assert.True(t, allocationFor(t, plan, a, "pa").Equal(qty("90")))
	assert.True(t, allocationFor(t, plan, b, "pb").Equal(qty("60")))
}

func TestRedistribute_ConservesTotalWithThirds(t *testing.T) {
	item := id.New()
	var rows []LocationInventory
	for i := 0; i < 3; i++ {
		rows = append(rows, LocationInventory{ItemID: item, LocationID: id.New(), ProductRef: "p", Quantity: qty("1")})
	}

	plan := Redistribute(qty("10"), rows, nil, DefaultScale)

	require.Len(t, plan, 3)
	assert.True(t, SumAllocations(plan).Equal(qty("10")), "sum=%s", SumAllocations(plan))

	bumped := 0
	for _, p := range plan {
		switch {
		case p.Quantity.Equal(qty("3.3334")):
			bumped++
		case p.Quantity.Equal(qty("3.3333")):
		default:
			t.Fatalf("unexpected allocation %s", p.Quantity)
		}
	}
	assert.Equal(t, 1, bumped)
}

func TestRedistribute_EvenSplitWhenNoStock(t *testing.T) {
	item, a, b, closed := id.New(), id.New(), id.New(), id.New()
	links := []LocationLink{
		{ItemID: item, LocationID: a, ProductRef: "pa", LocationActive: true},
		{ItemID: item, LocationID: b, ProductRef: "pb", LocationActive: true},
		{ItemID: item, LocationID: closed, ProductRef: "pc", LocationActive: false},
	}

	plan := Redistribute(qty("7"), nil, links, DefaultScale)

	require.Len(t, plan, 2)
	assert.True(t, allocationFor(t, plan, a, "pa").Equal(qty("3.5")))
	assert.True(t, allocationFor(t, plan, b, "pb").Equal(qty("3.5")))
}

func TestRedistribute_NoLinksNoStockIsNoop(t *testing.T) {
	plan := Redistribute(qty("25"), nil, nil, DefaultScale)
	assert.Empty(t, plan)

	zeroRows := []LocationInventory{{ItemID: id.New(), LocationID: id.New(), ProductRef: "p", Quantity: qty("0")}}
	assert.Empty(t, Redistribute(qty("25"), zeroRows, nil, DefaultScale))
}

func TestRedistribute_SplitsAcrossProductRecords(t *testing.T) {
	item, a, b := id.New(), id.New(), id.New()
	rows := []LocationInventory{
		{ItemID: item, LocationID: a, ProductRef: "a-1", Quantity: qty("30")},
		{ItemID: item, LocationID: a, ProductRef: "a-2", Quantity: qty("20")},
		{ItemID: item, LocationID: b, ProductRef: "b-1", Quantity: qty("50")},
	}

	plan := Redistribute(qty("200"), rows, nil, DefaultScale)

	require.Len(t, plan, 3)
	assert.True(t, allocationFor(t, plan, a, "a-1").Equal(qty("50")))
	assert.True(t, allocationFor(t, plan, a, "a-2").Equal(qty("50")))
	assert.True(t, allocationFor(t, plan, b, "b-1").Equal(qty("100")))
}

func TestRedistribute_Idempotent(t *testing.T) {
	item, a, b, c := id.New(), id.New(), id.New(), id.New()
	rows := []LocationInventory{
		{ItemID: item, LocationID: a, ProductRef: "pa", Quantity: qty("13")},
		{ItemID: item, LocationID: b, ProductRef: "pb", Quantity: qty("7")},
		{ItemID: item, LocationID: c, ProductRef: "pc", Quantity: qty("1")},
	}

	first := Redistribute(qty("17"), rows, nil, DefaultScale)
	require.True(t, SumAllocations(first).Equal(qty("17")))

	next := make([]LocationInventory, len(first))
	for i, p := range first {
		next[i] = LocationInventory{ItemID: item, LocationID: p.LocationID, ProductRef: p.ProductRef, Quantity: p.Quantity}
	}
	second := Redistribute(qty("17"), next, nil, DefaultScale)

	require.Len(t, second, len(first))
	for _, p := range first {
		assert.True(t, allocationFor(t, second, p.LocationID, p.ProductRef).Equal(p.Quantity))
	}
}

func TestRedistribute_NegativeTotalClampsToZero(t *testing.T) {
	item, a := id.New(), id.New()
	rows := []LocationInventory{{ItemID: item, LocationID: a, ProductRef: "pa", Quantity: qty("4")}}

	plan := Redistribute(qty("-3"), rows, nil, DefaultScale)

	require.Len(t, plan, 1)
	assert.True(t, plan[0].Quantity.IsZero())
}
