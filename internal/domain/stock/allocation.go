package stock

import (
	"sort"

	"github.com/shopspring/decimal"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// DefaultScale is the number of fractional digits kept for location quantities.
const DefaultScale int32 = 4

type allocationSlot struct {
	alloc     Allocation
	remainder decimal.Decimal
}

// Redistribute computes target quantities for every location record of an item
// so that they sum to total exactly at the given scale.
//
// When the current location rows hold stock, total is allocated in proportion
// to each location's existing share. Otherwise it is split evenly across the
// locations with an active link; with no such locations the plan is empty.
// A location's share is split evenly across its product records. Rounding uses
// the largest-remainder method, ties broken by location then product order.
func Redistribute(total types.Quantity, rows []LocationInventory, links []LocationLink, scale int32) []Allocation {
	total = types.ClampNonNegative(total).Round(scale)

	records := make(map[id.ID]map[string]struct{})
	weights := make(map[id.ID]decimal.Decimal)
	addRecord := func(loc id.ID, ref string) {
		if records[loc] == nil {
			records[loc] = make(map[string]struct{})
		}
		records[loc][ref] = struct{}{}
	}

	existing := decimal.Zero
	for _, r := range rows {
		addRecord(r.LocationID, r.ProductRef)
		q := types.ClampNonNegative(r.Quantity)
		weights[r.LocationID] = weights[r.LocationID].Add(q)
		existing = existing.Add(q)
	}

	active := make(map[id.ID]struct{})
	for _, l := range links {
		if !l.LocationActive {
			continue
		}
		addRecord(l.LocationID, l.ProductRef)
		active[l.LocationID] = struct{}{}
	}

	var locations []id.ID
	weightOf := func(loc id.ID) decimal.Decimal { return weights[loc] }
	weightSum := existing

	if existing.IsPositive() {
		for loc := range records {
			locations = append(locations, loc)
		}
	} else {
		for loc := range active {
			locations = append(locations, loc)
		}
		if len(locations) == 0 {
			return nil
		}
		one := decimal.NewFromInt(1)
		weightOf = func(id.ID) decimal.Decimal { return one }
		weightSum = decimal.NewFromInt(int64(len(locations)))
	}

	sort.Slice(locations, func(i, j int) bool {
		return locations[i].String() < locations[j].String()
	})

	slots := make([]allocationSlot, 0, len(locations))
	assigned := decimal.Zero
	for _, loc := range locations {
		refs := make([]string, 0, len(records[loc]))
		for ref := range records[loc] {
			refs = append(refs, ref)
		}
		sort.Strings(refs)

		share := total.Mul(weightOf(loc)).Div(weightSum)
		per := share.Div(decimal.NewFromInt(int64(len(refs))))
		floor := per.Truncate(scale)

		for _, ref := range refs {
			slots = append(slots, allocationSlot{
				alloc:     Allocation{LocationID: loc, ProductRef: ref, Quantity: floor},
				remainder: per.Sub(floor),
			})
			assigned = assigned.Add(floor)
		}
	}

	if len(slots) == 0 {
		return nil
	}

	unit := decimal.New(1, -scale)
	left := total.Sub(assigned).Div(unit).Round(0).IntPart()
	if left > 0 {
		order := make([]int, len(slots))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return slots[order[a]].remainder.GreaterThan(slots[order[b]].remainder)
		})
		for i := int64(0); i < left; i++ {
			s := &slots[order[i%int64(len(order))]]
			s.alloc.Quantity = s.alloc.Quantity.Add(unit)
		}
	}

	out := make([]Allocation, len(slots))
	for i, s := range slots {
		out[i] = s.alloc
	}
	return out
}

// SumAllocations returns the total quantity of a plan.
func SumAllocations(plan []Allocation) types.Quantity {
	total := decimal.Zero
	for _, a := range plan {
		total = total.Add(a.Quantity)
	}
	return total
}
