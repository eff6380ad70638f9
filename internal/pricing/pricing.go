// Package pricing computes the money fields of an order line. It performs no
// I/O: callers resolve the catalog, coupon and delivery inputs first.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	"github.com/bazaarhq/bazaar-backend/pkg/types"
)

var (
	hundred = decimal.NewFromInt(100)

	// vatMultiplier grosses the commission up by the 16% VAT charged on it.
	vatMultiplier = decimal.RequireFromString("1.16")
)

// Destination is the buyer address matched against free-ship areas.
type Destination struct {
	ZipCode string
	City    string
	State   string
	Country string
}

// Shipping describes the shop's shipping settings and the free-ship rules
// that apply to one line. FreeShip is the product's own flag.
type Shipping struct {
	StoreWide        bool
	DefaultPrice     decimal.Decimal
	PerQuantityPrice decimal.Decimal
	FreeShip         bool
	CategoryFreeShip bool
	ShopFreeShip     bool
	FreeShipAreas    []types.FreeShipArea
}

// Waived reports whether a product, category or shop flag makes the line
// ship free everywhere.
func (s Shipping) Waived() bool {
	return s.FreeShip || s.CategoryFreeShip || s.ShopFreeShip
}

// Delivery is a resolved company and zone pair.
type Delivery struct {
	ZonePrice      decimal.Decimal
	SiteCommission decimal.Decimal
}

// LineInput carries everything needed to price a line.
type LineInput struct {
	Quantity           int
	Price              decimal.Decimal
	SalePrice          *decimal.Decimal
	VariantPrice       *decimal.Decimal
	VariantSalePrice   *decimal.Decimal
	TaxPercentage      decimal.Decimal
	DiscountPercentage decimal.Decimal
	CommissionRate     decimal.Decimal
	Shipping           Shipping
	Destination        Destination
	Delivery           *Delivery
}

// Line is the priced result. Every amount is in the site currency.
type Line struct {
	UnitPrice          decimal.Decimal
	BasePrice          decimal.Decimal
	ProductPrice       decimal.Decimal
	TaxPrice           decimal.Decimal
	ShippingPrice      decimal.Decimal
	DeliveryPrice      decimal.Decimal
	DeliveryCommission decimal.Decimal
	DeliveryBalance    decimal.Decimal
	TotalPrice         decimal.Decimal
	CommissionRate     decimal.Decimal
	Commission         decimal.Decimal
	Balance            decimal.Decimal
}

// Round2 rounds half away from zero to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// UnitPrice picks the price the buyer pays per unit: variant sale price,
// variant price, product sale price, then product price.
func UnitPrice(in LineInput) decimal.Decimal {
	for _, candidate := range []*decimal.Decimal{in.VariantSalePrice, in.VariantPrice, in.SalePrice} {
		if candidate != nil && candidate.IsPositive() {
			return *candidate
		}
	}
	return in.Price
}

// BasePrice is the list price commission is charged on.
func BasePrice(in LineInput) decimal.Decimal {
	if in.VariantPrice != nil && in.VariantPrice.IsPositive() {
		return *in.VariantPrice
	}
	return in.Price
}

// Price computes one line.
func Price(in LineInput) Line {
	qty := decimal.NewFromInt(int64(in.Quantity))
	out := Line{
		UnitPrice:      UnitPrice(in),
		BasePrice:      BasePrice(in),
		CommissionRate: in.CommissionRate,
	}

	if in.Delivery != nil {
		out.DeliveryPrice = in.Delivery.ZonePrice
		out.DeliveryCommission = Round2(in.Delivery.ZonePrice.Mul(in.Delivery.SiteCommission))
		out.DeliveryBalance = in.Delivery.ZonePrice.Sub(out.DeliveryCommission)
	}

	beforeDiscount := out.UnitPrice.Mul(qty)
	out.ProductPrice = beforeDiscount
	if in.DiscountPercentage.IsPositive() {
		out.ProductPrice = beforeDiscount.Sub(beforeDiscount.Mul(in.DiscountPercentage).Div(hundred))
	}

	// Tax is taken on the undiscounted unit price.
	out.TaxPrice = out.UnitPrice.Mul(in.TaxPercentage).Div(hundred).Mul(qty)
	out.ShippingPrice = ShippingPrice(in.Quantity, in.Shipping, in.Destination)

	out.TotalPrice = Round2(out.ProductPrice.Add(out.TaxPrice).Add(out.ShippingPrice).Add(out.DeliveryPrice))
	out.Commission = Round2(out.BasePrice.Mul(qty).Mul(in.CommissionRate).Mul(vatMultiplier))
	out.Balance = out.TotalPrice.Sub(out.Commission)
	return out
}

// ShippingPrice applies the shop's store-wide shipping unless the line
// ships free, either everywhere or to the buyer's area.
func ShippingPrice(quantity int, s Shipping, dest Destination) decimal.Decimal {
	if !s.StoreWide || s.Waived() || FreeShipApplies(s.FreeShipAreas, dest) {
		return decimal.Zero
	}
	price := s.DefaultPrice
	if quantity > 1 {
		price = price.Add(s.PerQuantityPrice.Mul(decimal.NewFromInt(int64(quantity - 1))))
	}
	return price
}

// FreeShipApplies reports whether any area matches the destination.
func FreeShipApplies(areas []types.FreeShipArea, dest Destination) bool {
	for _, area := range areas {
		var field string
		switch area.AreaType {
		case enums.FreeShipAreaZipcode:
			field = dest.ZipCode
		case enums.FreeShipAreaCity:
			field = dest.City
		case enums.FreeShipAreaState:
			field = dest.State
		case enums.FreeShipAreaCountry:
			field = dest.Country
		default:
			continue
		}
		if matchArea(area.Value, field) {
			return true
		}
	}
	return false
}

func matchArea(rule, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(rule), value)
}

// Totals sums priced lines into order level figures.
type Totals struct {
	TotalPrice    decimal.Decimal
	TotalProducts int
}

// Add folds a line of quantity units into the running totals.
func (t Totals) Add(line Line, quantity int) Totals {
	t.TotalPrice = t.TotalPrice.Add(line.TotalPrice)
	t.TotalProducts += quantity
	return t
}
