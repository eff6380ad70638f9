package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	"github.com/bazaarhq/bazaar-backend/pkg/types"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func decPtr(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

func assertDec(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "%s: want %s, got %s", field, want, got)
}

func TestPriceTaxCommissionAndBalance(t *testing.T) {
	line := Price(LineInput{
		Quantity:       2,
		Price:          dec("100"),
		TaxPercentage:  dec("20"),
		CommissionRate: dec("0.1"),
	})

	assertDec(t, "100", line.UnitPrice, "unit price")
	assertDec(t, "40", line.TaxPrice, "tax")
	assertDec(t, "23.20", line.Commission, "commission")
	assertDec(t, "240", line.TotalPrice, "total")
	assertDec(t, "216.80", line.Balance, "balance")
}

func TestPriceDiscountAppliesBeforeTaxBaseIsKept(t *testing.T) {
	line := Price(LineInput{
		Quantity:           1,
		Price:              dec("100"),
		SalePrice:          decPtr("80"),
		TaxPercentage:      dec("10"),
		DiscountPercentage: dec("25"),
		CommissionRate:     dec("0.1"),
	})

	assertDec(t, "80", line.UnitPrice, "unit price")
	assertDec(t, "100", line.BasePrice, "base price")
	assertDec(t, "60", line.ProductPrice, "discounted product price")
	assertDec(t, "8", line.TaxPrice, "tax on undiscounted unit price")
	assertDec(t, "68", line.TotalPrice, "total")
	assertDec(t, "11.60", line.Commission, "commission on base price")
}

func TestUnitPricePrecedence(t *testing.T) {
	in := LineInput{
		Price:            dec("10"),
		SalePrice:        decPtr("9"),
		VariantPrice:     decPtr("12"),
		VariantSalePrice: decPtr("11"),
	}
	assertDec(t, "11", UnitPrice(in), "variant sale price")
	assertDec(t, "12", BasePrice(in), "variant base price")

	in.VariantSalePrice = nil
	assertDec(t, "12", UnitPrice(in), "variant price")

	in.VariantPrice = nil
	assertDec(t, "9", UnitPrice(in), "product sale price")
	assertDec(t, "10", BasePrice(in), "product base price")

	in.SalePrice = decPtr("0")
	assertDec(t, "10", UnitPrice(in), "zero sale price falls back")
}

func TestPriceDelivery(t *testing.T) {
	line := Price(LineInput{
		Quantity:       1,
		Price:          dec("50"),
		CommissionRate: dec("0"),
		Delivery:       &Delivery{ZonePrice: dec("15"), SiteCommission: dec("0.15")},
	})

	assertDec(t, "15", line.DeliveryPrice, "delivery price")
	assertDec(t, "2.25", line.DeliveryCommission, "delivery commission")
	assertDec(t, "12.75", line.DeliveryBalance, "delivery balance")
	assertDec(t, "65", line.TotalPrice, "total includes delivery")
}

func TestShippingStoreWidePerQuantity(t *testing.T) {
	s := Shipping{StoreWide: true, DefaultPrice: dec("5"), PerQuantityPrice: dec("2")}
	assertDec(t, "5", ShippingPrice(1, s, Destination{}), "single unit")
	assertDec(t, "11", ShippingPrice(4, s, Destination{}), "per extra unit")

	s.StoreWide = false
	assertDec(t, "0", ShippingPrice(4, s, Destination{}), "no store-wide shipping")
}

func TestShippingWaivedByProductCategoryOrShop(t *testing.T) {
	base := Shipping{StoreWide: true, DefaultPrice: dec("5"), PerQuantityPrice: dec("2")}
	cases := map[string]func(*Shipping){
		"product":  func(s *Shipping) { s.FreeShip = true },
		"category": func(s *Shipping) { s.CategoryFreeShip = true },
		"shop":     func(s *Shipping) { s.ShopFreeShip = true },
	}
	for name, flag := range cases {
		t.Run(name, func(t *testing.T) {
			s := base
			flag(&s)
			if !s.Waived() {
				t.Fatalf("%s flag should waive shipping", name)
			}
			assertDec(t, "0", ShippingPrice(3, s, Destination{}), name)
		})
	}
	if base.Waived() {
		t.Fatal("no flag set, shipping should apply")
	}
	assertDec(t, "9", ShippingPrice(3, base, Destination{}), "no flags")
}

func TestShippingFreeShipAreaWaivesStoreWide(t *testing.T) {
	in := LineInput{
		Quantity: 3,
		Price:    dec("20"),
		Shipping: Shipping{
			StoreWide:        true,
			DefaultPrice:     dec("5"),
			PerQuantityPrice: dec("1"),
			FreeShipAreas: []types.FreeShipArea{
				{AreaType: enums.FreeShipAreaCity, Value: "Lusaka"},
			},
		},
		Destination: Destination{City: "Lusaka", Country: "ZM"},
	}

	line := Price(in)
	assertDec(t, "0", line.ShippingPrice, "free-ship city")
	assertDec(t, "60", line.TotalPrice, "total without shipping")

	in.Destination.City = "Ndola"
	assertDec(t, "7", Price(in).ShippingPrice, "other city pays shipping")
}

func TestFreeShipAppliesPerAreaType(t *testing.T) {
	dest := Destination{ZipCode: "10101", City: "Lusaka", State: "Lusaka Province", Country: "Zambia"}
	cases := []struct {
		area types.FreeShipArea
		want bool
	}{
		{types.FreeShipArea{AreaType: enums.FreeShipAreaZipcode, Value: "10101"}, true},
		{types.FreeShipArea{AreaType: enums.FreeShipAreaState, Value: "lusaka province"}, true},
		{types.FreeShipArea{AreaType: enums.FreeShipAreaCountry, Value: "Zambia"}, true},
		{types.FreeShipArea{AreaType: enums.FreeShipAreaCountry, Value: "Malawi"}, false},
		{types.FreeShipArea{AreaType: "region", Value: "Lusaka"}, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FreeShipApplies([]types.FreeShipArea{tc.area}, dest), "%+v", tc.area)
	}
	assert.False(t, FreeShipApplies([]types.FreeShipArea{{AreaType: enums.FreeShipAreaCity, Value: "Lusaka"}}, Destination{}))
}

func TestTotalsAdd(t *testing.T) {
	var totals Totals
	totals = totals.Add(Line{TotalPrice: dec("10.50")}, 2)
	totals = totals.Add(Line{TotalPrice: dec("4.25")}, 1)
	assertDec(t, "14.75", totals.TotalPrice, "total price")
	assert.Equal(t, 3, totals.TotalProducts)
}
