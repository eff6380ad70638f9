package enums

// ProductType separates shippable goods from downloadable ones.
type ProductType string

const (
	ProductTypePhysical ProductType = "physical"
	ProductTypeDigital  ProductType = "digital"
)

var productTypes = newSet("product type", ProductTypePhysical, ProductTypeDigital)

func (p ProductType) IsValid() bool { return productTypes.has(p) }
