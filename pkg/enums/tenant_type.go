package enums

// TenantType identifies who is owed money for an order detail.
type TenantType string

const (
	TenantTypeShop     TenantType = "shop"
	TenantTypeDelivery TenantType = "delivery"
)

var tenantTypes = newSet("tenant type", TenantTypeShop, TenantTypeDelivery)

func (t TenantType) String() string { return string(t) }
func (t TenantType) IsValid() bool  { return tenantTypes.has(t) }

func ParseTenantType(value string) (TenantType, error) { return tenantTypes.parse(value) }
