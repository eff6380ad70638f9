package enums

// ActorRole identifies the kind of principal carried in an access token.
type ActorRole string

const (
	ActorRoleAdmin    ActorRole = "admin"
	ActorRoleShop     ActorRole = "shop"
	ActorRoleCompany  ActorRole = "company"
	ActorRoleDriver   ActorRole = "driver"
	ActorRoleCustomer ActorRole = "customer"
)

var actorRoles = newSet("actor role", ActorRoleAdmin, ActorRoleShop, ActorRoleCompany, ActorRoleDriver, ActorRoleCustomer)

func (r ActorRole) String() string { return string(r) }
func (r ActorRole) IsValid() bool  { return actorRoles.has(r) }

// OwnsTenant reports whether the role acts on behalf of a shop or delivery
// company and therefore carries a tenant id.
func (r ActorRole) OwnsTenant() bool {
	return r == ActorRoleShop || r == ActorRoleCompany || r == ActorRoleDriver
}

func ParseActorRole(value string) (ActorRole, error) { return actorRoles.parse(value) }
