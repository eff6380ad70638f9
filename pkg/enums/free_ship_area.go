package enums

// FreeShipAreaType selects which buyer address field a free-ship rule matches.
type FreeShipAreaType string

const (
	FreeShipAreaZipcode FreeShipAreaType = "zipcode"
	FreeShipAreaCity    FreeShipAreaType = "city"
	FreeShipAreaState   FreeShipAreaType = "state"
	FreeShipAreaCountry FreeShipAreaType = "country"
)

var freeShipAreas = newSet("free ship area", FreeShipAreaZipcode, FreeShipAreaCity, FreeShipAreaState, FreeShipAreaCountry)

func (f FreeShipAreaType) IsValid() bool { return freeShipAreas.has(f) }
